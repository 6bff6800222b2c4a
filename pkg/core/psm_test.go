package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPSMValidation(t *testing.T) {
	tests := []struct {
		name    string
		psm     *PSM
		wantErr bool
	}{
		{
			name: "valid psm",
			psm: &PSM{
				SpectrumID:   "scan=12",
				Sequence:     "PEPTIDE",
				Charge:       2,
				SearchEngine: "msgfplus",
			},
			wantErr: false,
		},
		{
			name: "title only",
			psm: &PSM{
				SpectrumTitle: "run1.12.12.2",
				Sequence:      "PEPTIDE",
				Charge:        2,
				SearchEngine:  "msgfplus",
			},
			wantErr: false,
		},
		{
			name: "missing sequence",
			psm: &PSM{
				SpectrumID:   "scan=12",
				Charge:       2,
				SearchEngine: "msgfplus",
			},
			wantErr: true,
		},
		{
			name: "zero charge",
			psm: &PSM{
				SpectrumID:   "scan=12",
				Sequence:     "PEPTIDE",
				SearchEngine: "msgfplus",
			},
			wantErr: true,
		},
		{
			name: "missing engine",
			psm: &PSM{
				SpectrumID: "scan=12",
				Sequence:   "PEPTIDE",
				Charge:     2,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.psm.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseModifications(t *testing.T) {
	got, err := ParseModifications("Acetyl:0;;Label:13C(6):3; Oxidation:5 ")
	if err != nil {
		t.Fatalf("ParseModifications() error = %v", err)
	}
	want := []Modification{
		{Name: "Acetyl", Position: 0},
		{Name: "Label:13C(6)", Position: 3},
		{Name: "Oxidation", Position: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseModifications() mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseModifications("Oxidation@5"); err == nil {
		t.Error("expected error for token without position")
	}
}

func TestPSMName(t *testing.T) {
	psm := &PSM{
		Sequence: "PEPTIDE",
		Charge:   2,
	}

	if name := psm.Name(); name != "PEPTIDE/2" {
		t.Errorf("Expected name PEPTIDE/2, got %s", name)
	}
}

func TestNamesForMass(t *testing.T) {
	db := DefaultModDatabase()

	got := db.NamesForMass(15.995, 0.01)
	if len(got) == 0 || got[0] != "Oxidation" {
		t.Errorf("NamesForMass(15.995) = %v, want Oxidation first", got)
	}

	// TMTpro and iTRAQ8plex are 0.0018 Da apart
	got = db.NamesForMass(304.2071, 0.005)
	if diff := cmp.Diff([]string{"TMTpro", "iTRAQ8plex"}, got); diff != "" {
		t.Errorf("NamesForMass(304.2071) mismatch (-want +got):\n%s", diff)
	}
}
