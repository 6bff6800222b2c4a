package core

import (
	"errors"
	"math"
	"testing"
)

func TestMassAndComposition(t *testing.T) {
	composer := NewComposer(nil)

	tests := []struct {
		name          string
		sequence      string
		modifications []Modification
		wantMass      float64
		wantFormula   string
		tolerance     float64
	}{
		{
			name:        "simple tripeptide",
			sequence:    "AAA",
			wantMass:    231.121,
			wantFormula: "C9H17N3O4",
			tolerance:   0.001,
		},
		{
			name:     "with modification",
			sequence: "AAA",
			modifications: []Modification{
				{Name: "Carbamidomethyl", Position: 1},
			},
			wantMass:    288.143,
			wantFormula: "C11H20N4O5",
			tolerance:   0.001,
		},
		{
			name:     "mass-only modification",
			sequence: "PEPTIDEK",
			modifications: []Modification{
				{Name: "TMT6plex", Position: 0},
			},
			wantMass:    927.4549 + 229.162932,
			wantFormula: "C40H65N9O16+TMT6plex",
			tolerance:   0.001,
		},
		{
			name:        "selenocysteine",
			sequence:    "PEPUK",
			wantMass:    620.207284,
			wantFormula: "C24H40N6O8Se",
			tolerance:   1e-5,
		},
		{
			name:        "pyrrolysine",
			sequence:    "PEPOK",
			wantMass:    706.401375,
			wantFormula: "C33H54N8O9",
			tolerance:   1e-5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mass, formula, err := composer.MassAndComposition(tt.sequence, tt.modifications)
			if err != nil {
				t.Fatalf("MassAndComposition() error = %v", err)
			}
			if math.Abs(mass-tt.wantMass) > tt.tolerance {
				t.Errorf("MassAndComposition() mass = %.4f, want %.4f (within %.4f)", mass, tt.wantMass, tt.tolerance)
			}
			if formula != tt.wantFormula {
				t.Errorf("MassAndComposition() formula = %s, want %s", formula, tt.wantFormula)
			}
		})
	}
}

func TestMassAndCompositionErrors(t *testing.T) {
	composer := NewComposer(nil)

	_, _, err := composer.MassAndComposition("PEPXIDE", nil)
	if !errors.Is(err, ErrMalformedSequence) {
		t.Errorf("expected ErrMalformedSequence, got %v", err)
	}

	_, _, err = composer.MassAndComposition("PEPTIDE", []Modification{{Name: "NoSuchMod", Position: 2}})
	var unmappable *UnmappableModificationError
	if !errors.As(err, &unmappable) {
		t.Errorf("expected UnmappableModificationError, got %v", err)
	}
}

func TestCalcMZ(t *testing.T) {
	for charge := 1; charge <= 6; charge++ {
		if got := CalcMZ(0, charge); math.Abs(got-ProtonMass) > 1e-12 {
			t.Errorf("CalcMZ(0, %d) = %v, want proton mass", charge, got)
		}
	}

	prev := math.Inf(1)
	for charge := 1; charge <= 6; charge++ {
		got := CalcMZ(1000, charge)
		if got >= prev {
			t.Errorf("CalcMZ(1000, %d) = %v, not below charge %d value %v", charge, got, charge-1, prev)
		}
		prev = got
	}

	if got := CalcMZ(231.121, 1); math.Abs(got-232.128) > 0.001 {
		t.Errorf("CalcMZ(231.121, 1) = %.3f, want 232.128", got)
	}
}

func TestAccuracyPPM(t *testing.T) {
	got := AccuracyPPM(500.0005, 500.0)
	if math.Abs(got-1.0) > 1e-6 {
		t.Errorf("AccuracyPPM() = %v, want 1.0", got)
	}
	if got := AccuracyPPM(500, 500); got != 0 {
		t.Errorf("AccuracyPPM() = %v, want 0", got)
	}
}

func TestDefaultCompositionMasses(t *testing.T) {
	db := DefaultModDatabase()
	want := map[string]float64{
		"Carbamidomethyl": 57.021464,
		"Oxidation":       15.994915,
		"Phospho":         79.966331,
		"Acetyl":          42.010565,
		"Deamidated":      0.984016,
		"Gln->pyro-Glu":   -17.026549,
	}
	for name, mass := range want {
		got, ok := db.GetMass(name)
		if !ok {
			t.Errorf("%s missing from default database", name)
			continue
		}
		if math.Abs(got-mass) > 1e-5 {
			t.Errorf("%s mass = %.6f, want %.6f", name, got, mass)
		}
	}
}
