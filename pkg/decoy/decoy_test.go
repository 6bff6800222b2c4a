package decoy

import (
	"testing"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

func TestIsDecoy(t *testing.T) {
	tests := []struct {
		name      string
		tag       string
		proteinID string
		want      bool
	}{
		{"default tag", "", "decoy_PEPTIDE", true},
		{"target", "", "NOTADECOY", false},
		{"custom tag matches", "non_default_tag_", "non_default_tag_PEPTIDE", true},
		{"custom tag ignores default", "non_default_tag_", "decoy_PEPTIDE", false},
		{"all decoy", "", "decoy_A<|>decoy_B", true},
		{"shared with target", "", "decoy_A<|>B", false},
		{"empty", "", "", false},
		{"tag inside accession", "", "sp|decoy_A", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tagger := NewTagger(tt.tag, "<|>", nil)
			if got := tagger.IsDecoy(tt.proteinID); got != tt.want {
				t.Errorf("IsDecoy(%q) = %v, want %v", tt.proteinID, got, tt.want)
			}
		})
	}
}

func TestIsImmutable(t *testing.T) {
	tagger := NewTagger("", "<|>", []string{"AAAPEPTIDEKAAA", " "})

	tests := []struct {
		sequence string
		want     bool
	}{
		{"PEPTIDEK", true},
		{"peptidek", true},
		{"AAAPEPTIDEKAAA", true},
		{"PEPTIDER", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tagger.IsImmutable(tt.sequence); got != tt.want {
			t.Errorf("IsImmutable(%q) = %v, want %v", tt.sequence, got, tt.want)
		}
	}
}

func TestTag(t *testing.T) {
	tagger := NewTagger("", "<|>", []string{"PEPTIDEK"})
	p := &core.PSM{Sequence: "PEPTIDEK", ProteinID: "decoy_P1"}
	tagger.Tag(p)
	if !p.IsDecoy || !p.IsImmutable {
		t.Errorf("IsDecoy, IsImmutable = %v, %v, want true, true", p.IsDecoy, p.IsImmutable)
	}
}
