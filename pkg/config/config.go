// Package config loads and validates the run configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/psmnorm/pkg/catalog"
	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/decoy"
	"github.com/ChrisMcGann/psmnorm/pkg/enzyme"
	"github.com/ChrisMcGann/psmnorm/pkg/resolve"
)

// Defaults applied by Default and by Load for missing keys.
const (
	DefaultEnzyme              = "trypsin"
	DefaultIntegrity           = enzyme.All
	DefaultMassPrecision       = catalog.DefaultPrecision
	DefaultLookupTolerance     = 0.001
	DefaultUnmappableThreshold = 0.1
	DefaultProteinDelimiter    = "<|>"
	DefaultFlankDelimiter      = "<|>"
)

// Config is the run configuration.
type Config struct {
	Modifications             []catalog.Spec    `json:"modifications" yaml:"modifications"`
	Enzyme                    string            `json:"enzyme" yaml:"enzyme"`
	TerminalCleavageIntegrity enzyme.Integrity  `json:"terminal_cleavage_site_integrity" yaml:"terminal_cleavage_site_integrity"`
	ValidationScoreField      map[string]string `json:"validation_score_field" yaml:"validation_score_field"`
	BiggerScoresBetter        map[string]bool   `json:"bigger_scores_better" yaml:"bigger_scores_better"`
	DecoyTag                  string            `json:"decoy_tag" yaml:"decoy_tag"`
	ImmutablePeptides         []string          `json:"immutable_peptides" yaml:"immutable_peptides"`
	WorkerCount               int               `json:"worker_count" yaml:"worker_count"`
	MassPrecision             int32             `json:"mass_precision" yaml:"mass_precision"`
	MassLookupTolerance       float64           `json:"mass_lookup_tolerance" yaml:"mass_lookup_tolerance"`
	MaxCombinationSize        int               `json:"max_combination_size" yaml:"max_combination_size"`
	UnmappableThreshold       float64           `json:"unmappable_threshold" yaml:"unmappable_threshold"`
	ProteinDelimiter          string            `json:"protein_delimiter" yaml:"protein_delimiter"`
	FlankDelimiter            string            `json:"flank_delimiter" yaml:"flank_delimiter"`
	EnginePositionOffset      map[string]int    `json:"engine_position_offset" yaml:"engine_position_offset"`
	EngineNotation            map[string]string `json:"engine_notation" yaml:"engine_notation"`
	CustomModifications       string            `json:"custom_modifications" yaml:"custom_modifications"`
	Fasta                     string            `json:"fasta" yaml:"fasta"`
	MzML                      []string          `json:"mzml" yaml:"mzml"`
	TopN                      int               `json:"top_n" yaml:"top_n"`
	RemoveDecoys              bool              `json:"remove_decoys" yaml:"remove_decoys"`
	Engines                   []string          `json:"engines" yaml:"engines"`
	KeepDuplicates            bool              `json:"keep_duplicates" yaml:"keep_duplicates"`
}

// Default returns a configuration with every default applied and no
// modifications.
func Default() *Config {
	return &Config{
		Enzyme:                    DefaultEnzyme,
		TerminalCleavageIntegrity: DefaultIntegrity,
		DecoyTag:                  decoy.DefaultTag,
		MassPrecision:             DefaultMassPrecision,
		MassLookupTolerance:       DefaultLookupTolerance,
		UnmappableThreshold:       DefaultUnmappableThreshold,
		ProteinDelimiter:          DefaultProteinDelimiter,
		FlankDelimiter:            DefaultFlankDelimiter,
	}
}

// Load reads a JSON (.json) or YAML (.yaml, .yml) configuration over the
// defaults and validates it. Keys present in the file win, including zero
// values such as unmappable_threshold: 0.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	c := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format '%s', use .json, .yaml or .yml", filepath.Ext(path))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks value ranges and enumerations. Errors name the offending
// key. Modification names are checked when the catalog is built.
func (c *Config) Validate() error {
	switch c.TerminalCleavageIntegrity {
	case enzyme.All, enzyme.AnyContext:
	default:
		return &core.ConfigurationError{
			Key:     "terminal_cleavage_site_integrity",
			Message: fmt.Sprintf("must be 'all' or 'any', got '%s'", c.TerminalCleavageIntegrity),
		}
	}
	if c.WorkerCount < 0 {
		return &core.ConfigurationError{Key: "worker_count", Message: "must not be negative"}
	}
	if c.MassPrecision < 1 || c.MassPrecision > 10 {
		return &core.ConfigurationError{Key: "mass_precision", Message: fmt.Sprintf("must be between 1 and 10, got %d", c.MassPrecision)}
	}
	if c.MassLookupTolerance < 0 {
		return &core.ConfigurationError{Key: "mass_lookup_tolerance", Message: "must not be negative"}
	}
	if c.UnmappableThreshold < 0 || c.UnmappableThreshold > 1 {
		return &core.ConfigurationError{Key: "unmappable_threshold", Message: "must be between 0 and 1"}
	}
	if c.MaxCombinationSize < 0 {
		return &core.ConfigurationError{Key: "max_combination_size", Message: "must not be negative"}
	}
	for engine, n := range c.EngineNotation {
		switch resolve.Notation(n) {
		case resolve.NotationAt, resolve.NotationBracket, resolve.NotationColon:
		default:
			return &core.ConfigurationError{Key: "engine_notation", Message: fmt.Sprintf("unknown notation '%s' for engine %s", n, engine)}
		}
	}
	for engine := range c.BiggerScoresBetter {
		if _, ok := c.ValidationScoreField[engine]; !ok {
			return &core.ConfigurationError{Key: "validation_score_field", Message: "no score field for engine " + engine}
		}
	}
	return nil
}

// Notation returns the raw modification notation of engine, falling back
// to the reader-supplied value.
func (c *Config) Notation(engine, fromReader string) resolve.Notation {
	if n, ok := c.EngineNotation[engine]; ok {
		return resolve.Notation(n)
	}
	return resolve.Notation(fromReader)
}
