package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedSequence is returned for sequences with residues the
	// composition service cannot resolve.
	ErrMalformedSequence = errors.New("malformed peptide sequence")
	// ErrUnmappableFraction is returned when too many PSMs carry
	// modifications that could not be mapped to the catalog.
	ErrUnmappableFraction = errors.New("unmappable modification fraction exceeds threshold")
)

// ValidationError represents an error found during PSM validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// ConfigurationError names a configuration key that cannot be honored.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Key, e.Message)
}

// UnmappableModificationError reports an observed modification that no
// catalog entry (or combination of entries) explains.
type UnmappableModificationError struct {
	Sequence string
	Token    string // observed mass or name
	Position int
}

func (e *UnmappableModificationError) Error() string {
	return fmt.Sprintf("unmappable modification %s at position %d of %s", e.Token, e.Position, e.Sequence)
}

// LookupKeyError is raised when the experimental spectrum index has no entry
// for a spectrum referenced by a PSM.
type LookupKeyError struct {
	SpectrumID string
}

func (e *LookupKeyError) Error() string {
	return fmt.Sprintf("spectrum '%s' not found in experimental spectrum index", e.SpectrumID)
}
