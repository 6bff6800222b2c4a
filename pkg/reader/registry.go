// Package reader defines the record stream produced by engine result readers
// and the registry that selects a reader for an input file.
package reader

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// RecordStream provides streaming access to the PSMs of one input.
type RecordStream interface {
	// Next advances to the next record. Returns false when no more records or error.
	Next() bool
	// Record returns the current record.
	Record() *core.PSM
	// Err returns any error encountered during reading.
	Err() error
	Close() error
}

// Format is one reader registered with a Registry.
type Format interface {
	Name() string
	CanParse(path string) bool
	Open(path string) (RecordStream, error)
}

// Registry checks formats in registration order.
type Registry struct {
	formats []Format
}

// NewRegistry creates a registry with formats registered in order.
func NewRegistry(formats ...Format) *Registry {
	r := &Registry{}
	for _, f := range formats {
		r.Register(f)
	}
	return r
}

// Register appends a format. Earlier registrations take precedence.
func (r *Registry) Register(f Format) {
	r.formats = append(r.formats, f)
}

// Names returns the registered format names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.formats))
	for i, f := range r.formats {
		names[i] = f.Name()
	}
	return names
}

// Lookup returns the first format that can parse path.
func (r *Registry) Lookup(path string) (Format, error) {
	for _, f := range r.formats {
		if f.CanParse(path) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no reader for '%s' (registered: %s)", path, strings.Join(r.Names(), ", "))
}

// Open opens path with the first format that can parse it.
func (r *Registry) Open(path string) (RecordStream, error) {
	f, err := r.Lookup(path)
	if err != nil {
		return nil, err
	}
	s, err := f.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s reader: %w", f.Name(), err)
	}
	return s, nil
}

// ReadAll drains s and closes it.
func ReadAll(s RecordStream) ([]*core.PSM, error) {
	defer s.Close()

	var out []*core.PSM
	for s.Next() {
		out = append(out, s.Record())
	}
	if err := s.Err(); err != nil {
		return out, err
	}
	return out, nil
}
