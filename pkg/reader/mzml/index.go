// Package mzml builds an experimental spectrum index (retention time and
// precursor m/z per spectrum) from mzML files.
package mzml

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/sanitize"
	"github.com/ChrisMcGann/psmnorm/pkg/workers"
)

const (
	accScanStartTime = "MS:1000016"
	accSelectedIonMZ = "MS:1000744"
	accSpectrumTitle = "MS:1000796"
	unitMinute       = "UO:0000031"
	unitMinuteLegacy = "MS:1000038"
	indexPrefix      = "index="
	scanKey          = "scan="
)

// Entry is the experimental information of one spectrum.
type Entry struct {
	ID            string
	Index         int
	Title         string
	RetentionTime float64 // seconds, -1 when absent
	PrecursorMZ   float64 // 0 when absent
}

// Index maps spectrum references onto entries. It is read-only once built.
type Index struct {
	entries []Entry
	byID    map[string]int
	byIndex map[int]int
	byScan  map[string]int
	byTitle map[string]int
}

// The parts of a spectrum element that are needed. Binary data is skipped.
type spectrum struct {
	Index         int       `xml:"index,attr"`
	ID            string    `xml:"id,attr"`
	CvPar         []cvParam `xml:"cvParam"`
	Scans         []scan    `xml:"scanList>scan"`
	SelectedIonCv []cvParam `xml:"precursorList>precursor>selectedIonList>selectedIon>cvParam"`
}

type scan struct {
	CvPar []cvParam `xml:"cvParam"`
}

type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

// Open builds the index of an mzML file.
func Open(ctx context.Context, path string, workerCount int) (*Index, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mzML file: %w", err)
	}
	defer fh.Close()
	return Read(ctx, fh, workerCount)
}

// Read decodes spectrum elements sequentially and extracts their values on
// a worker pool. Entries keep document order.
func Read(ctx context.Context, r io.Reader, workerCount int) (*Index, error) {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel

	var spectra []spectrum
	for {
		t, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mzML: %w", err)
		}
		start, ok := t.(xml.StartElement)
		if !ok || start.Name.Local != "spectrum" {
			continue
		}
		var s spectrum
		if err := d.DecodeElement(&s, &start); err != nil {
			return nil, fmt.Errorf("mzML: %w", err)
		}
		spectra = append(spectra, s)
	}

	entries, err := workers.Map(ctx, workerCount, spectra, func(_ context.Context, s spectrum) (Entry, error) {
		return extract(s)
	})
	if err != nil {
		return nil, err
	}
	return newIndex(entries), nil
}

func extract(s spectrum) (Entry, error) {
	e := Entry{ID: s.ID, Index: s.Index, RetentionTime: -1}

	for _, cv := range s.CvPar {
		if cv.Accession == accSpectrumTitle {
			e.Title = cv.Value
		}
	}

	for _, sc := range s.Scans {
		for _, cv := range sc.CvPar {
			if cv.Accession != accScanStartTime {
				continue
			}
			rt, err := strconv.ParseFloat(cv.Value, 64)
			if err != nil {
				return e, fmt.Errorf("mzML: spectrum %s: invalid scan start time: %w", s.ID, err)
			}
			// Minutes, otherwise assume seconds
			if cv.UnitAccession == unitMinute || cv.UnitAccession == unitMinuteLegacy {
				rt *= 60
			}
			e.RetentionTime = rt
		}
	}

	for _, cv := range s.SelectedIonCv {
		if cv.Accession != accSelectedIonMZ {
			continue
		}
		mz, err := strconv.ParseFloat(cv.Value, 64)
		if err != nil {
			return e, fmt.Errorf("mzML: spectrum %s: invalid selected ion m/z: %w", s.ID, err)
		}
		e.PrecursorMZ = mz
		break
	}
	return e, nil
}

func newIndex(entries []Entry) *Index {
	ix := &Index{
		entries: entries,
		byID:    make(map[string]int, len(entries)),
		byIndex: make(map[int]int, len(entries)),
		byScan:  make(map[string]int, len(entries)),
		byTitle: make(map[string]int),
	}
	for i, e := range entries {
		ix.byID[e.ID] = i
		ix.byIndex[e.Index] = i
		if n := scanNumber(e.ID); n != "" {
			ix.byScan[n] = i
		}
		if e.Title != "" {
			ix.byTitle[e.Title] = i
		}
	}
	return ix
}

// scanNumber extracts N from native ids such as
// "controllerType=0 controllerNumber=1 scan=N".
func scanNumber(id string) string {
	i := strings.Index(id, scanKey)
	if i < 0 {
		return ""
	}
	n := id[i+len(scanKey):]
	if j := strings.IndexByte(n, ' '); j >= 0 {
		n = n[:j]
	}
	return n
}

// Len returns the number of indexed spectra.
func (ix *Index) Len() int { return len(ix.entries) }

// Lookup resolves a spectrum reference: a native id, "index=N", a bare or
// "scan=N" scan number, or a spectrum title. A missing reference yields a
// *core.LookupKeyError.
func (ix *Index) Lookup(ref string) (Entry, error) {
	if i, ok := ix.byID[ref]; ok {
		return ix.entries[i], nil
	}
	if strings.HasPrefix(ref, indexPrefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(ref, indexPrefix)); err == nil {
			if i, ok := ix.byIndex[n]; ok {
				return ix.entries[i], nil
			}
		}
	}
	scanRef := scanNumber(ref)
	if scanRef == "" {
		scanRef = ref
	}
	if i, ok := ix.byScan[scanRef]; ok {
		return ix.entries[i], nil
	}
	if i, ok := ix.byTitle[ref]; ok {
		return ix.entries[i], nil
	}
	return Entry{}, &core.LookupKeyError{SpectrumID: ref}
}

// Annotate fills the retention time and experimental m/z of p from the
// index when the reader left them blank.
func (ix *Index) Annotate(p *core.PSM) error {
	e, err := ix.Lookup(p.SpectrumKey())
	if err != nil && p.SpectrumTitle != "" && p.SpectrumID != "" {
		e, err = ix.Lookup(p.SpectrumTitle)
	}
	if err != nil {
		return err
	}
	if p.RetentionTime == nil && e.RetentionTime >= 0 {
		rt := e.RetentionTime
		p.RetentionTime = &rt
	}
	if p.ExpMZ == 0 && e.PrecursorMZ > 0 {
		p.ExpMZ = e.PrecursorMZ
	}
	return nil
}

// Set holds the indexes of several runs keyed by file name without
// directory and extension.
type Set map[string]*Index

// OpenSet indexes every path.
func OpenSet(ctx context.Context, paths []string, workerCount int) (Set, error) {
	s := make(Set, len(paths))
	for _, path := range paths {
		ix, err := Open(ctx, path, workerCount)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		s[RunName(path)] = ix
	}
	return s, nil
}

// RunName returns the file name of path without directory and extension.
func RunName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Annotate selects the index of the PSM's run. The run comes from the raw
// data location, derived from the spectrum title when blank. A set of one
// index serves every PSM.
func (s Set) Annotate(p *core.PSM) error {
	if len(s) == 1 {
		for _, ix := range s {
			return ix.Annotate(p)
		}
	}
	run := RunName(sanitize.RawDataLocation(p.RawDataLocation, p.SpectrumTitle))
	ix, ok := s[run]
	if !ok {
		return &core.LookupKeyError{SpectrumID: run + ":" + p.SpectrumKey()}
	}
	return ix.Annotate(p)
}
