// Package tsv provides a streaming reader for delimited (CSV/TSV) search
// engine result files.
package tsv

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/reader"
)

// Field identifies the PSM field a column maps to.
type Field int

const (
	FieldNone Field = iota
	FieldSpectrumID
	FieldSpectrumTitle
	FieldSequence
	FieldModifications
	FieldCharge
	FieldProteinID
	FieldRetentionTime
	FieldExpMZ
	FieldCalcMZ
	FieldSequenceStart
	FieldSequenceStop
	FieldSequencePre
	FieldSequencePost
	FieldSearchEngine
	FieldRawDataLocation
)

// Aliases maps lower-cased column names to fields. The canonical output
// column names are included so unified tables read back unchanged.
var Aliases = map[string]Field{
	"spectrum id": FieldSpectrumID, "specid": FieldSpectrumID, "scannum": FieldSpectrumID,
	"scan": FieldSpectrumID, "scanid": FieldSpectrumID, "spectrum_id": FieldSpectrumID,

	"spectrum title": FieldSpectrumTitle, "title": FieldSpectrumTitle,
	"spectrum": FieldSpectrumTitle, "spectrum_title": FieldSpectrumTitle,

	"sequence": FieldSequence, "peptide": FieldSequence, "peptide sequence": FieldSequence,
	"modified sequence": FieldSequence, "modified_peptide": FieldSequence,

	"modifications": FieldModifications, "mods": FieldModifications,
	"modification": FieldModifications, "assigned modifications": FieldModifications,

	"charge": FieldCharge, "z": FieldCharge, "assumed_charge": FieldCharge, "precursor charge": FieldCharge,

	"protein id": FieldProteinID, "protein": FieldProteinID, "proteins": FieldProteinID,
	"protein_id": FieldProteinID, "accession": FieldProteinID,

	"retention time (s)": FieldRetentionTime, "retention_time": FieldRetentionTime,
	"rt": FieldRetentionTime, "rt (s)": FieldRetentionTime,

	"exp m/z": FieldExpMZ, "precursormz": FieldExpMZ, "precursor_mz": FieldExpMZ,
	"exp_mz": FieldExpMZ, "observed m/z": FieldExpMZ,

	"calc m/z": FieldCalcMZ, "calc_mz": FieldCalcMZ, "calculated m/z": FieldCalcMZ,

	"sequence start": FieldSequenceStart, "start": FieldSequenceStart,
	"sequence stop": FieldSequenceStop, "end": FieldSequenceStop, "stop": FieldSequenceStop,
	"sequence pre aa": FieldSequencePre, "prev_aa": FieldSequencePre, "pre": FieldSequencePre,
	"sequence post aa": FieldSequencePost, "next_aa": FieldSequencePost, "post": FieldSequencePost,

	"search engine": FieldSearchEngine, "engine": FieldSearchEngine,

	"raw data location": FieldRawDataLocation, "raw_file": FieldRawDataLocation,
	"file": FieldRawDataLocation, "spectrum file": FieldRawDataLocation,
}

// Format registers the delimited reader. Engine and Notation apply to files
// without a search engine column or explicit notation.
type Format struct {
	Engine   string
	Notation string
}

// Name returns "tsv".
func (Format) Name() string { return "tsv" }

// CanParse accepts .csv, .tsv and .txt files whose header maps a sequence column.
func (f Format) CanParse(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
	default:
		return false
	}

	fh, err := os.Open(path)
	if err != nil {
		return false
	}
	defer fh.Close()

	line, err := bufio.NewReader(fh).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	for _, col := range strings.Split(strings.TrimRight(line, "\r\n"), delimiterFor(path)) {
		if Aliases[normalizeHeader(col)] == FieldSequence {
			return true
		}
	}
	return false
}

// Open opens path for streaming.
func (f Format) Open(path string) (reader.RecordStream, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	r, err := NewReader(fh, rune(delimiterFor(path)[0]), f.Engine, f.Notation)
	if err != nil {
		fh.Close()
		return nil, err
	}
	r.closer = fh
	if r.engine == "" {
		r.engine = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return r, nil
}

func delimiterFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ","
	}
	return "\t"
}

func normalizeHeader(col string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
}

// Reader provides streaming access to delimited result files
type Reader struct {
	csv      *csv.Reader
	closer   io.Closer
	header   []string
	fields   []Field
	engine   string
	notation string
	lineNum  int
	current  *core.PSM
	err      error
}

// NewReader creates a reader and consumes the header line.
func NewReader(r io.Reader, delimiter rune, engine, notation string) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	rd := &Reader{
		csv:      cr,
		header:   header,
		fields:   make([]Field, len(header)),
		engine:   engine,
		notation: notation,
		lineNum:  1,
	}
	seen := make(map[Field]bool)
	for i, col := range header {
		f := Aliases[normalizeHeader(col)]
		// The first column mapping to a field wins, later ones stay extra
		if f != FieldNone && !seen[f] {
			rd.fields[i] = f
			seen[f] = true
		}
	}
	if !seen[FieldSequence] {
		return nil, fmt.Errorf("no sequence column in header")
	}
	return rd, nil
}

// Next advances to the next record. Returns false when no more records or error.
func (r *Reader) Next() bool {
	r.current = nil
	for {
		row, err := r.csv.Read()
		if err == io.EOF {
			return false
		}
		r.lineNum++
		if err != nil {
			r.err = fmt.Errorf("line %d: %w", r.lineNum, err)
			return false
		}
		if isBlank(row) {
			continue
		}

		psm, err := r.parseRow(row)
		if err != nil {
			r.err = fmt.Errorf("line %d: %w", r.lineNum, err)
			return false
		}
		r.current = psm
		return true
	}
}

// Record returns the current record
func (r *Reader) Record() *core.PSM { return r.current }

// Err returns any error encountered during reading
func (r *Reader) Err() error { return r.err }

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (r *Reader) parseRow(row []string) (*core.PSM, error) {
	psm := &core.PSM{
		SearchEngine: r.engine,
		RawNotation:  r.notation,
		Extra:        make(map[string]string),
	}

	for i, col := range r.header {
		if i >= len(row) {
			break
		}
		v := strings.TrimSpace(row[i])
		switch r.fields[i] {
		case FieldSpectrumID:
			psm.SpectrumID = v
		case FieldSpectrumTitle:
			psm.SpectrumTitle = v
		case FieldSequence:
			psm.Sequence = v
		case FieldModifications:
			psm.RawModifications = v
		case FieldCharge:
			if v == "" {
				continue
			}
			charge, err := parseCharge(v)
			if err != nil {
				return nil, err
			}
			psm.Charge = charge
		case FieldProteinID:
			psm.ProteinID = v
		case FieldRetentionTime:
			rt, ok, err := parseOptionalFloat(col, v)
			if err != nil {
				return nil, err
			}
			if ok {
				psm.RetentionTime = &rt
			}
		case FieldExpMZ:
			mz, ok, err := parseOptionalFloat(col, v)
			if err != nil {
				return nil, err
			}
			if ok {
				psm.ExpMZ = mz
			}
		case FieldCalcMZ:
			mz, ok, err := parseOptionalFloat(col, v)
			if err != nil {
				return nil, err
			}
			if ok {
				psm.CalcMZ = &mz
			}
		case FieldSequenceStart:
			psm.SequenceStart = v
		case FieldSequenceStop:
			psm.SequenceStop = v
		case FieldSequencePre:
			psm.SequencePre = v
		case FieldSequencePost:
			psm.SequencePost = v
		case FieldSearchEngine:
			if v != "" {
				psm.SearchEngine = v
			}
		case FieldRawDataLocation:
			psm.RawDataLocation = v
		default:
			psm.Extra[col] = v
		}
	}
	return psm, nil
}

// parseCharge accepts "2", "2+" and "2.0".
func parseCharge(v string) (int, error) {
	v = strings.TrimSuffix(v, "+")
	if c, err := strconv.Atoi(v); err == nil {
		return c, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid charge '%s': %w", v, err)
	}
	return int(f), nil
}

func parseOptionalFloat(col, v string) (float64, bool, error) {
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s '%s': %w", col, v, err)
	}
	return f, true, nil
}
