// Package mzid provides a reader for mzIdentML identification files
package mzid

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/reader"
)

// Notation is the raw modification notation emitted by this reader.
const Notation = "at"

const accSpectrumTitle = "MS:1000796"

// Format registers the mzIdentML reader. Engine overrides the analysis
// software name; Delimiter joins multiple protein contexts.
type Format struct {
	Engine    string
	Delimiter string
}

// Name returns "mzid".
func (Format) Name() string { return "mzid" }

// CanParse accepts .mzid files and XML files with a MzIdentML root element.
func (Format) CanParse(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mzid", ".mzidentml":
		return true
	case ".xml":
	default:
		return false
	}

	fh, err := os.Open(path)
	if err != nil {
		return false
	}
	defer fh.Close()
	head := make([]byte, 1024)
	n, _ := io.ReadFull(bufio.NewReader(fh), head)
	return strings.Contains(string(head[:n]), "<MzIdentML")
}

// Open reads the whole document and returns a stream over its identifications.
func (f Format) Open(path string) (reader.RecordStream, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer fh.Close()

	r, err := Read(fh, f.Engine, f.Delimiter)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Reader streams the spectrum identification items of one document.
type Reader struct {
	content   mzIdentMLContent
	peptides  map[string]int
	evidence  map[string]int
	proteins  map[string]string
	spectra   map[string]string
	engine    string
	delimiter string

	result  int
	item    int
	current *core.PSM
	err     error
}

// Read decodes mzIdentML content from reader.
func Read(r io.Reader, engine, delimiter string) (*Reader, error) {
	rd := &Reader{engine: engine, delimiter: delimiter}
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	if err := d.Decode(&rd.content); err != nil {
		return nil, fmt.Errorf("mzIdentML: %w", err)
	}

	rd.peptides = make(map[string]int, len(rd.content.Peptide))
	for i, p := range rd.content.Peptide {
		rd.peptides[p.ID] = i
	}
	rd.evidence = make(map[string]int, len(rd.content.PeptideEvidence))
	for i, e := range rd.content.PeptideEvidence {
		rd.evidence[e.ID] = i
	}
	rd.proteins = make(map[string]string, len(rd.content.DBSequence))
	for _, s := range rd.content.DBSequence {
		rd.proteins[s.ID] = s.Accession
	}
	rd.spectra = make(map[string]string, len(rd.content.SpectraData))
	for _, s := range rd.content.SpectraData {
		rd.spectra[s.ID] = s.Location
	}
	if rd.engine == "" {
		rd.engine = softwareName(rd.content.AnalysisSoftware)
	}
	return rd, nil
}

func softwareName(sw []analysisSoftware) string {
	for _, s := range sw {
		if s.Name != "" {
			return s.Name
		}
		for _, cv := range s.SoftwareName {
			if cv.Name != "" {
				return cv.Name
			}
		}
	}
	return "unknown"
}

// Next advances to the next identification. Returns false when no more or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}
	results := r.content.SpectrumIdentificationResult
	for r.result < len(results) {
		if r.item >= len(results[r.result].SpectrumIdentificationItem) {
			r.result++
			r.item = 0
			continue
		}
		psm, err := r.build(&results[r.result], &results[r.result].SpectrumIdentificationItem[r.item])
		r.item++
		if err != nil {
			r.err = err
			return false
		}
		r.current = psm
		return true
	}
	return false
}

// Record returns the current record
func (r *Reader) Record() *core.PSM { return r.current }

// Err returns any error encountered during reading
func (r *Reader) Err() error { return r.err }

// Close is a no-op; the document is fully decoded by Read.
func (r *Reader) Close() error { return nil }

func (r *Reader) build(res *spectrumIdentificationResult, item *spectrumIdentificationItem) (*core.PSM, error) {
	pepIdx, ok := r.peptides[item.PeptideRef]
	if !ok {
		return nil, fmt.Errorf("mzIdentML: item %s references unknown peptide '%s'", item.ID, item.PeptideRef)
	}
	pep := r.content.Peptide[pepIdx]

	psm := &core.PSM{
		SpectrumID:       res.SpectrumID,
		Sequence:         pep.PeptideSequence,
		RawModifications: rawModifications(pep),
		RawNotation:      Notation,
		Charge:           item.ChargeState,
		SearchEngine:     r.engine,
		ExpMZ:            item.ExperimentalMassToCharge,
		RawDataLocation:  r.spectra[res.SpectraDataRef],
		Extra:            make(map[string]string),
	}

	if item.CalculatedMassToCharge != "" {
		mz, err := strconv.ParseFloat(item.CalculatedMassToCharge, 64)
		if err != nil {
			return nil, fmt.Errorf("mzIdentML: item %s: invalid calculatedMassToCharge: %w", item.ID, err)
		}
		psm.CalcMZ = &mz
	}

	for _, cv := range res.CvPar {
		if cv.Accession == accSpectrumTitle {
			psm.SpectrumTitle = cv.Value
		}
	}
	rt, found, err := retentionTime(res.CvPar)
	if err != nil {
		return nil, fmt.Errorf("mzIdentML: spectrum %s: invalid retention time: %w", res.SpectrumID, err)
	}
	if found {
		psm.RetentionTime = &rt
	}

	var ids, starts, stops, pres, posts []string
	for _, ref := range item.PeptideEvidenceRef {
		idx, ok := r.evidence[ref.Ref]
		if !ok {
			continue
		}
		ev := r.content.PeptideEvidence[idx]
		ids = append(ids, r.proteins[ev.DBSequenceRef])
		starts = append(starts, ev.Start)
		stops = append(stops, ev.End)
		pres = append(pres, ev.Pre)
		posts = append(posts, ev.Post)
	}
	psm.ProteinID = strings.Join(ids, r.delimiter)
	psm.SequenceStart = strings.Join(starts, r.delimiter)
	psm.SequenceStop = strings.Join(stops, r.delimiter)
	psm.SequencePre = strings.Join(pres, r.delimiter)
	psm.SequencePost = strings.Join(posts, r.delimiter)

	// Scores are in the cv and user params of the item
	for _, cv := range item.CvPar {
		if cv.Name != "" && cv.Value != "" {
			psm.Extra[cv.Name] = cv.Value
		}
	}
	for _, up := range item.UserPar {
		if up.Name != "" {
			psm.Extra[up.Name] = up.Value
		}
	}
	if item.Rank != "" {
		psm.Extra["engine rank"] = item.Rank
	}

	return psm, nil
}

// rawModifications renders the peptide modifications as "mass@location".
// Modifications without a mass delta fall back to their cvParam name.
func rawModifications(pep peptide) string {
	parts := make([]string, 0, len(pep.Modification))
	for _, m := range pep.Modification {
		loc := 0
		if m.Location != nil {
			loc = *m.Location
		}
		pos := strconv.Itoa(loc)
		if loc == len(pep.PeptideSequence)+1 {
			pos = "c"
		}

		what := m.MonoisotopicMassDelta
		if what == "" {
			for _, cv := range m.CvPar {
				if cv.Name != "" {
					what = cv.Name
					break
				}
			}
		}
		if what == "" {
			continue
		}
		parts = append(parts, what+"@"+pos)
	}
	return strings.Join(parts, ";")
}

// retentionTime returns the retention time in seconds. There are multiple
// CV terms that can be used to report it; in order of decreasing preference:
// MS:1000016 scan start time, MS:1000894 retention time, MS:1000826 elution
// time, MS:1001114 retention time (deprecated).
func retentionTime(params []cvParam) (float64, bool, error) {
	prio := math.MaxInt32
	rt := 0.0
	found := false
	for _, cv := range params {
		p := 0
		switch cv.Accession {
		case "MS:1000016":
			p = 1
		case "MS:1000894":
			p = 2
		case "MS:1000826":
			p = 3
		case "MS:1001114":
			p = 4
		default:
			continue
		}
		if p >= prio {
			continue
		}
		v, err := strconv.ParseFloat(cv.Value, 64)
		if err != nil {
			return 0, false, err
		}
		// Minutes, otherwise assume seconds
		if cv.UnitAccession == "UO:0000031" || cv.UnitAccession == "MS:1000038" {
			v *= 60
		}
		prio = p
		rt = v
		found = true
	}
	return rt, found, nil
}
