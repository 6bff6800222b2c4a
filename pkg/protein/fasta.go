// Package protein maps peptides onto protein sequences to recover their
// coordinates, flanking residues and accessions.
package protein

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// Terminus is the flanking residue reported at a protein end.
const Terminus = "-"

// Match is one occurrence of a peptide in a protein. Start and End are
// 1-based and inclusive.
type Match struct {
	Start     int
	End       int
	Pre       string
	Post      string
	ProteinID string
}

// Mapper looks up protein occurrences of peptide sequences.
type Mapper interface {
	MapPeptides(sequences []string) map[string][]Match
}

// Protein is one FASTA record.
type Protein struct {
	ID  string
	Seq []byte
}

// FastaMapper scans an in-memory protein database.
type FastaMapper struct {
	proteins []Protein
}

// Open reads a FASTA file; ".gz" files are decompressed.
func Open(path string) (*FastaMapper, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FASTA file: %w", err)
	}
	defer fh.Close()

	var r io.Reader = fh
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gr.Close()
		r = gr
	}
	return Load(r)
}

// Load reads FASTA records. The accession is the first word of the header.
func Load(r io.Reader) (*FastaMapper, error) {
	m := &FastaMapper{}
	br := bufio.NewReader(r)
	var cur *Protein

	for {
		line, err := br.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading FASTA: %w", err)
		}
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
		case line[0] == '>':
			fields := strings.Fields(string(line[1:]))
			if len(fields) == 0 {
				return nil, fmt.Errorf("FASTA header without accession")
			}
			m.proteins = append(m.proteins, Protein{ID: fields[0]})
			cur = &m.proteins[len(m.proteins)-1]
		case cur == nil:
			return nil, fmt.Errorf("FASTA sequence before first header")
		default:
			cur.Seq = append(cur.Seq, bytes.ToUpper(line)...)
		}
		if err == io.EOF {
			break
		}
	}
	return m, nil
}

// Len returns the number of proteins.
func (m *FastaMapper) Len() int { return len(m.proteins) }

// MapPeptides returns every occurrence of each sequence, in database order.
// Sequences without a match are absent from the result.
func (m *FastaMapper) MapPeptides(sequences []string) map[string][]Match {
	out := make(map[string][]Match, len(sequences))
	for _, seq := range sequences {
		seq = strings.ToUpper(seq)
		if seq == "" {
			continue
		}
		if _, done := out[seq]; done {
			continue
		}
		pep := []byte(seq)
		var matches []Match
		for _, p := range m.proteins {
			from := 0
			for {
				i := bytes.Index(p.Seq[from:], pep)
				if i < 0 {
					break
				}
				start := from + i
				end := start + len(pep)
				match := Match{Start: start + 1, End: end, Pre: Terminus, Post: Terminus, ProteinID: p.ID}
				if start > 0 {
					match.Pre = string(p.Seq[start-1])
				}
				if end < len(p.Seq) {
					match.Post = string(p.Seq[end])
				}
				matches = append(matches, match)
				from = start + 1
			}
		}
		if len(matches) > 0 {
			out[seq] = matches
		}
	}
	return out
}

// Annotate fills the protein fields of p that the reader left blank. Multiple
// matches are joined with delimiter.
func Annotate(p *core.PSM, matches []Match, delimiter string) {
	if len(matches) == 0 {
		return
	}
	var ids, starts, stops, pres, posts []string
	for _, m := range matches {
		ids = append(ids, m.ProteinID)
		starts = append(starts, strconv.Itoa(m.Start))
		stops = append(stops, strconv.Itoa(m.End))
		pres = append(pres, m.Pre)
		posts = append(posts, m.Post)
	}

	fill := func(dst *string, values []string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = strings.Join(values, delimiter)
		}
	}
	fill(&p.ProteinID, ids)
	fill(&p.SequenceStart, starts)
	fill(&p.SequenceStop, stops)
	fill(&p.SequencePre, pres)
	fill(&p.SequencePost, posts)
}
