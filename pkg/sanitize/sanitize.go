package sanitize

import (
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// RawDataLocation returns the raw file of a PSM. A blank location is derived
// from the spectrum title ("file.123.123.2" -> "file"), and ".mgf" files are
// rewritten to ".mzML".
func RawDataLocation(location, title string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		title = strings.TrimSpace(title)
		if title == "" {
			return ""
		}
		if i := strings.IndexByte(title, '.'); i > 0 {
			title = title[:i]
		}
		location = title + ".mzML"
	}

	ext := filepath.Ext(location)
	if strings.EqualFold(ext, ".mgf") {
		location = strings.TrimSuffix(location, ext) + ".mzML"
	}
	return location
}

// CleanModifications drops unnamed and repeated (name, position) tokens and
// sorts the rest by position. Equal positions keep their relative order.
func CleanModifications(mods []core.Modification) []core.Modification {
	type site struct {
		name string
		pos  int
	}
	seen := make(map[site]bool, len(mods))
	out := make([]core.Modification, 0, len(mods))
	for _, m := range mods {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		s := site{m.Name, m.Position}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// PSM normalizes the auxiliary fields of p in place.
func PSM(p *core.PSM) {
	p.Sequence = strings.ToUpper(strings.TrimSpace(p.Sequence))
	p.RawDataLocation = RawDataLocation(p.RawDataLocation, p.SpectrumTitle)
	p.Modifications = CleanModifications(p.Modifications)
}

// cleanModString applies CleanModifications to a serialized annotation.
// Annotations that do not parse are returned trimmed but otherwise untouched.
func cleanModString(s string) string {
	mods, err := core.ParseModifications(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return core.FormatModifications(CleanModifications(mods))
}

// FormatValue renders a value of the given kind canonically. Values that do
// not parse as the kind become empty.
func FormatValue(kind Kind, v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	switch kind {
	case Int:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return ""
		}
		return strconv.FormatInt(int64(math.Round(f)), 10)
	case Float:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return ""
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case Bool:
		switch strings.ToLower(v) {
		case "true", "1", "t", "yes":
			return "true"
		case "false", "0", "f", "no":
			return "false"
		}
		return ""
	}
	return v
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

// Values returns the canonical column values of p.
func Values(p *core.PSM) map[string]string {
	return map[string]string{
		ColSpectrumID:      p.SpectrumID,
		ColSpectrumTitle:   p.SpectrumTitle,
		ColSequence:        p.Sequence,
		ColModifications:   p.ModString(),
		ColCharge:          strconv.Itoa(p.Charge),
		ColProteinID:       p.ProteinID,
		ColRetentionTime:   formatFloat(p.RetentionTime),
		ColExpMZ:           formatFloat(&p.ExpMZ),
		ColCalcMZ:          formatFloat(p.CalcMZ),
		ColUCalcMZ:         formatFloat(p.UCalcMZ),
		ColUCalcMass:       formatFloat(p.UCalcMass),
		ColAccuracy:        formatFloat(p.AccuracyPPM),
		ColSequenceStart:   p.SequenceStart,
		ColSequenceStop:    p.SequenceStop,
		ColSequencePre:     p.SequencePre,
		ColSequencePost:    p.SequencePost,
		ColSearchEngine:    p.SearchEngine,
		ColRawDataLocation: p.RawDataLocation,
		ColRank:            formatInt(p.Rank),
		ColEnzN:            formatBool(p.EnzN),
		ColEnzC:            formatBool(p.EnzC),
		ColMissedCleavages: formatInt(p.MissedCleavages),
		ColIsDecoy:         strconv.FormatBool(p.IsDecoy),
		ColIsImmutable:     strconv.FormatBool(p.IsImmutable),
	}
}
