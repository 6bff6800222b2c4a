// Package sanitize assembles PSMs into the canonical output table and
// normalizes its columns, types and auxiliary fields.
package sanitize

// Kind is the value type of a column.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
)

// Canonical column names.
const (
	ColSpectrumID      = "Spectrum ID"
	ColSpectrumTitle   = "Spectrum Title"
	ColSequence        = "Sequence"
	ColModifications   = "Modifications"
	ColCharge          = "Charge"
	ColProteinID       = "Protein ID"
	ColRetentionTime   = "Retention Time (s)"
	ColExpMZ           = "Exp m/z"
	ColCalcMZ          = "Calc m/z"
	ColUCalcMZ         = "uCalc m/z"
	ColUCalcMass       = "uCalc Mass"
	ColAccuracy        = "Accuracy (ppm)"
	ColSequenceStart   = "Sequence Start"
	ColSequenceStop    = "Sequence Stop"
	ColSequencePre     = "Sequence Pre AA"
	ColSequencePost    = "Sequence Post AA"
	ColSearchEngine    = "Search Engine"
	ColRawDataLocation = "Raw data location"
	ColRank            = "rank"
	ColEnzN            = "enzn"
	ColEnzC            = "enzc"
	ColMissedCleavages = "missed_cleavages"
	ColIsDecoy         = "is_decoy"
	ColIsImmutable     = "is_immutable"
)

// Columns is the canonical column order. Engine specific columns follow,
// sorted by name.
var Columns = []string{
	ColSpectrumID,
	ColSpectrumTitle,
	ColSequence,
	ColModifications,
	ColCharge,
	ColProteinID,
	ColRetentionTime,
	ColExpMZ,
	ColCalcMZ,
	ColUCalcMZ,
	ColUCalcMass,
	ColAccuracy,
	ColSequenceStart,
	ColSequenceStop,
	ColSequencePre,
	ColSequencePost,
	ColSearchEngine,
	ColRawDataLocation,
	ColRank,
	ColEnzN,
	ColEnzC,
	ColMissedCleavages,
	ColIsDecoy,
	ColIsImmutable,
}

// Dtypes maps canonical columns to their value type. Columns not listed,
// including engine specific ones, are strings.
var Dtypes = map[string]Kind{
	ColCharge:          Int,
	ColRetentionTime:   Float,
	ColExpMZ:           Float,
	ColCalcMZ:          Float,
	ColUCalcMZ:         Float,
	ColUCalcMass:       Float,
	ColAccuracy:        Float,
	ColRank:            Int,
	ColEnzN:            Bool,
	ColEnzC:            Bool,
	ColMissedCleavages: Int,
	ColIsDecoy:         Bool,
	ColIsImmutable:     Bool,
}

// Defaults are the fill values of canonical columns absent from a table.
// Columns not listed are filled with the empty (null) value.
var Defaults = map[string]string{
	ColIsDecoy:     "false",
	ColIsImmutable: "false",
}

var canonical = func() map[string]bool {
	m := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

// IsCanonical reports whether name is a canonical column.
func IsCanonical(name string) bool { return canonical[name] }
