// Package resolve turns engine-specific modification annotations into
// canonical named modifications with resolved positions.
package resolve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ChrisMcGann/psmnorm/pkg/position"
)

// Notation names a raw modification annotation style.
type Notation string

const (
	// NotationAt is "name-or-mass@[AA]pos;..." with pos 0 for the N-terminus.
	NotationAt Notation = "at"
	// NotationBracket is a modified sequence such as "n[42.0106]PEPM[15.9949]K".
	NotationBracket Notation = "bracket"
	// NotationColon is "Name:pos;..." with pos 0 for the N-terminus.
	NotationColon Notation = "colon"
)

// Observed is one modification as reported by an engine, before resolution.
type Observed struct {
	Name     string
	Mass     decimal.Decimal
	HasMass  bool
	Position int // engine-local residue index unless Terminal is set
	Terminal position.Terminal
	Token    string
}

// ParseNotation splits a raw annotation into observed modifications. It
// returns the unmodified sequence, which for bracket notation is derived
// from raw rather than taken from sequence.
func ParseNotation(n Notation, raw, sequence string) ([]Observed, string, error) {
	switch n {
	case NotationAt, "":
		obs, err := parseSeparated(raw, "@", false)
		return obs, sequence, err
	case NotationColon:
		obs, err := parseSeparated(raw, ":", true)
		return obs, sequence, err
	case NotationBracket:
		return parseBracket(raw)
	default:
		return nil, sequence, fmt.Errorf("unknown modification notation '%s'", n)
	}
}

// parseSeparated handles "X@pos" and "X:pos" tokens separated by ';'. With
// last set, the separator is searched from the right so names may contain it.
func parseSeparated(raw, sep string, last bool) ([]Observed, error) {
	var out []Observed
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idx := strings.Index(part, sep)
		if last {
			idx = strings.LastIndex(part, sep)
		}
		if idx <= 0 || idx == len(part)-1 {
			return nil, fmt.Errorf("invalid modification format '%s', expected 'name%spos' or 'mass%spos'", part, sep, sep)
		}

		obs, err := observe(strings.TrimSpace(part[:idx]), part)
		if err != nil {
			return nil, err
		}
		obs.Position, obs.Terminal, err = parsePosition(strings.TrimSpace(part[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("invalid position in '%s': %w", part, err)
		}
		out = append(out, obs)
	}
	return out, nil
}

// observe classifies a token as mass delta or name.
func observe(nameOrMass, token string) (Observed, error) {
	obs := Observed{Token: token}
	if nameOrMass == "" {
		return obs, fmt.Errorf("empty modification in '%s'", token)
	}
	if m, err := decimal.NewFromString(strings.TrimPrefix(nameOrMass, "+")); err == nil {
		obs.Mass = m
		obs.HasMass = true
		return obs, nil
	}
	obs.Name = nameOrMass
	return obs, nil
}

// parsePosition parses a position that may carry a residue letter or a
// terminal marker. Examples: "2", "C2", "N-term", "c", "R-1" (N-terminal).
func parsePosition(posStr string) (int, position.Terminal, error) {
	switch strings.ToLower(posStr) {
	case "n", "nterm", "n-term", "n_term", "prot-n-term":
		return 0, position.NTerminus, nil
	case "c", "cterm", "c-term", "c_term", "prot-c-term":
		return 0, position.CTerminus, nil
	}
	if posStr == "-1" || strings.HasSuffix(posStr, "-1") {
		return 0, position.NTerminus, nil
	}

	posStr = strings.TrimLeft(posStr, "ACDEFGHIKLMNOPQRSTUVWY")
	pos, err := strconv.Atoi(posStr)
	if err != nil {
		return 0, position.Residue, fmt.Errorf("invalid position number: %w", err)
	}
	return pos, position.Residue, nil
}

// parseBracket parses modified sequences. A bracket binds to the residue
// before it; brackets before the first residue, after a leading 'n', or
// after a trailing 'c' or '-' bind to the corresponding terminus.
func parseBracket(raw string) ([]Observed, string, error) {
	s := strings.TrimSpace(raw)
	// Strip flanking residues, e.g. "K.PEPTIDE.R"
	if len(s) > 4 && s[1] == '.' && s[len(s)-2] == '.' {
		s = s[2 : len(s)-2]
	}

	var (
		seq     []byte
		out     []Observed
		pending = position.Residue
	)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			seq = append(seq, ch)
			pending = position.Residue
		case ch == 'n' && len(seq) == 0:
			pending = position.NTerminus
		case ch == 'c' && len(seq) > 0:
			pending = position.CTerminus
		case ch == '-' || ch == '.':
			if len(seq) == 0 {
				pending = position.NTerminus
			} else {
				pending = position.CTerminus
			}
		case ch == '[' || ch == '(' || ch == '{':
			closing := map[byte]byte{'[': ']', '(': ')', '{': '}'}[ch]
			end := strings.IndexByte(s[i+1:], closing)
			if end < 0 {
				return nil, "", fmt.Errorf("unterminated modification in '%s'", raw)
			}
			content := s[i+1 : i+1+end]
			obs, err := observe(strings.TrimSpace(content), content)
			if err != nil {
				return nil, "", err
			}
			switch {
			case pending == position.NTerminus || len(seq) == 0:
				obs.Terminal = position.NTerminus
			case pending == position.CTerminus:
				obs.Terminal = position.CTerminus
			default:
				obs.Position = len(seq)
			}
			out = append(out, obs)
			i += end + 1
		case ch == ' ':
		default:
			return nil, "", fmt.Errorf("unexpected character '%c' in modified sequence '%s'", ch, raw)
		}
	}

	return out, string(seq), nil
}
