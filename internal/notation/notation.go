// Package notation parses free-text set notation such as "264.55x5 @6" or
// "100kg x5 x3" into load, reps, RPE and a repeat count.
//
// Parsing never fails outright. A field that cannot be read is left nil and
// an Issue records why, so callers check for absence before arithmetic.
package notation

import (
	"errors"
	"strconv"
	"strings"

	"github.com/claude/liftlog/internal/units"
)

// Field names a part of a set token.
type Field string

const (
	FieldLoad     Field = "load"
	FieldReps     Field = "reps"
	FieldRPE      Field = "rpe"
	FieldRepeat   Field = "repeat"
	FieldTrailing Field = "trailing"
)

var (
	ErrNoLoad      = errors.New("no load before separator")
	ErrNoSeparator = errors.New("no reps separator")
	ErrNoReps      = errors.New("no reps after separator")
	ErrBadRPE      = errors.New("no number after @")
	ErrZeroRepeat  = errors.New("repeat count is zero, set dropped")
	ErrLongRepeat  = errors.New("repeat count reads one digit")
	ErrTrailing    = errors.New("unrecognized trailing text")
)

// Issue explains why a field is absent or was ignored.
type Issue struct {
	Field Field
	Err   error
}

func (i Issue) Error() string {
	return string(i.Field) + ": " + i.Err.Error()
}

func (i Issue) Unwrap() error { return i.Err }

// Set is one parsed set. Nil fields were absent from the notation.
type Set struct {
	Load   *float64 `json:"load"`
	Reps   *int     `json:"reps"`
	RPE    *float64 `json:"rpe"`
	Repeat int      `json:"repeat"`
	Unit   string   `json:"unit,omitempty"`
	Issues []Issue  `json:"-"`

	loadText string
	rpeText  string
}

// Complete reports whether load and reps are both present.
func (s Set) Complete() bool {
	return s.Load != nil && s.Reps != nil
}

// Has reports whether an issue was recorded for f.
func (s Set) Has(f Field) bool {
	for _, is := range s.Issues {
		if is.Field == f {
			return true
		}
	}
	return false
}

// Err joins all issues, or returns nil for a clean parse.
func (s Set) Err() error {
	if len(s.Issues) == 0 {
		return nil
	}
	errs := make([]error, len(s.Issues))
	for i, is := range s.Issues {
		errs[i] = is
	}
	return errors.Join(errs...)
}

// Canonical renders the set the way it is stored in a workout's work list:
// "<load>x<reps>" with an optional " @<rpe>". Units and the repeat suffix are
// dropped. Incomplete sets render as an empty string.
func (s Set) Canonical() string {
	if !s.Complete() {
		return ""
	}
	var b strings.Builder
	b.WriteString(s.loadText)
	b.WriteByte('x')
	b.WriteString(strconv.Itoa(*s.Reps))
	if s.RPE != nil {
		b.WriteString(" @")
		b.WriteString(s.rpeText)
	}
	return b.String()
}

// ParseSet parses a single set token. With convertToKg the load is taken to
// be in pounds and converted to kilograms.
func ParseSet(token string, convertToKg bool) Set {
	toks := lex(token)
	p := &parser{toks: toks}
	s := p.item()
	if p.pos < len(toks) {
		s.Issues = append(s.Issues, Issue{Field: FieldTrailing, Err: ErrTrailing})
	}
	if convertToKg && s.Load != nil {
		kg := units.LbToKg(*s.Load)
		s.Load = &kg
	}
	return s
}

// ParseItems scans a line of comma or space separated items and returns every
// item that has at least a load, a separator and reps. Anything else on the
// line is skipped.
func ParseItems(text string) []Set {
	p := &parser{toks: lex(text)}
	var sets []Set
	for p.pos < len(p.toks) {
		if p.peek().kind != tokNumber {
			p.pos++
			continue
		}
		start := p.pos
		s := p.item()
		if !s.Complete() {
			p.pos = start + 1
			continue
		}
		sets = append(sets, s)
	}
	return sets
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokOther}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(off int) (token, bool) {
	if p.pos+off >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos+off], true
}

// item parses <load>[unit] x <reps> [@rpe] [x <repeat>] [@rpe].
func (p *parser) item() Set {
	s := Set{Repeat: 1}

	var load *float64
	if p.peek().kind == tokNumber {
		text := p.decimal(false)
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			load = &v
			s.loadText = text
		}
	}
	if p.pos < len(p.toks) && p.peek().kind == tokWord {
		if u, ok := unitOf(p.peek().text); ok {
			s.Unit = u
			p.pos++
		}
	}

	if p.pos >= len(p.toks) || p.peek().kind != tokSep {
		s.Issues = append(s.Issues,
			Issue{Field: FieldLoad, Err: ErrNoSeparator},
			Issue{Field: FieldReps, Err: ErrNoSeparator})
		p.rpe(&s)
		return s
	}
	p.pos++
	if load == nil {
		s.Issues = append(s.Issues, Issue{Field: FieldLoad, Err: ErrNoLoad})
	}
	s.Load = load

	if p.pos < len(p.toks) && p.peek().kind == tokNumber {
		n, _ := strconv.Atoi(p.peek().text)
		s.Reps = &n
		p.pos++
	} else {
		s.Issues = append(s.Issues, Issue{Field: FieldReps, Err: ErrNoReps})
	}

	p.rpe(&s)
	p.repeat(&s)
	if s.RPE == nil {
		p.rpe(&s)
	}
	return s
}

// decimal reads a number with an optional fraction written directly after a
// comma or period. For RPE a fraction that is itself followed by a separator
// or unit starts the next item instead.
func (p *parser) decimal(rpe bool) string {
	text := p.peek().text
	p.pos++
	point, ok1 := p.peekAt(0)
	frac, ok2 := p.peekAt(1)
	if !ok1 || !ok2 || point.kind != tokPoint || point.space || frac.kind != tokNumber || frac.space {
		return text
	}
	if rpe {
		if next, ok := p.peekAt(2); ok && (next.kind == tokSep || next.kind == tokWord) {
			return text
		}
		if len(frac.text) > 2 {
			return text
		}
	}
	p.pos += 2
	return text + "." + frac.text
}

func (p *parser) rpe(s *Set) {
	if p.pos >= len(p.toks) || p.peek().kind != tokAt {
		return
	}
	p.pos++
	if p.pos >= len(p.toks) || p.peek().kind != tokNumber {
		s.Issues = append(s.Issues, Issue{Field: FieldRPE, Err: ErrBadRPE})
		return
	}
	text := p.decimal(true)
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		s.Issues = append(s.Issues, Issue{Field: FieldRPE, Err: ErrBadRPE})
		return
	}
	s.RPE = &v
	s.rpeText = text
}

func (p *parser) repeat(s *Set) {
	sep, ok1 := p.peekAt(0)
	n, ok2 := p.peekAt(1)
	if !ok1 || !ok2 || sep.kind != tokSep || n.kind != tokNumber {
		return
	}
	// "x3" directly followed by another separator is a new item's load.
	if next, ok := p.peekAt(2); ok && (next.kind == tokSep || (next.kind == tokWord && isUnit(next.text))) {
		return
	}
	p.pos += 2
	// Only the digit right after the trailing separator is the count.
	s.Repeat = int(n.text[0] - '0')
	if len(n.text) > 1 {
		s.Issues = append(s.Issues, Issue{Field: FieldRepeat, Err: ErrLongRepeat})
	}
	if s.Repeat == 0 {
		s.Issues = append(s.Issues, Issue{Field: FieldRepeat, Err: ErrZeroRepeat})
	}
}

func unitOf(word string) (string, bool) {
	switch strings.ToLower(word) {
	case "kg", "kgs":
		return "kg", true
	case "lb", "lbs":
		return "lb", true
	}
	return "", false
}

func isUnit(word string) bool {
	_, ok := unitOf(word)
	return ok
}
