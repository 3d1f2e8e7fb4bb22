package notation

import (
	"errors"
	"testing"
)

// TestParseSetPlain verifies a load x reps token with no RPE.
func TestParseSetPlain(t *testing.T) {
	s := ParseSet("308.65x1", false)
	if s.Load == nil || *s.Load != 308.65 {
		t.Errorf("load = %v, want 308.65", s.Load)
	}
	if s.Reps == nil || *s.Reps != 1 {
		t.Errorf("reps = %v, want 1", s.Reps)
	}
	if s.RPE != nil {
		t.Errorf("rpe = %v, want nil", *s.RPE)
	}
	if err := s.Err(); err != nil {
		t.Errorf("unexpected issues: %v", err)
	}
}

// TestParseSetWithRPE verifies the optional @rpe suffix after whitespace.
func TestParseSetWithRPE(t *testing.T) {
	s := ParseSet("264.55x5 @6", false)
	if s.Load == nil || *s.Load != 264.55 {
		t.Errorf("load = %v, want 264.55", s.Load)
	}
	if s.Reps == nil || *s.Reps != 5 {
		t.Errorf("reps = %v, want 5", s.Reps)
	}
	if s.RPE == nil || *s.RPE != 6.0 {
		t.Errorf("rpe = %v, want 6", s.RPE)
	}
}

// TestParseSetConvertToKg verifies pound loads are converted with one digit.
func TestParseSetConvertToKg(t *testing.T) {
	s := ParseSet("308.65x1", true)
	if s.Load == nil || *s.Load != 140.0 {
		t.Errorf("load = %v, want 140.0", s.Load)
	}
}

// TestParseSetCommaDecimal verifies European decimals and unit markers in loads and RPE.
func TestParseSetCommaDecimal(t *testing.T) {
	s := ParseSet("102,5 kg x 3 @ 8,5", false)
	if s.Load == nil || *s.Load != 102.5 {
		t.Errorf("load = %v, want 102.5", s.Load)
	}
	if s.Unit != "kg" {
		t.Errorf("unit = %q, want kg", s.Unit)
	}
	if s.RPE == nil || *s.RPE != 8.5 {
		t.Errorf("rpe = %v, want 8.5", s.RPE)
	}
	if got := s.Canonical(); got != "102.5x3 @8.5" {
		t.Errorf("Canonical() = %q", got)
	}
}

// TestParseSetAbsence verifies missing fields are nil and each absence is explained.
func TestParseSetAbsence(t *testing.T) {
	s := ParseSet("100", false)
	if s.Load != nil || s.Reps != nil {
		t.Errorf("load/reps = %v/%v, want nil/nil", s.Load, s.Reps)
	}
	if !s.Has(FieldLoad) || !s.Has(FieldReps) {
		t.Errorf("issues = %v, want load and reps", s.Issues)
	}
	if !errors.Is(s.Err(), ErrNoSeparator) {
		t.Errorf("Err() = %v, want ErrNoSeparator", s.Err())
	}

	s = ParseSet("x5", false)
	if s.Load != nil {
		t.Errorf("load = %v, want nil", *s.Load)
	}
	if s.Reps == nil || *s.Reps != 5 {
		t.Errorf("reps = %v, want 5", s.Reps)
	}
	if !errors.Is(s.Err(), ErrNoLoad) {
		t.Errorf("Err() = %v, want ErrNoLoad", s.Err())
	}

	s = ParseSet("100x", false)
	if s.Reps != nil || !errors.Is(s.Err(), ErrNoReps) {
		t.Errorf("reps = %v err = %v, want nil and ErrNoReps", s.Reps, s.Err())
	}

	s = ParseSet("100x5 @", false)
	if s.RPE != nil || !errors.Is(s.Err(), ErrBadRPE) {
		t.Errorf("rpe = %v err = %v, want nil and ErrBadRPE", s.RPE, s.Err())
	}

	s = ParseSet("", false)
	if s.Load != nil || s.Reps != nil || s.RPE != nil {
		t.Error("empty token should parse to all-nil fields")
	}
}

// TestParseSetRPEWithoutSeparator verifies RPE is still read when reps are missing.
func TestParseSetRPEWithoutSeparator(t *testing.T) {
	s := ParseSet("100 @8", false)
	if s.RPE == nil || *s.RPE != 8 {
		t.Errorf("rpe = %v, want 8", s.RPE)
	}
	if s.Load != nil {
		t.Errorf("load = %v, want nil without separator", *s.Load)
	}
}

// TestParseSetTrailing verifies unknown trailing text is flagged but fields survive.
func TestParseSetTrailing(t *testing.T) {
	s := ParseSet("100x5 easy", false)
	if !s.Complete() {
		t.Fatal("expected complete set")
	}
	if !errors.Is(s.Err(), ErrTrailing) {
		t.Errorf("Err() = %v, want ErrTrailing", s.Err())
	}
}

// TestParseItemsRepeat verifies the repeated-set shorthand is captured as a count.
func TestParseItemsRepeat(t *testing.T) {
	sets := ParseItems("100kg x5 x3")
	if len(sets) != 1 {
		t.Fatalf("items = %d, want 1", len(sets))
	}
	if sets[0].Repeat != 3 {
		t.Errorf("repeat = %d, want 3", sets[0].Repeat)
	}
	if got := sets[0].Canonical(); got != "100x5" {
		t.Errorf("Canonical() = %q, want 100x5", got)
	}
}

// TestParseItemsRepeatDigit verifies only the digit right after the trailing
// x is read as the count, and that x0 drops the set.
func TestParseItemsRepeatDigit(t *testing.T) {
	tests := []struct {
		in     string
		repeat int
		err    error
	}{
		{"100kg x5 x12", 1, ErrLongRepeat},
		{"100kg x5 x47", 4, ErrLongRepeat},
		{"100kg x5 x0", 0, ErrZeroRepeat},
	}
	for _, tt := range tests {
		sets := ParseItems(tt.in)
		if len(sets) != 1 {
			t.Fatalf("%s: items = %d, want 1", tt.in, len(sets))
		}
		if sets[0].Repeat != tt.repeat {
			t.Errorf("%s: repeat = %d, want %d", tt.in, sets[0].Repeat, tt.repeat)
		}
		if !errors.Is(sets[0].Err(), tt.err) {
			t.Errorf("%s: Err() = %v, want %v", tt.in, sets[0].Err(), tt.err)
		}
	}
}

// TestParseItemsList verifies comma separated items, including RPE and repeats in both orders.
func TestParseItemsList(t *testing.T) {
	sets := ParseItems("100x5, 105x3 @8, 110x2x2 @9,5, 60kgx10")
	want := []struct {
		canonical string
		repeat    int
	}{
		{"100x5", 1},
		{"105x3 @8", 1},
		{"110x2 @9.5", 2},
		{"60x10", 1},
	}
	if len(sets) != len(want) {
		t.Fatalf("items = %d, want %d", len(sets), len(want))
	}
	for i, w := range want {
		if got := sets[i].Canonical(); got != w.canonical {
			t.Errorf("item %d = %q, want %q", i, got, w.canonical)
		}
		if sets[i].Repeat != w.repeat {
			t.Errorf("item %d repeat = %d, want %d", i, sets[i].Repeat, w.repeat)
		}
	}
}

// TestParseItemsNoSpaceAfterComma verifies a comma after integer reps separates items.
func TestParseItemsNoSpaceAfterComma(t *testing.T) {
	sets := ParseItems("100x5,105x3")
	if len(sets) != 2 {
		t.Fatalf("items = %d, want 2", len(sets))
	}
	if sets[1].Canonical() != "105x3" {
		t.Errorf("second item = %q", sets[1].Canonical())
	}
}

// TestParseItemsSkipsNoise verifies free text between items is ignored.
func TestParseItemsSkipsNoise(t *testing.T) {
	sets := ParseItems("warmup 20, then 140x3 felt heavy")
	if len(sets) != 1 || sets[0].Canonical() != "140x3" {
		t.Errorf("items = %+v, want [140x3]", sets)
	}
}

// TestCanonicalIncomplete verifies incomplete sets have no canonical form.
func TestCanonicalIncomplete(t *testing.T) {
	if got := ParseSet("100", false).Canonical(); got != "" {
		t.Errorf("Canonical() = %q, want empty", got)
	}
}

// TestCanonicalRoundTrip verifies a canonical string parses back to the same fields.
func TestCanonicalRoundTrip(t *testing.T) {
	for _, in := range []string{"100kg x5 @7", "102,5x3", "60 x 12 @ 9,5"} {
		a := ParseSet(in, false)
		b := ParseSet(a.Canonical(), false)
		if *a.Load != *b.Load || *a.Reps != *b.Reps {
			t.Errorf("%q: %v/%v != %v/%v", in, *a.Load, *a.Reps, *b.Load, *b.Reps)
		}
		if (a.RPE == nil) != (b.RPE == nil) || (a.RPE != nil && *a.RPE != *b.RPE) {
			t.Errorf("%q: rpe mismatch", in)
		}
	}
}
