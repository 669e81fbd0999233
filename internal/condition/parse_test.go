package condition

import "testing"

func TestParseWellFormedReply(t *testing.T) {
	got := Parse("Category: Positive\nReason: Updated kitchen with new appliances.")
	if got.Category != Positive {
		t.Errorf("expected Positive, got %q", got.Category)
	}
	if got.Reason != "Updated kitchen with new appliances." {
		t.Errorf("unexpected reason %q", got.Reason)
	}
}

func TestParseLastMatchWins(t *testing.T) {
	got := Parse("Category: Negative\nReason: old\nCategory: Positive\nReason: new")
	if got.Category != Positive {
		t.Errorf("expected Positive, got %q", got.Category)
	}
	if got.Reason != "new" {
		t.Errorf("expected reason 'new', got %q", got.Reason)
	}
}

func TestParseCaseInsensitivePrefixes(t *testing.T) {
	got := Parse("CATEGORY: mixed opinion\nreason:   Livable but dated.  ")
	if got.Category != MixedOpinion {
		t.Errorf("expected Mixed Opinion, got %q", got.Category)
	}
	if got.Reason != "Livable but dated." {
		t.Errorf("expected trimmed reason, got %q", got.Reason)
	}
}

func TestParseScansPastPreamble(t *testing.T) {
	reply := "Sure, here is the classification.\n\nCategory: Negative\nReason: Roof leaks: water damage in ceiling."
	got := Parse(reply)
	if got.Category != Negative {
		t.Errorf("expected Negative, got %q", got.Category)
	}
	// Only the first colon separates the label from the value.
	if got.Reason != "Roof leaks: water damage in ceiling." {
		t.Errorf("unexpected reason %q", got.Reason)
	}
}

func TestParseReasonIsNotTitleCased(t *testing.T) {
	got := Parse("Category: negative\nReason: broken windows")
	if got.Reason != "broken windows" {
		t.Errorf("expected verbatim reason, got %q", got.Reason)
	}
}

func TestParseCRLF(t *testing.T) {
	got := Parse("Category: Positive\r\nReason: Clean.\r\n")
	if got.Category != Positive || got.Reason != "Clean." {
		t.Errorf("unexpected parse %+v", got)
	}
}

func TestParseOtherLineBreaks(t *testing.T) {
	for _, sep := range []string{"\v", "\f", "\x1c", "\x1d", "\x1e", "\u0085", "\u2028", "\u2029"} {
		got := Parse("Category: Negative" + sep + "Reason: Roof leaks.")
		if got.Category != Negative || got.Reason != "Roof leaks." {
			t.Errorf("separator %q: unexpected parse %+v", sep, got)
		}
	}
}

func TestParseMissingFields(t *testing.T) {
	got := Parse("Reason: only a reason")
	if got.Category != NoRelevantInformation {
		t.Errorf("expected default category, got %q", got.Category)
	}

	got = Parse("Category: Positive")
	if got.Reason != DefaultReason {
		t.Errorf("expected default reason, got %q", got.Reason)
	}

	got = Parse("Category:\nReason:")
	if got != DefaultResponse() {
		t.Errorf("expected defaults for empty values, got %+v", got)
	}
}

func TestParseIndentedLinesDoNotMatch(t *testing.T) {
	got := Parse("Category: Positive\n   Category: Negative")
	if got.Category != Positive {
		t.Errorf("expected indented line to be ignored, got %q", got.Category)
	}
}

func TestParseNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t  ",
		"no structure at all",
		"\x00\xff\xfe binary \x01",
		"category",
		"reason",
		":::",
		"Category:\xff\xfe",
	}
	for _, in := range inputs {
		got := Parse(in)
		if got.Reason == "" {
			t.Errorf("Parse(%q) returned empty reason", in)
		}
		if got.Category == "" {
			t.Errorf("Parse(%q) returned empty category", in)
		}
	}
	if got := Parse(""); got != DefaultResponse() {
		t.Errorf("expected default response for empty input, got %+v", got)
	}
}
