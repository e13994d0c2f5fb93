package applog

import (
	"log/slog"
	"strings"
	"testing"
)

func stringValue(s string) slog.Value { return slog.StringValue(s) }

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestWrapSegments_WrapsForNarrowWidth(t *testing.T) {
	t.Parallel()

	s1 := strings.Repeat("a", 20)
	s2 := strings.Repeat("b", 20)
	s3 := strings.Repeat("c", 20)

	lines := wrapSegments(
		[]string{s1, s2, s3},
		" | ",
		60,
		"-> ",
	)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d (%v)", len(lines), lines)
	}
	if lines[0] != s1+" | "+s2 {
		t.Fatalf("line[0]=%q want %q", lines[0], s1+" | "+s2)
	}
	if lines[1] != "-> "+s3 {
		t.Fatalf("line[1]=%q want %q", lines[1], "-> "+s3)
	}
}

func TestWrapSegments_TruncatesLongSegment(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 80)

	lines := wrapSegments(
		[]string{long},
		" | ",
		60,
		"-> ",
	)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if visualLen(lines[0]) > 60 {
		t.Fatalf("line too wide: %q (visualLen=%d)", lines[0], visualLen(lines[0]))
	}
	if !strings.Contains(lines[0], "…") {
		t.Fatalf("expected truncation marker in %q", lines[0])
	}
}

func TestTerminalWidth_PrefersExplicitOverride(t *testing.T) {
	h := &prettyHandler{}

	t.Setenv("STAR_LOG_WIDTH", "88")
	t.Setenv("COLUMNS", "132")
	if got := h.terminalWidth(); got != 88 {
		t.Fatalf("terminalWidth()=%d want 88", got)
	}
}

func TestTerminalWidth_UsesColumnsWhenOverrideMissing(t *testing.T) {
	h := &prettyHandler{}

	t.Setenv("STAR_LOG_WIDTH", "")
	t.Setenv("COLUMNS", "72")
	if got := h.terminalWidth(); got != 72 {
		t.Fatalf("terminalWidth()=%d want 72", got)
	}
}

func TestHasField(t *testing.T) {
	t.Parallel()

	fields := []prettyField{{key: "identity"}, {key: "err"}}
	if !hasField(fields, "identity") {
		t.Fatalf("expected hasField to find an existing key")
	}
	if hasField(fields, "code") {
		t.Fatalf("hasField should not find a missing key")
	}
}

func TestRenderStarEventSummaryPopsKnownFields(t *testing.T) {
	t.Parallel()

	h := &prettyHandler{color: false}
	fields := []prettyField{
		{key: "identity", val: stringValue("agent:scout-1")},
		{key: "code", val: stringValue("VALIDATION_ERROR")},
		{key: "err", val: stringValue("boom")},
		{key: "extra", val: stringValue("stays")},
	}

	parts := h.renderStarEventSummary(&fields)
	joined := strings.Join(parts, " ")
	if !strings.Contains(joined, "agent:scout-1") || !strings.Contains(joined, "VALIDATION_ERROR") || !strings.Contains(joined, "boom") {
		t.Fatalf("summary=%q missing expected fields", joined)
	}
	if len(fields) != 1 || fields[0].key != "extra" {
		t.Fatalf("expected only the unrecognised field to remain, got %v", fields)
	}
}

func TestTerminalWidth_FallbackDefault(t *testing.T) {
	h := &prettyHandler{}

	t.Setenv("STAR_LOG_WIDTH", "10")
	t.Setenv("COLUMNS", "20")
	if got := h.terminalWidth(); got != 100 {
		t.Fatalf("terminalWidth()=%d want 100", got)
	}
}
