// ABOUTME: Tests for ANSI-aware text wrapping and truncation
// ABOUTME: Covers word wrapping, line breaks, and ellipsis truncation

package width

import (
	"reflect"
	"testing"
)

func TestWrapTextWithAnsi(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     []string
	}{
		{name: "empty", input: "", maxWidth: 10, want: []string{""}},
		{name: "fits", input: "hello", maxWidth: 10, want: []string{"hello"}},
		{name: "exact fit", input: "hello", maxWidth: 5, want: []string{"hello"}},
		{name: "break needed", input: "abcdef", maxWidth: 3, want: []string{"abc", "def"}},
		{name: "newlines", input: "ab\ncd", maxWidth: 10, want: []string{"ab", "cd"}},
		{name: "zero width", input: "x", maxWidth: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := WrapTextWithAnsi(tt.input, tt.maxWidth)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("WrapTextWithAnsi(%q, %d) = %v, want %v", tt.input, tt.maxWidth, got, tt.want)
			}
		})
	}
}

func TestWrapTextWithAnsi_CarriesSGRAcrossWrapBreak(t *testing.T) {
	t.Parallel()

	got := WrapTextWithAnsi("\x1b[31mabcdef\x1b[0m", 3)
	want := []string{"\x1b[31mabc", "\x1b[31mdef\x1b[0m"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WrapTextWithAnsi carry-forward = %v, want %v", got, want)
	}
}

func TestWrapTextWithAnsi_DefaultColorClearStopsCarryForward(t *testing.T) {
	t.Parallel()

	// \x1b[39m resets only the foreground color (SGR default-fg code), so the
	// tracker must stop carrying red forward across the wrap break.
	got := WrapTextWithAnsi("\x1b[31mab\x1b[39mcdef", 3)
	want := []string{"\x1b[31mab\x1b[39mc", "def"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WrapTextWithAnsi after 39m reset = %v, want %v", got, want)
	}
}

func TestTruncateToWidth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		maxWidth int
		wantLen  int // check visible width of output
		fits     bool
	}{
		{name: "fits", input: "hi", maxWidth: 5, fits: true},
		{name: "exact", input: "hello", maxWidth: 5, fits: true},
		{name: "truncated", input: "hello world", maxWidth: 5, wantLen: 5, fits: false},
		{name: "one char", input: "hello", maxWidth: 1, fits: false},
		{name: "zero", input: "hello", maxWidth: 0, fits: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := TruncateToWidth(tt.input, tt.maxWidth)
			gotWidth := VisibleWidth(got)
			if tt.fits {
				if got != tt.input {
					t.Errorf("expected no truncation, got %q", got)
				}
			} else if tt.maxWidth > 0 && gotWidth > tt.maxWidth {
				t.Errorf("TruncateToWidth(%q, %d) width = %d, want <= %d", tt.input, tt.maxWidth, gotWidth, tt.maxWidth)
			}
		})
	}
}
