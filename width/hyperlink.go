// ABOUTME: Hyperlink-aware truncation built on charmbracelet/x/ansi
// ABOUTME: SliceHyperlinkAware never cuts a line between an OSC-8 open and its close

package width

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/rivo/uniseg"
)

// hyperlinkClose is the canonical OSC-8 terminator; any OSC-8 sequence
// opening a link must be paired with one of these before the line ends.
var hyperlinkClose = ansi.ResetHyperlink()

// ResetSentinel resets SGR attributes and closes any open hyperlink. The
// render pipeline appends it to every line and the overlay compositor
// injects it between segments so neither color nor a link target bleeds
// across a boundary it shouldn't.
var ResetSentinel = "\x1b[0m" + hyperlinkClose

// SliceHyperlinkAware truncates s to at most maxWidth visible columns like
// TruncateToWidth, but if the cut point falls inside an open OSC-8 hyperlink
// span, the close sequence is appended so the terminal never inherits a
// dangling link target on the following line.
func SliceHyperlinkAware(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if VisibleWidth(s) <= maxWidth {
		return s
	}

	var b strings.Builder
	col := 0
	linkOpen := false
	i := 0
	for i < len(s) && col < maxWidth {
		if s[i] == '\x1b' {
			end := skipANSISequence(s, i)
			seq := s[i:end]
			switch {
			case seq == hyperlinkClose:
				linkOpen = false
			case isHyperlinkOpen(seq):
				linkOpen = true
			}
			b.WriteString(seq)
			i = end
			continue
		}
		cluster, rest, _, _ := uniseg.FirstGraphemeClusterInString(s[i:], -1)
		cw := graphemeWidth(cluster)
		if col+cw > maxWidth {
			break
		}
		b.WriteString(cluster)
		col += cw
		i += len(s[i:]) - len(rest)
	}
	if linkOpen {
		b.WriteString(hyperlinkClose)
	}
	return b.String()
}

// isHyperlinkOpen reports whether seq is an OSC-8 sequence carrying a
// non-empty URI (as opposed to the close sequence, which carries none).
func isHyperlinkOpen(seq string) bool {
	const prefix = "\x1b]8;"
	return strings.HasPrefix(seq, prefix) && seq != hyperlinkClose
}
