// ABOUTME: Pads a styled line out to a target visible width
// ABOUTME: ApplyBackground lets callers wrap the padded line in a background style

package width

import "strings"

// ApplyBackground pads line with spaces until it measures exactly width
// visible columns (never truncating; a line already >= width is left alone),
// then passes the result through style. style is typically a closure that
// wraps the line in an SGR background color and resets it afterward; pass nil
// to skip styling and just pad.
func ApplyBackground(line string, width int, style func(string) string) string {
	if width > 0 {
		if w := VisibleWidth(line); w < width {
			line += strings.Repeat(" ", width-w)
		}
	}
	if style == nil {
		return line
	}
	return style(line)
}
