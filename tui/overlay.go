// ABOUTME: Overlay types for modal dialogs rendered on top of main content
// ABOUTME: Nine-anchor positioning with percentage sizing, margins, and a Hide-capable handle

package tui

import textwidth "github.com/foldterm/foldterm/width"

// Anchor names one of the nine positions an overlay can be pinned to within
// the terminal's working rectangle.
type Anchor int

const (
	AnchorTopLeft Anchor = iota
	AnchorTopCenter
	AnchorTopRight
	AnchorMiddleLeft
	AnchorCenter
	AnchorMiddleRight
	AnchorBottomLeft
	AnchorBottomCenter
	AnchorBottomRight
)

// Dimension is either an absolute cell count or a percentage of the
// available space (terminal size minus margins). The zero value means
// "unset": size resolves from the rendered content instead.
type Dimension struct {
	Value   float64
	Percent bool
	set     bool
}

// Cells returns an absolute-size Dimension of n columns or rows.
func Cells(n int) Dimension {
	return Dimension{Value: float64(n), set: true}
}

// Pct returns a Dimension that resolves to p percent (0-100) of the
// available space after margins are subtracted.
func Pct(p float64) Dimension {
	return Dimension{Value: p, Percent: true, set: true}
}

func (d Dimension) resolve(available int) (int, bool) {
	if !d.set {
		return 0, false
	}
	if d.Percent {
		v := int(d.Value / 100 * float64(available))
		return v, true
	}
	return int(d.Value), true
}

// Overlay represents a modal component rendered on top of the main
// container, positioned either by one of nine anchors (with an optional
// cell offset) or by explicit row/col coordinates, with optional percentage
// sizing, margins, and a visibility predicate.
type Overlay struct {
	Component Component
	Anchor    Anchor

	// OffsetX/OffsetY nudge the anchor-resolved position by a number of
	// cells; ignored when Row or Col is set (explicit positioning mode).
	OffsetX, OffsetY int

	// Row/Col switch to explicit positioning: if either is set, Anchor and
	// the offsets are ignored and the overlay is placed at that row/col
	// (absolute cells or a percentage of the margin-reduced rectangle via
	// Pct), then clamped to fit inside the available area.
	Row, Col Dimension

	Width     Dimension // unset: size from rendered content width
	MinWidth  Dimension
	MaxHeight Dimension

	MarginTop, MarginRight, MarginBottom, MarginLeft int

	// Visible, if set, is consulted every render; a false result hides the
	// overlay for that frame without removing it from the stack.
	Visible func(cols, rows int) bool

	hidden           bool
	capturedPreFocus Component // focus at the moment this overlay was pushed
}

// isVisible reports whether the overlay should be composited this frame.
func (o *Overlay) isVisible(cols, rows int) bool {
	if o.hidden {
		return false
	}
	if o.Visible != nil {
		return o.Visible(cols, rows)
	}
	return true
}

// OverlayHandle is the capability returned by PushOverlay: it lets the
// caller hide/show the overlay without retaining the stack index, which
// would go stale as other overlays are pushed and popped.
type OverlayHandle struct {
	tui     *TUI
	overlay *Overlay
}

// Hide marks the overlay hidden and restores focus to whatever should have
// it next (the topmost remaining visible overlay, or pre_focus).
func (h *OverlayHandle) Hide() {
	h.SetHidden(true)
}

// Show un-hides the overlay and focuses it, if it is currently visible.
func (h *OverlayHandle) Show() {
	h.SetHidden(false)
}

// SetHidden sets the overlay's hidden flag directly.
func (h *OverlayHandle) SetHidden(hidden bool) {
	h.tui.mu.Lock()
	h.overlay.hidden = hidden
	h.tui.mu.Unlock()
	h.tui.reconcileFocus()
	h.tui.RequestRender()
}

// IsHidden reports the overlay's current hidden flag.
func (h *OverlayHandle) IsHidden() bool {
	h.tui.mu.Lock()
	defer h.tui.mu.Unlock()
	return h.overlay.hidden
}

// overlayLayout is the resolved geometry for one overlay in one frame.
type overlayLayout struct {
	row, col int
	width    int
	height   int
}

// resolveOverlayLayout implements SPEC_FULL.md §4.3.3 step 1-3: render once
// to learn natural width/height, clamp to MaxHeight, then place the result
// against the anchor within the margin-reduced rectangle.
func resolveOverlayLayout(o *Overlay, cols, rows int) (overlayLayout, *RenderBuffer) {
	availW := cols - o.MarginLeft - o.MarginRight
	availH := rows - o.MarginTop - o.MarginBottom
	if availW < 1 {
		availW = 1
	}
	if availH < 1 {
		availH = 1
	}

	width := availW
	if w, ok := o.Width.resolve(availW); ok && w > 0 && w < availW {
		width = w
	}
	if mw, ok := o.MinWidth.resolve(availW); ok && width < mw {
		width = mw
	}
	if width > availW {
		width = availW
	}

	buf := AcquireBuffer()
	o.Component.Render(buf, width)

	// Unset Width: shrink to the widest rendered line (at least 1, not below MinWidth).
	if !o.Width.set {
		natural := 1
		for _, line := range buf.Lines {
			if lw := textwidth.VisibleWidth(line); lw > natural {
				natural = lw
			}
		}
		if mw, ok := o.MinWidth.resolve(availW); ok && natural < mw {
			natural = mw
		}
		if natural < width {
			width = natural
		}
	}

	height := buf.Len()
	if mh, ok := o.MaxHeight.resolve(availH); ok && mh > 0 && height > mh {
		height = mh
	}
	if height > availH {
		height = availH
	}

	var row, col int
	if o.Row.set || o.Col.set {
		row, col = explicitPosition(o, cols, rows)
	} else {
		row, col = anchorPosition(o.Anchor, cols, rows, width, height, o.MarginTop, o.MarginRight, o.MarginBottom, o.MarginLeft)
		row += o.OffsetY
		col += o.OffsetX
	}
	row, col = clampToMargins(row, col, cols, rows, width, height, o.MarginTop, o.MarginRight, o.MarginBottom, o.MarginLeft)
	return overlayLayout{row: row, col: col, width: width, height: height}, buf
}

// anchorPosition resolves a raw (row, col) for the given anchor, before
// offset and margin clamping are applied.
func anchorPosition(a Anchor, cols, rows, w, h, mt, mr, mb, ml int) (row, col int) {
	switch a {
	case AnchorTopLeft, AnchorMiddleLeft, AnchorBottomLeft:
		col = ml
	case AnchorTopCenter, AnchorCenter, AnchorBottomCenter:
		col = ml + (cols-ml-mr-w)/2
	default: // right-anchored
		col = cols - mr - w
	}
	switch a {
	case AnchorTopLeft, AnchorTopCenter, AnchorTopRight:
		row = mt
	case AnchorMiddleLeft, AnchorCenter, AnchorMiddleRight:
		row = mt + (rows-mt-mb-h)/2
	default: // bottom-anchored
		row = rows - mb - h
	}
	return row, col
}

// explicitPosition resolves a raw (row, col) from Overlay.Row/Col, each
// either an absolute cell count or a percentage of the margin-reduced
// rectangle (SPEC_FULL.md §3/§4.3.3 step 2), before margin clamping.
func explicitPosition(o *Overlay, cols, rows int) (row, col int) {
	availW := cols - o.MarginLeft - o.MarginRight
	availH := rows - o.MarginTop - o.MarginBottom
	if availW < 1 {
		availW = 1
	}
	if availH < 1 {
		availH = 1
	}

	col = o.MarginLeft
	if c, ok := o.Col.resolve(availW); ok {
		col = o.MarginLeft + c
	}
	row = o.MarginTop
	if r, ok := o.Row.resolve(availH); ok {
		row = o.MarginTop + r
	}
	return row, col
}

// clampToMargins confines (row, col) to [margin, terminal-margin-size] for
// an overlay of size w×h.
func clampToMargins(row, col, cols, rows, w, h, mt, mr, mb, ml int) (int, int) {
	if col < ml {
		col = ml
	}
	if maxCol := cols - mr - w; col > maxCol {
		col = maxCol
	}
	if col < 0 {
		col = 0
	}
	if row < mt {
		row = mt
	}
	if maxRow := rows - mb - h; row > maxRow {
		row = maxRow
	}
	if row < 0 {
		row = 0
	}
	return row, col
}
