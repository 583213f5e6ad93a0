// ABOUTME: Tests for the TUI engine: differential rendering, overlays, cursor
// ABOUTME: Uses in-memory writer to capture output for assertions

package tui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockComponent struct {
	lines []string
	dirty bool
}

func (m *mockComponent) Render(out *RenderBuffer, width int) {
	out.WriteLines(m.lines)
}

func (m *mockComponent) Invalidate() {
	m.dirty = true
}

func TestRenderBuffer_Pool(t *testing.T) {
	t.Parallel()

	buf := AcquireBuffer()
	buf.WriteLine("line1")
	buf.WriteLine("line2")

	require.Equal(t, 2, buf.Len())

	ReleaseBuffer(buf)

	// Re-acquire should give a clean buffer
	buf2 := AcquireBuffer()
	require.Equal(t, 0, buf2.Len(), "re-acquired buffer should be clean")
	ReleaseBuffer(buf2)
}

func TestContainer_AddRemove(t *testing.T) {
	t.Parallel()

	c := NewContainer()
	comp1 := &mockComponent{lines: []string{"a"}}
	comp2 := &mockComponent{lines: []string{"b"}}

	c.Add(comp1)
	c.Add(comp2)

	require.Len(t, c.Children(), 2)

	require.True(t, c.Remove(comp1), "Remove should report success for an existing component")
	require.Len(t, c.Children(), 1)
}

func TestContainer_Render(t *testing.T) {
	t.Parallel()

	c := NewContainer()
	c.Add(&mockComponent{lines: []string{"hello"}})
	c.Add(&mockComponent{lines: []string{"world"}})

	buf := AcquireBuffer()
	defer ReleaseBuffer(buf)

	c.Render(buf, 80)

	require.Equal(t, 2, buf.Len())
	require.Equal(t, []string{"hello", "world"}, buf.Lines)
}

func TestTUI_RenderOnce(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 80, 24)
	ui.Container().Add(&mockComponent{lines: []string{"test line"}})

	ui.RenderOnce()

	require.Contains(t, out.String(), "test line")
}

func TestTUI_DifferentialRender(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 80, 24)

	comp := &mockComponent{lines: []string{"first"}}
	ui.Container().Add(comp)

	// First render
	ui.RenderOnce()
	firstSize := out.Len()

	// Same content: should produce minimal output
	out.Reset()
	ui.RenderOnce()
	secondSize := out.Len()

	if secondSize >= firstSize {
		t.Errorf("first=%d second=%d; second should be smaller (no changes)", firstSize, secondSize)
	}
}

func TestTUI_CursorPosition_HiddenByDefault(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 80, 24)

	comp := &mockComponent{lines: []string{"abc" + CursorMarker + "def"}}
	ui.Container().Add(comp)

	ui.RenderOnce()

	result := out.String()
	// HARDWARE_CURSOR is off by default: the component's own inverse-video
	// glyph is the only cursor indicator, so the real terminal cursor stays
	// hidden and is never positioned.
	require.NotContains(t, result, "\x1b[3C", "no relative cursor positioning when HARDWARE_CURSOR is unset")
	require.Contains(t, result, "\x1b[?25l", "cursor should stay hidden")
}

func TestTUI_CursorPosition_HardwareCursorOptIn(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 80, 24)
	ui.hardwareCursor = true

	comp := &mockComponent{lines: []string{"abc" + CursorMarker + "def"}}
	ui.Container().Add(comp)

	ui.RenderOnce()

	result := out.String()
	// Cursor moves right 3 columns (visible width of "abc") via relative movement.
	require.Contains(t, result, "\x1b[3C", "expected relative cursor move to column 3")
	require.Contains(t, result, "\x1b[?25h", "expected cursor to be shown")
}

func TestTUI_ClearOnShrink_OffByDefault(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 80, 24)

	comp := &mockComponent{lines: []string{"one", "two", "three"}}
	ui.Container().Add(comp)
	ui.RenderOnce()

	comp.lines = []string{"one"}
	out.Reset()
	ui.RenderOnce()

	require.NotContains(t, out.String(), "\x1b[2J\x1b[H", "no full clear on shrink when CLEAR_ON_SHRINK is unset")
}

func TestTUI_ClearOnShrink_OptIn(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 80, 24)
	ui.clearOnShrink = true

	comp := &mockComponent{lines: []string{"one", "two", "three"}}
	ui.Container().Add(comp)
	ui.RenderOnce()

	comp.lines = []string{"one"}
	out.Reset()
	ui.RenderOnce()

	require.Contains(t, out.String(), "\x1b[2J\x1b[H", "expected a full clear on shrink when CLEAR_ON_SHRINK=1")
}

func TestTUI_ClearOnShrink_SkippedWithOverlayActive(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 80, 24)
	ui.clearOnShrink = true

	comp := &mockComponent{lines: []string{"one", "two", "three"}}
	ui.Container().Add(comp)
	ui.PushOverlay(Overlay{Component: &mockComponent{lines: []string{"overlay"}}, Anchor: AnchorCenter})
	ui.RenderOnce()

	comp.lines = []string{"one"}
	out.Reset()
	ui.RenderOnce()

	require.NotContains(t, out.String(), "\x1b[2J\x1b[H", "no full clear on shrink while an overlay is active")
}

func TestTUI_DebugRedrawLogsReason(t *testing.T) {
	t.Parallel()

	var out, debugOut bytes.Buffer
	ui := New(&out, 80, 24)
	ui.clearOnShrink = true
	ui.debugRedraw = true
	ui.debugWriter = &debugOut

	comp := &mockComponent{lines: []string{"one", "two", "three"}}
	ui.Container().Add(comp)
	ui.RenderOnce()

	comp.lines = []string{"one"}
	ui.RenderOnce()

	require.Contains(t, debugOut.String(), "CLEAR_ON_SHRINK")
}

func TestTUI_DebugDumpWritesFile(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 80, 24)
	ui.tuiDebug = true
	ui.CrashLogDir = t.TempDir()

	ui.Container().Add(&mockComponent{lines: []string{"hello"}})
	ui.RenderOnce()

	data, err := os.ReadFile(ui.CrashLogDir + "/tui-debug.log")
	require.NoError(t, err)
	require.Contains(t, string(data), "render: lines=")
}

func TestExtractCursorPosition(t *testing.T) {
	t.Parallel()

	lines := []string{"hello" + CursorMarker + "world"}
	row, col := extractCursorPosition(lines)

	require.Equal(t, 0, row)
	require.Equal(t, 5, col)
	require.Equal(t, "helloworld", lines[0], "marker should be stripped")
}

func TestExtractCursorPosition_NotFound(t *testing.T) {
	t.Parallel()

	lines := []string{"no cursor here"}
	row, col := extractCursorPosition(lines)

	require.Equal(t, -1, row)
	require.Equal(t, -1, col)
}

func TestOverlay_Center(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 40, 10)

	ui.Container().Add(&mockComponent{lines: []string{"background"}})
	ui.PushOverlay(Overlay{
		Component: &mockComponent{lines: []string{"overlay"}},
		Anchor:    AnchorCenter,
	})

	ui.RenderOnce()

	require.Contains(t, out.String(), "overlay")
}

func TestOverlay_AnchorWithOffset(t *testing.T) {
	t.Parallel()

	base := &Overlay{Component: &mockComponent{lines: []string{"x"}}, Anchor: AnchorTopLeft}
	layout, buf := resolveOverlayLayout(base, 40, 10)
	ReleaseBuffer(buf)

	offset := &Overlay{Component: &mockComponent{lines: []string{"x"}}, Anchor: AnchorTopLeft, OffsetX: 3, OffsetY: 2}
	olayout, obuf := resolveOverlayLayout(offset, 40, 10)
	ReleaseBuffer(obuf)

	require.Equal(t, layout.row+2, olayout.row)
	require.Equal(t, layout.col+3, olayout.col)
}

func TestOverlay_ExplicitRowCol(t *testing.T) {
	t.Parallel()

	o := &Overlay{
		Component: &mockComponent{lines: []string{"x"}},
		Row:       Cells(4),
		Col:       Cells(6),
	}
	layout, buf := resolveOverlayLayout(o, 40, 10)
	ReleaseBuffer(buf)

	require.Equal(t, 4, layout.row)
	require.Equal(t, 6, layout.col)
}

func TestOverlay_ExplicitRowColPercent(t *testing.T) {
	t.Parallel()

	o := &Overlay{
		Component: &mockComponent{lines: []string{"x"}},
		Row:       Pct(50),
		Col:       Pct(50),
	}
	layout, buf := resolveOverlayLayout(o, 40, 10)
	ReleaseBuffer(buf)

	require.Equal(t, 5, layout.row)
	require.Equal(t, 20, layout.col)
}

func TestOverlay_ExplicitRowColClampedToMargins(t *testing.T) {
	t.Parallel()

	o := &Overlay{
		Component: &mockComponent{lines: []string{"x"}},
		Row:       Cells(100),
		Col:       Cells(100),
	}
	layout, buf := resolveOverlayLayout(o, 40, 10)
	ReleaseBuffer(buf)

	require.LessOrEqual(t, layout.row, 10)
	require.LessOrEqual(t, layout.col, 40)
}

func TestOverlay_HideRestoresFocus(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 40, 10)

	base := &focusableMock{}
	ui.Container().Add(base)
	ui.SetFocus(base)

	overlayComp := &focusableMock{}
	handle := ui.PushOverlay(Overlay{Component: overlayComp, Anchor: AnchorCenter})

	require.True(t, overlayComp.focused, "pushing an overlay should focus its component")
	require.False(t, base.focused, "base component should lose focus once the overlay is shown")

	handle.Hide()

	require.True(t, base.focused, "hiding the overlay should restore focus to pre_focus")
	require.False(t, overlayComp.focused, "hidden overlay's component should no longer be focused")
}

func TestTUI_OverflowGuardFires(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ui := New(&out, 5, 24)
	ui.CrashLogDir = t.TempDir()

	fired := false
	ui.OnFatal = func(err error) { fired = true }

	ui.Container().Add(&mockComponent{lines: []string{"this line is way too wide for five columns"}})
	ui.RenderOnce()

	require.True(t, fired, "expected OnFatal to fire for an over-width line")
}

type focusableMock struct {
	mockComponent
	focused bool
}

func (f *focusableMock) SetFocused(v bool) { f.focused = v }
func (f *focusableMock) IsFocused() bool   { return f.focused }
