// ABOUTME: TUI engine with differential rendering, focus management, and overlay compositing
// ABOUTME: Uses buffered channel for render coalescing; CSI 2026 synchronized output

package tui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/foldterm/foldterm/image"
	"github.com/foldterm/foldterm/key"
	"github.com/foldterm/foldterm/width"
)

// ErrLineOverflow is the overflow guard's sentinel: a component emitted a
// line wider than the column count it was given to render into.
var ErrLineOverflow = errors.New("tui: rendered line exceeds terminal width")

// Writer is the minimal interface for terminal output.
type Writer interface {
	Write(p []byte) (n int, err error)
}

// KeyReleaseHandler is implemented by components that want Kitty protocol
// key-release events forwarded to handle_input instead of filtered out.
type KeyReleaseHandler interface {
	WantsKeyRelease() bool
}

// TUI is the main rendering engine.
type TUI struct {
	container *Container
	writer    Writer
	width     int
	height    int

	// OnFatal is invoked by the overflow guard after the crash log is
	// written and the terminal state has been restored by the caller's
	// deferred cleanup. Defaults to panicking with ErrLineOverflow.
	OnFatal func(err error)

	// CrashLogDir is where overflow crash logs are written. Empty means
	// the current directory.
	CrashLogDir string

	mu            sync.Mutex
	previousLines []string
	overlays      []*Overlay
	focused       Component
	basePreFocus  Component
	debugShortcut func()
	probePending  bool
	probeBuf      strings.Builder
	renderCh      chan struct{}
	stopCh        chan struct{}
	stopOnce      sync.Once
	running       bool

	// Relative rendering state
	rstate renderState

	// Operator environment toggles, read once at New (SPEC_FULL.md §6).
	hardwareCursor bool
	clearOnShrink  bool
	debugRedraw    bool
	tuiDebug       bool
	debugWriter    io.Writer
}

// New creates a new TUI engine writing to w with the given dimensions.
// Four operator environment toggles are read once here, matching the
// teacher's internal/config pattern of cheap env-var reads rather than a
// config framework: HARDWARE_CURSOR, CLEAR_ON_SHRINK, DEBUG_REDRAW, TUI_DEBUG.
func New(w Writer, termWidth, termHeight int) *TUI {
	return &TUI{
		container:      NewContainer(),
		writer:         w,
		width:          termWidth,
		height:         termHeight,
		renderCh:       make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
		rstate:         renderState{firstRender: true},
		hardwareCursor: os.Getenv("HARDWARE_CURSOR") == "1",
		clearOnShrink:  os.Getenv("CLEAR_ON_SHRINK") == "1",
		debugRedraw:    os.Getenv("DEBUG_REDRAW") == "1",
		tuiDebug:       os.Getenv("TUI_DEBUG") == "1",
		debugWriter:    os.Stderr,
	}
}

// Container returns the root container for adding components.
func (t *TUI) Container() *Container {
	return t.container
}

// SetSize updates the terminal dimensions and triggers a re-render.
func (t *TUI) SetSize(w, h int) {
	t.mu.Lock()
	t.width = w
	t.height = h
	t.previousLines = nil // Force full redraw
	t.mu.Unlock()
	t.container.Invalidate()
	t.RequestRender()
}

// SetFocus transfers focus to c, clearing it on whatever was focused before.
// c may be nil to clear focus entirely.
func (t *TUI) SetFocus(c Component) {
	t.setFocus(c)
	t.RequestRender()
}

func (t *TUI) setFocus(c Component) {
	t.mu.Lock()
	prev := t.focused
	t.focused = c
	t.mu.Unlock()

	if prev != nil {
		if f, ok := prev.(Focusable); ok {
			f.SetFocused(false)
		}
	}
	if c != nil {
		if f, ok := c.(Focusable); ok {
			f.SetFocused(true)
		}
	}
}

// SetDebugShortcut installs the callback fired on Shift+Ctrl+D.
func (t *TUI) SetDebugShortcut(fn func()) {
	t.mu.Lock()
	t.debugShortcut = fn
	t.mu.Unlock()
}

// RequestCellSizeProbe emits the CSI 16 t cell-size query. The next
// matching CSI 6 ; height ; width t response is consumed by HandleInput
// before any bytes reach the focused component.
func (t *TUI) RequestCellSizeProbe() {
	t.mu.Lock()
	t.probePending = true
	t.probeBuf.Reset()
	t.mu.Unlock()
	_, _ = t.writer.Write([]byte("\x1b[16t"))
}

// PushOverlay adds a modal overlay on top of the content and returns a
// handle that lets the caller hide/show it later. Showing an overlay
// captures the currently focused component as that overlay's pre_focus.
func (t *TUI) PushOverlay(o Overlay) *OverlayHandle {
	ov := &o
	t.mu.Lock()
	if len(t.overlays) == 0 {
		t.basePreFocus = t.focused
	}
	ov.capturedPreFocus = t.focused
	t.overlays = append(t.overlays, ov)
	t.mu.Unlock()

	t.reconcileFocus()
	t.RequestRender()
	return &OverlayHandle{tui: t, overlay: ov}
}

// PopOverlay removes the topmost overlay entirely.
func (t *TUI) PopOverlay() {
	t.mu.Lock()
	if len(t.overlays) > 0 {
		t.overlays = t.overlays[:len(t.overlays)-1]
	}
	t.mu.Unlock()
	t.reconcileFocus()
	t.RequestRender()
}

// reconcileFocus implements SPEC_FULL.md §4.3.4: focus goes to the topmost
// visible, non-hidden overlay; failing that, to the bottommost overlay's
// captured pre_focus; failing that (no overlays at all), to the focus that
// was active before the first overlay was ever shown.
func (t *TUI) reconcileFocus() {
	t.mu.Lock()
	cols, rows := t.width, t.height
	var target Component
	for i := len(t.overlays) - 1; i >= 0; i-- {
		ov := t.overlays[i]
		if ov.isVisible(cols, rows) {
			target = ov.Component
			break
		}
	}
	if target == nil {
		if len(t.overlays) > 0 {
			target = t.overlays[0].capturedPreFocus
		} else {
			target = t.basePreFocus
		}
	}
	current := t.focused
	t.mu.Unlock()

	if target != current {
		t.setFocus(target)
	}
}

// RequestRender signals that a render is needed. Multiple calls coalesce
// into a single render via a buffered channel of size 1.
func (t *TUI) RequestRender() {
	select {
	case t.renderCh <- struct{}{}:
	default: // Already pending; coalesced
	}
}

// Start begins the render loop in a goroutine, hides the cursor, issues the
// one-shot cell-size probe, and requests the first render. Call Stop to
// terminate.
func (t *TUI) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	_, _ = t.writer.Write([]byte("\x1b[?25l"))
	t.RequestCellSizeProbe()
	go t.renderLoop()
	t.RequestRender()
}

// Stop terminates the render loop, repositions the cursor past the
// rendered content, and shows it again. Safe to call multiple times.
func (t *TUI) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		if !t.running {
			t.mu.Unlock()
			return
		}
		t.running = false
		lines := len(t.previousLines)
		t.mu.Unlock()
		close(t.stopCh)

		if lines > 0 {
			_, _ = t.writer.Write([]byte("\r\n"))
		}
		_, _ = t.writer.Write([]byte("\x1b[?25h"))
	})
}

// RenderOnce performs a single synchronous render. Useful for testing.
func (t *TUI) RenderOnce() {
	t.render()
}

func (t *TUI) renderLoop() {
	for {
		select {
		case <-t.stopCh:
			return
		case <-t.renderCh:
			t.render()
		}
	}
}

// HandleInput dispatches one chunk of raw terminal input. It intercepts the
// debug shortcut and any in-flight cell-size probe response before handing
// the remainder to the focused component, per SPEC_FULL.md §4.3.5.
func (t *TUI) HandleInput(data string) {
	if k := key.ParseKey(data); k.Type == key.KeyRune && k.Rune == 'd' && k.Ctrl && k.Shift {
		t.mu.Lock()
		cb := t.debugShortcut
		t.mu.Unlock()
		if cb != nil {
			cb()
			return
		}
	}

	t.mu.Lock()
	pending := t.probePending
	t.mu.Unlock()
	if pending {
		rest, consumed := t.consumeCellSizeProbe(data)
		if !consumed {
			return
		}
		data = rest
		if data == "" {
			return
		}
	}

	t.mu.Lock()
	focused := t.focused
	t.mu.Unlock()
	if focused == nil {
		return
	}

	k := key.ParseKey(data)
	if k.Released {
		if h, ok := focused.(KeyReleaseHandler); !ok || !h.WantsKeyRelease() {
			return
		}
	}

	if ih, ok := focused.(InputHandler); ok {
		ih.HandleInput(data)
	}
}

// consumeCellSizeProbe strips a CSI 6 ; height ; width t response from the
// front of data if one is present (possibly split across input chunks).
// Returns the remaining bytes and whether the probe is still pending.
func (t *TUI) consumeCellSizeProbe(data string) (rest string, done bool) {
	t.mu.Lock()
	t.probeBuf.WriteString(data)
	buf := t.probeBuf.String()
	t.mu.Unlock()

	h, w, consumed, ok := parseCellSizeResponse(buf)
	if !ok {
		// Not enough bytes yet to know; keep buffering unless it clearly
		// isn't a probe response (no ESC prefix), in which case give up.
		if len(buf) > 0 && buf[0] != '\x1b' {
			t.mu.Lock()
			t.probePending = false
			t.probeBuf.Reset()
			t.mu.Unlock()
			return buf, true
		}
		return "", false
	}

	t.mu.Lock()
	t.probePending = false
	t.probeBuf.Reset()
	t.mu.Unlock()

	if h > 0 && w > 0 {
		image.SetCellSize(h, w)
		t.container.Invalidate()
		t.RequestRender()
	}
	return buf[consumed:], true
}

// parseCellSizeResponse parses a leading "ESC [ 6 ; height ; width t"
// sequence. Returns the parsed height/width, the number of bytes consumed,
// and whether a complete sequence was found.
func parseCellSizeResponse(s string) (h, w, consumed int, ok bool) {
	const prefix = "\x1b[6;"
	if !strings.HasPrefix(s, prefix) {
		return 0, 0, 0, false
	}
	end := strings.IndexByte(s, 't')
	if end < 0 {
		return 0, 0, 0, false
	}
	body := s[len(prefix):end]
	parts := strings.SplitN(body, ";", 2)
	if len(parts) != 2 {
		return 0, 0, end + 1, true
	}
	h, errH := strconv.Atoi(parts[0])
	w, errW := strconv.Atoi(parts[1])
	if errH != nil || errW != nil {
		return 0, 0, end + 1, true
	}
	return h, w, end + 1, true
}

func (t *TUI) render() {
	t.mu.Lock()
	w := t.width
	h := t.height
	prevLines := t.previousLines
	rstate := t.rstate
	overlays := make([]*Overlay, len(t.overlays))
	copy(overlays, t.overlays)
	t.mu.Unlock()

	if w <= 0 || h <= 0 {
		return
	}

	// Render main content
	buf := AcquireBuffer()
	defer ReleaseBuffer(buf)

	t.container.Render(buf, w)

	// Composite overlays on top
	compositeOverlays(buf, overlays, w, h)

	// Append the reset sentinel to every line so color/link state never
	// bleeds across rows.
	for i, line := range buf.Lines {
		buf.Lines[i] = line + width.ResetSentinel
	}

	// Clamp to terminal height: keep bottom lines so editor+footer stay visible
	lines := buf.Lines
	clamped := len(lines) > h
	if clamped {
		lines = lines[len(lines)-h:]
	}

	// Detect clamp transition: force full redraw so diff engine stays consistent
	if clamped != rstate.prevClamped {
		prevLines = nil
		rstate.firstRender = true
		rstate.maxRendered = 0
		t.logRedraw("overlay clamp state changed")
	}
	rstate.prevClamped = clamped

	// CLEAR_ON_SHRINK: content shrank below the working area and no overlay
	// is active is one of the full-redraw triggers (SPEC_FULL.md §4.3.2 step
	// 6); off by default to match the teacher's flicker-avoidance stance.
	if t.clearOnShrink && !rstate.firstRender && len(overlays) == 0 && len(lines) < rstate.maxRendered {
		rstate.forceClear = true
		t.logRedraw("content shrank below the working area (CLEAR_ON_SHRINK)")
	}

	t.checkOverflow(lines, w)

	// Find cursor position and strip marker
	cursorRow, cursorCol := extractCursorPosition(lines)

	// Relative differential update
	output := relativeRender(&rstate, prevLines, lines, w)

	// HARDWARE_CURSOR: the focused component already draws its own
	// inverse-video glyph inline (the software indicator); the real terminal
	// cursor is only positioned and shown as an additional indicator when
	// this toggle opts in. Default is hidden, matching the teacher's stance
	// that the soft glyph is sufficient on its own.
	if t.hardwareCursor && cursorRow >= 0 && cursorCol >= 0 {
		var curBuf strings.Builder
		var numBuf [20]byte
		moveCursor(&curBuf, numBuf[:], rstate.cursorRow, cursorRow)
		rstate.cursorRow = cursorRow
		curBuf.WriteString(fmt.Sprintf("\r\x1b[%dC", cursorCol))
		curBuf.WriteString("\x1b[?25h") // Show cursor
		output += curBuf.String()
	} else {
		output += "\x1b[?25l" // Hide cursor
	}

	if t.tuiDebug {
		t.writeDebugDump(rstate, lines, clamped)
	}

	// Write output atomically
	if output != "" {
		// CSI 2026 synchronized output: begin
		syncOutput := "\x1b[?2026h" + output + "\x1b[?2026l"
		_, _ = t.writer.Write([]byte(syncOutput))
	}

	// Save current lines for next diff, reusing the previous slice when possible.
	saved := prevLines
	if cap(saved) >= len(lines) {
		saved = saved[:len(lines)]
	} else {
		saved = make([]string, len(lines))
	}
	copy(saved, lines)
	t.mu.Lock()
	t.previousLines = saved
	t.rstate = rstate
	t.mu.Unlock()
}

// logRedraw writes the reason for a full redraw to the debug writer when
// DEBUG_REDRAW=1 is set. No-op otherwise.
func (t *TUI) logRedraw(reason string) {
	if !t.debugRedraw {
		return
	}
	w := t.debugWriter
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "tui: full redraw: %s\n", reason)
}

// writeDebugDump appends one render's state to a debug file when
// TUI_DEBUG=1 is set. Errors are ignored; this is a diagnostic aid, not a
// load-bearing path.
func (t *TUI) writeDebugDump(rstate renderState, lines []string, clamped bool) {
	dir := t.CrashLogDir
	if dir == "" {
		dir = "."
	}
	path := dir + "/tui-debug.log"
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "render: lines=%d clamped=%v maxRendered=%d cursorRow=%d firstRender=%v\n",
		len(lines), clamped, rstate.maxRendered, rstate.cursorRow, rstate.firstRender)
}

// checkOverflow enforces the critical invariant that every emitted line fits
// within columns. A violation is a bug in a component, not user input, so it
// is treated as fatal: a crash log is written and OnFatal is invoked.
func (t *TUI) checkOverflow(lines []string, columns int) {
	for i, line := range lines {
		if width.VisibleWidth(line) > columns {
			t.reportOverflow(i, lines, columns)
			return
		}
	}
}

func (t *TUI) reportOverflow(badIndex int, lines []string, columns int) {
	var b strings.Builder
	fmt.Fprintf(&b, "tui: line overflow at index %d (columns=%d)\n", badIndex, columns)
	for i, line := range lines {
		fmt.Fprintf(&b, "[%3d] width=%-4d %q\n", i, width.VisibleWidth(line), line)
	}

	dir := t.CrashLogDir
	if dir == "" {
		dir = "."
	}
	path := fmt.Sprintf("%s/tui-crash.log", dir)
	_ = os.WriteFile(path, []byte(b.String()), 0o644)

	onFatal := t.OnFatal
	if onFatal == nil {
		onFatal = func(err error) { panic(err) }
	}
	onFatal(fmt.Errorf("%w: index %d, columns %d, log at %s", ErrLineOverflow, badIndex, columns, path))
}

// compositeOverlays renders each visible overlay on top of the main buffer,
// per SPEC_FULL.md §4.3.3.
func compositeOverlays(buf *RenderBuffer, overlays []*Overlay, cols, rows int) {
	for _, o := range overlays {
		if !o.isVisible(cols, rows) {
			continue
		}

		layout, obuf := resolveOverlayLayout(o, cols, rows)

		for buf.Len() < layout.row+layout.height {
			buf.WriteLine(width.ApplyBackground("", cols, nil))
		}

		for i := 0; i < layout.height && i < obuf.Len(); i++ {
			row := layout.row + i
			if row >= len(buf.Lines) {
				break
			}
			overlayLine := width.ApplyBackground(obuf.Lines[i], layout.width, nil)
			before, _, after, _, _, _ := width.SliceThreeWay(buf.Lines[row], layout.col, layout.col+layout.width)
			composite := before + width.ResetSentinel + overlayLine + width.ResetSentinel + after
			buf.Lines[row] = width.SliceByColumnStrict(composite, 0, cols)
		}

		ReleaseBuffer(obuf)
	}
}

// extractCursorPosition finds the CursorMarker in lines, removes it,
// and returns (row, col). Returns (-1, -1) if not found.
func extractCursorPosition(lines []string) (row, col int) {
	for i, line := range lines {
		idx := strings.Index(line, CursorMarker)
		if idx >= 0 {
			before := line[:idx]
			after := line[idx+len(CursorMarker):]
			lines[i] = before + after
			return i, width.VisibleWidth(before)
		}
	}
	return -1, -1
}

// renderState tracks cursor position across renders for relative movement.
type renderState struct {
	maxRendered int  // max lines ever rendered
	cursorRow   int  // cursor row (0-based, relative to our output region)
	firstRender bool // true until first render completes
	prevWidth   int  // detect width changes
	prevClamped bool // was previous frame clamped to terminal height?
	forceClear  bool // CLEAR_ON_SHRINK-triggered full redraw pending
}

// relativeRender generates ANSI commands using relative cursor movement
// instead of absolute positioning, so content scrolls like a chat.
func relativeRender(state *renderState, prev, curr []string, termWidth int) string {
	var b strings.Builder
	var numBuf [20]byte

	// Width change, or an explicit CLEAR_ON_SHRINK-triggered redraw: full
	// clear and re-render everything.
	if (state.prevWidth != 0 && state.prevWidth != termWidth) || state.forceClear {
		b.WriteString("\x1b[2J\x1b[H") // clear screen + home
		for i, line := range curr {
			if i > 0 {
				b.WriteString("\r\n")
			}
			b.WriteString(line)
		}
		state.cursorRow = len(curr) - 1
		if state.cursorRow < 0 {
			state.cursorRow = 0
		}
		state.maxRendered = len(curr)
		state.firstRender = false
		state.prevWidth = termWidth
		state.forceClear = false
		return b.String()
	}
	state.prevWidth = termWidth

	// First render: just output lines with \r\n
	if state.firstRender {
		for i, line := range curr {
			if i > 0 {
				b.WriteString("\r\n")
			}
			b.WriteString(line)
		}
		state.cursorRow = len(curr) - 1
		if state.cursorRow < 0 {
			state.cursorRow = 0
		}
		state.maxRendered = len(curr)
		state.firstRender = false
		return b.String()
	}

	// Find which lines changed and which are new
	commonLen := len(prev)
	if len(curr) < commonLen {
		commonLen = len(curr)
	}

	// Update changed lines using relative movement
	for i := 0; i < commonLen; i++ {
		if prev[i] == curr[i] {
			continue
		}
		// Move cursor to row i
		moveCursor(&b, numBuf[:], state.cursorRow, i)
		state.cursorRow = i
		b.WriteString("\r\x1b[2K") // carriage return + erase line
		b.WriteString(curr[i])
	}

	// Append new lines
	if len(curr) > len(prev) {
		// Move to the last rendered line
		moveCursor(&b, numBuf[:], state.cursorRow, len(prev)-1)
		state.cursorRow = len(prev) - 1
		if state.cursorRow < 0 {
			state.cursorRow = 0
		}

		for i := len(prev); i < len(curr); i++ {
			b.WriteString("\r\n")
			b.WriteString(curr[i])
			state.cursorRow = i
		}
	}

	// Clear excess lines if content shrank
	if len(curr) < state.maxRendered {
		for i := len(curr); i < state.maxRendered; i++ {
			moveCursor(&b, numBuf[:], state.cursorRow, i)
			state.cursorRow = i
			b.WriteString("\r\x1b[2K")
		}
		// Move back to last content line
		if len(curr) > 0 {
			moveCursor(&b, numBuf[:], state.cursorRow, len(curr)-1)
			state.cursorRow = len(curr) - 1
		}
		// Reset so we don't re-clear on next frame
		state.maxRendered = len(curr)
	}

	if len(curr) > state.maxRendered {
		state.maxRendered = len(curr)
	}

	return b.String()
}

// moveCursor emits relative cursor movement sequences to move from fromRow to toRow.
func moveCursor(b *strings.Builder, numBuf []byte, fromRow, toRow int) {
	if fromRow == toRow {
		return
	}
	delta := toRow - fromRow
	if delta < 0 {
		// Move up
		b.WriteString("\x1b[")
		b.Write(strconv.AppendInt(numBuf[:0], int64(-delta), 10))
		b.WriteByte('A')
	} else {
		// Move down
		b.WriteString("\x1b[")
		b.Write(strconv.AppendInt(numBuf[:0], int64(delta), 10))
		b.WriteByte('B')
	}
}
