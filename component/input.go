// ABOUTME: Single-line text input component with cursor, undo, and kill ring
// ABOUTME: Supports horizontal scrolling, placeholder text, and Emacs-style keybindings

package component

import (
	"strings"

	"github.com/foldterm/foldterm/internal/killring"
	"github.com/foldterm/foldterm/internal/undo"
	"github.com/foldterm/foldterm/key"
	"github.com/foldterm/foldterm/tui"
	"github.com/foldterm/foldterm/width"
)

const inputUndoDepth = 100

// inputState captures the text and cursor position for undo.
type inputState struct {
	text   []string
	cursor int
}

// Input is a single-line, grapheme-aware text input with cursor tracking,
// undo, and kill ring. Reduced scope compared to Editor: one logical
// line, horizontal scrolling instead of soft-wrap, no history and no
// autocomplete.
type Input struct {
	text        []string
	cursor      int
	placeholder string
	focused     bool
	dirty       bool
	scrollOff   int
	ring        *killring.KillRing
	undoStack   *undo.Stack[inputState]
	lastAction  actionKind
	lastYankLen int
}

// NewInput creates a new empty Input component.
func NewInput() *Input {
	return &Input{
		text:      make([]string, 0, 64),
		ring:      killring.New(),
		undoStack: undo.New[inputState](inputUndoDepth),
		dirty:     true,
	}
}

// Text returns the current input text.
func (inp *Input) Text() string {
	return strings.Join(inp.text, "")
}

// SetText replaces the input text and moves the cursor to the end.
func (inp *Input) SetText(s string) {
	inp.saveUndo()
	inp.text = graphemesOf(s)
	inp.cursor = len(inp.text)
	inp.lastAction = actionOther
	inp.dirty = true
}

// CursorPos returns the cursor position in grapheme units.
func (inp *Input) CursorPos() int {
	return inp.cursor
}

// SetPlaceholder sets the placeholder text shown when the input is empty.
func (inp *Input) SetPlaceholder(p string) {
	inp.placeholder = p
	inp.dirty = true
}

// SetFocused sets the focus state.
func (inp *Input) SetFocused(focused bool) {
	inp.focused = focused
	inp.dirty = true
}

// IsFocused returns the focus state.
func (inp *Input) IsFocused() bool {
	return inp.focused
}

// Invalidate marks the component for re-render.
func (inp *Input) Invalidate() {
	inp.dirty = true
}

// HandleInput processes raw terminal input data.
func (inp *Input) HandleInput(data string) {
	k := key.ParseKey(data)
	if k.Type == key.KeyPaste {
		inp.handlePasteText(k.Text)
		return
	}

	if k.Ctrl && k.Type == key.KeyRune {
		if inp.dispatchCtrlRune(k.Rune) {
			return
		}
	}
	if k.Alt && k.Type == key.KeyRune && k.Rune == 'y' {
		inp.yankPop()
		return
	}

	switch k.Type {
	case key.KeyRune:
		inp.insertGrapheme(string(k.Rune))
	case key.KeyBackspace:
		inp.backspace()
	case key.KeyDelete:
		inp.delete()
	case key.KeyLeft:
		inp.moveCursorLeft()
	case key.KeyRight:
		inp.moveCursorRight()
	case key.KeyHome:
		inp.moveCursorHome()
	case key.KeyEnd:
		inp.moveCursorEnd()
	default:
		inp.handleControlByte(data)
	}
}

func (inp *Input) dispatchCtrlRune(r rune) bool {
	switch r {
	case 'a':
		inp.moveCursorHome()
	case 'e':
		inp.moveCursorEnd()
	case 'k':
		inp.killToEnd()
	case 'u':
		inp.killToStart()
	case 'y':
		inp.yank()
	case 'z':
		inp.doUndo()
	case 'w':
		inp.deleteWordBackward()
	default:
		return false
	}
	return true
}

func (inp *Input) handleControlByte(data string) {
	if len(data) != 1 {
		return
	}
	switch data[0] {
	case 0x01: // Ctrl+A = home
		inp.moveCursorHome()
	case 0x05: // Ctrl+E = end
		inp.moveCursorEnd()
	case 0x0b: // Ctrl+K = kill to end of line
		inp.killToEnd()
	case 0x15: // Ctrl+U = kill to start of line
		inp.killToStart()
	case 0x19: // Ctrl+Y = yank
		inp.yank()
	case 0x1a: // Ctrl+Z = undo
		inp.doUndo()
	case 0x17: // Ctrl+W = delete word backward
		inp.deleteWordBackward()
	}
}

func (inp *Input) insertGrapheme(g string) {
	isSpace := classifyGrapheme(g) == clsSpace
	if isSpace || inp.lastAction != actionTypeWord {
		inp.saveUndo()
	}
	newText := make([]string, 0, len(inp.text)+1)
	newText = append(newText, inp.text[:inp.cursor]...)
	newText = append(newText, g)
	newText = append(newText, inp.text[inp.cursor:]...)
	inp.text = newText
	inp.cursor++
	inp.lastAction = actionTypeWord
	inp.dirty = true
}

func (inp *Input) backspace() {
	if inp.cursor == 0 {
		return
	}
	inp.saveUndo()
	inp.text = append(inp.text[:inp.cursor-1], inp.text[inp.cursor:]...)
	inp.cursor--
	inp.lastAction = actionOther
	inp.dirty = true
}

func (inp *Input) delete() {
	if inp.cursor >= len(inp.text) {
		return
	}
	inp.saveUndo()
	inp.text = append(inp.text[:inp.cursor], inp.text[inp.cursor+1:]...)
	inp.lastAction = actionOther
	inp.dirty = true
}

func (inp *Input) moveCursorLeft() {
	if inp.cursor > 0 {
		inp.cursor--
		inp.dirty = true
	}
}

func (inp *Input) moveCursorRight() {
	if inp.cursor < len(inp.text) {
		inp.cursor++
		inp.dirty = true
	}
}

func (inp *Input) moveCursorHome() {
	inp.cursor = 0
	inp.dirty = true
}

func (inp *Input) moveCursorEnd() {
	inp.cursor = len(inp.text)
	inp.dirty = true
}

func (inp *Input) killToEnd() {
	if inp.cursor >= len(inp.text) {
		return
	}
	inp.saveUndo()
	killed := strings.Join(inp.text[inp.cursor:], "")
	if inp.lastAction == actionKillForward {
		inp.ring.PushAccumulate(killed, false)
	} else {
		inp.ring.Push(killed)
	}
	inp.text = inp.text[:inp.cursor]
	inp.lastAction = actionKillForward
	inp.dirty = true
}

func (inp *Input) killToStart() {
	if inp.cursor == 0 {
		return
	}
	inp.saveUndo()
	killed := strings.Join(inp.text[:inp.cursor], "")
	if inp.lastAction == actionKillBackward {
		inp.ring.PushAccumulate(killed, true)
	} else {
		inp.ring.Push(killed)
	}
	inp.text = inp.text[inp.cursor:]
	inp.cursor = 0
	inp.lastAction = actionKillBackward
	inp.dirty = true
}

func (inp *Input) yank() {
	yanked := inp.ring.Yank()
	if yanked == "" {
		return
	}
	inp.saveUndo()
	graphemes := graphemesOf(yanked)
	newText := make([]string, 0, len(inp.text)+len(graphemes))
	newText = append(newText, inp.text[:inp.cursor]...)
	newText = append(newText, graphemes...)
	newText = append(newText, inp.text[inp.cursor:]...)
	inp.text = newText
	inp.cursor += len(graphemes)
	inp.lastAction = actionYank
	inp.lastYankLen = len(graphemes)
	inp.dirty = true
}

func (inp *Input) yankPop() {
	if inp.lastAction != actionYank || inp.ring.Len() < 2 {
		return
	}
	start := inp.cursor - inp.lastYankLen
	if start < 0 {
		return
	}
	yanked := inp.ring.YankPop()
	graphemes := graphemesOf(yanked)
	newText := make([]string, 0, len(inp.text)-inp.lastYankLen+len(graphemes))
	newText = append(newText, inp.text[:start]...)
	newText = append(newText, graphemes...)
	newText = append(newText, inp.text[inp.cursor:]...)
	inp.text = newText
	inp.cursor = start + len(graphemes)
	inp.lastAction = actionYank
	inp.lastYankLen = len(graphemes)
	inp.dirty = true
}

func (inp *Input) doUndo() {
	state, ok := inp.undoStack.Undo()
	if !ok {
		return
	}
	inp.text = state.text
	inp.cursor = state.cursor
	inp.lastAction = actionOther
	inp.dirty = true
}

func (inp *Input) deleteWordBackward() {
	if inp.cursor == 0 {
		return
	}
	inp.saveUndo()
	pos := inp.cursor - 1
	for pos > 0 && classifyGrapheme(inp.text[pos]) == clsSpace {
		pos--
	}
	for pos > 0 && classifyGrapheme(inp.text[pos-1]) != clsSpace {
		pos--
	}
	deleted := strings.Join(inp.text[pos:inp.cursor], "")
	inp.ring.Push(deleted)
	inp.text = append(inp.text[:pos], inp.text[inp.cursor:]...)
	inp.cursor = pos
	inp.lastAction = actionOther
	inp.dirty = true
}

func (inp *Input) saveUndo() {
	state := inputState{
		text:   append([]string{}, inp.text...),
		cursor: inp.cursor,
	}
	inp.undoStack.Push(state)
}

// handlePasteText normalizes a bracketed-paste payload to a single line
// (newlines become spaces, since this input has no concept of multiple
// logical lines) and inserts it at the cursor as one splice.
func (inp *Input) handlePasteText(raw string) {
	inp.saveUndo()
	collapsed := strings.ReplaceAll(raw, "\r\n", " ")
	collapsed = strings.ReplaceAll(collapsed, "\r", " ")
	collapsed = strings.ReplaceAll(collapsed, "\n", " ")
	collapsed = strings.ReplaceAll(collapsed, "\t", "    ")
	var b strings.Builder
	for _, r := range collapsed {
		if r >= 0x20 && r != 0x7f {
			b.WriteRune(r)
		}
	}
	graphemes := graphemesOf(b.String())
	newText := make([]string, 0, len(inp.text)+len(graphemes))
	newText = append(newText, inp.text[:inp.cursor]...)
	newText = append(newText, graphemes...)
	newText = append(newText, inp.text[inp.cursor:]...)
	inp.text = newText
	inp.cursor += len(graphemes)
	inp.lastAction = actionPaste
	inp.dirty = true
}

// Render writes the input line into the buffer with optional cursor marker.
func (inp *Input) Render(out *tui.RenderBuffer, w int) {
	if len(inp.text) == 0 && inp.placeholder != "" && inp.focused {
		line := "\x1b[2m" + inp.placeholder + "\x1b[0m"
		line = tui.CursorMarker + line
		out.WriteLine(line)
		return
	}

	if len(inp.text) == 0 && !inp.focused {
		out.WriteLine("")
		return
	}

	displayText := strings.Join(inp.text, "")

	if !inp.focused {
		out.WriteLine(width.TruncateToWidth(displayText, w))
		return
	}

	inp.updateScrollOffset(w)

	var b strings.Builder
	visibleStart := inp.scrollOff
	visibleEnd := visibleStart + w - 1 // leave room for cursor
	if visibleEnd > len(inp.text) {
		visibleEnd = len(inp.text)
	}

	for i := visibleStart; i < visibleEnd; i++ {
		if i == inp.cursor {
			b.WriteString(tui.CursorMarker)
		}
		b.WriteString(inp.text[i])
	}
	if inp.cursor >= visibleEnd {
		b.WriteString(tui.CursorMarker)
	}

	out.WriteLine(b.String())
	inp.dirty = false
}

func (inp *Input) updateScrollOffset(w int) {
	if w <= 0 {
		return
	}
	if inp.cursor < inp.scrollOff {
		inp.scrollOff = inp.cursor
	}
	if inp.cursor >= inp.scrollOff+w {
		inp.scrollOff = inp.cursor - w + 1
	}
}
