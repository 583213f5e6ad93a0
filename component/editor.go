// ABOUTME: Multi-line text editor component whose visual layout tracks the engine's word-wrap
// ABOUTME: Grapheme-aware navigation, kill ring, undo coalescing, history, paste, and autocomplete

package component

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/rivo/uniseg"

	"github.com/foldterm/foldterm/internal/killring"
	"github.com/foldterm/foldterm/internal/undo"
	"github.com/foldterm/foldterm/key"
	"github.com/foldterm/foldterm/theme"
	"github.com/foldterm/foldterm/tui"
	"github.com/foldterm/foldterm/width"
)

const (
	editorUndoDepth   = 200
	historyCap        = 100
	largePasteLines   = 10
	largePasteChars   = 1000
	defaultEditorRows = 24
)

// actionKind classifies the most recent mutating operation, used both for
// undo coalescing and for kill-ring accumulate/yank-pop eligibility.
type actionKind int

const (
	actionNone actionKind = iota
	actionTypeWord
	actionKillForward
	actionKillBackward
	actionYank
	actionHistory
	actionPaste
	actionOther
)

// jumpMode tracks character-jump-mode state (SPEC_FULL.md 4.4.5).
type jumpMode int

const (
	jumpNone jumpMode = iota
	jumpForward
	jumpBackward
)

// editorState captures the full editor state for undo.
type editorState struct {
	lines [][]string
	row   int
	col   int
}

// visualLine is one entry of the visual-line map: the rendered chunk of a
// logical line produced by word-wrap, addressed by grapheme index.
type visualLine struct {
	logicalLine int
	startCol    int
	graphemes   []string
}

func (vl visualLine) length() int { return len(vl.graphemes) }

// AutocompleteProvider is the contract the editor depends on for suggestion
// generation and completion application (SPEC_FULL.md section 6). lines is the
// editor's full text, split on logical line; cursorLine/cursorCol are grapheme
// offsets into that logical line.
type AutocompleteProvider interface {
	GetSuggestions(lines []string, cursorLine, cursorCol int) (prefix string, items []ListItem, ok bool)
	ApplyCompletion(lines []string, cursorLine, cursorCol int, selected ListItem, prefix string) (newLines []string, newLine, newCol int)
}

// ForceFileSuggester is an optional extension of AutocompleteProvider for a
// Tab-triggered file-completion path outside of an explicit @-mention context.
type ForceFileSuggester interface {
	GetForceFileSuggestions(lines []string, cursorLine, cursorCol int) (prefix string, items []ListItem, ok bool)
	ShouldTriggerFileCompletion(lines []string, cursorLine, cursorCol int) bool
}

// autocompleteSession holds the transient state of one active completion
// popup: the provider-supplied prefix/items and the SelectList presenting them.
type autocompleteSession struct {
	prefix string
	list   *SelectList
}

var pasteMarkerRe = regexp.MustCompile(`\[paste #(\d+) (?:\+\d+ lines|\d+ chars)\]`)

// Editor is a multi-line text editor with word-wrap display, grapheme-aware
// cursor tracking, kill ring, undo, history, paste handling and
// autocomplete delegation.
//
// Thread-safe: mu protects all mutable state for concurrent access from the
// input goroutine (HandleInput/HandleKey) and the render goroutine (Render).
type Editor struct {
	mu        sync.Mutex
	lines     [][]string
	row, col  int
	focused   bool
	dirty     bool
	ring      *killring.KillRing
	undoStack *undo.Stack[editorState]

	lastAction actionKind

	hasPreferredCol bool
	preferredCol    int

	lastWidth   int
	visualCache []visualLine
	scrollOff   int
	rows        int

	history          []string
	historyIdx       int // -1 = live (not browsing)
	liveSnapshot     [][]string
	liveRow, liveCol int

	pastes      map[int]string
	nextPasteID int

	jump jumpMode

	lastYankStart, lastYankEnd [2]int

	provider     AutocompleteProvider
	autocomplete *autocompleteSession

	padX int
}

// NewEditor creates a new empty Editor component.
func NewEditor() *Editor {
	return &Editor{
		lines:      [][]string{{}},
		ring:       killring.New(),
		undoStack:  undo.New[editorState](editorUndoDepth),
		historyIdx: -1,
		pastes:     make(map[int]string),
		rows:       defaultEditorRows,
		dirty:      true,
	}
}

// SetAutocompleteProvider installs the candidate-generation backend. A nil
// provider disables autocomplete entirely.
func (ed *Editor) SetAutocompleteProvider(p AutocompleteProvider) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.provider = p
}

// SetViewportRows tells the editor how many terminal rows are available, used
// for the max-visible-lines and page-scroll calculations.
func (ed *Editor) SetViewportRows(rows int) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	if rows > 0 {
		ed.rows = rows
	}
	ed.dirty = true
}

// SetPadding sets the horizontal padding reserved on each side of the content.
func (ed *Editor) SetPadding(padX int) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.padX = padX
	ed.dirty = true
}

func graphemesOf(s string) []string {
	if s == "" {
		return []string{}
	}
	out := make([]string, 0, len(s))
	state := -1
	for len(s) > 0 {
		cluster, rest, _, newState := uniseg.FirstGraphemeClusterInString(s, state)
		out = append(out, cluster)
		s = rest
		state = newState
	}
	return out
}

func splitLinesGraphemes(s string) [][]string {
	raw := splitLines(s)
	lines := make([][]string, len(raw))
	for i, l := range raw {
		lines[i] = graphemesOf(l)
	}
	return lines
}

// Text returns the full editor content as a string with newline separators.
func (ed *Editor) Text() string {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.textLocked()
}

func (ed *Editor) textLocked() string {
	parts := make([]string, len(ed.lines))
	for i, line := range ed.lines {
		parts[i] = strings.Join(line, "")
	}
	return strings.Join(parts, "\n")
}

func (ed *Editor) linesAsStrings() []string {
	out := make([]string, len(ed.lines))
	for i, l := range ed.lines {
		out[i] = strings.Join(l, "")
	}
	return out
}

// SetText replaces the editor content and resets the cursor. Forces an undo
// snapshot boundary and exits history browsing.
func (ed *Editor) SetText(s string) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	ed.saveUndo()
	ed.visualCache = nil
	ed.lines = splitLinesGraphemes(s)
	ed.row = len(ed.lines) - 1
	ed.col = len(ed.lines[ed.row])
	ed.lastAction = actionOther
	ed.clearPreferredCol()
	ed.historyIdx = -1
	ed.dirty = true
}

func (ed *Editor) setLinesFromStrings(lines []string) {
	ed.visualCache = nil
	if len(lines) == 0 {
		lines = []string{""}
	}
	ed.lines = make([][]string, len(lines))
	for i, l := range lines {
		ed.lines[i] = graphemesOf(l)
	}
}

// CursorPos returns the cursor position as (row, col) in grapheme units.
func (ed *Editor) CursorPos() (int, int) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.row, ed.col
}

// SetFocused sets the focus state.
func (ed *Editor) SetFocused(focused bool) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.focused = focused
	ed.dirty = true
}

// IsFocused returns the focus state.
func (ed *Editor) IsFocused() bool {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.focused
}

// Invalidate marks the component for re-render.
func (ed *Editor) Invalidate() {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.dirty = true
}

// PushHistory appends a completed submission to the bounded history,
// suppressing consecutive duplicates.
func (ed *Editor) PushHistory(text string) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	if text == "" {
		return
	}
	if len(ed.history) > 0 && ed.history[len(ed.history)-1] == text {
		return
	}
	ed.history = append(ed.history, text)
	if len(ed.history) > historyCap {
		ed.history = ed.history[len(ed.history)-historyCap:]
	}
	ed.historyIdx = -1
}

// Submit returns the trimmed text with every paste marker re-expanded to its
// stored content, and clears the pastes map.
func (ed *Editor) Submit() string {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	text := ed.textLocked()
	text = pasteMarkerRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := pasteMarkerRe.FindStringSubmatch(m)
		if sub == nil {
			return m
		}
		var id int
		for _, r := range sub[1] {
			id = id*10 + int(r-'0')
		}
		if full, ok := ed.pastes[id]; ok {
			return full
		}
		return m
	})
	ed.pastes = make(map[int]string)
	ed.nextPasteID = 0
	return strings.TrimSpace(text)
}

// HandleInput processes raw terminal input data.
func (ed *Editor) HandleInput(data string) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	k := key.ParseKey(data)
	if k.Type == key.KeyPaste {
		ed.handlePasteText(k.Text)
		return
	}
	ed.dispatchKey(k, data)
}

// HandleKey processes an already-parsed key event.
func (ed *Editor) HandleKey(k key.Key) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	if k.Type == key.KeyPaste {
		ed.handlePasteText(k.Text)
		return
	}
	ed.dispatchKey(k, "")
}

// dispatchKey routes a key to the appropriate editing operation, honoring
// jump-pending and autocomplete-active precedence over ordinary navigation.
func (ed *Editor) dispatchKey(k key.Key, rawData string) {
	if ed.jump != jumpNone {
		if ed.consumeJumpTarget(k, rawData) {
			return
		}
	}

	if ed.autocomplete != nil {
		if ed.dispatchAutocompleteKey(k) {
			return
		}
	}

	if k.Ctrl && k.Type == key.KeyRune {
		switch k.Rune {
		case 'a':
			ed.moveCursorHome()
			return
		case 'e':
			ed.moveCursorEnd()
			return
		case 'k':
			ed.killToLineEnd()
			return
		case 'u':
			ed.killToLineStart()
			return
		case 'y':
			ed.yank()
			return
		case 'z':
			ed.doUndo()
			return
		case 'f':
			ed.moveCursorRight()
			return
		case 'b':
			ed.moveCursorLeft()
			return
		case 'n':
			ed.handleDown()
			return
		case 'p':
			ed.handleUp()
			return
		case 'w':
			ed.deleteWordBackward()
			return
		}
	}

	if k.Alt && k.Type == key.KeyRune {
		switch k.Rune {
		case 'f':
			ed.row, ed.col = ed.wordForwardTarget()
			ed.clearPreferredCol()
			ed.dirty = true
			return
		case 'b':
			ed.row, ed.col = ed.wordBackwardTarget()
			ed.clearPreferredCol()
			ed.dirty = true
			return
		case 'd':
			ed.deleteWordForward()
			return
		case 'y':
			ed.yankPop()
			return
		}
	}

	switch k.Type {
	case key.KeyRune:
		ed.insertGrapheme(string(k.Rune))
	case key.KeyEnter:
		ed.insertNewline()
	case key.KeyBackspace:
		ed.backspace()
	case key.KeyDelete:
		ed.deleteForward()
	case key.KeyLeft:
		ed.moveCursorLeft()
	case key.KeyRight:
		ed.moveCursorRight()
	case key.KeyUp:
		ed.handleUp()
	case key.KeyDown:
		ed.handleDown()
	case key.KeyHome:
		ed.moveCursorHome()
	case key.KeyEnd:
		ed.moveCursorEnd()
	case key.KeyPageUp:
		ed.moveVisualLine(-ed.pageSize())
	case key.KeyPageDown:
		ed.moveVisualLine(ed.pageSize())
	case key.KeyTab:
		ed.tryForceFileCompletion()
	default:
		if rawData != "" {
			ed.handleControlByte(rawData)
		}
	}
}

// tryForceFileCompletion opens an autocomplete popup via the provider's
// optional ForceFileSuggester extension when Tab is pressed outside of any
// @-mention or slash-command context that GetSuggestions already covers.
func (ed *Editor) tryForceFileCompletion() {
	suggester, ok := ed.provider.(ForceFileSuggester)
	if !ok {
		return
	}
	lines := ed.linesAsStrings()
	if !suggester.ShouldTriggerFileCompletion(lines, ed.row, ed.col) {
		return
	}
	prefix, items, ok := suggester.GetForceFileSuggestions(lines, ed.row, ed.col)
	if !ok || len(items) == 0 {
		return
	}
	ed.autocomplete = &autocompleteSession{prefix: prefix, list: NewSelectList(items)}
	ed.dirty = true
}

func (ed *Editor) handleControlByte(data string) {
	if len(data) != 1 {
		return
	}
	switch data[0] {
	case 0x01: // Ctrl+A = home
		ed.moveCursorHome()
	case 0x05: // Ctrl+E = end
		ed.moveCursorEnd()
	case 0x0b: // Ctrl+K = kill to end of line
		ed.killToLineEnd()
	case 0x15: // Ctrl+U = kill to start of line
		ed.killToLineStart()
	case 0x17: // Ctrl+W = delete word backward
		ed.deleteWordBackward()
	case 0x19: // Ctrl+Y = yank
		ed.yank()
	case 0x1a: // Ctrl+Z = undo
		ed.doUndo()
	case 0x1c: // Ctrl+\ = backward character-jump mode
		ed.toggleJump(jumpBackward)
	case 0x1d: // Ctrl+] = forward character-jump mode
		ed.toggleJump(jumpForward)
	}
}

func (ed *Editor) toggleJump(m jumpMode) {
	if ed.jump == m {
		ed.jump = jumpNone
	} else {
		ed.jump = m
	}
	ed.dirty = true
}

// consumeJumpTarget handles input while character-jump mode is pending.
// Returns true if the input was consumed by jump-mode handling.
func (ed *Editor) consumeJumpTarget(k key.Key, rawData string) bool {
	if len(rawData) == 1 && (rawData[0] == 0x1c || rawData[0] == 0x1d) {
		ed.handleControlByte(rawData)
		return true
	}
	if k.Type != key.KeyRune || k.Ctrl || k.Alt {
		ed.jump = jumpNone
		return false
	}
	ed.performJump(string(k.Rune))
	ed.jump = jumpNone
	ed.dirty = true
	return true
}

func (ed *Editor) performJump(target string) {
	if ed.jump == jumpForward {
		row, col := ed.row, ed.col+1
		for row < len(ed.lines) {
			line := ed.lines[row]
			for ; col < len(line); col++ {
				if line[col] == target {
					ed.row, ed.col = row, col
					return
				}
			}
			row++
			col = 0
		}
		return
	}
	row, col := ed.row, ed.col-1
	for row >= 0 {
		line := ed.lines[row]
		if col < 0 {
			row--
			if row >= 0 {
				col = len(ed.lines[row]) - 1
			}
			continue
		}
		for ; col >= 0; col-- {
			if line[col] == target {
				ed.row, ed.col = row, col
				return
			}
		}
		row--
		if row >= 0 {
			col = len(ed.lines[row]) - 1
		}
	}
}

// ---- classification ----

type charClass int

const (
	clsSpace charClass = iota
	clsPunct
	clsWord
)

func classifyGrapheme(g string) charClass {
	if g == "" {
		return clsSpace
	}
	r := []rune(g)[0]
	switch {
	case unicode.IsSpace(r):
		return clsSpace
	case unicode.IsPunct(r) || unicode.IsSymbol(r):
		return clsPunct
	default:
		return clsWord
	}
}

func isWordChar(g string) bool {
	return g != "" && classifyGrapheme(g) == clsWord
}

// ---- editing primitives ----

// spliceTextAtCursor inserts text (which may contain newlines) at the cursor,
// splitting logical lines as needed, and leaves the cursor at the end of the
// inserted content.
func (ed *Editor) spliceTextAtCursor(text string) {
	ed.visualCache = nil
	parts := strings.Split(text, "\n")
	line := ed.lines[ed.row]
	before := append([]string{}, line[:ed.col]...)
	after := append([]string{}, line[ed.col:]...)

	if len(parts) == 1 {
		inserted := graphemesOf(parts[0])
		newLine := make([]string, 0, len(before)+len(inserted)+len(after))
		newLine = append(newLine, before...)
		newLine = append(newLine, inserted...)
		newLine = append(newLine, after...)
		ed.lines[ed.row] = newLine
		ed.col = len(before) + len(inserted)
		return
	}

	newLines := make([][]string, 0, len(ed.lines)+len(parts)-1)
	newLines = append(newLines, ed.lines[:ed.row]...)
	first := append(append([]string{}, before...), graphemesOf(parts[0])...)
	newLines = append(newLines, first)
	for i := 1; i < len(parts)-1; i++ {
		newLines = append(newLines, graphemesOf(parts[i]))
	}
	lastParts := graphemesOf(parts[len(parts)-1])
	last := append(append([]string{}, lastParts...), after...)
	newLines = append(newLines, last)
	newLines = append(newLines, ed.lines[ed.row+1:]...)

	ed.row = ed.row + len(parts) - 1
	ed.col = len(lastParts)
	ed.lines = newLines
}

func (ed *Editor) textBetween(fr, fc, tr, tc int) string {
	if fr == tr {
		return strings.Join(ed.lines[fr][fc:tc], "")
	}
	var b strings.Builder
	b.WriteString(strings.Join(ed.lines[fr][fc:], ""))
	b.WriteString("\n")
	for r := fr + 1; r < tr; r++ {
		b.WriteString(strings.Join(ed.lines[r], ""))
		b.WriteString("\n")
	}
	b.WriteString(strings.Join(ed.lines[tr][:tc], ""))
	return b.String()
}

func (ed *Editor) removeRange(fr, fc, tr, tc int) {
	ed.visualCache = nil
	if fr == tr {
		line := ed.lines[fr]
		newLine := append(append([]string{}, line[:fc]...), line[tc:]...)
		ed.lines[fr] = newLine
		return
	}
	merged := append(append([]string{}, ed.lines[fr][:fc]...), ed.lines[tr][tc:]...)
	newLines := make([][]string, 0, len(ed.lines)-(tr-fr))
	newLines = append(newLines, ed.lines[:fr]...)
	newLines = append(newLines, merged)
	newLines = append(newLines, ed.lines[tr+1:]...)
	ed.lines = newLines
}

func (ed *Editor) deleteRange(fr, fc, tr, tc int, prepend bool) {
	if fr == tr && fc == tc {
		return
	}
	ed.saveUndo()
	text := ed.textBetween(fr, fc, tr, tc)
	accumulate := ed.lastAction == actionKillForward || ed.lastAction == actionKillBackward
	if accumulate {
		ed.ring.PushAccumulate(text, prepend)
	} else {
		ed.ring.Push(text)
	}
	ed.removeRange(fr, fc, tr, tc)
	ed.row, ed.col = fr, fc
	if prepend {
		ed.lastAction = actionKillBackward
	} else {
		ed.lastAction = actionKillForward
	}
	ed.clearPreferredCol()
	ed.exitHistory()
	ed.refreshAutocomplete()
	ed.dirty = true
}

func (ed *Editor) insertGrapheme(g string) {
	isSpace := classifyGrapheme(g) == clsSpace
	if isSpace || ed.lastAction != actionTypeWord {
		ed.saveUndo()
	}
	ed.spliceTextAtCursor(g)
	ed.lastAction = actionTypeWord
	ed.clearPreferredCol()
	ed.exitHistory()
	ed.refreshAutocomplete()
	ed.dirty = true
}

func (ed *Editor) insertNewline() {
	ed.saveUndo()
	ed.spliceTextAtCursor("\n")
	ed.lastAction = actionOther
	ed.clearPreferredCol()
	ed.exitHistory()
	ed.refreshAutocomplete()
	ed.dirty = true
}

func (ed *Editor) backspace() {
	if ed.col > 0 {
		ed.saveUndo()
		ed.removeRange(ed.row, ed.col-1, ed.row, ed.col)
		ed.col--
	} else if ed.row > 0 {
		ed.saveUndo()
		prevLen := len(ed.lines[ed.row-1])
		ed.removeRange(ed.row-1, prevLen, ed.row, 0)
		ed.row--
		ed.col = prevLen
	} else {
		return
	}
	ed.lastAction = actionOther
	ed.clearPreferredCol()
	ed.exitHistory()
	ed.refreshAutocomplete()
	ed.dirty = true
}

func (ed *Editor) deleteForward() {
	line := ed.lines[ed.row]
	if ed.col < len(line) {
		ed.saveUndo()
		ed.removeRange(ed.row, ed.col, ed.row, ed.col+1)
	} else if ed.row < len(ed.lines)-1 {
		ed.saveUndo()
		ed.removeRange(ed.row, ed.col, ed.row+1, 0)
	} else {
		return
	}
	ed.lastAction = actionOther
	ed.clearPreferredCol()
	ed.exitHistory()
	ed.refreshAutocomplete()
	ed.dirty = true
}

func (ed *Editor) killToLineEnd() {
	line := ed.lines[ed.row]
	if ed.col < len(line) {
		ed.deleteRange(ed.row, ed.col, ed.row, len(line), false)
		return
	}
	if ed.row < len(ed.lines)-1 {
		ed.deleteRange(ed.row, ed.col, ed.row+1, 0, false)
	}
}

func (ed *Editor) killToLineStart() {
	ed.deleteRange(ed.row, 0, ed.row, ed.col, true)
}

// wordForwardTarget computes the target position for a forward word move,
// crossing at most one logical-line boundary per invocation.
func (ed *Editor) wordForwardTarget() (int, int) {
	row, col := ed.row, ed.col
	line := ed.lines[row]
	for col < len(line) && classifyGrapheme(line[col]) == clsSpace {
		col++
	}
	if col >= len(line) {
		if row < len(ed.lines)-1 {
			return row + 1, 0
		}
		return row, col
	}
	cls := classifyGrapheme(line[col])
	for col < len(line) && classifyGrapheme(line[col]) == cls {
		col++
	}
	return row, col
}

// wordBackwardTarget mirrors wordForwardTarget for backward word moves.
func (ed *Editor) wordBackwardTarget() (int, int) {
	row, col := ed.row, ed.col
	line := ed.lines[row]
	for col > 0 && classifyGrapheme(line[col-1]) == clsSpace {
		col--
	}
	if col == 0 {
		if row > 0 {
			return row - 1, len(ed.lines[row-1])
		}
		return row, col
	}
	cls := classifyGrapheme(line[col-1])
	for col > 0 && classifyGrapheme(line[col-1]) == cls {
		col--
	}
	return row, col
}

func (ed *Editor) deleteWordBackward() {
	tr, tc := ed.wordBackwardTarget()
	ed.deleteRange(tr, tc, ed.row, ed.col, true)
}

func (ed *Editor) deleteWordForward() {
	tr, tc := ed.wordForwardTarget()
	ed.deleteRange(ed.row, ed.col, tr, tc, false)
}

func (ed *Editor) yank() {
	text := ed.ring.Yank()
	if text == "" {
		return
	}
	ed.saveUndo()
	ed.lastYankStart = [2]int{ed.row, ed.col}
	ed.spliceTextAtCursor(text)
	ed.lastYankEnd = [2]int{ed.row, ed.col}
	ed.lastAction = actionYank
	ed.clearPreferredCol()
	ed.exitHistory()
	ed.refreshAutocomplete()
	ed.dirty = true
}

func (ed *Editor) yankPop() {
	if ed.lastAction != actionYank || ed.ring.Len() < 2 {
		return
	}
	ed.removeRange(ed.lastYankStart[0], ed.lastYankStart[1], ed.lastYankEnd[0], ed.lastYankEnd[1])
	ed.row, ed.col = ed.lastYankStart[0], ed.lastYankStart[1]
	text := ed.ring.YankPop()
	ed.spliceTextAtCursor(text)
	ed.lastYankEnd = [2]int{ed.row, ed.col}
	ed.lastAction = actionYank
	ed.refreshAutocomplete()
	ed.dirty = true
}

func (ed *Editor) doUndo() {
	state, ok := ed.undoStack.Undo()
	if !ok {
		return
	}
	ed.visualCache = nil
	ed.lines = state.lines
	ed.row = state.row
	ed.col = state.col
	ed.lastAction = actionOther
	ed.clearPreferredCol()
	ed.refreshAutocomplete()
	ed.dirty = true
}

func (ed *Editor) saveUndo() {
	lines := make([][]string, len(ed.lines))
	for i, l := range ed.lines {
		lines[i] = append([]string{}, l...)
	}
	ed.undoStack.Push(editorState{lines: lines, row: ed.row, col: ed.col})
}

func (ed *Editor) clearPreferredCol() {
	ed.hasPreferredCol = false
	ed.preferredCol = 0
}

func (ed *Editor) exitHistory() {
	ed.historyIdx = -1
}

// ---- horizontal navigation ----

func (ed *Editor) moveCursorLeft() {
	if ed.col > 0 {
		ed.col--
	} else if ed.row > 0 {
		ed.row--
		ed.col = len(ed.lines[ed.row])
	}
	ed.clearPreferredCol()
	ed.dirty = true
}

func (ed *Editor) moveCursorRight() {
	if ed.col < len(ed.lines[ed.row]) {
		ed.col++
	} else if ed.row < len(ed.lines)-1 {
		ed.row++
		ed.col = 0
	}
	ed.clearPreferredCol()
	ed.dirty = true
}

func (ed *Editor) moveCursorHome() {
	ed.col = 0
	ed.clearPreferredCol()
	ed.dirty = true
}

func (ed *Editor) moveCursorEnd() {
	ed.col = len(ed.lines[ed.row])
	ed.clearPreferredCol()
	ed.dirty = true
}

// ---- vertical navigation (visual-line map + sticky column) ----

// unrenderedContentWidth is used before the first Render call (or by callers
// that drive the cursor without ever rendering, e.g. tests): treating width
// as effectively unbounded keeps each logical line as a single visual line,
// matching plain-line cursor movement until a real terminal width is known.
const unrenderedContentWidth = 1 << 20

func (ed *Editor) contentWidth() int {
	if ed.lastWidth <= 0 {
		return unrenderedContentWidth
	}
	base := ed.lastWidth - 2*ed.padX
	if ed.padX == 0 {
		base--
	}
	if base < 1 {
		base = 1
	}
	return base
}

func (ed *Editor) visualLines() []visualLine {
	if ed.visualCache != nil {
		return ed.visualCache
	}
	cw := ed.contentWidth()
	var out []visualLine
	for li, graphemes := range ed.lines {
		if len(graphemes) == 0 {
			out = append(out, visualLine{logicalLine: li})
			continue
		}
		line := strings.Join(graphemes, "")
		chunks := width.WordWrapLine(line, cw)
		if len(chunks) == 0 {
			out = append(out, visualLine{logicalLine: li})
			continue
		}
		for _, c := range chunks {
			start := byteToGraphemeIndex(graphemes, c.StartIndex)
			end := byteToGraphemeIndex(graphemes, c.EndIndex)
			out = append(out, visualLine{logicalLine: li, startCol: start, graphemes: graphemes[start:end]})
		}
	}
	ed.visualCache = out
	return out
}

func byteToGraphemeIndex(graphemes []string, byteOffset int) int {
	acc := 0
	for i, g := range graphemes {
		if acc == byteOffset {
			return i
		}
		acc += len(g)
	}
	return len(graphemes)
}

func (ed *Editor) visualLineIndexForCursor(vls []visualLine) int {
	for i, vl := range vls {
		if vl.logicalLine != ed.row {
			continue
		}
		if ed.col >= vl.startCol && ed.col <= vl.startCol+vl.length() {
			return i
		}
	}
	return 0
}

func (ed *Editor) pageSize() int {
	size := (ed.rows * 3) / 10
	if size < 5 {
		size = 5
	}
	return size
}

func (ed *Editor) maxVisibleLines() int {
	return ed.pageSize()
}

type stickyEffect struct {
	clearPreferred  bool
	rememberCurrent bool
	moveTo          string // "current", "preferred", "end"
}

// decideSticky implements the SPEC_FULL.md 4.4.2 decision table literally.
func decideSticky(p, s, t, u bool) stickyEffect {
	switch {
	case !p && !t:
		return stickyEffect{clearPreferred: true, moveTo: "current"}
	case !p && t:
		return stickyEffect{rememberCurrent: true, moveTo: "end"}
	case p && !s && !t && !u:
		return stickyEffect{clearPreferred: true, moveTo: "preferred"}
	case p && !s && !t && u:
		return stickyEffect{moveTo: "end"}
	case p && !s && t:
		return stickyEffect{moveTo: "end"}
	case p && s && !t:
		return stickyEffect{clearPreferred: true, moveTo: "current"}
	default: // p && s && t
		return stickyEffect{rememberCurrent: true, moveTo: "end"}
	}
}

func (ed *Editor) moveVisualLine(delta int) {
	vls := ed.visualLines()
	if len(vls) == 0 {
		return
	}
	curIdx := ed.visualLineIndexForCursor(vls)
	targetIdx := curIdx + delta
	if targetIdx < 0 {
		targetIdx = 0
	}
	if targetIdx >= len(vls) {
		targetIdx = len(vls) - 1
	}
	if targetIdx == curIdx {
		return
	}

	cur := vls[curIdx]
	target := vls[targetIdx]
	currentVisualCol := ed.col - cur.startCol

	p := ed.hasPreferredCol
	s := currentVisualCol > 0 && currentVisualCol < cur.length()
	t := target.length() < currentVisualCol
	u := p && target.length() < ed.preferredCol

	eff := decideSticky(p, s, t, u)

	var newVisualCol int
	switch eff.moveTo {
	case "preferred":
		newVisualCol = ed.preferredCol
	case "end":
		newVisualCol = target.length()
	default:
		newVisualCol = currentVisualCol
	}
	if newVisualCol > target.length() {
		newVisualCol = target.length()
	}
	if newVisualCol < 0 {
		newVisualCol = 0
	}

	if eff.rememberCurrent {
		ed.preferredCol = currentVisualCol
		ed.hasPreferredCol = true
	}
	if eff.clearPreferred {
		ed.hasPreferredCol = false
		ed.preferredCol = 0
	}

	ed.row = target.logicalLine
	ed.col = target.startCol + newVisualCol
	ed.dirty = true
}

func (ed *Editor) handleUp() {
	vls := ed.visualLines()
	idx := ed.visualLineIndexForCursor(vls)
	if idx == 0 {
		ed.historyPrev()
		return
	}
	ed.moveVisualLine(-1)
}

func (ed *Editor) handleDown() {
	vls := ed.visualLines()
	idx := ed.visualLineIndexForCursor(vls)
	if idx == len(vls)-1 {
		ed.historyNext()
		return
	}
	ed.moveVisualLine(1)
}

// ---- history ----

func (ed *Editor) historyPrev() {
	if len(ed.history) == 0 {
		return
	}
	if ed.historyIdx == -1 {
		ed.liveSnapshot = make([][]string, len(ed.lines))
		for i, l := range ed.lines {
			ed.liveSnapshot[i] = append([]string{}, l...)
		}
		ed.liveRow, ed.liveCol = ed.row, ed.col
	}
	if ed.historyIdx >= len(ed.history)-1 {
		return
	}
	ed.saveUndo()
	ed.historyIdx++
	ed.setLinesFromStrings(strings.Split(ed.history[len(ed.history)-1-ed.historyIdx], "\n"))
	ed.row = len(ed.lines) - 1
	ed.col = len(ed.lines[ed.row])
	ed.lastAction = actionHistory
	ed.clearPreferredCol()
	ed.dirty = true
}

func (ed *Editor) historyNext() {
	if ed.historyIdx == -1 {
		return
	}
	ed.saveUndo()
	ed.historyIdx--
	if ed.historyIdx == -1 {
		ed.lines = ed.liveSnapshot
		ed.row, ed.col = ed.liveRow, ed.liveCol
	} else {
		ed.setLinesFromStrings(strings.Split(ed.history[len(ed.history)-1-ed.historyIdx], "\n"))
		ed.row = len(ed.lines) - 1
		ed.col = len(ed.lines[ed.row])
	}
	ed.lastAction = actionHistory
	ed.clearPreferredCol()
	ed.dirty = true
}

// ---- paste handling ----

func normalizePaste(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\t", "    ")
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || (r >= 0x20 && r != 0x7f) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func startsWithPathChar(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '/' || c == '~' || c == '.'
}

func (ed *Editor) handlePasteText(raw string) {
	ed.saveUndo()
	normalized := normalizePaste(raw)
	if normalized == "" {
		return
	}

	if ed.col > 0 {
		left := ed.lines[ed.row][ed.col-1]
		if startsWithPathChar(normalized) && isWordChar(left) {
			normalized = " " + normalized
		}
	}

	lineCount := strings.Count(normalized, "\n") + 1
	charCount := len([]rune(normalized))
	if lineCount >= largePasteLines || charCount >= largePasteChars {
		ed.nextPasteID++
		id := ed.nextPasteID
		ed.pastes[id] = normalized
		ed.spliceTextAtCursor(pasteMarkerText(id, lineCount, charCount))
	} else {
		ed.spliceTextAtCursor(normalized)
	}

	ed.lastAction = actionPaste
	ed.clearPreferredCol()
	ed.exitHistory()
	ed.refreshAutocomplete()
	ed.dirty = true
}

func pasteMarkerText(id, lineCount, charCount int) string {
	if lineCount > 1 {
		return "[paste #" + itoa(id) + " +" + itoa(lineCount) + " lines]"
	}
	return "[paste #" + itoa(id) + " " + itoa(charCount) + " chars]"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ---- autocomplete ----

func (ed *Editor) refreshAutocomplete() {
	if ed.provider == nil {
		ed.autocomplete = nil
		return
	}
	prefix, items, ok := ed.provider.GetSuggestions(ed.linesAsStrings(), ed.row, ed.col)
	if !ok || len(items) == 0 {
		ed.autocomplete = nil
		return
	}
	if ed.autocomplete == nil {
		ed.autocomplete = &autocompleteSession{list: NewSelectList(items)}
	} else {
		ed.autocomplete.list.SetItems(items)
	}
	ed.autocomplete.prefix = prefix
}

// dispatchAutocompleteKey handles input while the autocomplete popup is
// showing. Returns true if the key was consumed here.
func (ed *Editor) dispatchAutocompleteKey(k key.Key) bool {
	switch k.Type {
	case key.KeyUp, key.KeyDown:
		ed.autocomplete.list.HandleInput(keyInputFor(k))
		return true
	case key.KeyEscape:
		ed.autocomplete = nil
		ed.dirty = true
		return true
	case key.KeyTab:
		ed.acceptAutocomplete()
		return true
	case key.KeyEnter:
		prefix := ed.autocomplete.prefix
		ed.acceptAutocomplete()
		return !strings.HasPrefix(prefix, "/")
	}
	return false
}

// keyInputFor reconstructs a raw input string for forwarding Up/Down to the
// nested SelectList, which parses input via key.ParseKey itself.
func keyInputFor(k key.Key) string {
	if k.Type == key.KeyUp {
		return "\x1b[A"
	}
	return "\x1b[B"
}

func (ed *Editor) acceptAutocomplete() {
	if ed.autocomplete == nil || ed.provider == nil {
		return
	}
	selected := ed.autocomplete.list.SelectedItem()
	newLines, newRow, newCol := ed.provider.ApplyCompletion(ed.linesAsStrings(), ed.row, ed.col, selected, ed.autocomplete.prefix)
	ed.saveUndo()
	ed.setLinesFromStrings(newLines)
	ed.row, ed.col = newRow, newCol
	ed.autocomplete = nil
	ed.lastAction = actionOther
	ed.clearPreferredCol()
	ed.exitHistory()
	ed.dirty = true
}

// ---- render ----

// Render writes the editor content into the buffer, word-wrapped to match
// the visual-line map used for navigation, with borders/scroll indicators
// and an autocomplete pane when a completion session is active.
func (ed *Editor) Render(out *tui.RenderBuffer, w int) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if w <= 0 {
		return
	}
	if w != ed.lastWidth {
		ed.lastWidth = w
		ed.visualCache = nil
	}

	vls := ed.visualLines()
	maxVisible := ed.maxVisibleLines()
	cursorIdx := ed.visualLineIndexForCursor(vls)

	if ed.scrollOff > cursorIdx {
		ed.scrollOff = cursorIdx
	}
	if cursorIdx >= ed.scrollOff+maxVisible {
		ed.scrollOff = cursorIdx - maxVisible + 1
	}
	maxScroll := len(vls) - maxVisible
	if maxScroll < 0 {
		maxScroll = 0
	}
	if ed.scrollOff > maxScroll {
		ed.scrollOff = maxScroll
	}
	if ed.scrollOff < 0 {
		ed.scrollOff = 0
	}

	p := theme.Current().Palette

	above := ed.scrollOff
	if above > 0 {
		out.WriteLine(p.Muted.Apply("↑ " + itoa(above) + " more lines"))
	} else {
		out.WriteLine(p.Border.Apply(strings.Repeat("─", w)))
	}

	end := ed.scrollOff + maxVisible
	if end > len(vls) {
		end = len(vls)
	}

	showMarker := ed.focused && ed.autocomplete == nil

	for i := ed.scrollOff; i < end; i++ {
		vl := vls[i]
		isCursorLine := ed.focused && vl.logicalLine == ed.row && i == cursorIdx
		var cursorVisualCol int
		if isCursorLine {
			cursorVisualCol = ed.col - vl.startCol
		}
		out.WriteLine(ed.renderVisualLine(vl, isCursorLine, cursorVisualCol, showMarker))
	}

	below := len(vls) - end
	if below > 0 {
		out.WriteLine(p.Muted.Apply("↓ " + itoa(below) + " more lines"))
	} else {
		out.WriteLine(p.Border.Apply(strings.Repeat("─", w)))
	}

	if ed.autocomplete != nil {
		acBuf := tui.AcquireBuffer()
		ed.autocomplete.list.Render(acBuf, w)
		out.WriteLines(acBuf.Lines)
		tui.ReleaseBuffer(acBuf)
	}
}

func (ed *Editor) renderVisualLine(vl visualLine, isCursorLine bool, cursorVisualCol int, showMarker bool) string {
	graphemes := vl.graphemes
	if !isCursorLine {
		return strings.Join(graphemes, "")
	}

	var b strings.Builder
	for i, g := range graphemes {
		if i == cursorVisualCol {
			if showMarker {
				b.WriteString(tui.CursorMarker)
			}
			b.WriteString("\x1b[7m")
			b.WriteString(g)
			b.WriteString("\x1b[27m")
			continue
		}
		b.WriteString(g)
	}
	if cursorVisualCol >= len(graphemes) {
		if showMarker {
			b.WriteString(tui.CursorMarker)
		}
		b.WriteString("\x1b[7m \x1b[27m")
	}
	return b.String()
}
