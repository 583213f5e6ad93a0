// ABOUTME: Demo entry point wiring the terminal driver, TUI engine, multi-line
// ABOUTME: editor, and file-mention autocomplete provider into a runnable chat-style CLI

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/foldterm/foldterm/component"
	"github.com/foldterm/foldterm/terminal"
	"github.com/foldterm/foldterm/theme"
	"github.com/foldterm/foldterm/tui"
)

// submitByte is the raw control byte this demo reserves for "submit the
// editor's current text", since the editor itself always treats Enter as
// "insert a newline" (it's a multi-line component; see SPEC_FULL.md's
// autocomplete Enter-falls-through-to-submit carve-out, which only applies
// inside an active slash-command completion). Ctrl+S is free in raw mode
// once the terminal's own XON/XOFF flow control is disabled, which
// EnterRawMode already does.
const submitByte = 0x13

func main() {
	themeName := flag.String("theme", "default", "color theme to use (default, dark, light, monochrome)")
	projectRoot := flag.String("root", ".", "project root scanned for @mention file completion")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tuidemo: creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*themeName, *projectRoot, logger); err != nil {
		logger.Error("tuidemo exited with error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "tuidemo: %v\n", err)
		os.Exit(1)
	}
}

func run(themeName, projectRoot string, logger *zap.Logger) error {
	if th := theme.Builtin(themeName); th != nil {
		theme.Set(th)
	} else {
		logger.Warn("unknown theme, using default", zap.String("theme", themeName))
	}

	term := terminal.NewProcessTerminal()
	if err := term.EnterRawMode(); err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer func() {
		if err := term.ExitRawMode(); err != nil {
			logger.Warn("restoring terminal state failed", zap.Error(err))
		}
	}()

	width, height, err := term.Size()
	if err != nil {
		return fmt.Errorf("getting terminal size: %w", err)
	}

	engine := tui.New(term, width, height)
	engine.CrashLogDir = os.TempDir()
	engine.OnFatal = func(err error) {
		logger.Error("tui render overflow", zap.Error(err))
	}

	transcript := component.NewText("")
	editor := component.NewEditor()
	editor.SetFocused(true)
	editor.SetViewportRows(6)
	editor.SetPadding(1)

	mentions := component.NewFileMentionSelector(projectRoot, projectRoot)
	if err := mentions.ScanProject(); err != nil {
		logger.Warn("scanning project for file mentions failed", zap.Error(err))
	}
	editor.SetAutocompleteProvider(mentions)

	hist := component.NewHistory()
	histPath := historyFilePath()
	if histPath != "" {
		if err := hist.LoadFromFile(histPath); err != nil {
			logger.Warn("loading prompt history failed", zap.Error(err))
		}
	}

	engine.Container().Add(transcript)
	engine.Container().Add(hist)
	engine.Container().Add(editor)
	engine.SetFocus(editor)

	term.OnResize(func(w, h int) {
		engine.SetSize(w, h)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	engine.Start()
	defer engine.Stop()

	logger.Info("tuidemo started", zap.String("theme", themeName), zap.String("root", projectRoot))

	inputCh := make(chan string)
	go readLoop(os.Stdin, inputCh)

	transcriptText := ""
	searching := false
	for {
		select {
		case <-sigCh:
			logger.Info("tuidemo stopping on signal")
			return nil
		case data, ok := <-inputCh:
			if !ok {
				return nil
			}
			if len(data) == 1 && data[0] == 0x03 { // Ctrl+C
				return nil
			}
			if !searching && len(data) == 1 && data[0] == 0x12 { // Ctrl+R
				searching = true
				hist.StartSearch()
				engine.SetFocus(hist)
				continue
			}
			if searching {
				engine.HandleInput(data)
				if !hist.IsSearching() {
					searching = false
					if match := hist.Current(); match != "" {
						editor.SetText(match)
					}
					hist.Reset()
					engine.SetFocus(editor)
				}
				continue
			}
			if len(data) == 1 && data[0] == submitByte {
				text := editor.Submit()
				if text == "" {
					continue
				}
				editor.PushHistory(text)
				hist.Add(text)
				if histPath != "" {
					if err := hist.SaveToFile(histPath); err != nil {
						logger.Warn("saving prompt history failed", zap.Error(err))
					}
				}
				transcriptText += "> " + text + "\n"
				transcript.SetContent(transcriptText)
				editor.SetText("")
				engine.RequestRender()
				continue
			}
			engine.HandleInput(data)
		}
	}
}

// historyFilePath returns the path used to persist prompt history across
// runs, or "" if the home directory can't be resolved (history is then kept
// in-memory for the session only).
func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".foldterm", "history")
}

// readLoop blocks on stdin reads and forwards each chunk as a string,
// mirroring the terminal contract's "raw byte input" delivery model
// (SPEC_FULL.md section 6) without the full StdinBuffer's escape-sequence
// buffering, since this demo dispatches whole chunks straight to the
// engine's own key.ParseKey-based HandleInput.
func readLoop(r *os.File, out chan<- string) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out <- string(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
