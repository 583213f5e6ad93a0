// ABOUTME: Cross-platform clipboard write using pbcopy (macOS) or xclip (Linux)
// ABOUTME: Pipes text to the platform clipboard command via stdin

package clipboard

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
)

// Write copies text to the system clipboard.
func Write(text string) error {
	cmd, args := clipboardCmd()
	if cmd == "" {
		return fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}

	c := exec.Command(cmd, args...)
	c.Stdin = strings.NewReader(text)
	return c.Run()
}

// WriteOSC52 copies text to the system clipboard by emitting an OSC 52
// escape sequence to the terminal, bypassing any local clipboard binary.
// This is the fallback path for remote/SSH sessions where pbcopy/xclip
// aren't reachable but the terminal emulator itself honors OSC 52.
func WriteOSC52(w io.Writer, text string) error {
	_, err := osc52.New(text).WriteTo(w)
	return err
}

// clipboardCmd returns the clipboard command and arguments for the current OS.
func clipboardCmd() (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "pbcopy", nil
	case "linux":
		return "xclip", []string{"-selection", "clipboard"}
	default:
		return "", nil
	}
}
