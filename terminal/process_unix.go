// ABOUTME: Unix-specific SIGWINCH handling for ProcessTerminal resize events.
// ABOUTME: Spawns a goroutine that listens for SIGWINCH and invokes the resize callback.

//go:build unix

package terminal

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// startResizeListener sets up a SIGWINCH handler that calls the resize
// callback with the new terminal dimensions. Delivery runs through a
// self-pipe: the signal goroutine only writes a wakeup byte, and a single
// reader goroutine drains the pipe and invokes the callback. This keeps
// signal delivery itself non-blocking and coalesces any SIGWINCH bursts
// that arrive faster than the callback can run (e.g. while the render
// goroutine is mid-write inside a synchronized-output frame) into a single
// "check the size again" wakeup, instead of relying on the os/signal
// channel's own buffering to avoid backpressure on the signal handler.
func (t *ProcessTerminal) startResizeListener() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)

	r, w, err := pipe2()
	if err != nil {
		// Fall back to driving the callback directly off the signal channel.
		go t.watchSignalDirect(sigCh)
		return
	}

	go func() {
		buf := make([]byte, 1)
		for range sigCh {
			_, _ = unix.Write(w, buf)
		}
	}()

	go t.drainResizePipe(r)
}

// pipe2 creates a self-pipe with a blocking read end (so the drain goroutine
// can sleep in Read instead of busy-polling) and a non-blocking write end
// (so the signal-handling goroutine never stalls writing a wakeup byte,
// even if the drain side has fallen behind and the pipe buffer is full).
func pipe2() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return 0, 0, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func (t *ProcessTerminal) drainResizePipe(r int) {
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(r, buf)
		if n <= 0 {
			if err == unix.EINTR {
				continue
			}
			return
		}
		t.notifyResize()
	}
}

func (t *ProcessTerminal) watchSignalDirect(sigCh <-chan os.Signal) {
	for range sigCh {
		t.notifyResize()
	}
}

func (t *ProcessTerminal) notifyResize() {
	t.mu.Lock()
	fn := t.resizeFn
	t.mu.Unlock()

	if fn == nil {
		return
	}

	w, h, err := t.Size()
	if err != nil {
		return
	}
	fn(w, h)
}
