package piglet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/nf/piglet/chip8"
)

// ANSI is a minimal Frontend for plain terminals. It writes only the cells
// that changed since the last frame, using cursor movement escapes, and
// reads keys from stdin in raw mode.
type ANSI struct {
	keys *Keypad
	hold time.Duration
	in   *os.File

	mu      sync.Mutex
	w       *bufio.Writer
	started bool // screen has been cleared
}

func NewANSI(keys *Keypad, cfg Config, in *os.File, out io.Writer) *ANSI {
	return &ANSI{
		keys: keys,
		hold: cfg.KeyHold,
		in:   in,
		w:    bufio.NewWriter(out),
	}
}

const (
	escClear      = "\x1b[2J"
	escHideCursor = "\x1b[?25l"
	escShowCursor = "\x1b[?25h"
	escReset      = "\x1b[0m"
)

// Redraw implements chip8.Sink.
func (a *ANSI) Redraw(cur, prev *chip8.Grid, dirty bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	full := !a.started
	if full {
		a.w.WriteString(escHideCursor + escClear)
		a.started = true
	}
	for row := 0; row < chip8.Height/2; row++ {
		y := row * 2
		for x := 0; x < chip8.Width; x++ {
			top, bottom := cur.At(x, y), cur.At(x, y+1)
			if !full && top == prev.At(x, y) && bottom == prev.At(x, y+1) {
				continue
			}
			// Cursor positions are 1-based.
			fmt.Fprintf(a.w, "\x1b[%d;%dH%c", row+1, x+1, halfBlock(top, bottom))
		}
	}
	fmt.Fprintf(a.w, "\x1b[%d;1H", chip8.Height/2+1)
	return a.w.Flush()
}

// Run reads keys from stdin until exit is closed or the user types
// Escape or Ctrl-C.
func (a *ANSI) Run(exit <-chan bool) error {
	fd := int(a.in.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("ansi: stdin is not a terminal")
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("ansi: %w", err)
	}
	defer func() {
		term.Restore(fd, old)
		a.mu.Lock()
		a.w.WriteString(escReset + escShowCursor + "\r\n")
		a.w.Flush()
		a.mu.Unlock()
	}()

	quit := make(chan error, 1)
	go func() {
		quit <- a.readKeys()
	}()
	select {
	case <-exit:
		return nil
	case err := <-quit:
		return err
	}
}

func (a *ANSI) readKeys() error {
	buf := make([]byte, 64)
	for {
		n, err := a.in.Read(buf)
		for _, b := range buf[:n] {
			switch b {
			case 0x1b, 0x03: // Escape, Ctrl-C
				return nil
			}
			if k, ok := KeyForRune(rune(b)); ok {
				a.keys.Hold(k, a.hold)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
