package piglet

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nf/piglet/chip8"
)

// Terminal is a Frontend that draws the display in the terminal, two
// pixels to a character cell. Terminals report key presses but not
// releases, so each key typed is held for a fixed time.
type Terminal struct {
	keys *Keypad
	hold time.Duration

	app    *tview.Application
	grid   *tview.Box
	status *tview.TextView

	mu      sync.Mutex
	frame   chip8.Grid
	pending bool // a draw is queued
}

func NewTerminal(keys *Keypad, cfg Config, title string) *Terminal {
	t := &Terminal{
		keys: keys,
		hold: cfg.KeyHold,
		app:  tview.NewApplication(),
		grid: tview.NewBox().
			SetBorder(true).
			SetTitle(" " + title + " "),
		status: tview.NewTextView().
			SetWrap(false),
	}
	t.grid.SetDrawFunc(t.drawGrid)
	t.status.SetTextColor(tcell.ColorDarkGrey)
	t.status.SetText(fmt.Sprintf("%d Hz  keys %s  esc quit",
		cfg.ExecHz, strings.Join(Layout[:], "/")))

	rows := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.grid, chip8.Height/2+2, 0, false).
		AddItem(t.status, 1, 0, false).
		AddItem(nil, 0, 1, false)
	cols := tview.NewFlex().
		AddItem(rows, chip8.Width+2, 0, true).
		AddItem(nil, 0, 1, false)
	t.app.SetRoot(cols, true)
	t.app.SetInputCapture(t.key)
	return t
}

func (t *Terminal) key(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		t.app.Stop()
		return nil
	case tcell.KeyRune:
		if k, ok := KeyForRune(ev.Rune()); ok {
			t.keys.Hold(k, t.hold)
			return nil
		}
	}
	return ev
}

// Redraw implements chip8.Sink.
func (t *Terminal) Redraw(cur, prev *chip8.Grid, dirty bool) error {
	t.mu.Lock()
	t.frame = *cur
	queue := !t.pending
	t.pending = true
	t.mu.Unlock()
	if queue {
		t.app.QueueUpdateDraw(func() {})
	}
	return nil
}

func (t *Terminal) drawGrid(s tcell.Screen, x, y, width, height int) (int, int, int, int) {
	t.mu.Lock()
	frame := t.frame
	t.pending = false
	t.mu.Unlock()

	// Inside the border.
	x, y, width, height = x+1, y+1, width-2, height-2
	style := tcell.StyleDefault
	for row := 0; row < chip8.Height/2 && row < height; row++ {
		for col := 0; col < chip8.Width && col < width; col++ {
			s.SetContent(x+col, y+row, halfBlock(
				frame.At(col, row*2),
				frame.At(col, row*2+1),
			), nil, style)
		}
	}
	return x, y, width, height
}

// halfBlock returns the character that shows top above bottom.
func halfBlock(top, bottom byte) rune {
	switch {
	case top != 0 && bottom != 0:
		return '█'
	case top != 0:
		return '▀'
	case bottom != 0:
		return '▄'
	}
	return ' '
}

func (t *Terminal) Run(exit <-chan bool) error {
	go func() {
		<-exit
		// Queued so that it takes effect even if the application has
		// not started yet.
		t.app.QueueUpdate(t.app.Stop)
	}()
	return t.app.Run()
}
