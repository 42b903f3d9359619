package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nf/piglet/chip8"
	"github.com/nf/piglet/piglet"
)

// debugger is a terminal user interface for controlling a Runner.
type debugger struct {
	run *piglet.Runner

	log   *tview.TextView
	watch *tview.TextView
	state *tview.TextView
	input *tview.InputField
	cols  *tview.Flex
	rows  *tview.Flex
	app   *tview.Application

	mu      sync.Mutex
	brk     *uint16
	watches []watchpoint
}

type watchpoint struct {
	addr  uint16
	short bool
}

const debugHelp = "commands: b <addr> (break), b (clear), p (pause), s (step), c (continue), w <addr>, w2 <addr> (watch), exit"

func newDebugger(r *piglet.Runner) *debugger {
	d := &debugger{
		run: r,
		log: tview.NewTextView().
			SetMaxLines(1000),
		watch: tview.NewTextView().
			SetWrap(false).
			SetTextAlign(tview.AlignRight),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField(),
		cols:  tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app: tview.NewApplication(),
	}
	d.log.SetChangedFunc(func() { d.app.Draw() })
	d.watch.SetBackgroundColor(tcell.ColorDarkBlue)
	d.state.SetBackgroundColor(tcell.ColorDarkGrey)
	d.state.SetTextColor(tcell.ColorBlack)
	d.cols.
		AddItem(d.watch, 0, 1, false).
		AddItem(d.log, 0, 2, false)
	d.rows.
		AddItem(d.cols, 0, 1, false).
		AddItem(d.state, 3, 0, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)
	d.input.SetPlaceholder(debugHelp)
	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		cmd := d.input.GetText()
		if cmd == "" {
			return
		}
		d.input.SetText("")
		d.command(cmd)
	})
	return d
}

func (d *debugger) command(cmd string) {
	if cmd == "exit" {
		d.app.Stop()
		return
	}
	if cmd, arg, ok := strings.Cut(cmd, " "); ok {
		addr, err := parseAddr(arg)
		if err != nil {
			log.Printf("invalid address %q", arg)
			return
		}
		switch cmd {
		case "b", "break":
			d.run.SetBreak(addr)
			d.mu.Lock()
			d.brk = &addr
			d.mu.Unlock()
			log.Printf("set break %.3x", addr)
		case "w", "w2", "watch", "watch2":
			d.mu.Lock()
			d.watches = append(d.watches,
				watchpoint{addr: addr, short: strings.HasSuffix(cmd, "2")})
			d.mu.Unlock()
			log.Printf("watching %.3x", addr)
		default:
			log.Printf("unknown command %q", cmd)
		}
		return
	}
	switch cmd {
	case "b", "break":
		d.run.ClearBreak()
		d.mu.Lock()
		d.brk = nil
		d.mu.Unlock()
		log.Print("cleared break")
	case "p", "pause":
		d.run.Pause()
	case "s", "step":
		if !d.run.Paused() {
			log.Print("not paused")
		}
		d.run.Step()
	case "c", "cont", "continue":
		d.run.Continue()
	case "h", "help":
		log.Print(debugHelp)
	default:
		log.Printf("unknown command %q", cmd)
	}
}

// parseAddr parses a hexadecimal address, with or without a 0x prefix.
func parseAddr(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	if n >= chip8.MemSize {
		return 0, fmt.Errorf("address %x out of range", n)
	}
	return uint16(n), nil
}

func (d *debugger) Run() error { return d.app.Run() }

func (d *debugger) Stop() { d.app.QueueUpdate(d.app.Stop) }

func (d *debugger) StateFunc(m *chip8.Machine, k piglet.StateKind) {
	var (
		watch = d.watchContent(m)
		state string
	)
	if k != piglet.ClearState && k != piglet.QuietState {
		state = stateMsg(m, k)
	}
	d.app.QueueUpdateDraw(func() {
		switch k {
		case piglet.ClearState:
			d.state.SetTextColor(tcell.ColorBlack)
			d.state.SetBackgroundColor(tcell.ColorDarkGrey)
		case piglet.BreakState:
			d.state.SetTextColor(tcell.ColorYellow)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case piglet.PauseState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case piglet.HaltState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkRed)
		}
		d.watch.SetText(watch)
		if k != piglet.QuietState {
			d.state.SetText(state)
		}
	})
}

func stateMsg(m *chip8.Machine, k piglet.StateKind) string {
	instr := "???"
	if in, err := chip8.Decode(m.Fetch()); err == nil {
		instr = in.String()
	}
	kind := "       "
	switch k {
	case piglet.BreakState:
		kind = "[break]"
	case piglet.PauseState:
		kind = "[pause]"
	case piglet.HaltState:
		kind = "[HALT!]"
	}
	return fmt.Sprintf("%.3x %.4x %-16s %s  I %.3x  DT %.2x  ST %.2x\nV: % x\nstack: %v\n",
		m.PC, m.Fetch(), instr, kind, m.I, m.DT, m.ST, m.V[:], &m.Stack)
}

func (d *debugger) watchContent(m *chip8.Machine) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if a := d.brk; a != nil {
		fmt.Fprintf(&b, "[%.3x] brk!\n", *a)
	}
	for _, w := range d.watches {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%.3x] ", w.addr)
		if w.short {
			fmt.Fprintf(&b, "%.2x%.2x", m.Mem[w.addr], m.Mem[(w.addr+1)%chip8.MemSize])
		} else {
			fmt.Fprintf(&b, "  %.2x", m.Mem[w.addr])
		}
	}
	return b.String()
}
