package piglet

import (
	"context"
	"sync"

	"github.com/nf/piglet/chip8"
)

// StateKind says why a StateFunc was called.
type StateKind int

const (
	QuietState StateKind = iota // periodic update while running
	ClearState                  // execution resumed
	BreakState                  // stopped at the breakpoint
	PauseState                  // paused, or stepped while paused
	HaltState                   // the program halted
)

// StateFunc is called by a Runner to report the state of its machine.
// It is called on the runner's goroutine and must not retain m.
type StateFunc func(m *chip8.Machine, k StateKind)

// debugger holds the pause and breakpoint state of a Runner.
type debugger struct {
	mu     sync.Mutex
	brk    uint16
	hasBrk bool
	paused bool
	kind   StateKind // reported while paused
	steps  int       // instructions to execute while paused
	wake   chan bool
}

func newDebugger() *debugger {
	return &debugger{wake: make(chan bool, 1)}
}

func (d *debugger) signal() {
	select {
	case d.wake <- true:
	default:
	}
}

// SetBreak stops execution before the instruction at addr is executed.
func (r *Runner) SetBreak(addr uint16) {
	d := r.dbg
	d.mu.Lock()
	defer d.mu.Unlock()
	d.brk, d.hasBrk = addr, true
}

// ClearBreak removes the breakpoint.
func (r *Runner) ClearBreak() {
	d := r.dbg
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasBrk = false
}

// Pause stops execution before the next instruction.
func (r *Runner) Pause() {
	d := r.dbg
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused, d.kind = true, PauseState
}

// Step executes one instruction while paused.
func (r *Runner) Step() {
	d := r.dbg
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.paused {
		return
	}
	d.steps++
	d.kind = PauseState
	d.signal()
}

// Continue resumes execution after a pause or a breakpoint.
func (r *Runner) Continue() {
	d := r.dbg
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.paused {
		return
	}
	d.paused, d.steps = false, 0
	d.signal()
}

// Paused reports whether execution is paused.
func (r *Runner) Paused() bool {
	d := r.dbg
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// checkpoint is called before each instruction. It blocks while execution
// is paused, reporting the machine's state when it stops and when it
// resumes. The breakpoint is not checked when an instruction is retried.
func (r *Runner) checkpoint(ctx context.Context, m *chip8.Machine, retry bool) error {
	d := r.dbg
	d.mu.Lock()
	if d.hasBrk && m.PC == d.brk && !retry {
		d.paused, d.kind = true, BreakState
	}
	stopped := false
	for d.paused && d.steps == 0 {
		kind := d.kind
		d.mu.Unlock()
		if !stopped {
			r.report(m, kind)
			stopped = true
		}
		select {
		case <-d.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
		d.mu.Lock()
	}
	if d.paused {
		d.steps--
	}
	paused := d.paused
	d.mu.Unlock()
	if stopped && !paused {
		r.report(m, ClearState)
	}
	return nil
}

func (r *Runner) report(m *chip8.Machine, k StateKind) {
	if r.state != nil {
		r.state(m, k)
	}
}
