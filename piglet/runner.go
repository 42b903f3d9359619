// Package piglet runs CHIP-8 programs, presenting their display and
// collecting their keys through a terminal or a window.
package piglet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nf/piglet/chip8"
)

// Frontend presents frames to the user and feeds their keys to a Keypad.
type Frontend interface {
	chip8.Sink

	// Run drives the frontend until exit is closed or the user quits.
	Run(exit <-chan bool) error
}

const (
	// Consecutive input errors tolerated before giving up.
	maxInputFailures = 3
	inputRetryDelay  = 10 * time.Millisecond

	// If the machine falls further behind the wall clock than this, for
	// instance after waiting for a key, it resumes from the current time
	// instead of catching up.
	maxLag = 100 * time.Millisecond

	// Minimum time between QuietState reports.
	quietInterval = 50 * time.Millisecond
)

// Runner executes a program on a chip8.Machine at the configured rate.
type Runner struct {
	cfg    Config
	sink   chip8.Sink
	input  chip8.Input
	state  StateFunc
	linger bool
	dbg    *debugger

	mu     sync.Mutex
	next   []byte             // program to switch to
	cancel context.CancelFunc // interrupts the running program
}

func NewRunner(cfg Config, sink chip8.Sink, input chip8.Input) *Runner {
	return &Runner{
		cfg:   cfg,
		sink:  sink,
		input: input,
		dbg:   newDebugger(),
	}
}

// SetStateFunc arranges for f to be told about the machine's state as it
// runs. It must be called before Run.
func (r *Runner) SetStateFunc(f StateFunc) { r.state = f }

// Linger makes Run wait for Swap when the program halts, instead of
// returning. It must be called before Run.
func (r *Runner) Linger() { r.linger = true }

// Swap resets the machine and restarts it with rom. It interrupts a pending
// wait for a key.
func (r *Runner) Swap(rom []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = rom
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) swapped() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rom := r.next
	r.next = nil
	return rom, rom != nil
}

// Run executes rom until ctx is done or the program halts (see Linger).
// Input errors are retried a few times before they are returned.
func (r *Runner) Run(ctx context.Context, rom []byte) error {
	clock, err := r.cfg.Clock()
	if err != nil {
		return err
	}
	m, err := chip8.NewMachine(rom)
	if err != nil {
		return err
	}
	m.Input = r.input
	m.SetClock(clock)

	for {
		err := r.withCancel(ctx, func(ctx context.Context) error {
			return r.run(ctx, m)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rom, ok := r.swapped()
		if !ok {
			var he chip8.HaltError
			if !r.linger || !errors.As(err, &he) {
				return err
			}
			log.Printf("%v; waiting for a new program", err)
			r.withCancel(ctx, func(ctx context.Context) error {
				<-ctx.Done()
				return nil
			})
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rom, _ = r.swapped()
		}
		m.Reset()
		if err := m.Load(rom); err != nil {
			return err
		}
		m.Display.Clear()
		log.Printf("reset with new program (%d bytes)", len(rom))
	}
}

// withCancel calls f with a context that Swap cancels.
func (r *Runner) withCancel(ctx context.Context, f func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancel = cancel
	if r.next != nil {
		cancel()
	}
	r.mu.Unlock()
	return f(ctx)
}

func (r *Runner) run(ctx context.Context, m *chip8.Machine) error {
	var (
		deadline = time.Now()
		quiet    = deadline
		failures int
	)
	for {
		if m.ExecDue() {
			if err := r.checkpoint(ctx, m, failures > 0); err != nil {
				return err
			}
		}
		d, err := m.Step(ctx)
		if err != nil {
			var ie *chip8.InputError
			if !errors.As(err, &ie) {
				var he chip8.HaltError
				if errors.As(err, &he) {
					r.report(m, HaltState)
				}
				return err
			}
			if failures++; failures >= maxInputFailures {
				return err
			}
			log.Printf("%v (retrying)", err)
			d = inputRetryDelay
		} else {
			failures = 0
		}
		if err := m.Display.Redraw(r.sink); err != nil {
			return fmt.Errorf("redraw: %w", err)
		}
		if r.state != nil && time.Since(quiet) >= quietInterval {
			r.report(m, QuietState)
			quiet = time.Now()
		}

		deadline = deadline.Add(d)
		if now := time.Now(); now.Sub(deadline) > maxLag {
			deadline = now
		}
		if err := sleepUntil(ctx, deadline); err != nil {
			return err
		}
	}
}

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
