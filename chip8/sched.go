package chip8

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Clock holds the two periods that pace a Machine: one instruction is
// executed every Exec, and the timers decay once every Timer.
type Clock struct {
	Exec  time.Duration
	Timer time.Duration
}

// DefaultClock runs 500 instructions and 60 timer decrements per second.
var DefaultClock = Clock{
	Exec:  time.Second / 500,
	Timer: time.Second / 60,
}

var ErrClock = errors.New("invalid clock")

// NewClock returns a Clock for the given frequencies in Hz.
// The instruction frequency must be greater than the timer frequency.
func NewClock(execHz, timerHz int) (Clock, error) {
	if timerHz <= 0 || execHz <= timerHz || execHz > int(time.Second/time.Microsecond) {
		return Clock{}, fmt.Errorf("%w: %d Hz instructions, %d Hz timers", ErrClock, execHz, timerHz)
	}
	return Clock{
		Exec:  time.Second / time.Duration(execHz),
		Timer: time.Second / time.Duration(timerHz),
	}, nil
}

// SetClock changes the periods the machine is paced by and restarts both
// of them.
func (m *Machine) SetClock(c Clock) {
	m.clock = c
	m.execLeft, m.timerLeft = 0, 0
}

// Clock returns the periods the machine is paced by.
func (m *Machine) Clock() Clock { return m.clock }

// ExecDue reports whether the next Step executes an instruction.
func (m *Machine) ExecDue() bool { return m.execLeft == 0 }

// Step advances the machine to its next scheduled event. If an instruction
// is due it is executed, and if a timer decay is due the timers are
// decremented. Step returns how long the caller should wait before calling
// Step again.
//
// If Exec fails the instruction remains due, and the timers are not touched,
// so the next Step retries it.
func (m *Machine) Step(ctx context.Context) (time.Duration, error) {
	if m.execLeft == 0 {
		if err := m.Exec(ctx); err != nil {
			return 0, err
		}
		m.execLeft = m.clock.Exec
	}
	if m.timerLeft == 0 {
		m.Tick()
		m.timerLeft = m.clock.Timer
	}
	d := m.execLeft
	if m.timerLeft < d {
		d = m.timerLeft
	}
	m.execLeft -= d
	m.timerLeft -= d
	return d, nil
}
