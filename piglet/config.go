package piglet

import (
	"errors"
	"fmt"
	"time"

	"github.com/nf/piglet/chip8"
)

// Config holds the settings of a Runner and its frontends.
type Config struct {
	ExecHz  int           // instructions per second
	TimerHz int           // timer decrements per second
	Scale   int           // window pixels per CHIP-8 pixel
	KeyHold time.Duration // how long a terminal key press is held
}

var DefaultConfig = Config{
	ExecHz:  500,
	TimerHz: 60,
	Scale:   10,
	KeyHold: 150 * time.Millisecond,
}

var ErrConfig = errors.New("invalid config")

func (c Config) Validate() error {
	if _, err := c.Clock(); err != nil {
		return err
	}
	if c.Scale < 1 || c.Scale > 64 {
		return fmt.Errorf("%w: scale %d out of range 1-64", ErrConfig, c.Scale)
	}
	if c.KeyHold <= 0 {
		return fmt.Errorf("%w: key hold %v", ErrConfig, c.KeyHold)
	}
	return nil
}

func (c Config) Clock() (chip8.Clock, error) {
	return chip8.NewClock(c.ExecHz, c.TimerHz)
}
