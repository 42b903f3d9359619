//go:build !linux

package piglet

import (
	"context"
	"errors"

	"github.com/nf/piglet/chip8"
)

// Evdev is only available on Linux.
type Evdev struct{}

func OpenEvdev(path string) (*Evdev, error) {
	return nil, errors.New("evdev: input devices are only supported on linux")
}

func (e *Evdev) Close() error { return nil }

func (e *Evdev) Pressed(k chip8.Key) (bool, error) { return false, nil }

func (e *Evdev) WaitKey(ctx context.Context) (chip8.Key, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}
