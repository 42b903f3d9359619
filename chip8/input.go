package chip8

import (
	"context"
	"fmt"
)

// Key is one of the 16 logical keys of the CHIP-8 keypad.
type Key byte

const NumKeys = 16

func (k Key) String() string {
	if k < NumKeys {
		return fmt.Sprintf("%X", byte(k))
	}
	return fmt.Sprintf("Key(%d)", byte(k))
}

// Input provides access to the keypad.
//
// Both methods must discard any backlog of input events before looking at
// the keypad, so that results reflect its current state.
type Input interface {
	// Pressed reports whether k is held down right now.
	Pressed(k Key) (bool, error)

	// WaitKey blocks until a key is pressed and returns it.
	// It returns early with ctx.Err() if ctx is done.
	WaitKey(ctx context.Context) (Key, error)
}
