package piglet

import (
	"context"
	"sync"
	"time"
	"unicode"

	"github.com/nf/piglet/chip8"
)

// Keypad is a chip8.Input whose state is set by a frontend.
// It is safe for concurrent use.
type Keypad struct {
	now func() time.Time

	mu      sync.Mutex
	down    [chip8.NumKeys]bool
	until   [chip8.NumKeys]time.Time
	presses chan chip8.Key
}

func NewKeypad() *Keypad {
	return &Keypad{
		now:     time.Now,
		presses: make(chan chip8.Key, chip8.NumKeys),
	}
}

// Press marks k as held until Release is called.
func (p *Keypad) Press(k chip8.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	was := p.pressed(k)
	p.down[k] = true
	if !was {
		p.pressedEvent(k)
	}
}

// Release marks k as no longer held.
func (p *Keypad) Release(k chip8.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down[k] = false
	p.until[k] = time.Time{}
}

// Hold marks k as held for d, for sources that report presses but no
// releases. Holding a key that is already held extends the hold.
func (p *Keypad) Hold(k chip8.Key, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	was := p.pressed(k)
	if t := p.now().Add(d); t.After(p.until[k]) {
		p.until[k] = t
	}
	if !was {
		p.pressedEvent(k)
	}
}

func (p *Keypad) pressed(k chip8.Key) bool {
	return p.down[k] || p.now().Before(p.until[k])
}

func (p *Keypad) pressedEvent(k chip8.Key) {
	select {
	case p.presses <- k:
	default:
		// Nobody is waiting and the backlog is full.
	}
}

// Pressed implements chip8.Input.
func (p *Keypad) Pressed(k chip8.Key) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pressed(k & 0xf), nil
}

// WaitKey implements chip8.Input. Presses that happened before WaitKey was
// called are discarded.
func (p *Keypad) WaitKey(ctx context.Context) (chip8.Key, error) {
drain:
	for {
		select {
		case <-p.presses:
		default:
			break drain
		}
	}
	select {
	case k := <-p.presses:
		return k, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Layout is the physical arrangement of the keypad on a QWERTY keyboard,
// as the keys of the keyboard map onto the logical keys below.
var (
	Layout = [4]string{
		"1234",
		"qwer",
		"asdf",
		"zxcv",
	}
	layoutKeys = [4][4]chip8.Key{
		{0x1, 0x2, 0x3, 0xc},
		{0x4, 0x5, 0x6, 0xd},
		{0x7, 0x8, 0x9, 0xe},
		{0xa, 0x0, 0xb, 0xf},
	}
	runeKeys = func() map[rune]chip8.Key {
		m := map[rune]chip8.Key{}
		for row, s := range Layout {
			for col, r := range s {
				m[r] = layoutKeys[row][col]
			}
		}
		return m
	}()
)

// KeyForRune returns the logical key for the keyboard key that types r.
func KeyForRune(r rune) (chip8.Key, bool) {
	k, ok := runeKeys[unicode.ToLower(r)]
	return k, ok
}
