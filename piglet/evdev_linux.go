//go:build linux

package piglet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nf/piglet/chip8"
)

// Evdev is a chip8.Input that reads a Linux input event device, such as
// /dev/input/event0. Unlike a terminal it sees key releases, so keys are
// held exactly as long as they are on the keyboard.
type Evdev struct {
	fd int

	mu   sync.Mutex
	down [chip8.NumKeys]bool
	buf  []byte
}

const (
	evSyn      = 0x00
	evKey      = 0x01
	synDropped = 3

	// EVIOCGKEY(len), _IOC(_IOC_READ, 'E', 0x18, len)
	keyStateLen = 96
	eviocgkey   = 2<<30 | keyStateLen<<16 | 'E'<<8 | 0x18

	pollInterval = 100 // milliseconds
)

// Size of struct input_event: a timeval followed by type, code and value.
var eventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

// evdevKeys maps Linux key codes to the keypad, laid out as in Layout.
var evdevKeys = map[uint16]chip8.Key{
	2: 0x1, 3: 0x2, 4: 0x3, 5: 0xc, // 1 2 3 4
	16: 0x4, 17: 0x5, 18: 0x6, 19: 0xd, // Q W E R
	30: 0x7, 31: 0x8, 32: 0x9, 33: 0xe, // A S D F
	44: 0xa, 45: 0x0, 46: 0xb, 47: 0xf, // Z X C V
}

func OpenEvdev(path string) (*Evdev, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &PathError{Op: "open", Path: path, Err: err}
	}
	e := newEvdev(fd)
	if err := e.resync(); err != nil {
		unix.Close(fd)
		return nil, &PathError{Op: "read key state", Path: path, Err: err}
	}
	return e, nil
}

func newEvdev(fd int) *Evdev {
	return &Evdev{fd: fd, buf: make([]byte, eventSize*64)}
}

// PathError records an error and the device path that caused it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string { return fmt.Sprintf("evdev: %s %s: %v", e.Op, e.Path, e.Err) }
func (e *PathError) Unwrap() error { return e.Err }

func (e *Evdev) Close() error { return unix.Close(e.fd) }

// resync replaces the key state with the device's current key state.
func (e *Evdev) resync() error {
	var state [keyStateLen]byte
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(e.fd), eviocgkey, uintptr(unsafe.Pointer(&state[0])))
	if errno != 0 {
		return errno
	}
	for code, k := range evdevKeys {
		e.down[k] = state[code/8]&(1<<(code%8)) != 0
	}
	return nil
}

// drain applies all pending events to the key state and returns the keys
// that went down. e.mu must be held.
func (e *Evdev) drain() (pressed []chip8.Key, err error) {
	for {
		n, err := unix.Read(e.fd, e.buf)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return pressed, nil
		}
		if err != nil {
			return pressed, err
		}
		if n == 0 {
			return pressed, errors.New("evdev: device closed")
		}
		for off := 0; off+eventSize <= n; off += eventSize {
			ev := e.buf[off+eventSize-8 : off+eventSize]
			typ := binary.LittleEndian.Uint16(ev[0:])
			code := binary.LittleEndian.Uint16(ev[2:])
			value := int32(binary.LittleEndian.Uint32(ev[4:]))
			switch typ {
			case evSyn:
				if code == synDropped {
					if err := e.resync(); err != nil {
						return pressed, err
					}
				}
			case evKey:
				k, ok := evdevKeys[code]
				if !ok {
					break
				}
				// 0 release, 1 press, 2 autorepeat.
				down := value != 0
				if down && !e.down[k] {
					pressed = append(pressed, k)
				}
				e.down[k] = down
			}
		}
	}
}

// Pressed implements chip8.Input.
func (e *Evdev) Pressed(k chip8.Key) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.drain(); err != nil {
		return false, err
	}
	return e.down[k&0xf], nil
}

// WaitKey implements chip8.Input. It returns the first key to go down
// after it is called.
func (e *Evdev) WaitKey(ctx context.Context) (chip8.Key, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.drain(); err != nil {
		return 0, err
	}
	fds := []unix.PollFd{{Fd: int32(e.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		_, err := unix.Poll(fds, pollInterval)
		if err != nil && !errors.Is(err, unix.EINTR) {
			return 0, err
		}
		pressed, err := e.drain()
		if err != nil {
			return 0, err
		}
		if len(pressed) > 0 {
			return pressed[0], nil
		}
	}
}
