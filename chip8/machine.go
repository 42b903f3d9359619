// Package chip8 provides an implementation of a CHIP-8 virtual machine,
// called Machine, that can be used to execute CHIP-8 programs.
package chip8

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	MemSize     = 0x1000 // bytes of addressable memory
	ProgramAddr = 0x200  // where programs are loaded and begin execution
	MaxROMSize  = MemSize - ProgramAddr

	addrMask = MemSize - 1
	vf       = 0xf // index of the flag register
)

// Machine is an implementation of a CHIP-8 CPU together with its memory,
// timers and display surface.
//
// A Machine is not safe for concurrent use; Input is the only collaborator
// that may be fed from other goroutines.
type Machine struct {
	Mem     [MemSize]byte
	V       [16]byte // general purpose registers; V[0xf] is the flag register
	I       uint16   // index register
	PC      uint16
	DT      byte // delay timer
	ST      byte // sound timer
	Stack   Stack
	Display Display

	Input Input
	Rand  func() byte

	clock     Clock
	execLeft  time.Duration // until the next instruction
	timerLeft time.Duration // until the next timer decay
}

var ErrROMTooLarge = errors.New("rom too large")

// NewMachine returns a reset CHIP-8 machine loaded with the given rom at
// ProgramAddr, running at DefaultClock. The caller should set Input before
// executing any instruction that reads keys.
func NewMachine(rom []byte) (*Machine, error) {
	m := &Machine{clock: DefaultClock}
	m.Reset()
	if err := m.Load(rom); err != nil {
		return nil, err
	}
	return m, nil
}

// Reset zeroes all machine state, loads the glyph sprites into low memory and
// points PC at ProgramAddr. Input, Rand and the clock are kept.
func (m *Machine) Reset() {
	var (
		in    = m.Input
		rnd   = m.Rand
		clock = m.clock
	)
	*m = Machine{
		PC:    ProgramAddr,
		Input: in,
		Rand:  rnd,
		clock: clock,
	}
	copy(m.Mem[:], glyphs[:])
	if m.Rand == nil {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		m.Rand = func() byte { return byte(r.Intn(0x100)) }
	}
}

// Load copies rom into memory at ProgramAddr.
func (m *Machine) Load(rom []byte) error {
	if len(rom) > MaxROMSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrROMTooLarge, len(rom), MaxROMSize)
	}
	copy(m.Mem[ProgramAddr:], rom)
	return nil
}

// Fetch returns the big-endian instruction word at PC.
func (m *Machine) Fetch() uint16 {
	return short(m.Mem[m.PC&addrMask], m.Mem[(m.PC+1)&addrMask])
}

func (m *Machine) load(addr uint16) byte { return m.Mem[addr&addrMask] }

func (m *Machine) store(addr uint16, b byte) { m.Mem[addr&addrMask] = b }

// Tick decrements the delay and sound timers, stopping at zero.
func (m *Machine) Tick() {
	if m.DT > 0 {
		m.DT--
	}
	if m.ST > 0 {
		m.ST--
	}
}

func short(hi, lo byte) uint16 {
	return uint16(hi)<<8 + uint16(lo)
}

// GlyphAddr returns the address of the built-in sprite for hex digit d.
func GlyphAddr(d byte) uint16 { return uint16(d&0xf) * glyphSize }

const glyphSize = 5

var glyphs = [16 * glyphSize]byte{
	0xf0, 0x90, 0x90, 0x90, 0xf0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xf0, 0x10, 0xf0, 0x80, 0xf0, // 2
	0xf0, 0x10, 0xf0, 0x10, 0xf0, // 3
	0x90, 0x90, 0xf0, 0x10, 0x10, // 4
	0xf0, 0x80, 0xf0, 0x10, 0xf0, // 5
	0xf0, 0x80, 0xf0, 0x90, 0xf0, // 6
	0xf0, 0x10, 0x20, 0x40, 0x40, // 7
	0xf0, 0x90, 0xf0, 0x90, 0xf0, // 8
	0xf0, 0x90, 0xf0, 0x10, 0xf0, // 9
	0xf0, 0x90, 0xf0, 0x90, 0x90, // A
	0xe0, 0x90, 0xe0, 0x90, 0xe0, // B
	0xf0, 0x80, 0x80, 0x80, 0xf0, // C
	0xe0, 0x90, 0x90, 0x90, 0xe0, // D
	0xf0, 0x80, 0xf0, 0x80, 0xf0, // E
	0xf0, 0x80, 0xf0, 0x80, 0x80, // F
}
