package chip8

import (
	"errors"
	"fmt"
	"strings"
)

// StackDepth is the number of return addresses a Stack can hold.
const StackDepth = 16

var (
	ErrStackFull  = errors.New("stack full")
	ErrStackEmpty = errors.New("stack empty")
)

// Stack implements the CHIP-8 call stack.
// Ptr is the index of the next free slot, so an empty stack has Ptr 0.
type Stack struct {
	Addrs [StackDepth]uint16
	Ptr   byte
}

// Push adds addr to the top of the stack.
func (s *Stack) Push(addr uint16) error {
	if s.Ptr == StackDepth {
		return ErrStackFull
	}
	s.Addrs[s.Ptr] = addr
	s.Ptr++
	return nil
}

// Pop removes and returns the address at the top of the stack.
func (s *Stack) Pop() (uint16, error) {
	if s.Ptr == 0 {
		return 0, ErrStackEmpty
	}
	s.Ptr--
	return s.Addrs[s.Ptr], nil
}

// Len reports the number of addresses on the stack.
func (s *Stack) Len() int { return int(s.Ptr) }

func (s Stack) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, v := range s.Addrs[:s.Ptr] {
		b.WriteByte(' ')
		fmt.Fprintf(&b, "%.3x", v)
	}
	b.WriteByte(' ')
	b.WriteByte(')')
	return b.String()
}
