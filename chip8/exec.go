package chip8

import (
	"context"
	"errors"
	"fmt"
)

var ErrDecode = errors.New("unknown instruction")

// Exec executes the instruction at m.PC.
//
// It returns a HaltError if the instruction cannot be executed, in which
// case the machine should not be run any further. If reading the keypad
// fails it returns an InputError, or ctx.Err() if ctx is done while waiting
// for a key, and the instruction is not committed: PC and registers are left
// unchanged so that Exec may be called again to retry it.
//
// Exec blocks only when executing LD Vx, K.
func (m *Machine) Exec(ctx context.Context) (err error) {
	var (
		w  = m.Fetch()
		pc = m.PC
	)
	in, err := Decode(w)
	if err != nil {
		return HaltError{HaltCode: BadOpcode, Word: w, Addr: pc}
	}
	defer func() {
		if e := recover(); e != nil {
			if code, ok := e.(HaltCode); ok {
				err = HaltError{
					HaltCode: code,
					Word:     w,
					Addr:     pc,
				}
			} else {
				panic(e)
			}
		}
	}()

	next, err := m.exec(ctx, in)
	if err != nil {
		return err
	}
	m.PC = next
	return nil
}

// exec performs in and returns the address of the next instruction.
func (m *Machine) exec(ctx context.Context, in Instruction) (uint16, error) {
	var (
		next = m.PC + 2
		skip = m.PC + 4
		vx   = &m.V[in.X]
		vy   = m.V[in.Y]
	)
	switch in.Op {
	case SYS:
		// Calls into host machine code are not supported.
	case CLS:
		m.Display.Clear()
	case RET:
		addr, err := m.Stack.Pop()
		if err != nil {
			panic(Underflow)
		}
		return addr, nil
	case JP:
		return in.NNN, nil
	case CALL:
		if err := m.Stack.Push(next); err != nil {
			panic(Overflow)
		}
		return in.NNN, nil
	case SE:
		if *vx == in.KK {
			return skip, nil
		}
	case SNE:
		if *vx != in.KK {
			return skip, nil
		}
	case SER:
		if *vx == vy {
			return skip, nil
		}
	case SNER:
		if *vx != vy {
			return skip, nil
		}
	case LD:
		*vx = in.KK
	case ADD:
		*vx += in.KK
	case MOV:
		*vx = vy
	case OR:
		*vx |= vy
	case AND:
		*vx &= vy
	case XOR:
		*vx ^= vy
	case ADC:
		sum := uint16(*vx) + uint16(vy)
		*vx = byte(sum)
		m.V[vf] = boolByte(sum > 0xff)
	// The flag is written last, so when x is 0xf VF holds the flag.
	case SUB:
		f := boolByte(*vx >= vy)
		*vx -= vy
		m.V[vf] = f
	case SUBN:
		f := boolByte(vy >= *vx)
		*vx = vy - *vx
		m.V[vf] = f
	case SHR:
		f := *vx & 1
		*vx >>= 1
		m.V[vf] = f
	case SHL:
		f := *vx >> 7
		*vx <<= 1
		m.V[vf] = f
	case LDI:
		m.I = in.NNN
	case JPV:
		return (uint16(m.V[0]) + in.NNN) & addrMask, nil
	case RND:
		*vx = m.Rand() & in.KK
	case DRW:
		var sprite [MaxSprite]byte
		for i := range sprite[:in.N] {
			sprite[i] = m.load(m.I + uint16(i))
		}
		erased := m.Display.DrawSprite(sprite[:in.N], *vx, vy)
		m.V[vf] = boolByte(erased)
	case SKP, SKNP:
		pressed, err := m.Input.Pressed(Key(*vx & 0xf))
		if err != nil {
			return 0, &InputError{Instr: in, Err: err}
		}
		if pressed == (in.Op == SKP) {
			return skip, nil
		}
	case WKEY:
		k, err := m.Input.WaitKey(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return 0, err
			}
			return 0, &InputError{Instr: in, Err: err}
		}
		*vx = byte(k)
	case LDDT:
		*vx = m.DT
	case STDT:
		m.DT = *vx
	case STST:
		m.ST = *vx
	case ADDI:
		m.I += uint16(*vx)
	case GLYPH:
		m.I = GlyphAddr(*vx)
	case BCD:
		v := *vx
		m.store(m.I, v/100)
		m.store(m.I+1, v/10%10)
		m.store(m.I+2, v%10)
	case DUMP:
		for i := uint16(0); i <= uint16(in.X); i++ {
			m.store(m.I+i, m.V[i])
		}
	case FILL:
		for i := uint16(0); i <= uint16(in.X); i++ {
			m.V[i] = m.load(m.I + i)
		}
	default:
		panic(fmt.Errorf("internal error: %v not implemented", in.Op))
	}
	return next, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// HaltError is returned by Exec if the program cannot continue.
type HaltError struct {
	HaltCode
	Word uint16 // the instruction word
	Addr uint16 // where the instruction was fetched from
}

func (e HaltError) Error() string {
	if in, err := Decode(e.Word); err == nil {
		return fmt.Sprintf("%s executing %s (%.4x) at %.3x", e.HaltCode, in, e.Word, e.Addr)
	}
	return fmt.Sprintf("%s %.4x at %.3x", e.HaltCode, e.Word, e.Addr)
}

func (e HaltError) Unwrap() error {
	switch e.HaltCode {
	case BadOpcode:
		return ErrDecode
	case Underflow:
		return ErrStackEmpty
	case Overflow:
		return ErrStackFull
	}
	return nil
}

// HaltCode signifies the type of condition that halted execution.
type HaltCode byte

const (
	BadOpcode HaltCode = 0x01
	Underflow HaltCode = 0x02
	Overflow  HaltCode = 0x03
)

func (c HaltCode) String() string {
	if s, ok := map[HaltCode]string{
		BadOpcode: "unknown instruction",
		Underflow: "stack underflow",
		Overflow:  "stack overflow",
	}[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%.2x)", byte(c))
}

// InputError is returned by Exec when the keypad could not be read.
// The instruction may be retried.
type InputError struct {
	Instr Instruction
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error executing %s: %v", e.Instr, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }
