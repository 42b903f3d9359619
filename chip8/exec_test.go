package chip8

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNewMachine(t *testing.T) {
	for _, c := range []struct {
		romSize int
		err     bool
	}{
		{0x000, false},
		{0x001, false},
		{0x200, false},
		{MaxROMSize, false},
		{MaxROMSize + 1, true},
	} {
		t.Run(fmt.Sprintf("%.4x", c.romSize), func(t *testing.T) {
			m, err := NewMachine(bytes.Repeat([]byte{1}, c.romSize))
			if c.err {
				if !errors.Is(err, ErrROMTooLarge) {
					t.Fatalf("got error %v, want %v", err, ErrROMTooLarge)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if m.PC != ProgramAddr {
				t.Errorf("PC is %.4x, want %.4x", m.PC, ProgramAddr)
			}
			for i := range m.Mem {
				var w byte
				switch {
				case i < len(glyphs):
					w = glyphs[i]
				case i >= ProgramAddr && i < ProgramAddr+c.romSize:
					w = 1
				}
				if g := m.Mem[i]; g != w {
					t.Errorf("Mem[%.4x] == %.2x, want %.2x", i, g, w)
				}
			}
		})
	}
}

func TestReset(t *testing.T) {
	m, err := NewMachine([]byte{0x12, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	in := &testInput{}
	m.Input = in
	m.V[3], m.I, m.DT, m.ST, m.PC = 1, 2, 3, 4, 0x400
	m.Stack.Push(0x202)
	m.Display.Clear()
	m.Reset()
	if m.V != ([16]byte{}) || m.I != 0 || m.DT != 0 || m.ST != 0 {
		t.Errorf("registers not cleared: V=%v I=%x DT=%d ST=%d", m.V, m.I, m.DT, m.ST)
	}
	if m.PC != ProgramAddr {
		t.Errorf("PC is %.4x, want %.4x", m.PC, ProgramAddr)
	}
	if m.Stack.Len() != 0 {
		t.Errorf("stack is %v, want empty", m.Stack)
	}
	if m.Display.Dirty() {
		t.Error("display dirty after reset")
	}
	if m.Mem[ProgramAddr] != 0 {
		t.Errorf("program memory not cleared")
	}
	if m.Input != in {
		t.Error("reset dropped Input")
	}
}

func TestExec(t *testing.T) {
	c := newExecTestCase
	for i, c := range []*execTestCase{
		c(0x0111).want(),

		c(0x1111).want().pc(0x111),
		c(0x2111).want().stack(0x202).pc(0x111),
		c(0x2111).stack(0x300, 0x400).want().stack(0x300, 0x400, 0x202).pc(0x111),
		c(0x00ee).stack(0x300).want().stack().pc(0x300),
		c(0x00ee).stack(0x300, 0x400).want().stack(0x300).pc(0x400),

		c(0x3002).v(0, 1).want(),
		c(0x3001).v(0, 1).want().pc(0x204),
		c(0x4001).v(0, 1).want(),
		c(0x4002).v(0, 1).want().pc(0x204),
		c(0x5010).v(0, 1).v(1, 2).want(),
		c(0x5010).v(0, 2).v(1, 2).want().pc(0x204),
		c(0x9010).v(0, 2).v(1, 2).want(),
		c(0x9010).v(0, 1).v(1, 2).want().pc(0x204),

		c(0x6a2a).want().v(0xa, 0x2a),
		c(0x6fff).want().v(0xf, 0xff),
		c(0x7a01).v(0xa, 2).want().v(0xa, 3),
		c(0x7aff).v(0xa, 2).v(0xf, 7).want().v(0xa, 1),

		c(0x8010).v(0, 1).v(1, 2).want().v(0, 2),
		c(0x8011).v(0, 0x36).v(1, 0x63).want().v(0, 0x77),
		c(0x8012).v(0, 0x99).v(1, 0xb8).want().v(0, 0x98),
		c(0x8013).v(0, 0x31).v(1, 0x13).want().v(0, 0x22),

		c(0x8014).v(0, 1).v(1, 2).v(0xf, 1).want().v(0, 3).v(0xf, 0),
		c(0x8014).v(0, 2).v(1, 255).want().v(0, 1).v(0xf, 1),
		c(0x8014).v(0, 128).v(1, 128).want().v(0, 0).v(0xf, 1),
		c(0x8f14).v(0xf, 0xff).v(1, 1).want().v(0xf, 1),

		c(0x8015).v(0, 3).v(1, 1).want().v(0, 2).v(0xf, 1),
		c(0x8015).v(0, 1).v(1, 2).v(0xf, 1).want().v(0, 255).v(0xf, 0),
		c(0x8015).v(0, 5).v(1, 5).want().v(0, 0).v(0xf, 1),
		c(0x8f15).v(0xf, 3).v(1, 1).want().v(0xf, 1),
		c(0x8f1e).v(0xf, 0x40).want().v(0xf, 0),

		c(0x8016).v(0, 0x03).want().v(0, 0x01).v(0xf, 1),
		c(0x8016).v(0, 0x02).v(0xf, 1).want().v(0, 0x01).v(0xf, 0),

		c(0x8017).v(0, 1).v(1, 3).want().v(0, 2).v(0xf, 1),
		c(0x8017).v(0, 2).v(1, 1).v(0xf, 1).want().v(0, 255).v(0xf, 0),
		c(0x8017).v(0, 5).v(1, 5).want().v(0, 0).v(0xf, 1),

		c(0x801e).v(0, 0x81).want().v(0, 0x02).v(0xf, 1),
		c(0x801e).v(0, 0x01).v(0xf, 1).want().v(0, 0x02).v(0xf, 0),

		c(0xa123).want().i(0x123),
		c(0xb300).v(0, 4).want().pc(0x304),
		c(0xbfff).v(0, 2).want().pc(0x001),

		c(0xc30f).want().v(3, 0x0b),
		c(0xc3f0).want().v(3, 0xa0),

		c(0xe39e).v(3, 5).keys(5).want().pc(0x204),
		c(0xe39e).v(3, 5).keys(4).want(),
		c(0xe3a1).v(3, 5).keys(4).want().pc(0x204),
		c(0xe3a1).v(3, 5).keys(5).want(),

		c(0xf307).dt(9).want().v(3, 9),
		c(0xf30a).waitFor(7).want().v(3, 7),
		c(0xf315).v(3, 9).want().dt(9),
		c(0xf318).v(3, 9).want().st(9),
		c(0xf31e).i(0x100).v(3, 0x10).want().i(0x110),
		c(0xf31e).i(0xfff).v(3, 0x10).want().i(0x100f),
		c(0xf329).v(3, 0xa).want().i(50),
		c(0xf329).v(3, 0x1a).want().i(50),

		c(0xf333).v(3, 123).i(2).want().mem(2, 1, 2, 3),
		c(0xf333).v(3, 7).i(0x300).want().mem(0x300, 0, 0, 7),
		c(0xf333).v(3, 255).i(0xfff).want().mem(0xfff, 2).mem(0, 5, 5),

		c(0xf255).v(0, 0xa).v(1, 0xb).v(2, 0xc).v(3, 0xd).i(0x300).
			want().mem(0x300, 0xa, 0xb, 0xc),
		c(0xf065).mem(0x300, 0xa, 0xb).i(0x300).want().v(0, 0xa),
		c(0xf265).mem(0x300, 0xa, 0xb, 0xc, 0xd).i(0x300).
			want().v(0, 0xa).v(1, 0xb).v(2, 0xc),

		c(0x00ee).want().pc(0x200).
			error(HaltError{HaltCode: Underflow, Word: 0x00ee, Addr: 0x200}),
		c(0x2111).stack(make([]uint16, StackDepth)...).want().pc(0x200).
			error(HaltError{HaltCode: Overflow, Word: 0x2111, Addr: 0x200}),
		c(0x8008).want().pc(0x200).
			error(HaltError{HaltCode: BadOpcode, Word: 0x8008, Addr: 0x200}),
		c(0xe3ff).want().pc(0x200).
			error(HaltError{HaltCode: BadOpcode, Word: 0xe3ff, Addr: 0x200}),
		c(0xf3ff).want().pc(0x200).
			error(HaltError{HaltCode: BadOpcode, Word: 0xf3ff, Addr: 0x200}),
	} {
		t.Run(fmt.Sprintf("%.4x_%d", c.m.Fetch(), i), func(t *testing.T) {
			if err := c.m.Exec(context.Background()); err != c.err {
				t.Fatalf("got error %v, want %v", err, c.err)
			}
			if g, w := c.m.V, c.w.V; g != w {
				t.Errorf("registers are\n\t%x\nwant\n\t%x", g, w)
			}
			if g, w := c.m.I, c.w.I; g != w {
				t.Errorf("I is %x, want %x", g, w)
			}
			if g, w := c.m.DT, c.w.DT; g != w {
				t.Errorf("DT is %d, want %d", g, w)
			}
			if g, w := c.m.ST, c.w.ST; g != w {
				t.Errorf("ST is %d, want %d", g, w)
			}
			if g, w := c.m.Stack, c.w.Stack; !stackEq(g, w) {
				t.Errorf("stack is %v, want %v", g, w)
			}
			if g, w := c.m.Mem, c.w.Mem; g != w {
				for i := 0; i < len(g) && i < len(w); i++ {
					if g[i] != w[i] {
						t.Errorf("memory[%.4x] = %.2x, want %.2x", i, g[i], w[i])
					}
				}
			}
			if g, w := c.m.PC, c.w.PC; g != w {
				t.Errorf("PC is %x, want %x", g, w)
			}
		})
	}
}

func TestExecErrorIs(t *testing.T) {
	for _, c := range []struct {
		rom    []byte
		target error
	}{
		{[]byte{0x00, 0xee}, ErrStackEmpty},
		{[]byte{0x81, 0x2f}, ErrDecode},
	} {
		m, err := NewMachine(c.rom)
		if err != nil {
			t.Fatal(err)
		}
		err = m.Exec(context.Background())
		if !errors.Is(err, c.target) {
			t.Errorf("executing %x: got %v, want %v", c.rom, err, c.target)
		}
		var h HaltError
		if !errors.As(err, &h) || h.Addr != ProgramAddr {
			t.Errorf("executing %x: got %#v, want HaltError at %.3x", c.rom, err, ProgramAddr)
		}
	}
}

func TestExecInputError(t *testing.T) {
	errKbd := errors.New("keyboard unplugged")
	for _, w := range []uint16{0xe39e, 0xe3a1, 0xf30a} {
		c := newExecTestCase(w).v(3, 5)
		c.in.err = errKbd
		err := c.m.Exec(context.Background())
		var ie *InputError
		if !errors.As(err, &ie) || !errors.Is(err, errKbd) {
			t.Fatalf("executing %.4x: got %v, want InputError wrapping %v", w, err, errKbd)
		}
		if c.m.PC != ProgramAddr || c.m.V[3] != 5 {
			t.Errorf("executing %.4x: state changed after input error: PC=%x V3=%x", w, c.m.PC, c.m.V[3])
		}

		// The same instruction succeeds once the keypad recovers.
		c.in.err = nil
		c.in.wait = []Key{9}
		if err := c.m.Exec(context.Background()); err != nil {
			t.Fatalf("retrying %.4x: %v", w, err)
		}
		if c.m.PC == ProgramAddr {
			t.Errorf("retrying %.4x: PC did not advance", w)
		}
	}
}

func TestExecWaitKeyCanceled(t *testing.T) {
	c := newExecTestCase(0xf30a).v(3, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.m.Exec(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got error %v, want %v", err, context.Canceled)
	}
	var ie *InputError
	if errors.As(c.m.Exec(ctx), &ie) {
		t.Error("cancellation reported as an input error")
	}
	if c.m.PC != ProgramAddr || c.m.V[3] != 5 {
		t.Errorf("state changed after cancellation: PC=%x V3=%x", c.m.PC, c.m.V[3])
	}
}

func TestExecDraw(t *testing.T) {
	// LD V0, 0x3e; LD V1, 0x1e; LD F, V2; DRW V0, V1, 5; DRW V0, V1, 5
	m, err := NewMachine([]byte{0x60, 0x3e, 0x61, 0x1e, 0xf2, 0x29, 0xd0, 0x15, 0xd0, 0x15})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		mustExec(t, m)
	}
	if m.I != 0 {
		t.Fatalf("I is %x, want 0", m.I)
	}
	m.V[0xf] = 1
	mustExec(t, m)
	if m.V[0xf] != 0 {
		t.Errorf("VF is %d after first draw, want 0", m.V[0xf])
	}
	// The glyph for 0 is 0xf0, 0x90, 0x90, 0x90, 0xf0 drawn at 62, 30,
	// so it wraps on both axes.
	for _, p := range []struct{ x, y int }{
		{62, 30}, {63, 30}, {0, 30}, {1, 30},
		{62, 31}, {1, 31},
		{62, 0}, {1, 0},
		{62, 2}, {63, 2}, {0, 2}, {1, 2},
	} {
		if m.Display.Pixel(p.x, p.y) != 1 {
			t.Errorf("pixel %d,%d not set", p.x, p.y)
		}
	}
	if m.Display.Pixel(63, 31) != 0 || m.Display.Pixel(2, 30) != 0 {
		t.Error("pixels set outside the glyph")
	}
	if !m.Display.Dirty() {
		t.Error("display not dirty after draw")
	}
	mustExec(t, m)
	if m.V[0xf] != 1 {
		t.Errorf("VF is %d after second draw, want 1", m.V[0xf])
	}
	if m.Display.cur != (Grid{}) {
		t.Error("second draw did not erase the glyph")
	}
}

func TestExecClear(t *testing.T) {
	m, err := NewMachine([]byte{0x00, 0xe0})
	if err != nil {
		t.Fatal(err)
	}
	m.Display.DrawSprite([]byte{0xff}, 0, 0)
	m.Display.Redraw(&testSink{})
	mustExec(t, m)
	if m.Display.cur != (Grid{}) {
		t.Error("display not cleared")
	}
	if !m.Display.Dirty() {
		t.Error("display not dirty after clear")
	}
}

func TestCallReturn(t *testing.T) {
	m, err := NewMachine([]byte{0x23, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	m.Mem[0x300], m.Mem[0x301] = 0x00, 0xee
	mustExec(t, m)
	if m.PC != 0x300 || m.Stack.Len() != 1 || m.Stack.Addrs[0] != ProgramAddr+2 {
		t.Fatalf("after call: PC=%x stack=%v", m.PC, m.Stack)
	}
	mustExec(t, m)
	if m.PC != ProgramAddr+2 || m.Stack.Len() != 0 {
		t.Fatalf("after return: PC=%x stack=%v", m.PC, m.Stack)
	}
}

func TestDumpFill(t *testing.T) {
	for x := byte(0); x < 16; x++ {
		// LD [I], Vx; LD V0..VF with junk; LD Vx, [I]
		m, err := NewMachine([]byte{0xf0 | x, 0x55, 0xf0 | x, 0x65})
		if err != nil {
			t.Fatal(err)
		}
		m.I = 0x400
		for i := range m.V {
			m.V[i] = byte(i*17 + 3)
		}
		want := m.V
		mustExec(t, m)
		for i := range m.V {
			m.V[i] = 0
		}
		mustExec(t, m)
		for i := byte(0); i <= x; i++ {
			if m.V[i] != want[i] {
				t.Errorf("x=%d: V%X is %x, want %x", x, i, m.V[i], want[i])
			}
		}
		if x < 15 && m.V[x+1] != 0 {
			t.Errorf("x=%d: V%X loaded past x", x, x+1)
		}
	}
}

func mustExec(t *testing.T, m *Machine) {
	t.Helper()
	if err := m.Exec(context.Background()); err != nil {
		t.Fatal(err)
	}
}

type execTestCase struct {
	m, w *Machine
	in   *testInput
	err  error
	set  *Machine
}

func newExecTestCase(w uint16) *execTestCase {
	var (
		c   = &execTestCase{in: &testInput{}}
		rom = []byte{byte(w >> 8), byte(w)}
		err error
	)
	if c.m, err = NewMachine(rom); err != nil {
		panic(err)
	}
	if c.w, err = NewMachine(rom); err != nil {
		panic(err)
	}
	c.m.Input = c.in
	c.m.Rand = func() byte { return 0xab }
	c.w.PC += 2
	c.set = c.m
	return c
}

// both applies f to the machine being set up, and to the wanted machine too
// if want has not been called yet.
func (c *execTestCase) both(f func(m *Machine)) *execTestCase {
	f(c.set)
	if c.set == c.m {
		f(c.w)
	}
	return c
}

func (c *execTestCase) v(x, b byte) *execTestCase {
	return c.both(func(m *Machine) { m.V[x] = b })
}

func (c *execTestCase) i(addr uint16) *execTestCase {
	return c.both(func(m *Machine) { m.I = addr })
}

func (c *execTestCase) dt(b byte) *execTestCase {
	return c.both(func(m *Machine) { m.DT = b })
}

func (c *execTestCase) st(b byte) *execTestCase {
	return c.both(func(m *Machine) { m.ST = b })
}

func (c *execTestCase) mem(addr uint16, bytes ...byte) *execTestCase {
	return c.both(func(m *Machine) { copy(m.Mem[addr:], bytes) })
}

func (c *execTestCase) stack(addrs ...uint16) *execTestCase {
	return c.both(func(m *Machine) { setStack(&m.Stack, addrs) })
}

func (c *execTestCase) pc(addr uint16) *execTestCase {
	c.set.PC = addr
	return c
}

func (c *execTestCase) keys(ks ...Key) *execTestCase {
	for _, k := range ks {
		c.in.pressed[k] = true
	}
	return c
}

func (c *execTestCase) waitFor(ks ...Key) *execTestCase {
	c.in.wait = append(c.in.wait, ks...)
	return c
}

func (c *execTestCase) want() *execTestCase {
	c.set = c.w
	return c
}

func (c *execTestCase) error(err error) *execTestCase {
	c.err = err
	return c
}

func setStack(s *Stack, addrs []uint16) {
	*s = Stack{}
	copy(s.Addrs[:], addrs)
	s.Ptr = byte(len(addrs))
}

func stackEq(a, b Stack) bool {
	ac := Stack{Ptr: a.Ptr}
	bc := Stack{Ptr: b.Ptr}
	copy(ac.Addrs[:], a.Addrs[:a.Ptr])
	copy(bc.Addrs[:], b.Addrs[:b.Ptr])
	return ac == bc
}

type testInput struct {
	pressed [NumKeys]bool
	wait    []Key
	err     error
}

func (in *testInput) Pressed(k Key) (bool, error) {
	if in.err != nil {
		return false, in.err
	}
	return in.pressed[k], nil
}

func (in *testInput) WaitKey(ctx context.Context) (Key, error) {
	if in.err != nil {
		return 0, in.err
	}
	if len(in.wait) == 0 {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	k := in.wait[0]
	in.wait = in.wait[1:]
	return k, nil
}

type testSink struct {
	frames []Grid
	prevs  []Grid
	err    error
}

func (s *testSink) Redraw(cur, prev *Grid, dirty bool) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, *cur)
	s.prevs = append(s.prevs, *prev)
	return nil
}
