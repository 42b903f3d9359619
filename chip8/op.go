package chip8

import "fmt"

// Op identifies one of the instructions of the CHIP-8 instruction set.
type Op byte

const (
	SYS  Op = iota // 0nnn
	CLS            // 00E0
	RET            // 00EE
	JP             // 1nnn
	CALL           // 2nnn
	SE             // 3xkk
	SNE            // 4xkk
	SER            // 5xy0
	LD             // 6xkk
	ADD            // 7xkk
	MOV            // 8xy0
	OR             // 8xy1
	AND            // 8xy2
	XOR            // 8xy3
	ADC            // 8xy4
	SUB            // 8xy5
	SHR            // 8xy6
	SUBN           // 8xy7
	SHL            // 8xyE
	SNER           // 9xy0
	LDI            // Annn
	JPV            // Bnnn
	RND            // Cxkk
	DRW            // Dxyn
	SKP            // Ex9E
	SKNP           // ExA1
	LDDT           // Fx07
	WKEY           // Fx0A
	STDT           // Fx15
	STST           // Fx18
	ADDI           // Fx1E
	GLYPH          // Fx29
	BCD            // Fx33
	DUMP           // Fx55
	FILL           // Fx65

	numOps
)

var opNames = [numOps]string{
	SYS:   "SYS",
	CLS:   "CLS",
	RET:   "RET",
	JP:    "JP",
	CALL:  "CALL",
	SE:    "SE",
	SNE:   "SNE",
	SER:   "SE",
	LD:    "LD",
	ADD:   "ADD",
	MOV:   "LD",
	OR:    "OR",
	AND:   "AND",
	XOR:   "XOR",
	ADC:   "ADD",
	SUB:   "SUB",
	SHR:   "SHR",
	SUBN:  "SUBN",
	SHL:   "SHL",
	SNER:  "SNE",
	LDI:   "LD",
	JPV:   "JP",
	RND:   "RND",
	DRW:   "DRW",
	SKP:   "SKP",
	SKNP:  "SKNP",
	LDDT:  "LD",
	WKEY:  "LD",
	STDT:  "LD",
	STST:  "LD",
	ADDI:  "ADD",
	GLYPH: "LD",
	BCD:   "LD",
	DUMP:  "LD",
	FILL:  "LD",
}

func (op Op) String() string {
	if op < numOps {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", byte(op))
}

// Instruction is a decoded instruction word.
type Instruction struct {
	Op  Op
	X   byte   // bits 11-8
	Y   byte   // bits 7-4
	N   byte   // bits 3-0
	KK  byte   // bits 7-0
	NNN uint16 // bits 11-0
}

// Decode splits the instruction word w into its fields and identifies its
// Op. It returns an error wrapping ErrDecode if w is not part of the
// instruction set.
func Decode(w uint16) (Instruction, error) {
	in := Instruction{
		X:   byte(w >> 8 & 0xf),
		Y:   byte(w >> 4 & 0xf),
		N:   byte(w & 0xf),
		KK:  byte(w),
		NNN: w & 0xfff,
	}
	switch w >> 12 {
	case 0x0:
		switch in.NNN {
		case 0x0e0:
			in.Op = CLS
		case 0x0ee:
			in.Op = RET
		default:
			in.Op = SYS
		}
	case 0x1:
		in.Op = JP
	case 0x2:
		in.Op = CALL
	case 0x3:
		in.Op = SE
	case 0x4:
		in.Op = SNE
	case 0x5:
		in.Op = SER
	case 0x6:
		in.Op = LD
	case 0x7:
		in.Op = ADD
	case 0x8:
		switch in.N {
		case 0x0:
			in.Op = MOV
		case 0x1:
			in.Op = OR
		case 0x2:
			in.Op = AND
		case 0x3:
			in.Op = XOR
		case 0x4:
			in.Op = ADC
		case 0x5:
			in.Op = SUB
		case 0x6:
			in.Op = SHR
		case 0x7:
			in.Op = SUBN
		case 0xe:
			in.Op = SHL
		default:
			return in, decodeError(w)
		}
	case 0x9:
		in.Op = SNER
	case 0xa:
		in.Op = LDI
	case 0xb:
		in.Op = JPV
	case 0xc:
		in.Op = RND
	case 0xd:
		in.Op = DRW
	case 0xe:
		switch in.KK {
		case 0x9e:
			in.Op = SKP
		case 0xa1:
			in.Op = SKNP
		default:
			return in, decodeError(w)
		}
	case 0xf:
		switch in.KK {
		case 0x07:
			in.Op = LDDT
		case 0x0a:
			in.Op = WKEY
		case 0x15:
			in.Op = STDT
		case 0x18:
			in.Op = STST
		case 0x1e:
			in.Op = ADDI
		case 0x29:
			in.Op = GLYPH
		case 0x33:
			in.Op = BCD
		case 0x55:
			in.Op = DUMP
		case 0x65:
			in.Op = FILL
		default:
			return in, decodeError(w)
		}
	}
	return in, nil
}

func decodeError(w uint16) error {
	return fmt.Errorf("%w: %.4x", ErrDecode, w)
}

// Word re-encodes the instruction.
func (in Instruction) Word() uint16 {
	var (
		xy  = uint16(in.X)<<8 | uint16(in.Y)<<4
		xkk = uint16(in.X)<<8 | uint16(in.KK)
	)
	switch in.Op {
	case SYS:
		return in.NNN
	case CLS:
		return 0x00e0
	case RET:
		return 0x00ee
	case JP:
		return 0x1000 | in.NNN
	case CALL:
		return 0x2000 | in.NNN
	case SE:
		return 0x3000 | xkk
	case SNE:
		return 0x4000 | xkk
	case SER:
		return 0x5000 | xy
	case LD:
		return 0x6000 | xkk
	case ADD:
		return 0x7000 | xkk
	case MOV, OR, AND, XOR, ADC, SUB, SHR, SUBN:
		return 0x8000 | xy | uint16(in.Op-MOV)
	case SHL:
		return 0x800e | xy
	case SNER:
		return 0x9000 | xy
	case LDI:
		return 0xa000 | in.NNN
	case JPV:
		return 0xb000 | in.NNN
	case RND:
		return 0xc000 | xkk
	case DRW:
		return 0xd000 | xy | uint16(in.N)
	case SKP:
		return 0xe09e | uint16(in.X)<<8
	case SKNP:
		return 0xe0a1 | uint16(in.X)<<8
	}
	return 0xf000 | uint16(in.X)<<8 | uint16(fxCodes[in.Op])
}

var fxCodes = map[Op]byte{
	LDDT:  0x07,
	WKEY:  0x0a,
	STDT:  0x15,
	STST:  0x18,
	ADDI:  0x1e,
	GLYPH: 0x29,
	BCD:   0x33,
	DUMP:  0x55,
	FILL:  0x65,
}

// String returns the instruction in the conventional assembler syntax,
// for example "ADD V3, V4" or "LD I, 0x2ea".
func (in Instruction) String() string {
	var (
		op = in.Op.String()
		vx = fmt.Sprintf("V%X", in.X)
		vy = fmt.Sprintf("V%X", in.Y)
	)
	switch in.Op {
	case CLS, RET:
		return op
	case SYS, JP, CALL:
		return fmt.Sprintf("%s 0x%.3x", op, in.NNN)
	case SE, SNE, LD, ADD, RND:
		return fmt.Sprintf("%s %s, 0x%.2x", op, vx, in.KK)
	case SER, MOV, OR, AND, XOR, ADC, SUB, SUBN, SNER:
		return fmt.Sprintf("%s %s, %s", op, vx, vy)
	case SHR, SHL:
		return fmt.Sprintf("%s %s", op, vx)
	case LDI:
		return fmt.Sprintf("%s I, 0x%.3x", op, in.NNN)
	case JPV:
		return fmt.Sprintf("%s V0, 0x%.3x", op, in.NNN)
	case DRW:
		return fmt.Sprintf("%s %s, %s, %d", op, vx, vy, in.N)
	case SKP, SKNP:
		return fmt.Sprintf("%s %s", op, vx)
	case LDDT:
		return fmt.Sprintf("%s %s, DT", op, vx)
	case WKEY:
		return fmt.Sprintf("%s %s, K", op, vx)
	case STDT:
		return fmt.Sprintf("%s DT, %s", op, vx)
	case STST:
		return fmt.Sprintf("%s ST, %s", op, vx)
	case ADDI:
		return fmt.Sprintf("%s I, %s", op, vx)
	case GLYPH:
		return fmt.Sprintf("%s F, %s", op, vx)
	case BCD:
		return fmt.Sprintf("%s B, %s", op, vx)
	case DUMP:
		return fmt.Sprintf("%s [I], %s", op, vx)
	case FILL:
		return fmt.Sprintf("%s %s, [I]", op, vx)
	}
	return fmt.Sprintf("%s ?%.4x", op, in.Word())
}
