package intcode

import "fmt"

// Opcode identifies an Intcode operation (the low two decimal digits of an
// instruction word).
type Opcode uint8

// Intcode operations.
const (
	OpAdd         Opcode = 1  // mem[out] = p1 + p2
	OpMul         Opcode = 2  // mem[out] = p1 * p2
	OpInput       Opcode = 3  // mem[out] = pop(input)
	OpOutput      Opcode = 4  // push(output, p1)
	OpJumpIfTrue  Opcode = 5  // if p1 != 0 { ip = p2 }
	OpJumpIfFalse Opcode = 6  // if p1 == 0 { ip = p2 }
	OpLessThan    Opcode = 7  // mem[out] = p1 < p2
	OpEquals      Opcode = 8  // mem[out] = p1 == p2
	OpAdjustBase  Opcode = 9  // base += p1
	OpHalt        Opcode = 99 // stop
)

var opcodeNames = map[Opcode]string{
	OpAdd:         "add",
	OpMul:         "mul",
	OpInput:       "in",
	OpOutput:      "out",
	OpJumpIfTrue:  "jt",
	OpJumpIfFalse: "jf",
	OpLessThan:    "lt",
	OpEquals:      "eq",
	OpAdjustBase:  "arb",
	OpHalt:        "halt",
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Valid reports whether op belongs to the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// Width returns the instruction width in words, opcode word included.
// Invalid opcodes have width 0.
func (op Opcode) Width() int {
	switch op {
	case OpAdd, OpMul, OpLessThan, OpEquals:
		return 4
	case OpJumpIfTrue, OpJumpIfFalse:
		return 3
	case OpInput, OpOutput, OpAdjustBase:
		return 2
	case OpHalt:
		return 1
	default:
		return 0
	}
}

// Mode is a parameter addressing mode.
type Mode uint8

// Parameter modes.
const (
	ModePosition  Mode = 0 // parameter is an address
	ModeImmediate Mode = 1 // parameter is the value
	ModeRelative  Mode = 2 // parameter + relative base is an address
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeImmediate:
		return "immediate"
	case ModeRelative:
		return "relative"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Instruction is a raw instruction word.
type Instruction Word

// Decode wraps a raw word read at the instruction pointer.
func Decode(word Word) Instruction {
	return Instruction(word)
}

// Op returns the opcode (word mod 100).
func (i Instruction) Op() Opcode {
	v := Word(i) % 100
	if v < 0 {
		// Negative words never decode to a valid opcode.
		return Opcode(0)
	}
	return Opcode(v)
}

// Mode returns the addressing mode of the k-th parameter (1-indexed), i.e.
// the digit at position 10^(k-1) of word/100. Negative words yield an
// out-of-range mode so they are rejected by the engine.
func (i Instruction) Mode(k int) Mode {
	v := Word(i) / 100
	if v < 0 {
		return Mode(0xFF)
	}
	for ; k > 1; k-- {
		v /= 10
	}
	return Mode(v % 10)
}

// Modes returns the three parameter modes.
func (i Instruction) Modes() [3]Mode {
	return [3]Mode{i.Mode(1), i.Mode(2), i.Mode(3)}
}

// String formats the instruction as "mnemonic[modes]".
func (i Instruction) String() string {
	m := i.Modes()
	return fmt.Sprintf("%s[%d%d%d]", i.Op(), m[0], m[1], m[2])
}

// Encode builds an instruction word from an opcode and parameter modes
// (first parameter first). Missing modes default to ModePosition.
func Encode(op Opcode, modes ...Mode) Word {
	w := Word(op)
	scale := Word(100)
	for _, m := range modes {
		w += Word(m) * scale
		scale *= 10
	}
	return w
}
