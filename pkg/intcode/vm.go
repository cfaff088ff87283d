// Package intcode implements the Intcode virtual machine.
//
// Intcode is a stored-program machine over signed 64-bit words. Programs and
// data share one unbounded, zero-initialised address space. Every instruction
// is an opcode word (opcode + three decimal parameter-mode digits) followed by
// its parameters. The only I/O surface is a pair of FIFO queues: the machine
// pops its input queue and pushes to its output queue.
//
// Execution is cooperative. Execute runs until the program halts or blocks on
// an empty input queue, and can be called again later to resume. Composing
// several machines (pipelines, networks) is left entirely to the caller, which
// moves values between output and input queues between Execute calls.
package intcode

import (
	"fmt"
	"log"
)

// Word is the machine word. 64 bits hold every value the instruction set is
// expected to produce, including 16-digit products.
type Word = int64

// State is the execution state of a machine.
type State uint8

// Execution states.
const (
	Running State = iota // executing, or ready to execute
	Waiting              // blocked on an empty input queue
	Halted               // executed a halt instruction; terminal
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Waiting:
		return "waiting"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Option configures a machine.
type Option func(*Machine)

// WithInput queues values on the input channel before the first Execute.
func WithInput(values ...Word) Option {
	return func(m *Machine) { m.input.PushAll(values...) }
}

// WithStepLimit bounds the number of instructions the machine may complete.
// Once exhausted, Execute returns ErrBudgetExceeded; the machine can resume
// after Budget().Reset().
func WithStepLimit(n uint64) Option {
	return func(m *Machine) { m.budget = NewBudget(n) }
}

// WithTracer logs every instruction before it executes.
func WithTracer(l *log.Logger) Option {
	return func(m *Machine) { m.tracer = l }
}

// Machine is one Intcode VM instance. It exclusively owns its memory and
// channels; a Machine must not be driven from more than one goroutine at a
// time.
type Machine struct {
	mem    *Memory
	ip     Word // instruction pointer
	base   Word // relative base
	input  *Queue
	output *Queue
	state  State
	steps  uint64
	budget *Budget
	tracer *log.Logger
	err    error // sticky fault
}

// New creates a machine loaded with a copy of image. The caller's slice is
// never modified.
func New(image []Word, opts ...Option) *Machine {
	m := &Machine{
		mem:    NewMemory(image),
		input:  &Queue{},
		output: &Queue{},
		state:  Running,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current execution state.
func (m *Machine) State() State { return m.state }

// IP returns the instruction pointer.
func (m *Machine) IP() Word { return m.ip }

// RelativeBase returns the relative base.
func (m *Machine) RelativeBase() Word { return m.base }

// Memory returns the machine memory.
func (m *Machine) Memory() *Memory { return m.mem }

// Input returns the input channel. Values may be pushed at any time.
func (m *Machine) Input() *Queue { return m.input }

// Output returns the output channel.
func (m *Machine) Output() *Queue { return m.output }

// Steps returns the number of instructions completed so far.
func (m *Machine) Steps() uint64 { return m.steps }

// Budget returns the step budget, or nil when the machine is unbounded.
func (m *Machine) Budget() *Budget { return m.budget }

// Err returns the fault that stopped the machine, if any.
func (m *Machine) Err() error { return m.err }

// Execute runs the machine until it halts or blocks on input.
//
// Calling Execute on a halted machine is a no-op. A fatal fault (bad opcode,
// bad mode, negative address) is returned as a *Fault and sticks: later calls
// return the same error without executing anything.
func (m *Machine) Execute() (err error) {
	if m.err != nil {
		return m.err
	}
	if m.state == Halted {
		return nil
	}
	m.state = Running

	defer m.recoverFault(&err)

	for m.state == Running {
		if err := m.step(); err != nil {
			return err
		}
	}
	return nil
}

// Step executes a single instruction. A waiting machine is retried; a halted
// machine is left alone.
func (m *Machine) Step() (err error) {
	if m.err != nil {
		return m.err
	}
	if m.state == Halted {
		return nil
	}
	m.state = Running

	defer m.recoverFault(&err)

	return m.step()
}

// Clone returns an independent deep copy: memory, both channels, budget and
// counters. The tracer is shared.
func (m *Machine) Clone() *Machine {
	return &Machine{
		mem:    m.mem.clone(),
		ip:     m.ip,
		base:   m.base,
		input:  m.input.clone(),
		output: m.output.clone(),
		state:  m.state,
		steps:  m.steps,
		budget: m.budget.clone(),
		tracer: m.tracer,
		err:    m.err,
	}
}

func (m *Machine) recoverFault(err *error) {
	if rec := recover(); rec != nil {
		word, _ := m.mem.Read(m.ip)
		m.err = &Fault{IP: m.ip, Word: Decode(word), Err: fmt.Errorf("vm panic: %v", rec)}
		*err = m.err
	}
}

// step fetches, decodes and dispatches one instruction.
func (m *Machine) step() error {
	word, err := m.mem.Read(m.ip)
	if err != nil {
		m.err = &Fault{IP: m.ip, Unfetched: true, Err: err}
		return m.err
	}
	ins := Decode(word)
	op := ins.Op()
	if !op.Valid() {
		return m.fault(ins, fmt.Errorf("%w: %d", ErrInvalidOpcode, word))
	}
	if m.budget != nil && m.budget.IsExhausted() {
		return ErrBudgetExceeded
	}
	if m.tracer != nil {
		m.tracer.Printf("ip=%d base=%d %s", m.ip, m.base, ins)
	}

	switch op {
	case OpAdd, OpMul, OpLessThan, OpEquals:
		a, err := m.param(ins, 1)
		if err != nil {
			return m.fault(ins, err)
		}
		b, err := m.param(ins, 2)
		if err != nil {
			return m.fault(ins, err)
		}
		var v Word
		switch op {
		case OpAdd:
			v = a + b
		case OpMul:
			v = a * b
		case OpLessThan:
			if a < b {
				v = 1
			}
		case OpEquals:
			if a == b {
				v = 1
			}
		}
		if err := m.store(ins, 3, v); err != nil {
			return m.fault(ins, err)
		}
		m.ip += Word(op.Width())

	case OpInput:
		// Resolve the target before consuming so a bad target loses no input.
		addr, err := m.address(ins, 1)
		if err != nil {
			return m.fault(ins, err)
		}
		v, ok := m.input.Pop()
		if !ok {
			m.state = Waiting
			return nil
		}
		if err := m.mem.Write(addr, v); err != nil {
			return m.fault(ins, err)
		}
		m.ip += Word(op.Width())

	case OpOutput:
		v, err := m.param(ins, 1)
		if err != nil {
			return m.fault(ins, err)
		}
		m.output.Push(v)
		m.ip += Word(op.Width())

	case OpJumpIfTrue, OpJumpIfFalse:
		cond, err := m.param(ins, 1)
		if err != nil {
			return m.fault(ins, err)
		}
		target, err := m.param(ins, 2)
		if err != nil {
			return m.fault(ins, err)
		}
		if (cond != 0) == (op == OpJumpIfTrue) {
			m.ip = target
		} else {
			m.ip += Word(op.Width())
		}

	case OpAdjustBase:
		v, err := m.param(ins, 1)
		if err != nil {
			return m.fault(ins, err)
		}
		m.base += v
		m.ip += Word(op.Width())

	case OpHalt:
		m.state = Halted
	}

	m.steps++
	if m.budget != nil {
		// Exhaustion was checked above; one unit is always available here.
		_ = m.budget.Consume(1)
	}
	return nil
}

// param resolves the value of the k-th parameter of ins.
func (m *Machine) param(ins Instruction, k int) (Word, error) {
	raw, err := m.mem.Read(m.ip + Word(k))
	if err != nil {
		return 0, err
	}
	switch mode := ins.Mode(k); mode {
	case ModePosition:
		return m.mem.Read(raw)
	case ModeImmediate:
		return raw, nil
	case ModeRelative:
		return m.mem.Read(m.base + raw)
	default:
		return 0, fmt.Errorf("%w: %s for parameter %d", ErrInvalidMode, mode, k)
	}
}

// address resolves the k-th parameter of ins as a write target.
func (m *Machine) address(ins Instruction, k int) (Word, error) {
	raw, err := m.mem.Read(m.ip + Word(k))
	if err != nil {
		return 0, err
	}
	var addr Word
	switch mode := ins.Mode(k); mode {
	case ModePosition:
		addr = raw
	case ModeRelative:
		addr = m.base + raw
	case ModeImmediate:
		return 0, fmt.Errorf("%w: parameter %d", ErrImmediateWrite, k)
	default:
		return 0, fmt.Errorf("%w: %s for parameter %d", ErrInvalidMode, mode, k)
	}
	if addr < 0 {
		return 0, fmt.Errorf("%w: write at %d", ErrInvalidAddress, addr)
	}
	return addr, nil
}

func (m *Machine) store(ins Instruction, k int, v Word) error {
	addr, err := m.address(ins, k)
	if err != nil {
		return err
	}
	return m.mem.Write(addr, v)
}

func (m *Machine) fault(ins Instruction, err error) error {
	m.err = &Fault{IP: m.ip, Word: ins, Err: err}
	return m.err
}
