package intcode

import (
	"errors"
	"fmt"
)

// Errors.
var (
	ErrInvalidOpcode  = errors.New("invalid opcode")
	ErrInvalidAddress = errors.New("invalid memory address")
	ErrInvalidMode    = errors.New("invalid parameter mode")
	ErrImmediateWrite = errors.New("write through immediate parameter")
	ErrBudgetExceeded = errors.New("step budget exceeded")
)

// Fault is a fatal execution error. It records where the machine stopped.
type Fault struct {
	IP   Word        // address of the faulting instruction
	Word Instruction // raw instruction word at IP
	Err  error

	// Unfetched is set when IP itself was not a readable address; Word is
	// zero and meaningless then.
	Unfetched bool
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Unfetched {
		return fmt.Sprintf("intcode fault @ ip %d: %v", f.IP, f.Err)
	}
	return fmt.Sprintf("intcode fault @ ip %d (%d %s): %v", f.IP, Word(f.Word), f.Word.Op(), f.Err)
}

// Unwrap returns the underlying sentinel error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// IsFault reports whether err is a fatal machine fault, as opposed to a
// resumable condition such as budget exhaustion.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}
