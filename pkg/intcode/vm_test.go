package intcode

import (
	"bytes"
	"errors"
	"log"
	"reflect"
	"strings"
	"testing"
)

// run executes image with the given input and fails the test on error.
func run(t *testing.T, image []Word, input ...Word) *Machine {
	t.Helper()
	m := New(image, WithInput(input...))
	if err := m.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	return m
}

// TestExecuteScenarios covers the reference programs.
func TestExecuteScenarios(t *testing.T) {
	tests := []struct {
		name   string
		image  []Word
		input  []Word
		addr   Word
		value  Word
		output []Word
	}{
		{
			name:  "add in place",
			image: []Word{1, 0, 0, 0, 99},
			addr:  0,
			value: 2,
		},
		{
			name:  "multiply past opcode",
			image: []Word{2, 4, 4, 5, 99, 0},
			addr:  5,
			value: 9801,
		},
		{
			name:  "add then multiply",
			image: []Word{1, 1, 1, 4, 99, 5, 6, 0, 99},
			addr:  0,
			value: 30,
		},
		{
			name:   "16-digit product",
			image:  []Word{1102, 34915192, 34915192, 7, 4, 7, 99, 0},
			addr:   7,
			value:  1219070632396864,
			output: []Word{1219070632396864},
		},
		{
			name:   "large immediate output",
			image:  []Word{104, 1125899906842624, 99},
			addr:   1,
			value:  1125899906842624,
			output: []Word{1125899906842624},
		},
		{
			name:   "echo",
			image:  []Word{3, 0, 4, 0, 99},
			input:  []Word{42},
			addr:   0,
			value:  42,
			output: []Word{42},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := run(t, tt.image, tt.input...)
			if m.State() != Halted {
				t.Errorf("State() = %v, want halted", m.State())
			}
			v, err := m.Memory().Read(tt.addr)
			if err != nil {
				t.Fatalf("Read(%d) failed: %v", tt.addr, err)
			}
			if v != tt.value {
				t.Errorf("mem[%d] = %d, want %d", tt.addr, v, tt.value)
			}
			got := m.Output().Values()
			if len(got) != len(tt.output) || (len(got) > 0 && !reflect.DeepEqual(got, tt.output)) {
				t.Errorf("output = %v, want %v", got, tt.output)
			}
		})
	}
}

// TestComparisonsAndJumps runs the comparison and jump programs against
// several inputs.
func TestComparisonsAndJumps(t *testing.T) {
	cmp8 := []Word{
		3, 21, 1008, 21, 8, 20, 1005, 20, 22, 107, 8, 21, 20, 1006, 20, 31,
		1106, 0, 36, 98, 0, 0, 1002, 21, 125, 20, 4, 20, 1105, 1, 46, 104,
		999, 1105, 1, 46, 1101, 1000, 1, 20, 4, 20, 1105, 1, 46, 98, 99,
	}

	tests := []struct {
		name  string
		image []Word
		input Word
		want  Word
	}{
		{"equal position true", []Word{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8}, 8, 1},
		{"equal position false", []Word{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8}, 7, 0},
		{"less position true", []Word{3, 9, 7, 9, 10, 9, 4, 9, 99, -1, 8}, 5, 1},
		{"less position false", []Word{3, 9, 7, 9, 10, 9, 4, 9, 99, -1, 8}, 8, 0},
		{"equal immediate true", []Word{3, 3, 1108, -1, 8, 3, 4, 3, 99}, 8, 1},
		{"less immediate false", []Word{3, 3, 1107, -1, 8, 3, 4, 3, 99}, 9, 0},
		{"jump position zero", []Word{3, 12, 6, 12, 15, 1, 13, 14, 13, 4, 13, 99, -1, 0, 1, 9}, 0, 0},
		{"jump position nonzero", []Word{3, 12, 6, 12, 15, 1, 13, 14, 13, 4, 13, 99, -1, 0, 1, 9}, 3, 1},
		{"jump immediate zero", []Word{3, 3, 1105, -1, 9, 1101, 0, 0, 12, 4, 12, 99, 1}, 0, 0},
		{"jump immediate nonzero", []Word{3, 3, 1105, -1, 9, 1101, 0, 0, 12, 4, 12, 99, 1}, -4, 1},
		{"below eight", cmp8, 7, 999},
		{"eight", cmp8, 8, 1000},
		{"above eight", cmp8, 9, 1001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := run(t, tt.image, tt.input)
			got, ok := m.Output().PopBack()
			if !ok {
				t.Fatal("no output")
			}
			if got != tt.want {
				t.Errorf("output = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestQuine checks relative addressing against the self-printing program.
func TestQuine(t *testing.T) {
	image := []Word{109, 1, 204, -1, 1001, 100, 1, 100, 1008, 100, 16, 101, 1006, 101, 0, 99}
	m := run(t, image)
	if got := m.Output().Values(); !reflect.DeepEqual(got, image) {
		t.Errorf("output = %v, want %v", got, image)
	}
}

// TestRelativeAddressing checks that a relative write at offset o after
// adjusting the base by k lands at k+o.
func TestRelativeAddressing(t *testing.T) {
	image := []Word{
		109, 10, // base += 10
		21101, 3, 4, 0, // mem[base+0] = 3 + 4
		204, 0, // out mem[base+0]
		99,
	}
	m := run(t, image)

	if m.RelativeBase() != 10 {
		t.Errorf("RelativeBase() = %d, want 10", m.RelativeBase())
	}
	v, err := m.Memory().Read(10)
	if err != nil {
		t.Fatalf("Read(10) failed: %v", err)
	}
	if v != 7 {
		t.Errorf("mem[10] = %d, want 7", v)
	}
	if got := m.Output().Values(); !reflect.DeepEqual(got, []Word{7}) {
		t.Errorf("output = %v, want [7]", got)
	}
}

// TestWaitingOnInput checks suspension and resumption on an empty input queue.
func TestWaitingOnInput(t *testing.T) {
	m := New([]Word{3, 0, 4, 0, 99})

	if err := m.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if m.State() != Waiting {
		t.Fatalf("State() = %v, want waiting", m.State())
	}
	if m.IP() != 0 {
		t.Errorf("IP() = %d, want 0", m.IP())
	}
	if v, _ := m.Memory().Read(0); v != 3 {
		t.Errorf("mem[0] = %d, want 3", v)
	}
	if !m.Output().Empty() {
		t.Errorf("output = %v, want empty", m.Output().Values())
	}

	// Polling again without input stays put.
	if err := m.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if m.State() != Waiting || m.Steps() != 0 {
		t.Errorf("State() = %v, Steps() = %d, want waiting, 0", m.State(), m.Steps())
	}

	m.Input().Push(7)
	if err := m.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if m.State() != Halted {
		t.Errorf("State() = %v, want halted", m.State())
	}
	if got := m.Output().Values(); !reflect.DeepEqual(got, []Word{7}) {
		t.Errorf("output = %v, want [7]", got)
	}
}

// TestHaltedIsNoop checks that executing a halted machine changes nothing.
func TestHaltedIsNoop(t *testing.T) {
	m := run(t, []Word{104, 5, 99})
	steps := m.Steps()
	snapshot := m.Memory().Snapshot()

	for i := 0; i < 3; i++ {
		if err := m.Execute(); err != nil {
			t.Fatalf("Execute() #%d failed: %v", i, err)
		}
		if err := m.Step(); err != nil {
			t.Fatalf("Step() #%d failed: %v", i, err)
		}
	}

	if m.State() != Halted {
		t.Errorf("State() = %v, want halted", m.State())
	}
	if m.Steps() != steps {
		t.Errorf("Steps() = %d, want %d", m.Steps(), steps)
	}
	if !reflect.DeepEqual(m.Memory().Snapshot(), snapshot) {
		t.Error("memory changed after halt")
	}
	if got := m.Output().Values(); !reflect.DeepEqual(got, []Word{5}) {
		t.Errorf("output = %v, want [5]", got)
	}
}

// TestDeterminism runs the same image twice and compares final state.
func TestDeterminism(t *testing.T) {
	image := []Word{1, 9, 10, 3, 2, 3, 11, 0, 99, 30, 40, 50}
	a := run(t, image)
	b := run(t, image)

	if !reflect.DeepEqual(a.Memory().Snapshot(), b.Memory().Snapshot()) {
		t.Errorf("memory differs: %v vs %v", a.Memory().Snapshot(), b.Memory().Snapshot())
	}
	if v, _ := a.Memory().Read(0); v != 3500 {
		t.Errorf("mem[0] = %d, want 3500", v)
	}
	if image[0] != 1 || image[3] != 3 {
		t.Error("New() mutated the caller's image")
	}
}

// TestStep executes one instruction at a time.
func TestStep(t *testing.T) {
	m := New([]Word{1, 0, 0, 0, 99})

	if err := m.Step(); err != nil {
		t.Fatalf("Step() failed: %v", err)
	}
	if m.IP() != 4 || m.State() != Running {
		t.Errorf("IP() = %d, State() = %v, want 4, running", m.IP(), m.State())
	}
	if err := m.Step(); err != nil {
		t.Fatalf("Step() failed: %v", err)
	}
	if m.State() != Halted {
		t.Errorf("State() = %v, want halted", m.State())
	}
	if m.Steps() != 2 {
		t.Errorf("Steps() = %d, want 2", m.Steps())
	}
}

// TestStepAdvancesByWidth checks that every non-jumping instruction moves
// the instruction pointer past its parameters.
func TestStepAdvancesByWidth(t *testing.T) {
	image := []Word{
		1101, 1, 1, 20, // add
		3, 21, // in
		4, 21, // out
		1105, 0, 99, // jt, not taken
		1106, 1, 99, // jf, not taken
		109, 1, // arb
		99,
	}
	m := New(image, WithInput(5))

	for _, want := range []Word{4, 6, 8, 11, 14, 16} {
		word, _ := m.Memory().Read(m.IP())
		op := Decode(word).Op()
		if err := m.Step(); err != nil {
			t.Fatalf("Step() at %s failed: %v", op, err)
		}
		if m.IP() != want {
			t.Errorf("after %s IP() = %d, want %d", op, m.IP(), want)
		}
	}
	if err := m.Step(); err != nil || m.State() != Halted {
		t.Errorf("Step() = %v, State() = %v, want halted", err, m.State())
	}
}

// TestFaultUnreadableIP checks the fault reported when a jump leaves the
// address space.
func TestFaultUnreadableIP(t *testing.T) {
	m := New([]Word{1106, 0, -5})
	err := m.Execute()

	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("Execute() = %v, want *Fault", err)
	}
	if !f.Unfetched || f.IP != -5 {
		t.Errorf("Fault = {IP:%d Unfetched:%v}, want {IP:-5 Unfetched:true}", f.IP, f.Unfetched)
	}
	if msg := err.Error(); msg != "intcode fault @ ip -5: "+f.Err.Error() {
		t.Errorf("Error() = %q", msg)
	}

	// A fetched word is still reported.
	m = New([]Word{42})
	err = m.Execute()
	if !strings.Contains(err.Error(), "(42 op(42))") {
		t.Errorf("Error() = %q, want the instruction word", err)
	}
}

// TestFaults checks that malformed programs stop with a sticky fault.
func TestFaults(t *testing.T) {
	tests := []struct {
		name  string
		image []Word
		want  error
		ip    Word
	}{
		{"unknown opcode", []Word{42}, ErrInvalidOpcode, 0},
		{"unknown opcode after add", []Word{1101, 1, 1, 5, 77, 0}, ErrInvalidOpcode, 4},
		{"negative opcode", []Word{-1}, ErrInvalidOpcode, 0},
		{"negative read", []Word{1, -1, 0, 0, 99}, ErrInvalidAddress, 0},
		{"negative relative write", []Word{109, -5, 21101, 1, 1, 0, 99}, ErrInvalidAddress, 2},
		{"negative jump target", []Word{1106, 0, -5}, ErrInvalidAddress, -5},
		{"immediate write", []Word{11101, 1, 1, 0, 99}, ErrImmediateWrite, 0},
		{"immediate input target", []Word{103, 0, 99}, ErrImmediateWrite, 0},
		{"unknown mode", []Word{301, 0, 0, 0, 99}, ErrInvalidMode, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.image, WithInput(1))
			err := m.Execute()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Execute() = %v, want %v", err, tt.want)
			}
			if !IsFault(err) {
				t.Errorf("IsFault(%v) = false, want true", err)
			}

			var f *Fault
			if errors.As(err, &f) && f.IP != tt.ip {
				t.Errorf("Fault.IP = %d, want %d", f.IP, tt.ip)
			}

			// The fault sticks.
			steps := m.Steps()
			if err2 := m.Execute(); err2 != err {
				t.Errorf("second Execute() = %v, want %v", err2, err)
			}
			if m.Steps() != steps {
				t.Errorf("Steps() = %d after fault, want %d", m.Steps(), steps)
			}
			if m.Err() != err {
				t.Errorf("Err() = %v, want %v", m.Err(), err)
			}
		})
	}
}

// TestImmediateWriteKeepsInput checks that a rejected input target does not
// consume the pending value.
func TestImmediateWriteKeepsInput(t *testing.T) {
	m := New([]Word{103, 0, 99}, WithInput(9))
	if err := m.Execute(); !errors.Is(err, ErrImmediateWrite) {
		t.Fatalf("Execute() = %v, want ErrImmediateWrite", err)
	}
	if m.Input().Len() != 1 {
		t.Errorf("Input().Len() = %d, want 1", m.Input().Len())
	}
}

// TestClone checks that a clone evolves independently of its origin.
func TestClone(t *testing.T) {
	m := New([]Word{3, 0, 4, 0, 99})
	if err := m.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	c := m.Clone()
	c.Input().Push(5)
	if err := c.Execute(); err != nil {
		t.Fatalf("clone Execute() failed: %v", err)
	}

	if c.State() != Halted {
		t.Errorf("clone State() = %v, want halted", c.State())
	}
	if got := c.Output().Values(); !reflect.DeepEqual(got, []Word{5}) {
		t.Errorf("clone output = %v, want [5]", got)
	}

	if m.State() != Waiting {
		t.Errorf("origin State() = %v, want waiting", m.State())
	}
	if !m.Output().Empty() || !m.Input().Empty() {
		t.Error("origin channels changed")
	}
	if v, _ := m.Memory().Read(0); v != 3 {
		t.Errorf("origin mem[0] = %d, want 3", v)
	}

	// And the other way round.
	m.Input().Push(6)
	if err := m.Execute(); err != nil {
		t.Fatalf("origin Execute() failed: %v", err)
	}
	if got := m.Output().Values(); !reflect.DeepEqual(got, []Word{6}) {
		t.Errorf("origin output = %v, want [6]", got)
	}
	if got := c.Output().Values(); !reflect.DeepEqual(got, []Word{5}) {
		t.Errorf("clone output = %v, want [5]", got)
	}
}

// TestStepLimit checks budget exhaustion and resumption.
func TestStepLimit(t *testing.T) {
	// jump-if-true 1 -> 0, forever
	m := New([]Word{1105, 1, 0}, WithStepLimit(10))

	if err := m.Execute(); err != ErrBudgetExceeded {
		t.Fatalf("Execute() = %v, want ErrBudgetExceeded", err)
	}
	if IsFault(ErrBudgetExceeded) {
		t.Error("budget exhaustion reported as fault")
	}
	if m.Steps() != 10 {
		t.Errorf("Steps() = %d, want 10", m.Steps())
	}
	if m.State() != Running {
		t.Errorf("State() = %v, want running", m.State())
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v, want nil", m.Err())
	}

	m.Budget().Reset()
	if err := m.Execute(); err != ErrBudgetExceeded {
		t.Fatalf("Execute() = %v, want ErrBudgetExceeded", err)
	}
	if m.Steps() != 20 {
		t.Errorf("Steps() = %d, want 20", m.Steps())
	}
}

// TestStepLimitNotReached checks that a sufficient budget is invisible.
func TestStepLimitNotReached(t *testing.T) {
	m := New([]Word{1, 0, 0, 0, 99}, WithStepLimit(2))
	if err := m.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if m.State() != Halted {
		t.Errorf("State() = %v, want halted", m.State())
	}
	if m.Budget().Remaining() != 0 || m.Budget().Consumed() != 2 {
		t.Errorf("Remaining() = %d, Consumed() = %d, want 0, 2",
			m.Budget().Remaining(), m.Budget().Consumed())
	}
}

// TestTracer checks that every instruction is logged.
func TestTracer(t *testing.T) {
	var buf bytes.Buffer
	m := New([]Word{1, 0, 0, 0, 99}, WithTracer(log.New(&buf, "", 0)))
	if err := m.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"ip=0 base=0 add[000]",
		"ip=4 base=0 halt[000]",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("trace = %q, want %q", lines, want)
	}
}

// TestASCII checks the text helpers.
func TestASCII(t *testing.T) {
	m := New([]Word{3, 0, 4, 0, 3, 0, 4, 0, 99})
	m.PushLine("A")
	if err := m.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	text, rest := DecodeASCII(m.Output().Values())
	if text != "A\n" || len(rest) != 0 {
		t.Errorf("DecodeASCII() = %q, %v, want %q, []", text, rest, "A\n")
	}

	text, rest = DecodeASCII([]Word{72, 105, 10, 19354, -1})
	if text != "Hi\n" {
		t.Errorf("text = %q, want %q", text, "Hi\n")
	}
	if !reflect.DeepEqual(rest, []Word{19354, -1}) {
		t.Errorf("rest = %v, want [19354 -1]", rest)
	}
}
