package intcode

import "strings"

// PushString queues s on the input channel, one word per byte.
func (m *Machine) PushString(s string) {
	for i := 0; i < len(s); i++ {
		m.input.Push(Word(s[i]))
	}
}

// PushLine queues s followed by a newline.
func (m *Machine) PushLine(s string) {
	m.PushString(s)
	m.input.Push('\n')
}

// IsASCII reports whether v is a 7-bit character code.
func IsASCII(v Word) bool {
	return v >= 0 && v < 128
}

// DecodeASCII splits words into text and non-character values. Character
// codes are appended to the returned text; every other word is returned in
// rest, in order. ASCII programs typically report a final numeric answer
// this way.
func DecodeASCII(words []Word) (text string, rest []Word) {
	var b strings.Builder
	for _, v := range words {
		if IsASCII(v) {
			b.WriteByte(byte(v))
		} else {
			rest = append(rest, v)
		}
	}
	return b.String(), rest
}
