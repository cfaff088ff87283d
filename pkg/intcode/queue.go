package intcode

// Queue is a FIFO of words. It backs both the input and the output channel
// of a machine. The zero value is an empty queue.
type Queue struct {
	buf  []Word
	head int
}

// Push appends v at the tail.
func (q *Queue) Push(v Word) {
	q.buf = append(q.buf, v)
}

// PushAll appends vs at the tail, in order.
func (q *Queue) PushAll(vs ...Word) {
	q.buf = append(q.buf, vs...)
}

// Pop removes and returns the head value.
func (q *Queue) Pop() (Word, bool) {
	if q.head >= len(q.buf) {
		return 0, false
	}
	v := q.buf[q.head]
	q.head++
	q.compact()
	return v, true
}

// PopBack removes and returns the tail value.
func (q *Queue) PopBack() (Word, bool) {
	if q.head >= len(q.buf) {
		return 0, false
	}
	n := len(q.buf) - 1
	v := q.buf[n]
	q.buf = q.buf[:n]
	q.compact()
	return v, true
}

// Peek returns the head value without removing it.
func (q *Queue) Peek() (Word, bool) {
	if q.head >= len(q.buf) {
		return 0, false
	}
	return q.buf[q.head], true
}

// Len returns the number of queued values.
func (q *Queue) Len() int {
	return len(q.buf) - q.head
}

// Empty reports whether the queue holds no values.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Drain removes and returns every queued value in FIFO order.
func (q *Queue) Drain() []Word {
	out := q.Values()
	q.Clear()
	return out
}

// Values returns a copy of the queued values without consuming them.
func (q *Queue) Values() []Word {
	out := make([]Word, q.Len())
	copy(out, q.buf[q.head:])
	return out
}

// Clear discards every queued value.
func (q *Queue) Clear() {
	q.buf = q.buf[:0]
	q.head = 0
}

// compact reclaims the consumed prefix once it dominates the buffer.
func (q *Queue) compact() {
	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
		return
	}
	if q.head > 32 && q.head*2 >= len(q.buf) {
		n := copy(q.buf, q.buf[q.head:])
		q.buf = q.buf[:n]
		q.head = 0
	}
}

func (q *Queue) clone() *Queue {
	return &Queue{buf: q.Values()}
}
