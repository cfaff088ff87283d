package intcode

import "sync/atomic"

// Budget limits how many instructions a machine may complete. A machine
// without a budget runs unbounded.
//
// Counters are atomic so a supervisor goroutine may read progress while the
// owning scheduler drives the machine.
type Budget struct {
	remaining uint64
	consumed  uint64
	limit     uint64
}

// NewBudget creates a budget allowing limit instructions.
func NewBudget(limit uint64) *Budget {
	return &Budget{
		remaining: limit,
		limit:     limit,
	}
}

// Consume takes cost units from the budget.
// Returns ErrBudgetExceeded, without consuming, if fewer than cost remain.
func (b *Budget) Consume(cost uint64) error {
	for {
		remaining := atomic.LoadUint64(&b.remaining)
		if remaining < cost {
			return ErrBudgetExceeded
		}
		if atomic.CompareAndSwapUint64(&b.remaining, remaining, remaining-cost) {
			atomic.AddUint64(&b.consumed, cost)
			return nil
		}
	}
}

// Remaining returns the units left.
func (b *Budget) Remaining() uint64 {
	return atomic.LoadUint64(&b.remaining)
}

// Consumed returns the units used since creation or the last Reset.
func (b *Budget) Consumed() uint64 {
	return atomic.LoadUint64(&b.consumed)
}

// Limit returns the budget size.
func (b *Budget) Limit() uint64 {
	return b.limit
}

// IsExhausted returns true if no units remain.
func (b *Budget) IsExhausted() bool {
	return atomic.LoadUint64(&b.remaining) == 0
}

// Reset refills the budget.
func (b *Budget) Reset() {
	atomic.StoreUint64(&b.remaining, b.limit)
	atomic.StoreUint64(&b.consumed, 0)
}

func (b *Budget) clone() *Budget {
	if b == nil {
		return nil
	}
	return &Budget{
		remaining: b.Remaining(),
		consumed:  b.Consumed(),
		limit:     b.limit,
	}
}
