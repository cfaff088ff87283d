// Package cluster drives groups of Intcode machines.
//
// Machines know nothing about each other. The schedulers here own a set of
// machines and repeatedly execute each one, drain its output and route the
// values into the input of other machines, until a termination condition is
// reached. All scheduling happens on the caller's goroutine.
package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortiblox/intcode/pkg/intcode"
)

// Scheduler errors.
var (
	// ErrNoSignal is returned when the final stage never produced output.
	ErrNoSignal = errors.New("pipeline produced no signal")

	// ErrDeadlock is returned when no machine can make progress.
	ErrDeadlock = errors.New("machines deadlocked")

	// ErrNoStages is returned for an empty phase list.
	ErrNoStages = errors.New("pipeline has no stages")

	// ErrUnknownAddress is returned when a packet targets a missing node.
	ErrUnknownAddress = errors.New("packet for unknown address")

	// ErrRoundLimit is returned when a run exceeds its configured rounds.
	ErrRoundLimit = errors.New("round limit reached")
)

// Pipeline is a chain of machines running the same image, each seeded with
// its own phase value. Stage i reads what stage i-1 writes; with feedback
// the first stage also reads what the last one writes.
type Pipeline struct {
	stages []*intcode.Machine
	rounds int
}

// NewPipeline creates one stage per phase, each with phase queued as its
// first input.
func NewPipeline(image []intcode.Word, phases []intcode.Word, opts ...intcode.Option) (*Pipeline, error) {
	if len(phases) == 0 {
		return nil, ErrNoStages
	}
	p := &Pipeline{stages: make([]*intcode.Machine, len(phases))}
	for i, phase := range phases {
		stageOpts := make([]intcode.Option, 0, len(opts)+1)
		stageOpts = append(stageOpts, opts...)
		stageOpts = append(stageOpts, intcode.WithInput(phase))
		p.stages[i] = intcode.New(image, stageOpts...)
	}
	return p, nil
}

// Stages returns the stage machines, first stage first.
func (p *Pipeline) Stages() []*intcode.Machine {
	return p.stages
}

// Rounds returns how many scheduling rounds the last Run took.
func (p *Pipeline) Rounds() int {
	return p.rounds
}

// Run feeds seed to the first stage and schedules the chain until every
// stage has halted. It returns the last value emitted by the final stage.
func (p *Pipeline) Run(ctx context.Context, seed intcode.Word, feedback bool) (intcode.Word, error) {
	n := len(p.stages)
	p.stages[0].Input().Push(seed)
	p.rounds = 0

	var (
		signal    intcode.Word
		hasSignal bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		p.rounds++

		progress := false
		halted := 0
		for i, m := range p.stages {
			// Route what the upstream stage produced since its last turn.
			if i > 0 || feedback {
				up := p.stages[(i+n-1)%n]
				if !up.Output().Empty() {
					m.Input().PushAll(up.Output().Drain()...)
					progress = true
				}
			}

			if m.State() != intcode.Halted {
				before := m.Steps()
				if err := m.Execute(); err != nil {
					return 0, fmt.Errorf("stage %d: %w", i, err)
				}
				if m.Steps() != before {
					progress = true
				}
			}
			if m.State() == intcode.Halted {
				halted++
			}

			// The final stage's output is the signal; remember the latest one
			// before it is routed back around.
			if i == n-1 {
				if v, ok := m.Output().PopBack(); ok {
					signal, hasSignal = v, true
					m.Output().Push(v)
				}
				if !feedback {
					m.Output().Clear()
				}
			}
		}

		if halted == n {
			break
		}
		if !progress {
			return 0, ErrDeadlock
		}
	}

	if !hasSignal {
		return 0, ErrNoSignal
	}
	return signal, nil
}

// MaxSignal runs a pipeline for every ordering of phases and returns the
// strongest signal together with the ordering that produced it. Seed is 0.
// opts apply to every stage of every run.
func MaxSignal(ctx context.Context, image []intcode.Word, phases []intcode.Word, feedback bool, opts ...intcode.Option) (intcode.Word, []intcode.Word, error) {
	if len(phases) == 0 {
		return 0, nil, ErrNoStages
	}

	var (
		best     intcode.Word
		bestPerm []intcode.Word
		runErr   error
	)
	Permutations(phases, func(perm []intcode.Word) bool {
		p, err := NewPipeline(image, perm, opts...)
		if err != nil {
			runErr = err
			return false
		}
		signal, err := p.Run(ctx, 0, feedback)
		if err != nil {
			runErr = fmt.Errorf("phases %v: %w", perm, err)
			return false
		}
		if bestPerm == nil || signal > best {
			best = signal
			bestPerm = append([]intcode.Word(nil), perm...)
		}
		return true
	})
	if runErr != nil {
		return 0, nil, runErr
	}
	return best, bestPerm, nil
}

// Permutations calls fn with every ordering of values (Heap's algorithm).
// The slice passed to fn is reused between calls. Iteration stops early when
// fn returns false. values is not modified.
func Permutations(values []intcode.Word, fn func([]intcode.Word) bool) {
	a := append([]intcode.Word(nil), values...)
	c := make([]int, len(a))

	if !fn(a) {
		return
	}
	for i := 1; i < len(a); {
		if c[i] < i {
			if i%2 == 0 {
				a[0], a[i] = a[i], a[0]
			} else {
				a[c[i]], a[i] = a[i], a[c[i]]
			}
			if !fn(a) {
				return
			}
			c[i]++
			i = 1
		} else {
			c[i] = 0
			i++
		}
	}
}
