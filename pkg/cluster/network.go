package cluster

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/fortiblox/intcode/pkg/intcode"
)

// Default network configuration values.
const (
	// DefaultNetworkSize is the number of nodes on the network.
	DefaultNetworkSize = 50

	// DefaultNATAddress is the address monitored by the NAT.
	DefaultNATAddress = 255

	// DefaultIdleValue is fed to a node that has nothing to read.
	DefaultIdleValue = -1
)

// ErrInvalidConfig is returned for an unusable network configuration.
var ErrInvalidConfig = errors.New("invalid network configuration")

// NetworkConfig holds network configuration.
type NetworkConfig struct {
	// Size is the number of nodes. Node addresses are 0..Size-1.
	Size int

	// NATAddress is the destination captured by the NAT. It must not be a
	// node address.
	NATAddress intcode.Word

	// IdleValue is queued for a node whose input is empty when its turn
	// comes, so a polling program never blocks.
	IdleValue intcode.Word

	// StopOnFirstNAT makes Run return the Y of the first packet sent to the
	// NAT instead of waiting for a repeated wake-up.
	StopOnFirstNAT bool

	// MaxRounds bounds the number of scheduling rounds. 0 means unbounded.
	MaxRounds int

	// Logger receives NAT activity. Nil disables logging.
	Logger *log.Logger
}

// DefaultNetworkConfig returns the default network configuration.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Size:       DefaultNetworkSize,
		NATAddress: DefaultNATAddress,
		IdleValue:  DefaultIdleValue,
	}
}

// Validate checks the configuration.
func (c NetworkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidConfig, c.Size)
	}
	if c.NATAddress >= 0 && c.NATAddress < intcode.Word(c.Size) {
		return fmt.Errorf("%w: NAT address %d collides with a node", ErrInvalidConfig, c.NATAddress)
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("%w: max rounds %d", ErrInvalidConfig, c.MaxRounds)
	}
	return nil
}

// Packet is an (X, Y) pair addressed to Dest.
type Packet struct {
	Dest intcode.Word
	X    intcode.Word
	Y    intcode.Word
}

// NetworkStats summarises a run.
type NetworkStats struct {
	Rounds        int    // scheduling rounds
	Packets       uint64 // packets emitted by nodes, NAT-bound included
	NATDeliveries int    // packets the NAT sent to node 0
}

// Network is a set of machines exchanging packets. Each node emits packets as
// three consecutive outputs (dest, x, y); the network routes x and y into the
// input of node dest. Packets for the NAT address are held by the NAT, which
// wakes node 0 with the latest one whenever the whole network is idle.
type Network struct {
	cfg   NetworkConfig
	nodes []*intcode.Machine

	nat       *Packet // latest packet held by the NAT
	delivered *Packet // last packet the NAT delivered
	stats     NetworkStats
}

// NewNetwork boots cfg.Size copies of image. Node i receives its address i
// as its first input.
func NewNetwork(image []intcode.Word, cfg NetworkConfig, opts ...intcode.Option) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := &Network{
		cfg:   cfg,
		nodes: make([]*intcode.Machine, cfg.Size),
	}
	for i := range n.nodes {
		nodeOpts := make([]intcode.Option, 0, len(opts)+1)
		nodeOpts = append(nodeOpts, opts...)
		nodeOpts = append(nodeOpts, intcode.WithInput(intcode.Word(i)))
		n.nodes[i] = intcode.New(image, nodeOpts...)
	}
	return n, nil
}

// Nodes returns the node machines, indexed by address.
func (n *Network) Nodes() []*intcode.Machine {
	return n.nodes
}

// Stats returns counters for the current run.
func (n *Network) Stats() NetworkStats {
	return n.stats
}

// NAT returns the packet currently held by the NAT, if any.
func (n *Network) NAT() (Packet, bool) {
	if n.nat == nil {
		return Packet{}, false
	}
	return *n.nat, true
}

// Run schedules the network round-robin until the termination condition.
//
// With StopOnFirstNAT it returns the Y of the first packet addressed to the
// NAT. Otherwise it returns the first Y the NAT delivers to node 0 twice in
// a row. A network that goes idle while the NAT holds
// nothing is deadlocked.
func (n *Network) Run(ctx context.Context) (intcode.Word, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if n.cfg.MaxRounds > 0 && n.stats.Rounds >= n.cfg.MaxRounds {
			return 0, fmt.Errorf("%w: %d", ErrRoundLimit, n.stats.Rounds)
		}
		n.stats.Rounds++

		idle := true
		for addr, m := range n.nodes {
			if m.State() == intcode.Halted {
				continue
			}
			if m.Input().Empty() {
				m.Input().Push(n.cfg.IdleValue)
			} else {
				idle = false
			}

			if err := m.Execute(); err != nil {
				return 0, fmt.Errorf("node %d: %w", addr, err)
			}

			out := m.Output()
			for out.Len() >= 3 {
				idle = false
				dest, _ := out.Pop()
				x, _ := out.Pop()
				y, _ := out.Pop()
				n.stats.Packets++

				if dest == n.cfg.NATAddress {
					if n.cfg.StopOnFirstNAT {
						return y, nil
					}
					n.nat = &Packet{Dest: dest, X: x, Y: y}
					continue
				}
				if dest < 0 || dest >= intcode.Word(len(n.nodes)) {
					return 0, fmt.Errorf("%w: node %d sent to %d", ErrUnknownAddress, addr, dest)
				}
				n.nodes[dest].Input().PushAll(x, y)
			}
		}

		if !idle {
			continue
		}
		if n.nat == nil {
			return 0, fmt.Errorf("%w: network idle after %d rounds with nothing at the NAT", ErrDeadlock, n.stats.Rounds)
		}
		if n.delivered != nil && n.delivered.Y == n.nat.Y {
			if n.cfg.Logger != nil {
				n.cfg.Logger.Printf("NAT delivered y=%d twice in a row after %d rounds", n.nat.Y, n.stats.Rounds)
			}
			return n.nat.Y, nil
		}

		if n.cfg.Logger != nil {
			n.cfg.Logger.Printf("NAT wakes node 0 with x=%d y=%d (round %d)", n.nat.X, n.nat.Y, n.stats.Rounds)
		}
		n.nodes[0].Input().PushAll(n.nat.X, n.nat.Y)
		n.stats.NATDeliveries++
		n.delivered = n.nat
		n.nat = nil
	}
}
