// Package comm provides the worker-coordination primitive the trainer
// depends on. Gradient synchronization itself lives behind the optimizer
// collaborator; this package only covers rank identity, barriers, and the
// evaluation-aggregate merge.
package comm

import (
	"context"
	"fmt"

	"asrtune/evaluation"
)

// Communicator coordinates a fixed set of workers running the training
// loop in lockstep. The worker count never changes during a run.
type Communicator interface {
	// Rank returns this worker's index in [0, WorldSize).
	Rank() int

	// WorldSize returns the fixed number of workers in the run.
	WorldSize() int

	// IsCoordinator reports whether this worker performs checkpoint
	// writes and owns authoritative metric decisions.
	IsCoordinator() bool

	// Barrier blocks until every worker has reached the same point.
	Barrier(ctx context.Context) error

	// MergeEval combines this worker's evaluation partial with every
	// other worker's and returns the merged aggregate. All workers
	// receive the identical merged value.
	MergeEval(ctx context.Context, partial *evaluation.Aggregate) (*evaluation.Aggregate, error)
}

// Local is the single-process communicator: one worker, no peers.
type Local struct{}

func (Local) Rank() int           { return 0 }
func (Local) WorldSize() int      { return 1 }
func (Local) IsCoordinator() bool { return true }

func (Local) Barrier(ctx context.Context) error {
	return ctx.Err()
}

func (Local) MergeEval(ctx context.Context, partial *evaluation.Aggregate) (*evaluation.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return partial, nil
}

// Group is an in-process communicator over channels for a fixed worker
// set. Each worker holds one *Member.
type Group struct {
	size    int
	barrier chan struct{}
	release chan struct{}
	gather  chan indexed
	results []chan *evaluation.Aggregate
}

type indexed struct {
	rank    int
	partial *evaluation.Aggregate
}

// NewGroup creates an in-process group of n workers and returns one
// member per rank. Rank 0 is the coordinator.
func NewGroup(n int) []*Member {
	if n <= 0 {
		n = 1
	}
	g := &Group{
		size:    n,
		barrier: make(chan struct{}, n),
		release: make(chan struct{}),
		gather:  make(chan indexed, n),
		results: make([]chan *evaluation.Aggregate, n),
	}
	members := make([]*Member, n)
	for i := 0; i < n; i++ {
		g.results[i] = make(chan *evaluation.Aggregate, 1)
		members[i] = &Member{group: g, rank: i}
	}
	return members
}

// Member is one worker's view of a Group.
type Member struct {
	group *Group
	rank  int
}

func (m *Member) Rank() int           { return m.rank }
func (m *Member) WorldSize() int      { return m.group.size }
func (m *Member) IsCoordinator() bool { return m.rank == 0 }

// Barrier blocks until all group members have called Barrier. The
// coordinator releases the group once everyone has arrived.
func (m *Member) Barrier(ctx context.Context) error {
	g := m.group
	select {
	case g.barrier <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if m.rank == 0 {
		for i := 0; i < g.size; i++ {
			select {
			case <-g.barrier:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for i := 1; i < g.size; i++ {
			select {
			case g.release <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MergeEval gathers every member's partial, merges them in rank order so
// all workers compute identical metrics, and distributes the result.
func (m *Member) MergeEval(ctx context.Context, partial *evaluation.Aggregate) (*evaluation.Aggregate, error) {
	g := m.group
	select {
	case g.gather <- indexed{rank: m.rank, partial: partial}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if m.rank == 0 {
		parts := make([]*evaluation.Aggregate, g.size)
		for i := 0; i < g.size; i++ {
			select {
			case in := <-g.gather:
				if in.rank < 0 || in.rank >= g.size {
					return nil, fmt.Errorf("comm: rank %d out of range", in.rank)
				}
				parts[in.rank] = in.partial
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		merged := evaluation.Merge(parts...)
		for i := 0; i < g.size; i++ {
			select {
			case g.results[i] <- merged:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	select {
	case merged := <-g.results[m.rank]:
		return merged, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
