// Package runner executes an ordered batch of migrations against an
// executor, one at a time, recording each completed step in the tracking
// store before advancing to the next.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adnansarkar/revmig/internal/catalog"
	"github.com/adnansarkar/revmig/internal/resolve"
)

// ErrExecution wraps script failures during apply or revert.
var ErrExecution = errors.New("migration execution failed")

// Executor runs migration scripts against a target store and keeps the
// record of which migrations have been applied.
type Executor interface {
	Apply(ctx context.Context, m *catalog.Migration, pos int, atomic bool) error
	Revert(ctx context.Context, m *catalog.Migration, pos int, atomic bool) error
	MarkApplied(ctx context.Context, name string) error
	MarkReverted(ctx context.Context, name string) error
	ListApplied(ctx context.Context) ([]string, error)
}

// Outcome is the terminal result of one attempted migration.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeReverted Outcome = "reverted"
	OutcomeErrored  Outcome = "errored"
)

// Entry records one attempted migration within a run.
type Entry struct {
	Name      string
	Direction catalog.Direction
	Outcome   Outcome
}

// Report lists the migrations actually attempted during a single run, in
// execution order. It is append-only while the run progresses and is not
// persisted anywhere.
type Report struct {
	Entries []Entry
}

// State tracks a Runner through its lifecycle.
type State int

const (
	StateIdle State = iota
	StateExecuting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// Options tune a single run.
type Options struct {
	// NoTransaction disables per-migration transactions even for scripts
	// that request them.
	NoTransaction bool
	// StartPosition is the statement offset to resume at within the first
	// migration of the batch. Later migrations always start at 0.
	StartPosition int
}

// Runner drives one migration batch to completion or first failure.
type Runner struct {
	exec  Executor
	log   *slog.Logger
	state State
}

func New(exec Executor, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{exec: exec, log: log, state: StateIdle}
}

// State reports the runner's current lifecycle state.
func (r *Runner) State() State { return r.state }

// Run executes the sublist of ordered bounded by rng: everything after
// rng.From (exclusive) up to and including rng.To. All script bodies are
// loaded before anything executes, so a broken file aborts the run with
// nothing attempted. Each successful migration is recorded in the tracking
// store before the next one starts; the first failure ends the run.
func (r *Runner) Run(ctx context.Context, ordered []*catalog.Migration, rng resolve.Range, dir catalog.Direction, opts Options) (*Report, error) {
	r.state = StateExecuting
	rep := &Report{}

	batch, err := slice(ordered, rng)
	if err != nil {
		r.state = StateFailed
		return rep, err
	}
	for _, m := range batch {
		if _, err := m.Load(); err != nil {
			r.state = StateFailed
			return rep, err
		}
	}

	for i, m := range batch {
		pos := 0
		if i == 0 {
			pos = opts.StartPosition
		}
		script, _ := m.Load()
		atomic := script.UseTransaction && !opts.NoTransaction

		r.log.Debug("executing migration",
			"migration", m.Name, "direction", dir.String(), "position", pos, "atomic", atomic)

		var execErr error
		if dir == catalog.DirUp {
			execErr = r.exec.Apply(ctx, m, pos, atomic)
		} else {
			execErr = r.exec.Revert(ctx, m, pos, atomic)
		}
		if execErr != nil {
			rep.Entries = append(rep.Entries, Entry{Name: m.Name, Direction: dir, Outcome: OutcomeErrored})
			r.state = StateFailed
			return rep, fmt.Errorf("%w: %s: %v", ErrExecution, m.Name, execErr)
		}

		var markErr error
		if dir == catalog.DirUp {
			markErr = r.exec.MarkApplied(ctx, m.Name)
		} else {
			markErr = r.exec.MarkReverted(ctx, m.Name)
		}
		if markErr != nil {
			rep.Entries = append(rep.Entries, Entry{Name: m.Name, Direction: dir, Outcome: OutcomeErrored})
			r.state = StateFailed
			return rep, fmt.Errorf("%w: %s: recording state: %v", ErrExecution, m.Name, markErr)
		}

		outcome := OutcomeApplied
		if dir == catalog.DirDown {
			outcome = OutcomeReverted
		}
		rep.Entries = append(rep.Entries, Entry{Name: m.Name, Direction: dir, Outcome: outcome})
		r.log.Info("migration "+string(outcome), "migration", m.Name)
	}

	r.state = StateCompleted
	return rep, nil
}

// slice narrows the ordered plan to the requested range. From is exclusive
// so a run can resume right after the last applied migration; To is
// inclusive. A named endpoint missing from the plan is an error rather than
// an open boundary.
func slice(ordered []*catalog.Migration, rng resolve.Range) ([]*catalog.Migration, error) {
	start, end := 0, len(ordered)
	if rng.From != "" {
		idx := indexOf(ordered, rng.From)
		if idx < 0 {
			return nil, fmt.Errorf("%w: from %q not in plan", resolve.ErrRange, rng.From)
		}
		start = idx + 1
	}
	if rng.To != "" {
		idx := indexOf(ordered, rng.To)
		if idx < 0 {
			return nil, fmt.Errorf("%w: to %q not in plan", resolve.ErrRange, rng.To)
		}
		end = idx + 1
	}
	if start >= end {
		return nil, nil
	}
	return ordered[start:end], nil
}

func indexOf(migs []*catalog.Migration, name string) int {
	for i, m := range migs {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// Partition splits records into executed and pending sets using the
// applied names from the tracking store. The two sets are disjoint and
// together cover the whole input.
func Partition(records []*catalog.Migration, applied []string) (executed, pending []*catalog.Migration) {
	set := make(map[string]bool, len(applied))
	for _, name := range applied {
		set[name] = true
	}
	for _, m := range records {
		if set[m.Name] {
			executed = append(executed, m)
		} else {
			pending = append(pending, m)
		}
	}
	return executed, pending
}
