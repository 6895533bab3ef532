// Package cli is the command-line surface of revmig: flag parsing via
// kong and the orchestration of catalog, range resolution and the runner.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/adnansarkar/revmig/internal/catalog"
	"github.com/adnansarkar/revmig/internal/config"
	"github.com/adnansarkar/revmig/internal/lock"
	"github.com/adnansarkar/revmig/internal/resolve"
	"github.com/adnansarkar/revmig/internal/runner"
	"github.com/adnansarkar/revmig/internal/store"
)

// RunContext carries the process-level collaborators into command
// execution, keeping the CLI itself testable.
type RunContext struct {
	Log    *slog.Logger
	Stdout io.Writer
}

// CLI declares the flag surface. Name selectors beat revision selectors
// for the same endpoint; revision selectors are pointers so that an unset
// flag is not mistaken for revision 0.
type CLI struct {
	To       string `help:"Run up to and including this migration name." placeholder:"NAME"`
	From     string `help:"Resume after this migration name." placeholder:"NAME"`
	ToRev    *int64 `name:"to-rev" help:"Run up to and including this revision." placeholder:"N"`
	FromRev  *int64 `name:"from-rev" help:"Resume after this revision." placeholder:"N"`
	Rollback bool   `help:"Revert applied migrations instead of applying pending ones."`
	Pos      int    `default:"0" help:"Statement offset to resume at within the first migration."`

	NoTransaction bool `name:"no-transaction" help:"Run statements outside transactions."`
	List          bool `help:"Show executed and pending migrations, then exit."`

	MigrationsPath string `name:"migrations-path" default:"./migrations" help:"Directory containing migration scripts."`
	ModelsPath     string `name:"models-path" default:"./models" help:"Directory containing the store configuration."`

	JSON        bool             `name:"json" help:"Emit JSON logs."`
	LockTimeout int              `name:"lock-timeout" default:"0" help:"Advisory lock timeout in seconds (overrides configuration)."`
	Version     kong.VersionFlag `help:"Print version and exit."`
}

// Run executes one migration session end to end.
func (c *CLI) Run(rctx *RunContext) error {
	ctx := context.Background()

	cfg, err := config.Load(c.ModelsPath)
	if err != nil {
		return err
	}
	cfg = config.MergeEnv(cfg)
	if c.LockTimeout > 0 {
		cfg.LockTimeoutSec = c.LockTimeout
	}

	cat, err := catalog.Load(c.MigrationsPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.EnsureTable(ctx); err != nil {
		return err
	}

	lk := lock.ForDriver(cfg.Driver, st.DB, lock.KeyFor(cfg.DatabaseName(), cfg.Table))
	if err := lk.Acquire(ctx, cfg.LockTimeout()); err != nil {
		return err
	}
	defer func() { _ = lk.Release(ctx) }()

	applied, err := st.ListApplied(ctx)
	if err != nil {
		return err
	}

	if c.List {
		return c.renderList(rctx, cat, applied)
	}

	dir := catalog.DirUp
	if c.Rollback {
		dir = catalog.DirDown
	}

	rng := resolve.Resolve(cat, resolve.Selectors{
		ToName:   c.To,
		FromName: c.From,
		ToRev:    c.ToRev,
		FromRev:  c.FromRev,
	}, dir, rctx.Log)

	ordered := cat.Ordered(dir)
	if dir == catalog.DirUp {
		// With no explicit starting point, resume after the last applied
		// migration so repeated forward runs only pick up new work.
		if c.From == "" && c.FromRev == nil {
			if last := lastApplied(ordered, applied); last != "" {
				rng.From = last
			}
		}
	} else {
		// Only applied migrations can be reverted.
		ordered, _ = runner.Partition(ordered, applied)
	}

	rn := runner.New(st, rctx.Log)
	rep, runErr := rn.Run(ctx, ordered, rng, dir, runner.Options{
		NoTransaction: c.NoTransaction,
		StartPosition: c.Pos,
	})

	rctx.Log.Info("run finished",
		"state", rn.State().String(),
		"direction", dir.String(),
		"attempted", len(rep.Entries))
	return runErr
}

// lastApplied returns the name of the applied migration furthest along the
// forward order, or "" when nothing is applied yet.
func lastApplied(ordered []*catalog.Migration, applied []string) string {
	set := make(map[string]bool, len(applied))
	for _, name := range applied {
		set[name] = true
	}
	for i := len(ordered) - 1; i >= 0; i-- {
		if set[ordered[i].Name] {
			return ordered[i].Name
		}
	}
	return ""
}
