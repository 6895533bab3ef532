package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adnansarkar/revmig/internal/catalog"
	"github.com/adnansarkar/revmig/internal/resolve"
)

const validBody = "-- +up\nSELECT 1;\nSELECT 2;\n-- +down\nSELECT 3;\n"

// fakeExec records every call and keeps the applied set in memory.
type fakeExec struct {
	applied map[string]bool
	calls   []string
	failOn  string
	markErr error
}

func newFakeExec() *fakeExec {
	return &fakeExec{applied: map[string]bool{}}
}

func (f *fakeExec) Apply(_ context.Context, m *catalog.Migration, pos int, atomic bool) error {
	f.calls = append(f.calls, fmt.Sprintf("apply:%s:%d:%t", m.Name, pos, atomic))
	if f.failOn == m.Name {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeExec) Revert(_ context.Context, m *catalog.Migration, pos int, atomic bool) error {
	f.calls = append(f.calls, fmt.Sprintf("revert:%s:%d:%t", m.Name, pos, atomic))
	if f.failOn == m.Name {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeExec) MarkApplied(_ context.Context, name string) error {
	f.calls = append(f.calls, "mark:"+name)
	if f.markErr != nil {
		return f.markErr
	}
	f.applied[name] = true
	return nil
}

func (f *fakeExec) MarkReverted(_ context.Context, name string) error {
	f.calls = append(f.calls, "unmark:"+name)
	if f.markErr != nil {
		return f.markErr
	}
	delete(f.applied, name)
	return nil
}

func (f *fakeExec) ListApplied(context.Context) ([]string, error) {
	out := make([]string, 0, len(f.applied))
	for name := range f.applied {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func mkCatalog(t *testing.T, files map[string]string) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	cat, err := catalog.Load(dir)
	require.NoError(t, err)
	return cat
}

func threeMigrations(t *testing.T) *catalog.Catalog {
	return mkCatalog(t, map[string]string{
		"10-a.sql": validBody,
		"20-b.sql": validBody,
		"30-c.sql": validBody,
	})
}

func TestRunnerStartsIdle(t *testing.T) {
	rn := New(newFakeExec(), nil)
	assert.Equal(t, StateIdle, rn.State())
}

func TestRunAppliesAllInOrder(t *testing.T) {
	cat := threeMigrations(t)
	exec := newFakeExec()
	rn := New(exec, nil)

	rep, err := rn.Run(context.Background(), cat.Ordered(catalog.DirUp), resolve.Range{}, catalog.DirUp, Options{})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, rn.State())

	require.Len(t, rep.Entries, 3)
	assert.Equal(t, Entry{Name: "10-a", Direction: catalog.DirUp, Outcome: OutcomeApplied}, rep.Entries[0])
	assert.Equal(t, "30-c", rep.Entries[2].Name)

	// Each success is persisted before the next record starts.
	assert.Equal(t, []string{
		"apply:10-a:0:true", "mark:10-a",
		"apply:20-b:0:true", "mark:20-b",
		"apply:30-c:0:true", "mark:30-c",
	}, exec.calls)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	cat := threeMigrations(t)
	exec := newFakeExec()
	exec.failOn = "20-b"
	rn := New(exec, nil)

	rep, err := rn.Run(context.Background(), cat.Ordered(catalog.DirUp), resolve.Range{}, catalog.DirUp, Options{})
	require.ErrorIs(t, err, ErrExecution)
	assert.Equal(t, StateFailed, rn.State())

	require.Len(t, rep.Entries, 2)
	assert.Equal(t, OutcomeApplied, rep.Entries[0].Outcome)
	assert.Equal(t, Entry{Name: "20-b", Direction: catalog.DirUp, Outcome: OutcomeErrored}, rep.Entries[1])

	// The earlier migration stays applied; the later one was never tried.
	assert.True(t, exec.applied["10-a"])
	assert.NotContains(t, exec.calls, "apply:30-c:0:true")
}

func TestRunRangeBounds(t *testing.T) {
	cat := threeMigrations(t)
	exec := newFakeExec()
	rn := New(exec, nil)

	// From is exclusive, To inclusive: only 20-b runs.
	rng := resolve.Range{From: "10-a", To: "20-b"}
	rep, err := rn.Run(context.Background(), cat.Ordered(catalog.DirUp), rng, catalog.DirUp, Options{})
	require.NoError(t, err)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, "20-b", rep.Entries[0].Name)
}

func TestRunEmptyBatch(t *testing.T) {
	cat := threeMigrations(t)
	rn := New(newFakeExec(), nil)

	rng := resolve.Range{From: "30-c"}
	rep, err := rn.Run(context.Background(), cat.Ordered(catalog.DirUp), rng, catalog.DirUp, Options{})
	require.NoError(t, err)
	assert.Empty(t, rep.Entries)
	assert.Equal(t, StateCompleted, rn.State())
}

func TestRunUnknownEndpoint(t *testing.T) {
	cat := threeMigrations(t)
	exec := newFakeExec()
	rn := New(exec, nil)

	_, err := rn.Run(context.Background(), cat.Ordered(catalog.DirUp), resolve.Range{To: "99-nope"}, catalog.DirUp, Options{})
	require.ErrorIs(t, err, resolve.ErrRange)
	assert.Empty(t, exec.calls)
	assert.Equal(t, StateFailed, rn.State())
}

func TestRunStartPositionFirstRecordOnly(t *testing.T) {
	cat := threeMigrations(t)
	exec := newFakeExec()
	rn := New(exec, nil)

	_, err := rn.Run(context.Background(), cat.Ordered(catalog.DirUp), resolve.Range{}, catalog.DirUp, Options{StartPosition: 1})
	require.NoError(t, err)
	assert.Equal(t, "apply:10-a:1:true", exec.calls[0])
	assert.Equal(t, "apply:20-b:0:true", exec.calls[2])
}

func TestRunNoTransactionOption(t *testing.T) {
	cat := threeMigrations(t)
	exec := newFakeExec()
	rn := New(exec, nil)

	_, err := rn.Run(context.Background(), cat.Ordered(catalog.DirUp), resolve.Range{}, catalog.DirUp, Options{NoTransaction: true})
	require.NoError(t, err)
	assert.Equal(t, "apply:10-a:0:false", exec.calls[0])
}

func TestRunScriptTransactionDirective(t *testing.T) {
	cat := mkCatalog(t, map[string]string{
		"10-a.sql": "-- +no-transaction\n-- +up\nSELECT 1;\n-- +down\nSELECT 2;\n",
		"20-b.sql": validBody,
	})
	exec := newFakeExec()
	rn := New(exec, nil)

	_, err := rn.Run(context.Background(), cat.Ordered(catalog.DirUp), resolve.Range{}, catalog.DirUp, Options{})
	require.NoError(t, err)
	assert.Equal(t, "apply:10-a:0:false", exec.calls[0])
	assert.Equal(t, "apply:20-b:0:true", exec.calls[2])
}

func TestRunLoadFailureAttemptsNothing(t *testing.T) {
	cat := mkCatalog(t, map[string]string{
		"10-a.sql":      validBody,
		"20-broken.sql": "SELECT 1;\n", // no section markers
	})
	exec := newFakeExec()
	rn := New(exec, nil)

	rep, err := rn.Run(context.Background(), cat.Ordered(catalog.DirUp), resolve.Range{}, catalog.DirUp, Options{})
	require.ErrorIs(t, err, catalog.ErrLoad)
	assert.Empty(t, exec.calls)
	assert.Empty(t, rep.Entries)
}

func TestRunMarkFailure(t *testing.T) {
	cat := threeMigrations(t)
	exec := newFakeExec()
	exec.markErr = errors.New("store offline")
	rn := New(exec, nil)

	rep, err := rn.Run(context.Background(), cat.Ordered(catalog.DirUp), resolve.Range{}, catalog.DirUp, Options{})
	require.ErrorIs(t, err, ErrExecution)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, OutcomeErrored, rep.Entries[0].Outcome)
}

func TestRunRoundTrip(t *testing.T) {
	cat := threeMigrations(t)
	exec := newFakeExec()

	_, err := New(exec, nil).Run(context.Background(), cat.Ordered(catalog.DirUp), resolve.Range{}, catalog.DirUp, Options{})
	require.NoError(t, err)
	applied, _ := exec.ListApplied(context.Background())
	require.Len(t, applied, 3)

	rep, err := New(exec, nil).Run(context.Background(), cat.Ordered(catalog.DirDown), resolve.Range{}, catalog.DirDown, Options{})
	require.NoError(t, err)
	require.Len(t, rep.Entries, 3)
	assert.Equal(t, "30-c", rep.Entries[0].Name)
	assert.Equal(t, OutcomeReverted, rep.Entries[0].Outcome)

	applied, _ = exec.ListApplied(context.Background())
	assert.Empty(t, applied, "full round trip must leave the tracking store empty")
}

func TestPartition(t *testing.T) {
	cat := threeMigrations(t)
	ordered := cat.Ordered(catalog.DirUp)

	executed, pending := Partition(ordered, []string{"10-a", "30-c"})
	require.Len(t, executed, 2)
	require.Len(t, pending, 1)
	assert.Equal(t, "20-b", pending[0].Name)
	assert.Equal(t, len(ordered), len(executed)+len(pending))
}
