package jobs

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommand() Command {
	return Command{ScriptPath: "/usr/bin/true", Args: Args{}}
}

func TestRegistryCreateVisibleImmediately(t *testing.T) {
	r := NewRegistry()
	rec, err := r.Create(testCommand(), "demo", SubmitOptions{})
	require.NoError(t, err)

	got, err := r.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "demo", got.Name)
	assert.False(t, got.CreatedAt.IsZero())
	assert.True(t, got.StartedAt.IsZero())
	assert.True(t, got.FinishedAt.IsZero())
}

func TestRegistryCreateRejectsEmptyScript(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(Command{}, "demo", SubmitOptions{})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	rec, err := r.Create(testCommand(), "demo", SubmitOptions{})
	require.NoError(t, err)

	cmd := exec.Command("/usr/bin/true")
	require.NoError(t, r.MarkRunning(rec.ID, cmd))

	got, err := r.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.False(t, got.StartedAt.IsZero())
	assert.Same(t, cmd, r.Process(rec.ID))

	code := 0
	require.NoError(t, r.MarkTerminal(rec.ID, Terminal{
		Status:   StatusCompleted,
		ExitCode: &code,
		Result:   &Result{ExitCode: 0},
	}))

	got, err = r.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.False(t, got.FinishedAt.IsZero())
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, 0, *got.ExitCode)
	require.NotNil(t, got.Result)
	assert.Nil(t, r.Process(rec.ID), "process handle must be surrendered on terminal")
}

func TestRegistryInvalidTransitions(t *testing.T) {
	r := NewRegistry()
	rec, err := r.Create(testCommand(), "demo", SubmitOptions{})
	require.NoError(t, err)

	// running -> running is illegal
	require.NoError(t, r.MarkRunning(rec.ID, exec.Command("/usr/bin/true")))
	err = r.MarkRunning(rec.ID, exec.Command("/usr/bin/true"))
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusRunning, invalid.From)

	// terminal states accept nothing
	require.NoError(t, r.MarkTerminal(rec.ID, Terminal{Status: StatusCancelled, Error: "stop"}))
	err = r.MarkTerminal(rec.ID, Terminal{Status: StatusCompleted})
	require.ErrorAs(t, err, &invalid)

	err = r.MarkRunning(rec.ID, exec.Command("/usr/bin/true"))
	require.ErrorAs(t, err, &invalid)
}

func TestRegistryPendingToCancelled(t *testing.T) {
	r := NewRegistry()
	rec, err := r.Create(testCommand(), "demo", SubmitOptions{})
	require.NoError(t, err)

	require.NoError(t, r.MarkTerminal(rec.ID, Terminal{Status: StatusCancelled, Error: "cancelled before start"}))
	got, _ := r.Get(rec.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.True(t, got.StartedAt.IsZero(), "never ran")
	assert.False(t, got.FinishedAt.IsZero())
}

func TestRegistryMarkTerminalRejectsNonTerminal(t *testing.T) {
	r := NewRegistry()
	rec, _ := r.Create(testCommand(), "demo", SubmitOptions{})
	err := r.MarkTerminal(rec.ID, Terminal{Status: StatusRunning})
	require.Error(t, err)
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nonexistent-id")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, r.MarkRunning("nonexistent-id", nil), ErrNotFound)
}

func TestRegistryListOrderAndFilter(t *testing.T) {
	r := NewRegistry()
	var ids []string
	for i := 0; i < 5; i++ {
		rec, err := r.Create(testCommand(), "demo", SubmitOptions{})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	require.NoError(t, r.MarkTerminal(ids[2], Terminal{Status: StatusCancelled, Error: "stop"}))

	all := r.List(nil)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.Before(all[i-1].CreatedAt), "list must be ordered by creation time")
	}

	pending := StatusPending
	assert.Len(t, r.List(&pending), 4)
	cancelled := StatusCancelled
	got := r.List(&cancelled)
	require.Len(t, got, 1)
	assert.Equal(t, ids[2], got[0].ID)
}

func TestRegistryObserver(t *testing.T) {
	r := NewRegistry()
	var seen []Status
	r.SetObserver(func(rec Record) { seen = append(seen, rec.Status) })

	rec, err := r.Create(testCommand(), "demo", SubmitOptions{})
	require.NoError(t, err)
	require.NoError(t, r.MarkRunning(rec.ID, exec.Command("/usr/bin/true")))
	code := 1
	require.NoError(t, r.MarkTerminal(rec.ID, Terminal{Status: StatusFailed, ExitCode: &code, Error: "boom"}))

	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusFailed}, seen)
}

func TestStatusTransitionsTable(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusRunning))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))
	assert.True(t, CanTransition(StatusPending, StatusFailed))
	assert.True(t, CanTransition(StatusRunning, StatusCompleted))
	assert.True(t, CanTransition(StatusRunning, StatusFailed))
	assert.True(t, CanTransition(StatusRunning, StatusCancelled))

	assert.False(t, CanTransition(StatusRunning, StatusPending))
	assert.False(t, CanTransition(StatusCompleted, StatusRunning))
	assert.False(t, CanTransition(StatusCancelled, StatusPending))
	assert.False(t, CanTransition(StatusFailed, StatusCompleted))
	assert.False(t, CanTransition(StatusPending, StatusCompleted))
}
