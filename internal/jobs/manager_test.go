package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSubmitRejectsEmptyScript(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)
	_, err := m.Submit(SubmitRequest{ScriptPath: ""})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManagerStatusUnknownID(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)
	_, err := m.Status("nonexistent-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerResultNotReady(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)

	script := writeScript(t, `sleep 60`)
	rec, err := m.Submit(SubmitRequest{ScriptPath: script, Name: "slow"})
	require.NoError(t, err)

	_, err = m.Result(rec.ID)
	require.ErrorIs(t, err, ErrNotReady)

	_, err = m.Result("nonexistent-id")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = m.Cancel(rec.ID)
	require.NoError(t, err)
}

func TestManagerResultAfterCompletion(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)

	script := writeScript(t, `echo payload`)
	rec, err := m.Submit(SubmitRequest{ScriptPath: script, Name: "ok"})
	require.NoError(t, err)
	waitForTerminal(t, m, rec.ID)

	env, err := m.Result(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, env.Status)
	require.NotNil(t, env.Result)
	assert.Contains(t, env.Result.Stdout, "payload")
	assert.Empty(t, env.Error)
}

func TestManagerResultHook(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)
	m.SetResultHook(func(rec Record, res *Result) {
		res.OutputFiles = map[string]string{"hooked": rec.ID}
	})

	script := writeScript(t, `true`)
	rec, err := m.Submit(SubmitRequest{ScriptPath: script, Name: "hooked"})
	require.NoError(t, err)
	final := waitForTerminal(t, m, rec.ID)

	require.NotNil(t, final.Result)
	assert.Equal(t, map[string]string{"hooked": rec.ID}, final.Result.OutputFiles)
}

func TestManagerLogTailIsSuffix(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)

	script := writeScript(t, `for i in 1 2 3 4 5 6 7 8; do echo "line $i"; done`)
	rec, err := m.Submit(SubmitRequest{ScriptPath: script, Name: "lines"})
	require.NoError(t, err)
	waitForTerminal(t, m, rec.ID)

	all, total, err := m.Log(rec.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 8, total)
	require.Len(t, all, 8)

	tail, tailTotal, err := m.Log(rec.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, tailTotal)
	assert.Equal(t, all[len(all)-3:], tail)

	// tail larger than the log returns everything
	big, _, err := m.Log(rec.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, all, big)

	_, _, err = m.Log("nonexistent-id", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerListFilter(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)

	script := writeScript(t, `true`)
	rec, err := m.Submit(SubmitRequest{ScriptPath: script, Name: "a"})
	require.NoError(t, err)
	waitForTerminal(t, m, rec.ID)

	all := m.List("")
	require.Len(t, all, 1)

	done := m.List("completed")
	require.Len(t, done, 1)
	assert.Equal(t, rec.ID, done[0].ID)

	assert.Empty(t, m.List("failed"))

	// A filter naming no known status matches nothing rather than failing.
	assert.Empty(t, m.List("bogus"))
}

func TestManagerAwaitReturnsTerminalResult(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)

	script := writeScript(t, `echo waited`)
	rec, err := m.Submit(SubmitRequest{ScriptPath: script, Name: "awaited"})
	require.NoError(t, err)

	env, err := m.Await(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, env.Status)
	require.NotNil(t, env.Result)
	assert.Contains(t, env.Result.Stdout, "waited")
}

func TestManagerAwaitUnknownID(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)
	_, err := m.Await(context.Background(), "nonexistent-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerAwaitHonorsContext(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)

	script := writeScript(t, `sleep 60`)
	rec, err := m.Submit(SubmitRequest{ScriptPath: script, Name: "slow"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = m.Await(ctx, rec.ID)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the job is untouched by the expired wait
	rec, err = m.Status(rec.ID)
	require.NoError(t, err)
	assert.False(t, rec.Status.Terminal())

	_, err = m.Cancel(rec.ID)
	require.NoError(t, err)
}

func TestManagerCancelUnknownID(t *testing.T) {
	m, _, _ := newTestManager(t, 2, time.Second)
	_, err := m.Cancel("nonexistent-id")
	require.ErrorIs(t, err, ErrNotFound)
}
