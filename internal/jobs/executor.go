package jobs

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/storage"
)

const (
	// tailKeep bounds the stdout/stderr tails retained on the record; the
	// full interleaved output lives in the log store.
	tailKeep = 50

	defaultGracePeriod = 5 * time.Second
	defaultMaxRunning  = 4
)

type termReason int

const (
	reasonNone termReason = iota
	reasonCancel
	reasonTimeout
)

// ResultHook lets the wiring layer enrich a successful job's result (e.g.
// scan the declared output directory) before it is recorded. Must not block
// for long; it runs on the job's goroutine.
type ResultHook func(rec Record, res *Result)

// Executor runs one external OS process per job, streams its output into
// the log store, and reports the outcome back to the registry. At most
// MaxRunning processes run simultaneously; jobs beyond the limit stay
// pending in submission order.
type Executor struct {
	registry *Registry
	logs     *storage.LogStore
	logger   *slog.Logger

	grace time.Duration
	sem   chan struct{}
	wg    sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*jobState
}

type jobState struct {
	cancelCh chan struct{} // closed to abort a queued (pending) job
	doneCh   chan struct{} // closed once the job is terminal
	reason   termReason    // first termination request wins
	finished bool          // process has exited; late termination requests are ignored
}

// ExecutorOptions tunes the executor; zero values take defaults.
type ExecutorOptions struct {
	MaxRunning  int
	GracePeriod time.Duration
	Logger      *slog.Logger
}

func NewExecutor(registry *Registry, logs *storage.LogStore, opts ExecutorOptions) *Executor {
	if opts.MaxRunning <= 0 {
		opts.MaxRunning = defaultMaxRunning
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{
		registry: registry,
		logs:     logs,
		logger:   opts.Logger,
		grace:    opts.GracePeriod,
		sem:      make(chan struct{}, opts.MaxRunning),
		jobs:     make(map[string]*jobState),
	}
}

// Run launches the job asynchronously and returns immediately. hook may be
// nil. The record must be pending.
func (e *Executor) Run(rec Record, hook ResultHook) {
	st := &jobState{
		cancelCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	e.mu.Lock()
	e.jobs[rec.ID] = st
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(rec, st, hook)
}

func (e *Executor) run(rec Record, st *jobState, hook ResultHook) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.jobs, rec.ID)
		e.mu.Unlock()
	}()
	defer close(st.doneCh)

	// Admission: wait for a slot unless cancelled while queued.
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-st.cancelCh:
		// Cancel already moved the record pending -> cancelled.
		e.freezeLog(rec.ID)
		return
	}

	args := append([]string{rec.Command.ScriptPath}, rec.Command.Args.Flatten()...)
	cmd := exec.Command(args[0], args[1:]...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		e.failBeforeStart(rec.ID, fmt.Errorf("%w: stdout pipe: %v", ErrSpawn, err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		e.failBeforeStart(rec.ID, fmt.Errorf("%w: stderr pipe: %v", ErrSpawn, err))
		return
	}

	if err := cmd.Start(); err != nil {
		e.failBeforeStart(rec.ID, fmt.Errorf("%w: %v", ErrSpawn, err))
		return
	}

	if err := e.registry.MarkRunning(rec.ID, cmd); err != nil {
		// Lost the race against a pre-start cancellation; the process is
		// already alive, so tear it down before anything reads from it.
		killProcessGroup(cmd)
		_ = cmd.Wait()
		e.freezeLog(rec.ID)
		return
	}
	e.logger.Info("job started", "job_id", rec.ID, "script", rec.Command.ScriptPath, "pid", cmd.Process.Pid)

	var stdoutTail, stderrTail []string
	var tailMu sync.Mutex
	var pumpWG sync.WaitGroup
	pump := func(r io.Reader, tail *[]string) {
		defer pumpWG.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			e.logs.Append(rec.ID, line)
			tailMu.Lock()
			*tail = appendBounded(*tail, line, tailKeep)
			tailMu.Unlock()
		}
	}
	pumpWG.Add(2)
	go pump(stdout, &stdoutTail)
	go pump(stderr, &stderrTail)

	var timeoutTimer *time.Timer
	if rec.Timeout > 0 {
		timeoutTimer = time.AfterFunc(rec.Timeout, func() {
			e.terminate(rec.ID, st, reasonTimeout)
		})
	}

	pumpWG.Wait()
	waitErr := cmd.Wait()
	if timeoutTimer != nil {
		timeoutTimer.Stop()
	}

	// Marking finished and reading the reason under one critical section
	// keeps a timeout firing right after process exit from relabeling a
	// normal run.
	e.mu.Lock()
	st.finished = true
	reason := st.reason
	e.mu.Unlock()

	exitCode := cmd.ProcessState.ExitCode()
	term := Terminal{ExitCode: &exitCode}
	switch {
	case reason == reasonCancel:
		term.Status = StatusCancelled
		term.Error = "cancelled by user"
		term.ExitCode = nil
	case reason == reasonTimeout:
		term.Status = StatusFailed
		term.Error = fmt.Sprintf("%v after %s", ErrTimeout, rec.Timeout)
	case waitErr == nil:
		term.Status = StatusCompleted
		res := &Result{
			ExitCode:  exitCode,
			Stdout:    strings.Join(stdoutTail, "\n"),
			OutputDir: rec.OutputDir,
		}
		if hook != nil {
			hook(rec, res)
		}
		term.Result = res
	default:
		term.Status = StatusFailed
		term.Error = fmt.Sprintf("process exited with code %d: %s", exitCode, strings.Join(stderrTail, "\n"))
	}

	if err := e.registry.MarkTerminal(rec.ID, term); err != nil {
		e.logger.Error("record terminal state", "job_id", rec.ID, "error", err)
	}
	e.freezeLog(rec.ID)
	e.logger.Info("job finished", "job_id", rec.ID, "status", term.Status, "exit_code", exitCode)
}

// Cancel requests termination of a job. Pending jobs are cancelled without
// ever spawning; running jobs get a graceful signal first and a kill after
// the grace period. Cancelling a terminal job is a no-op. The returned
// snapshot reflects the state after the attempt.
func (e *Executor) Cancel(id string) (Record, error) {
	rec, err := e.registry.Get(id)
	if err != nil {
		return Record{}, err
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	e.mu.Lock()
	st := e.jobs[id]
	e.mu.Unlock()

	if rec.Status == StatusPending {
		err := e.registry.MarkTerminal(id, Terminal{Status: StatusCancelled, Error: "cancelled before start"})
		if err == nil {
			if st != nil {
				e.mu.Lock()
				st.reason = reasonCancel
				e.mu.Unlock()
				close(st.cancelCh)
			}
			return e.registry.Get(id)
		}
		// The job started (or finished) between the snapshot and the
		// transition attempt; fall through to the running path.
		rec, _ = e.registry.Get(id)
		if rec.Status.Terminal() {
			return rec, nil
		}
	}

	if st == nil {
		// The run goroutine finished between the snapshot and the map
		// lookup; report whatever state it recorded.
		return e.registry.Get(id)
	}
	e.terminate(id, st, reasonCancel)

	// Bounded wait for the run goroutine to record the terminal state.
	select {
	case <-st.doneCh:
	case <-time.After(e.grace + 2*time.Second):
	}
	return e.registry.Get(id)
}

// terminate signals a running job's process group, escalating to a kill
// after the grace period. The first reason to arrive wins; requests landing
// after the process has already exited are ignored.
func (e *Executor) terminate(id string, st *jobState, reason termReason) {
	e.mu.Lock()
	if st.finished || st.reason != reasonNone {
		e.mu.Unlock()
		return
	}
	st.reason = reason
	e.mu.Unlock()

	cmd := e.registry.Process(id)
	if cmd == nil {
		return
	}
	signalProcessGroup(cmd)
	go func() {
		select {
		case <-st.doneCh:
		case <-time.After(e.grace):
			killProcessGroup(cmd)
		}
	}()
}

// Wait blocks until every launched job has terminated. Used by shutdown and
// tests.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Done returns a channel closed once the job has terminated. Unknown and
// already-terminal jobs get an immediately closed channel; the terminal
// state is recorded in the registry before the channel closes.
func (e *Executor) Done(id string) <-chan struct{} {
	e.mu.Lock()
	st := e.jobs[id]
	e.mu.Unlock()
	if st == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return st.doneCh
}

func (e *Executor) failBeforeStart(id string, cause error) {
	err := e.registry.MarkTerminal(id, Terminal{Status: StatusFailed, Error: cause.Error()})
	if err != nil {
		e.logger.Error("record spawn failure", "job_id", id, "error", err)
	}
	e.freezeLog(id)
	e.logger.Warn("job spawn failed", "job_id", id, "error", cause)
}

func (e *Executor) freezeLog(id string) {
	if _, err := e.logs.Freeze(id); err != nil {
		e.logger.Warn("freeze job log", "job_id", id, "error", err)
	}
}

func appendBounded(tail []string, line string, max int) []string {
	tail = append(tail, line)
	if len(tail) > max {
		tail = tail[len(tail)-max:]
	}
	return tail
}
