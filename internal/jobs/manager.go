package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/storage"
)

// Manager is the public face of the orchestration subsystem: submit, query,
// cancel and list jobs. It composes the registry, the executor and the log
// store and is safe for concurrent use.
type Manager struct {
	registry *Registry
	executor *Executor
	logs     *storage.LogStore
	logger   *slog.Logger
	hook     ResultHook
}

func NewManager(registry *Registry, executor *Executor, logs *storage.LogStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		executor: executor,
		logs:     logs,
		logger:   logger,
	}
}

// SetResultHook installs the result enrichment hook applied to completed
// jobs (e.g. output directory scanning). Wire-up time only.
func (m *Manager) SetResultHook(hook ResultHook) {
	m.hook = hook
}

// SubmitRequest describes one job submission.
type SubmitRequest struct {
	ScriptPath string
	Args       Args
	Name       string
	OutputDir  string
	Timeout    time.Duration
}

// Submit creates the job record and hands it to the executor. Returns
// immediately with the pending snapshot; never blocks on execution.
func (m *Manager) Submit(req SubmitRequest) (Record, error) {
	if req.ScriptPath == "" {
		return Record{}, fmt.Errorf("%w: script path is required", ErrInvalidArgument)
	}
	name := req.Name
	if name == "" {
		name = "job"
	}
	rec, err := m.registry.Create(
		Command{ScriptPath: req.ScriptPath, Args: req.Args},
		name,
		SubmitOptions{OutputDir: req.OutputDir, Timeout: req.Timeout},
	)
	if err != nil {
		return Record{}, err
	}
	m.logs.Open(rec.ID)
	m.executor.Run(rec, m.hook)
	m.logger.Info("job submitted", "job_id", rec.ID, "name", name, "script", req.ScriptPath)
	return rec, nil
}

// Status returns the record snapshot for a job.
func (m *Manager) Status(id string) (Record, error) {
	return m.registry.Get(id)
}

// ResultEnvelope is the payload of a result query. Completed jobs carry
// Result; failed and cancelled jobs carry the stored error description.
type ResultEnvelope struct {
	JobID    string  `json:"job_id"`
	Status   Status  `json:"status"`
	ExitCode *int    `json:"exit_code,omitempty"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Result returns the outcome of a terminal job. ErrNotReady while the job
// is still pending or running; the stored error of a failed or cancelled
// job is data in the envelope, not an error of this call.
func (m *Manager) Result(id string) (ResultEnvelope, error) {
	rec, err := m.registry.Get(id)
	if err != nil {
		return ResultEnvelope{}, err
	}
	if !rec.Status.Terminal() {
		return ResultEnvelope{}, fmt.Errorf("%w: job %s is %s", ErrNotReady, id, rec.Status)
	}
	return ResultEnvelope{
		JobID:    rec.ID,
		Status:   rec.Status,
		ExitCode: rec.ExitCode,
		Result:   rec.Result,
		Error:    rec.Error,
	}, nil
}

// Await blocks until the job reaches a terminal state, then returns its
// result envelope. ctx bounds the wait; on expiry the job keeps running and
// the caller falls back to polling.
func (m *Manager) Await(ctx context.Context, id string) (ResultEnvelope, error) {
	if _, err := m.registry.Get(id); err != nil {
		return ResultEnvelope{}, err
	}
	select {
	case <-m.executor.Done(id):
		return m.Result(id)
	case <-ctx.Done():
		return ResultEnvelope{}, ctx.Err()
	}
}

// Log returns up to tail lines of a job's captured output (tail=0 for all)
// plus the total number of lines recorded so far.
func (m *Manager) Log(id string, tail int) ([]string, int, error) {
	if _, err := m.registry.Get(id); err != nil {
		return nil, 0, err
	}
	lines, total, ok := m.logs.Tail(id, tail)
	if !ok {
		// Entry already swept; the record outlives its in-memory log.
		return []string{}, 0, nil
	}
	return lines, total, nil
}

// Cancel requests termination of a job and returns the resulting snapshot.
// Idempotent: cancelling a terminal job reports its existing status.
func (m *Manager) Cancel(id string) (Record, error) {
	return m.executor.Cancel(id)
}

// List returns snapshots of all jobs, optionally filtered by status,
// ordered by creation time. Never fails: a filter naming no known status
// matches nothing.
func (m *Manager) List(statusFilter string) []Record {
	var filter *Status
	if statusFilter != "" {
		st, ok := ParseStatus(statusFilter)
		if !ok {
			return []Record{}
		}
		filter = &st
	}
	return m.registry.List(filter)
}

// SweepLoop evicts expired in-memory logs every interval until ctx is done.
// Run it on its own goroutine.
func (m *Manager) SweepLoop(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.logs.Sweep(retention); n > 0 {
				m.logger.Debug("swept job logs", "evicted", n)
			}
		}
	}
}

// Wait blocks until all launched jobs have terminated.
func (m *Manager) Wait() {
	m.executor.Wait()
}
