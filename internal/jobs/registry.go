package jobs

import (
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"time"
)

// Registry is the authoritative in-memory job table. It owns every Record
// and serializes all state transitions behind one lock; reads hand out
// snapshots. Construct one per service (or per test), never a global.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record

	// observer, when set, receives a snapshot after every mutation.
	// Called outside the lock.
	observer func(Record)
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// SetObserver registers a callback invoked with a snapshot after each
// create or transition. Set once at wiring time, before any submission.
func (r *Registry) SetObserver(fn func(Record)) {
	r.observer = fn
}

func (r *Registry) notify(rec Record) {
	if r.observer != nil {
		r.observer(rec)
	}
}

// SubmitOptions carries the per-job knobs recorded at creation.
type SubmitOptions struct {
	OutputDir string
	Timeout   time.Duration
}

// Create allocates an id and writes a pending record. The returned snapshot
// is immediately visible to concurrent Get/List callers.
func (r *Registry) Create(cmd Command, name string, opts SubmitOptions) (Record, error) {
	if cmd.ScriptPath == "" {
		return Record{}, fmt.Errorf("%w: script path is empty", ErrInvalidArgument)
	}
	rec := &Record{
		ID:        NewPrefixedID(name),
		Name:      name,
		Command:   cmd,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
		OutputDir: opts.OutputDir,
		Timeout:   opts.Timeout,
	}

	r.mu.Lock()
	r.records[rec.ID] = rec
	snap := rec.snapshot()
	r.mu.Unlock()

	r.notify(snap)
	return snap, nil
}

// MarkRunning moves a pending record to running and attaches the live
// process handle.
func (r *Registry) MarkRunning(id string, process *exec.Cmd) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !CanTransition(rec.Status, StatusRunning) {
		err := &InvalidTransitionError{ID: id, From: rec.Status, To: StatusRunning}
		r.mu.Unlock()
		return err
	}
	rec.Status = StatusRunning
	rec.StartedAt = time.Now().UTC()
	rec.process = process
	snap := rec.snapshot()
	r.mu.Unlock()

	r.notify(snap)
	return nil
}

// Terminal carries the outcome attached by MarkTerminal. Completed jobs set
// Result; failed and cancelled jobs set Error. ExitCode is nil when the
// process never ran (spawn failure, pre-start cancellation).
type Terminal struct {
	Status   Status
	ExitCode *int
	Result   *Result
	Error    string
}

// MarkTerminal moves a record into a terminal state, records the outcome,
// sets FinishedAt and surrenders the process handle.
func (r *Registry) MarkTerminal(id string, term Terminal) error {
	if !term.Status.Terminal() {
		return fmt.Errorf("markTerminal called with non-terminal status %q", term.Status)
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !CanTransition(rec.Status, term.Status) {
		err := &InvalidTransitionError{ID: id, From: rec.Status, To: term.Status}
		r.mu.Unlock()
		return err
	}
	rec.Status = term.Status
	rec.FinishedAt = time.Now().UTC()
	rec.ExitCode = term.ExitCode
	rec.Result = term.Result
	rec.Error = term.Error
	rec.process = nil
	snap := rec.snapshot()
	r.mu.Unlock()

	r.notify(snap)
	return nil
}

// Get returns a point-in-time snapshot of one record.
func (r *Registry) Get(id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.snapshot(), nil
}

// Process returns the live process handle for a running record, or nil.
func (r *Registry) Process(id string) *exec.Cmd {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	return rec.process
}

// List returns a snapshot of all records, optionally filtered by status,
// ordered by creation time ascending.
func (r *Registry) List(filter *Status) []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if filter != nil && rec.Status != *filter {
			continue
		}
		out = append(out, rec.snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
