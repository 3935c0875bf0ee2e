package jobs

import (
	"os/exec"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// allowedTransitions encodes the lifecycle state machine. A job moves
// pending -> running -> {completed|failed|cancelled}; pending -> cancelled
// covers cancellation before the process ever starts. Terminal states have
// no successors.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning:   true,
		StatusFailed:    true, // spawn failure, never reached running
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// ParseStatus validates a caller-supplied status string (e.g. a list filter).
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Command is the external program a job runs: a script path plus tagged
// arguments that flatten to CLI flags. Immutable after submission.
type Command struct {
	ScriptPath string `json:"script_path"`
	Args       Args   `json:"args"`
}

// Result is the caller-visible payload of a terminal job. Completed jobs
// carry a Result; failed and cancelled jobs carry the Error string on the
// owning Record instead.
type Result struct {
	ExitCode    int         `json:"exit_code"`
	Stdout      string      `json:"stdout,omitempty"`
	OutputDir   string      `json:"output_dir,omitempty"`
	OutputFiles interface{} `json:"output_files,omitempty"`
}

// Record is the authoritative state of one job. The Registry owns it; all
// mutation goes through Registry methods while holding its lock. Copies
// handed to callers are snapshots.
type Record struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Command    Command   `json:"command"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Result     *Result   `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`

	// OutputDir, when set at submission, is scanned for produced files
	// after a successful run.
	OutputDir string `json:"output_dir,omitempty"`
	// Timeout > 0 enforces a wall-clock limit on the running process.
	Timeout time.Duration `json:"timeout,omitempty"`

	// process is non-nil iff Status == running. Held only under the
	// registry lock; the executor surrenders it on exit.
	process *exec.Cmd
}

// snapshot returns a caller-safe copy without the live process handle.
func (r *Record) snapshot() Record {
	cp := *r
	cp.process = nil
	return cp
}
