package jobs

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the orchestration API. Failures that happen while
// a job runs are recorded on the Record instead and read back via
// status/result queries.
var (
	// ErrNotFound reports an unknown job id.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidArgument reports a malformed submission.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotReady reports a result query on a job that has not reached a
	// terminal state yet.
	ErrNotReady = errors.New("job not finished")
)

// Error kinds recorded on failed records, distinguishable by prefix match in
// the stored error string and by these sentinels inside the executor.
var (
	// ErrSpawn reports that the external process could not be started.
	ErrSpawn = errors.New("spawn failure")
	// ErrTimeout reports that the wall-clock limit expired.
	ErrTimeout = errors.New("job timeout exceeded")
)

// InvalidTransitionError reports a lifecycle move the state machine forbids.
// A correct executor never produces one; surfacing it means an internal
// invariant broke.
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid job transition %q -> %q (job_id=%s)", e.From, e.To, e.ID)
}
