package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Biomolecular-Design-Nexus/boltz-mcp/pkg/utils"
)

// Event is one job lifecycle transition. Checksum covers the canonical
// event fields and labels the line against accidental edits.
type Event struct {
	Seq      int       `json:"seq"`
	Time     time.Time `json:"time"`
	JobID    string    `json:"job_id"`
	JobName  string    `json:"job_name"`
	Status   string    `json:"status"`
	ExitCode *int      `json:"exit_code,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Checksum string    `json:"checksum"`
}

// Trail is an append-only JSONL record of job lifecycle events. One JSON
// event per line, kept in memory and persisted on every append.
type Trail struct {
	mu     sync.Mutex
	events []Event
	path   string
}

// Open loads an existing trail file or starts an empty one.
func Open(path string) (*Trail, error) {
	t := &Trail{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		_ = f.Close()
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return t, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		t.events = append(t.events, ev)
	}
	return t, nil
}

// Append records one event, assigning its sequence number and checksum, and
// persists it to the trail file.
func (t *Trail) Append(ev Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ev.Seq = len(t.events)
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	ev.Checksum = checksum(ev)

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(ev); err != nil {
		return fmt.Errorf("write audit trail: %w", err)
	}
	t.events = append(t.events, ev)
	return nil
}

// Events returns a copy of the in-memory event list.
func (t *Trail) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Verify recomputes every checksum and reports the first mismatch.
func (t *Trail) Verify() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, ev := range t.events {
		if checksum(ev) != ev.Checksum {
			return fmt.Errorf("audit trail checksum mismatch at seq %d (job_id=%s)", i, ev.JobID)
		}
	}
	return nil
}

func checksum(ev Event) string {
	exit := ""
	if ev.ExitCode != nil {
		exit = fmt.Sprintf("%d", *ev.ExitCode)
	}
	body := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s",
		ev.Seq, ev.Time.Format(time.RFC3339Nano), ev.JobID, ev.JobName, ev.Status, exit, ev.Detail)
	return utils.ChecksumString(body)
}
