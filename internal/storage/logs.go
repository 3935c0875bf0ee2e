package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogStore keeps one append-only line buffer per job. Each entry has exactly
// one writer (the job's executor goroutine) and any number of concurrent
// tail readers. Once a job terminates its entry is frozen, flushed to a file
// under BaseDir, and evicted from memory after the retention window.
type LogStore struct {
	BaseDir string

	mu      sync.RWMutex
	entries map[string]*logEntry
}

type logEntry struct {
	mu       sync.RWMutex
	lines    []string
	frozen   bool
	frozenAt time.Time
	filePath string
}

// NewLogStore creates a log store rooted at baseDir. Files are only written
// when jobs terminate; baseDir is created lazily.
func NewLogStore(baseDir string) *LogStore {
	return &LogStore{
		BaseDir: baseDir,
		entries: make(map[string]*logEntry),
	}
}

// Open creates the entry for a job at submission time. Opening an existing
// entry is a no-op.
func (ls *LogStore) Open(jobID string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if _, ok := ls.entries[jobID]; !ok {
		ls.entries[jobID] = &logEntry{}
	}
}

// Append records one output line for a job. Appends to a frozen or unknown
// entry are dropped: the job already terminated and its log is immutable.
func (ls *LogStore) Append(jobID, line string) {
	ls.mu.RLock()
	e := ls.entries[jobID]
	ls.mu.RUnlock()
	if e == nil {
		return
	}

	e.mu.Lock()
	if !e.frozen {
		e.lines = append(e.lines, line)
	}
	e.mu.Unlock()
}

// Tail returns up to n of the most recent lines and the total line count.
// n=0 means all lines. A job with no output yields an empty slice, not an
// error; an unknown job yields ok=false.
func (ls *LogStore) Tail(jobID string, n int) (lines []string, total int, ok bool) {
	ls.mu.RLock()
	e := ls.entries[jobID]
	ls.mu.RUnlock()
	if e == nil {
		return nil, 0, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	total = len(e.lines)
	start := 0
	if n > 0 && total > n {
		start = total - n
	}
	lines = make([]string, total-start)
	copy(lines, e.lines[start:])
	return lines, total, true
}

// Freeze marks a job's log immutable and flushes it to a file named after
// the job id. Returns the file path; flushing an empty log still writes the
// file so every terminal job leaves a trace on disk.
func (ls *LogStore) Freeze(jobID string) (string, error) {
	ls.mu.RLock()
	e := ls.entries[jobID]
	ls.mu.RUnlock()
	if e == nil {
		return "", fmt.Errorf("no log entry for job %s", jobID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen {
		return e.filePath, nil
	}
	e.frozen = true
	e.frozenAt = time.Now()

	if err := os.MkdirAll(ls.BaseDir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(ls.BaseDir, jobID+".log")
	var buf []byte
	for _, line := range e.lines {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("write log file: %w", err)
	}
	e.filePath = path
	return path, nil
}

// Sweep evicts frozen entries older than retention from memory. The flushed
// files stay on disk. Returns the number of evicted entries.
func (ls *LogStore) Sweep(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	evicted := 0
	for id, e := range ls.entries {
		e.mu.RLock()
		expired := e.frozen && e.frozenAt.Before(cutoff)
		e.mu.RUnlock()
		if expired {
			delete(ls.entries, id)
			evicted++
		}
	}
	return evicted
}
