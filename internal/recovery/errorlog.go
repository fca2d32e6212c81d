package recovery

import (
	"sync"
	"time"
	"unicode/utf8"

	"codeberg.org/mutker/chipmon/internal/monitor"
)

// LogEntry is one record in the error log.
type LogEntry struct {
	Timestamp   time.Time
	Kind        monitor.ErrorKind
	RetryCount  int
	Success     bool
	Description string
}

// ErrorLog keeps the most recent entries in insertion order. When full the
// oldest entry is dropped before the new one is appended. The running
// counters cover every entry ever appended, including evicted ones.
type ErrorLog struct {
	mu         sync.RWMutex
	clock      Clock
	entries    []LogEntry
	capacity   int
	total      int
	successful int
}

func NewErrorLog(capacity int, clock Clock) *ErrorLog {
	if capacity < 1 {
		capacity = DefaultLogCapacity
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ErrorLog{
		clock:    clock,
		entries:  make([]LogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Append records an entry and returns it as stored.
func (l *ErrorLog) Append(kind monitor.ErrorKind, description string, retryCount int, success bool) LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}

	entry := LogEntry{
		Timestamp:   l.clock.Now(),
		Kind:        kind,
		RetryCount:  retryCount,
		Success:     success,
		Description: truncate(description, MaxDescriptionBytes),
	}
	l.entries = append(l.entries, entry)

	l.total++
	if success {
		l.successful++
	}

	return entry
}

func (l *ErrorLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *ErrorLog) Capacity() int {
	return l.capacity
}

// Entries returns a copy of the stored entries, oldest first.
func (l *ErrorLog) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns up to n of the newest entries, oldest first.
func (l *ErrorLog) Last(n int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 {
		return []LogEntry{}
	}
	start := len(l.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]LogEntry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

func (l *ErrorLog) TotalErrors() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

func (l *ErrorLog) SuccessfulRecoveries() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.successful
}

// SuccessRate is successful/total, or 0 before anything was logged.
func (l *ErrorLog) SuccessRate() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.total == 0 {
		return 0
	}
	return float64(l.successful) / float64(l.total)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
