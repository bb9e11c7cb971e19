package datasource

import (
	"sync"
	"time"

	"github.com/daviddao/cascade_viewer/internal/cascade"
)

// Log is the append-only event log shared by every source. Appends are
// deduplicated by event key and announced on Changes, debounced so a
// history batch produces one signal.
type Log struct {
	mu       sync.RWMutex
	events   []cascade.AgentEvent
	debounce time.Duration
	timer    *time.Timer
	onChange chan struct{}
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{
		debounce: 50 * time.Millisecond,
		onChange: make(chan struct{}, 1),
	}
}

// Append merges events into the log and returns how many were new.
func (l *Log) Append(events ...cascade.AgentEvent) int {
	if len(events) == 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	before := len(l.events)
	l.events = cascade.Merge(l.events, events)
	added := len(l.events) - before
	if added == 0 {
		return 0
	}

	// Debounce: reset timer on each append.
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.debounce, func() {
		select {
		case l.onChange <- struct{}{}:
		default: // already signaled, skip
		}
	})
	return added
}

// Events returns a copy of the log.
func (l *Log) Events() []cascade.AgentEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]cascade.AgentEvent(nil), l.events...)
}

// Len returns the number of events in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Changes returns a channel that receives a signal when the log grows.
func (l *Log) Changes() <-chan struct{} {
	return l.onChange
}

// LatestRunID returns the run id of the most recent event carrying one.
func (l *Log) LatestRunID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if id := l.events[i].EffectiveRunID(); id != "" {
			return id
		}
	}
	return ""
}

// Completed reports whether runID has a CASCADE_COMPLETE event.
func (l *Log) Completed(runID string) bool {
	if runID == "" {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.events {
		if e.EventType == cascade.EventCascadeComplete && e.EffectiveRunID() == runID {
			return true
		}
	}
	return false
}
