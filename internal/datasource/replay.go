package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/daviddao/cascade_viewer/internal/cascade"
	"github.com/daviddao/cascade_viewer/internal/metrics"
)

// LoadFile reads a recorded event stream. See ParseEvents for the accepted
// formats.
func LoadFile(path string) ([]cascade.AgentEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	events, dropped, err := ParseEvents(data)
	if err != nil {
		return nil, fmt.Errorf("parse replay %s: %w", path, err)
	}
	if dropped > 0 {
		metrics.FeedDecodeErrors.WithLabelValues("replay").Add(float64(dropped))
		slog.Warn("skipped malformed replay entries", slog.String("path", path), slog.Int("dropped", dropped))
	}
	return events, nil
}

// Replay feeds a recorded file into a Log and, when followed, reloads it
// whenever it is written.
type Replay struct {
	path   string
	log    *Log
	logger *slog.Logger
}

// NewReplay creates a replay source for path.
func NewReplay(path string, log *Log, logger *slog.Logger) *Replay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replay{path: path, log: log, logger: logger}
}

// Load reads the file once and returns how many events were new.
func (r *Replay) Load() (int, error) {
	events, err := LoadFile(r.path)
	if err != nil {
		return 0, err
	}
	countEvents("replay", events)
	return r.log.Append(events...), nil
}

// Follow loads the file and then reloads it on every change until ctx is
// done. Reload errors are logged; a half-written file is picked up on the
// next write.
func (r *Replay) Follow(ctx context.Context) error {
	if _, err := r.Load(); err != nil {
		return err
	}
	w, err := NewWatcher(r.path)
	if err != nil {
		return fmt.Errorf("watch replay: %w", err)
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.Changes():
			n, err := r.Load()
			if err != nil {
				r.logger.Warn("replay reload failed", slog.String("path", r.path), slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				r.logger.Debug("replay reloaded", slog.Int("new", n))
			}
		}
	}
}
