package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/daviddao/cascade_viewer/internal/cascade"
	"github.com/daviddao/cascade_viewer/internal/metrics"
)

// Status is the connection state of a Feed.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusStopped:
		return "stopped"
	}
	return "idle"
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithLogger sets the feed logger.
func WithLogger(l *slog.Logger) FeedOption {
	return func(f *Feed) { f.logger = l }
}

// WithStopOnComplete stops the feed once the run returned by runID has a
// CASCADE_COMPLETE event in the log.
func WithStopOnComplete(runID func() string) FeedOption {
	return func(f *Feed) { f.runID = runID }
}

// WithBackoff overrides the reconnect backoff bounds.
func WithBackoff(initial, max time.Duration) FeedOption {
	return func(f *Feed) {
		f.initialInterval = initial
		f.maxInterval = max
	}
}

// Feed streams bus events over a websocket into a Log, reconnecting with
// exponential backoff.
type Feed struct {
	url    string
	log    *Log
	logger *slog.Logger
	runID  func() string

	initialInterval time.Duration
	maxInterval     time.Duration

	mu      sync.Mutex
	status  Status
	lastErr error

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFeed creates a feed for the websocket at url.
func NewFeed(url string, log *Log, opts ...FeedOption) *Feed {
	f := &Feed{
		url:             url,
		log:             log,
		logger:          slog.Default(),
		initialInterval: time.Second,
		maxInterval:     30 * time.Second,
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Status returns the connection state and the last connection error.
func (f *Feed) Status() (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.lastErr
}

func (f *Feed) setStatus(s Status, err error) {
	f.mu.Lock()
	f.status = s
	f.lastErr = err
	f.mu.Unlock()
}

// Stop tears down the connection and ends Run. It is safe to call more
// than once.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
}

// Run connects and reads until ctx is cancelled or Stop is called. It
// returns nil after Stop and ctx.Err() after cancellation.
func (f *Feed) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialInterval
	b.MaxInterval = f.maxInterval

	for {
		f.setStatus(StatusConnecting, nil)
		err := f.session(ctx, b)
		if done, rerr := f.finished(ctx); done {
			f.setStatus(StatusStopped, nil)
			return rerr
		}

		wait := b.NextBackOff()
		f.setStatus(StatusReconnecting, err)
		metrics.FeedReconnects.Inc()
		f.logger.Warn("event bus connection lost",
			slog.String("url", f.url),
			slog.String("error", errString(err)),
			slog.Duration("retry_in", wait),
		)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			f.setStatus(StatusStopped, nil)
			return ctx.Err()
		case <-f.stopCh:
			f.setStatus(StatusStopped, nil)
			return nil
		}
	}
}

func (f *Feed) finished(ctx context.Context) (bool, error) {
	select {
	case <-f.stopCh:
		return true, nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return true, err
	}
	return false, nil
}

// session runs one connection until it fails or the feed is stopped.
func (f *Feed) session(ctx context.Context, b *backoff.ExponentialBackOff) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	f.setStatus(StatusConnected, nil)
	metrics.FeedConnected.Set(1)
	defer metrics.FeedConnected.Set(0)
	b.Reset()
	f.logger.Info("connected to event bus", slog.String("url", f.url))

	// Closing the connection unblocks ReadMessage on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-f.stopCh:
		case <-done:
			return
		}
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.handle(conn, data)
		if f.complete() {
			f.logger.Info("cascade complete, closing event bus connection")
			f.Stop()
			return nil
		}
	}
}

func (f *Feed) handle(conn *websocket.Conn, data []byte) {
	fr, err := decodeFrame(data)
	if err != nil {
		metrics.FeedDecodeErrors.WithLabelValues("ws").Inc()
		f.logger.Debug("dropping malformed frame", slog.String("error", err.Error()))
		return
	}
	if fr.dropped > 0 {
		metrics.FeedDecodeErrors.WithLabelValues("history").Add(float64(fr.dropped))
	}

	switch fr.kind {
	case framePing:
		if err := conn.WriteJSON(controlFrame{Type: "PONG"}); err != nil {
			f.logger.Debug("pong failed", slog.String("error", err.Error()))
		}
	case framePong:
	case frameHistory:
		countEvents("history", fr.events)
		added := f.log.Append(fr.events...)
		f.logger.Info("received history", slog.Int("events", len(fr.events)), slog.Int("new", added))
	case frameEvent:
		countEvents("ws", fr.events)
		f.log.Append(fr.events...)
	}
}

func (f *Feed) complete() bool {
	if f.runID == nil {
		return false
	}
	return f.log.Completed(f.runID())
}

func countEvents(source string, events []cascade.AgentEvent) {
	for _, e := range events {
		typ := string(e.EventType)
		if !e.EventType.Known() {
			typ = "other"
		}
		metrics.FeedEventsTotal.WithLabelValues(source, typ).Inc()
	}
}

func errString(err error) string {
	if err == nil {
		return "connection closed"
	}
	return err.Error()
}
