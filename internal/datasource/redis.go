package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daviddao/cascade_viewer/internal/metrics"
)

// DefaultRedisChannel is the pub/sub channel the event bus mirrors to.
const DefaultRedisChannel = "cascade:events"

// RedisFeed subscribes to a Redis pub/sub channel carrying bus frames and
// appends the decoded events to a Log.
type RedisFeed struct {
	client   *redis.Client
	channels []string
	log      *Log
	logger   *slog.Logger
}

// NewRedisFeed creates a feed for addr, which is either host:port or a
// redis:// URL.
func NewRedisFeed(addr string, log *Log, logger *slog.Logger, channels ...string) (*RedisFeed, error) {
	opts := &redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	if len(channels) == 0 {
		channels = []string{DefaultRedisChannel}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFeed{
		client:   redis.NewClient(opts),
		channels: channels,
		log:      log,
		logger:   logger,
	}, nil
}

// Run subscribes and consumes messages until ctx is done or the
// subscription closes.
func (r *RedisFeed) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channels...)
	defer pubsub.Close()

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %v: %w", r.channels, err)
	}
	r.logger.Info("subscribed to Redis channels", slog.Any("channels", r.channels))

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("Redis channel closed")
				return nil
			}
			r.handle(msg.Payload)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases the Redis client.
func (r *RedisFeed) Close() error {
	return r.client.Close()
}

func (r *RedisFeed) handle(payload string) int {
	fr, err := decodeFrame([]byte(payload))
	if err != nil {
		metrics.FeedDecodeErrors.WithLabelValues("redis").Inc()
		r.logger.Debug("dropping malformed redis message", slog.String("error", err.Error()))
		return 0
	}
	if fr.dropped > 0 {
		metrics.FeedDecodeErrors.WithLabelValues("redis").Add(float64(fr.dropped))
	}
	countEvents("redis", fr.events)
	return r.log.Append(fr.events...)
}
