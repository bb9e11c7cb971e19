package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisFeedHandle(t *testing.T) {
	l := NewLog()
	r, err := NewRedisFeed("localhost:6379", l, nil)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{DefaultRedisChannel}, r.channels)

	assert.Equal(t, 1, r.handle(rfqJSON))
	assert.Equal(t, 0, r.handle(rfqJSON), "duplicates are not appended")
	assert.Equal(t, 0, r.handle("garbage"))
	assert.Equal(t, 0, r.handle(`{"type":"PING"}`))
	assert.Equal(t, 1, r.handle(`{"type":"HISTORY","events":[`+rfqJSON+`,`+quoteJSON+`]}`))
	assert.Equal(t, 2, l.Len())
}

func TestNewRedisFeedURL(t *testing.T) {
	r, err := NewRedisFeed("redis://localhost:6380/2", NewLog(), nil, "a", "b")
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "localhost:6380", r.client.Options().Addr)
	assert.Equal(t, 2, r.client.Options().DB)
	assert.Equal(t, []string{"a", "b"}, r.channels)

	_, err = NewRedisFeed("redis://localhost:notaport", NewLog(), nil)
	assert.Error(t, err)
}

func TestRedisFeedUnreachable(t *testing.T) {
	r, err := NewRedisFeed("127.0.0.1:1", NewLog(), nil)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.Error(t, r.Run(ctx))
}
