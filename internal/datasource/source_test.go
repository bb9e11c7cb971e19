package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverPriority(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv(EnvBusURL, "")
		t.Setenv(EnvProcurementURL, "")

		ep, err := Discover(Endpoints{})
		require.NoError(t, err)
		assert.Equal(t, DefaultBusURL, ep.BusURL)
		assert.Equal(t, DefaultProcurementURL, ep.ProcurementURL)
	})

	t.Run("flag over default", func(t *testing.T) {
		t.Setenv(EnvBusURL, "")
		t.Setenv(EnvProcurementURL, "")

		ep, err := Discover(Endpoints{BusURL: "http://bus:9000/", ProcurementURL: "https://proc.example"})
		require.NoError(t, err)
		assert.Equal(t, "http://bus:9000", ep.BusURL)
		assert.Equal(t, "https://proc.example", ep.ProcurementURL)
	})

	t.Run("env over flag", func(t *testing.T) {
		t.Setenv(EnvBusURL, "ws://env-bus:8099")
		t.Setenv(EnvProcurementURL, "")

		ep, err := Discover(Endpoints{BusURL: "http://bus:9000"})
		require.NoError(t, err)
		assert.Equal(t, "ws://env-bus:8099", ep.BusURL)
	})
}

func TestDiscoverInvalid(t *testing.T) {
	tests := []struct {
		name string
		bus  string
	}{
		{"bad scheme", "ftp://bus:21"},
		{"no host", "http://"},
		{"not a url", "://bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvBusURL, "")
			_, err := Discover(Endpoints{BusURL: tt.bus})
			assert.Error(t, err)
		})
	}

	t.Run("env value is reported", func(t *testing.T) {
		t.Setenv(EnvBusURL, "")
		t.Setenv(EnvProcurementURL, "gopher://x")
		_, err := Discover(Endpoints{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvProcurementURL)
	})
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		bus    string
		wsURL  string
		httpOK string
	}{
		{"http://localhost:8099", "ws://localhost:8099/ws", "http://localhost:8099"},
		{"https://bus.example/api", "wss://bus.example/api/ws", "https://bus.example/api"},
		{"ws://bus:1", "ws://bus:1/ws", "http://bus:1"},
		{"wss://bus:1", "wss://bus:1/ws", "https://bus:1"},
	}
	for _, tt := range tests {
		t.Run(tt.bus, func(t *testing.T) {
			ep := Endpoints{BusURL: tt.bus}
			assert.Equal(t, tt.wsURL, ep.WebSocketURL())
			assert.Equal(t, tt.httpOK, ep.HTTPBusURL())
		})
	}
}
