// Package datasource discovers and connects to the cascade event sources:
// the event bus websocket and HTTP API, the procurement service, recorded
// replay files and an optional Redis channel.
package datasource

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

const (
	EnvBusURL         = "SCV_BUS_URL"
	EnvProcurementURL = "SCV_PROCUREMENT_URL"

	DefaultBusURL         = "http://localhost:8099"
	DefaultProcurementURL = "http://localhost:8010"
)

// Endpoints are the base URLs of the services the viewer talks to.
type Endpoints struct {
	BusURL         string
	ProcurementURL string
}

// Discover resolves the service endpoints.
// Priority: SCV_* env var > flag value > default.
func Discover(flags Endpoints) (Endpoints, error) {
	bus, err := resolve(EnvBusURL, flags.BusURL, DefaultBusURL)
	if err != nil {
		return Endpoints{}, err
	}
	proc, err := resolve(EnvProcurementURL, flags.ProcurementURL, DefaultProcurementURL)
	if err != nil {
		return Endpoints{}, err
	}
	return Endpoints{BusURL: bus, ProcurementURL: proc}, nil
}

func resolve(env, flag, def string) (string, error) {
	raw := def
	source := "default"
	if flag != "" {
		raw, source = flag, "flag"
	}
	if v := os.Getenv(env); v != "" {
		raw, source = v, env
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s=%q: %w", source, raw, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return "", fmt.Errorf("%s=%q: unsupported scheme %q", source, raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%s=%q: missing host", source, raw)
	}
	return strings.TrimSuffix(raw, "/"), nil
}

// WebSocketURL returns the bus websocket endpoint.
func (e Endpoints) WebSocketURL() string {
	u, err := url.Parse(e.BusURL)
	if err != nil {
		return e.BusURL
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

// HTTPBusURL returns the bus base URL with an http(s) scheme.
func (e Endpoints) HTTPBusURL() string {
	u, err := url.Parse(e.BusURL)
	if err != nil {
		return e.BusURL
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	return strings.TrimSuffix(u.String(), "/")
}
