package datasource

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/daviddao/cascade_viewer/internal/cascade"
)

var errMissingType = errors.New("event has no event_type")

type frameKind int

const (
	frameEvent frameKind = iota
	frameHistory
	framePing
	framePong
)

// frame is one decoded websocket message. dropped counts history entries
// that could not be decoded.
type frame struct {
	kind    frameKind
	events  []cascade.AgentEvent
	dropped int
}

type envelope struct {
	Type   string            `json:"type"`
	Events []json.RawMessage `json:"events"`
}

type controlFrame struct {
	Type string `json:"type"`
}

// decodeFrame decodes a bus message: a HISTORY batch, a PING/PONG
// keep-alive (JSON or bare text) or a single event.
func decodeFrame(data []byte) (frame, error) {
	trimmed := bytes.TrimSpace(data)
	switch strings.ToUpper(string(trimmed)) {
	case "PING":
		return frame{kind: framePing}, nil
	case "PONG":
		return frame{kind: framePong}, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return frame{}, fmt.Errorf("decode frame: %w", err)
	}
	switch strings.ToUpper(env.Type) {
	case "PING":
		return frame{kind: framePing}, nil
	case "PONG":
		return frame{kind: framePong}, nil
	case "HISTORY":
		fr := frame{kind: frameHistory}
		for _, raw := range env.Events {
			e, err := decodeEvent(raw)
			if err != nil {
				fr.dropped++
				continue
			}
			fr.events = append(fr.events, e)
		}
		return fr, nil
	}

	e, err := decodeEvent(trimmed)
	if err != nil {
		return frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return frame{kind: frameEvent, events: []cascade.AgentEvent{e}}, nil
}

func decodeEvent(raw []byte) (cascade.AgentEvent, error) {
	var e cascade.AgentEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, err
	}
	if e.EventType == "" {
		return e, errMissingType
	}
	return e, nil
}

// ParseEvents decodes a recorded event stream. It accepts a JSON array of
// events, a HISTORY envelope, a single event object or newline-delimited
// events. Undecodable entries are skipped and counted in dropped.
func ParseEvents(data []byte) (events []cascade.AgentEvent, dropped int, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil {
			for _, raw := range items {
				e, err := decodeEvent(raw)
				if err != nil {
					dropped++
					continue
				}
				events = append(events, e)
			}
			return events, dropped, nil
		}
	}

	if fr, err := decodeFrame(trimmed); err == nil {
		return fr.events, fr.dropped, nil
	}

	// Newline-delimited: one event per line.
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		e, err := decodeEvent(line)
		if err != nil {
			dropped++
			continue
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return events, dropped, fmt.Errorf("scan events: %w", err)
	}
	if len(events) == 0 && dropped > 0 {
		return nil, dropped, fmt.Errorf("no decodable events (%d malformed)", dropped)
	}
	return events, dropped, nil
}
