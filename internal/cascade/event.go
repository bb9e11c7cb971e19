// Package cascade folds the supply-chain coordination event stream into the
// graph, timeline, message log and execution plan shown by the viewer.
//
// Everything in this package is a pure function of its inputs. A State is
// rebuilt from the full event list on every change and is never patched in
// place afterwards.
package cascade

import (
	"encoding/json"
	"strings"
)

// EventType discriminates AgentEvent payloads.
type EventType string

const (
	EventAgentRegistered    EventType = "AGENT_REGISTERED"
	EventIntentReceived     EventType = "INTENT_RECEIVED"
	EventBOMGenerated       EventType = "BOM_GENERATED"
	EventDiscoveryQuery     EventType = "DISCOVERY_QUERY"
	EventDiscoveryResult    EventType = "DISCOVERY_RESULT"
	EventPartMissing        EventType = "PART_MISSING"
	EventAgentFactsFetched  EventType = "AGENTFACTS_FETCHED"
	EventVerificationResult EventType = "VERIFICATION_RESULT"
	EventRFQSent            EventType = "RFQ_SENT"
	EventRFQRejected        EventType = "RFQ_REJECTED"
	EventQuoteReceived      EventType = "QUOTE_RECEIVED"
	EventQuoteGenerated     EventType = "QUOTE_GENERATED"
	EventCounterSent        EventType = "COUNTER_SENT"
	EventCounterEvaluated   EventType = "COUNTER_EVALUATED"
	EventRevisedReceived    EventType = "REVISED_RECEIVED"
	EventAcceptSent         EventType = "ACCEPT_SENT"
	EventRejectSent         EventType = "REJECT_SENT"
	EventOrderPlaced        EventType = "ORDER_PLACED"
	EventOrderConfirmed     EventType = "ORDER_CONFIRMED"
	EventLogisticsRequested EventType = "LOGISTICS_REQUESTED"
	EventShipPlanReceived   EventType = "SHIP_PLAN_RECEIVED"
	EventCascadeComplete    EventType = "CASCADE_COMPLETE"
)

// AgentEvent is a single immutable occurrence reported by an agent.
// Data is kept raw and decoded on demand by Decode.
type AgentEvent struct {
	EventType EventType       `json:"event_type"`
	AgentID   string          `json:"agent_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	RunID     string          `json:"run_id,omitempty"`
}

// EffectiveRunID returns the top-level run id, falling back to data.run_id.
func (e AgentEvent) EffectiveRunID() string {
	if e.RunID != "" {
		return e.RunID
	}
	return fieldsOf(e.Data).str("run_id")
}

// EventKey identifies an event for replay deduplication.
type EventKey struct {
	Timestamp string
	AgentID   string
	EventType EventType
	// Body is only set when Timestamp is empty, so that distinct
	// untimestamped events are not collapsed into one.
	Body string
}

// Key returns the deduplication key of e.
func (e AgentEvent) Key() EventKey {
	k := EventKey{Timestamp: e.Timestamp, AgentID: e.AgentID, EventType: e.EventType}
	if e.Timestamp == "" {
		k.Body = string(e.Data)
	}
	return k
}

// Known reports whether t is one of the event types the reducer understands.
func (t EventType) Known() bool {
	switch t {
	case EventAgentRegistered, EventIntentReceived, EventBOMGenerated,
		EventDiscoveryQuery, EventDiscoveryResult, EventPartMissing,
		EventAgentFactsFetched, EventVerificationResult,
		EventRFQSent, EventRFQRejected, EventQuoteReceived, EventQuoteGenerated,
		EventCounterSent, EventCounterEvaluated, EventRevisedReceived,
		EventAcceptSent, EventRejectSent, EventOrderPlaced, EventOrderConfirmed,
		EventLogisticsRequested, EventShipPlanReceived, EventCascadeComplete:
		return true
	}
	return false
}

// Short returns a compact lower-case label, e.g. "rfq sent".
func (t EventType) Short() string {
	return strings.ToLower(strings.ReplaceAll(string(t), "_", " "))
}
