package cascade

// Phase names one stage of a cascade.
type Phase string

const (
	PhaseIntent       Phase = "intent"
	PhaseBOM          Phase = "bom"
	PhaseDiscovery    Phase = "discovery"
	PhaseVerification Phase = "verification"
	PhaseNegotiation  Phase = "negotiation"
	PhaseLogistics    Phase = "logistics"
	PhasePlan         Phase = "plan"
)

// Phases is the fixed order every cascade moves through.
var Phases = []Phase{
	PhaseIntent, PhaseBOM, PhaseDiscovery, PhaseVerification,
	PhaseNegotiation, PhaseLogistics, PhasePlan,
}

type PhaseStatus string

const (
	PhasePending   PhaseStatus = "pending"
	PhaseActive    PhaseStatus = "active"
	PhaseCompleted PhaseStatus = "completed"
)

type TimelinePhase struct {
	Phase       Phase       `json:"phase"`
	Status      PhaseStatus `json:"status"`
	StartedAt   string      `json:"started_at,omitempty"`
	CompletedAt string      `json:"completed_at,omitempty"`
}

// phaseStarts maps each event type to the phase it starts.
var phaseStarts = map[EventType]Phase{
	EventIntentReceived:     PhaseIntent,
	EventBOMGenerated:       PhaseBOM,
	EventDiscoveryQuery:     PhaseDiscovery,
	EventDiscoveryResult:    PhaseDiscovery,
	EventPartMissing:        PhaseDiscovery,
	EventAgentFactsFetched:  PhaseVerification,
	EventVerificationResult: PhaseVerification,
	EventRFQSent:            PhaseNegotiation,
	EventRFQRejected:        PhaseNegotiation,
	EventQuoteReceived:      PhaseNegotiation,
	EventQuoteGenerated:     PhaseNegotiation,
	EventCounterSent:        PhaseNegotiation,
	EventCounterEvaluated:   PhaseNegotiation,
	EventRevisedReceived:    PhaseNegotiation,
	EventAcceptSent:         PhaseNegotiation,
	EventRejectSent:         PhaseNegotiation,
	EventOrderPlaced:        PhaseNegotiation,
	EventOrderConfirmed:     PhaseNegotiation,
	EventLogisticsRequested: PhaseLogistics,
	EventShipPlanReceived:   PhaseLogistics,
	EventCascadeComplete:    PhasePlan,
}

// phaseCompletions maps the event types that explicitly close a phase.
var phaseCompletions = map[EventType]Phase{
	EventIntentReceived:  PhaseIntent,
	EventBOMGenerated:    PhaseBOM,
	EventCascadeComplete: PhasePlan,
}

func phaseIndex(p Phase) int {
	for i, q := range Phases {
		if q == p {
			return i
		}
	}
	return -1
}

type timelineBuilder struct {
	started   [7]bool
	completed [7]bool
	startAt   [7]string
	doneAt    [7]string
}

func (b *timelineBuilder) observe(t EventType, ts string) {
	if p, ok := phaseStarts[t]; ok {
		i := phaseIndex(p)
		if !b.started[i] {
			b.started[i] = true
			b.startAt[i] = ts
		}
	}
	if p, ok := phaseCompletions[t]; ok {
		i := phaseIndex(p)
		if !b.completed[i] {
			b.completed[i] = true
			b.doneAt[i] = ts
		}
	}
}

// build resolves phase statuses. Every phase before the furthest phase that
// has started is completed; when it had no completion event it is closed at
// the start of the next phase that started.
func (b *timelineBuilder) build() []TimelinePhase {
	out := make([]TimelinePhase, len(Phases))
	furthest := -1
	for i, p := range Phases {
		tp := TimelinePhase{Phase: p, Status: PhasePending, StartedAt: b.startAt[i]}
		switch {
		case b.completed[i]:
			tp.Status = PhaseCompleted
			tp.CompletedAt = b.doneAt[i]
		case b.started[i]:
			tp.Status = PhaseActive
		}
		if tp.Status != PhasePending {
			furthest = i
		}
		out[i] = tp
	}
	for i := 0; i < furthest; i++ {
		if out[i].Status == PhaseCompleted {
			continue
		}
		out[i].Status = PhaseCompleted
		for j := i + 1; j <= furthest; j++ {
			if out[j].StartedAt != "" {
				out[i].CompletedAt = out[j].StartedAt
				break
			}
		}
	}
	return out
}

// CurrentPhase returns the furthest phase that is not pending, or "" when
// nothing has started.
func CurrentPhase(timeline []TimelinePhase) Phase {
	var cur Phase
	for _, tp := range timeline {
		if tp.Status != PhasePending {
			cur = tp.Phase
		}
	}
	return cur
}
