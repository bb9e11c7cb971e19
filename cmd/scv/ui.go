package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/daviddao/cascade_viewer/internal/cascade"
	"github.com/daviddao/cascade_viewer/internal/datasource"
	"github.com/daviddao/cascade_viewer/internal/selection"
	"github.com/daviddao/cascade_viewer/internal/snapshot"
)

// --- Messages ---

type logChangedMsg struct{}

type snapshotReadyMsg struct {
	snap *snapshot.DataSnapshot
}

type tickMsg struct{}

type intentDoneMsg struct {
	runID string
	resp  *datasource.IntentResponse
	err   error
}

type exportDoneMsg struct {
	path string
	err  error
}

// --- Key bindings ---

type keyMap struct {
	Quit    key.Binding
	Tab     key.Binding
	Refresh key.Binding
	Up      key.Binding
	Down    key.Binding
	Help    key.Binding
	Enter   key.Binding
	Esc     key.Binding
	Filter  key.Binding
	Intent  key.Binding
	Export  key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drill down")),
	Esc:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Filter:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter agent")),
	Intent:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "submit intent")),
	Export:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export report")),
}

// viewKeys maps single keys to views for fast navigation.
var viewKeys = map[string]viewID{
	"d": viewDashboard,
	"m": viewMessages,
	"t": viewTimeline,
	"n": viewNegotiations,
	"p": viewPlan,
	"x": viewRisk,
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Intent, k.Export, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Refresh, k.Up, k.Down},
		{k.Enter, k.Esc, k.Filter},
		{k.Intent, k.Export, k.Help, k.Quit},
	}
}

// contextHelp returns help text appropriate for the current view.
func contextHelp(v viewID) string {
	switch v {
	case viewDashboard:
		return "j/k: select agent | enter: drill down | i: intent | d/m/t/n/p/x: views | ?: help | q: quit"
	case viewNegotiations:
		return "j/k: select | enter: order detail | d/m/t/n/p/x: views | ?: help | q: quit"
	case viewPlan:
		return "j/k: select ship plan | enter: route | e: export | d/m/t/n/p/x: views | q: quit"
	case viewDetail:
		return "j/k: scroll | esc: back | d/m/t/n/p/x: views | ?: help | q: quit"
	case viewMessages:
		return "j/k: scroll | /: filter agent | d/m/t/n/p/x: views | tab: next | q: quit"
	default:
		return "j/k: scroll | d/m/t/n/p/x: views | tab: next | ?: help | q: quit"
	}
}

// --- Views ---

type viewID int

const (
	viewDashboard viewID = iota
	viewMessages
	viewTimeline
	viewNegotiations
	viewPlan
	viewRisk
	viewCount // views from here on are not in the tab bar
	viewDetail
)

func (v viewID) String() string {
	switch v {
	case viewDashboard:
		return "Dashboard"
	case viewMessages:
		return "Messages"
	case viewTimeline:
		return "Timeline"
	case viewNegotiations:
		return "Negotiations"
	case viewPlan:
		return "Plan"
	case viewRisk:
		return "Risk"
	case viewDetail:
		return "Detail"
	}
	return "?"
}

// --- Model ---

type uiModel struct {
	src       *sources
	snap      *snapshot.DataSnapshot
	exportDir string

	activeView viewID
	prevView   viewID // for Esc navigation
	width      int
	height     int
	scrollPos  int

	selectedAgent int
	selectedNeg   int
	selectedPlan  int
	selection     selection.GraphSelection
	pendingAgent  string // --agent target not yet in the graph
	filterAgent   string // agent filter for Messages ("" = all)

	help     help.Model
	showHelp bool
	spinner  spinner.Model
	input    textinput.Model

	inputActive bool
	submitting  bool
	flash       string
	flashErr    bool
	connStatus  datasource.Status
	connErr     error

	refreshInterval time.Duration
	lastRefresh     time.Time
}

func newModel(src *sources, exportDir string) uiModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = accentStyle

	in := textinput.New()
	in.Prompt = "intent> "
	in.Placeholder = "e.g. Buy 20 e-bikes for delivery to Berlin in 4 weeks"
	in.CharLimit = 500

	m := uiModel{
		src:         src,
		exportDir:   exportDir,
		selection:   selection.Overview{},
		help:        help.New(),
		spinner:     sp,
		input:       in,
		lastRefresh: time.Now(),
	}
	if src != nil {
		m.snap = src.snapshot()
	} else {
		m.snap = snapshot.Build(nil, "")
	}
	return m
}

// focusAgent opens the agent detail, now or once the agent appears.
func (m *uiModel) focusAgent(id string) {
	for i, n := range m.snap.State.Nodes {
		if n.ID == id {
			m.selectedAgent = i
			m.openDetail(selection.AgentDetail{AgentID: id})
			m.pendingAgent = ""
			return
		}
	}
	m.pendingAgent = id
}

func (m *uiModel) openDetail(sel selection.GraphSelection) {
	if m.activeView != viewDetail {
		m.prevView = m.activeView
	}
	m.selection = sel
	m.activeView = viewDetail
	m.scrollPos = 0
}

func (m *uiModel) closeDetail() {
	m.activeView = m.prevView
	m.selection = selection.Overview{}
	m.scrollPos = 0
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(
		tickEvery(),
		m.spinner.Tick,
		m.refreshSnapshot(),
	)
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputActive {
			return m.updateInput(msg)
		}

		// Check single-key view shortcuts first (always available).
		if v, ok := viewKeys[msg.String()]; ok {
			m.activeView = v
			m.selection = selection.Overview{}
			m.scrollPos = 0
			if v != viewMessages {
				m.filterAgent = ""
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, keys.Quit):
			if m.src != nil {
				m.src.cancel()
			}
			return m, tea.Quit

		case key.Matches(msg, keys.Esc):
			if m.activeView == viewDetail {
				m.closeDetail()
			}

		case key.Matches(msg, keys.Enter):
			m.drillDown()

		case key.Matches(msg, keys.Tab):
			if m.activeView == viewDetail {
				m.closeDetail()
			} else {
				m.activeView = (m.activeView + 1) % viewCount
			}
			if m.activeView != viewMessages {
				m.filterAgent = ""
			}
			m.scrollPos = 0

		case key.Matches(msg, keys.Refresh):
			return m, m.refreshSnapshot()

		case key.Matches(msg, keys.Up):
			switch m.activeView {
			case viewDashboard:
				m.selectedAgent = max(0, m.selectedAgent-1)
			case viewNegotiations:
				m.selectedNeg = max(0, m.selectedNeg-1)
			case viewPlan:
				m.selectedPlan = max(0, m.selectedPlan-1)
			default:
				m.scrollPos = max(0, m.scrollPos-1)
			}

		case key.Matches(msg, keys.Down):
			st := m.snap.State
			switch m.activeView {
			case viewDashboard:
				m.selectedAgent = min(m.selectedAgent+1, max(0, len(st.Nodes)-1))
			case viewNegotiations:
				m.selectedNeg = min(m.selectedNeg+1, max(0, len(st.Negotiations)-1))
			case viewPlan:
				m.selectedPlan = min(m.selectedPlan+1, max(0, len(st.ShipPlans)-1))
			default:
				// Overshoot is clamped in View.
				maxScroll := (len(st.Messages)+len(st.Edges)+len(st.Nodes))*4 + 20
				m.scrollPos = min(m.scrollPos+1, maxScroll)
			}

		case key.Matches(msg, keys.Filter):
			// Cycle agent filter: "" -> agent1 -> agent2 -> ... -> "".
			if m.activeView == viewMessages {
				m.filterAgent = nextAgent(m.snap.State.Nodes, m.filterAgent)
				m.scrollPos = 0
			}

		case key.Matches(msg, keys.Intent):
			if m.src != nil && m.src.client != nil && !m.submitting {
				m.inputActive = true
				m.input.SetValue("")
				return m, m.input.Focus()
			}

		case key.Matches(msg, keys.Export):
			return m, m.exportReport()

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(10, msg.Width-len(m.input.Prompt)-2)

	case logChangedMsg:
		return m, m.refreshSnapshot()

	case snapshotReadyMsg:
		if msg.snap != nil {
			m.snap = msg.snap
			m.lastRefresh = time.Now()
			m.clampCursors()
			if m.pendingAgent != "" {
				m.focusAgent(m.pendingAgent)
			}
		}

	case intentDoneMsg:
		m.submitting = false
		switch {
		case msg.err != nil:
			m.setFlash("intent failed: "+msg.err.Error(), true)
		case msg.resp != nil && msg.resp.Message != "":
			m.setFlash(fmt.Sprintf("run %s %s: %s", shortID(msg.runID), msg.resp.Status, msg.resp.Message), false)
		default:
			m.setFlash("run "+shortID(msg.runID)+" finished", false)
		}
		return m, m.refreshSnapshot()

	case exportDoneMsg:
		if msg.err != nil {
			m.setFlash("export failed: "+msg.err.Error(), true)
		} else {
			m.setFlash("exported "+msg.path, false)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.src != nil && m.src.feed != nil {
			m.connStatus, m.connErr = m.src.feed.Status()
		}
		return m, tickEvery()
	}

	return m, nil
}

func (m uiModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.inputActive = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		intent := m.input.Value()
		m.inputActive = false
		m.input.Blur()
		if intent == "" {
			return m, nil
		}
		// The run id is chosen here so the views follow the run while the
		// request is still in flight.
		runID := uuid.NewString()
		m.src.tracker.Set(runID)
		m.submitting = true
		m.setFlash("submitted run "+shortID(runID), false)
		return m, tea.Batch(m.submitIntent(intent, runID), m.refreshSnapshot())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// drillDown opens the detail sub-view for the row under the cursor.
func (m *uiModel) drillDown() {
	st := m.snap.State
	switch m.activeView {
	case viewDashboard:
		if m.selectedAgent >= 0 && m.selectedAgent < len(st.Nodes) {
			m.openDetail(selection.AgentDetail{AgentID: st.Nodes[m.selectedAgent].ID})
		}
	case viewNegotiations:
		if m.selectedNeg >= 0 && m.selectedNeg < len(st.Negotiations) {
			n := st.Negotiations[m.selectedNeg]
			m.openDetail(selection.OrderDetail{PartName: n.Part, SupplierID: n.Supplier})
		}
	case viewPlan:
		if len(st.ShipPlans) > 0 {
			idx := m.selectedPlan
			m.openDetail(selection.LogisticsDetail{ShipPlanIndex: &idx})
		}
	}
}

// clampCursors keeps cursors in range after the snapshot shrinks or grows.
func (m *uiModel) clampCursors() {
	st := m.snap.State
	m.selectedAgent = clampIndex(m.selectedAgent, len(st.Nodes))
	m.selectedNeg = clampIndex(m.selectedNeg, len(st.Negotiations))
	m.selectedPlan = clampIndex(m.selectedPlan, len(st.ShipPlans))
}

func clampIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	return min(max(i, 0), n-1)
}

func (m *uiModel) setFlash(s string, isErr bool) {
	m.flash = s
	m.flashErr = isErr
}

func (m uiModel) refreshSnapshot() tea.Cmd {
	src := m.src
	if src == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotReadyMsg{snap: src.snapshot()}
	}
}

func (m uiModel) submitIntent(intent, runID string) tea.Cmd {
	client := m.src.client
	return func() tea.Msg {
		id, resp, err := client.SubmitIntent(context.Background(), intent, runID)
		return intentDoneMsg{runID: id, resp: resp, err: err}
	}
}

func (m uiModel) exportReport() tea.Cmd {
	plan := m.snap.State.ExecutionPlan
	runID := m.snap.RunID
	dir := m.exportDir
	if plan == nil {
		return func() tea.Msg {
			return exportDoneMsg{err: cascade.ErrNoPlan}
		}
	}
	return func() tea.Msg {
		path, err := cascade.WriteExport(dir, plan, runID, time.Now())
		return exportDoneMsg{path: path, err: err}
	}
}

// nextAgent cycles through node ids, wrapping to "" after the last one.
func nextAgent(nodes []cascade.GraphNode, current string) string {
	if current == "" {
		if len(nodes) > 0 {
			return nodes[0].ID
		}
		return ""
	}
	for i, n := range nodes {
		if n.ID == current {
			if i+1 < len(nodes) {
				return nodes[i+1].ID
			}
			return ""
		}
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
