package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/daviddao/cascade_viewer/internal/cascade"
	"github.com/daviddao/cascade_viewer/internal/datasource"
	"github.com/daviddao/cascade_viewer/internal/risk"
	"github.com/daviddao/cascade_viewer/internal/selection"
)

// --- Styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1E1E2E")).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6C7086")).
				Background(lipgloss.Color("#313244")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CBA6F7"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#A6E3A1")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9E2AF")).
			Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			Bold(true)

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#89B4FA")).
			Bold(true)

	moneyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAB387"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#1E1E2E"))

	detailHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#CBA6F7"))

	detailSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#89B4FA")).
				MarginTop(1)
)

// roleColors colors agents by role.
var roleColors = map[cascade.Role]lipgloss.Color{
	cascade.RoleProcurement: lipgloss.Color("#CBA6F7"),
	cascade.RoleSupplier:    lipgloss.Color("#A6E3A1"),
	cascade.RoleLogistics:   lipgloss.Color("#FAB387"),
	cascade.RoleIndex:       lipgloss.Color("#89DCEB"),
}

// edgeColors colors edges by type.
var edgeColors = map[cascade.EdgeType]lipgloss.Color{
	cascade.EdgeDiscovery:    lipgloss.Color("#89DCEB"),
	cascade.EdgeRFQ:          lipgloss.Color("#89B4FA"),
	cascade.EdgeQuote:        lipgloss.Color("#F9E2AF"),
	cascade.EdgeCounter:      lipgloss.Color("#F38BA8"),
	cascade.EdgeAccept:       lipgloss.Color("#A6E3A1"),
	cascade.EdgeOrder:        lipgloss.Color("#A6E3A1"),
	cascade.EdgeLogistics:    lipgloss.Color("#FAB387"),
	cascade.EdgeContract:     lipgloss.Color("#CBA6F7"),
	cascade.EdgeRoute:        lipgloss.Color("#9399B2"),
	cascade.EdgeRouteExpress: lipgloss.Color("#F5C2E7"),
}

func roleStyle(r cascade.Role) lipgloss.Style {
	if c, ok := roleColors[r]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return dimStyle
}

func edgeStyle(t cascade.EdgeType) lipgloss.Style {
	if c, ok := edgeColors[t]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return dimStyle
}

func levelStyle(l risk.Level) lipgloss.Style {
	switch l {
	case risk.LevelHigh:
		return errStyle
	case risk.LevelMedium:
		return warnStyle
	}
	return okStyle
}

// --- View rendering ---

func (m uiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderTitleBar())
	b.WriteRune('\n')
	b.WriteString(m.renderTabBar())
	b.WriteRune('\n')
	b.WriteRune('\n')

	contentHeight := m.height - 5 // title + tabs + status + padding
	if m.showHelp {
		contentHeight -= 3
	}

	var content string

	// Split-pane: dashboard + selected agent detail on wide terminals.
	nodes := m.snap.State.Nodes
	if m.activeView == viewDashboard && m.width >= 120 &&
		len(nodes) > 0 && m.selectedAgent < len(nodes) {
		leftWidth := m.width/2 - 1
		rightWidth := m.width - leftWidth - 3 // 3 for separator

		left := m.renderDashboard()
		right := m.renderSelection(selection.AgentDetail{AgentID: nodes[m.selectedAgent].ID})
		content = renderSplitPane(left, right, leftWidth, rightWidth, contentHeight)
	} else {
		switch m.activeView {
		case viewDashboard:
			content = m.renderDashboard()
		case viewMessages:
			content = m.renderMessages()
		case viewTimeline:
			content = m.renderTimeline()
		case viewNegotiations:
			content = m.renderNegotiations()
		case viewPlan:
			content = m.renderPlan()
		case viewRisk:
			content = m.renderRisk()
		case viewDetail:
			content = m.renderSelection(m.selection)
		}

		// View has a value receiver, so the clamp stays local.
		lines := strings.Split(content, "\n")
		scrollPos := min(m.scrollPos, max(0, len(lines)-1))
		if scrollPos > 0 {
			lines = lines[scrollPos:]
		}
		if len(lines) > contentHeight {
			lines = lines[:max(0, contentHeight)]
		}
		content = strings.Join(lines, "\n")
	}

	content = truncateLines(content, m.width)
	b.WriteString(content)

	rendered := strings.Count(b.String(), "\n")
	for rendered < m.height-2 {
		b.WriteRune('\n')
		rendered++
	}

	switch {
	case m.inputActive:
		b.WriteString(m.input.View())
	case m.showHelp:
		b.WriteString(m.help.View(keys))
	default:
		b.WriteString(m.renderStatusBar())
	}

	return b.String()
}

func (m uiModel) renderTitleBar() string {
	title := titleStyle.Render("cascade viewer")
	run := m.snap.RunID
	if run == "" {
		run = "-"
	}
	phase := string(m.snap.Phase)
	if phase == "" {
		phase = "idle"
	}
	stats := dimStyle.Render(fmt.Sprintf(
		"run %s | %s | %d agents | %d edges | %d events",
		shortID(run), phase, m.snap.Agents, m.snap.Edges, m.snap.TotalEvents,
	))
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(title)-lipgloss.Width(stats)-2))
	return title + gap + stats
}

func (m uiModel) renderTabBar() string {
	var tabs []string
	for i := viewID(0); i < viewCount; i++ {
		if i == m.activeView {
			tabs = append(tabs, tabActiveStyle.Render(i.String()))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(i.String()))
		}
	}
	if m.activeView == viewDetail {
		tabs = append(tabs, tabActiveStyle.Render(selection.Describe(m.selection)))
	}
	return strings.Join(tabs, " ")
}

// connectionLabel describes the feed state for the status bar.
func (m uiModel) connectionLabel() string {
	if m.src == nil || m.src.feed == nil {
		return dimStyle.Render("offline")
	}
	switch m.connStatus {
	case datasource.StatusConnected:
		return okStyle.Render("live")
	case datasource.StatusConnecting, datasource.StatusReconnecting:
		label := m.spinner.View() + warnStyle.Render(" "+m.connStatus.String())
		if m.connErr != nil {
			label += dimStyle.Render(" (" + truncate(m.connErr.Error(), 40) + ")")
		}
		return label
	case datasource.StatusStopped:
		return dimStyle.Render("stopped")
	}
	return dimStyle.Render(m.connStatus.String())
}

func (m uiModel) renderStatusBar() string {
	left := " " + contextHelp(m.activeView)
	if m.flash != "" {
		if m.flashErr {
			left = " " + errStyle.Render(m.flash)
		} else {
			left = " " + accentStyle.Render(m.flash)
		}
	}
	if m.submitting {
		left = " " + m.spinner.View() + " cascade running..." + left
	}
	ago := time.Since(m.lastRefresh).Truncate(time.Second)
	right := m.connectionLabel() + fmt.Sprintf(" | refreshed %s ago ", ago)
	left = ansi.Truncate(left, max(0, m.width-lipgloss.Width(right)-1), "…")
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return statusBarStyle.Render(left + gap + right)
}

// --- Dashboard view ---

func (m uiModel) renderDashboard() string {
	var b strings.Builder
	st := m.snap.State

	if st.Intent != "" {
		b.WriteString(accentStyle.Render("Intent: "))
		b.WriteString(st.Intent)
		b.WriteRune('\n')
	}
	b.WriteString(renderPhaseStrip(st.Timeline))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Agents"))
	b.WriteRune('\n')
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-22s %-12s %-10s %-6s %s",
		"ID", "Role", "Framework", "Rel.", "ESG")))
	b.WriteRune('\n')

	for i, n := range st.Nodes {
		cursor := "  "
		if i == m.selectedAgent {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%-22s %-12s %-10s %-6s %s",
			cursor, truncate(n.ID, 22), n.Role, orDash(n.Framework), reliability(n.ReliabilityScore), orDash(n.ESGRating))
		style := roleStyle(n.Role)
		if i == m.selectedAgent {
			style = style.Bold(true)
		}
		b.WriteString(style.Render(line))
		b.WriteRune('\n')
	}
	if len(st.Nodes) == 0 {
		b.WriteString(dimStyle.Render("  (no agents registered)"))
		b.WriteRune('\n')
	}

	b.WriteRune('\n')
	b.WriteString(headerStyle.Render("Interactions"))
	b.WriteRune('\n')
	if len(st.AggregatedEdges) == 0 {
		b.WriteString(dimStyle.Render("  (no interactions yet)"))
		b.WriteRune('\n')
	}
	for _, ae := range st.AggregatedEdges {
		b.WriteString(fmt.Sprintf("  %s -> %s  %s %s\n",
			agentStyle.Render(ae.Source),
			agentStyle.Render(ae.Target),
			edgeStyle(ae.Dominant()).Render(fmt.Sprintf("%3d", ae.TotalMessages)),
			dimStyle.Render(formatCounts(ae.Counts))))
	}

	b.WriteRune('\n')
	b.WriteString(headerStyle.Render("Totals"))
	b.WriteRune('\n')
	t := st.Totals
	b.WriteString(fmt.Sprintf("  cost %s | shipping %s | %d orders | %d suppliers | %d parts | %d missing\n",
		moneyStyle.Render(money(t.TotalCost)), moneyStyle.Render(money(t.ShippingCost)),
		t.OrdersPlaced, t.SuppliersEngaged, t.PartsCount, t.MissingCount))

	return b.String()
}

// renderPhaseStrip renders the timeline as one line of phase markers.
func renderPhaseStrip(tl []cascade.TimelinePhase) string {
	parts := make([]string, 0, len(tl))
	for _, p := range tl {
		parts = append(parts, phaseMarker(p.Status)+" "+string(p.Phase))
	}
	return strings.Join(parts, dimStyle.Render(" > "))
}

func phaseMarker(s cascade.PhaseStatus) string {
	switch s {
	case cascade.PhaseCompleted:
		return okStyle.Render("●")
	case cascade.PhaseActive:
		return warnStyle.Render("◐")
	}
	return dimStyle.Render("○")
}

// formatCounts lists non-zero edge counts in display order.
func formatCounts(counts map[cascade.EdgeType]int) string {
	var parts []string
	for _, t := range cascade.EdgeTypes {
		if c := counts[t]; c > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", t, c))
		}
	}
	return strings.Join(parts, " ")
}

// --- Messages view ---

func (m uiModel) renderMessages() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Messages"))
	if m.filterAgent != "" {
		b.WriteString(" ")
		b.WriteString(agentStyle.Render(fmt.Sprintf("[filter: %s]", m.filterAgent)))
	}
	b.WriteRune('\n')

	msgs := m.snap.State.Messages
	if m.filterAgent != "" {
		var filtered []cascade.Message
		for _, msg := range msgs {
			if msg.AgentID == m.filterAgent {
				filtered = append(filtered, msg)
			}
		}
		msgs = filtered
	}
	if len(msgs) == 0 {
		if m.filterAgent != "" {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  (no messages from %s)", m.filterAgent)))
		} else {
			b.WriteString(dimStyle.Render("  (no messages)"))
		}
		b.WriteRune('\n')
		return b.String()
	}

	bodyIndent := "        "
	bodyWidth := max(20, m.width-len(bodyIndent)-1)

	// Most recent first.
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			dimStyle.Render(fmt.Sprintf("[%s]", clock(msg.Timestamp))),
			agentStyle.Render(msg.AgentID),
			accentStyle.Render(msg.EventType.Short())))
		for _, line := range wrapText(msg.Summary, bodyWidth) {
			b.WriteString(bodyIndent)
			b.WriteString(line)
			b.WriteRune('\n')
		}
	}
	return b.String()
}

// --- Timeline view ---

func (m uiModel) renderTimeline() string {
	var b strings.Builder
	st := m.snap.State
	b.WriteString(headerStyle.Render("Cascade Timeline"))
	b.WriteRune('\n')
	b.WriteRune('\n')

	for _, p := range st.Timeline {
		b.WriteString(fmt.Sprintf("  %s %-13s %-10s",
			phaseMarker(p.Status), strings.ToUpper(string(p.Phase)), p.Status))
		if p.StartedAt != "" {
			b.WriteString(dimStyle.Render(" started " + clock(p.StartedAt)))
		}
		if p.CompletedAt != "" {
			b.WriteString(dimStyle.Render(" done " + clock(p.CompletedAt)))
		}
		b.WriteRune('\n')
	}

	if len(st.BOMParts) > 0 {
		b.WriteRune('\n')
		b.WriteString(headerStyle.Render("Bill of Materials"))
		b.WriteRune('\n')
		for _, p := range st.BOMParts {
			b.WriteString("  - " + p + "\n")
		}
	}
	return b.String()
}

// --- Negotiations view ---

func (m uiModel) renderNegotiations() string {
	var b strings.Builder
	negs := m.snap.State.Negotiations
	b.WriteString(headerStyle.Render("Negotiations"))
	b.WriteRune('\n')

	if len(negs) == 0 {
		b.WriteString(dimStyle.Render("  (no negotiations)"))
		b.WriteRune('\n')
		return b.String()
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-18s %-20s %-6s %-10s %-10s %-10s %-10s %s",
		"Part", "Supplier", "Rnds", "Quoted", "Target", "Revised", "Final", "Status")))
	b.WriteRune('\n')
	for i, n := range negs {
		cursor := "  "
		if i == m.selectedNeg {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%-18s %-20s %-6d %-10s %-10s %-10s %-10s %s",
			cursor, truncate(n.Part, 18), truncate(n.Supplier, 20), n.Rounds,
			priceOrDash(n.QuotedPrice), priceOrDash(n.TargetPrice),
			priceOrDash(n.RevisedPrice), priceOrDash(n.FinalPrice), n.Status)
		style := negotiationStyle(n.Status)
		if i == m.selectedNeg {
			style = style.Bold(true)
		}
		b.WriteString(style.Render(line))
		b.WriteRune('\n')
	}
	return b.String()
}

func negotiationStyle(s cascade.NegotiationStatus) lipgloss.Style {
	switch s {
	case cascade.NegotiationAccepted:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	case cascade.NegotiationRejected:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	case cascade.NegotiationCountered, cascade.NegotiationRevised:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4"))
}

// --- Plan view ---

func (m uiModel) renderPlan() string {
	var b strings.Builder
	st := m.snap.State
	plan := st.ExecutionPlan

	b.WriteString(headerStyle.Render("Execution Plan"))
	if plan == nil {
		b.WriteString(dimStyle.Render("  (cascade in progress)"))
	} else {
		b.WriteString(okStyle.Render("  COMPLETE"))
		if plan.CompletedAt != "" {
			b.WriteString(dimStyle.Render(" at " + clock(plan.CompletedAt)))
		}
	}
	b.WriteRune('\n')

	t := st.Totals
	b.WriteString(fmt.Sprintf("  Total %s  Shipping %s  Orders %d  Ship plans %d  Suppliers %d  Missing %d\n",
		moneyStyle.Render(money(t.TotalCost)), moneyStyle.Render(money(t.ShippingCost)),
		t.OrdersPlaced, t.ShippingPlans, t.SuppliersEngaged, t.MissingCount))

	b.WriteRune('\n')
	b.WriteString(headerStyle.Render("Orders"))
	b.WriteRune('\n')
	if len(st.Orders) == 0 {
		b.WriteString(dimStyle.Render("  (no orders)"))
		b.WriteRune('\n')
	}
	for _, o := range st.Orders {
		b.WriteString(fmt.Sprintf("  %-12s %-18s %-20s x%-4d %s %s\n",
			truncate(o.OrderID, 12), truncate(o.Part, 18), truncate(o.SupplierName, 20), o.Quantity,
			moneyStyle.Render(money(o.TotalPrice)), dimStyle.Render(fmt.Sprintf("%.0fd", o.LeadTimeDays))))
	}

	b.WriteRune('\n')
	b.WriteString(headerStyle.Render("Ship Plans"))
	b.WriteRune('\n')
	if len(st.ShipPlans) == 0 {
		b.WriteString(dimStyle.Render("  (no ship plans)"))
		b.WriteRune('\n')
	}
	for i, sp := range st.ShipPlans {
		cursor := "  "
		if i == m.selectedPlan {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%-12s %-18s %-28s %5.1fd %s",
			cursor, truncate(sp.OrderID, 12), truncate(sp.Part, 18),
			truncate(strings.Join(sp.Route, " > "), 28), sp.TransitDays, money(sp.Cost))
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387"))
		if i == m.selectedPlan {
			style = style.Bold(true)
		}
		b.WriteString(style.Render(line))
		b.WriteRune('\n')
	}

	if len(st.MissingParts) > 0 {
		b.WriteRune('\n')
		b.WriteString(headerStyle.Render("Missing Parts"))
		b.WriteRune('\n')
		for _, mp := range st.MissingParts {
			b.WriteString(errStyle.Render(fmt.Sprintf("  %s", mp.PartName)))
			if mp.Reason != "" {
				b.WriteString(dimStyle.Render(" (" + mp.Reason + ")"))
			}
			b.WriteRune('\n')
		}
	}
	return b.String()
}

// --- Risk view ---

func (m uiModel) renderRisk() string {
	var b strings.Builder
	rep := m.snap.Risk

	b.WriteString(headerStyle.Render("Supplier Risk"))
	b.WriteRune('\n')

	if bn := rep.Bottleneck; bn != nil {
		b.WriteString(fmt.Sprintf("  Bottleneck: %s %s %s\n",
			agentStyle.Render(bn.Label),
			levelStyle(bn.Level).Render(fmt.Sprintf("%s %d/%d", bn.Level, bn.Score, risk.MaxTotal)),
			dimStyle.Render(bn.Reason)))
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  Orchestration load (%s): %d/%d",
		m.snap.State.ProcurementID(), rep.OrchestrationLoad, risk.MaxTotal)))
	b.WriteString("\n\n")

	if len(rep.Suppliers) == 0 {
		b.WriteString(dimStyle.Render("  (no suppliers with orders)"))
		b.WriteRune('\n')
		return b.String()
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-22s %-5s %-5s %-5s %-6s %-7s %s",
		"Supplier", "Dep", "Sole", "Lead", "Total", "Level", "Parts")))
	b.WriteRune('\n')
	for _, s := range rep.Suppliers {
		b.WriteString(fmt.Sprintf("  %-22s %-5d %-5d %-5d %-6d %s %s\n",
			truncate(s.Label, 22), s.Dependency, s.SingleSource, s.LeadTime, s.TotalScore,
			levelStyle(s.Level).Render(fmt.Sprintf("%-7s", s.Level)),
			dimStyle.Render(strings.Join(s.Parts, ", "))))
	}
	return b.String()
}

// --- Detail view ---

// renderSelection renders the drill-down for sel: the nodes and edges it
// selects, plus the route for a logistics selection.
func (m uiModel) renderSelection(sel selection.GraphSelection) string {
	var b strings.Builder
	st := m.snap.State

	b.WriteString(detailHeaderStyle.Render(capitalize(selection.Describe(sel))))
	b.WriteRune('\n')

	switch s := sel.(type) {
	case selection.AgentDetail:
		n, ok := st.Node(s.AgentID)
		if !ok {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  Agent %q not found", s.AgentID)))
			return b.String()
		}
		b.WriteString(fmt.Sprintf("  %s  %s\n", roleStyle(n.Role).Render(n.Label), dimStyle.Render(string(n.Role))))
		if n.Framework != "" || len(n.Skills) > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  framework %s | skills %s", orDash(n.Framework), orDash(strings.Join(n.Skills, ", ")))))
			b.WriteRune('\n')
		}
		if n.ReliabilityScore != nil || n.ESGRating != "" {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  reliability %s | ESG %s", reliability(n.ReliabilityScore), orDash(n.ESGRating))))
			b.WriteRune('\n')
		}
	case selection.OrderDetail:
		for _, o := range st.Orders {
			if o.Supplier == s.SupplierID && strings.EqualFold(o.Part, s.PartName) {
				b.WriteString(fmt.Sprintf("  order %s x%d at %s = %s, lead %.0fd\n",
					o.OrderID, o.Quantity, money(o.UnitPrice), moneyStyle.Render(money(o.TotalPrice)), o.LeadTimeDays))
			}
		}
	case selection.LogisticsDetail:
		b.WriteString(renderRoute(st.ShipPlans, s.ShipPlanIndex))
	}

	edges := selection.DetailEdges(st.Edges, sel)
	b.WriteString(detailSectionStyle.Render("Participants"))
	b.WriteRune('\n')
	nodes := selection.DetailNodes(st.Nodes, edges, sel)
	if len(nodes) == 0 {
		b.WriteString(dimStyle.Render("  (none)"))
		b.WriteRune('\n')
	}
	for _, n := range nodes {
		b.WriteString(fmt.Sprintf("  %s %s\n", roleStyle(n.Role).Render(n.ID), dimStyle.Render(string(n.Role))))
	}

	b.WriteString(detailSectionStyle.Render(fmt.Sprintf("Edges (%d)", len(edges))))
	b.WriteRune('\n')
	if len(edges) == 0 {
		b.WriteString(dimStyle.Render("  (none)"))
		b.WriteRune('\n')
	}
	for _, e := range edges {
		b.WriteString(fmt.Sprintf("  %s %s -> %s %s\n",
			edgeStyle(e.EdgeType).Render(fmt.Sprintf("%-9s", e.EdgeType)),
			e.Source, e.Target, dimStyle.Render(e.Label)))
	}
	return b.String()
}

// renderRoute draws the stops of one ship plan as a chain.
func renderRoute(plans []cascade.ShipPlanDetail, idx *int) string {
	r, ok := selection.RouteGraph(plans, idx)
	if !ok {
		return dimStyle.Render("  (no ship plans)") + "\n"
	}
	var b strings.Builder
	sp := r.ShipPlan
	b.WriteString(fmt.Sprintf("  plan #%d of %d: order %s %s via %s\n",
		r.Index+1, len(plans), sp.OrderID, sp.Part, orDash(sp.Agent)))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %.1f days, %s, ETA %s", sp.TransitDays, money(sp.Cost), orDash(sp.EstimatedArrival))))
	b.WriteRune('\n')

	if len(r.Stops) == 0 {
		b.WriteString(dimStyle.Render("  (no route)"))
		b.WriteRune('\n')
		return b.String()
	}
	b.WriteString("  ")
	for i, stop := range r.Stops {
		b.WriteString(accentStyle.Render(stop.Label))
		if i < len(r.Edges) {
			e := r.Edges[i]
			b.WriteString(edgeStyle(e.EdgeType).Render(" --" + e.Label + "--> "))
		}
	}
	b.WriteRune('\n')
	return b.String()
}

// --- Split-pane rendering ---

// renderSplitPane renders two content panes side by side with a vertical separator.
func renderSplitPane(left, right string, leftWidth, rightWidth, maxHeight int) string {
	leftLines := strings.Split(left, "\n")
	rightLines := strings.Split(right, "\n")

	rows := min(max(len(leftLines), len(rightLines)), maxHeight)
	sep := dimStyle.Render("│")
	var b strings.Builder
	for i := 0; i < rows; i++ {
		var l, r string
		if i < len(leftLines) {
			l = leftLines[i]
		}
		if i < len(rightLines) {
			r = rightLines[i]
		}
		b.WriteString(fitWidth(l, leftWidth))
		b.WriteString(" ")
		b.WriteString(sep)
		b.WriteString(" ")
		b.WriteString(ansi.Truncate(r, rightWidth, ""))
		b.WriteRune('\n')
	}
	return b.String()
}

// fitWidth pads or truncates a styled line to exactly width cells.
func fitWidth(s string, width int) string {
	w := lipgloss.Width(s)
	if w > width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-w)
}

// --- Helpers ---

// truncateLines truncates each line in content to at most width visible
// cells, preserving ANSI escape codes.
func truncateLines(content string, width int) string {
	if width <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			lines[i] = ansi.Truncate(line, width, "")
		}
	}
	return strings.Join(lines, "\n")
}

// wrapText greedily wraps s on word boundaries. Words longer than width are
// split; embedded newlines start a new paragraph.
func wrapText(s string, width int) []string {
	if width <= 0 {
		width = 80
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		var cur string
		for _, w := range words {
			for len(w) > width {
				if cur != "" {
					lines = append(lines, cur)
					cur = ""
				}
				lines = append(lines, w[:width])
				w = w[width:]
			}
			switch {
			case cur == "":
				cur = w
			case len(cur)+1+len(w) <= width:
				cur += " " + w
			default:
				lines = append(lines, cur)
				cur = w
			}
		}
		if cur != "" {
			lines = append(lines, cur)
		}
	}
	return lines
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// clock formats an ISO timestamp as a wall-clock time, falling back to the
// raw string.
func clock(ts string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Format("15:04:05")
		}
	}
	return ts
}

func money(v float64) string {
	return fmt.Sprintf("€%.2f", v)
}

func priceOrDash(v float64) string {
	if v == 0 {
		return "-"
	}
	return money(v)
}

func reliability(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *r)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
