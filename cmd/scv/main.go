// scv is a real-time viewer for supply-chain agent cascades.
//
// It follows the cascade event bus over a websocket (or replays a recorded
// event file) and displays the agent graph, negotiation log, phase timeline,
// execution plan and supplier risk in a terminal UI.
//
// Usage:
//
//	scv                              # Follow the bus at SCV_BUS_URL or localhost:8099
//	scv --bus http://host:8099       # Use a specific event bus
//	scv --run <id>                   # Show one run (default: latest)
//	scv --replay run.jsonl           # Replay a recorded run, tailing the file
//	scv --redis localhost:6379       # Also consume events from Redis pub/sub
//	scv --json                       # Dump current state as JSON and exit
//	scv --serve :8080                # Headless HTTP API instead of the TUI
//	scv --view risk                  # Start in a specific view
//	scv --version                    # Print version and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/daviddao/cascade_viewer/internal/cascade"
	"github.com/daviddao/cascade_viewer/internal/datasource"
	"github.com/daviddao/cascade_viewer/internal/risk"
	"github.com/daviddao/cascade_viewer/internal/selection"
	"github.com/daviddao/cascade_viewer/internal/snapshot"
)

// Version is set via ldflags at build time (e.g. -X main.Version=v0.1.0).
var Version = "dev"

// historyLimit is how many bus events are fetched over HTTP on startup.
const historyLimit = 1000

// parseViewFlag maps a --view flag string to a viewID.
func parseViewFlag(s string) (viewID, error) {
	switch strings.ToLower(s) {
	case "dashboard", "d":
		return viewDashboard, nil
	case "messages", "m":
		return viewMessages, nil
	case "timeline", "t":
		return viewTimeline, nil
	case "negotiations", "n":
		return viewNegotiations, nil
	case "plan", "p":
		return viewPlan, nil
	case "risk", "x":
		return viewRisk, nil
	default:
		return 0, fmt.Errorf("unknown view %q (valid: dashboard, messages, timeline, negotiations, plan, risk)", s)
	}
}

type config struct {
	endpoints      datasource.Endpoints
	runID          string
	replay         string
	redisAddr      string
	redisChannel   string
	exportDir      string
	logFile        string
	stopOnComplete bool
}

func main() {
	busURL := flag.String("bus", "", "event bus base URL (default: $SCV_BUS_URL or "+datasource.DefaultBusURL+")")
	procURL := flag.String("procurement", "", "procurement service base URL (default: $SCV_PROCUREMENT_URL or "+datasource.DefaultProcurementURL+")")
	runFlag := flag.String("run", "", "run id to display (default: follow the latest run)")
	replayFlag := flag.String("replay", "", "replay events from a JSON/JSONL file instead of the bus")
	redisFlag := flag.String("redis", "", "also consume events from this Redis address or redis:// URL")
	redisChannel := flag.String("redis-channel", datasource.DefaultRedisChannel, "Redis pub/sub channel")
	jsonMode := flag.Bool("json", false, "dump current state as JSON and exit (no TUI)")
	exportDir := flag.String("export", ".", "directory for exported cascade reports")
	serveAddr := flag.String("serve", "", "serve the headless HTTP API on this address instead of the TUI")
	viewFlag := flag.String("view", "", "start in specific view (dashboard|messages|timeline|negotiations|plan|risk)")
	agentFlag := flag.String("agent", "", "focus a specific agent on startup")
	refreshDur := flag.Duration("refresh", 2*time.Second, "polling fallback interval")
	logFile := flag.String("log", "", "write logs to this file")
	stopFlag := flag.Bool("stop-on-complete", false, "disconnect from the bus once the run completes")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("scv %s\n", Version)
		os.Exit(0)
	}

	endpoints, err := datasource.Discover(datasource.Endpoints{BusURL: *busURL, ProcurementURL: *procURL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "scv: %v\n", err)
		os.Exit(1)
	}
	cfg := config{
		endpoints:      endpoints,
		runID:          *runFlag,
		replay:         *replayFlag,
		redisAddr:      *redisFlag,
		redisChannel:   *redisChannel,
		exportDir:      *exportDir,
		logFile:        *logFile,
		stopOnComplete: *stopFlag,
	}

	logger, closeLog, err := newLogger(cfg.logFile, *serveAddr != "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "scv: log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --json mode: load once, print JSON, exit.
	if *jsonMode {
		if err := dumpJSON(ctx, cfg, *agentFlag, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "scv: %v\n", err)
			os.Exit(1)
		}
		return
	}

	src, err := startSources(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scv: %v\n", err)
		os.Exit(1)
	}
	defer src.close()

	if *serveAddr != "" {
		if err := serve(ctx, *serveAddr, src, cfg.exportDir, logger); err != nil {
			fmt.Fprintf(os.Stderr, "scv: serve: %v\n", err)
			os.Exit(1)
		}
		return
	}

	m := newModel(src, cfg.exportDir)
	m.refreshInterval = *refreshDur

	// Apply --view flag.
	if *viewFlag != "" {
		v, err := parseViewFlag(*viewFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scv: %v\n", err)
			os.Exit(1)
		}
		m.activeView = v
	}

	// Apply --agent flag: drill into the agent once it shows up.
	if *agentFlag != "" {
		m.focusAgent(*agentFlag)
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Feed log changes into the TUI.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-src.log.Changes():
				p.Send(logChangedMsg{})
			}
		}
	}()

	// Polling fallback: refresh at --refresh interval even if a change signal is missed.
	go func() {
		ticker := time.NewTicker(*refreshDur)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Send(logChangedMsg{})
			}
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "scv: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. The TUI owns the terminal, so
// without --log it discards; headless mode logs JSON to stderr.
func newLogger(path string, headless bool) (*slog.Logger, func(), error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
		return slog.New(h), func() { f.Close() }, nil
	}
	if headless {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil)), func() {}, nil
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
}

// runTracker resolves which run the views show: a fixed id, or the latest
// run seen in the log.
type runTracker struct {
	mu  sync.Mutex
	id  string
	log *datasource.Log
}

func (t *runTracker) Current() string {
	t.mu.Lock()
	id := t.id
	t.mu.Unlock()
	if id != "" {
		return id
	}
	return t.log.LatestRunID()
}

func (t *runTracker) Set(id string) {
	t.mu.Lock()
	t.id = id
	t.mu.Unlock()
}

// sources bundles the running event sources behind one log.
type sources struct {
	log     *datasource.Log
	tracker *runTracker
	builder *snapshot.Builder
	client  *datasource.Client
	feed    *datasource.Feed
	logger  *slog.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newSources(log *datasource.Log, runID string) *sources {
	return &sources{
		log:     log,
		tracker: &runTracker{id: runID, log: log},
		builder: &snapshot.Builder{},
		logger:  slog.Default(),
		cancel:  func() {},
	}
}

// snapshot reduces the log for the tracked run.
func (s *sources) snapshot() *snapshot.DataSnapshot {
	return s.builder.Build(s.log.Events(), s.tracker.Current())
}

// startSources starts the replay or bus feed, plus Redis when configured.
func startSources(parent context.Context, cfg config, logger *slog.Logger) (*sources, error) {
	ctx, cancel := context.WithCancel(parent)
	src := newSources(datasource.NewLog(), cfg.runID)
	src.logger = logger
	src.cancel = cancel
	src.client = datasource.NewClient(cfg.endpoints, nil)

	if cfg.replay != "" {
		r := datasource.NewReplay(cfg.replay, src.log, logger)
		if _, err := r.Load(); err != nil {
			cancel()
			return nil, err
		}
		src.goRun("replay", func() error { return r.Follow(ctx) })
	} else {
		// Best effort: the websocket sends its own HISTORY batch on connect.
		hctx, hcancel := context.WithTimeout(ctx, 5*time.Second)
		events, err := src.client.History(hctx, historyLimit, cfg.runID)
		hcancel()
		if err != nil {
			logger.Warn("history fetch failed", slog.String("error", err.Error()))
		}
		src.log.Append(events...)

		opts := []datasource.FeedOption{datasource.WithLogger(logger)}
		if cfg.stopOnComplete {
			opts = append(opts, datasource.WithStopOnComplete(src.tracker.Current))
		}
		src.feed = datasource.NewFeed(cfg.endpoints.WebSocketURL(), src.log, opts...)
		src.goRun("feed", func() error { return src.feed.Run(ctx) })
	}

	if cfg.redisAddr != "" {
		rf, err := datasource.NewRedisFeed(cfg.redisAddr, src.log, logger, cfg.redisChannel)
		if err != nil {
			cancel()
			return nil, err
		}
		src.goRun("redis", func() error {
			defer rf.Close()
			return rf.Run(ctx)
		})
	}
	return src, nil
}

func (s *sources) goRun(name string, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("source stopped", slog.String("source", name), slog.String("error", err.Error()))
		}
	}()
}

func (s *sources) close() {
	s.cancel()
	if s.feed != nil {
		s.feed.Stop()
	}
	s.wg.Wait()
}

// --- JSON output ---

// jsonOutput is the structure for --json mode.
type jsonOutput struct {
	RunID           string                   `json:"run_id"`
	Phase           cascade.Phase            `json:"phase"`
	Stats           jsonStats                `json:"stats"`
	Intent          string                   `json:"intent,omitempty"`
	Nodes           []cascade.GraphNode      `json:"nodes"`
	AggregatedEdges []cascade.AggregatedEdge `json:"aggregated_edges"`
	Timeline        []cascade.TimelinePhase  `json:"timeline"`
	Totals          cascade.Totals           `json:"totals"`
	ExecutionPlan   *cascade.ExecutionPlan   `json:"execution_plan"`
	Risk            risk.Report              `json:"risk"`
	Detail          *jsonDetail              `json:"detail,omitempty"`
}

type jsonStats struct {
	Agents      int `json:"agents"`
	Suppliers   int `json:"suppliers"`
	Edges       int `json:"edges"`
	Messages    int `json:"messages"`
	Orders      int `json:"orders"`
	TotalEvents int `json:"total_events"`
}

type jsonDetail struct {
	Selection string              `json:"selection"`
	Nodes     []cascade.GraphNode `json:"nodes"`
	Edges     []cascade.GraphEdge `json:"edges"`
}

// buildJSONOutput converts a snapshot into the JSON output structure. A
// non-empty agent adds its drill-down.
func buildJSONOutput(snap *snapshot.DataSnapshot, agent string) jsonOutput {
	st := snap.State
	out := jsonOutput{
		RunID: snap.RunID,
		Phase: snap.Phase,
		Stats: jsonStats{
			Agents:      snap.Agents,
			Suppliers:   snap.Suppliers,
			Edges:       snap.Edges,
			Messages:    snap.Messages,
			Orders:      snap.Orders,
			TotalEvents: snap.TotalEvents,
		},
		Intent:          st.Intent,
		Nodes:           st.Nodes,
		AggregatedEdges: st.AggregatedEdges,
		Timeline:        st.Timeline,
		Totals:          st.Totals,
		ExecutionPlan:   st.ExecutionPlan,
		Risk:            snap.Risk,
	}
	if agent != "" {
		sel := selection.AgentDetail{AgentID: agent}
		edges := selection.DetailEdges(st.Edges, sel)
		out.Detail = &jsonDetail{
			Selection: selection.Describe(sel),
			Nodes:     selection.DetailNodes(st.Nodes, edges, sel),
			Edges:     edges,
		}
	}
	return out
}

// loadOnce fills a log from the replay file or the bus history.
func loadOnce(ctx context.Context, cfg config) (*datasource.Log, error) {
	log := datasource.NewLog()
	if cfg.replay != "" {
		events, err := datasource.LoadFile(cfg.replay)
		if err != nil {
			return nil, err
		}
		log.Append(events...)
		return log, nil
	}
	client := datasource.NewClient(cfg.endpoints, nil)
	events, err := client.History(ctx, historyLimit, cfg.runID)
	if err != nil {
		return nil, err
	}
	log.Append(events...)
	return log, nil
}

func dumpJSON(ctx context.Context, cfg config, agent string, w io.Writer) error {
	log, err := loadOnce(ctx, cfg)
	if err != nil {
		return err
	}
	src := newSources(log, cfg.runID)
	snap := src.snapshot()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(buildJSONOutput(snap, agent)); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}
