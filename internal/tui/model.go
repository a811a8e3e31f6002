package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"secnetsim/internal/activity"
	"secnetsim/internal/metrics"
	"secnetsim/internal/model"
	"secnetsim/internal/rng"
	"secnetsim/internal/sim"
	"secnetsim/internal/topology"
)

// Options configures NewModel.
type Options struct {
	Graph    *model.Graph
	Driver   sim.Config // Scheduler is always replaced; Observer is chained
	Topology topology.Options
	Rand     rng.Source // used when regenerating the topology
	Metrics  *metrics.Registry
	Logger   zerolog.Logger
}

// AppModel holds the TUI state.
type AppModel struct {
	// Data
	Driver *sim.Driver
	Feed   *activity.Feed
	Err    error

	// UI State
	SelectedIdx int
	WindowSize  tea.WindowSizeMsg
	Notice      string
	ShowHelp    bool

	// Search State
	InputMode       bool
	InputBuffer     textinput.Model
	FilteredIndices []int // Indices into the graph's nodes
	SearchActive    bool

	// Components
	ActivityViewport viewport.Model
	Help             help.Model
	Keys             keyMap

	sched    *tickScheduler
	topology topology.Options
	rand     rng.Source
	metrics  *metrics.Registry
	log      zerolog.Logger
}

// NewModel wires a driver to the terminal: timers become tea.Tick commands
// and every notification lands in the activity feed.
func NewModel(opts Options) AppModel {
	ti := textinput.New()
	ti.Placeholder = "Node name..."
	ti.CharLimit = 50
	ti.Width = 20

	if opts.Rand == nil {
		opts.Rand = rng.New(rng.Seed(0))
	}
	if opts.Topology.Nodes == 0 {
		opts.Topology = topology.DefaultOptions()
	}

	var driver *sim.Driver
	feed := activity.NewFeed(func() *model.Graph {
		if driver == nil {
			return opts.Graph
		}
		return driver.Graph()
	})

	observers := sim.Observers{feed}
	if opts.Metrics != nil {
		observers = append(observers, opts.Metrics)
	}
	if opts.Driver.Observer != nil {
		observers = append(observers, opts.Driver.Observer)
	}

	sched := &tickScheduler{}
	cfg := opts.Driver
	cfg.Observer = observers
	cfg.Scheduler = sched
	cfg.Logger = opts.Logger
	driver = sim.NewDriver(opts.Graph, cfg)

	m := AppModel{
		Driver:      driver,
		Feed:        feed,
		InputBuffer: ti,
		Help:        help.New(),
		Keys:        defaultKeyMap(),
		sched:       sched,
		topology:    opts.Topology,
		rand:        opts.Rand,
		metrics:     opts.Metrics,
		log:         opts.Logger.With().Str("component", "tui").Logger(),
	}
	m.ActivityViewport = viewport.New(40, 10)
	m.performSearch()
	m.refreshActivity()
	return m
}

func (m AppModel) Init() tea.Cmd {
	return nil
}

// MsgTimer carries a driver callback that fell due.
type MsgTimer struct {
	fire func()
}

// tickScheduler turns driver timers into tea.Tick commands so the callbacks
// run on the Update goroutine, never concurrently with key handling.
type tickScheduler struct {
	pending []tea.Cmd
}

func (s *tickScheduler) After(d time.Duration, fn func()) {
	s.pending = append(s.pending, tea.Tick(d, func(time.Time) tea.Msg {
		return MsgTimer{fire: fn}
	}))
}

// drain hands over the ticks scheduled since the last call.
func (s *tickScheduler) drain() tea.Cmd {
	if len(s.pending) == 0 {
		return nil
	}
	cmds := s.pending
	s.pending = nil
	return tea.Batch(cmds...)
}
