// Package sim drives the transmission lifecycle: it finds a path, paces the
// packet along it, verifies delivery and reacts to intrusions by rerouting.
package sim

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"secnetsim/internal/cryptosim"
	"secnetsim/internal/ids"
	"secnetsim/internal/model"
	"secnetsim/internal/rng"
	"secnetsim/internal/routing"
)

// ErrMissingEndpoint is returned by Start when the graph has no sender or no receiver.
var ErrMissingEndpoint = errors.New("missing endpoint")

// DefaultPayload is the message every run transmits.
const DefaultPayload = "Secure transmission data"

// DefaultCompromiseProbability is the chance of an intrusion after each verification.
const DefaultCompromiseProbability = 0.3

// Timings paces auto mode.
type Timings struct {
	Routing     time.Duration // PathFound -> Routed
	Launch      time.Duration // Routed -> Transmitting
	Hop         time.Duration // per visited node
	Hold        time.Duration // Verified -> Idle
	Compromise  time.Duration // verification -> intrusion roll
	KeyRotation time.Duration // reroute mid-transmission -> new keys
}

// DefaultTimings returns the stock auto-mode pacing.
func DefaultTimings() Timings {
	return Timings{
		Routing:     3 * time.Second,
		Launch:      time.Second,
		Hop:         time.Second,
		Hold:        5 * time.Second,
		Compromise:  2 * time.Second,
		KeyRotation: time.Second,
	}
}

// Config wires a Driver to its collaborators. Zero fields get defaults.
type Config struct {
	Mode                  Mode
	Timings               Timings
	CompromiseProbability float64 // negative disables the roll
	Payload               string
	Hash                  func(string) string
	Observer              Observer
	Scheduler             Scheduler
	Rand                  rng.Source
	Logger                zerolog.Logger
}

// Driver is the simulation state machine. It is not safe for concurrent use;
// callers serialise access (the web front end through an EventLoop, the TUI
// through bubbletea's update loop).
type Driver struct {
	graph    *model.Graph
	cfg      Config
	detector *ids.Detector
	log      zerolog.Logger

	phase      Phase
	mode       Mode
	result     *routing.Result
	path       []string
	cursor     int
	step       int
	ciphertext string
	keys       map[string]string
	lastHash   string
	lastOK     *bool

	// epoch changes on Start and Reset; pace changes whenever pending auto
	// timers must be discarded without ending the run.
	epoch uint64
	pace  uint64
}

// NewDriver creates an idle driver over g.
func NewDriver(g *model.Graph, cfg Config) *Driver {
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	if cfg.CompromiseProbability == 0 {
		cfg.CompromiseProbability = DefaultCompromiseProbability
	}
	if cfg.Payload == "" {
		cfg.Payload = DefaultPayload
	}
	if cfg.Hash == nil {
		cfg.Hash = cryptosim.SimulateHash
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewVirtualClock()
	}
	if cfg.Rand == nil {
		cfg.Rand = rng.New(rng.Seed(0))
	}

	return &Driver{
		graph:    g,
		cfg:      cfg,
		detector: ids.NewDetector(cfg.Rand),
		log:      cfg.Logger.With().Str("component", "driver").Logger(),
		mode:     cfg.Mode,
	}
}

// Graph returns the graph being simulated.
func (d *Driver) Graph() *model.Graph { return d.graph }

// Result returns the most recent path query, or nil.
func (d *Driver) Result() *routing.Result { return d.result }

// Phase returns the current phase.
func (d *Driver) Phase() Phase { return d.phase }

// State returns a snapshot.
func (d *Driver) State() State {
	s := State{
		Phase:      d.phase,
		Mode:       d.mode,
		Path:       append([]string(nil), d.path...),
		Step:       d.step,
		Cursor:     d.cursor,
		Epoch:      d.epoch,
		Ciphertext: d.ciphertext,
		LastHash:   d.lastHash,
	}
	if len(d.path) > 0 {
		if cost, err := routing.PathCost(d.graph, d.path); err == nil {
			s.Cost = cost
		}
	}
	if d.keys != nil {
		s.Keys = make(map[string]string, len(d.keys))
		for k, v := range d.keys {
			s.Keys[k] = v
		}
	}
	if d.lastOK != nil {
		ok := *d.lastOK
		s.LastSuccess = &ok
	}
	return s
}

// Start finds a path between sender and receiver. It does nothing outside
// Idle and reports ErrMissingEndpoint, staying Idle, when an endpoint is absent.
func (d *Driver) Start() error {
	if d.phase != Idle {
		return nil
	}
	sender, receiver := d.graph.Sender(), d.graph.Receiver()
	if sender == nil || receiver == nil {
		d.log.Warn().Bool("sender", sender != nil).Bool("receiver", receiver != nil).Msg("cannot start without both endpoints")
		return ErrMissingEndpoint
	}

	d.epoch++
	d.pace++
	d.lastHash, d.lastOK = "", nil
	if err := d.findPath(); err != nil {
		return err
	}
	d.setPhase(PathFound)
	d.autoNext()
	return nil
}

// Advance performs the next transition by hand. In Idle it starts a run.
func (d *Driver) Advance() error {
	switch d.phase {
	case Idle:
		return d.Start()
	case PathFound:
		d.pace++
		d.route()
	case Routed:
		d.pace++
		d.transmit()
	case Transmitting:
		d.pace++
		for d.cursor < len(d.path) {
			d.visitNext()
		}
		d.verify()
	case Verified:
		d.pace++
		d.finish()
	}
	return nil
}

// Reset abandons the current run. Compromised nodes stay compromised.
func (d *Driver) Reset() {
	d.epoch++
	d.pace++
	d.path = nil
	d.cursor = 0
	d.ciphertext = ""
	d.keys = nil
	d.result = nil
	d.lastHash, d.lastOK = "", nil
	if d.phase != Idle {
		d.setPhase(Idle)
	}
	d.log.Debug().Uint64("epoch", d.epoch).Msg("reset")
}

// SetMode switches between auto and manual pacing. Switching to auto picks
// up from the current phase.
func (d *Driver) SetMode(m Mode) {
	if m == d.mode {
		return
	}
	d.mode = m
	d.pace++
	d.log.Info().Stringer("mode", m).Msg("mode changed")
	d.autoNext()
}

// ToggleMode flips the mode and returns the new one.
func (d *Driver) ToggleMode() Mode {
	if d.mode == ModeAuto {
		d.SetMode(ModeManual)
	} else {
		d.SetMode(ModeAuto)
	}
	return d.mode
}

// Mode returns the current mode.
func (d *Driver) Mode() Mode { return d.mode }

// Intrude compromises a random node other than the endpoints, raises an
// alert and reroutes. It returns nil when no node is left to compromise.
func (d *Driver) Intrude() *ids.Alert {
	var excluded []string
	for _, n := range d.graph.Nodes {
		if n.Endpoint() {
			excluded = append(excluded, n.ID)
		}
	}

	node := d.detector.CompromiseRandomNode(d.graph.Nodes, excluded)
	if node == nil {
		d.log.Info().Msg("no node left to compromise")
		return nil
	}
	alert := d.detector.GenerateAlert(node.ID)
	d.log.Warn().Str("node", node.ID).Str("severity", string(alert.Severity)).Msg(alert.Message)
	d.cfg.Observer.OnIDSAlert(alert)

	inFlight := d.phase == Transmitting || d.phase == Verified
	d.reroute()
	if inFlight {
		d.scheduleEmergencyRotation()
	}
	return &alert
}

func (d *Driver) reroute() {
	if d.graph.Sender() == nil || d.graph.Receiver() == nil {
		return
	}
	old, visited := d.path, d.cursor
	if err := d.findPath(); err != nil {
		d.log.Error().Err(err).Msg("reroute failed")
		return
	}
	if d.phase != Transmitting {
		return
	}

	// Hops the new path shares with the visited prefix are not taken again.
	shared := 0
	for shared < visited && shared < len(d.path) && old[shared] == d.path[shared] {
		shared++
	}
	if shared == visited {
		return
	}
	d.log.Debug().Int("from", visited).Int("to", shared).Msg("packet backs up to the last shared hop")
	d.pace++
	d.cursor = shared
	d.autoNext()
}

// scheduleEmergencyRotation re-keys the path shortly after an alert that
// lands while a packet is in flight. A new run cancels it.
func (d *Driver) scheduleEmergencyRotation() {
	epoch, path := d.epoch, d.path
	d.cfg.Scheduler.After(d.cfg.Timings.KeyRotation, func() {
		if d.epoch != epoch {
			return
		}
		keys := cryptosim.KeyExchange(path, d.cfg.Rand)
		if d.phase == Transmitting || d.phase == Verified {
			d.keys = keys
		}
		d.log.Info().Int("nodes", len(keys)).Msg("emergency key rotation")
		d.cfg.Observer.OnKeyRotation(keys, true)
	})
}

func (d *Driver) findPath() error {
	sender, receiver := d.graph.Sender(), d.graph.Receiver()
	res, err := routing.ShortestPath(d.graph, sender.ID, receiver.ID)
	if err != nil {
		return err
	}
	d.result = res
	d.path = res.Path
	compromised := ids.IsPathCompromised(d.path, d.graph)
	d.log.Debug().Strs("path", d.path).Float64("cost", res.Cost()).Bool("compromised", compromised).Msg("path computed")
	d.cfg.Observer.OnPathChange(append([]string(nil), d.path...), compromised)
	return nil
}

func (d *Driver) route() {
	d.setPhase(Routed)
	d.autoNext()
}

func (d *Driver) transmit() {
	d.cursor = 0
	d.ciphertext = cryptosim.EncryptAES(d.cfg.Payload)
	d.setPhase(Transmitting)
	d.rotateKeys()
	d.autoNext()
}

func (d *Driver) rotateKeys() {
	d.keys = cryptosim.KeyExchange(d.path, d.cfg.Rand)
	d.cfg.Observer.OnKeyRotation(d.keys, false)
}

func (d *Driver) visitNext() {
	id := d.path[d.cursor]
	d.cursor++
	d.cfg.Observer.OnNodeVisit(id)
}

// hop is one auto-mode transmission tick.
func (d *Driver) hop() {
	if d.cursor < len(d.path) {
		d.visitNext()
	}
	if d.cursor >= len(d.path) {
		d.verify()
		return
	}
	d.autoNext()
}

func (d *Driver) verify() {
	compromised := ids.IsPathCompromised(d.path, d.graph)
	success := len(d.path) > 0 && !compromised
	hash := d.cfg.Hash(cryptosim.DecryptAES(d.ciphertext))
	d.lastHash = hash
	d.lastOK = &success

	d.setPhase(Verified)
	d.log.Info().Bool("success", success).Str("hash", hash).Msg("transmission complete")
	d.cfg.Observer.OnTransmissionComplete(success, hash)

	if d.cfg.Rand.Float64() < d.cfg.CompromiseProbability {
		epoch := d.epoch
		d.cfg.Scheduler.After(d.cfg.Timings.Compromise, func() {
			if d.epoch != epoch {
				return
			}
			d.Intrude()
		})
	}
	d.autoNext()
}

func (d *Driver) finish() {
	d.path = nil
	d.cursor = 0
	d.ciphertext = ""
	d.keys = nil
	d.setPhase(Idle)
}

// autoNext schedules the next auto-mode transition for the current phase.
func (d *Driver) autoNext() {
	if d.mode != ModeAuto {
		return
	}
	t := d.cfg.Timings
	switch d.phase {
	case PathFound:
		d.schedulePaced(t.Routing, PathFound, d.route)
	case Routed:
		d.schedulePaced(t.Launch, Routed, d.transmit)
	case Transmitting:
		d.schedulePaced(t.Hop, Transmitting, d.hop)
	case Verified:
		d.schedulePaced(t.Hold, Verified, d.finish)
	}
}

// schedulePaced runs fn later unless the run, the pacing or the phase has
// moved on in the meantime.
func (d *Driver) schedulePaced(delay time.Duration, expect Phase, fn func()) {
	epoch, pace := d.epoch, d.pace
	d.cfg.Scheduler.After(delay, func() {
		if d.epoch != epoch || d.pace != pace || d.phase != expect {
			return
		}
		fn()
	})
}

func (d *Driver) setPhase(to Phase) {
	from := d.phase
	d.phase = to
	d.step++
	d.log.Debug().Stringer("from", from).Stringer("to", to).Int("step", d.step).Msg("phase")
	d.cfg.Observer.OnPhaseChange(from, to)
}

// SetGraph swaps in a new graph and resets the run.
func (d *Driver) SetGraph(g *model.Graph) {
	d.Reset()
	d.graph = g
}
