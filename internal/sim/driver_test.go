package sim

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secnetsim/internal/cryptosim"
	"secnetsim/internal/model"
	"secnetsim/internal/rng"
)

// steered is a seeded source whose next choices can be forced.
type steered struct {
	*rand.Rand
	picks []int
	rolls []float64
}

func newSteered() *steered { return &steered{Rand: rng.New(99)} }

func (s *steered) IntN(n int) int {
	if len(s.picks) > 0 {
		v := s.picks[0]
		s.picks = s.picks[1:]
		return v % n
	}
	return s.Rand.IntN(n)
}

func (s *steered) Float64() float64 {
	if len(s.rolls) > 0 {
		v := s.rolls[0]
		s.rolls = s.rolls[1:]
		return v
	}
	return s.Rand.Float64()
}

type link struct {
	from, to string
	cost     float64
}

func graphOf(t *testing.T, sender, receiver string, names []string, links []link) *model.Graph {
	t.Helper()
	nodes := make([]*model.Node, 0, len(names))
	for _, id := range names {
		n := model.NewNode(id, id, model.CategoryRouter)
		n.Sender = id == sender
		n.Receiver = id == receiver
		nodes = append(nodes, n)
	}
	edges := make([]*model.Edge, 0, len(links))
	for _, l := range links {
		edges = append(edges, model.NewEdge(l.from+l.to, l.from, l.to, model.LinkEthernet, l.cost, 0, 0))
	}
	g, err := model.NewGraph(nodes, edges)
	require.NoError(t, err)
	return g
}

// triangle is the three node graph below, sender A and receiver C.
//
//	A --3-- B --4-- C
//	 \_____100_____/
func triangle(t *testing.T) *model.Graph {
	return graphOf(t, "A", "C", []string{"A", "B", "C"}, []link{
		{"A", "B", 3}, {"B", "C", 4}, {"A", "C", 100},
	})
}

// detour offers a cheap path through B and a dearer one through E.
//
//	A --1-- B --1-- D
//	 \--5-- E --5--/
func detour(t *testing.T) *model.Graph {
	return graphOf(t, "A", "D", []string{"A", "B", "D", "E"}, []link{
		{"A", "B", 1}, {"B", "D", 1}, {"A", "E", 5}, {"E", "D", 5},
	})
}

type harness struct {
	driver *Driver
	clock  *VirtualClock
	rec    *Recorder
	rand   *steered
}

func newHarness(t *testing.T, g *model.Graph, mode Mode, prob float64) *harness {
	t.Helper()
	h := &harness{clock: NewVirtualClock(), rec: &Recorder{}, rand: newSteered()}
	h.driver = NewDriver(g, Config{
		Mode:                  mode,
		CompromiseProbability: prob,
		Observer:              h.rec,
		Scheduler:             h.clock,
		Rand:                  h.rand,
	})
	return h
}

func (h *harness) advance(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, h.driver.Advance())
	}
}

func (h *harness) phases() []Phase {
	var out []Phase
	for _, e := range h.rec.Kinds(EventPhase) {
		out = append(out, e.To)
	}
	return out
}

func TestDriver_StartWithoutSender(t *testing.T) {
	g := graphOf(t, "", "C", []string{"A", "B", "C"}, []link{{"A", "B", 1}, {"B", "C", 1}})
	h := newHarness(t, g, ModeManual, -1)

	err := h.driver.Start()
	require.ErrorIs(t, err, ErrMissingEndpoint)
	assert.Equal(t, Idle, h.driver.Phase())
	assert.Empty(t, h.rec.Events)

	require.ErrorIs(t, h.driver.Advance(), ErrMissingEndpoint)
	assert.Equal(t, Idle, h.driver.Phase())
}

func TestDriver_StartWithoutReceiver(t *testing.T) {
	g := graphOf(t, "A", "", []string{"A", "B"}, []link{{"A", "B", 1}})
	h := newHarness(t, g, ModeAuto, -1)

	require.ErrorIs(t, h.driver.Start(), ErrMissingEndpoint)
	assert.Equal(t, Idle, h.driver.Phase())
	assert.Zero(t, h.clock.Pending())
}

func TestDriver_ManualWalkthrough(t *testing.T) {
	h := newHarness(t, triangle(t), ModeManual, -1)

	h.advance(t, 1)
	assert.Equal(t, PathFound, h.driver.Phase())
	paths := h.rec.Kinds(EventPath)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"A", "B", "C"}, paths[0].Path)
	assert.False(t, paths[0].Compromised)
	assert.Equal(t, 7.0, h.driver.State().Cost)

	h.advance(t, 1)
	assert.Equal(t, Routed, h.driver.Phase())
	assert.Empty(t, h.rec.Visits())

	h.advance(t, 1)
	assert.Equal(t, Transmitting, h.driver.Phase())
	assert.Equal(t, cryptosim.EncryptAES(DefaultPayload), h.driver.State().Ciphertext)
	assert.Len(t, h.driver.State().Keys, 3)
	assert.Empty(t, h.rec.Visits(), "manual mode visits on the advance that verifies")

	h.advance(t, 1)
	assert.Equal(t, Verified, h.driver.Phase())
	assert.Equal(t, []string{"A", "B", "C"}, h.rec.Visits())
	done := h.rec.Kinds(EventComplete)
	require.Len(t, done, 1)
	assert.True(t, done[0].Success)
	assert.Equal(t, cryptosim.SimulateHash(DefaultPayload), done[0].Hash)

	h.advance(t, 1)
	assert.Equal(t, Idle, h.driver.Phase())
	assert.Empty(t, h.driver.State().Path)
	assert.Equal(t, []Phase{PathFound, Routed, Transmitting, Verified, Idle}, h.phases())
	assert.Equal(t, 5, h.driver.State().Step)
	assert.Zero(t, h.clock.Pending(), "manual mode schedules nothing")
}

func TestDriver_VisitsPrecedeCompletion(t *testing.T) {
	h := newHarness(t, triangle(t), ModeManual, -1)
	h.advance(t, 4)

	var order []EventKind
	for _, e := range h.rec.Events {
		if e.Kind == EventVisit || e.Kind == EventComplete {
			order = append(order, e.Kind)
		}
	}
	assert.Equal(t, []EventKind{EventVisit, EventVisit, EventVisit, EventComplete}, order)
}

func TestDriver_AutoPacing(t *testing.T) {
	h := newHarness(t, triangle(t), ModeAuto, -1)
	require.NoError(t, h.driver.Start())

	h.clock.Advance(3*time.Second - time.Millisecond)
	assert.Equal(t, PathFound, h.driver.Phase())
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, Routed, h.driver.Phase())

	h.clock.Advance(time.Second)
	assert.Equal(t, Transmitting, h.driver.Phase())
	assert.Empty(t, h.rec.Visits())

	h.clock.Advance(time.Second)
	assert.Equal(t, []string{"A"}, h.rec.Visits())
	h.clock.Advance(time.Second)
	assert.Equal(t, []string{"A", "B"}, h.rec.Visits())
	h.clock.Advance(time.Second)
	assert.Equal(t, []string{"A", "B", "C"}, h.rec.Visits())
	assert.Equal(t, Verified, h.driver.Phase())

	h.clock.Advance(5*time.Second - time.Millisecond)
	assert.Equal(t, Verified, h.driver.Phase())
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, Idle, h.driver.Phase())
	assert.Equal(t, 12*time.Second, h.clock.Now())
	assert.Zero(t, h.clock.Pending())
}

func TestDriver_CustomTimings(t *testing.T) {
	clock := NewVirtualClock()
	d := NewDriver(triangle(t), Config{
		Timings:               Timings{Routing: 10 * time.Millisecond, Launch: 10 * time.Millisecond, Hop: 10 * time.Millisecond, Hold: 10 * time.Millisecond},
		CompromiseProbability: -1,
		Scheduler:             clock,
		Rand:                  rng.New(1),
	})
	require.NoError(t, d.Start())
	clock.RunUntilIdle(100)

	assert.Equal(t, Idle, d.Phase())
	assert.Equal(t, 60*time.Millisecond, clock.Now())
}

func TestDriver_ResetDiscardsStaleTimers(t *testing.T) {
	h := newHarness(t, triangle(t), ModeAuto, -1)
	require.NoError(t, h.driver.Start())
	h.clock.Advance(5 * time.Second) // transmitting, A visited
	require.Equal(t, Transmitting, h.driver.Phase())
	require.Equal(t, []string{"A"}, h.rec.Visits())

	h.driver.Reset()
	assert.Equal(t, Idle, h.driver.Phase())
	assert.Empty(t, h.driver.State().Path)

	h.clock.RunUntilIdle(100)
	assert.Equal(t, Idle, h.driver.Phase(), "stale timer must not resurrect the run")
	assert.Equal(t, []string{"A"}, h.rec.Visits())
	assert.Empty(t, h.rec.Kinds(EventComplete))
}

func TestDriver_RestartAfterResetIgnoresOldRun(t *testing.T) {
	h := newHarness(t, triangle(t), ModeAuto, -1)
	require.NoError(t, h.driver.Start())
	h.clock.Advance(4500 * time.Millisecond)
	h.driver.Reset()
	require.NoError(t, h.driver.Start())
	h.rec.Reset()

	h.clock.RunUntilIdle(100)
	assert.Equal(t, []string{"A", "B", "C"}, h.rec.Visits())
	assert.Len(t, h.rec.Kinds(EventComplete), 1)
	assert.Equal(t, Idle, h.driver.Phase())
}

func TestDriver_StartOutsideIdleIsNoop(t *testing.T) {
	h := newHarness(t, triangle(t), ModeManual, -1)
	require.NoError(t, h.driver.Start())
	epoch := h.driver.State().Epoch

	require.NoError(t, h.driver.Start())
	assert.Equal(t, PathFound, h.driver.Phase())
	assert.Equal(t, epoch, h.driver.State().Epoch)
	assert.Len(t, h.rec.Kinds(EventPath), 1)
}

func TestDriver_SwitchToManualHoldsPhase(t *testing.T) {
	h := newHarness(t, triangle(t), ModeAuto, -1)
	require.NoError(t, h.driver.Start())

	assert.Equal(t, ModeManual, h.driver.ToggleMode())
	h.clock.RunUntilIdle(100)
	assert.Equal(t, PathFound, h.driver.Phase())

	assert.Equal(t, ModeAuto, h.driver.ToggleMode())
	h.clock.RunUntilIdle(100)
	assert.Equal(t, Idle, h.driver.Phase())
	assert.Equal(t, []string{"A", "B", "C"}, h.rec.Visits())
	assert.Len(t, h.rec.Kinds(EventComplete), 1)
}

func TestDriver_ManualAdvanceDuringAutoSkipsTimer(t *testing.T) {
	h := newHarness(t, triangle(t), ModeAuto, -1)
	require.NoError(t, h.driver.Start())
	h.advance(t, 1)
	assert.Equal(t, Routed, h.driver.Phase())

	h.clock.RunUntilIdle(100)
	assert.Equal(t, Idle, h.driver.Phase())
	assert.Equal(t, []string{"A", "B", "C"}, h.rec.Visits())
	assert.Len(t, h.rec.Kinds(EventComplete), 1)
	assert.Equal(t, []Phase{PathFound, Routed, Transmitting, Verified, Idle}, h.phases())
}

func TestDriver_IntrusionDuringManualTransmissionReroutes(t *testing.T) {
	h := newHarness(t, detour(t), ModeManual, -1)
	h.advance(t, 3)
	require.Equal(t, Transmitting, h.driver.Phase())
	require.Equal(t, []string{"A", "B", "D"}, h.driver.State().Path)

	h.rand.picks = []int{0} // B is the first eligible node
	alert := h.driver.Intrude()
	require.NotNil(t, alert)
	assert.Equal(t, "B", alert.NodeID)
	assert.Equal(t, Transmitting, h.driver.Phase())

	paths := h.rec.Kinds(EventPath)
	require.Len(t, paths, 2)
	assert.Equal(t, []string{"A", "E", "D"}, paths[1].Path)
	assert.False(t, paths[1].Compromised)

	h.advance(t, 1)
	assert.Equal(t, []string{"A", "E", "D"}, h.rec.Visits())
	done := h.rec.Kinds(EventComplete)
	require.Len(t, done, 1)
	assert.True(t, done[0].Success)
}

func TestDriver_IntrusionDuringAutoTransmissionReroutesPacket(t *testing.T) {
	h := newHarness(t, detour(t), ModeAuto, -1)
	require.NoError(t, h.driver.Start())
	h.clock.Advance(5 * time.Second)
	require.Equal(t, []string{"A"}, h.rec.Visits())

	h.rand.picks = []int{0}
	require.NotNil(t, h.driver.Intrude())
	keysBefore := len(h.rec.Kinds(EventKeys))

	h.clock.RunUntilIdle(100)
	assert.Equal(t, []string{"A", "E", "D"}, h.rec.Visits(), "new path reported once, in order")
	keys := h.rec.Kinds(EventKeys)
	require.Len(t, keys, keysBefore+1, "keys rotate after reroute")
	assert.True(t, keys[len(keys)-1].Emergency)
	assert.Len(t, h.rec.Kinds(EventComplete), 1)
	assert.Equal(t, Idle, h.driver.Phase())
}

func TestDriver_OffPathIntrusionKeepsPacketMoving(t *testing.T) {
	h := newHarness(t, detour(t), ModeAuto, -1)
	require.NoError(t, h.driver.Start())
	h.clock.Advance(6 * time.Second)
	require.Equal(t, []string{"A", "B"}, h.rec.Visits())

	h.rand.picks = []int{1} // E, off the path
	alert := h.driver.Intrude()
	require.NotNil(t, alert)
	require.Equal(t, "E", alert.NodeID)
	assert.Equal(t, []string{"A", "B", "D"}, h.driver.State().Path)
	assert.Equal(t, 2, h.driver.State().Cursor)

	h.clock.Advance(time.Second)
	assert.Equal(t, []string{"A", "B", "D"}, h.rec.Visits())
	done := h.rec.Kinds(EventComplete)
	require.Len(t, done, 1)
	assert.True(t, done[0].Success)
}

func TestDriver_VisitedNodeCompromisedBacksUpToSharedHop(t *testing.T) {
	h := newHarness(t, detour(t), ModeAuto, -1)
	require.NoError(t, h.driver.Start())
	h.clock.Advance(6 * time.Second)
	require.Equal(t, []string{"A", "B"}, h.rec.Visits())

	h.rand.picks = []int{0} // B, already visited
	require.NotNil(t, h.driver.Intrude())
	assert.Equal(t, 1, h.driver.State().Cursor, "only the sender is shared")

	h.clock.RunUntilIdle(100)
	assert.Equal(t, []string{"A", "B", "E", "D"}, h.rec.Visits())
	assert.Equal(t, []string{"E", "D"}, h.rec.Visits()[2:], "the detour is taken once")
	done := h.rec.Kinds(EventComplete)
	require.Len(t, done, 1)
	assert.True(t, done[0].Success)
}

func TestDriver_EmergencyRotationAfterVerifying(t *testing.T) {
	h := newHarness(t, detour(t), ModeManual, -1)
	h.advance(t, 3)
	require.NotNil(t, h.driver.Intrude())
	h.advance(t, 2)
	require.Equal(t, Idle, h.driver.Phase())

	h.clock.Advance(time.Second)
	keys := h.rec.Kinds(EventKeys)
	require.Len(t, keys, 2)
	assert.False(t, keys[0].Emergency)
	assert.True(t, keys[1].Emergency)
	assert.Nil(t, h.driver.State().Keys, "an idle driver holds no keys")
}

func TestDriver_EmergencyRotationDroppedByNewRun(t *testing.T) {
	h := newHarness(t, detour(t), ModeManual, -1)
	h.advance(t, 3)
	require.NotNil(t, h.driver.Intrude())
	h.advance(t, 3)
	require.Equal(t, PathFound, h.driver.Phase())

	h.clock.RunUntilIdle(10)
	for _, k := range h.rec.Kinds(EventKeys) {
		assert.False(t, k.Emergency)
	}
}

func TestDriver_IntrusionOutsideTransmissionKeepsPhase(t *testing.T) {
	h := newHarness(t, triangle(t), ModeManual, -1)
	h.advance(t, 2)
	require.Equal(t, Routed, h.driver.Phase())

	alert := h.driver.Intrude()
	require.NotNil(t, alert)
	assert.Equal(t, "B", alert.NodeID)
	assert.Equal(t, Routed, h.driver.Phase())
	assert.Equal(t, []string{"A", "C"}, h.driver.State().Path)
	assert.Equal(t, 100.0, h.driver.State().Cost)

	alerts := h.rec.Kinds(EventAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, "B", alerts[0].NodeID)

	assert.Nil(t, h.driver.Intrude(), "only the endpoints remain")
	assert.Len(t, h.rec.Kinds(EventAlert), 1)
}

func TestDriver_CompromiseAfterRoutingFailsVerification(t *testing.T) {
	h := newHarness(t, triangle(t), ModeManual, -1)
	h.advance(t, 3)

	b, _ := h.driver.Graph().Node("B")
	b.Compromised = true

	h.advance(t, 1)
	done := h.rec.Kinds(EventComplete)
	require.Len(t, done, 1)
	assert.False(t, done[0].Success)
	assert.False(t, *h.driver.State().LastSuccess)
}

func TestDriver_UnreachableReceiver(t *testing.T) {
	g := graphOf(t, "A", "C", []string{"A", "B", "C"}, []link{{"A", "B", 1}})
	h := newHarness(t, g, ModeAuto, -1)
	require.NoError(t, h.driver.Start())
	assert.Empty(t, h.driver.State().Path)

	h.clock.RunUntilIdle(100)
	assert.Empty(t, h.rec.Visits())
	done := h.rec.Kinds(EventComplete)
	require.Len(t, done, 1)
	assert.False(t, done[0].Success, "an empty path delivers nothing")
}

func TestDriver_CompromiseRoll(t *testing.T) {
	tests := []struct {
		name   string
		roll   float64
		alerts int
	}{
		{"below threshold", 0.29, 1},
		{"at threshold", 0.3, 0},
		{"well above", 0.95, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, detour(t), ModeManual, 0)
			h.rand.rolls = []float64{tt.roll}
			h.advance(t, 4)
			require.Equal(t, Verified, h.driver.Phase())

			h.clock.Advance(2*time.Second - time.Millisecond)
			assert.Empty(t, h.rec.Kinds(EventAlert))
			h.clock.Advance(time.Millisecond)
			assert.Len(t, h.rec.Kinds(EventAlert), tt.alerts)
		})
	}
}

func TestDriver_CompromiseRollCancelledByReset(t *testing.T) {
	h := newHarness(t, detour(t), ModeManual, 0)
	h.rand.rolls = []float64{0}
	h.advance(t, 4)
	h.driver.Reset()

	h.clock.RunUntilIdle(10)
	assert.Empty(t, h.rec.Kinds(EventAlert))
}

func TestDriver_HashCalledOncePerCompletion(t *testing.T) {
	calls := 0
	clock := NewVirtualClock()
	rec := &Recorder{}
	d := NewDriver(triangle(t), Config{
		Mode:                  ModeManual,
		CompromiseProbability: -1,
		Hash: func(s string) string {
			calls++
			return "digest:" + s
		},
		Observer:  rec,
		Scheduler: clock,
		Rand:      rng.New(5),
	})

	for run := 0; run < 3; run++ {
		for i := 0; i < 5; i++ {
			require.NoError(t, d.Advance())
		}
	}
	assert.Equal(t, 3, calls)
	done := rec.Kinds(EventComplete)
	require.Len(t, done, 3)
	assert.Equal(t, "digest:"+DefaultPayload, done[0].Hash)
}

func TestDriver_ResetForgetsRoute(t *testing.T) {
	h := newHarness(t, triangle(t), ModeManual, -1)
	h.advance(t, 2)
	require.NotNil(t, h.driver.Result())

	h.driver.Reset()
	assert.Nil(t, h.driver.Result())
	assert.Empty(t, h.driver.State().Path)
}

func TestDriver_ResetKeepsCompromise(t *testing.T) {
	h := newHarness(t, triangle(t), ModeManual, -1)
	h.advance(t, 2)
	require.NotNil(t, h.driver.Intrude())

	h.driver.Reset()
	b, _ := h.driver.Graph().Node("B")
	assert.True(t, b.Compromised)

	h.advance(t, 1)
	assert.Equal(t, []string{"A", "C"}, h.driver.State().Path)
}

func TestDriver_StepCounterIsMonotonic(t *testing.T) {
	h := newHarness(t, triangle(t), ModeManual, -1)
	last := h.driver.State().Step
	for i := 0; i < 12; i++ {
		if i == 7 {
			h.driver.Reset()
		} else {
			h.advance(t, 1)
		}
		step := h.driver.State().Step
		assert.GreaterOrEqual(t, step, last)
		last = step
	}
}

func TestDriver_SetGraph(t *testing.T) {
	h := newHarness(t, triangle(t), ModeManual, -1)
	h.advance(t, 2)

	h.driver.SetGraph(detour(t))
	assert.Equal(t, Idle, h.driver.Phase())
	assert.Nil(t, h.driver.Result())

	h.advance(t, 1)
	assert.Equal(t, []string{"A", "B", "D"}, h.driver.State().Path)
}

func TestDriver_StateIsACopy(t *testing.T) {
	h := newHarness(t, triangle(t), ModeManual, -1)
	h.advance(t, 3)

	s := h.driver.State()
	s.Path[0] = "Z"
	for k := range s.Keys {
		s.Keys[k] = "tampered"
	}
	fresh := h.driver.State()
	assert.Equal(t, "A", fresh.Path[0])
	for _, v := range fresh.Keys {
		assert.NotEqual(t, "tampered", v)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("manual")
	require.NoError(t, err)
	assert.Equal(t, ModeManual, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	_, err = ParseMode("turbo")
	assert.Error(t, err)
}

func TestPhaseNames(t *testing.T) {
	assert.Equal(t, "transmitting", Transmitting.String())
	assert.Equal(t, "Path Found", PathFound.Title())
	assert.Equal(t, "phase(9)", Phase(9).String())

	text, err := Verified.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "verified", string(text))
}
