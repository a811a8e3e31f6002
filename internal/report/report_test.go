package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secnetsim/internal/model"
	"secnetsim/internal/rng"
	"secnetsim/internal/sim"
)

func triangle(t *testing.T, withSender bool) *model.Graph {
	t.Helper()
	a := model.NewNode("A", "Gateway", model.CategoryServer)
	a.Sender = withSender
	b := model.NewNode("B", "Relay", model.CategoryRouter)
	c := model.NewNode("C", "Laptop", model.CategoryComputer)
	c.Receiver = true
	g, err := model.NewGraph([]*model.Node{a, b, c}, []*model.Edge{
		model.NewEdge("ab", "A", "B", model.LinkFiber, 3, 0, 0),
		model.NewEdge("bc", "B", "C", model.LinkFiber, 4, 0, 0),
		model.NewEdge("ac", "A", "C", model.Link5G, 100, 0, 0),
	})
	require.NoError(t, err)
	return g
}

func TestRun_AutoCycles(t *testing.T) {
	r := Run(triangle(t, true), Options{
		Cycles: 2,
		Driver: sim.Config{CompromiseProbability: -1, Rand: rng.New(1)},
	})
	require.Len(t, r.Cycles, 2)
	for _, c := range r.Cycles {
		assert.Equal(t, []string{"A", "B", "C"}, c.Path)
		assert.Equal(t, []string{"A", "B", "C"}, c.Visits)
		assert.Equal(t, 7.0, c.Cost)
		assert.True(t, c.Success)
		assert.Equal(t, 12*time.Second, c.Elapsed)
	}
}

func TestRun_ManualMatchesAuto(t *testing.T) {
	r := Run(triangle(t, true), Options{
		Cycles: 1,
		Driver: sim.Config{Mode: sim.ModeManual, CompromiseProbability: -1, Rand: rng.New(1)},
	})
	require.Len(t, r.Cycles, 1)
	assert.Equal(t, []string{"A", "B", "C"}, r.Cycles[0].Visits)
	assert.Zero(t, r.Cycles[0].Elapsed)
}

func TestRun_IntrusionReroutesNextCycle(t *testing.T) {
	g := triangle(t, true)
	r := Run(g, Options{
		Cycles: 2,
		Driver: sim.Config{CompromiseProbability: 1, Rand: rng.New(3)},
	})
	require.Len(t, r.Cycles, 2)
	require.Len(t, r.Cycles[0].Alerts, 1)
	assert.Equal(t, "B", r.Cycles[0].Alerts[0].NodeID)

	assert.Equal(t, []string{"A", "C"}, r.Cycles[1].Path)
	assert.Equal(t, 100.0, r.Cycles[1].Cost)
	assert.Empty(t, r.Cycles[1].Alerts, "no node left to compromise")
}

func TestRun_MissingSender(t *testing.T) {
	r := Run(triangle(t, false), Options{Cycles: 3, Driver: sim.Config{Rand: rng.New(1)}})
	require.Len(t, r.Cycles, 1)
	assert.Contains(t, r.Cycles[0].Err, "missing endpoint")
}

func TestGenerateReport(t *testing.T) {
	text, err := GenerateReport(triangle(t, true), Options{
		Cycles:  1,
		Verbose: true,
		Seed:    9,
		Driver:  sim.Config{CompromiseProbability: -1, Rand: rng.New(9)},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "Secure Network Transmission Report\n"))
	assert.Contains(t, text, "Seed: 9")
	assert.Contains(t, text, "Sender: Gateway (A)   Receiver: Laptop (C)")
	assert.Contains(t, text, "path:   Gateway -> Relay -> Laptop (cost 7)")
	assert.Contains(t, text, "result: verified")
	assert.Contains(t, text, "visit B")
	assert.Contains(t, text, "Summary: 1 cycles, 1 verified, 0 failed, 0 alerts")
	assert.Contains(t, text, "Compromised: none")
}

func TestGenerateReport_MissingSender(t *testing.T) {
	text, err := GenerateReport(triangle(t, false), Options{Driver: sim.Config{Rand: rng.New(1)}})
	require.NoError(t, err)
	assert.Contains(t, text, "Sender: missing")
	assert.Contains(t, text, "error:  missing endpoint")
}
