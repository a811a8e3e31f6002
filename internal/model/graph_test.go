package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeNodes() []*Node {
	a := NewNode("A", "Server 1", CategoryServer)
	a.Sender = true
	b := NewNode("B", "Router 2", CategoryRouter)
	c := NewNode("C", "Computer 3", CategoryComputer)
	c.Receiver = true
	return []*Node{a, b, c}
}

func TestComputeWeight(t *testing.T) {
	assert.Equal(t, 0.0, ComputeWeight(0, 0, 0))
	assert.Equal(t, 3.0+2.0+2*4.0, ComputeWeight(3, 2, 4))

	e := NewEdge("e", "A", "B", LinkFiber, 1, 1, 1)
	assert.Equal(t, 4.0, e.Weight)
}

func TestNewGraph_Valid(t *testing.T) {
	nodes := threeNodes()
	edges := []*Edge{
		NewEdge("ab", "A", "B", LinkEthernet, 1, 1, 0.5),
		NewEdge("bc", "B", "C", LinkWiFi, 2, 0, 1),
	}

	g, err := NewGraph(nodes, edges)
	require.NoError(t, err)

	assert.Equal(t, "A", g.Sender().ID)
	assert.Equal(t, "C", g.Receiver().ID)
	assert.True(t, g.Has("B"))
	assert.False(t, g.Has("Z"))
	assert.True(t, g.Sender().Endpoint())
	assert.False(t, g.Nodes[1].Endpoint())
	assert.Len(t, g.Incident("B"), 2)
	assert.Equal(t, 1, g.Degree("A"))
	assert.Equal(t, "C", Opposite(edges[1], "B"))
	assert.Equal(t, "Router 2", g.Label("B"))
	assert.Equal(t, "Z", g.Label("Z"))
}

func TestNewGraph_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		edges []*Edge
		mut   func([]*Node) []*Node
		want  error
	}{
		{
			name:  "unknown endpoint",
			edges: []*Edge{NewEdge("e", "A", "Z", LinkWiFi, 1, 1, 1)},
			want:  ErrUnknownEndpoint,
		},
		{
			name:  "self loop",
			edges: []*Edge{NewEdge("e", "A", "A", LinkWiFi, 1, 1, 1)},
			want:  ErrSelfLoop,
		},
		{
			name: "parallel edge reversed",
			edges: []*Edge{
				NewEdge("e1", "A", "B", LinkWiFi, 1, 1, 1),
				NewEdge("e2", "B", "A", LinkFiber, 1, 1, 1),
			},
			want: ErrParallelEdge,
		},
		{
			name:  "negative cost",
			edges: []*Edge{NewEdge("e", "A", "B", LinkWiFi, -1, 1, 1)},
			want:  ErrInvalidCost,
		},
		{
			name:  "bad link category",
			edges: []*Edge{NewEdge("e", "A", "B", LinkCategory("smoke-signal"), 1, 1, 1)},
			want:  ErrInvalidCategory,
		},
		{
			name: "duplicate node",
			mut: func(n []*Node) []*Node {
				return append(n, NewNode("A", "again", CategoryIoT))
			},
			want: ErrDuplicateNode,
		},
		{
			name: "two senders",
			mut: func(n []*Node) []*Node {
				n[1].Sender = true
				return n
			},
			want: ErrMultipleSenders,
		},
		{
			name: "two receivers",
			mut: func(n []*Node) []*Node {
				n[0].Receiver = true
				return n
			},
			want: ErrMultipleReceivers,
		},
		{
			name: "empty id",
			mut: func(n []*Node) []*Node {
				return append(n, NewNode("", "nameless", CategoryIoT))
			},
			want: ErrEmptyNodeID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := threeNodes()
			if tt.mut != nil {
				nodes = tt.mut(nodes)
			}
			_, err := NewGraph(nodes, tt.edges)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewGraph_MissingEndpointsAllowed(t *testing.T) {
	nodes := []*Node{NewNode("A", "A", CategoryIoT), NewNode("B", "B", CategoryIoT)}
	g, err := NewGraph(nodes, nil)
	require.NoError(t, err)
	assert.Nil(t, g.Sender())
	assert.Nil(t, g.Receiver())
}

func TestCategories(t *testing.T) {
	for _, c := range NodeCategories {
		assert.True(t, c.Valid(), c)
		assert.NotEqual(t, "???", CategoryIcon(c))
	}
	assert.False(t, NodeCategory("toaster").Valid())
	assert.Equal(t, "Iot", CategoryIoT.Title())
	assert.Equal(t, "Server", CategoryServer.Title())
}
