package model

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateNode     = errors.New("duplicate node id")
	ErrEmptyNodeID       = errors.New("empty node id")
	ErrUnknownEndpoint   = errors.New("edge references unknown node")
	ErrSelfLoop          = errors.New("edge connects a node to itself")
	ErrParallelEdge      = errors.New("nodes already connected")
	ErrMultipleSenders   = errors.New("more than one sender")
	ErrMultipleReceivers = errors.New("more than one receiver")
	ErrInvalidCost       = errors.New("negative cost component")
	ErrInvalidCategory   = errors.New("unknown category")
)

// Graph is the simulated network. Node compromise flags are the only
// state that changes after NewGraph returns.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`

	index     map[string]int
	incidence map[string][]*Edge
}

// NewGraph validates nodes and edges and indexes them for lookup.
func NewGraph(nodes []*Node, edges []*Edge) (*Graph, error) {
	g := &Graph{
		Nodes:     nodes,
		Edges:     edges,
		index:     make(map[string]int, len(nodes)),
		incidence: make(map[string][]*Edge, len(nodes)),
	}

	var sender, receiver string
	for i, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: %w", i, ErrEmptyNodeID)
		}
		if _, dup := g.index[n.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		if !n.Category.Valid() {
			return nil, fmt.Errorf("node %s: %w %q", n.ID, ErrInvalidCategory, n.Category)
		}
		if n.Sender {
			if sender != "" {
				return nil, fmt.Errorf("%w: %s and %s", ErrMultipleSenders, sender, n.ID)
			}
			sender = n.ID
		}
		if n.Receiver {
			if receiver != "" {
				return nil, fmt.Errorf("%w: %s and %s", ErrMultipleReceivers, receiver, n.ID)
			}
			receiver = n.ID
		}
		g.index[n.ID] = i
		g.incidence[n.ID] = nil
	}

	for _, e := range edges {
		if !g.Has(e.From) || !g.Has(e.To) {
			return nil, fmt.Errorf("edge %s: %w (%s-%s)", e.ID, ErrUnknownEndpoint, e.From, e.To)
		}
		if e.From == e.To {
			return nil, fmt.Errorf("edge %s: %w", e.ID, ErrSelfLoop)
		}
		if e.Latency < 0 || e.EncryptionOverhead < 0 || e.SecurityRisk < 0 {
			return nil, fmt.Errorf("edge %s: %w", e.ID, ErrInvalidCost)
		}
		if !e.Category.Valid() {
			return nil, fmt.Errorf("edge %s: %w %q", e.ID, ErrInvalidCategory, e.Category)
		}
		for _, existing := range g.incidence[e.From] {
			if existing.Connects(e.From, e.To) {
				return nil, fmt.Errorf("edge %s: %w by %s", e.ID, ErrParallelEdge, existing.ID)
			}
		}
		g.incidence[e.From] = append(g.incidence[e.From], e)
		g.incidence[e.To] = append(g.incidence[e.To], e)
	}

	return g, nil
}

// Has reports whether a node with the id exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Node returns the node with the id.
func (g *Graph) Node(id string) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.Nodes[i], true
}

// Label returns the node label, falling back to the id.
func (g *Graph) Label(id string) string {
	if n, ok := g.Node(id); ok && n.Label != "" {
		return n.Label
	}
	return id
}

// Sender returns the sender node or nil.
func (g *Graph) Sender() *Node {
	for _, n := range g.Nodes {
		if n.Sender {
			return n
		}
	}
	return nil
}

// Receiver returns the receiver node or nil.
func (g *Graph) Receiver() *Node {
	for _, n := range g.Nodes {
		if n.Receiver {
			return n
		}
	}
	return nil
}

// Incident returns the edges touching the node, in insertion order.
func (g *Graph) Incident(id string) []*Edge {
	return g.incidence[id]
}

// Opposite returns the endpoint of e that is not id.
func Opposite(e *Edge, id string) string {
	if e.From == id {
		return e.To
	}
	return e.From
}

// Degree returns the number of links touching the node.
func (g *Graph) Degree(id string) int {
	return len(g.incidence[id])
}
