// Package routing computes weighted routes over the simulated network.
package routing

import (
	"errors"
	"fmt"
	"math"

	"secnetsim/internal/model"
)

// ErrNodeNotFound is returned when a query names a node the graph lacks.
var ErrNodeNotFound = errors.New("node not found")

// Unreachable is the distance of a node no route reaches.
var Unreachable = math.Inf(1)

// Result is the outcome of one shortest-path query. It is built fresh per
// query and never shared with the graph.
type Result struct {
	Source     string             `json:"source"`
	Target     string             `json:"target"`
	Distances  map[string]float64 `json:"-"`
	Previous   map[string]string  `json:"previous"`   // "" when a node has no predecessor
	VisitOrder []string           `json:"visitOrder"` // Nodes in the order they were finalized
	Path       []string           `json:"path"`       // Empty when the target is unreachable
}

// Found reports whether a route exists.
func (r *Result) Found() bool {
	return len(r.Path) > 0
}

// Cost returns the distance to the target.
func (r *Result) Cost() float64 {
	return r.Distances[r.Target]
}

// ShortestPath runs Dijkstra from source to target over the undirected edge
// set. Compromised nodes are never used as intermediate hops; the source and
// target themselves are always allowed. Ties on the frontier go to the node
// inserted first into the graph.
func ShortestPath(g *model.Graph, sourceID, targetID string) (*Result, error) {
	if !g.Has(sourceID) {
		return nil, fmt.Errorf("%w: source %s", ErrNodeNotFound, sourceID)
	}
	if !g.Has(targetID) {
		return nil, fmt.Errorf("%w: target %s", ErrNodeNotFound, targetID)
	}

	res := &Result{
		Source:    sourceID,
		Target:    targetID,
		Distances: make(map[string]float64, len(g.Nodes)),
		Previous:  make(map[string]string, len(g.Nodes)),
		Path:      []string{},
	}
	for _, n := range g.Nodes {
		res.Distances[n.ID] = Unreachable
		res.Previous[n.ID] = ""
	}
	res.Distances[sourceID] = 0

	finalized := make(map[string]bool, len(g.Nodes))
	for {
		// Extract min (linear scan keeps insertion order on ties)
		current := ""
		best := Unreachable
		for _, n := range g.Nodes {
			if finalized[n.ID] {
				continue
			}
			if d := res.Distances[n.ID]; d < best {
				best = d
				current = n.ID
			}
		}
		if current == "" {
			break
		}

		finalized[current] = true
		res.VisitOrder = append(res.VisitOrder, current)
		if current == targetID {
			break
		}

		for _, edge := range g.Incident(current) {
			neighborID := model.Opposite(edge, current)
			if finalized[neighborID] {
				continue
			}
			if neighbor, _ := g.Node(neighborID); neighbor.Compromised && neighborID != targetID {
				continue
			}

			newDist := best + edge.Weight
			if newDist < res.Distances[neighborID] {
				res.Distances[neighborID] = newDist
				res.Previous[neighborID] = current
			}
		}
	}

	res.Path = reconstructPath(res, sourceID, targetID)
	return res, nil
}

// reconstructPath walks predecessors back from the target.
func reconstructPath(res *Result, sourceID, targetID string) []string {
	if sourceID == targetID {
		return []string{sourceID}
	}
	if math.IsInf(res.Distances[targetID], 1) {
		return []string{}
	}

	path := make([]string, 0)
	for node := targetID; node != ""; node = res.Previous[node] {
		path = append(path, node)
		if node == sourceID {
			break
		}
	}

	// Reverse path
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
