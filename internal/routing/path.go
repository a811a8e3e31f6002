package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"secnetsim/internal/model"
)

// ErrBrokenPath is returned when consecutive hops share no link.
var ErrBrokenPath = errors.New("no link between consecutive hops")

// EdgeBetween returns the link joining a and b, if any.
func EdgeBetween(g *model.Graph, a, b string) (*model.Edge, bool) {
	for _, e := range g.Incident(a) {
		if e.Connects(a, b) {
			return e, true
		}
	}
	return nil, false
}

// PathCost sums the link weights along a path.
func PathCost(g *model.Graph, path []string) (float64, error) {
	total := 0.0
	for i := 1; i < len(path); i++ {
		e, ok := EdgeBetween(g, path[i-1], path[i])
		if !ok {
			return 0, fmt.Errorf("%w: %s-%s", ErrBrokenPath, path[i-1], path[i])
		}
		total += e.Weight
	}
	return total, nil
}

// MarshalJSON writes unreachable distances as null, since JSON has no infinity.
func (r *Result) MarshalJSON() ([]byte, error) {
	type plain Result

	distances := make(map[string]*float64, len(r.Distances))
	for id, d := range r.Distances {
		if math.IsInf(d, 1) {
			distances[id] = nil
			continue
		}
		v := d
		distances[id] = &v
	}

	return json.Marshal(struct {
		*plain
		Distances map[string]*float64 `json:"distances"`
		Cost      *float64            `json:"cost"`
	}{
		plain:     (*plain)(r),
		Distances: distances,
		Cost:      distances[r.Target],
	})
}
