// Package topology builds simulation graphs, either randomly or from a YAML file.
package topology

import (
	"errors"
	"fmt"
	"math"

	"secnetsim/internal/model"
	"secnetsim/internal/rng"
)

const (
	DefaultNodes   = 8
	DefaultDensity = 0.4
	MinNodes       = 2
)

var ErrTooFewNodes = errors.New("topology needs at least two nodes")

// Options controls Generate.
type Options struct {
	Nodes   int     `json:"nodes" yaml:"nodes"`
	Density float64 `json:"density" yaml:"density"`
}

// DefaultOptions returns the stock generator settings.
func DefaultOptions() Options {
	return Options{Nodes: DefaultNodes, Density: DefaultDensity}
}

// Generate builds a random graph. Node 0 sends and node N/2 receives. Every
// node gets at least one link, but the graph as a whole may still be split,
// so the receiver is not guaranteed to be reachable.
func Generate(opts Options, src rng.Source) (*model.Graph, error) {
	if opts.Nodes < MinNodes {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewNodes, opts.Nodes)
	}

	nodes := make([]*model.Node, opts.Nodes)
	for i := range nodes {
		cat := model.NodeCategories[src.IntN(len(model.NodeCategories))]
		nodes[i] = model.NewNode(fmt.Sprintf("node-%d", i), fmt.Sprintf("%s %d", cat.Title(), i+1), cat)
	}
	nodes[0].Sender = true
	nodes[opts.Nodes/2].Receiver = true
	DefaultLayout().Apply(nodes)

	linked := make(map[[2]int]bool)
	var edges []*model.Edge
	connect := func(i, j int) {
		edges = append(edges, randomEdge(src, nodes, i, j))
		linked[[2]int{min(i, j), max(i, j)}] = true
	}

	for i := range nodes {
		attempts := int(math.Floor(2 + src.Float64()*3*opts.Density))
		for a := 0; a < attempts; a++ {
			var partners []int
			for j := range nodes {
				if j != i && !linked[[2]int{min(i, j), max(i, j)}] {
					partners = append(partners, j)
				}
			}
			if len(partners) == 0 {
				break
			}
			connect(i, partners[src.IntN(len(partners))])
		}
	}

	for i := range nodes {
		isolated := true
		for _, e := range edges {
			if e.Touches(nodes[i].ID) {
				isolated = false
				break
			}
		}
		if isolated {
			connect(i, (i+1)%len(nodes))
		}
	}

	return model.NewGraph(nodes, edges)
}

func randomEdge(src rng.Source, nodes []*model.Node, i, j int) *model.Edge {
	cat := model.LinkCategories[src.IntN(len(model.LinkCategories))]
	latency := float64(src.IntN(10) + 1)
	overhead := float64(src.IntN(5) + 1)
	risk := float64(src.IntN(10) + 1)
	return model.NewEdge(fmt.Sprintf("edge-%d-%d", i, j), nodes[i].ID, nodes[j].ID, cat, latency, overhead, risk)
}

// CircularLayout places nodes evenly around a circle.
type CircularLayout struct {
	Radius float64
	Center model.Position
}

// DefaultLayout is a 200 unit circle centred at (250, 250).
func DefaultLayout() CircularLayout {
	return CircularLayout{Radius: 200, Center: model.Position{X: 250, Y: 250}}
}

// Apply overwrites every node's position.
func (l CircularLayout) Apply(nodes []*model.Node) {
	if len(nodes) == 0 {
		return
	}
	step := 2 * math.Pi / float64(len(nodes))
	for i, n := range nodes {
		angle := float64(i) * step
		n.Position = model.Position{
			X: l.Center.X + l.Radius*math.Cos(angle),
			Y: l.Center.Y + l.Radius*math.Sin(angle),
		}
	}
}
