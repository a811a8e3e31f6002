package topology

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"secnetsim/internal/model"
)

// File is the YAML form of a graph.
type File struct {
	Nodes []NodeYAML `yaml:"nodes"`
	Edges []EdgeYAML `yaml:"edges"`
}

// NodeYAML is one node entry.
type NodeYAML struct {
	ID          string          `yaml:"id"`
	Label       string          `yaml:"label,omitempty"`
	Category    string          `yaml:"category"`
	Sender      bool            `yaml:"sender,omitempty"`
	Receiver    bool            `yaml:"receiver,omitempty"`
	Compromised bool            `yaml:"compromised,omitempty"`
	Position    *model.Position `yaml:"position,omitempty"`
}

// EdgeYAML is one edge entry. Weight is never read; it is derived from the costs.
type EdgeYAML struct {
	ID       string  `yaml:"id,omitempty"`
	From     string  `yaml:"from"`
	To       string  `yaml:"to"`
	Category string  `yaml:"category"`
	Latency  float64 `yaml:"latency"`
	Overhead float64 `yaml:"overhead"`
	Risk     float64 `yaml:"risk"`
	Weight   float64 `yaml:"weight,omitempty"`
}

// LoadFile reads a topology from path.
func LoadFile(path string) (*model.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open topology: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a topology. Nodes without positions are laid
// out on the default circle.
func Load(r io.Reader) (*model.Graph, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}

	nodes := make([]*model.Node, 0, len(file.Nodes))
	needLayout := false
	for _, ny := range file.Nodes {
		label := ny.Label
		if label == "" {
			label = ny.ID
		}
		n := model.NewNode(ny.ID, label, model.NodeCategory(ny.Category))
		n.Sender = ny.Sender
		n.Receiver = ny.Receiver
		n.Compromised = ny.Compromised
		if ny.Position != nil {
			n.Position = *ny.Position
		} else {
			needLayout = true
		}
		nodes = append(nodes, n)
	}
	if needLayout {
		DefaultLayout().Apply(nodes)
	}

	edges := make([]*model.Edge, 0, len(file.Edges))
	for i, ey := range file.Edges {
		id := ey.ID
		if id == "" {
			id = fmt.Sprintf("edge-%d", i)
		}
		edges = append(edges, model.NewEdge(id, ey.From, ey.To, model.LinkCategory(ey.Category), ey.Latency, ey.Overhead, ey.Risk))
	}

	g, err := model.NewGraph(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	return g, nil
}

// SaveFile writes g to path, replacing any existing file.
func SaveFile(path string, g *model.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create topology: %w", err)
	}
	if err := Save(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Save writes g in the format Load reads.
func Save(w io.Writer, g *model.Graph) error {
	var file File
	for _, n := range g.Nodes {
		pos := n.Position
		file.Nodes = append(file.Nodes, NodeYAML{
			ID:          n.ID,
			Label:       n.Label,
			Category:    string(n.Category),
			Sender:      n.Sender,
			Receiver:    n.Receiver,
			Compromised: n.Compromised,
			Position:    &pos,
		})
	}
	for _, e := range g.Edges {
		file.Edges = append(file.Edges, EdgeYAML{
			ID:       e.ID,
			From:     e.From,
			To:       e.To,
			Category: string(e.Category),
			Latency:  e.Latency,
			Overhead: e.EncryptionOverhead,
			Risk:     e.SecurityRisk,
			Weight:   e.Weight,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return fmt.Errorf("failed to encode topology: %w", err)
	}
	return enc.Close()
}
