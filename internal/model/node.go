package model

import "strings"

// NodeCategory is the kind of simulated device.
type NodeCategory string

const (
	CategoryServer   NodeCategory = "server"
	CategoryComputer NodeCategory = "computer"
	CategoryIoT      NodeCategory = "iot"
	CategoryRouter   NodeCategory = "router"
)

// NodeCategories lists every category in a stable order (used for random assignment).
var NodeCategories = []NodeCategory{CategoryServer, CategoryComputer, CategoryIoT, CategoryRouter}

// Valid reports whether c is one of the known categories.
func (c NodeCategory) Valid() bool {
	for _, known := range NodeCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Title returns the category with its first letter upper-cased ("iot" -> "Iot").
func (c NodeCategory) Title() string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Position is a 2D layout coordinate. Only rendering cares about it.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a simulated network device.
type Node struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	Category    NodeCategory `json:"category"`
	Position    Position     `json:"position"`
	Compromised bool         `json:"compromised"` // The only field that changes after construction
	Sender      bool         `json:"sender,omitempty"`
	Receiver    bool         `json:"receiver,omitempty"`
}

// NewNode creates an uncompromised node.
func NewNode(id, label string, category NodeCategory) *Node {
	return &Node{
		ID:       id,
		Label:    label,
		Category: category,
	}
}

// Endpoint reports whether the node is the sender or the receiver.
func (n *Node) Endpoint() bool {
	return n.Sender || n.Receiver
}
