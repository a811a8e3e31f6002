// Package ids simulates an intrusion detection system: it picks nodes to
// compromise and raises alerts about them. Nothing here inspects real traffic.
package ids

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"secnetsim/internal/model"
	"secnetsim/internal/rng"
)

// Severity grades an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is an informational IDS notice about one node.
type Alert struct {
	ID        string    `json:"id"`
	NodeID    string    `json:"nodeId"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// catalog pairs each severity with its message; alerts pick uniformly from it.
var catalog = []struct {
	severity Severity
	message  string
}{
	{SeverityLow, "Unusual network traffic detected"},
	{SeverityMedium, "Multiple failed authentication attempts"},
	{SeverityHigh, "Potential data exfiltration detected"},
	{SeverityCritical, "System compromise detected"},
}

// Severities lists the severities in ascending order.
func Severities() []Severity {
	out := make([]Severity, len(catalog))
	for i, c := range catalog {
		out[i] = c.severity
	}
	return out
}

// Detector makes the random IDS decisions.
type Detector struct {
	rand rng.Source
	now  func() time.Time
}

// NewDetector creates a detector drawing from src.
func NewDetector(src rng.Source) *Detector {
	return &Detector{rand: src, now: time.Now}
}

// CompromiseRandomNode flags one eligible node as compromised and returns it.
// Eligible nodes are not yet compromised and not in excludedIDs. It returns
// nil, and changes nothing, when no node is eligible.
func (d *Detector) CompromiseRandomNode(nodes []*model.Node, excludedIDs []string) *model.Node {
	eligible := make([]*model.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Compromised || slices.Contains(excludedIDs, n.ID) {
			continue
		}
		eligible = append(eligible, n)
	}
	if len(eligible) == 0 {
		return nil
	}

	target := eligible[d.rand.IntN(len(eligible))]
	target.Compromised = true
	return target
}

// GenerateAlert builds an alert for the node with a uniformly chosen severity.
func (d *Detector) GenerateAlert(nodeID string) Alert {
	c := catalog[d.rand.IntN(len(catalog))]
	return Alert{
		ID:        uuid.NewString(),
		NodeID:    nodeID,
		Severity:  c.severity,
		Message:   c.message,
		Timestamp: d.now(),
	}
}

// IsPathCompromised reports whether any hop of the path is currently compromised.
func IsPathCompromised(path []string, g *model.Graph) bool {
	for _, id := range path {
		if n, ok := g.Node(id); ok && n.Compromised {
			return true
		}
	}
	return false
}

// CompromisedNodes returns the compromised nodes in their original order.
func CompromisedNodes(nodes []*model.Node) []*model.Node {
	var out []*model.Node
	for _, n := range nodes {
		if n.Compromised {
			out = append(out, n)
		}
	}
	return out
}
