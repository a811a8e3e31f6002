package model

// LinkCategory is the transport technology of a link.
type LinkCategory string

const (
	LinkWiFi     LinkCategory = "wifi"
	LinkEthernet LinkCategory = "ethernet"
	Link5G       LinkCategory = "5g"
	LinkFiber    LinkCategory = "fiber"
)

// LinkCategories lists every link category in a stable order.
var LinkCategories = []LinkCategory{LinkWiFi, LinkEthernet, Link5G, LinkFiber}

// Valid reports whether c is one of the known link categories.
func (c LinkCategory) Valid() bool {
	for _, known := range LinkCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Edge is an undirected link between two nodes.
type Edge struct {
	ID                 string       `json:"id"`
	From               string       `json:"from"`
	To                 string       `json:"to"`
	Category           LinkCategory `json:"category"`
	Latency            float64      `json:"latency"`
	EncryptionOverhead float64      `json:"encryptionOverhead"`
	SecurityRisk       float64      `json:"securityRisk"`
	Weight             float64      `json:"weight"` // Derived once by NewEdge, never recomputed
}

// ComputeWeight combines the cost components of a link. Security risk counts double.
func ComputeWeight(latency, encryptionOverhead, securityRisk float64) float64 {
	return latency + encryptionOverhead + 2*securityRisk
}

// NewEdge creates a link and derives its weight.
func NewEdge(id, from, to string, category LinkCategory, latency, encryptionOverhead, securityRisk float64) *Edge {
	return &Edge{
		ID:                 id,
		From:               from,
		To:                 to,
		Category:           category,
		Latency:            latency,
		EncryptionOverhead: encryptionOverhead,
		SecurityRisk:       securityRisk,
		Weight:             ComputeWeight(latency, encryptionOverhead, securityRisk),
	}
}

// Touches reports whether the edge is incident to the node.
func (e *Edge) Touches(id string) bool {
	return e.From == id || e.To == id
}

// Connects reports whether the edge joins a and b, in either direction.
func (e *Edge) Connects(a, b string) bool {
	return (e.From == a && e.To == b) || (e.From == b && e.To == a)
}
