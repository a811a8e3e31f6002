// Package activity turns driver notifications into the human-readable log
// shown by the front ends.
package activity

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"secnetsim/internal/ids"
	"secnetsim/internal/model"
	"secnetsim/internal/sim"
)

// MaxEntries bounds the feed; older entries fall off the end.
const MaxEntries = 100

// Kind groups entries for display.
type Kind string

const (
	KindIDS  Kind = "ids"
	KindKey  Kind = "key"
	KindPath Kind = "path"
	KindInfo Kind = "info"
)

// Entry is one line of the feed.
type Entry struct {
	ID        string       `json:"id"`
	Kind      Kind         `json:"kind"`
	Severity  ids.Severity `json:"severity,omitempty"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
}

// Feed is a sim.Observer keeping the latest entries, newest first. It is
// safe to read while the driver writes to it.
type Feed struct {
	sim.NopObserver

	mu      sync.RWMutex
	entries []Entry
	graph   func() *model.Graph
	now     func() time.Time
}

// NewFeed creates a feed that resolves node labels through graph.
func NewFeed(graph func() *model.Graph) *Feed {
	f := &Feed{graph: graph, now: time.Now}
	f.Add(KindInfo, "", "Welcome to the Secure Network Transmission Simulator")
	return f
}

// Add records an entry.
func (f *Feed) Add(kind Kind, severity ids.Severity, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := Entry{ID: uuid.NewString(), Kind: kind, Severity: severity, Message: msg, Timestamp: f.now()}
	f.entries = append([]Entry{e}, f.entries...)
	if len(f.entries) > MaxEntries {
		f.entries = f.entries[:MaxEntries]
	}
}

// Entries returns a copy of the feed, newest first.
func (f *Feed) Entries() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Entry(nil), f.entries...)
}

// Len is the number of entries held.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

func (f *Feed) label(id string) string {
	if g := f.graph(); g != nil {
		return g.Label(id)
	}
	return id
}

func (f *Feed) OnPathChange(path []string, compromised bool) {
	if len(path) == 0 {
		f.Add(KindPath, "", "No route from sender to receiver")
		return
	}
	from, to := "sender", "receiver"
	if g := f.graph(); g != nil {
		if s := g.Sender(); s != nil {
			from = s.Label
		}
		if r := g.Receiver(); r != nil {
			to = r.Label
		}
	}
	f.Add(KindPath, "", fmt.Sprintf("Path calculated from %s to %s with %d hops", from, to, len(path)))
	if compromised {
		f.Add(KindIDS, ids.SeverityHigh, "Calculated path contains compromised nodes. Rerouting...")
	}
}

func (f *Feed) OnNodeVisit(nodeID string) {
	f.Add(KindInfo, "", "Visited node: "+f.label(nodeID))
}

func (f *Feed) OnTransmissionComplete(success bool, hash string) {
	if success {
		f.Add(KindInfo, "", "Transmission completed successfully. Data integrity verified.")
		return
	}
	f.Add(KindIDS, ids.SeverityCritical, "Transmission compromised! Data integrity verification failed.")
}

func (f *Feed) OnIDSAlert(alert ids.Alert) {
	f.Add(KindIDS, alert.Severity, fmt.Sprintf("Node %s compromised! %s.", f.label(alert.NodeID), alert.Message))
}

func (f *Feed) OnPhaseChange(_, to sim.Phase) {
	switch to {
	case sim.Routed:
		f.Add(KindInfo, "", "Route locked in. Preparing encrypted transmission.")
	case sim.Transmitting:
		f.Add(KindInfo, "", "Payload encrypted with AES-256. Transmitting packets.")
	}
}

func (f *Feed) OnKeyRotation(keys map[string]string, emergency bool) {
	if emergency {
		f.Add(KindKey, "", "DKMS initiated emergency key rotation for all nodes")
		return
	}
	f.Add(KindKey, "", fmt.Sprintf("DKMS distributed session keys to %d nodes", len(keys)))
}
