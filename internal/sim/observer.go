package sim

import (
	"fmt"

	"secnetsim/internal/ids"
)

// Observer receives the driver's notifications. Calls are made synchronously
// from whatever goroutine drives the simulation; return values are ignored.
type Observer interface {
	OnPathChange(path []string, compromised bool)
	OnNodeVisit(nodeID string)
	OnTransmissionComplete(success bool, hash string)
	OnIDSAlert(alert ids.Alert)
	OnPhaseChange(from, to Phase)
	// OnKeyRotation reports a DKMS key exchange. emergency marks the
	// re-keying that follows an alert while a packet is in flight.
	OnKeyRotation(keys map[string]string, emergency bool)
}

// NopObserver ignores everything. Embed it to implement only some callbacks.
type NopObserver struct{}

func (NopObserver) OnPathChange([]string, bool)           {}
func (NopObserver) OnNodeVisit(string)                    {}
func (NopObserver) OnTransmissionComplete(bool, string)   {}
func (NopObserver) OnIDSAlert(ids.Alert)                  {}
func (NopObserver) OnPhaseChange(Phase, Phase)            {}
func (NopObserver) OnKeyRotation(map[string]string, bool) {}

// Observers fans every notification out in order.
type Observers []Observer

func (o Observers) OnPathChange(path []string, compromised bool) {
	for _, ob := range o {
		ob.OnPathChange(path, compromised)
	}
}

func (o Observers) OnNodeVisit(nodeID string) {
	for _, ob := range o {
		ob.OnNodeVisit(nodeID)
	}
}

func (o Observers) OnTransmissionComplete(success bool, hash string) {
	for _, ob := range o {
		ob.OnTransmissionComplete(success, hash)
	}
}

func (o Observers) OnIDSAlert(alert ids.Alert) {
	for _, ob := range o {
		ob.OnIDSAlert(alert)
	}
}

func (o Observers) OnPhaseChange(from, to Phase) {
	for _, ob := range o {
		ob.OnPhaseChange(from, to)
	}
}

func (o Observers) OnKeyRotation(keys map[string]string, emergency bool) {
	for _, ob := range o {
		ob.OnKeyRotation(keys, emergency)
	}
}

// EventKind tags a recorded notification.
type EventKind string

const (
	EventPath     EventKind = "path"
	EventVisit    EventKind = "visit"
	EventComplete EventKind = "complete"
	EventAlert    EventKind = "alert"
	EventPhase    EventKind = "phase"
	EventKeys     EventKind = "keys"
)

// Event is one recorded notification.
type Event struct {
	Kind        EventKind
	Path        []string
	NodeID      string
	Compromised bool
	Success     bool
	Hash        string
	Alert       ids.Alert
	From, To    Phase
	Keys        int
	Emergency   bool
}

func (e Event) String() string {
	switch e.Kind {
	case EventPath:
		return fmt.Sprintf("path %v compromised=%t", e.Path, e.Compromised)
	case EventVisit:
		return "visit " + e.NodeID
	case EventComplete:
		return fmt.Sprintf("complete success=%t hash=%s", e.Success, e.Hash)
	case EventAlert:
		return fmt.Sprintf("alert %s %s", e.Alert.NodeID, e.Alert.Severity)
	case EventPhase:
		return fmt.Sprintf("phase %s -> %s", e.From, e.To)
	case EventKeys:
		if e.Emergency {
			return fmt.Sprintf("emergency keys rotated for %d nodes", e.Keys)
		}
		return fmt.Sprintf("keys rotated for %d nodes", e.Keys)
	}
	return string(e.Kind)
}

// Recorder keeps every notification it sees, in order.
type Recorder struct {
	Events []Event
}

func (r *Recorder) OnPathChange(path []string, compromised bool) {
	r.Events = append(r.Events, Event{Kind: EventPath, Path: append([]string(nil), path...), Compromised: compromised})
}

func (r *Recorder) OnNodeVisit(nodeID string) {
	r.Events = append(r.Events, Event{Kind: EventVisit, NodeID: nodeID})
}

func (r *Recorder) OnTransmissionComplete(success bool, hash string) {
	r.Events = append(r.Events, Event{Kind: EventComplete, Success: success, Hash: hash})
}

func (r *Recorder) OnIDSAlert(alert ids.Alert) {
	r.Events = append(r.Events, Event{Kind: EventAlert, Alert: alert, NodeID: alert.NodeID})
}

func (r *Recorder) OnPhaseChange(from, to Phase) {
	r.Events = append(r.Events, Event{Kind: EventPhase, From: from, To: to})
}

func (r *Recorder) OnKeyRotation(keys map[string]string, emergency bool) {
	r.Events = append(r.Events, Event{Kind: EventKeys, Keys: len(keys), Emergency: emergency})
}

// Kinds filters the recorded events.
func (r *Recorder) Kinds(kind EventKind) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Visits returns the visited node ids in order.
func (r *Recorder) Visits() []string {
	var out []string
	for _, e := range r.Kinds(EventVisit) {
		out = append(out, e.NodeID)
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.Events = nil
}
