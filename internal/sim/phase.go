package sim

import "fmt"

// Phase is the driver's lifecycle position.
type Phase int

const (
	Idle Phase = iota
	PathFound
	Routed
	Transmitting
	Verified
)

var phaseNames = [...]string{"idle", "path-found", "routed", "transmitting", "verified"}

func (p Phase) String() string {
	if p < Idle || p > Verified {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Title is the phase name for display.
func (p Phase) Title() string {
	switch p {
	case Idle:
		return "Idle"
	case PathFound:
		return "Path Found"
	case Routed:
		return "Routed"
	case Transmitting:
		return "Transmitting"
	case Verified:
		return "Verified"
	}
	return p.String()
}

// MarshalText lets phases appear by name in JSON and YAML.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Mode selects who advances the simulation.
type Mode int

const (
	ModeAuto Mode = iota
	ModeManual
)

func (m Mode) String() string {
	if m == ModeManual {
		return "manual"
	}
	return "auto"
}

// MarshalText renders the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts "auto" or "manual".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "auto", "":
		return ModeAuto, nil
	case "manual":
		return ModeManual, nil
	}
	return ModeAuto, fmt.Errorf("unknown mode %q", s)
}

// State is a snapshot of the driver. Slices and maps are copies.
type State struct {
	Phase       Phase             `json:"phase"`
	Mode        Mode              `json:"mode"`
	Path        []string          `json:"path"`
	Cost        float64           `json:"cost"`
	Step        int               `json:"step"`
	Cursor      int               `json:"cursor"`
	Epoch       uint64            `json:"epoch"`
	Ciphertext  string            `json:"ciphertext,omitempty"`
	Keys        map[string]string `json:"keys,omitempty"`
	LastHash    string            `json:"lastHash,omitempty"`
	LastSuccess *bool             `json:"lastSuccess,omitempty"`
}

// Visited reports whether the hop at path index i has been reported.
func (s State) Visited(i int) bool {
	return s.Phase >= Transmitting && i < s.Cursor
}
