// Package report runs the simulation headless on a virtual clock and
// renders what happened as plain text.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"secnetsim/internal/ids"
	"secnetsim/internal/model"
	"secnetsim/internal/routing"
	"secnetsim/internal/sim"
)

// maxCallbacks bounds one cycle on the virtual clock.
const maxCallbacks = 10_000

// Options controls Run.
type Options struct {
	Cycles  int
	Verbose bool
	Seed    uint64
	// Driver is used as given except for Scheduler, which Run supplies,
	// and Observer, which Run wraps.
	Driver sim.Config
}

// Cycle is one start-to-idle run.
type Cycle struct {
	Index   int           `json:"index"`
	Path    []string      `json:"path"`
	Cost    float64       `json:"cost"`
	Visits  []string      `json:"visits"`
	Success bool          `json:"success"`
	Hash    string        `json:"hash"`
	Alerts  []ids.Alert   `json:"alerts,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
	Err     string        `json:"error,omitempty"`
	Events  []sim.Event   `json:"-"`
}

// Report is the outcome of Run.
type Report struct {
	Graph   *model.Graph `json:"-"`
	Mode    sim.Mode     `json:"mode"`
	Seed    uint64       `json:"seed"`
	Cycles  []Cycle      `json:"cycles"`
	Verbose bool         `json:"-"`
}

// Run drives opts.Cycles complete transmissions over g.
func Run(g *model.Graph, opts Options) *Report {
	if opts.Cycles < 1 {
		opts.Cycles = 1
	}
	clock := sim.NewVirtualClock()
	rec := &sim.Recorder{}

	cfg := opts.Driver
	cfg.Scheduler = clock
	if cfg.Observer != nil {
		cfg.Observer = sim.Observers{rec, cfg.Observer}
	} else {
		cfg.Observer = rec
	}
	d := sim.NewDriver(g, cfg)

	r := &Report{Graph: g, Mode: cfg.Mode, Seed: opts.Seed, Verbose: opts.Verbose}
	for i := 1; i <= opts.Cycles; i++ {
		rec.Reset()
		began := clock.Now()
		c := Cycle{Index: i}

		if err := d.Start(); err != nil {
			c.Err = err.Error()
			r.Cycles = append(r.Cycles, c)
			break
		}
		if cfg.Mode == sim.ModeManual {
			for d.Phase() != sim.Idle {
				_ = d.Advance()
			}
		}
		clock.RunUntilIdle(maxCallbacks)

		c.Elapsed = clock.Now() - began
		c.Events = append([]sim.Event(nil), rec.Events...)
		summarise(&c, g)
		r.Cycles = append(r.Cycles, c)
	}
	return r
}

func summarise(c *Cycle, g *model.Graph) {
	for _, e := range c.Events {
		switch e.Kind {
		case sim.EventPath:
			if c.Hash == "" {
				c.Path = e.Path
			}
		case sim.EventVisit:
			c.Visits = append(c.Visits, e.NodeID)
		case sim.EventComplete:
			c.Success = e.Success
			c.Hash = e.Hash
		case sim.EventAlert:
			c.Alerts = append(c.Alerts, e.Alert)
		}
	}
	if cost, err := routing.PathCost(g, c.Path); err == nil {
		c.Cost = cost
	}
}

// Write renders the report.
func (r *Report) Write(w io.Writer) error {
	var b strings.Builder
	title := "Secure Network Transmission Report"
	fmt.Fprintf(&b, "%s\n%s\n", title, strings.Repeat("=", len(title)))
	fmt.Fprintf(&b, "Mode: %s   Seed: %d   Nodes: %d   Links: %d\n", r.Mode, r.Seed, len(r.Graph.Nodes), len(r.Graph.Edges))
	fmt.Fprintf(&b, "Sender: %s   Receiver: %s\n", endpoint(r.Graph.Sender()), endpoint(r.Graph.Receiver()))

	verified, failed, alerts := 0, 0, 0
	for _, c := range r.Cycles {
		fmt.Fprintf(&b, "\nCycle %d (%s simulated)\n", c.Index, c.Elapsed)
		if c.Err != "" {
			fmt.Fprintf(&b, "  error:  %s\n", c.Err)
			continue
		}
		if len(c.Path) == 0 {
			b.WriteString("  path:   none (receiver unreachable)\n")
		} else {
			fmt.Fprintf(&b, "  path:   %s (cost %g)\n", r.hops(c.Path), c.Cost)
		}
		fmt.Fprintf(&b, "  visits: %s\n", r.hops(c.Visits))
		result := "FAILED"
		if c.Success {
			result = "verified"
			verified++
		} else {
			failed++
		}
		fmt.Fprintf(&b, "  result: %s, hash %s\n", result, c.Hash)
		for _, a := range c.Alerts {
			alerts++
			fmt.Fprintf(&b, "  alert:  [%s] %s: %s\n", a.Severity, r.Graph.Label(a.NodeID), a.Message)
		}
		if r.Verbose {
			b.WriteString("  events:\n")
			for _, e := range c.Events {
				fmt.Fprintf(&b, "    %s\n", e)
			}
		}
	}

	var compromised []string
	for _, n := range ids.CompromisedNodes(r.Graph.Nodes) {
		compromised = append(compromised, n.Label)
	}
	if len(compromised) == 0 {
		compromised = []string{"none"}
	}
	fmt.Fprintf(&b, "\nSummary: %d cycles, %d verified, %d failed, %d alerts\n", len(r.Cycles), verified, failed, alerts)
	fmt.Fprintf(&b, "Compromised: %s\n", strings.Join(compromised, ", "))

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Report) hops(path []string) string {
	if len(path) == 0 {
		return "-"
	}
	labels := make([]string, len(path))
	for i, id := range path {
		labels[i] = r.Graph.Label(id)
	}
	return strings.Join(labels, " -> ")
}

func endpoint(n *model.Node) string {
	if n == nil {
		return "missing"
	}
	return fmt.Sprintf("%s (%s)", n.Label, n.ID)
}

// GenerateReport runs the simulation and returns the rendered text.
func GenerateReport(g *model.Graph, opts Options) (string, error) {
	var b strings.Builder
	if err := Run(g, opts).Write(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}
