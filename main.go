package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"

	"secnetsim/internal/config"
	"secnetsim/internal/logging"
	"secnetsim/internal/metrics"
	"secnetsim/internal/model"
	"secnetsim/internal/report"
	"secnetsim/internal/rng"
	"secnetsim/internal/routing"
	"secnetsim/internal/sim"
	"secnetsim/internal/topology"
	"secnetsim/internal/tui"
	"secnetsim/internal/web"
)

func checkUpdate(currentVer string) {
	githubTag := &latest.GithubTag{
		Owner:      "secnetsim",
		Repository: "secnetsim",
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		log.Debug().Err(err).Msg("update check failed")
		return // Silently fail
	}

	if res.Outdated {
		fmt.Printf("\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Println("👉 Download it from https://github.com/secnetsim/secnetsim/releases")
	} else if pflag.Lookup("update").Changed {
		fmt.Printf("✅ You are using the latest version: %s\n", currentVer)
	}
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: secnetsim [options]\n\n")
		fmt.Fprintf(os.Stderr, "secnetsim simulates secure transmission across a small network.\n")
		fmt.Fprintf(os.Stderr, "Packets follow the cheapest route that avoids compromised nodes, and an\n")
		fmt.Fprintf(os.Stderr, "intrusion detection system compromises nodes as the simulation runs.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  secnetsim                    # Start TUI mode\n")
		fmt.Fprintf(os.Stderr, "  secnetsim --report -c 5      # Run five transmissions headless and print a report\n")
		fmt.Fprintf(os.Stderr, "  secnetsim -r -o r.txt        # Save report to file\n")
		fmt.Fprintf(os.Stderr, "  secnetsim --json --seed 42   # Output the network and its shortest path as JSON\n")
		fmt.Fprintf(os.Stderr, "  secnetsim --web              # Serve the simulator on http://localhost:8080\n")
	fmt.Fprintf(os.Stderr, "  secnetsim -s 7 --export-topology net.yaml  # Save a generated network for --topology\n")
	}

	jsonFlag := pflag.BoolP("json", "j", false, "Output the network and shortest path as JSON (with --report: the report)")
	reportFlag := pflag.BoolP("report", "r", false, "Run the simulation headless and print a report (CLI mode)")
	cyclesFlag := pflag.IntP("cycles", "c", 3, "Number of transmissions to run in report mode")
	outputFlag := pflag.StringP("output", "o", "", "Save report to the specified file (combined with --report)")
	verboseFlag := pflag.BoolP("verbose", "v", false, "Include every driver event in the report")
	webFlag := pflag.BoolP("web", "w", false, "Start Web Mode")
	addrFlag := pflag.String("addr", "", "Web Mode listen address (default localhost:8080)")
	configFlag := pflag.String("config", "", "Config file (default $SECNETSIM_CONFIG, ./secnetsim.yaml, ~/.config/secnetsim/config.yaml)")
	topologyFlag := pflag.StringP("topology", "t", "", "Load the network from a YAML file instead of generating one")
	nodesFlag := pflag.IntP("nodes", "n", topology.DefaultNodes, "Number of nodes in a generated network")
	densityFlag := pflag.Float64P("density", "d", topology.DefaultDensity, "Link density of a generated network (0-1)")
	seedFlag := pflag.Uint64P("seed", "s", 0, "Random seed; 0 picks one from the clock")
	manualFlag := pflag.BoolP("manual", "m", false, "Start in manual mode")
	logLevelFlag := pflag.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	logFileFlag := pflag.String("log-file", "", "Write logs to this file (TUI mode discards logs otherwise)")
	exportFlag := pflag.String("export-topology", "", "Write the network to this YAML file and exit")
	saveConfigFlag := pflag.String("save-config", "", "Write the effective settings to this YAML file and exit")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for latest version")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("secnetsim version %s\n", model.Version)
		return
	}

	if *updateFlag {
		checkUpdate(model.Version)
		return
	}

	cfg, path, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	changed := pflag.CommandLine.Changed
	if *topologyFlag != "" {
		cfg.Topology.File = *topologyFlag
	}
	if changed("nodes") {
		cfg.Topology.Nodes = *nodesFlag
	}
	if changed("density") {
		cfg.Topology.Density = *densityFlag
	}
	if changed("seed") {
		cfg.Simulation.Seed = *seedFlag
	}
	if *manualFlag {
		cfg.Simulation.Mode = sim.ModeManual.String()
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}
	if *logFileFlag != "" {
		cfg.Log.File = *logFileFlag
	}
	if *addrFlag != "" {
		cfg.Web.Addr = *addrFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid settings: %v\n", err)
		os.Exit(1)
	}

	if *saveConfigFlag != "" {
		if err := cfg.Save(*saveConfigFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config saved to %s\n", *saveConfigFlag)
		return
	}

	tuiMode := !*webFlag && !*reportFlag && !*jsonFlag
	closeLog, err := setupLogging(cfg, tuiMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog.Close()
	if path != "" {
		log.Debug().Str("path", path).Msg("loaded config")
	}

	seed := rng.Seed(cfg.Simulation.Seed)
	src := rng.New(seed)
	g, err := buildGraph(cfg, src)
	if err != nil {
		log.Error().Err(err).Msg("failed to build network")
		fmt.Fprintf(os.Stderr, "Error building network: %v\n", err)
		os.Exit(1)
	}
	log.Info().Uint64("seed", seed).Int("nodes", len(g.Nodes)).Int("edges", len(g.Edges)).Msg("network ready")

	if *exportFlag != "" {
		if err := topology.SaveFile(*exportFlag, g); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting network: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Network saved to %s (seed %d)\n", *exportFlag, seed)
		return
	}

	driverCfg := sim.Config{
		Mode:                  cfg.DriverMode(),
		Timings:               cfg.DriverTimings(),
		CompromiseProbability: cfg.DriverCompromiseProbability(),
		Payload:               cfg.Simulation.Payload,
		Rand:                  src,
		Logger:                log.Logger,
	}

	if *webFlag {
		runWebMode(cfg, g, driverCfg, src)
		return
	}

	if *reportFlag {
		runReportMode(g, report.Options{
			Cycles:  *cyclesFlag,
			Verbose: *verboseFlag,
			Seed:    seed,
			Driver:  driverCfg,
		}, *outputFlag, *jsonFlag)
		return
	}

	if *jsonFlag {
		runJsonMode(g, seed)
		return
	}

	// Default: TUI
	runTuiMode(cfg, g, driverCfg, src)
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// setupLogging installs the global logger. The TUI owns the terminal, so it
// only logs when a file was asked for.
func setupLogging(cfg *config.Config, tuiMode bool) (io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.Log.File != "" || tuiMode {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, err
		}
		out, closer = f, f
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: logging.Format(cfg.Log.Format)}, out)
	if err != nil {
		closer.Close()
		return nil, err
	}
	log.Logger = logger
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func buildGraph(cfg *config.Config, src rng.Source) (*model.Graph, error) {
	if cfg.Topology.File != "" {
		return topology.LoadFile(cfg.Topology.File)
	}
	return topology.Generate(cfg.TopologyOptions(), src)
}

func runReportMode(g *model.Graph, opts report.Options, outputFile string, asJSON bool) {
	var text string
	if asJSON {
		data, err := json.MarshalIndent(report.Run(g, opts), "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
			os.Exit(1)
		}
		text = string(data)
	} else {
		var err error
		text, err = report.GenerateReport(g, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
			os.Exit(1)
		}
	}

	if outputFile != "" {
		err := os.WriteFile(outputFile, []byte(text), 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report to %s: %v\n", outputFile, err)
			os.Exit(1)
		}
		fmt.Printf("Report saved to %s\n", outputFile)
	} else {
		fmt.Println(text)
	}
}

func runJsonMode(g *model.Graph, seed uint64) {
	out := struct {
		Version string          `json:"version"`
		Seed    uint64          `json:"seed"`
		Graph   *model.Graph    `json:"graph"`
		Result  *routing.Result `json:"result,omitempty"`
	}{Version: model.Version, Seed: seed, Graph: g}

	if s, r := g.Sender(), g.Receiver(); s != nil && r != nil {
		res, err := routing.ShortestPath(g, s.ID, r.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error computing path: %v\n", err)
			os.Exit(1)
		}
		out.Result = res
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func runWebMode(cfg *config.Config, g *model.Graph, driverCfg sim.Config, src rng.Source) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := web.NewServer(web.Options{
		Graph:    g,
		Driver:   driverCfg,
		Topology: cfg.TopologyOptions(),
		Rand:     src,
		Metrics:  metrics.NewRegistry(),
		Logger:   log.Logger,
	})

	fmt.Printf("Starting secnetsim web server at http://%s\n", cfg.Web.Addr)
	fmt.Printf("Go to http://%s in your browser.\n", cfg.Web.Addr)
	if err := srv.Run(ctx, cfg.Web.Addr); err != nil {
		log.Error().Err(err).Msg("web server stopped")
		os.Exit(1)
	}
}

func runTuiMode(cfg *config.Config, g *model.Graph, driverCfg sim.Config, src rng.Source) {
	m := tui.NewModel(tui.Options{
		Graph:    g,
		Driver:   driverCfg,
		Topology: cfg.TopologyOptions(),
		Rand:     src,
		Logger:   log.Logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
