package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"secnetsim/internal/activity"
	"secnetsim/internal/ids"
	"secnetsim/internal/metrics"
	"secnetsim/internal/model"
	"secnetsim/internal/rng"
	"secnetsim/internal/routing"
	"secnetsim/internal/sim"
	"secnetsim/internal/topology"
)

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMD string

var validate = validator.New()

// Options configures NewServer.
type Options struct {
	Graph    *model.Graph
	Driver   sim.Config // Scheduler is replaced by the server's event loop
	Topology topology.Options
	Rand     rng.Source
	Metrics  *metrics.Registry
	Logger   zerolog.Logger
}

// Server exposes one simulation over HTTP. Every driver call runs on a
// single event loop goroutine, so handlers and timers never race.
type Server struct {
	loop     *sim.EventLoop
	driver   *sim.Driver
	feed     *activity.Feed
	metrics  *metrics.Registry
	topology topology.Options
	rand     rng.Source
	log      zerolog.Logger
	handler  http.Handler
}

// NewServer builds the server. Nothing is served until Run, and nothing is
// simulated until the event loop runs.
func NewServer(opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}
	if opts.Rand == nil {
		opts.Rand = rng.New(rng.Seed(0))
	}
	if opts.Topology.Nodes == 0 {
		opts.Topology = topology.DefaultOptions()
	}

	s := &Server{
		loop:     sim.NewEventLoop(),
		metrics:  opts.Metrics,
		topology: opts.Topology,
		rand:     opts.Rand,
		log:      opts.Logger.With().Str("component", "web").Logger(),
	}
	s.feed = activity.NewFeed(func() *model.Graph {
		if s.driver == nil {
			return opts.Graph
		}
		return s.driver.Graph()
	})

	observers := sim.Observers{s.feed, s.metrics}
	if opts.Driver.Observer != nil {
		observers = append(observers, opts.Driver.Observer)
	}
	cfg := opts.Driver
	cfg.Observer = observers
	cfg.Scheduler = s.loop
	cfg.Logger = opts.Logger
	s.driver = sim.NewDriver(opts.Graph, cfg)
	s.metrics.SetCompromised(len(ids.CompromisedNodes(opts.Graph.Nodes)))

	mux := http.NewServeMux()

	// Serve static files
	subFS, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /", http.FileServer(http.FS(subFS)))

	// API Endpoints
	mux.HandleFunc("GET /api/graph", s.handleGraph)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/topology", s.handleTopology)
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/help", handleHelp)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/advance", s.handleAdvance)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/intrude", s.handleIntrude)
	mux.HandleFunc("POST /api/mode", s.handleMode)
	mux.HandleFunc("POST /api/regenerate", s.handleRegenerate)
	mux.Handle("GET /metrics", s.metrics.Handler())

	s.handler = s.recoverMiddleware(s.metricsMiddleware(mux))
	return s
}

// Handler returns the HTTP handler, middleware included.
func (s *Server) Handler() http.Handler { return s.handler }

// Run drives the event loop and serves addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.loop.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("shutdown")
		}
	}()

	s.log.Info().Str("addr", addr).Msg("web server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// RunLoop drives only the event loop; tests serve Handler through httptest.
func (s *Server) RunLoop(ctx context.Context) error {
	return s.loop.Run(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

type graphResponse struct {
	Graph   *model.Graph    `json:"graph"`
	Result  *routing.Result `json:"result,omitempty"`
	Version string          `json:"version"`
}

type intrudeResponse struct {
	Alert *ids.Alert `json:"alert"`
	State sim.State  `json:"state"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"omitempty,oneof=auto manual"`
}

type regenerateRequest struct {
	Nodes   int     `json:"nodes" validate:"omitempty,gte=2,lte=200"`
	Density float64 `json:"density" validate:"gte=0,lte=1"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// do runs fn on the event loop, answering 503 if the loop has stopped.
func (s *Server) do(w http.ResponseWriter, fn func()) bool {
	if !s.loop.Do(fn) {
		writeError(w, http.StatusServiceUnavailable, "simulation stopped")
		return false
	}
	return true
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	var body []byte
	var err error
	if !s.do(w, func() {
		body, err = json.Marshal(graphResponse{
			Graph:   s.driver.Graph(),
			Result:  s.driver.Result(),
			Version: model.Version,
		})
	}) {
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode graph")
		writeError(w, http.StatusInternalServerError, "encoding graph failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// handleTopology exports the live network, compromise flags included, as a
// YAML file that --topology can load.
func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	var err error
	if !s.do(w, func() { err = topology.Save(&buf, s.driver.Graph()) }) {
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to export topology")
		writeError(w, http.StatusInternalServerError, "exporting topology failed")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="topology.yaml"`)
	w.Write(buf.Bytes())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var state sim.State
	if s.do(w, func() { state = s.driver.State() }) {
		writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	entries := s.feed.Entries()
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(entries) {
			entries = entries[:n]
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.step(w, s.driver.Start)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.step(w, s.driver.Advance)
}

// step runs a driver transition and answers with the resulting state.
func (s *Server) step(w http.ResponseWriter, fn func() error) {
	var state sim.State
	var err error
	if !s.do(w, func() {
		err = fn()
		state = s.driver.State()
	}) {
		return
	}
	if errors.Is(err, sim.ErrMissingEndpoint) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("driver step failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var state sim.State
	if s.do(w, func() {
		s.driver.Reset()
		state = s.driver.State()
	}) {
		writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) handleIntrude(w http.ResponseWriter, r *http.Request) {
	var resp intrudeResponse
	if s.do(w, func() {
		resp.Alert = s.driver.Intrude()
		resp.State = s.driver.State()
	}) {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, formatValidationError(err))
		return
	}

	var state sim.State
	if !s.do(w, func() {
		if req.Mode == "" {
			s.driver.ToggleMode()
		} else {
			mode, _ := sim.ParseMode(req.Mode)
			s.driver.SetMode(mode)
		}
		state = s.driver.State()
	}) {
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	req := regenerateRequest{Density: s.topology.Density}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, formatValidationError(err))
		return
	}
	opts := topology.Options{Nodes: req.Nodes, Density: req.Density}
	if opts.Nodes == 0 {
		opts.Nodes = s.topology.Nodes
	}

	var resp graphResponse
	var err error
	if !s.do(w, func() {
		var g *model.Graph
		g, err = topology.Generate(opts, s.rand)
		if err != nil {
			return
		}
		s.driver.SetGraph(g)
		s.metrics.SetCompromised(0)
		s.feed.Add(activity.KindInfo, "", fmt.Sprintf("Generated a new network with %d nodes and %d links", len(g.Nodes), len(g.Edges)))
		resp = graphResponse{Graph: g, Version: model.Version}
	}) {
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Info().Int("nodes", len(resp.Graph.Nodes)).Int("edges", len(resp.Graph.Edges)).Msg("regenerated topology")
	writeJSON(w, http.StatusOK, resp)
}

// decodeOptional decodes a JSON body if one was sent.
func decodeOptional(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", strings.ToLower(e.Field()), e.Param()))
		case "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", strings.ToLower(e.Field()), e.Tag(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", strings.ToLower(e.Field())))
		}
	}
	return strings.Join(msgs, "; ")
}

func handleHelp(w http.ResponseWriter, r *http.Request) {
	text := strings.ReplaceAll(helpMD, "{{VERSION}}", model.Version)

	w.Header().Set("Content-Type", "text/markdown")
	w.Write([]byte(text))
}
