// Package server exposes the Blackscope evaluation pipeline over HTTP:
// a streaming NDJSON QA endpoint plus health, heartbeat and metrics routes.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/blackscope/blackscope/browser"
	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/pipeline/emit"
	"github.com/blackscope/blackscope/webclient"
)

// SessionFactory builds the per-run HTTP session used against the target.
type SessionFactory func() *webclient.Session

// BrowserFactory builds the per-run browser session. The returned cancel
// func tears the browser down when the run ends.
type BrowserFactory func(ctx context.Context) (browser.Driver, context.CancelFunc, error)

// Server routes HTTP traffic into the evaluation pipeline. Each QA request
// gets fresh node instances, its own HTTP session and its own browser.
type Server struct {
	registry   *pipeline.Registry
	order      []string
	newSession SessionFactory
	newBrowser BrowserFactory
	logger     *zap.Logger
	metrics    *pipeline.Metrics
	emitter    emit.Emitter
	gatherer   prometheus.Gatherer
	origins    []string
}

// Options configures a Server. Registry, Order, NewSession and NewBrowser are
// required; the rest default to no-ops.
type Options struct {
	Registry       *pipeline.Registry
	Order          []string
	NewSession     SessionFactory
	NewBrowser     BrowserFactory
	Logger         *zap.Logger
	Metrics        *pipeline.Metrics
	Emitter        emit.Emitter
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// New builds the server.
func New(opts Options) *Server {
	s := &Server{
		registry:   opts.Registry,
		order:      opts.Order,
		newSession: opts.NewSession,
		newBrowser: opts.NewBrowser,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		emitter:    opts.Emitter,
		gatherer:   opts.Gatherer,
		origins:    opts.AllowedOrigins,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.emitter == nil {
		s.emitter = emit.NewNullEmitter()
	}
	return s
}

// Handler returns the fully-routed HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/qa", s.handleQA).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/heartbeat", s.handleHeartbeat).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// URLRequest is the body of a QA request.
type URLRequest struct {
	URL string `json:"url"`
}

// UpdateMessage frames one pipeline message for the NDJSON stream.
type UpdateMessage struct {
	Type    string           `json:"type"`
	Content pipeline.Message `json:"content"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleQA runs the full pipeline against the requested URL, relaying every
// message to the client as one NDJSON record the moment it is produced.
func (s *Server) handleQA(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		http.Error(w, "request body must be JSON with a non-empty url", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID), zap.String("url", req.URL))

	nodes, err := s.registry.Build(s.order)
	if err != nil {
		log.Error("building pipeline nodes", zap.Error(err))
		http.Error(w, "pipeline configuration error", http.StatusInternalServerError)
		return
	}
	orch, err := pipeline.NewOrchestrator(nodes,
		pipeline.WithEmitter(s.emitter),
		pipeline.WithMetrics(s.metrics),
		pipeline.WithLogger(s.logger),
	)
	if err != nil {
		log.Error("building orchestrator", zap.Error(err))
		http.Error(w, "pipeline configuration error", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	driver, stopBrowser, err := s.newBrowser(ctx)
	if err != nil {
		log.Error("starting browser", zap.Error(err))
		http.Error(w, "browser unavailable", http.StatusServiceUnavailable)
		return
	}
	defer stopBrowser()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	log.Info("qa run started")
	result := orch.Run(ctx, runID, req.URL, s.newSession(), driver)
	defer result.Close()

	enc := json.NewEncoder(w)
	for {
		msg, ok := result.Next()
		if !ok {
			break
		}
		if err := enc.Encode(UpdateMessage{Type: "update", Content: msg}); err != nil {
			// Client went away; Close unwinds the producer.
			log.Info("qa stream consumer disconnected", zap.Error(err))
			return
		}
		flusher.Flush()
	}

	if _, err := result.Value(); err != nil {
		log.Error("qa run failed", zap.Error(err))
		return
	}
	log.Info("qa run complete")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
