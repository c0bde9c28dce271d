package ui

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"merlt/app"
	"merlt/ports"
)

// App is the HTTP surface: evaluator registration, opinion submission,
// consensus lookup, bias auditing, and refinement sessions streamed over SSE.
type App struct {
	router    *chi.Mux
	reviews   *app.ReviewService
	sessions  *app.SessionService
	producers []ports.OpinionProducer
}

// Config holds HTTP application configuration
type Config struct {
	Port string
}

// NewApp wires the HTTP application. The producer set is fixed at startup:
// every session run fans out over the same expert panel.
func NewApp(reviews *app.ReviewService, sessions *app.SessionService, producers []ports.OpinionProducer) *App {
	a := &App{
		router:    chi.NewRouter(),
		reviews:   reviews,
		sessions:  sessions,
		producers: producers,
	}

	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	// Review surface
	a.router.Post("/api/evaluators", a.handleRegisterEvaluator)
	a.router.Get("/api/evaluators/{id}", a.handleGetEvaluator)
	a.router.Post("/api/targets/{id}/votes", a.handleSubmitOpinion)
	a.router.Get("/api/targets/{id}/consensus", a.handleGetConsensus)

	// Bias auditing
	a.router.Post("/api/targets/{id}/bias-audit", a.handleRunBiasAudit)
	a.router.Get("/api/targets/{id}/bias-reports", a.handleListBiasReports)
	a.router.Get("/api/bias-reports", a.handleListBiasReportsByTime)

	// Refinement sessions
	a.router.Post("/api/sessions", a.handleRunSession)
	a.router.Get("/api/sessions/{id}", a.handleGetSession)
	a.router.Get("/api/sessions/{id}/answer", a.handleRenderAnswer)

	a.router.Get("/health", a.handleHealth)
}

// Start starts the HTTP server
func (a *App) Start(port string) error {
	addr := ":" + port
	log.Printf("Starting consensus engine server on %s", addr)
	return http.ListenAndServe(addr, a.router)
}

// Router exposes the mux for tests
func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// JSON helpers

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
