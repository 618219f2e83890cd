package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/config"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/dedup"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/firestore"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/handlers"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/middleware"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/pipeline"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/presets"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/streaming"
)

// Server represents the expense import API server
type Server struct {
	backend  *Backend
	auth     *firestore.Client
	verifier middleware.TokenVerifier
	importer *pipeline.Importer
	api      *handlers.APIHandler
	imports  *handlers.ImportHandlers
	mux      *http.ServeMux
	static   string
}

// New creates a new server instance from cfg
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := build(ctx, cfg, backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return s, nil
}

func build(ctx context.Context, cfg config.Config, backend *Backend) (_ *Server, err error) {
	s := &Server{
		backend: backend,
		mux:     http.NewServeMux(),
		static:  cfg.Server.StaticDir,
	}
	defer func() {
		if err != nil && s.auth != nil {
			s.auth.Close()
		}
	}()

	switch cfg.Server.Auth {
	case config.AuthStatic:
		verifier, err := middleware.ParseStaticTokens(cfg.Server.Tokens)
		if err != nil {
			return nil, err
		}
		log.Warn("static token auth enabled; do not use in production", "tokens", len(verifier))
		s.verifier = verifier
	default:
		fb := backend.Firebase
		if fb == nil {
			if cfg.Firebase.ProjectID == "" {
				return nil, fmt.Errorf("firebase.project_id is required for firebase auth")
			}
			if fb, err = firestore.NewClient(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile); err != nil {
				return nil, err
			}
			s.auth = fb
		}
		s.verifier = middleware.NewFirebaseVerifier(fb.Auth)
	}

	reg, err := NewRegistry(cfg.PDF)
	if err != nil {
		return nil, err
	}
	categorizer, err := NewCategorizer(cfg.Categorizer)
	if err != nil {
		return nil, err
	}

	var state *dedup.State
	if cfg.State.Path != "" {
		state, err = dedup.LoadOrNewState(cfg.State.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load state file %s: %w", cfg.State.Path, err)
		}
	}

	hub := streaming.NewStreamHub()
	pcfg := pipeline.Config{
		Registry:    reg,
		Store:       backend.Expenses,
		Categorizer: categorizer,
		State:       state,
		StatePath:   cfg.State.Path,
		Hub:         hub,
		Currency:    cfg.Currency,
	}
	if backend.Firebase != nil {
		pcfg.Sessions = backend.Firebase
	}
	s.importer, err = pipeline.New(pcfg)
	if err != nil {
		return nil, err
	}

	s.api = handlers.NewAPIHandler(backend.Expenses, presets.NewManager(backend.Presets), categorizer)
	s.imports = handlers.NewImportHandlers(s.importer, hub)

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check (no auth required)
	s.mux.HandleFunc("GET /health", handlers.HealthCheck)

	auth := middleware.NewAuthMiddleware(s.verifier)
	protect := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, auth.RequireAuth(h))
	}

	protect("GET /api/expenses", s.api.GetExpenses)
	protect("GET /api/expenses/export", s.api.ExportExpenses)
	protect("GET /api/presets", s.api.GetPresets)
	protect("POST /api/presets", s.api.CreatePreset)
	protect("DELETE /api/presets/{id}", s.api.DeletePreset)
	protect("POST /api/categorize", s.api.Categorize)

	protect("POST /api/import/parse", s.imports.Parse)
	protect("POST /api/import/commit", s.imports.Commit)
	protect("GET /api/import/{id}/events", s.imports.Events)

	// Static files for frontend (when deployed together)
	if s.static != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.static)))
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return middleware.CORS(s.mux)
}

// Close closes the server resources
func (s *Server) Close() error {
	err := s.backend.Close()
	if s.auth != nil {
		if authErr := s.auth.Close(); authErr != nil && err == nil {
			err = authErr
		}
	}
	return err
}
