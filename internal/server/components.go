package server

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/categorize"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/config"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/firestore"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parsers/pdf"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/presets"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/registry"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/rules"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/store"
)

// NewRegistry returns a parser registry whose PDF extractor is remote when
// an endpoint is configured and local otherwise.
func NewRegistry(cfg config.PDFConfig) (*registry.Registry, error) {
	if cfg.Endpoint == "" {
		return registry.New(pdf.NewLocalExtractor()), nil
	}
	extractor, err := pdf.NewRemoteExtractor(pdf.RemoteConfig{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF extractor: %w", err)
	}
	log.Info("using remote PDF extractor", "endpoint", cfg.Endpoint)
	return registry.New(extractor), nil
}

// NewCategorizer returns the HTTP categorizer when an endpoint is
// configured, else the keyword rules from RulesFile or the embedded set.
func NewCategorizer(cfg config.CategorizerConfig) (categorize.Categorizer, error) {
	if cfg.Endpoint != "" {
		c, err := categorize.NewHTTPCategorizer(categorize.HTTPConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create categorizer: %w", err)
		}
		log.Info("using remote categorizer", "endpoint", cfg.Endpoint)
		return c, nil
	}

	if cfg.RulesFile != "" {
		engine, err := rules.LoadFromFile(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules file: %w", err)
		}
		log.Debug("loaded custom rules", "file", cfg.RulesFile, "rules", len(engine.GetRules()))
		return engine, nil
	}

	engine, err := rules.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules: %w", err)
	}
	return engine, nil
}

// Backend is an opened expense store with the preset store that goes with it.
type Backend struct {
	Expenses store.Store
	Presets  presets.Store
	// Firebase is set when the Firestore backend is in use.
	Firebase *firestore.Client
	close    func() error
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend opens the configured store backend.
func OpenBackend(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.StoreFirestore:
		fs, err := firestore.NewClient(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return &Backend{Expenses: fs, Presets: fs, Firebase: fs, close: fs.Close}, nil

	case config.StoreMemory:
		return &Backend{Expenses: store.NewMemory(), Presets: presets.NewMemoryStore()}, nil

	case config.StoreSQLite:
		db, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		return &Backend{Expenses: db, Presets: presets.NewFileStore(cfg.Store.PresetsPath), close: db.Close}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
