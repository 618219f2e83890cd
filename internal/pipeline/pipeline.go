// Package pipeline runs an import end to end: parse a file into a review the
// user can inspect, then commit the accepted records to an expense store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/categorize"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/dedup"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/registry"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/store"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/streaming"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/transform"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/validate"
)

// ErrSessionNotFound is returned when committing an unknown or expired review.
var ErrSessionNotFound = errors.New("import session not found")

// ErrInvalidSelection is returned when a commit names records the review
// does not have.
var ErrInvalidSelection = errors.New("invalid record selection")

// reviewTTL bounds how long an uncommitted review is kept.
const reviewTTL = time.Hour

// SessionRecorder persists the audit record of each import.
type SessionRecorder interface {
	RecordSession(ctx context.Context, session *domain.ImportSession) error
}

// Config wires an Importer. Registry and Store are required.
type Config struct {
	Registry    *registry.Registry
	Store       store.Store
	Categorizer categorize.Categorizer
	// State remembers fingerprints of earlier commits. Optional.
	State *dedup.State
	// StatePath, when set, is where State is saved after each commit.
	StatePath string
	Hub       *streaming.StreamHub
	Sessions  SessionRecorder
	// Currency is stamped on committed expenses. Defaults to USD.
	Currency string
}

// Importer runs imports. Files are processed one at a time.
type Importer struct {
	cfg Config

	run sync.Mutex

	mu      sync.Mutex
	reviews map[string]*Review
}

// New creates an importer from cfg.
func New(cfg Config) (*Importer, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Currency == "" {
		cfg.Currency = transform.DefaultCurrency
	}
	if _, ok := validate.Currencies[cfg.Currency]; !ok {
		return nil, fmt.Errorf("unsupported currency: %s", cfg.Currency)
	}
	return &Importer{cfg: cfg, reviews: make(map[string]*Review)}, nil
}

// Record is one parsed expense with everything the review shows about it.
type Record struct {
	Index      int                      `json:"index"`
	Expense    domain.RawExpense        `json:"expense"`
	Category   domain.Category          `json:"category"`
	AI         categorize.Categorized   `json:"ai"`
	Warnings   []validate.AmountWarning `json:"warnings"`
	Duplicates []dedup.DuplicateMatch   `json:"duplicates"`
	// Imported is true when an earlier commit recorded the same fingerprint.
	Imported bool `json:"previouslyImported"`
}

// Review is the parsed, annotated content of one file awaiting commit.
type Review struct {
	SessionID string             `json:"sessionId"`
	UserID    string             `json:"-"`
	FileName  string             `json:"fileName"`
	Result    domain.ParseResult `json:"result"`
	Records   []Record           `json:"records"`
	// CategorizeError is set when categorization stopped early.
	CategorizeError string    `json:"categorizeError,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ParseOptions control the review step.
type ParseOptions struct {
	Categorize bool
}

// Parse parses f and annotates every expense with amount warnings, possible
// duplicates among the user's stored expenses and, when requested, a
// category. The review is kept until committed or expired.
func (im *Importer) Parse(ctx context.Context, userID string, f *parser.File, opts ParseOptions) (*Review, error) {
	im.run.Lock()
	defer im.run.Unlock()

	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	now := time.Now().UTC()
	review := &Review{
		SessionID: transform.GenerateSessionID(f.Name(), now),
		UserID:    userID,
		FileName:  f.Name(),
		CreatedAt: now,
	}

	review.Result = im.cfg.Registry.ParseFile(ctx, f)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	expenses := review.Result.Expenses
	log.Info("parsed import file", "session", review.SessionID, "file", f.Name(),
		"expenses", len(expenses), "errors", len(review.Result.Errors))

	categories := make([]categorize.Categorized, len(expenses))
	for i := range categories {
		categories[i] = categorize.Categorized{Category: domain.CategoryOther}
	}
	if opts.Categorize && im.cfg.Categorizer != nil && len(expenses) > 0 {
		got, err := categorize.Dispatch(ctx, im.cfg.Categorizer, expenses)
		categories = got
		if err != nil {
			review.CategorizeError = err.Error()
		}
	}

	existing, err := im.cfg.Store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing expenses: %w", err)
	}
	stored := make([]domain.Expense, 0, len(existing))
	for _, e := range existing {
		stored = append(stored, *e)
	}

	review.Records = make([]Record, 0, len(expenses))
	for i, e := range expenses {
		rec := Record{
			Index:    i,
			Expense:  e,
			Category: transform.ResolveCategory(categories[i], e.Category),
			AI:       categories[i],
			Warnings: validate.ValidateAmount(e.Amount),
			Duplicates: dedup.FindDuplicates(dedup.Candidate{
				Description: e.Description,
				Amount:      e.Amount,
				Date:        e.Date,
			}, stored),
		}
		if im.cfg.State != nil {
			rec.Imported = im.cfg.State.Seen(dedup.GenerateFingerprint(e.Date, e.Amount, e.Description))
		}
		review.Records = append(review.Records, rec)
	}

	im.record(ctx, &domain.ImportSession{
		ID:        review.SessionID,
		UserID:    userID,
		FileName:  review.FileName,
		FileType:  review.Result.FileType,
		Status:    domain.SessionStatusParsed,
		Stats:     domain.ImportStats{Parsed: len(expenses)},
		CreatedAt: now,
	})

	im.mu.Lock()
	im.evictLocked(now)
	im.reviews[review.SessionID] = review
	im.mu.Unlock()

	return review, nil
}

// Review returns a pending review owned by userID.
func (im *Importer) Review(userID, sessionID string) (*Review, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	r, ok := im.reviews[sessionID]
	if !ok || r.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return r, nil
}

// evictLocked drops reviews older than reviewTTL. Caller holds im.mu.
func (im *Importer) evictLocked(now time.Time) {
	for id, r := range im.reviews {
		if now.Sub(r.CreatedAt) > reviewTTL {
			delete(im.reviews, id)
		}
	}
}

func (im *Importer) record(ctx context.Context, session *domain.ImportSession) {
	if im.cfg.Sessions == nil {
		return
	}
	if err := im.cfg.Sessions.RecordSession(ctx, session); err != nil {
		log.Warn("failed to record import session", "session", session.ID, "err", err)
	}
}

func (im *Importer) broadcast(sessionID string, event streaming.SSEEvent) {
	if im.cfg.Hub != nil {
		im.cfg.Hub.Broadcast(sessionID, event)
	}
}
