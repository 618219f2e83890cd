// Package firestore is the Firebase-backed store for expenses, custom
// presets and import sessions.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/store"
)

const (
	expensesCollection = "expenses"
	presetsCollection  = "expense-presets"
	sessionsCollection = "expense-import-sessions"
)

// Client wraps Firestore client with expense-specific operations
type Client struct {
	Firestore *firestore.Client
	Auth      *auth.Client
	projectID string
}

// NewClient creates a new Firestore client. credentialsFile may be empty to
// use Application Default Credentials.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*Client, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("failed to create Auth client: %w", err)
	}

	return &Client{
		Firestore: firestoreClient,
		Auth:      authClient,
		projectID: projectID,
	}, nil
}

// Close closes the Firestore client
func (c *Client) Close() error {
	return c.Firestore.Close()
}

// ListExpenses retrieves all expenses for a user, newest first
func (c *Client) ListExpenses(ctx context.Context, userID string) ([]*domain.Expense, error) {
	iter := c.Firestore.Collection(expensesCollection).
		Where("userId", "==", userID).
		OrderBy("date", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	expenses := []*domain.Expense{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate expenses for user %s: %w", userID, err)
		}

		var e domain.Expense
		if err := doc.DataTo(&e); err != nil {
			return nil, fmt.Errorf("failed to parse expense: %w", err)
		}
		expenses = append(expenses, &e)
	}

	return expenses, nil
}

// CreateExpense validates and writes a new expense
func (c *Client) CreateExpense(ctx context.Context, e *domain.Expense) error {
	if err := store.Prepare(e); err != nil {
		return err
	}
	if _, err := c.Firestore.Collection(expensesCollection).Doc(e.ID).Set(ctx, e); err != nil {
		return fmt.Errorf("failed to write expense %s: %w", e.ID, err)
	}
	return nil
}

// presetDoc holds one user's custom presets.
type presetDoc struct {
	UserID  string          `firestore:"userId"`
	Presets []domain.Preset `firestore:"presets"`
}

// Get returns the user's custom presets. A user without a document has none.
func (c *Client) Get(ctx context.Context, userID string) ([]domain.Preset, error) {
	doc, err := c.Firestore.Collection(presetsCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return []domain.Preset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presets for user %s: %w", userID, err)
	}

	var pd presetDoc
	if err := doc.DataTo(&pd); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	if pd.Presets == nil {
		pd.Presets = []domain.Preset{}
	}
	return pd.Presets, nil
}

// Save replaces the user's custom presets.
func (c *Client) Save(ctx context.Context, userID string, presets []domain.Preset) error {
	if presets == nil {
		presets = []domain.Preset{}
	}
	_, err := c.Firestore.Collection(presetsCollection).Doc(userID).Set(ctx, presetDoc{UserID: userID, Presets: presets})
	if err != nil {
		return fmt.Errorf("failed to save presets for user %s: %w", userID, err)
	}
	return nil
}

// RecordSession creates or overwrites an import session
func (c *Client) RecordSession(ctx context.Context, session *domain.ImportSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	_, err := c.Firestore.Collection(sessionsCollection).Doc(session.ID).Set(ctx, session)
	return err
}

// GetSession retrieves an import session by ID
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.ImportSession, error) {
	doc, err := c.Firestore.Collection(sessionsCollection).Doc(sessionID).Get(ctx)
	if err != nil {
		return nil, err
	}

	var session domain.ImportSession
	if err := doc.DataTo(&session); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	return &session, nil
}

// ListSessions retrieves the most recent import sessions for a user
func (c *Client) ListSessions(ctx context.Context, userID string) ([]*domain.ImportSession, error) {
	iter := c.Firestore.Collection(sessionsCollection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Limit(50).
		Documents(ctx)
	defer iter.Stop()

	var sessions []*domain.ImportSession
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate import sessions for user %s: %w", userID, err)
		}

		var sess domain.ImportSession
		if err := doc.DataTo(&sess); err != nil {
			return nil, fmt.Errorf("failed to parse session: %w", err)
		}
		sessions = append(sessions, &sess)
	}

	return sessions, nil
}
