package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

//go:embed schema.sql
var schema string

// SQLite stores expenses in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

const expenseColumns = `id, user_id, description, amount, date, category, currency,
	is_auto_categorized, source, notes, created_at`

func (s *SQLite) ListExpenses(ctx context.Context, userID string) ([]*domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? ORDER BY date DESC, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses for user %s: %w", userID, err)
	}
	defer rows.Close()

	expenses := []*domain.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// GetExpense returns one expense owned by userID.
func (s *SQLite) GetExpense(ctx context.Context, userID, id string) (*domain.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? AND id = ?`, userID, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *SQLite) CreateExpense(ctx context.Context, e *domain.Expense) error {
	if err := Prepare(e); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Description, e.Amount, e.Date, string(e.Category), e.Currency,
		e.IsAutoCategorized, string(e.Source), e.Notes, e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(sc rowScanner) (*domain.Expense, error) {
	var (
		e         domain.Expense
		category  string
		source    string
		createdAt string
	)
	err := sc.Scan(&e.ID, &e.UserID, &e.Description, &e.Amount, &e.Date, &category, &e.Currency,
		&e.IsAutoCategorized, &source, &e.Notes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}
	e.Category = domain.Category(category)
	e.Source = domain.Source(source)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}
