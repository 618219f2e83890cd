package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

// Memory is an in-process Store used by tests and the dry-run CLI.
type Memory struct {
	mu       sync.RWMutex
	expenses map[string][]*domain.Expense
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{expenses: make(map[string][]*domain.Expense)}
}

func (m *Memory) ListExpenses(ctx context.Context, userID string) ([]*domain.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Expense, 0, len(m.expenses[userID]))
	for _, e := range m.expenses[userID] {
		cp := *e
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (m *Memory) CreateExpense(ctx context.Context, e *domain.Expense) error {
	if err := Prepare(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.expenses[e.UserID] = append(m.expenses[e.UserID], &cp)
	return nil
}
