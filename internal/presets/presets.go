// Package presets manages quick-entry expense templates: a fixed set of
// defaults plus custom presets kept per user in a Store.
package presets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/validate"
)

// ErrNotFound is returned when removing a preset that is not a custom preset.
var ErrNotFound = errors.New("preset not found")

// ErrInvalid wraps every preset validation failure.
var ErrInvalid = errors.New("invalid preset")

// Defaults are available to every user and cannot be removed.
var Defaults = []domain.Preset{
	{ID: "preset-coffee", Name: "Coffee", Description: "Morning coffee", Amount: 5, Category: domain.CategoryFood, Currency: "USD"},
	{ID: "preset-lunch", Name: "Lunch", Description: "Lunch meal", Amount: 15, Category: domain.CategoryFood, Currency: "USD"},
	{ID: "preset-gas", Name: "Gas/Fuel", Description: "Gas station fill-up", Amount: 50, Category: domain.CategoryTransport, Currency: "USD"},
	{ID: "preset-uber", Name: "Uber/Rideshare", Description: "Rideshare trip", Amount: 12, Category: domain.CategoryTransport, Currency: "USD"},
	{ID: "preset-groceries", Name: "Groceries", Description: "Weekly groceries", Amount: 75, Category: domain.CategoryFood, Currency: "USD"},
	{ID: "preset-netflix", Name: "Netflix", Description: "Monthly Netflix subscription", Amount: 15.99, Category: domain.CategorySubscriptions, Currency: "USD"},
	{ID: "preset-gym", Name: "Gym Membership", Description: "Monthly gym membership", Amount: 30, Category: domain.CategoryPersonal, Currency: "USD"},
	{ID: "preset-electric", Name: "Electric Bill", Description: "Monthly electric bill", Amount: 120, Category: domain.CategoryUtilities, Currency: "USD"},
	{ID: "preset-internet", Name: "Internet", Description: "Monthly internet service", Amount: 60, Category: domain.CategoryUtilities, Currency: "USD"},
}

// Store persists custom presets per user.
type Store interface {
	Get(ctx context.Context, userID string) ([]domain.Preset, error)
	Save(ctx context.Context, userID string, presets []domain.Preset) error
}

// Manager combines the defaults with a user's custom presets.
type Manager struct {
	store Store
}

// NewManager returns a manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// All returns the defaults followed by the user's custom presets.
func (m *Manager) All(ctx context.Context, userID string) ([]domain.Preset, error) {
	custom, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}
	all := make([]domain.Preset, 0, len(Defaults)+len(custom))
	all = append(all, Defaults...)
	return append(all, custom...), nil
}

// Add validates p, assigns it a fresh ID and appends it to the user's presets.
// An empty currency defaults to USD.
func (m *Manager) Add(ctx context.Context, userID string, p domain.Preset) (domain.Preset, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if err := validatePreset(p); err != nil {
		return domain.Preset{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	p.ID = uuid.New().String()

	custom, err := m.store.Get(ctx, userID)
	if err != nil {
		return domain.Preset{}, fmt.Errorf("failed to load presets: %w", err)
	}
	if err := m.store.Save(ctx, userID, append(custom, p)); err != nil {
		return domain.Preset{}, fmt.Errorf("failed to save presets: %w", err)
	}
	return p, nil
}

// Remove deletes one of the user's custom presets.
func (m *Manager) Remove(ctx context.Context, userID, id string) error {
	custom, err := m.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}

	kept := make([]domain.Preset, 0, len(custom))
	for _, p := range custom {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(custom) {
		return ErrNotFound
	}

	if err := m.store.Save(ctx, userID, kept); err != nil {
		return fmt.Errorf("failed to save presets: %w", err)
	}
	return nil
}

func validatePreset(p domain.Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset name is required")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("preset amount must be positive, got %v", p.Amount)
	}
	if !domain.ValidateCategory(p.Category) {
		return fmt.Errorf("invalid category: %s", p.Category)
	}
	if _, ok := validate.Currencies[p.Currency]; !ok {
		return fmt.Errorf("unsupported currency: %s", p.Currency)
	}
	return nil
}
