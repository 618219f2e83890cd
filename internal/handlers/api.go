package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/categorize"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/middleware"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/output"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/presets"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/store"
)

// APIHandler handles expense, preset and categorization requests
type APIHandler struct {
	store       store.Store
	presets     *presets.Manager
	categorizer categorize.Categorizer
	now         func() time.Time
}

// NewAPIHandler creates a new API handler. categorizer may be nil, in which
// case POST /api/categorize answers 503.
func NewAPIHandler(st store.Store, pm *presets.Manager, categorizer categorize.Categorizer) *APIHandler {
	return &APIHandler{
		store:       st,
		presets:     pm,
		categorizer: categorizer,
		now:         time.Now,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "err", err)
	}
}

// GetExpenses handles GET /api/expenses
func (h *APIHandler) GetExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	expenses, err := h.store.ListExpenses(r.Context(), userID)
	if err != nil {
		log.Error("failed to list expenses", "user", userID, "err", err)
		http.Error(w, "Failed to fetch expenses", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, expenses)
}

// ExportExpenses handles GET /api/expenses/export. format=html renders the
// printable report; anything else downloads CSV.
func (h *APIHandler) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	expenses, err := h.store.ListExpenses(r.Context(), userID)
	if err != nil {
		log.Error("failed to list expenses for export", "user", userID, "err", err)
		http.Error(w, "Failed to fetch expenses", http.StatusInternalServerError)
		return
	}

	now := h.now()
	if strings.EqualFold(r.URL.Query().Get("format"), "html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := output.WriteExpensesReport(w, expenses, now); err != nil {
			log.Error("failed to write expense report", "user", userID, "err", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, output.ExportFilename(now, "csv")))
	if err := output.WriteExpensesCSV(w, expenses); err != nil {
		log.Error("failed to write CSV export", "user", userID, "err", err)
	}
}

// GetPresets handles GET /api/presets
func (h *APIHandler) GetPresets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	all, err := h.presets.All(r.Context(), userID)
	if err != nil {
		log.Error("failed to load presets", "user", userID, "err", err)
		http.Error(w, "Failed to fetch presets", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, all)
}

// CreatePreset handles POST /api/presets
func (h *APIHandler) CreatePreset(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var p domain.Preset
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&p); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	added, err := h.presets.Add(r.Context(), userID, p)
	if errors.Is(err, presets.ErrInvalid) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error("failed to add preset", "user", userID, "err", err)
		http.Error(w, "Failed to save preset", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, added)
}

// DeletePreset handles DELETE /api/presets/{id}
func (h *APIHandler) DeletePreset(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	err := h.presets.Remove(r.Context(), userID, r.PathValue("id"))
	if errors.Is(err, presets.ErrNotFound) {
		http.Error(w, "Preset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("failed to remove preset", "user", userID, "err", err)
		http.Error(w, "Failed to delete preset", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Categorize handles POST /api/categorize. Request and response bodies use
// the same shape HTTPCategorizer speaks, so one deployment can categorize
// for another.
func (h *APIHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserID(r.Context()); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if h.categorizer == nil {
		writeJSON(w, http.StatusServiceUnavailable, categorize.Response{Error: "Categorization is not configured"})
		return
	}

	var req categorize.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, categorize.Response{Error: "Invalid request body"})
		return
	}
	if len(req.Expenses) == 0 {
		writeJSON(w, http.StatusBadRequest, categorize.Response{Error: "No expenses provided"})
		return
	}
	if len(req.Expenses) > categorize.MaxItemsPerRequest {
		writeJSON(w, http.StatusBadRequest, categorize.Response{
			Error: fmt.Sprintf("Maximum %d expenses per request", categorize.MaxItemsPerRequest),
		})
		return
	}

	results, err := h.categorizer.Categorize(r.Context(), req.Expenses)
	if err != nil {
		log.Error("categorization failed", "items", len(req.Expenses), "err", err)
		writeJSON(w, http.StatusInternalServerError, categorize.Response{Error: "Failed to categorize expenses. Please try again."})
		return
	}

	out := make([]categorize.Result, 0, len(results))
	for _, res := range results {
		category, confidence := categorize.Coerce(res)
		out = append(out, categorize.Result{Index: res.Index, Category: string(category), Confidence: confidence})
	}
	writeJSON(w, http.StatusOK, categorize.Response{Categorizations: out})
}
