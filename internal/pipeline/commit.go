package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/dedup"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/streaming"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/transform"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/validate"
)

// CommitOptions select what a commit writes.
type CommitOptions struct {
	// SkipDuplicates leaves out records that match a stored expense or an
	// earlier commit.
	SkipDuplicates bool
	// Indexes selects records by review index. Empty commits every record.
	Indexes []int
	// Categories overrides the resolved category per review index.
	Categories map[int]domain.Category
}

// Outcome is what happened to one committed record.
type Outcome struct {
	Index     int                    `json:"index"`
	Status    streaming.RecordStatus `json:"status"`
	ExpenseID string                 `json:"expenseId,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// CommitResult summarizes a commit.
type CommitResult struct {
	SessionID string             `json:"sessionId"`
	Stats     domain.ImportStats `json:"stats"`
	Expenses  []*domain.Expense  `json:"expenses"`
	Outcomes  []Outcome          `json:"outcomes"`
}

// Commit writes the selected records of a pending review to the store. A
// record that fails validation or storage is reported and skipped; the rest
// are still written. Once records are selected the review is consumed.
func (im *Importer) Commit(ctx context.Context, userID, sessionID string, opts CommitOptions) (*CommitResult, error) {
	im.run.Lock()
	defer im.run.Unlock()

	im.mu.Lock()
	review, ok := im.reviews[sessionID]
	if !ok || review.UserID != userID {
		im.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	records, err := selectRecords(review.Records, opts.Indexes)
	if err != nil {
		im.mu.Unlock()
		return nil, err
	}
	delete(im.reviews, sessionID)
	im.mu.Unlock()

	result := &CommitResult{
		SessionID: sessionID,
		Stats:     domain.ImportStats{Parsed: len(review.Records)},
		Expenses:  []*domain.Expense{},
		Outcomes:  make([]Outcome, 0, len(records)),
	}

	// Build and validate the whole batch before writing anything.
	built := make([]*domain.Expense, len(records))
	buildErrs := make([]string, len(records))
	batch := make([]domain.Expense, 0, len(records))
	batchPos := make([]int, 0, len(records))
	for i, rec := range records {
		e, err := transform.ToExpense(transform.Input{
			UserID:   userID,
			Raw:      rec.Expense,
			AI:       rec.AI,
			FileType: review.Result.FileType,
			Currency: im.cfg.Currency,
			Override: opts.Categories[rec.Index],
		})
		if err != nil {
			buildErrs[i] = err.Error()
			continue
		}
		built[i] = e
		batch = append(batch, *e)
		batchPos = append(batchPos, i)
	}
	validation := validate.ValidateExpenses(batch)
	for b, i := range batchPos {
		if errs := validation.ErrorsAt(b); len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, ve := range errs {
				msgs = append(msgs, ve.Message)
			}
			buildErrs[i] = strings.Join(msgs, "; ")
		}
	}

	total := len(records)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			im.fail(ctx, review, result, err)
			return result, err
		}

		outcome := im.commitOne(ctx, rec, built[i], buildErrs[i], opts.SkipDuplicates)
		result.Outcomes = append(result.Outcomes, outcome)
		switch outcome.Status {
		case streaming.RecordImported:
			result.Stats.Imported++
			result.Expenses = append(result.Expenses, built[i])
		case streaming.RecordDuplicate:
			result.Stats.Duplicates++
		default:
			result.Stats.Failed++
		}

		event := streaming.RecordEvent{
			Index:       rec.Index,
			ExpenseID:   outcome.ExpenseID,
			Description: rec.Expense.Description,
			Amount:      rec.Expense.Amount,
			Date:        rec.Expense.Date,
			Status:      outcome.Status,
			Message:     outcome.Message,
		}
		if built[i] != nil {
			event.Category = built[i].Category
		}
		im.broadcast(sessionID, streaming.NewRecordEvent(event))
		im.broadcast(sessionID, streaming.NewProgressEvent(streaming.ProgressEvent{
			SessionID: sessionID,
			Stage:     streaming.StageCommitting,
			Processed: i + 1,
			Total:     total,
		}))
	}

	im.saveState()

	completed := time.Now().UTC()
	session := &domain.ImportSession{
		ID:          sessionID,
		UserID:      userID,
		FileName:    review.FileName,
		FileType:    review.Result.FileType,
		Status:      domain.SessionStatusCompleted,
		Stats:       result.Stats,
		CreatedAt:   review.CreatedAt,
		CompletedAt: &completed,
	}
	im.record(ctx, session)
	im.broadcast(sessionID, streaming.NewCompleteEvent(sessionEvent(session)))

	log.Info("committed import", "session", sessionID, "imported", result.Stats.Imported,
		"duplicates", result.Stats.Duplicates, "failed", result.Stats.Failed)
	return result, nil
}

func (im *Importer) commitOne(ctx context.Context, rec Record, e *domain.Expense, buildErr string, skipDuplicates bool) Outcome {
	out := Outcome{Index: rec.Index}

	if buildErr != "" {
		out.Status = streaming.RecordFailed
		out.Message = buildErr
		return out
	}

	if skipDuplicates {
		switch {
		case len(rec.Duplicates) > 0:
			out.Status = streaming.RecordDuplicate
			out.Message = rec.Duplicates[0].Reason
			return out
		case rec.Imported:
			out.Status = streaming.RecordDuplicate
			out.Message = "Already imported by an earlier commit"
			return out
		}
	}

	if err := im.cfg.Store.CreateExpense(ctx, e); err != nil {
		log.Warn("failed to store expense", "index", rec.Index, "err", err)
		out.Status = streaming.RecordFailed
		out.Message = err.Error()
		return out
	}

	if im.cfg.State != nil {
		fp := dedup.GenerateFingerprint(e.Date, e.Amount, e.Description)
		if err := im.cfg.State.RecordExpense(fp, e.ID, e.CreatedAt); err != nil {
			log.Warn("failed to record fingerprint", "expense", e.ID, "err", err)
		}
	}

	out.Status = streaming.RecordImported
	out.ExpenseID = e.ID
	return out
}

func (im *Importer) fail(ctx context.Context, review *Review, result *CommitResult, cause error) {
	im.saveState()
	session := &domain.ImportSession{
		ID:        review.SessionID,
		UserID:    review.UserID,
		FileName:  review.FileName,
		FileType:  review.Result.FileType,
		Status:    domain.SessionStatusError,
		Stats:     result.Stats,
		Error:     cause.Error(),
		CreatedAt: review.CreatedAt,
	}
	// The request context is already done; record with a fresh one.
	im.record(context.WithoutCancel(ctx), session)
	im.broadcast(review.SessionID, streaming.NewErrorEvent(streaming.ErrorEvent{
		Message:   cause.Error(),
		SessionID: review.SessionID,
	}))
}

func (im *Importer) saveState() {
	if im.cfg.State == nil || im.cfg.StatePath == "" {
		return
	}
	if err := dedup.SaveState(im.cfg.State, im.cfg.StatePath); err != nil {
		log.Error("failed to save dedup state", "path", im.cfg.StatePath, "err", err)
	}
}

// selectRecords returns the records at indexes, or all of them when no index
// is given.
func selectRecords(records []Record, indexes []int) ([]Record, error) {
	if len(indexes) == 0 {
		return records, nil
	}
	selected := make([]Record, 0, len(indexes))
	seen := make(map[int]bool, len(indexes))
	for _, idx := range indexes {
		if idx < 0 || idx >= len(records) {
			return nil, fmt.Errorf("%w: record index %d out of range [0, %d)", ErrInvalidSelection, idx, len(records))
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		selected = append(selected, records[idx])
	}
	return selected, nil
}

func sessionEvent(s *domain.ImportSession) streaming.SessionEvent {
	return streaming.SessionEvent{
		ID:          s.ID,
		FileName:    s.FileName,
		FileType:    s.FileType,
		Status:      s.Status,
		Stats:       s.Stats,
		CompletedAt: s.CompletedAt,
		Error:       s.Error,
	}
}
