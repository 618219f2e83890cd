// Package streaming fans import progress out to server-sent event clients.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

// EventType represents the type of SSE event
type EventType string

const (
	EventTypeSession   EventType = "session"
	EventTypeProgress  EventType = "progress"
	EventTypeRecord    EventType = "record"
	EventTypeComplete  EventType = "complete"
	EventTypeError     EventType = "error"
	EventTypeHeartbeat EventType = "heartbeat"
)

// SSEEvent is one server-sent event. The payload is only reachable through
// the typed accessors so a type and its data cannot disagree.
type SSEEvent struct {
	Type      EventType
	Timestamp time.Time
	data      any
}

func newEvent(t EventType, data any) SSEEvent {
	return SSEEvent{Type: t, Timestamp: time.Now().UTC(), data: data}
}

// Data returns the raw payload.
func (e SSEEvent) Data() any {
	return e.data
}

// MarshalJSON renders {"type", "timestamp", "data"}.
func (e SSEEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      EventType `json:"type"`
		Timestamp time.Time `json:"timestamp"`
		Data      any       `json:"data"`
	}{e.Type, e.Timestamp, e.data})
}

// Stage names the phase of an import a progress event reports on.
type Stage string

const (
	StageParsing      Stage = "parsing"
	StageCategorizing Stage = "categorizing"
	StageDuplicates   Stage = "duplicates"
	StageCommitting   Stage = "committing"
)

// SessionEvent represents an import session state change
type SessionEvent struct {
	ID          string                `json:"id"`
	FileName    string                `json:"fileName"`
	FileType    domain.ImportFileType `json:"fileType"`
	Status      domain.SessionStatus  `json:"status"`
	Stats       domain.ImportStats    `json:"stats"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// ProgressEvent represents progress through one stage
type ProgressEvent struct {
	SessionID  string  `json:"sessionId"`
	Stage      Stage   `json:"stage"`
	Processed  int     `json:"processed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// RecordStatus is the commit outcome of a single reviewed record.
type RecordStatus string

const (
	RecordImported  RecordStatus = "imported"
	RecordDuplicate RecordStatus = "duplicate"
	RecordFailed    RecordStatus = "failed"
)

// RecordEvent reports what happened to one record during commit
type RecordEvent struct {
	Index       int             `json:"index"`
	ExpenseID   string          `json:"expenseId,omitempty"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Date        string          `json:"date"`
	Category    domain.Category `json:"category,omitempty"`
	Status      RecordStatus    `json:"status"`
	Message     string          `json:"message,omitempty"`
}

// ErrorEvent represents a failure that ends the session
type ErrorEvent struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// NewProgressEvent fills in Percentage when Total is known.
func NewProgressEvent(p ProgressEvent) SSEEvent {
	if p.Total > 0 && p.Percentage == 0 {
		p.Percentage = float64(p.Processed) / float64(p.Total) * 100
	}
	return newEvent(EventTypeProgress, p)
}

func NewSessionEvent(s SessionEvent) SSEEvent {
	return newEvent(EventTypeSession, s)
}

func NewRecordEvent(r RecordEvent) SSEEvent {
	return newEvent(EventTypeRecord, r)
}

func NewErrorEvent(e ErrorEvent) SSEEvent {
	return newEvent(EventTypeError, e)
}

// NewCompleteEvent carries the final session state, or nil.
func NewCompleteEvent(data any) SSEEvent {
	return newEvent(EventTypeComplete, data)
}

func NewHeartbeatEvent() SSEEvent {
	return newEvent(EventTypeHeartbeat, nil)
}

// ProgressData returns the progress payload, if e carries one.
func (e SSEEvent) ProgressData() (ProgressEvent, bool) {
	p, ok := e.data.(ProgressEvent)
	return p, ok && e.Type == EventTypeProgress
}

func (e SSEEvent) SessionData() (SessionEvent, bool) {
	s, ok := e.data.(SessionEvent)
	return s, ok && e.Type == EventTypeSession
}

func (e SSEEvent) RecordData() (RecordEvent, bool) {
	r, ok := e.data.(RecordEvent)
	return r, ok && e.Type == EventTypeRecord
}

func (e SSEEvent) ErrorData() (ErrorEvent, bool) {
	er, ok := e.data.(ErrorEvent)
	return er, ok && e.Type == EventTypeError
}

// Terminal reports events after which the session stream ends.
func (e SSEEvent) Terminal() bool {
	return e.Type == EventTypeComplete || e.Type == EventTypeError
}
