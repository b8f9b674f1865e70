package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the processing state of a notebook. Transitions move forward
// through pending -> transcribing -> summarizing -> completed; failed is
// reachable from any non-terminal state and is absorbing.
type Status string

const (
	StatusPending      Status = "pending"
	StatusTranscribing Status = "transcribing"
	StatusSummarizing  Status = "summarizing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Terminal reports whether no further transitions occur from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Notebook is one upload-to-summary job and its result page.
type Notebook struct {
	ID            int64     `json:"id"`
	UserID        *int64    `json:"userId"`
	Status        Status    `json:"status"`
	Transcription *string   `json:"transcription"`
	Summary       *string   `json:"summary"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// User owns notebooks and anchors the daily quota.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// SummaryDocument is the Cornell-style note page produced by summarization.
// Notes, cues and summary carry a restricted subset of HTML for display.
type SummaryDocument struct {
	Title   string `json:"title"`
	Notes   string `json:"notes"`
	Cues    string `json:"cues"`
	Summary string `json:"summary"`
}

// ParseSummaryDocument validates that raw is a JSON object carrying all four
// note-page fields. A structurally valid object with a missing field is
// rejected, not padded.
func ParseSummaryDocument(raw string) (*SummaryDocument, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("summary is not valid JSON: %w", err)
	}

	for _, key := range []string{"title", "notes", "cues", "summary"} {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("summary missing field %q", key)
		}
	}

	var doc SummaryDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("summary fields have wrong types: %w", err)
	}
	return &doc, nil
}
