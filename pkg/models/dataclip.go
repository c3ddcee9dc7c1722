package models

import (
	"encoding/json"
	"time"
)

// DataclipType categorizes where a dataclip came from.
type DataclipType string

const (
	DataclipTypeHTTPRequest DataclipType = "http_request"
	DataclipTypeStepResult  DataclipType = "step_result"
	DataclipTypeRunResult   DataclipType = "run_result"
	DataclipTypeSavedInput  DataclipType = "saved_input"
	DataclipTypeGlobal      DataclipType = "global"
)

// Dataclip is an input payload for a run. A wiped dataclip keeps its row as
// evidence but its body is gone and it can never be replayed.
type Dataclip struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"project_id" validate:"required"`
	Type       DataclipType    `json:"type"       validate:"required"`
	Body       json.RawMessage `json:"body,omitempty"`
	WipedAt    *time.Time      `json:"wiped_at,omitempty"`
	InsertedAt time.Time       `json:"inserted_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Wiped reports whether the dataclip body has been erased.
func (d *Dataclip) Wiped() bool {
	return d.WipedAt != nil
}
