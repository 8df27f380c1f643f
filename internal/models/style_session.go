package models

import (
	"time"

	"gorm.io/datatypes"
)

// StyleState is a step of the styling flow
type StyleState string

const (
	StateIdle         StyleState = "idle"
	StateUploaded     StyleState = "uploaded"
	StateAnalyzed     StyleState = "analyzed"
	StateSelecting    StyleState = "selecting"
	StateSynthesizing StyleState = "synthesizing"
	StateCompleted    StyleState = "completed"
	StateFailed       StyleState = "failed"
)

// styleTransitions lists the allowed next states for each state.
// Analyzed -> Failed covers an analysis attempt whose response could not be parsed.
// Failed -> Selecting is the manual retry and is further limited to once per session.
var styleTransitions = map[StyleState][]StyleState{
	StateIdle:         {StateUploaded},
	StateUploaded:     {StateAnalyzed, StateFailed, StateUploaded},
	StateAnalyzed:     {StateSelecting, StateFailed, StateUploaded},
	StateSelecting:    {StateSynthesizing, StateUploaded},
	StateSynthesizing: {StateCompleted, StateFailed},
	StateCompleted:    {StateSelecting, StateUploaded},
	StateFailed:       {StateUploaded, StateSelecting},
}

// CanTransition reports whether the flow may move from s to next
func (s StyleState) CanTransition(next StyleState) bool {
	for _, allowed := range styleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for states that end a synthesis attempt
func (s StyleState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// StyleSession persists one user's walk through the styling flow
type StyleSession struct {
	ID                string         `gorm:"primaryKey;size:36" json:"id"`
	State             StyleState     `gorm:"size:20;not null;index" json:"state"`
	OriginalImagePath string         `gorm:"size:200" json:"-"`
	OriginalImageURL  string         `json:"original_image_url"`
	OriginalMIME      string         `gorm:"size:50" json:"-"`
	Analysis          datatypes.JSON `json:"analysis,omitempty"`
	Selection         datatypes.JSON `json:"selection,omitempty"`
	Result            datatypes.JSON `json:"result,omitempty"`
	RetryUsed         bool           `gorm:"default:false" json:"retry_used"`
	LastError         string         `json:"last_error,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (StyleSession) TableName() string {
	return "style_sessions"
}

// CanRetry returns true if the session is failed and the one manual retry is unused
func (s *StyleSession) CanRetry() bool {
	return s.State == StateFailed && !s.RetryUsed
}

// StyleSelection is what the user picked in the Selecting step
type StyleSelection struct {
	ConceptID      string        `json:"conceptId" binding:"required_without=ItemNames"`
	ItemNames      []string      `json:"itemNames"`
	Instruction    string        `json:"instruction"`
	Mode           SynthesisMode `json:"mode"`
	KeepBackground bool          `json:"keepBackground"`
}
