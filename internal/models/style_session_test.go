package models

import (
	"testing"
	"time"
)

func TestStyleStateCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     StyleState
		to       StyleState
		expected bool
	}{
		{"Idle to Uploaded", StateIdle, StateUploaded, true},
		{"Idle cannot skip to Analyzed", StateIdle, StateAnalyzed, false},
		{"Uploaded to Analyzed", StateUploaded, StateAnalyzed, true},
		{"Analyzed to Selecting", StateAnalyzed, StateSelecting, true},
		{"Analyzed to Failed on parse error", StateAnalyzed, StateFailed, true},
		{"Selecting to Synthesizing", StateSelecting, StateSynthesizing, true},
		{"Selecting cannot complete directly", StateSelecting, StateCompleted, false},
		{"Synthesizing to Completed", StateSynthesizing, StateCompleted, true},
		{"Synthesizing to Failed", StateSynthesizing, StateFailed, true},
		{"Synthesizing cannot be reset mid-flight", StateSynthesizing, StateUploaded, false},
		{"Failed back to Uploaded", StateFailed, StateUploaded, true},
		{"Failed retry to Selecting", StateFailed, StateSelecting, true},
		{"Failed cannot jump to Synthesizing", StateFailed, StateSynthesizing, false},
		{"Completed cannot go to Failed", StateCompleted, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.expected {
				t.Errorf("%s.CanTransition(%s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestStyleSessionCanRetry(t *testing.T) {
	s := &StyleSession{State: StateFailed}
	if !s.CanRetry() {
		t.Error("failed session with unused retry should be retryable")
	}

	s.RetryUsed = true
	if s.CanRetry() {
		t.Error("retry must only be offered once")
	}

	s = &StyleSession{State: StateCompleted}
	if s.CanRetry() {
		t.Error("completed session should not be retryable")
	}
}

func TestStyleAssetIsExpired(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		expires  *time.Time
		expected bool
	}{
		{"nil never expires", nil, false},
		{"past is expired", &past, true},
		{"future is live", &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &StyleAsset{ExpiresAt: tt.expires}
			if got := a.IsExpired(); got != tt.expected {
				t.Errorf("IsExpired() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFindConcept(t *testing.T) {
	a := &StyleAnalysis{Concepts: []StyleConcept{
		{ID: "c1", Title: "Beach Day"},
		{ID: "c2", Title: "Winter Cabin"},
	}}

	if c := a.FindConcept("c2"); c == nil || c.Title != "Winter Cabin" {
		t.Errorf("FindConcept by id = %+v", c)
	}
	if c := a.FindConcept("Beach Day"); c == nil || c.ID != "c1" {
		t.Errorf("FindConcept by title = %+v", c)
	}
	if c := a.FindConcept("missing"); c != nil {
		t.Errorf("FindConcept(missing) = %+v, want nil", c)
	}
}

func TestPlaceTrendScore(t *testing.T) {
	popular := Place{Rating: 4.5, ReviewCount: 1000}
	niche := Place{Rating: 5.0, ReviewCount: 3}
	unrated := Place{Rating: 0, ReviewCount: 500}

	if popular.TrendScore() <= niche.TrendScore() {
		t.Errorf("well-reviewed place should outrank a barely reviewed one: %v <= %v", popular.TrendScore(), niche.TrendScore())
	}
	if unrated.TrendScore() != 0 {
		t.Errorf("unrated place score = %v, want 0", unrated.TrendScore())
	}
}
