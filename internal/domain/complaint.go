package domain

import "time"

// Complaint represents a tracked citizen-reported issue.
// Raw text is immutable after creation; votes, contributing texts, and the
// transition history only ever grow.
type Complaint struct {
	// Core identifiers
	ID   string `db:"id"   json:"id"`
	Text string `db:"text" json:"text"`

	// Classification
	Category         Category `db:"category"          json:"category"`
	Confidence       float64  `db:"confidence"        json:"confidence"` // 0.0-1.0
	LowConfidence    bool     `db:"low_confidence"    json:"low_confidence"`
	PredictionSource string   `db:"prediction_source" json:"prediction_source"` // "keywords", "model", "override"
	ModelVersion     string   `db:"model_version"     json:"model_version,omitempty"`

	// Lifecycle
	Status Status `db:"status" json:"status"`
	Votes  int    `db:"votes"  json:"votes"` // starts at 1, one per citizen

	// Merge audit trail: every submission text folded into this complaint,
	// the original text included, in merge order.
	ContributingTexts []string `db:"contributing_texts" json:"contributing_texts"`

	// Voters holds the citizen IDs that corroborated this complaint.
	// Never exposed over the API.
	Voters []string `db:"voters" json:"-"`

	// History is ordered oldest first; the last entry's status always
	// equals Status.
	History []Transition `db:"history" json:"history"`

	// Timestamps
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// Transition represents one entry in a complaint's status history.
type Transition struct {
	Status Status    `json:"status"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
}

// PredictionSource constants
const (
	SourceKeywords = "keywords" // keyword rules matched, model bypassed
	SourceModel    = "model"
	SourceOverride = "override" // authority corrected the category
)

// HasVoted reports whether the citizen already corroborated this complaint.
func (c *Complaint) HasVoted(citizenID string) bool {
	for _, v := range c.Voters {
		if v == citizenID {
			return true
		}
	}
	return false
}

// AgeDays returns the complaint's age in fractional days at the given time.
// A clock skewed before the submission timestamp yields zero, never negative.
func (c *Complaint) AgeDays(now time.Time) float64 {
	age := now.Sub(c.SubmittedAt)
	if age < 0 {
		return 0
	}
	return age.Hours() / 24
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (c *Complaint) Clone() *Complaint {
	if c == nil {
		return nil
	}
	clone := *c
	clone.ContributingTexts = append([]string(nil), c.ContributingTexts...)
	clone.Voters = append([]string(nil), c.Voters...)
	clone.History = append([]Transition(nil), c.History...)
	return &clone
}

// ClassificationResult represents the outcome of classifying complaint text.
type ClassificationResult struct {
	Category         Category `json:"category"`
	Confidence       float64  `json:"confidence"`           // 0.0-1.0
	LowConfidence    bool     `json:"low_confidence"`       // confidence below the review threshold
	PredictionSource string   `json:"prediction_source"`    // "keywords" or "model"
	ModelVersion     string   `json:"model_version,omitempty"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

// SubmissionResult represents the outcome of one citizen submission.
type SubmissionResult struct {
	ComplaintID      string   `json:"complaint_id"`
	Category         Category `json:"category"`
	Confidence       float64  `json:"confidence"`
	LowConfidence    bool     `json:"low_confidence"`
	PredictionSource string   `json:"prediction_source"`
	IsNew            bool     `json:"is_new"`        // false when merged into an existing complaint
	AlreadyVoted     bool     `json:"already_voted"` // duplicate vote absorbed as a no-op
	Votes            int      `json:"votes"`
}
