package model

import "time"

// ItemStatus represents the grading state of a collectible item.
type ItemStatus string

const (
	ItemStatusUngraded      ItemStatus = "ungraded"
	ItemStatusGrading       ItemStatus = "grading"
	ItemStatusGraded        ItemStatus = "graded"
	ItemStatusPendingReview ItemStatus = "pending_review"
)

// GradableItem is a single collectible comic in the store. Identity and
// condition metadata come from manual entry or import; the grading outcome
// fields are written only by a completed (or cache-recalled) pipeline run.
type GradableItem struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Issue        string   `json:"issue"`
	Publisher    string   `json:"publisher,omitempty"`
	Year         int      `json:"year,omitempty"`
	KeyIssue     bool     `json:"key_issue"`
	KnownDefects []string `json:"known_defects,omitempty"`

	Grade      *float64         `json:"grade,omitempty"`
	Confidence int              `json:"confidence,omitempty"`
	Defects    []string         `json:"defects,omitempty"`
	Value      int64            `json:"value,omitempty"`
	Status     ItemStatus       `json:"status"`
	Decision   *GradingDecision `json:"decision,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identified reports whether the item carries enough identity to grade.
// Title and issue are the precondition for starting a run.
func (it *GradableItem) Identified() bool {
	return it.Title != "" && it.Issue != ""
}

// RecalledGrade is a prior grade returned by the recall cache for a
// title+issue pair.
type RecalledGrade struct {
	Grade      float64   `json:"grade"`
	Confidence int       `json:"confidence"`
	Defects    []string  `json:"defects,omitempty"`
	GradedAt   time.Time `json:"graded_at"`
}
