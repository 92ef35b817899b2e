package model

import (
	"time"

	"github.com/google/uuid"
)

// StepID identifies one of the ten fixed pipeline steps.
type StepID string

const (
	StepCache      StepID = "cache"
	StepUpload     StepID = "upload"
	StepVision     StepID = "vision"
	StepResearch   StepID = "research"
	StepEngines    StepID = "engines"
	StepDebate     StepID = "debate"
	StepTrinity    StepID = "trinity"
	StepValue      StepID = "value"
	StepCommentary StepID = "commentary"
	StepStore      StepID = "store"
)

// StepStatus is the state of a pipeline step. Transitions are monotonic:
// pending -> running -> complete, or running -> error. A step is never
// re-entered within one run.
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepRunning  StepStatus = "running"
	StepComplete StepStatus = "complete"
	StepError    StepStatus = "error"
)

// stepLabels maps step IDs to their human-readable labels.
var stepLabels = map[StepID]string{
	StepCache:      "Recall cache",
	StepUpload:     "Upload captures",
	StepVision:     "Vision ensemble",
	StepResearch:   "Market research",
	StepEngines:    "Engine enrichment",
	StepDebate:     "Adversarial debate",
	StepTrinity:    "Council review",
	StepValue:      "Valuation",
	StepCommentary: "Commentary",
	StepStore:      "Persist decision",
}

// stepOrder is the fixed execution sequence.
var stepOrder = []StepID{
	StepCache, StepUpload, StepVision, StepResearch, StepEngines,
	StepDebate, StepTrinity, StepValue, StepCommentary, StepStore,
}

// PipelineStep is one entry in a run's audit trail.
type PipelineStep struct {
	ID        StepID     `json:"id"`
	Label     string     `json:"label"`
	Status    StepStatus `json:"status"`
	Detail    string     `json:"detail,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// GradingRun is the step log for one grading run. The run owns the list
// exclusively; all mutation goes through UpdateStep so the audit trail stays
// consistent.
type GradingRun struct {
	ID        string         `json:"id"`
	ItemID    string         `json:"item_id"`
	Steps     []PipelineStep `json:"steps"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
}

// NewGradingRun creates a run with all ten steps pending, in fixed order.
func NewGradingRun(itemID string) *GradingRun {
	steps := make([]PipelineStep, len(stepOrder))
	for i, id := range stepOrder {
		steps[i] = PipelineStep{ID: id, Label: stepLabels[id], Status: StepPending}
	}
	return &GradingRun{
		ID:        uuid.New().String(),
		ItemID:    itemID,
		Steps:     steps,
		StartedAt: time.Now().UTC(),
	}
}

// Step returns a pointer to the step with the given ID, or nil.
func (r *GradingRun) Step(id StepID) *PipelineStep {
	for i := range r.Steps {
		if r.Steps[i].ID == id {
			return &r.Steps[i]
		}
	}
	return nil
}

// UpdateStep applies a legal status transition to the named step. Illegal
// transitions (anything other than pending->running, running->complete,
// running->error) are ignored so a terminal step can never be reopened.
func (r *GradingRun) UpdateStep(id StepID, status StepStatus, detail string) {
	s := r.Step(id)
	if s == nil {
		return
	}
	switch {
	case s.Status == StepPending && status == StepRunning:
		now := time.Now().UTC()
		s.StartedAt = &now
	case s.Status == StepRunning && (status == StepComplete || status == StepError):
		now := time.Now().UTC()
		s.EndedAt = &now
	default:
		return
	}
	s.Status = status
	if detail != "" {
		s.Detail = detail
	}
}

// Finish stamps the run's end time.
func (r *GradingRun) Finish() {
	now := time.Now().UTC()
	r.EndedAt = &now
}
