package model

import "time"

// DebateRound is one bull/bear/judge exchange from the debate service.
type DebateRound struct {
	Bull  string `json:"bull"`
	Bear  string `json:"bear"`
	Judge string `json:"judge"`
}

// CouncilVerdict is the final-authority outcome: three per-voice grades in
// seniority order (sage, nyx, thorne), the blended final grade, and a
// dissent flag set when the voices spread more than the agreement band.
type CouncilVerdict struct {
	PerVoice   [3]float64 `json:"per_voice"`
	FinalGrade float64    `json:"final_grade"`
	Dissent    bool       `json:"dissent"`
}

// GradingDecision is the single authoritative output of a grading run.
// Written once into the item and the store; never mutated afterward.
type GradingDecision struct {
	Grade      float64  `json:"grade"`
	Confidence int      `json:"confidence"`
	Defects    []string `json:"defects"`
	Value      int64    `json:"value"`

	QualityScore int               `json:"quality_score,omitempty"`
	Sources      []SourceOpinion   `json:"sources,omitempty"`
	Research     string            `json:"research,omitempty"`
	Enrichment   map[string]string `json:"enrichment,omitempty"`

	DebateGrade  *float64        `json:"debate_grade,omitempty"`
	DebateRounds []DebateRound   `json:"debate_rounds,omitempty"`
	Council      *CouncilVerdict `json:"council,omitempty"`

	Commentary string    `json:"commentary,omitempty"`
	Emotion    string    `json:"emotion,omitempty"`
	GradedAt   time.Time `json:"graded_at"`
	FromCache  bool      `json:"from_cache,omitempty"`
}
