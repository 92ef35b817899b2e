package model

// Voice is a closed identity for the advisory and council voices. Keeping
// the set enumerated keeps the weight table and response handling exhaustive
// instead of scattering free-form strings through the pipeline.
type Voice string

const (
	VoiceSage   Voice = "sage"
	VoiceNyx    Voice = "nyx"
	VoiceThorne Voice = "thorne"
)

// VoiceProfile carries the fixed weight and backing model for a voice.
type VoiceProfile struct {
	Voice  Voice
	Model  string
	Weight float64
	Style  string
}

// Voices is the canonical advisory set, in council seniority order. Weights
// sum to 100; the consensus aggregator normalizes by whatever subset
// actually participates.
var Voices = []VoiceProfile{
	{Voice: VoiceSage, Model: "claude-sonnet-4-5-20250929", Weight: 40, Style: "methodical, defect-first"},
	{Voice: VoiceNyx, Model: "claude-haiku-4-5-20251001", Weight: 35, Style: "skeptical, market-aware"},
	{Voice: VoiceThorne, Model: "claude-opus-4-6", Weight: 25, Style: "holistic, eye-appeal"},
}

// ProfileFor returns the profile for a voice, or nil for an unknown one.
func ProfileFor(v Voice) *VoiceProfile {
	for i := range Voices {
		if Voices[i].Voice == v {
			return &Voices[i]
		}
	}
	return nil
}

// SourceOpinion is one source's view of an item: a voice, an ensemble
// vision model, or any other collaborator that returns a grade. A nil grade
// means the source produced no usable number; the opinion still participates
// in defect confirmation.
type SourceOpinion struct {
	Source     string   `json:"source"`
	Grade      *float64 `json:"grade,omitempty"`
	Confidence int      `json:"confidence"`
	Defects    []string `json:"defects,omitempty"`
	Rationale  string   `json:"rationale,omitempty"`
}

// Consensus is the weighted aggregation of a set of source opinions.
// It is derived once and never mutated afterward.
type Consensus struct {
	Grade            float64  `json:"grade"`
	Confidence       int      `json:"confidence"`
	ConfirmedDefects []string `json:"confirmed_defects"`
}
