// Package consensus combines heterogeneous per-source grading opinions into
// a single weighted grade, confidence, and confirmed-defect set.
package consensus

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/slabworks/grade-cli/internal/model"
)

// Grade bounds on the standard condition scale.
const (
	MinGrade = 0.5
	MaxGrade = 10.0
)

// Neutral default when no source produced a usable grade: unknown, assume
// median. This is policy, not an error.
const (
	NeutralGrade      = 7.0
	NeutralConfidence = 50
)

// defectConfirmCount is the minimum number of independent sources that must
// report a defect tag for it to be confirmed. Weights play no part here.
const defectConfirmCount = 2

// defaultSourceWeight applies to sources absent from the canonical weight
// table (ensemble vision models report under their own names).
const defaultSourceWeight = 20.0

// WeightTable maps source identifiers to aggregation weights.
type WeightTable map[string]float64

// DefaultWeights builds the canonical table from the closed voice set.
func DefaultWeights() WeightTable {
	t := make(WeightTable, len(model.Voices))
	for _, v := range model.Voices {
		t[string(v.Voice)] = v.Weight
	}
	return t
}

// weightFor returns the table weight for a source, or the default.
func (t WeightTable) weightFor(source string) float64 {
	if w, ok := t[strings.ToLower(source)]; ok {
		return w
	}
	return defaultSourceWeight
}

// Aggregate computes the weighted consensus over a set of source opinions.
// Opinions without a grade in [0.5, 10.0] are excluded from grade and
// confidence weighting but still participate in defect confirmation.
func Aggregate(opinions []model.SourceOpinion, weights WeightTable) model.Consensus {
	if weights == nil {
		weights = DefaultWeights()
	}

	var (
		totalWeight float64
		gradeSum    float64
		confSum     float64
		graded      int
	)
	for _, op := range opinions {
		if op.Grade == nil || *op.Grade < MinGrade || *op.Grade > MaxGrade {
			continue
		}
		w := weights.weightFor(op.Source)
		totalWeight += w
		gradeSum += *op.Grade * w
		confSum += float64(op.Confidence) * w
		graded++
	}

	confirmed := ConfirmDefects(opinions)

	if graded == 0 || totalWeight == 0 {
		zap.L().Debug("consensus: no usable grades, returning neutral default",
			zap.Int("opinions", len(opinions)),
		)
		return model.Consensus{
			Grade:            NeutralGrade,
			Confidence:       NeutralConfidence,
			ConfirmedDefects: confirmed,
		}
	}

	grade := math.Round(gradeSum/totalWeight*10) / 10
	grade = math.Min(MaxGrade, math.Max(MinGrade, grade))

	confidence := int(math.Round(confSum / totalWeight))
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return model.Consensus{
		Grade:            grade,
		Confidence:       confidence,
		ConfirmedDefects: confirmed,
	}
}

// ConfirmDefects tallies normalized defect tags across all participating
// sources and returns, sorted, those reported at least twice. Confirmation
// is count-based only: two low-weight sources agreeing is sufficient, one
// high-weight source alone is not.
func ConfirmDefects(opinions []model.SourceOpinion) []string {
	counts := make(map[string]int)
	for _, op := range opinions {
		seen := make(map[string]bool)
		for _, d := range op.Defects {
			tag := NormalizeDefect(d)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			counts[tag]++
		}
	}

	var confirmed []string
	for tag, n := range counts {
		if n >= defectConfirmCount {
			confirmed = append(confirmed, tag)
		}
	}
	sort.Strings(confirmed)
	return confirmed
}

// NormalizeDefect canonicalizes a defect tag: lowercase, trimmed, spaces
// and dashes collapsed to underscores.
func NormalizeDefect(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.ReplaceAll(tag, "-", " ")
	return strings.Join(strings.Fields(tag), "_")
}
