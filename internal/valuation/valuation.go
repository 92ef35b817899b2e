// Package valuation estimates market value from grade, age, and key-issue
// status. It is the fallback used when engine enrichment returns no
// authoritative valuation.
package valuation

import (
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// keyIssueMultiplier applies to issues with outsized collector significance.
const keyIssueMultiplier = 3.0

// AgeBucket assigns a base value to items published before the cutoff year.
type AgeBucket struct {
	Before int   `yaml:"before"`
	Base   int64 `yaml:"base"`
}

// GradeMultiplier scales the base value at a reference grade. The nearest
// reference by absolute distance wins; grades are deliberately not snapped
// to the canonical display increments first.
type GradeMultiplier struct {
	Grade      float64 `yaml:"grade"`
	Multiplier float64 `yaml:"multiplier"`
}

// Tables holds the valuation lookup tables.
type Tables struct {
	AgeBuckets  []AgeBucket       `yaml:"age_buckets"`
	Multipliers []GradeMultiplier `yaml:"multipliers"`
	DefaultBase int64             `yaml:"default_base"`
}

// DefaultTables returns the built-in valuation tables.
func DefaultTables() Tables {
	return Tables{
		AgeBuckets: []AgeBucket{
			{Before: 1940, Base: 50000},
			{Before: 1956, Base: 25000},
			{Before: 1970, Base: 15000},
			{Before: 1980, Base: 10000},
			{Before: 1992, Base: 2000},
			{Before: 2005, Base: 500},
		},
		Multipliers: []GradeMultiplier{
			{Grade: 10.0, Multiplier: 5.0},
			{Grade: 9.8, Multiplier: 3.5},
			{Grade: 9.4, Multiplier: 2.0},
			{Grade: 9.0, Multiplier: 1.5},
			{Grade: 8.0, Multiplier: 1.0},
			{Grade: 7.0, Multiplier: 0.8},
			{Grade: 6.0, Multiplier: 0.6},
			{Grade: 5.0, Multiplier: 0.4},
			{Grade: 4.0, Multiplier: 0.25},
			{Grade: 3.0, Multiplier: 0.15},
			{Grade: 2.0, Multiplier: 0.1},
			{Grade: 1.0, Multiplier: 0.05},
		},
		DefaultBase: 200,
	}
}

// LoadTables reads operator-tuned tables from a YAML file. An empty path
// returns the defaults.
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, eris.Wrapf(err, "valuation: read tables %s", path)
	}
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, eris.Wrap(err, "valuation: parse tables")
	}
	if len(t.AgeBuckets) == 0 || len(t.Multipliers) == 0 {
		return Tables{}, eris.Errorf("valuation: tables %s missing age_buckets or multipliers", path)
	}
	if t.DefaultBase == 0 {
		t.DefaultBase = DefaultTables().DefaultBase
	}
	return t, nil
}

// Estimator computes fallback valuations from the loaded tables.
type Estimator struct {
	tables Tables
}

// NewEstimator creates an estimator over the given tables.
func NewEstimator(tables Tables) *Estimator {
	sort.Slice(tables.AgeBuckets, func(i, j int) bool {
		return tables.AgeBuckets[i].Before < tables.AgeBuckets[j].Before
	})
	return &Estimator{tables: tables}
}

// Estimate computes the estimated value for a final grade, publication
// year, and key-issue flag, rounded to whole currency units.
func (e *Estimator) Estimate(grade float64, year int, keyIssue bool) int64 {
	base := e.tables.DefaultBase
	for _, b := range e.tables.AgeBuckets {
		if year < b.Before {
			base = b.Base
			break
		}
	}

	mult := e.nearestMultiplier(grade)
	keyMult := 1.0
	if keyIssue {
		keyMult = keyIssueMultiplier
	}

	value := int64(math.Round(float64(base) * mult * keyMult))
	zap.L().Debug("valuation: estimated",
		zap.Float64("grade", grade),
		zap.Int("year", year),
		zap.Bool("key_issue", keyIssue),
		zap.Int64("base", base),
		zap.Float64("multiplier", mult),
		zap.Int64("value", value),
	)
	return value
}

// nearestMultiplier picks the reference grade closest by absolute distance.
func (e *Estimator) nearestMultiplier(grade float64) float64 {
	best := e.tables.Multipliers[0]
	bestDist := math.Abs(grade - best.Grade)
	for _, m := range e.tables.Multipliers[1:] {
		if d := math.Abs(grade - m.Grade); d < bestDist {
			best = m
			bestDist = d
		}
	}
	return best.Multiplier
}
