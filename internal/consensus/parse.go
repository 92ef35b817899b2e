package consensus

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// ParsedOpinion is the structured reading of a free-text model response.
type ParsedOpinion struct {
	Grade      *float64
	Confidence int
	Defects    []string
}

// Model responses should be JSON but frequently arrive wrapped in prose or
// markdown fences. The sniffing order is: fenced JSON, bare JSON object,
// then line-oriented regex scraping.
var (
	fenceRe      = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	objectRe     = regexp.MustCompile(`(?s)\{.*\}`)
	gradeRe      = regexp.MustCompile(`(?i)\bgrade\b[^0-9]{0,12}(\d{1,2}(?:\.\d{1,2})?)`)
	confidenceRe = regexp.MustCompile(`(?i)\bconfidence\b[^0-9]{0,12}(\d{1,3})`)
	defectsRe    = regexp.MustCompile(`(?i)\bdefects?\b\s*[:=]\s*(.+)`)
)

type opinionJSON struct {
	Grade      *float64 `json:"grade"`
	Confidence *float64 `json:"confidence"`
	Defects    []string `json:"defects"`
}

// ParseOpinion extracts a grade, confidence, and defect list from model
// output. It is a total function: malformed or empty input yields a nil
// grade, zero confidence, and no defects, never an error.
func ParseOpinion(text string) ParsedOpinion {
	if blob := extractJSON(text); blob != "" {
		var oj opinionJSON
		if err := json.Unmarshal([]byte(blob), &oj); err == nil {
			if oj.Grade != nil || oj.Confidence != nil || len(oj.Defects) > 0 {
				return fromJSON(oj)
			}
		}
	}
	return scrapeText(text)
}

func extractJSON(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := objectRe.FindString(text); m != "" {
		return m
	}
	return ""
}

func fromJSON(oj opinionJSON) ParsedOpinion {
	p := ParsedOpinion{}
	if oj.Grade != nil && *oj.Grade >= MinGrade && *oj.Grade <= MaxGrade {
		g := *oj.Grade
		p.Grade = &g
	}
	if oj.Confidence != nil {
		c := *oj.Confidence
		// Some models answer confidence as a 0-1 fraction.
		if c > 0 && c <= 1 {
			c *= 100
		}
		p.Confidence = clampInt(int(c+0.5), 0, 100)
	}
	for _, d := range oj.Defects {
		if tag := NormalizeDefect(d); tag != "" {
			p.Defects = append(p.Defects, tag)
		}
	}
	return p
}

func scrapeText(text string) ParsedOpinion {
	p := ParsedOpinion{}

	if m := gradeRe.FindStringSubmatch(text); m != nil {
		if g, err := strconv.ParseFloat(m[1], 64); err == nil && g >= MinGrade && g <= MaxGrade {
			p.Grade = &g
		}
	}
	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		if c, err := strconv.Atoi(m[1]); err == nil {
			p.Confidence = clampInt(c, 0, 100)
		}
	}
	if m := defectsRe.FindStringSubmatch(text); m != nil {
		raw := strings.TrimRight(strings.TrimSpace(m[1]), ".")
		if !strings.EqualFold(raw, "none") {
			for _, part := range strings.Split(raw, ",") {
				if tag := NormalizeDefect(part); tag != "" && tag != "none" {
					p.Defects = append(p.Defects, tag)
				}
			}
		}
	}
	return p
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
