// Package boundary implements the heuristic scanner that flags structural
// decision-point problems in artifacts. The detector is stateless: given the
// same artifact content and events it always reports the same boundaries.
package boundary

import (
	"regexp"

	"sentinel/internal/logging"
	"sentinel/internal/trace"
)

// Type classifies a detected boundary.
type Type string

const (
	TypeEmptyMetrics     Type = "empty_metrics"
	TypeMissingTradeoffs Type = "missing_tradeoffs"
	TypeLowEvidenceRate  Type = "low_evidence_rate"
)

// Boundary is a transient detector finding, consumed immediately by the
// intervention policy.
type Boundary struct {
	Type      Type
	Section   string
	Rationale string
}

var (
	metricsHeadingRe   = regexp.MustCompile(`(?mi)^#+\s*(?:success )?metrics?\b`)
	metricsSectionRe   = regexp.MustCompile(`(?msi)^#+\s*(?:success )?metrics?\b[^\n]*\n(.*?)(?:^#+\s|\z)`)
	tradeoffsHeadingRe = regexp.MustCompile(`(?mi)^#+\s*(?:trade-?offs?|alternatives)\b`)
	measurableRe       = regexp.MustCompile(`[0-9]|%`)
)

// Tool-call churn thresholds for the low_evidence_rate heuristic.
const (
	toolCallChurnMin     = 20
	observationRateFloor = 0.3
)

// Detect scans one artifact's content plus recent events and returns every
// boundary that matches. Rules are evaluated independently.
func Detect(artifact, content string, recent []trace.Event) []Boundary {
	var found []Boundary

	if metricsHeadingRe.MatchString(content) {
		body := ""
		if m := metricsSectionRe.FindStringSubmatch(content); m != nil {
			body = m[1]
		}
		if !measurableRe.MatchString(body) {
			found = append(found, Boundary{
				Type:      TypeEmptyMetrics,
				Section:   "Metrics",
				Rationale: "Metrics section exists but lacks measurable indicators",
			})
		}
	}

	if content != "" && !tradeoffsHeadingRe.MatchString(content) {
		found = append(found, Boundary{
			Type:      TypeMissingTradeoffs,
			Section:   "Tradeoffs",
			Rationale: "no Tradeoffs or Alternatives section is present",
		})
	}

	if b := detectLowEvidenceRate(recent); b != nil {
		found = append(found, *b)
	}

	if len(found) > 0 {
		logging.Get(logging.CategoryBoundary).Infof("detected %d boundaries in %s", len(found), artifact)
	}
	return found
}

// detectLowEvidenceRate flags a burst of tool calls where few produced
// observations. The policy's runaway-tool-use rule handles intervention;
// this boundary exists for reporting visibility.
func detectLowEvidenceRate(recent []trace.Event) *Boundary {
	toolCalls, observations := 0, 0
	for _, ev := range recent {
		switch ev.Type {
		case trace.TypeToolCall:
			toolCalls++
		case trace.TypeObservation:
			observations++
		}
	}
	if toolCalls <= toolCallChurnMin {
		return nil
	}
	if float64(observations) >= float64(toolCalls)*observationRateFloor {
		return nil
	}
	return &Boundary{
		Type:      TypeLowEvidenceRate,
		Rationale: "many recent tool calls produced few observations",
	}
}
