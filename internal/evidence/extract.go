package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"sentinel/internal/logging"
)

// Section vocabulary recognized by the extractor. Headings outside this
// vocabulary end the current section without starting a new one.
var sectionPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"Goal", regexp.MustCompile(`(?i)^#+\s*(?:goals?|objectives?)\b`)},
	{"Non-goals", regexp.MustCompile(`(?i)^#+\s*(?:non-?goals?|out of scope)\b`)},
	{"Scope", regexp.MustCompile(`(?i)^#+\s*scope\b`)},
	{"Metrics", regexp.MustCompile(`(?i)^#+\s*(?:success )?metrics?\b`)},
	{"Risks", regexp.MustCompile(`(?i)^#+\s*risks?(?:\s+assessment)?\b`)},
	{"Tradeoffs", regexp.MustCompile(`(?i)^#+\s*(?:trade-?offs?|alternatives)\b`)},
	{"Rollout", regexp.MustCompile(`(?i)^#+\s*(?:rollout|launch plan|deployment)\b`)},
}

var (
	headingRe  = regexp.MustCompile(`^#+\s`)
	sentenceRe = regexp.MustCompile(`[.!?]+\s+`)
	modalRe    = regexp.MustCompile(`(?i)\b(?:must|critical)\b`)
)

// minClaimLength filters heading fragments and bullets too short to be
// meaningful assertions.
const minClaimLength = 20

// ExtractClaims turns artifact content into an ordered claim list. The
// extraction is deterministic: IDs derive from the artifact name, a content
// hash of the sentence, and its ordinal, so unchanged content always yields
// the identical claim set.
func ExtractClaims(artifact, content string) []Claim {
	var claims []Claim
	section := ""
	ordinal := 0

	for lineNum, line := range strings.Split(content, "\n") {
		if headingRe.MatchString(line) {
			section = ""
			for _, sp := range sectionPatterns {
				if sp.re.MatchString(line) {
					section = sp.name
					break
				}
			}
			continue
		}
		if section == "" {
			continue
		}

		for _, sentence := range sentenceRe.Split(strings.TrimSpace(line), -1) {
			sentence = strings.TrimSpace(strings.TrimLeft(sentence, "-*• \t"))
			if len(sentence) < minClaimLength {
				continue
			}
			ordinal++
			claims = append(claims, Claim{
				ID:       claimID(artifact, sentence, ordinal),
				Text:     sentence,
				Section:  section,
				Severity: severityFor(section, sentence),
				Line:     lineNum + 1,
				Artifact: artifact,
			})
		}
	}

	logging.Evidence("extracted %d claims from %s", len(claims), artifact)
	return claims
}

// severityFor applies the section defaults, then escalates one level when
// the sentence carries strong modal language, capped at HIGH.
func severityFor(section, sentence string) Severity {
	var sev Severity
	switch section {
	case "Goal", "Risks":
		sev = SeverityHigh
	case "Metrics":
		sev = SeverityMedium
	default:
		sev = SeverityLow
	}
	if modalRe.MatchString(sentence) {
		sev = sev.Escalate()
	}
	return sev
}

// claimID builds a stable identifier from content hash and position.
func claimID(artifact, text string, ordinal int) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s-%s-%d", artifact, hex.EncodeToString(sum[:])[:8], ordinal)
}
