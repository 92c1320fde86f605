package github

import (
	"fmt"

	"sentinel/internal/evidence"
)

// BundleEvidenceSource adapts a fetched milestone bundle to the supervisor's
// evidence source interface. Issues and the milestone description become
// evidence items the binder can match claims against.
type BundleEvidenceSource struct {
	bundle *Bundle
}

// NewBundleEvidenceSource wraps a bundle. A nil bundle yields zero items.
func NewBundleEvidenceSource(bundle *Bundle) *BundleEvidenceSource {
	return &BundleEvidenceSource{bundle: bundle}
}

// EvidenceItems converts bundle contents to evidence items. Refs use the
// forms "milestone:N" and "issue:N" so packets can link back to the tracker.
func (s *BundleEvidenceSource) EvidenceItems() ([]evidence.Item, error) {
	if s.bundle == nil {
		return nil, nil
	}

	items := make([]evidence.Item, 0, len(s.bundle.Issues)+1)

	m := s.bundle.Milestone
	if m.Title != "" || m.Description != "" {
		items = append(items, evidence.Item{
			Text:       m.Title + "\n" + m.Description,
			SourceRef:  fmt.Sprintf("milestone:%d", m.Number),
			SourceType: "milestone",
		})
	}

	for _, is := range s.bundle.Issues {
		text := is.Title
		if is.Body != "" {
			text += "\n" + is.Body
		}
		items = append(items, evidence.Item{
			Text:       text,
			SourceRef:  fmt.Sprintf("issue:%d", is.Number),
			SourceType: "issue",
		})
	}
	return items, nil
}
