package supervisor

import "errors"

// ErrArtifactUnreadable marks an artifact path that could not be read.
// Propagated from OnArtifactCreated; no intervention is generated that cycle.
var ErrArtifactUnreadable = errors.New("artifact unreadable")
