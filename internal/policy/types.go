package policy

import (
	"fmt"

	"github.com/mirelabs/gatekeeper/internal/artifact"
)

// #region authorization
// Authorization grants one emission of one artifact. It records the
// evidence consulted and the ledger row that admitted it.
type Authorization struct {
	WorkspaceID string
	Phase       string
	Artifact    string
	Class       artifact.Class
	EvidenceRef string
	DecisionID  string
}

// #endregion authorization

// #region violation
// Violation is the expected "gate currently closed" outcome, carried as a
// typed error value rather than a panic. Phase runners must let it
// propagate to orchestration mapped to its stop code, never swallow it.
type Violation struct {
	StopCode    StopCode
	Reason      string
	WorkspaceID string
	Phase       string
	Artifact    string
	EvidenceRef string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s (workspace=%s phase=%s artifact=%s)",
		v.StopCode, v.Reason, v.WorkspaceID, v.Phase, v.Artifact)
}

// #endregion violation
