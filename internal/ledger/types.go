package ledger

import "time"

// #region outcome
// Outcome is the normative result of one gating decision.
type Outcome string

const (
	// OutcomeAllow means the gate granted the emission.
	OutcomeAllow Outcome = "ALLOW"
	// OutcomeBlock means the gate refused permission before any write.
	OutcomeBlock Outcome = "BLOCK"
	// OutcomeFail means the emission was permitted but the write itself
	// failed afterwards.
	OutcomeFail Outcome = "FAIL"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAllow, OutcomeBlock, OutcomeFail:
		return true
	}
	return false
}

// #endregion outcome

// #region decision
// Decision is one row of the append-only gate_decisions log. Entries are
// never mutated or deleted; a later ALLOW for the same (workspace, phase) is
// a new entry, so the ledger keeps full history including flapping
// pass/fail sequences across reruns.
type Decision struct {
	ID          string
	WorkspaceID string
	Phase       string
	Artifact    string
	Outcome     Outcome
	StopCode    string // present iff Outcome != ALLOW
	Reason      string
	EvidenceRef string
	RecordedAt  time.Time // telemetry only, excluded from replay comparison
}

// #endregion decision
