package policy

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mirelabs/gatekeeper/internal/artifact"
	"github.com/mirelabs/gatekeeper/internal/evidence"
	"github.com/mirelabs/gatekeeper/internal/gate"
	"github.com/mirelabs/gatekeeper/internal/ledger"
	"github.com/mirelabs/gatekeeper/internal/workspace"
)

// #region enforcer
// Enforcer decides, per artifact, whether an emission may proceed, and
// appends every such decision to the ledger. It is the only writer of
// ledger rows. Dependencies are injected; the workspace identifier is an
// explicit key on every call, never ambient state.
type Enforcer struct {
	registry *artifact.Registry
	ledger   *ledger.Ledger
	logger   *slog.Logger
}

// NewEnforcer wires the enforcer to its registry and ledger.
func NewEnforcer(reg *artifact.Registry, led *ledger.Ledger, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{registry: reg, ledger: led, logger: logger}
}

// #endregion enforcer

// #region authorize
// AuthorizeEmit renders the gating decision for one named artifact.
// The returned error is a *Violation when the gate refuses; other errors
// are unexpected infrastructure failures. Reruns always re-evaluate from
// scratch against fresh evidence; no prior verdict is cached, and every
// call for a gated artifact appends a new ledger row.
func (e *Enforcer) AuthorizeEmit(ws *workspace.Workspace, phase, name string) (*Authorization, error) {
	if !e.registry.HasPhase(phase) {
		return nil, e.block(ws, phase, name, StopConfigError, "unknown_phase", "")
	}

	desc, ok := e.registry.Match(phase, name)
	if !ok {
		return nil, e.block(ws, phase, name, StopArtifactPolicyViolation, "unknown_artifact", "")
	}

	// Best-effort artifacts never block and never consult evidence.
	// They also leave no ledger row: a decision that cannot refuse is not
	// an auditable gate decision.
	if desc.Class == artifact.ClassService {
		e.logger.Info("service artifact authorized",
			"workspace", ws.ID, "phase", phase, "artifact", name, "class", artifact.ClassService)
		return &Authorization{
			WorkspaceID: ws.ID,
			Phase:       phase,
			Artifact:    name,
			Class:       desc.Class,
		}, nil
	}

	prereq, gated := e.registry.Prerequisite(phase)
	if !gated {
		// Pipeline head: nothing upstream can gate it.
		dec, err := e.ledger.Append(ledger.Decision{
			WorkspaceID: ws.ID,
			Phase:       phase,
			Artifact:    name,
			Outcome:     ledger.OutcomeAllow,
			Reason:      "no prerequisite phase",
		})
		if err != nil {
			return nil, err
		}
		return &Authorization{
			WorkspaceID: ws.ID,
			Phase:       phase,
			Artifact:    name,
			Class:       desc.Class,
			DecisionID:  dec.ID,
		}, nil
	}

	evidenceRef := evidence.Path(prereq)
	rec, readErr := evidence.NewStore(ws).Read(prereq)
	result := gate.EvaluateRead(rec, readErr)

	if !result.Pass {
		reason := strings.Join(result.Reasons, ",")
		return nil, e.block(ws, phase, name, stopCodeFor(result.Reasons), reason, evidenceRef)
	}

	dec, err := e.ledger.Append(ledger.Decision{
		WorkspaceID: ws.ID,
		Phase:       phase,
		Artifact:    name,
		Outcome:     ledger.OutcomeAllow,
		EvidenceRef: evidenceRef,
	})
	if err != nil {
		return nil, err
	}
	return &Authorization{
		WorkspaceID: ws.ID,
		Phase:       phase,
		Artifact:    name,
		Class:       desc.Class,
		EvidenceRef: evidenceRef,
		DecisionID:  dec.ID,
	}, nil
}

// block appends a BLOCK row and returns the matching violation.
func (e *Enforcer) block(ws *workspace.Workspace, phase, name string, code StopCode, reason, evidenceRef string) error {
	if _, err := e.ledger.Append(ledger.Decision{
		WorkspaceID: ws.ID,
		Phase:       phase,
		Artifact:    name,
		Outcome:     ledger.OutcomeBlock,
		StopCode:    string(code),
		Reason:      reason,
		EvidenceRef: evidenceRef,
	}); err != nil {
		return err
	}
	e.logger.Warn("emission blocked",
		"workspace", ws.ID, "phase", phase, "artifact", name, "stop_code", code, "reason", reason)
	return &Violation{
		StopCode:    code,
		Reason:      reason,
		WorkspaceID: ws.ID,
		Phase:       phase,
		Artifact:    name,
		EvidenceRef: evidenceRef,
	}
}

// stopCodeFor maps gate failure reasons onto the stop-code taxonomy. All
// evidence-shaped failures route to QA_GATE_FAILED: the remedy is the same,
// rerun the prerequisite phase.
func stopCodeFor(reasons []string) StopCode {
	for _, r := range reasons {
		switch r {
		case gate.ReasonEvidenceMissing, gate.ReasonEvidenceMalformed,
			gate.ReasonVerdictFail, gate.ReasonUnsupportedSchema:
			return StopQAGateFailed
		}
	}
	return StopQAGateFailed
}

// #endregion authorize

// #region emit
// EmitCore authorizes and then performs the perimeter-checked atomic write
// of a CORE or CORE_GATE artifact. If the write itself fails after the gate
// allowed it, a FAIL row (distinct from BLOCK) is appended and the failure
// propagates; there is no fallback format and no placeholder.
func (e *Enforcer) EmitCore(ws *workspace.Workspace, phase, name string, data []byte) (*Authorization, error) {
	auth, err := e.AuthorizeEmit(ws, phase, name)
	if err != nil {
		return nil, err
	}
	if auth.Class == artifact.ClassService {
		// Class confusion is a policy violation, not a write failure.
		return nil, e.block(ws, phase, name, StopArtifactPolicyViolation,
			"service artifact emitted through the CORE path", "")
	}

	if writeErr := ws.AtomicWrite(name, data); writeErr != nil {
		return nil, e.failWrite(ws, phase, name, auth.EvidenceRef, writeErr, StopWriteFailure)
	}
	return auth, nil
}

// EmitService writes a best-effort artifact. It never blocks and never
// gates; a write failure is logged, labeled with its class, and reported to
// the caller, but it is not a ledger decision.
func (e *Enforcer) EmitService(ws *workspace.Workspace, phase, name string, data []byte) error {
	auth, err := e.AuthorizeEmit(ws, phase, name)
	if err != nil {
		return err
	}
	if auth.Class != artifact.ClassService {
		return &Violation{
			StopCode:    StopArtifactPolicyViolation,
			Reason:      fmt.Sprintf("artifact %s is %s-classed; use EmitCore", name, auth.Class),
			WorkspaceID: ws.ID,
			Phase:       phase,
			Artifact:    name,
		}
	}
	if writeErr := ws.AtomicWrite(name, data); writeErr != nil {
		e.logger.Warn("service artifact write failed",
			"workspace", ws.ID, "phase", phase, "artifact", name, "class", artifact.ClassService, "err", writeErr)
		return fmt.Errorf("service artifact %s: %w", name, writeErr)
	}
	return nil
}

// failWrite records a FAIL decision for an emission the gate had permitted.
func (e *Enforcer) failWrite(ws *workspace.Workspace, phase, name, evidenceRef string, cause error, code StopCode) error {
	if _, err := e.ledger.Append(ledger.Decision{
		WorkspaceID: ws.ID,
		Phase:       phase,
		Artifact:    name,
		Outcome:     ledger.OutcomeFail,
		StopCode:    string(code),
		Reason:      cause.Error(),
		EvidenceRef: evidenceRef,
	}); err != nil {
		return err
	}
	e.logger.Error("authorized emission failed",
		"workspace", ws.ID, "phase", phase, "artifact", name, "stop_code", code, "err", cause)
	return &Violation{
		StopCode:    code,
		Reason:      cause.Error(),
		WorkspaceID: ws.ID,
		Phase:       phase,
		Artifact:    name,
		EvidenceRef: evidenceRef,
	}
}

// #endregion emit
