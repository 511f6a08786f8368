package policy

// #region stop-codes
// StopCode is a stable, closed-vocabulary identifier for why a phase was
// blocked or failed. Orchestration layers map each to a distinct exit code
// and user message; adding a code is a breaking interface change and must
// be documented alongside the pipeline version.
type StopCode string

const (
	// StopConfigError: malformed registration or pipeline manifest.
	// Fatal at startup, never recoverable at runtime.
	StopConfigError StopCode = "CONFIG_ERROR"

	// StopQAGateFailed: missing, malformed, or failing evidence for the
	// phase's prerequisite. Recoverable by rerunning the prerequisite
	// phase to produce fresh evidence.
	StopQAGateFailed StopCode = "QA_GATE_FAILED"

	// StopArtifactPolicyViolation: attempt to emit an artifact the phase
	// never declared, or to treat a CORE artifact as something else.
	// Fatal to the current phase, never silently bypassed.
	StopArtifactPolicyViolation StopCode = "ARTIFACT_POLICY_VIOLATION"

	// StopWriteFailure: the gate allowed the emission but the
	// perimeter-checked atomic write itself failed. Ledgered as FAIL,
	// distinct from BLOCK.
	StopWriteFailure StopCode = "WRITE_FAILURE"
)

// ExitCode maps a stop code to the process exit code surfaced by the CLI
// tools. Zero is reserved for success.
func (s StopCode) ExitCode() int {
	switch s {
	case StopConfigError:
		return 2
	case StopQAGateFailed:
		return 3
	case StopArtifactPolicyViolation:
		return 4
	case StopWriteFailure:
		return 5
	default:
		return 1
	}
}

// #endregion stop-codes
