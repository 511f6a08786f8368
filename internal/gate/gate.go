package gate

import (
	"errors"

	"github.com/mirelabs/gatekeeper/internal/evidence"
)

// #region reasons
// Failure reasons form a closed set. Upstream orchestration routes each to a
// different remediation message, so they must stay distinguishable.
const (
	ReasonUnsupportedSchema = "unsupported_schema"
	ReasonEvidenceMissing   = "evidence_missing"
	ReasonEvidenceMalformed = "evidence_malformed"
	ReasonVerdictFail       = "verdict_fail"
)

// #endregion reasons

// #region result
// Result is the deterministic verdict over one evidence record.
type Result struct {
	Pass    bool
	Reasons []string // non-empty iff !Pass
}

// #endregion result

// #region evaluate
// Evaluate renders a PASS/FAIL verdict from the normative fields of the
// record and nothing else: telemetry never participates. A nil record means
// no evidence was produced yet. The function is pure; identical input
// records yield identical results regardless of wall clock or environment.
func Evaluate(rec *evidence.Record) Result {
	if rec == nil {
		return Result{Reasons: []string{ReasonEvidenceMissing}}
	}
	if !evidence.SupportedSchema(rec.SchemaVersion) {
		return Result{Reasons: []string{ReasonUnsupportedSchema}}
	}

	var reasons []string

	switch rec.Verdict {
	case evidence.VerdictPass:
		// A passing verdict with no checks executed is contradictory:
		// nothing can have passed.
		if len(rec.ChecksExecuted) == 0 {
			reasons = append(reasons, ReasonEvidenceMalformed)
		}
	case evidence.VerdictFail:
		reasons = append(reasons, ReasonVerdictFail)
	default:
		reasons = append(reasons, ReasonEvidenceMalformed)
	}

	if len(reasons) > 0 {
		return Result{Reasons: reasons}
	}
	return Result{Pass: true}
}

// EvaluateRead folds a store read outcome into the same closed reason set,
// keeping callers pure over their inputs: the error value is input, not
// control flow.
func EvaluateRead(rec *evidence.Record, readErr error) Result {
	switch {
	case readErr == nil:
		return Evaluate(rec)
	case errors.Is(readErr, evidence.ErrNotFound):
		return Result{Reasons: []string{ReasonEvidenceMissing}}
	case errors.Is(readErr, evidence.ErrMalformed):
		return Result{Reasons: []string{ReasonEvidenceMalformed}}
	default:
		// I/O errors outside the evidence contract still fail closed.
		return Result{Reasons: []string{ReasonEvidenceMissing}}
	}
}

// #endregion evaluate
