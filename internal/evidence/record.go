package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// #region verdict
// Verdict is the normative pass/fail outcome of a phase run.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// #endregion verdict

// #region schema-version
// SchemaVersionCurrent is the evidence payload version this build writes.
// SupportedSchema reports whether a stored version can be evaluated.
const SchemaVersionCurrent = 1

func SupportedSchema(v int) bool {
	return v == SchemaVersionCurrent
}

// #endregion schema-version

// #region record
// Record describes what checks one phase execution ran and whether they
// passed. schema_version, verdict and checks_executed are normative; the
// telemetry map never participates in gating or in any deterministic
// comparison of downstream artifacts.
type Record struct {
	SchemaVersion  int
	Verdict        Verdict
	ChecksExecuted []string
	Telemetry      map[string]any
}

// NewRecord builds a current-version record. The timestamp lands in
// telemetry only.
func NewRecord(verdict Verdict, checks []string, at time.Time) Record {
	return Record{
		SchemaVersion:  SchemaVersionCurrent,
		Verdict:        verdict,
		ChecksExecuted: checks,
		Telemetry: map[string]any{
			"timestamp": at.UTC().Format(time.RFC3339Nano),
		},
	}
}

// #endregion record

// #region canonical
// payload is the persisted form. Fixed struct fields plus encoding/json's
// sorted map keys keep the serialization canonical: two writes of logically
// identical normative content are byte-identical in their normative prefix.
type payload struct {
	SchemaVersion  int            `json:"schema_version"`
	Verdict        Verdict        `json:"verdict"`
	ChecksExecuted []string       `json:"checks_executed"`
	Telemetry      map[string]any `json:"telemetry,omitempty"`
}

type normativePayload struct {
	SchemaVersion  int      `json:"schema_version"`
	Verdict        Verdict  `json:"verdict"`
	ChecksExecuted []string `json:"checks_executed"`
}

// Encode renders the full canonical payload, telemetry included.
func (r Record) Encode() ([]byte, error) {
	checks := r.ChecksExecuted
	if checks == nil {
		checks = []string{}
	}
	data, err := json.Marshal(payload{
		SchemaVersion:  r.SchemaVersion,
		Verdict:        r.Verdict,
		ChecksExecuted: checks,
		Telemetry:      r.Telemetry,
	})
	if err != nil {
		return nil, fmt.Errorf("encode evidence: %w", err)
	}
	return append(data, '\n'), nil
}

// NormativePayload renders only the fields that may influence a verdict or
// a golden comparison. Telemetry is segregated out before any hashing.
func (r Record) NormativePayload() ([]byte, error) {
	checks := r.ChecksExecuted
	if checks == nil {
		checks = []string{}
	}
	data, err := json.Marshal(normativePayload{
		SchemaVersion:  r.SchemaVersion,
		Verdict:        r.Verdict,
		ChecksExecuted: checks,
	})
	if err != nil {
		return nil, fmt.Errorf("encode normative evidence: %w", err)
	}
	return data, nil
}

// NormativeHash is the hex sha256 of the normative payload.
func (r Record) NormativeHash() (string, error) {
	data, err := r.NormativePayload()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// #endregion canonical
