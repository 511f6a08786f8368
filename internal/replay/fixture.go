package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mirelabs/gatekeeper/internal/evidence"
)

// #region fixture-types
// Fixture is the top-level JSON structure for a replay fixture: a scripted
// sequence of evidence writes and emission attempts with expected gating
// outcomes. Fixtures pin the audit behavior of reruns, including flapping
// pass/fail sequences.
type Fixture struct {
	Description string `json:"description"`
	WorkspaceID string `json:"workspace_id"`
	Steps       []Step `json:"steps"`
}

// Step is one scripted action. When Evidence is set it is written for the
// step's phase before the emission attempt. Emit names the artifact whose
// authorization is requested; an empty Emit writes evidence only.
type Step struct {
	Phase    string        `json:"phase"`
	Evidence *StepEvidence `json:"evidence,omitempty"`
	Emit     string        `json:"emit,omitempty"`
	Payload  string        `json:"payload,omitempty"`
	Expect   *Expectation  `json:"expect,omitempty"`
}

// StepEvidence mirrors evidence.Record with JSON tags.
type StepEvidence struct {
	SchemaVersion  int            `json:"schema_version"`
	Verdict        string         `json:"verdict"`
	ChecksExecuted []string       `json:"checks_executed"`
	Telemetry      map[string]any `json:"telemetry,omitempty"`
}

// Expectation captures the expected outcome of a step's emission.
type Expectation struct {
	Outcome  string `json:"outcome"` // ALLOW | BLOCK | FAIL
	StopCode string `json:"stop_code,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.WorkspaceID == "" {
		return nil, fmt.Errorf("fixture %s: workspace_id is required", path)
	}
	return &f, nil
}

// ToRecord converts fixture evidence to a domain record.
func (se *StepEvidence) ToRecord() evidence.Record {
	return evidence.Record{
		SchemaVersion:  se.SchemaVersion,
		Verdict:        evidence.Verdict(se.Verdict),
		ChecksExecuted: se.ChecksExecuted,
		Telemetry:      se.Telemetry,
	}
}

// #endregion fixture-loader
