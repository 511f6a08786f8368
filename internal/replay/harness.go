package replay

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/mirelabs/gatekeeper/internal/artifact"
	"github.com/mirelabs/gatekeeper/internal/evidence"
	"github.com/mirelabs/gatekeeper/internal/ledger"
	"github.com/mirelabs/gatekeeper/internal/policy"
	"github.com/mirelabs/gatekeeper/internal/workspace"
)

// #region types
// StepResult captures the observed outcome of replaying one step.
type StepResult struct {
	Phase    string
	Artifact string
	Outcome  ledger.Outcome
	StopCode string
	Matched  bool // expectation met (true when no expectation given)
	Detail   string
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalSteps int
	Allowed    int
	Blocked    int
	Failed     int
	Mismatches int
	LedgerRows int
}

// #endregion types

// #region replay
// Replay runs a fixture through a real enforcer against a scratch workspace
// and scratch ledger under dir. The same fixture always produces the same
// sequence of outcomes; recorded_at never participates in the comparison.
func Replay(f *Fixture, reg *artifact.Registry, dir string, logger *slog.Logger) ([]StepResult, *ledger.Ledger, error) {
	ws, err := workspace.New(f.WorkspaceID, filepath.Join(dir, f.WorkspaceID))
	if err != nil {
		return nil, nil, err
	}
	led, err := ledger.Open(filepath.Join(dir, "replay-ledger.db"))
	if err != nil {
		return nil, nil, err
	}

	enforcer := policy.NewEnforcer(reg, led, logger)
	store := evidence.NewStore(ws)

	results := make([]StepResult, 0, len(f.Steps))
	for _, step := range f.Steps {
		if step.Evidence != nil {
			if err := store.Write(step.Phase, step.Evidence.ToRecord()); err != nil {
				led.Close()
				return nil, nil, err
			}
		}
		if step.Emit == "" {
			continue
		}

		payload := []byte(step.Payload)
		if len(payload) == 0 {
			payload = []byte("replay artifact\n")
		}

		res := StepResult{Phase: step.Phase, Artifact: step.Emit}
		_, emitErr := enforcer.EmitCore(ws, step.Phase, step.Emit, payload)
		switch {
		case emitErr == nil:
			res.Outcome = ledger.OutcomeAllow
		default:
			var v *policy.Violation
			if !errors.As(emitErr, &v) {
				led.Close()
				return nil, nil, emitErr
			}
			res.StopCode = string(v.StopCode)
			if v.StopCode == policy.StopWriteFailure {
				res.Outcome = ledger.OutcomeFail
			} else {
				res.Outcome = ledger.OutcomeBlock
			}
			res.Detail = v.Reason
		}

		res.Matched = matches(step.Expect, res)
		results = append(results, res)
	}

	return results, led, nil
}

func matches(expect *Expectation, res StepResult) bool {
	if expect == nil {
		return true
	}
	if expect.Outcome != string(res.Outcome) {
		return false
	}
	return expect.StopCode == "" || expect.StopCode == res.StopCode
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []StepResult, rows []ledger.Decision) Summary {
	s := Summary{TotalSteps: len(results), LedgerRows: len(rows)}
	for _, r := range results {
		switch r.Outcome {
		case ledger.OutcomeAllow:
			s.Allowed++
		case ledger.OutcomeBlock:
			s.Blocked++
		case ledger.OutcomeFail:
			s.Failed++
		}
		if !r.Matched {
			s.Mismatches++
		}
	}
	return s
}

// #endregion replay
