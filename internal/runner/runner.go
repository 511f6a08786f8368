package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mirelabs/gatekeeper/internal/checks"
	"github.com/mirelabs/gatekeeper/internal/evidence"
	"github.com/mirelabs/gatekeeper/internal/policy"
	"github.com/mirelabs/gatekeeper/internal/workspace"
)

// #region types
// Output is one artifact a phase wants to emit. Render produces the bytes
// on demand so nothing is built for a refused emission.
type Output struct {
	Name   string
	Render func() ([]byte, error)
}

// PhaseJob bundles everything one phase execution needs: its checks and
// its declared outputs.
type PhaseJob struct {
	Phase   string
	Checks  []checks.Check
	Core    []Output
	Service []Output
}

// Runner executes phase jobs under the collaborator contract: evidence is
// written before any authorization request, every CORE write goes through
// the enforcer, and violations propagate typed.
type Runner struct {
	enforcer *policy.Enforcer
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner wires a runner. now defaults to time.Now.
func NewRunner(enforcer *policy.Enforcer, logger *slog.Logger, now func() time.Time) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Runner{enforcer: enforcer, logger: logger, now: now}
}

// #endregion types

// #region run-phase
// RunPhase runs the job's checks, overwrites the phase's evidence record,
// then requests emission of each declared output. The first violation stops
// the phase; SERVICE outputs are attempted regardless of their own failures
// but never mask a CORE violation.
func (r *Runner) RunPhase(ws *workspace.Workspace, job PhaseJob) error {
	results, verdict := checks.Run(ws, job.Checks)
	rec := checks.ToRecord(results, verdict, r.now())

	store := evidence.NewStore(ws)
	if err := store.Write(job.Phase, rec); err != nil {
		return fmt.Errorf("phase %s: %w", job.Phase, err)
	}
	r.logger.Info("evidence written",
		"workspace", ws.ID, "phase", job.Phase, "verdict", verdict, "checks", len(results))

	for _, out := range job.Core {
		data, err := out.Render()
		if err != nil {
			return fmt.Errorf("phase %s: render %s: %w", job.Phase, out.Name, err)
		}
		if _, err := r.enforcer.EmitCore(ws, job.Phase, out.Name, data); err != nil {
			return err
		}
	}

	for _, out := range job.Service {
		data, err := out.Render()
		if err != nil {
			r.logger.Warn("service output render failed",
				"workspace", ws.ID, "phase", job.Phase, "artifact", out.Name, "err", err)
			continue
		}
		if err := r.enforcer.EmitService(ws, job.Phase, out.Name, data); err != nil {
			var v *policy.Violation
			if errors.As(err, &v) {
				return err
			}
			// Plain write errors on best-effort artifacts are logged by
			// the enforcer and do not stop the phase.
		}
	}

	return nil
}

// #endregion run-phase

// #region pipeline
// Pipeline drives phase jobs in order, stopping at the first violation.
type Pipeline struct {
	Runner *Runner
	Jobs   []PhaseJob
}

// Run executes every job sequentially within one workspace. The returned
// error is the propagated *Violation (or infrastructure error) of the phase
// that stopped the pipeline; nil means every phase completed.
func (p *Pipeline) Run(ws *workspace.Workspace) error {
	for _, job := range p.Jobs {
		if err := p.Runner.RunPhase(ws, job); err != nil {
			return fmt.Errorf("pipeline stopped at phase %s: %w", job.Phase, err)
		}
	}
	return nil
}

// #endregion pipeline
