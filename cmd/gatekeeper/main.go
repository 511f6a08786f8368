package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mirelabs/gatekeeper/internal/artifact"
	"github.com/mirelabs/gatekeeper/internal/evidence"
	"github.com/mirelabs/gatekeeper/internal/gate"
	"github.com/mirelabs/gatekeeper/internal/policy"
	"github.com/mirelabs/gatekeeper/internal/workspace"
)

// #region main

func main() {
	wsPath := flag.String("workspace", "", "path to the workspace root")
	wsID := flag.String("id", "", "workspace identifier (default: workspace directory base name)")
	pipeline := flag.String("pipeline", "", "pipeline manifest YAML (default: built-in pipeline)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *wsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gatekeeper --workspace path/to/workspace [--id slug] [--pipeline pipeline.yaml] [--json]")
		os.Exit(2)
	}

	reg, err := loadRegistry(*pipeline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(policy.StopConfigError.ExitCode())
	}

	id := *wsID
	if id == "" {
		id = baseName(*wsPath)
	}
	ws, err := workspace.New(id, *wsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := runStatus(ws, reg, *jsonOut); err != nil {
		var v *policy.Violation
		if errors.As(err, &v) {
			fmt.Fprintf(os.Stderr, "error: %v\n", v)
			os.Exit(v.StopCode.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region status

type phaseStatus struct {
	Phase    string   `json:"phase"`
	Requires string   `json:"requires,omitempty"`
	Gate     string   `json:"gate"` // OPEN | CLOSED | UNGATED
	Reasons  []string `json:"reasons,omitempty"`
}

// runStatus renders the current gate verdict per phase without writing
// anything: status inspection is not a gating decision and leaves no
// ledger row.
func runStatus(ws *workspace.Workspace, reg *artifact.Registry, jsonOut bool) error {
	store := evidence.NewStore(ws)

	var statuses []phaseStatus
	anyClosed := false
	for _, phase := range reg.Phases() {
		st := phaseStatus{Phase: phase}
		prereq, gated := reg.Prerequisite(phase)
		if !gated {
			st.Gate = "UNGATED"
			statuses = append(statuses, st)
			continue
		}
		st.Requires = prereq

		rec, readErr := store.Read(prereq)
		result := gate.EvaluateRead(rec, readErr)
		if result.Pass {
			st.Gate = "OPEN"
		} else {
			st.Gate = "CLOSED"
			st.Reasons = result.Reasons
			anyClosed = true
		}
		statuses = append(statuses, st)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(statuses); err != nil {
			return err
		}
	} else {
		fmt.Printf("workspace %s (%s)\n", ws.ID, ws.Root)
		fmt.Printf("%-12s %-12s %-8s %s\n", "PHASE", "REQUIRES", "GATE", "REASONS")
		for _, st := range statuses {
			fmt.Printf("%-12s %-12s %-8s %s\n", st.Phase, dash(st.Requires), st.Gate, strings.Join(st.Reasons, ","))
		}
	}

	if anyClosed {
		return &policy.Violation{
			StopCode:    policy.StopQAGateFailed,
			Reason:      "one or more phase gates are closed",
			WorkspaceID: ws.ID,
		}
	}
	return nil
}

// #endregion status

// #region helpers

func loadRegistry(path string) (*artifact.Registry, error) {
	if path == "" {
		return artifact.NewRegistry(artifact.DefaultPipeline())
	}
	return artifact.LoadPipeline(path)
}

func baseName(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion helpers
