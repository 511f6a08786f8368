package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mirelabs/gatekeeper/internal/artifact"
	"github.com/mirelabs/gatekeeper/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to replay fixture JSON")
	pipeline := flag.String("pipeline", "", "pipeline manifest YAML (default: built-in pipeline)")
	dir := flag.String("dir", "", "scratch directory (default: temp dir, removed afterwards)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--pipeline pipeline.yaml] [--dir scratch] [--json]")
		os.Exit(2)
	}

	mismatches, err := run(*fixturePath, *pipeline, *dir, *jsonOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if mismatches > 0 {
		os.Exit(1)
	}
}

// #endregion main

// #region run

func run(fixturePath, pipeline, dir string, jsonOut bool) (int, error) {
	fixture, err := replay.LoadFixture(fixturePath)
	if err != nil {
		return 0, err
	}

	var reg *artifact.Registry
	if pipeline == "" {
		reg, err = artifact.NewRegistry(artifact.DefaultPipeline())
	} else {
		reg, err = artifact.LoadPipeline(pipeline)
	}
	if err != nil {
		return 0, err
	}

	if dir == "" {
		tmp, err := os.MkdirTemp("", "gatekeeper-replay-*")
		if err != nil {
			return 0, fmt.Errorf("scratch dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	results, led, err := replay.Replay(fixture, reg, dir, logger)
	if err != nil {
		return 0, err
	}
	defer led.Close()

	rows, err := led.Query(fixture.WorkspaceID, "")
	if err != nil {
		return 0, err
	}
	summary := replay.Summarize(results, rows)

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Description string              `json:"description"`
			Results     []replay.StepResult `json:"results"`
			Summary     replay.Summary      `json:"summary"`
		}{fixture.Description, results, summary}); err != nil {
			return 0, err
		}
		return summary.Mismatches, nil
	}

	fmt.Printf("fixture: %s\n", fixture.Description)
	fmt.Printf("%-10s %-28s %-7s %-26s %s\n", "PHASE", "ARTIFACT", "OUTCOME", "STOP_CODE", "MATCHED")
	for _, r := range results {
		fmt.Printf("%-10s %-28s %-7s %-26s %v\n", r.Phase, r.Artifact, r.Outcome, dash(r.StopCode), r.Matched)
	}
	fmt.Printf("steps=%d allowed=%d blocked=%d failed=%d mismatches=%d ledger_rows=%d\n",
		summary.TotalSteps, summary.Allowed, summary.Blocked, summary.Failed, summary.Mismatches, summary.LedgerRows)
	return summary.Mismatches, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion run
