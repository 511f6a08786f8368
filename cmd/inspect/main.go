package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mirelabs/gatekeeper/internal/ledger"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the gatekeeper ledger database")
	wsID := flag.String("workspace", "", "filter to one workspace")
	phase := flag.String("phase", "", "filter to one phase (requires --workspace)")
	last := flag.Int("last", 20, "show N most recent decisions (ignored with --workspace)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/gatekeeper.db [--workspace id [--phase name]] [--last N] [--json]")
		os.Exit(2)
	}
	if *phase != "" && *wsID == "" {
		fmt.Fprintln(os.Stderr, "--phase requires --workspace")
		os.Exit(2)
	}

	led, err := ledger.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		os.Exit(1)
	}
	defer led.Close()

	var decisions []ledger.Decision
	if *wsID != "" {
		decisions, err = led.Query(*wsID, *phase)
	} else {
		decisions, err = led.Tail(*last)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := render(decisions, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region render

type row struct {
	ID          string `json:"decision_id"`
	WorkspaceID string `json:"workspace_id"`
	Phase       string `json:"phase"`
	Artifact    string `json:"artifact"`
	Outcome     string `json:"outcome"`
	StopCode    string `json:"stop_code,omitempty"`
	Reason      string `json:"reason,omitempty"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
	RecordedAt  string `json:"recorded_at"`
}

func render(decisions []ledger.Decision, jsonOut bool) error {
	rows := make([]row, len(decisions))
	for i, d := range decisions {
		rows[i] = row{
			ID:          d.ID,
			WorkspaceID: d.WorkspaceID,
			Phase:       d.Phase,
			Artifact:    d.Artifact,
			Outcome:     string(d.Outcome),
			StopCode:    d.StopCode,
			Reason:      d.Reason,
			EvidenceRef: d.EvidenceRef,
			RecordedAt:  d.RecordedAt.Format(time.RFC3339),
		}
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	fmt.Printf("%-10s %-14s %-10s %-28s %-6s %-26s %s\n",
		"ID", "WORKSPACE", "PHASE", "ARTIFACT", "OUTCOME", "STOP_CODE", "RECORDED_AT")
	for _, r := range rows {
		fmt.Printf("%-10s %-14s %-10s %-28s %-6s %-26s %s\n",
			shorten(r.ID, 8), shorten(r.WorkspaceID, 14), r.Phase, shorten(r.Artifact, 28),
			r.Outcome, dash(r.StopCode), r.RecordedAt)
	}
	return nil
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion render
