package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mirelabs/gatekeeper/internal/artifact"
	"github.com/mirelabs/gatekeeper/internal/evidence"
	"github.com/mirelabs/gatekeeper/internal/ledger"
	"github.com/mirelabs/gatekeeper/internal/workspace"
)

func testRegistry(t *testing.T) *artifact.Registry {
	t.Helper()
	reg, err := artifact.NewRegistry([]artifact.PhaseSpec{
		{
			Name: "tag",
			Artifacts: []artifact.Descriptor{
				{Name: "tagged/**/*.md", Class: artifact.ClassCore},
				{Name: evidence.Path("tag"), Class: artifact.ClassCoreGate},
			},
		},
		{
			Name:     "publish",
			Requires: "tag",
			Artifacts: []artifact.Descriptor{
				{Name: "kb/SUMMARY.md", Class: artifact.ClassCore},
				{Name: evidence.Path("publish"), Class: artifact.ClassCoreGate},
				{Name: "logs/publish.log", Class: artifact.ClassService},
			},
		},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func testEnforcer(t *testing.T) (*Enforcer, *workspace.Workspace, *ledger.Ledger) {
	t.Helper()
	dir := t.TempDir()
	ws, err := workspace.New("client-a", filepath.Join(dir, "client-a"))
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	led, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	t.Cleanup(func() { led.Close() })
	return NewEnforcer(testRegistry(t), led, nil), ws, led
}

func writePassingEvidence(t *testing.T, ws *workspace.Workspace, phase string) {
	t.Helper()
	rec := evidence.NewRecord(evidence.VerdictPass, []string{"lint", "tests"}, time.Now())
	if err := evidence.NewStore(ws).Write(phase, rec); err != nil {
		t.Fatalf("write evidence: %v", err)
	}
}

func ledgerRows(t *testing.T, led *ledger.Ledger, phase string) []ledger.Decision {
	t.Helper()
	rows, err := led.Query("client-a", phase)
	if err != nil {
		t.Fatalf("query ledger: %v", err)
	}
	return rows
}

func TestAuthorizeAllowsWithPassingEvidence(t *testing.T) {
	e, ws, led := testEnforcer(t)
	writePassingEvidence(t, ws, "tag")

	auth, err := e.AuthorizeEmit(ws, "publish", "kb/SUMMARY.md")
	if err != nil {
		t.Fatalf("AuthorizeEmit: %v", err)
	}
	if auth.Class != artifact.ClassCore {
		t.Fatalf("class %s", auth.Class)
	}
	if auth.EvidenceRef != evidence.Path("tag") {
		t.Fatalf("evidence ref %q", auth.EvidenceRef)
	}

	rows := ledgerRows(t, led, "publish")
	if len(rows) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(rows))
	}
	if rows[0].Outcome != ledger.OutcomeAllow || rows[0].StopCode != "" {
		t.Fatalf("unexpected row %+v", rows[0])
	}
	if rows[0].ID != auth.DecisionID {
		t.Fatal("authorization should reference its ledger row")
	}
}

func TestAuthorizeBlocksOnMissingEvidence(t *testing.T) {
	e, ws, led := testEnforcer(t)

	_, err := e.AuthorizeEmit(ws, "publish", "kb/SUMMARY.md")
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation, got %v", err)
	}
	if v.StopCode != StopQAGateFailed {
		t.Fatalf("stop code %s", v.StopCode)
	}
	if v.Reason != "evidence_missing" {
		t.Fatalf("reason %q", v.Reason)
	}
	if v.EvidenceRef != evidence.Path("tag") {
		t.Fatalf("evidence ref %q", v.EvidenceRef)
	}

	rows := ledgerRows(t, led, "publish")
	if len(rows) != 1 || rows[0].Outcome != ledger.OutcomeBlock {
		t.Fatalf("expected one BLOCK row, got %+v", rows)
	}
	if rows[0].StopCode != string(StopQAGateFailed) {
		t.Fatalf("row stop code %q", rows[0].StopCode)
	}
}

func TestAuthorizeBlocksOnFailingVerdict(t *testing.T) {
	e, ws, _ := testEnforcer(t)

	rec := evidence.NewRecord(evidence.VerdictFail, []string{"lint"}, time.Now())
	if err := evidence.NewStore(ws).Write("tag", rec); err != nil {
		t.Fatalf("write evidence: %v", err)
	}

	_, err := e.AuthorizeEmit(ws, "publish", "kb/SUMMARY.md")
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation, got %v", err)
	}
	if v.StopCode != StopQAGateFailed || v.Reason != "verdict_fail" {
		t.Fatalf("got %s / %q", v.StopCode, v.Reason)
	}
}

func TestAuthorizeUnknownArtifact(t *testing.T) {
	e, ws, led := testEnforcer(t)
	writePassingEvidence(t, ws, "tag")

	_, err := e.AuthorizeEmit(ws, "publish", "kb/never-declared.pdf")
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation, got %v", err)
	}
	if v.StopCode != StopArtifactPolicyViolation || v.Reason != "unknown_artifact" {
		t.Fatalf("got %s / %q", v.StopCode, v.Reason)
	}

	rows := ledgerRows(t, led, "publish")
	if len(rows) != 1 || rows[0].Outcome != ledger.OutcomeBlock {
		t.Fatalf("expected BLOCK row, got %+v", rows)
	}
}

func TestAuthorizeUnknownPhaseIsConfigError(t *testing.T) {
	e, ws, _ := testEnforcer(t)

	_, err := e.AuthorizeEmit(ws, "mystery", "kb/SUMMARY.md")
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation, got %v", err)
	}
	if v.StopCode != StopConfigError {
		t.Fatalf("stop code %s", v.StopCode)
	}
}

func TestServiceArtifactsNeverBlock(t *testing.T) {
	e, ws, led := testEnforcer(t)
	// No evidence exists at all.

	auth, err := e.AuthorizeEmit(ws, "publish", "logs/publish.log")
	if err != nil {
		t.Fatalf("SERVICE authorization must never block: %v", err)
	}
	if auth.Class != artifact.ClassService {
		t.Fatalf("class %s", auth.Class)
	}

	// Best-effort decisions leave no ledger rows.
	rows := ledgerRows(t, led, "publish")
	if len(rows) != 0 {
		t.Fatalf("expected no ledger rows, got %d", len(rows))
	}
}

func TestUngatedHeadPhaseAllows(t *testing.T) {
	e, ws, led := testEnforcer(t)

	auth, err := e.AuthorizeEmit(ws, "tag", "tagged/ch01.md")
	if err != nil {
		t.Fatalf("AuthorizeEmit: %v", err)
	}
	if auth.DecisionID == "" {
		t.Fatal("head-phase allow must still be ledgered")
	}
	rows := ledgerRows(t, led, "tag")
	if len(rows) != 1 || rows[0].Outcome != ledger.OutcomeAllow {
		t.Fatalf("expected ALLOW row, got %+v", rows)
	}
}

func TestEmitCoreWritesWhenAllowed(t *testing.T) {
	e, ws, _ := testEnforcer(t)
	writePassingEvidence(t, ws, "tag")

	if _, err := e.EmitCore(ws, "publish", "kb/SUMMARY.md", []byte("# Summary\n")); err != nil {
		t.Fatalf("EmitCore: %v", err)
	}
	data, err := ws.Read("kb/SUMMARY.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "# Summary\n" {
		t.Fatalf("content %q", data)
	}
}

func TestNoSilentDowngradeOnBlockedGate(t *testing.T) {
	e, ws, led := testEnforcer(t)
	// Failing gate: no evidence written.

	_, err := e.EmitCore(ws, "publish", "kb/SUMMARY.md", []byte("# Summary\n"))
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation, got %v", err)
	}

	// The artifact must not exist in any form.
	if ws.Exists("kb/SUMMARY.md") {
		t.Fatal("blocked CORE artifact was written")
	}

	rows := ledgerRows(t, led, "publish")
	if len(rows) != 1 || rows[0].Outcome != ledger.OutcomeBlock {
		t.Fatalf("expected BLOCK row, got %+v", rows)
	}
}

func TestWriteFailureRecordsFailDistinctFromBlock(t *testing.T) {
	e, ws, led := testEnforcer(t)
	writePassingEvidence(t, ws, "tag")

	// Occupy the target path with a directory so the rename must fail.
	abs, err := ws.Resolve("kb/SUMMARY.md")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	_, err = e.EmitCore(ws, "publish", "kb/SUMMARY.md", []byte("# Summary\n"))
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation, got %v", err)
	}
	if v.StopCode != StopWriteFailure {
		t.Fatalf("stop code %s", v.StopCode)
	}

	rows := ledgerRows(t, led, "publish")
	if len(rows) != 2 {
		t.Fatalf("expected ALLOW then FAIL, got %+v", rows)
	}
	if rows[0].Outcome != ledger.OutcomeAllow || rows[1].Outcome != ledger.OutcomeFail {
		t.Fatalf("outcomes %s, %s", rows[0].Outcome, rows[1].Outcome)
	}
	if rows[1].StopCode != string(StopWriteFailure) {
		t.Fatalf("FAIL row stop code %q", rows[1].StopCode)
	}
}

func TestEmitCoreRefusesServiceClass(t *testing.T) {
	e, ws, _ := testEnforcer(t)
	writePassingEvidence(t, ws, "tag")

	_, err := e.EmitCore(ws, "publish", "logs/publish.log", []byte("log line\n"))
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation, got %v", err)
	}
	if v.StopCode != StopArtifactPolicyViolation {
		t.Fatalf("stop code %s", v.StopCode)
	}
	if ws.Exists("logs/publish.log") {
		t.Fatal("refused emission must not write")
	}
}

func TestEmitServiceWritesBestEffort(t *testing.T) {
	e, ws, _ := testEnforcer(t)

	if err := e.EmitService(ws, "publish", "logs/publish.log", []byte("started\n")); err != nil {
		t.Fatalf("EmitService: %v", err)
	}
	if !ws.Exists("logs/publish.log") {
		t.Fatal("service artifact not written")
	}
}

func TestRepeatedBlocksAppendOneRowEach(t *testing.T) {
	e, ws, led := testEnforcer(t)
	// Unchanged failing evidence state across calls.

	for i := 0; i < 2; i++ {
		_, err := e.AuthorizeEmit(ws, "publish", "kb/SUMMARY.md")
		var v *Violation
		if !errors.As(err, &v) {
			t.Fatalf("call %d: expected *Violation, got %v", i, err)
		}
		if v.StopCode != StopQAGateFailed {
			t.Fatalf("call %d: stop code %s", i, v.StopCode)
		}
	}

	rows := ledgerRows(t, led, "publish")
	if len(rows) != 2 {
		t.Fatalf("expected two BLOCK rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Outcome != ledger.OutcomeBlock {
			t.Fatalf("row %d outcome %s", i, row.Outcome)
		}
	}
}

func TestIdempotentRerunSameVerdict(t *testing.T) {
	e, ws, led := testEnforcer(t)
	writePassingEvidence(t, ws, "tag")

	for i := 0; i < 3; i++ {
		if _, err := e.AuthorizeEmit(ws, "publish", "kb/SUMMARY.md"); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	rows := ledgerRows(t, led, "publish")
	if len(rows) != 3 {
		t.Fatalf("ledger must grow monotonically: got %d rows", len(rows))
	}
	for i, row := range rows {
		if row.Outcome != ledger.OutcomeAllow {
			t.Fatalf("row %d: verdict changed to %s", i, row.Outcome)
		}
	}
}
