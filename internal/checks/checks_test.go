package checks

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mirelabs/gatekeeper/internal/evidence"
	"github.com/mirelabs/gatekeeper/internal/workspace"
)

func checkWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New("client-a", filepath.Join(t.TempDir(), "client-a"))
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	return ws
}

func mustWrite(t *testing.T, ws *workspace.Workspace, rel, content string) {
	t.Helper()
	if err := ws.AtomicWrite(rel, []byte(content)); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestRunAggregatesVerdict(t *testing.T) {
	ws := checkWorkspace(t)
	mustWrite(t, ws, "doc.md", "# Doc\n")

	results, verdict := Run(ws, []Check{FilePresent("doc.md"), NonEmptyUTF8("doc.md")})
	if verdict != evidence.VerdictPass {
		t.Fatalf("verdict %q, results %+v", verdict, results)
	}
	if len(results) != 2 {
		t.Fatalf("results %+v", results)
	}

	results, verdict = Run(ws, []Check{FilePresent("doc.md"), FilePresent("gone.md")})
	if verdict != evidence.VerdictFail {
		t.Fatal("one failing check must fail the verdict")
	}
	if results[0].Pass != true || results[1].Pass != false {
		t.Fatalf("results %+v", results)
	}
}

func TestRunWithNoChecksFails(t *testing.T) {
	ws := checkWorkspace(t)
	_, verdict := Run(ws, nil)
	if verdict != evidence.VerdictFail {
		t.Fatal("zero executed checks must not pass")
	}
}

func TestToRecordKeepsCheckOrder(t *testing.T) {
	results := []Result{
		{ID: "lint", Pass: true},
		{ID: "links", Pass: true},
	}
	rec := ToRecord(results, evidence.VerdictPass, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if rec.SchemaVersion != evidence.SchemaVersionCurrent {
		t.Fatalf("schema version %d", rec.SchemaVersion)
	}
	if len(rec.ChecksExecuted) != 2 || rec.ChecksExecuted[0] != "lint" || rec.ChecksExecuted[1] != "links" {
		t.Fatalf("checks %v", rec.ChecksExecuted)
	}
}

func TestNonEmptyUTF8(t *testing.T) {
	ws := checkWorkspace(t)
	mustWrite(t, ws, "ok.md", "text\n")
	mustWrite(t, ws, "blank.md", "   \n")
	mustWrite(t, ws, "binary.md", string([]byte{0xff, 0xfe, 0x00}))

	if pass, _ := NonEmptyUTF8("ok.md").Fn(ws); !pass {
		t.Fatal("valid file rejected")
	}
	if pass, detail := NonEmptyUTF8("blank.md").Fn(ws); pass {
		t.Fatalf("blank file accepted: %s", detail)
	}
	if pass, detail := NonEmptyUTF8("binary.md").Fn(ws); pass {
		t.Fatalf("invalid UTF-8 accepted: %s", detail)
	}
	if pass, _ := NonEmptyUTF8("missing.md").Fn(ws); pass {
		t.Fatal("missing file accepted")
	}
}

func TestFrontMatter(t *testing.T) {
	ws := checkWorkspace(t)
	mustWrite(t, ws, "tagged.md", "---\ntags: [go]\n---\n# Doc\n")
	mustWrite(t, ws, "bom.md", "\ufeff---\ntags: []\n---\n")
	mustWrite(t, ws, "plain.md", "# Doc\n")

	if pass, _ := FrontMatter("tagged.md").Fn(ws); !pass {
		t.Fatal("front matter not recognized")
	}
	if pass, _ := FrontMatter("bom.md").Fn(ws); !pass {
		t.Fatal("BOM-prefixed front matter not recognized")
	}
	if pass, _ := FrontMatter("plain.md").Fn(ws); pass {
		t.Fatal("missing front matter accepted")
	}
}

func TestRelativeLinks(t *testing.T) {
	ws := checkWorkspace(t)
	mustWrite(t, ws, "good.md", "see [ch1](chapters/ch01.md) and [site](https://example.com)\n")
	mustWrite(t, ws, "bad.md", "see [escape](../../etc/passwd)\n")

	if pass, detail := RelativeLinks("good.md").Fn(ws); !pass {
		t.Fatalf("in-perimeter links rejected: %s", detail)
	}
	if pass, _ := RelativeLinks("bad.md").Fn(ws); pass {
		t.Fatal("perimeter-escaping link accepted")
	}
}
