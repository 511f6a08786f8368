package manifest

import (
	"fmt"

	"github.com/mirelabs/gatekeeper/internal/artifact"
	"github.com/mirelabs/gatekeeper/internal/workspace"
)

// #region verify-types
// CheckResult captures a single per-entry verification outcome.
type CheckResult struct {
	Name   string
	Pass   bool
	Detail string
}

// VerifyResult is the output of verifying a workspace against a golden
// manifest.
type VerifyResult struct {
	Passed bool
	Checks []CheckResult
	Reason string
}

// #endregion verify-types

// #region verify
// Verify rebuilds the manifest from the live workspace and diffs it against
// the golden one. Any missing, extra, or content-divergent CORE artifact
// fails verification.
func Verify(ws *workspace.Workspace, reg *artifact.Registry, golden *Manifest) (VerifyResult, error) {
	current, err := Build(ws, reg)
	if err != nil {
		return VerifyResult{}, err
	}

	currentByPath := make(map[string]Entry, len(current.Entries))
	for _, e := range current.Entries {
		currentByPath[e.Path] = e
	}
	goldenByPath := make(map[string]Entry, len(golden.Entries))
	for _, e := range golden.Entries {
		goldenByPath[e.Path] = e
	}

	res := VerifyResult{Passed: true}
	fail := func(name, detail string) {
		res.Checks = append(res.Checks, CheckResult{Name: name, Pass: false, Detail: detail})
		res.Passed = false
		if res.Reason == "" {
			res.Reason = detail
		}
	}

	for _, want := range golden.Entries {
		got, ok := currentByPath[want.Path]
		name := "present:" + want.Path
		if !ok {
			fail(name, fmt.Sprintf("%s missing from workspace", want.Path))
			continue
		}
		res.Checks = append(res.Checks, CheckResult{Name: name, Pass: true})

		name = "content:" + want.Path
		switch {
		case got.SHA256 != want.SHA256:
			fail(name, fmt.Sprintf("%s content hash mismatch", want.Path))
		case got.Size != want.Size:
			fail(name, fmt.Sprintf("%s size mismatch: %d != %d", want.Path, got.Size, want.Size))
		default:
			res.Checks = append(res.Checks, CheckResult{Name: name, Pass: true})
		}
	}

	for _, got := range current.Entries {
		if _, ok := goldenByPath[got.Path]; !ok {
			fail("unexpected:"+got.Path, fmt.Sprintf("%s not present in golden manifest", got.Path))
		}
	}

	return res, nil
}

// #endregion verify
