package checks

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mirelabs/gatekeeper/internal/evidence"
	"github.com/mirelabs/gatekeeper/internal/workspace"
)

// #region check-types
// Result is one executed check. IDs are stable strings because they are
// persisted verbatim into evidence records.
type Result struct {
	ID     string
	Pass   bool
	Detail string
}

// Check is a named predicate over workspace content. Checks read only the
// workspace; wall clock and environment never feed a result.
type Check struct {
	ID string
	Fn func(ws *workspace.Workspace) (bool, string)
}

// #endregion check-types

// #region run
// Run executes checks in order and reports results plus the aggregate
// verdict: pass iff every check passed and at least one check ran.
func Run(ws *workspace.Workspace, checks []Check) ([]Result, evidence.Verdict) {
	results := make([]Result, 0, len(checks))
	verdict := evidence.VerdictPass
	if len(checks) == 0 {
		verdict = evidence.VerdictFail
	}
	for _, c := range checks {
		pass, detail := c.Fn(ws)
		results = append(results, Result{ID: c.ID, Pass: pass, Detail: detail})
		if !pass {
			verdict = evidence.VerdictFail
		}
	}
	return results, verdict
}

// ToRecord converts executed checks into a current-version evidence record.
// Check IDs keep execution order; per-check detail is diagnostic only and
// stays out of the record.
func ToRecord(results []Result, verdict evidence.Verdict, at time.Time) evidence.Record {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return evidence.NewRecord(verdict, ids, at)
}

// #endregion run

// #region builtin
// FilePresent checks that a workspace-relative file exists.
func FilePresent(rel string) Check {
	return Check{
		ID: "file_present:" + rel,
		Fn: func(ws *workspace.Workspace) (bool, string) {
			if !ws.Exists(rel) {
				return false, fmt.Sprintf("%s missing", rel)
			}
			return true, ""
		},
	}
}

// NonEmptyUTF8 checks that a file exists, is non-empty, and is valid UTF-8.
func NonEmptyUTF8(rel string) Check {
	return Check{
		ID: "utf8_content:" + rel,
		Fn: func(ws *workspace.Workspace) (bool, string) {
			data, err := ws.Read(rel)
			if err != nil {
				return false, fmt.Sprintf("read %s: %v", rel, err)
			}
			if len(bytes.TrimSpace(data)) == 0 {
				return false, fmt.Sprintf("%s is empty", rel)
			}
			if !utf8.Valid(data) {
				return false, fmt.Sprintf("%s is not valid UTF-8", rel)
			}
			return true, ""
		},
	}
}

// FrontMatter checks that a markdown file opens with a YAML front-matter
// fence, the shape the tagging phase relies on.
func FrontMatter(rel string) Check {
	return Check{
		ID: "front_matter:" + rel,
		Fn: func(ws *workspace.Workspace) (bool, string) {
			data, err := ws.Read(rel)
			if err != nil {
				return false, fmt.Sprintf("read %s: %v", rel, err)
			}
			body := strings.TrimPrefix(string(data), "\ufeff")
			if !strings.HasPrefix(body, "---\n") {
				return false, fmt.Sprintf("%s has no front-matter fence", rel)
			}
			return true, ""
		},
	}
}

// RelativeLinks checks that markdown links in a file do not point outside
// the workspace. Only inline links are inspected.
func RelativeLinks(rel string) Check {
	return Check{
		ID: "relative_links:" + rel,
		Fn: func(ws *workspace.Workspace) (bool, string) {
			data, err := ws.Read(rel)
			if err != nil {
				return false, fmt.Sprintf("read %s: %v", rel, err)
			}
			for _, target := range inlineLinkTargets(string(data)) {
				if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
					continue
				}
				if _, err := ws.Resolve(target); err != nil {
					return false, fmt.Sprintf("%s links outside workspace: %s", rel, target)
				}
			}
			return true, ""
		},
	}
}

// inlineLinkTargets extracts ](target) destinations without pulling in a
// full markdown parser.
func inlineLinkTargets(md string) []string {
	var targets []string
	rest := md
	for {
		i := strings.Index(rest, "](")
		if i < 0 {
			break
		}
		rest = rest[i+2:]
		j := strings.IndexByte(rest, ')')
		if j < 0 {
			break
		}
		target := strings.TrimSpace(rest[:j])
		if target != "" {
			targets = append(targets, target)
		}
		rest = rest[j+1:]
	}
	return targets
}

// #endregion builtin
