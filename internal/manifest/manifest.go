package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mirelabs/gatekeeper/internal/artifact"
	"github.com/mirelabs/gatekeeper/internal/evidence"
	"github.com/mirelabs/gatekeeper/internal/workspace"
)

// #region types
// Entry is one CORE artifact in the golden manifest: path, content hash,
// byte size. For CORE_GATE evidence files the hash and size cover the
// normative payload only, so telemetry-influenced bytes never reach a
// deterministic comparison.
type Entry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest is the deterministic listing consumed by external verification
// tooling. Entries are sorted by path; encoding is canonical JSON.
type Manifest struct {
	WorkspaceID string  `json:"workspace_id"`
	Entries     []Entry `json:"entries"`
}

// #endregion types

// #region build
// Build walks the registry's CORE and CORE_GATE declarations, expands glob
// names against the workspace, and hashes every match.
func Build(ws *workspace.Workspace, reg *artifact.Registry) (*Manifest, error) {
	fsys := os.DirFS(ws.Root)
	seen := make(map[string]Entry)

	for _, phase := range reg.Phases() {
		for _, desc := range reg.Artifacts(phase) {
			if desc.Class == artifact.ClassService {
				continue
			}
			matches, err := doublestar.Glob(fsys, desc.Name)
			if err != nil {
				return nil, fmt.Errorf("expand artifact pattern %q: %w", desc.Name, err)
			}
			for _, rel := range matches {
				if _, dup := seen[rel]; dup {
					continue
				}
				entry, err := hashArtifact(ws, rel, desc.Class)
				if err != nil {
					return nil, err
				}
				seen[rel] = entry
			}
		}
	}

	m := &Manifest{WorkspaceID: ws.ID, Entries: make([]Entry, 0, len(seen))}
	for _, e := range seen {
		m.Entries = append(m.Entries, e)
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Path < m.Entries[j].Path })
	return m, nil
}

// hashArtifact hashes one file. Evidence records are reduced to their
// normative payload before hashing.
func hashArtifact(ws *workspace.Workspace, rel string, class artifact.Class) (Entry, error) {
	data, err := ws.Read(rel)
	if err != nil {
		return Entry{}, fmt.Errorf("read artifact %s: %w", rel, err)
	}

	if class == artifact.ClassCoreGate {
		if rec, ok := decodeEvidence(data); ok {
			normative, err := rec.NormativePayload()
			if err != nil {
				return Entry{}, fmt.Errorf("normative payload of %s: %w", rel, err)
			}
			data = normative
		}
	}

	sum := sha256.Sum256(data)
	return Entry{
		Path:   rel,
		SHA256: hex.EncodeToString(sum[:]),
		Size:   int64(len(data)),
	}, nil
}

// decodeEvidence attempts to read raw bytes as an evidence payload.
func decodeEvidence(data []byte) (evidence.Record, bool) {
	var wire struct {
		SchemaVersion  int              `json:"schema_version"`
		Verdict        evidence.Verdict `json:"verdict"`
		QAStatus       evidence.Verdict `json:"qa_status"`
		ChecksExecuted []string         `json:"checks_executed"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return evidence.Record{}, false
	}
	if wire.SchemaVersion == 0 || wire.ChecksExecuted == nil {
		return evidence.Record{}, false
	}
	verdict := wire.Verdict
	if verdict == "" {
		verdict = wire.QAStatus
	}
	if verdict == "" {
		return evidence.Record{}, false
	}
	return evidence.Record{
		SchemaVersion:  wire.SchemaVersion,
		Verdict:        verdict,
		ChecksExecuted: wire.ChecksExecuted,
	}, true
}

// #endregion build

// #region encode
// Encode renders the canonical JSON form.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Hash is the hex sha256 over the canonical encoding.
func (m *Manifest) Hash() (string, error) {
	data, err := m.Encode()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Load parses a previously exported manifest.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// #endregion encode
