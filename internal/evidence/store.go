package evidence

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/mirelabs/gatekeeper/internal/workspace"
)

// #region errors
var (
	// ErrNotFound means no evidence has been written for the phase yet.
	// It is a valid, non-exceptional outcome: the gate reads it as
	// "no evidence yet".
	ErrNotFound = errors.New("evidence not found")

	// ErrMalformed means an evidence payload exists but does not satisfy
	// the schema.
	ErrMalformed = errors.New("evidence malformed")
)

// #endregion errors

// #region store
// Store reads and writes the per-phase evidence record of one workspace.
// The record is overwritten on re-run; history lives in the ledger.
type Store struct {
	ws *workspace.Workspace
}

// NewStore binds a store to a workspace.
func NewStore(ws *workspace.Workspace) *Store {
	return &Store{ws: ws}
}

// Path is the workspace-relative location of a phase's evidence record.
func Path(phase string) string {
	return path.Join(".evidence", phase+".json")
}

// #endregion store

// #region write
// Write persists the record atomically at the phase's well-known location.
func (s *Store) Write(phase string, rec Record) error {
	data, err := rec.Encode()
	if err != nil {
		return err
	}
	if err := s.ws.AtomicWrite(Path(phase), data); err != nil {
		return fmt.Errorf("write evidence for phase %s: %w", phase, err)
	}
	return nil
}

// #endregion write

// #region read
// wirePayload accepts both the canonical form and the legacy variants:
// qa_status as an alias for verdict, and a top-level timestamp that is
// folded into telemetry on read but never written back.
type wirePayload struct {
	SchemaVersion  int            `json:"schema_version"`
	Verdict        Verdict        `json:"verdict"`
	QAStatus       Verdict        `json:"qa_status"`
	ChecksExecuted []string       `json:"checks_executed"`
	Telemetry      map[string]any `json:"telemetry"`
	Timestamp      string         `json:"timestamp"`
}

// Read returns the most recent record for the phase. ErrNotFound and
// ErrMalformed are typed so the gate can distinguish the two.
func (s *Store) Read(phase string) (*Record, error) {
	raw, err := s.ws.Read(Path(phase))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("phase %s: %w", phase, ErrNotFound)
		}
		return nil, fmt.Errorf("read evidence for phase %s: %w", phase, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("phase %s: %w: %v", phase, ErrMalformed, err)
	}
	if err := validatePayload(doc); err != nil {
		return nil, fmt.Errorf("phase %s: %w: %v", phase, ErrMalformed, err)
	}

	var wire wirePayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("phase %s: %w: %v", phase, ErrMalformed, err)
	}

	verdict := wire.Verdict
	if verdict == "" {
		verdict = wire.QAStatus
	}

	telemetry := wire.Telemetry
	if wire.Timestamp != "" {
		if telemetry == nil {
			telemetry = map[string]any{}
		}
		// Legacy top-level timestamp; the nested form wins when both exist.
		if _, ok := telemetry["timestamp"]; !ok {
			telemetry["timestamp"] = wire.Timestamp
		}
	}

	return &Record{
		SchemaVersion:  wire.SchemaVersion,
		Verdict:        verdict,
		ChecksExecuted: wire.ChecksExecuted,
		Telemetry:      telemetry,
	}, nil
}

// #endregion read
