package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS gate_decisions (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id   TEXT NOT NULL UNIQUE,
	workspace_id  TEXT NOT NULL,
	phase         TEXT NOT NULL,
	artifact      TEXT NOT NULL,
	outcome       TEXT NOT NULL CHECK (outcome IN ('ALLOW','BLOCK','FAIL')),
	stop_code     TEXT,
	reason        TEXT,
	evidence_ref  TEXT,
	recorded_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_gate_decisions_scope
	ON gate_decisions (workspace_id, phase);
`

// #endregion schema

// #region ledger-struct
// Ledger is the append-only log of gating outcomes, backed by SQLite.
// The public contract has no update and no delete: auditability survives
// reruns and manual overrides.
type Ledger struct {
	db *sql.DB
}

// #endregion ledger-struct

// #region constructor
// Open opens the ledger database and runs migrations.
func Open(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// DB returns the underlying *sql.DB for read-only inspection tooling.
func (l *Ledger) DB() *sql.DB {
	return l.db
}

// #endregion constructor

// #region append
// Append inserts one decision as a single atomic statement. Concurrent
// appends from different workspaces cannot interleave-corrupt each other:
// one entry per call, no partial rows. Missing ID and RecordedAt are
// filled in.
func (l *Ledger) Append(d Decision) (Decision, error) {
	if !d.Outcome.Valid() {
		return Decision{}, fmt.Errorf("append decision: unknown outcome %q", d.Outcome)
	}
	if d.Outcome == OutcomeAllow && d.StopCode != "" {
		return Decision{}, fmt.Errorf("append decision: ALLOW must not carry stop code %q", d.StopCode)
	}
	if d.Outcome != OutcomeAllow && d.StopCode == "" {
		return Decision{}, fmt.Errorf("append decision: %s requires a stop code", d.Outcome)
	}
	if d.WorkspaceID == "" || d.Phase == "" {
		return Decision{}, fmt.Errorf("append decision: workspace and phase are required")
	}

	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.RecordedAt.IsZero() {
		d.RecordedAt = time.Now().UTC()
	}

	_, err := l.db.Exec(
		`INSERT INTO gate_decisions (decision_id, workspace_id, phase, artifact, outcome, stop_code, reason, evidence_ref, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.WorkspaceID,
		d.Phase,
		d.Artifact,
		string(d.Outcome),
		nullIfEmpty(d.StopCode),
		nullIfEmpty(d.Reason),
		nullIfEmpty(d.EvidenceRef),
		d.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Decision{}, fmt.Errorf("append decision: %w", err)
	}
	return d, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion append

// #region query
// Query returns decisions for a workspace in insertion order. An empty
// phase returns all phases; audits and flapping-gate tests rely on the
// ordering.
func (l *Ledger) Query(workspaceID, phase string) ([]Decision, error) {
	q := `SELECT decision_id, workspace_id, phase, artifact, outcome, stop_code, reason, evidence_ref, recorded_at
	      FROM gate_decisions WHERE workspace_id = ?`
	args := []interface{}{workspaceID}
	if phase != "" {
		q += ` AND phase = ?`
		args = append(args, phase)
	}
	q += ` ORDER BY seq ASC`

	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// Tail returns the most recent n decisions across all workspaces, oldest
// first, for inspection tooling.
func (l *Ledger) Tail(n int) ([]Decision, error) {
	rows, err := l.db.Query(
		`SELECT decision_id, workspace_id, phase, artifact, outcome, stop_code, reason, evidence_ref, recorded_at
		 FROM (SELECT * FROM gate_decisions ORDER BY seq DESC LIMIT ?)
		 ORDER BY seq ASC`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("tail ledger: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

func scanDecisions(rows *sql.Rows) ([]Decision, error) {
	var out []Decision
	for rows.Next() {
		var d Decision
		var stopCode, reason, evidenceRef sql.NullString
		var recordedStr string
		if err := rows.Scan(&d.ID, &d.WorkspaceID, &d.Phase, &d.Artifact, (*string)(&d.Outcome), &stopCode, &reason, &evidenceRef, &recordedStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.StopCode = stopCode.String
		d.Reason = reason.String
		d.EvidenceRef = evidenceRef.String
		d.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedStr)
		out = append(out, d)
	}
	return out, rows.Err()
}

// #endregion query
