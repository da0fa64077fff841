// Package store persists decision traces and comparison reports in SQLite so
// runs can be inspected and re-compared long after the process that produced
// them is gone.
package store

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kdellison/slotsim/internal/divergence"
	"github.com/kdellison/slotsim/internal/trace"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	policy       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	total_score  REAL NOT NULL,
	entry_count  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	timestamp  REAL NOT NULL,
	ability    TEXT NOT NULL,
	instant    INTEGER NOT NULL,
	rationale  TEXT,
	pre_json   TEXT NOT NULL,
	post_json  TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id),
	UNIQUE (run_id, seq)
);

CREATE TABLE IF NOT EXISTS reports (
	report_id    TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	summary_json TEXT NOT NULL,
	records_json TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store

// RunMeta is the listing row for a stored run.
type RunMeta struct {
	RunID      string
	Policy     string
	CreatedAt  time.Time
	TotalScore float64
	EntryCount int
}

// Store manages trace and report persistence in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion store

// #region save-trace

// SaveTrace persists a full trace atomically: the run row and every decision
// entry commit together or not at all.
func (s *Store) SaveTrace(tr *trace.Trace) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, policy, created_at, total_score, entry_count)
		 VALUES (?, ?, ?, ?, ?)`,
		tr.RunID, tr.Policy, tr.CreatedAt.Format(time.RFC3339Nano), tr.TotalScore, len(tr.Entries),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO decisions (run_id, seq, timestamp, ability, instant, rationale, pre_json, post_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range tr.Entries {
		e := &tr.Entries[i]
		preJSON, err := json.Marshal(e.Pre)
		if err != nil {
			return fmt.Errorf("marshal pre snapshot seq %d: %w", e.Seq, err)
		}
		postJSON, err := json.Marshal(e.Post)
		if err != nil {
			return fmt.Errorf("marshal post snapshot seq %d: %w", e.Seq, err)
		}
		instant := 0
		if e.Decision.Instant {
			instant = 1
		}
		if _, err := stmt.Exec(
			tr.RunID, e.Seq, e.Timestamp, e.Decision.Ability, instant,
			nullIfEmpty(e.Decision.Rationale), string(preJSON), string(postJSON),
		); err != nil {
			return fmt.Errorf("insert decision seq %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion save-trace

// #region load-trace

// LoadTrace reconstructs a stored trace by run ID.
func (s *Store) LoadTrace(runID string) (*trace.Trace, error) {
	tr := &trace.Trace{RunID: runID}
	var createdStr string
	err := s.db.QueryRow(
		`SELECT policy, created_at, total_score FROM runs WHERE run_id = ?`, runID,
	).Scan(&tr.Policy, &createdStr, &tr.TotalScore)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	tr.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	rows, err := s.db.Query(
		`SELECT seq, timestamp, ability, instant, rationale, pre_json, post_json
		 FROM decisions WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e trace.Entry
		var instant int
		var rationale sql.NullString
		var preJSON, postJSON string
		if err := rows.Scan(&e.Seq, &e.Timestamp, &e.Decision.Ability, &instant, &rationale, &preJSON, &postJSON); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Decision.Instant = instant != 0
		if rationale.Valid {
			e.Decision.Rationale = rationale.String
		}
		if err := json.Unmarshal([]byte(preJSON), &e.Pre); err != nil {
			return nil, fmt.Errorf("unmarshal pre snapshot seq %d: %w", e.Seq, err)
		}
		if err := json.Unmarshal([]byte(postJSON), &e.Post); err != nil {
			return nil, fmt.Errorf("unmarshal post snapshot seq %d: %w", e.Seq, err)
		}
		tr.Entries = append(tr.Entries, e)
	}
	return tr, rows.Err()
}

// #endregion load-trace

// #region list-runs

// ListRuns returns the most recent stored runs.
func (s *Store) ListRuns(limit int) ([]RunMeta, error) {
	rows, err := s.db.Query(
		`SELECT run_id, policy, created_at, total_score, entry_count
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var metas []RunMeta
	for rows.Next() {
		var m RunMeta
		var createdStr string
		if err := rows.Scan(&m.RunID, &m.Policy, &createdStr, &m.TotalScore, &m.EntryCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// #endregion list-runs

// #region reports

// SaveReport persists a comparison report against its run.
func (s *Store) SaveReport(report *divergence.Report) error {
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	recordsJSON, err := json.Marshal(report.Records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO reports (report_id, run_id, created_at, summary_json, records_json)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), report.RunID, time.Now().UTC().Format(time.RFC3339Nano),
		string(summaryJSON), string(recordsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// LoadReports returns all stored reports for a run, newest first.
func (s *Store) LoadReports(runID string) ([]*divergence.Report, error) {
	rows, err := s.db.Query(
		`SELECT summary_json, records_json FROM reports
		 WHERE run_id = ? ORDER BY created_at DESC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*divergence.Report
	for rows.Next() {
		var summaryJSON, recordsJSON string
		if err := rows.Scan(&summaryJSON, &recordsJSON); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r := &divergence.Report{RunID: runID}
		if err := json.Unmarshal([]byte(summaryJSON), &r.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		if err := json.Unmarshal([]byte(recordsJSON), &r.Records); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// #endregion reports

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
