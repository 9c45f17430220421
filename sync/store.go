package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Store records run reports in the history database.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunSummary is one row of the run list.
type RunSummary struct {
	RunID      string    `json:"runId"`
	Direction  Direction `json:"direction"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Phase      Phase     `json:"phase"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Err        string    `json:"error,omitempty"`
}

// SaveReport writes a report and its outcomes in one transaction. Saving
// the same run twice replaces the earlier copy.
func (s *Store) SaveReport(r *Report) error {
	l := sub("store")
	l.Debug("SaveReport", "run", r.RunID, "outcomes", len(r.Outcomes))

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{
		"DELETE FROM run_actions WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	} {
		if _, err := tx.Exec(q, r.RunID); err != nil {
			return fmt.Errorf("replace run: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO runs (id, direction, started_at, finished_at, phase, connect_msg, disconnect_msg,
			succeeded, failed, skipped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, string(r.Direction), r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(), string(r.Phase),
		r.ConnectMessage, r.DisconnectMessage, r.Succeeded(), r.Failed(), r.Skipped(), r.Err)
	if err != nil {
		l.Error("SaveReport failed", "run", r.RunID, "err", err)
		return fmt.Errorf("insert run: %w", err)
	}

	if len(r.Outcomes) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO run_actions (run_id, seq, type, source, target, status, error, duration_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare outcome insert: %w", err)
		}
		defer stmt.Close()

		for i, o := range r.Outcomes {
			if _, err := stmt.Exec(r.RunID, i, string(o.Action.Type), o.Action.Source, o.Action.Target,
				string(o.Status), o.Err, int64(o.Duration)); err != nil {
				return fmt.Errorf("insert outcome %d: %w", i, err)
			}
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means 20.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, direction, started_at, finished_at, phase, succeeded, failed, skipped, error
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var rs RunSummary
		var dir, phase string
		var started, finished int64
		if err := rows.Scan(&rs.RunID, &dir, &started, &finished, &phase,
			&rs.Succeeded, &rs.Failed, &rs.Skipped, &rs.Err); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rs.Direction = Direction(dir)
		rs.Phase = Phase(phase)
		rs.StartedAt = time.Unix(0, started)
		rs.FinishedAt = time.Unix(0, finished)
		runs = append(runs, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	if logEnabled(slog.LevelDebug) {
		sub("store").Debug("ListRuns", "limit", limit, "count", len(runs))
	}
	return runs, nil
}

// GetRun loads a full report with its outcomes.
func (s *Store) GetRun(id string) (*Report, error) {
	r := &Report{RunID: id, Tallies: make(map[ActionType]Tally)}
	var dir, phase string
	var started, finished int64
	err := s.db.QueryRow(`
		SELECT direction, started_at, finished_at, phase, connect_msg, disconnect_msg, error
		FROM runs WHERE id = ?
	`, id).Scan(&dir, &started, &finished, &phase, &r.ConnectMessage, &r.DisconnectMessage, &r.Err)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.Direction = Direction(dir)
	r.Phase = Phase(phase)
	r.StartedAt = time.Unix(0, started)
	r.FinishedAt = time.Unix(0, finished)

	rows, err := s.db.Query(`
		SELECT type, source, target, status, error, duration_ns
		FROM run_actions WHERE run_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get run actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o Outcome
		var typ, status string
		var dur int64
		if err := rows.Scan(&typ, &o.Action.Source, &o.Action.Target, &status, &o.Err, &dur); err != nil {
			return nil, fmt.Errorf("scan run action: %w", err)
		}
		o.Action.Type = ActionType(typ)
		o.Status = OutcomeStatus(status)
		o.Duration = time.Duration(dur)
		r.record(o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get run actions: %w", err)
	}
	return r, nil
}

// PruneRuns keeps the newest keep runs and deletes the rest.
func (s *Store) PruneRuns(keep int) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()

	// foreign_keys is per connection, so orphans are removed explicitly.
	if _, err := tx.Exec("DELETE FROM run_actions WHERE run_id NOT IN (SELECT id FROM runs)"); err != nil {
		return 0, fmt.Errorf("prune run actions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	sub("store").Debug("PruneRuns", "keep", keep, "deleted", n)
	return n, nil
}
