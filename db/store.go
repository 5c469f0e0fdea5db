package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Terminal and initial statuses for a processed comment. A row is created as
// StatusPending before any network call and moves exactly once to a terminal
// status; it is never deleted, which is what makes dedup by id safe across
// restarts and crashes.
const (
	StatusPending = "pending"
	StatusReplied = "replied"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

var (
	// ErrConflict is returned by InsertPending when the comment id already has a row.
	ErrConflict = errors.New("comment already recorded")
	// ErrNotFound is returned by UpdateStatus when no row exists for the id.
	ErrNotFound = errors.New("comment not recorded")
)

// ProcessedRecord is the pipeline's memory of one comment.
type ProcessedRecord struct {
	ID          string
	VideoID     string
	ProcessedAt time.Time
	RepliedAt   sql.NullTime
	AIResponse  sql.NullString
	Status      string
}

// Store wraps the comments table. The orchestrator exclusively owns a Store
// handle; no internal locking is needed beyond Postgres row semantics.
type Store struct {
	DB *sql.DB
}

// NewStore returns a Store over an open connection.
func NewStore(dbx *sql.DB) *Store { return &Store{DB: dbx} }

// Init applies the schema. Idempotent; safe to call multiple times.
func (s *Store) Init(ctx context.Context) error {
	return Migrate(ctx, s.DB)
}

// IsProcessed reports whether a row exists for the comment id.
func (s *Store) IsProcessed(ctx context.Context, id string) (bool, error) {
	var found string
	err := s.DB.QueryRowContext(ctx, `SELECT id FROM comments WHERE id=$1`, id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query comment %s: %w", id, err)
	}
	return true, nil
}

// InsertPending records a comment as entering processing. The insert is
// conflict-rejecting rather than upserting: the orchestrator never calls this
// twice for one id, but a silent overwrite would break the at-most-once
// guarantee if it ever did.
func (s *Store) InsertPending(ctx context.Context, rec ProcessedRecord) error {
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO comments (id, video_id, processed_at, status) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.VideoID, rec.ProcessedAt, rec.Status)
	if err != nil {
		return fmt.Errorf("insert comment %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("insert comment %s: %w", rec.ID, ErrConflict)
	}
	return nil
}

// UpdateStatus sets the terminal status for a comment. replied_at is set only
// for StatusReplied; replyText is stored whenever provided (audit trail for
// errors after a successful generation).
func (s *Store) UpdateStatus(ctx context.Context, id, status, replyText string) error {
	var res sql.Result
	var err error
	if status == StatusReplied {
		res, err = s.DB.ExecContext(ctx,
			`UPDATE comments SET status=$1, ai_response=$2, replied_at=NOW() WHERE id=$3`,
			status, replyText, id)
	} else {
		res, err = s.DB.ExecContext(ctx,
			`UPDATE comments SET status=$1, ai_response=NULLIF($2,''), replied_at=NULL WHERE id=$3`,
			status, replyText, id)
	}
	if err != nil {
		return fmt.Errorf("update comment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update comment %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get returns the stored record for a comment id. Reporting and test helper.
func (s *Store) Get(ctx context.Context, id string) (ProcessedRecord, error) {
	var rec ProcessedRecord
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, video_id, processed_at, replied_at, ai_response, status FROM comments WHERE id=$1`, id).
		Scan(&rec.ID, &rec.VideoID, &rec.ProcessedAt, &rec.RepliedAt, &rec.AIResponse, &rec.Status)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("get comment %s: %w", id, err)
	}
	return rec, nil
}

// CountProcessed returns the total row count, used for reporting only.
func (s *Store) CountProcessed(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

// CountByStatus returns per-status row counts for the status endpoint.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM comments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Heartbeat records a job liveness timestamp in kv, read back by /status.
func (s *Store) Heartbeat(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO kv (key,value,updated_at) VALUES ($1, to_char(NOW() AT TIME ZONE 'UTC','YYYY-MM-DD"T"HH24:MI:SS"Z"'), NOW())
		ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, key)
	return err
}

// Close releases the underlying connection. Safe to call even if Init never ran.
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
