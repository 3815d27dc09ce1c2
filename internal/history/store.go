// Package history persists retrieval sessions and the records of each
// answered query.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/regolith-ai/regolith/internal/db"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

const anonymousUser = "anonymous"

// Store provides persistence for sessions and records.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateSession starts a new session. An empty userID is stored as
// anonymous.
func (s *Store) CreateSession(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		userID = anonymousUser
	}
	id := uuid.New().String()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO retrieval_sessions (id, user_id) VALUES (?, ?)`, id, userID); err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return s.GetSession(ctx, id)
}

// EnsureSession returns the session with id, creating it when it does
// not exist. An empty id always creates a new session.
func (s *Store) EnsureSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return s.CreateSession(ctx, "")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO retrieval_sessions (id, user_id) VALUES (?, ?)`, id, anonymousUser); err != nil {
		return nil, fmt.Errorf("ensuring session: %w", err)
	}
	return s.GetSession(ctx, id)
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var (
		sess             Session
		created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM retrieval_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	sess.CreatedAt = parseTime(created)
	sess.UpdatedAt = parseTime(updated)
	return &sess, nil
}

// CountSessions returns the number of stored sessions.
func (s *Store) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM retrieval_sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// Record appends rec to its session and bumps the session's updated_at.
// If rec.ID is empty a UUID is generated.
func (s *Store) Record(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.References == nil {
		rec.References = []string{}
	}
	if rec.DocIDs == nil {
		rec.DocIDs = []string{}
	}
	refs, err := json.Marshal(rec.References)
	if err != nil {
		return fmt.Errorf("marshalling references: %w", err)
	}
	docIDs, err := json.Marshal(rec.DocIDs)
	if err != nil {
		return fmt.Errorf("marshalling doc ids: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM retrieval_sessions WHERE id = ?`, rec.SessionID).Scan(&exists); err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO retrieval_records (
			id, session_id, query, corrected_query, intent, reference_terms,
			interpretation, strategy, confidence, reconciliation, doc_ids, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Query, rec.CorrectedQuery, rec.Intent, string(refs),
		rec.Interpretation, rec.Strategy, rec.Confidence, rec.Reconciliation, string(docIDs), rec.Error,
	); err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE retrieval_sessions SET updated_at = datetime('now') WHERE id = ?`, rec.SessionID); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return tx.Commit()
}

// ListRecords returns a session's records, oldest first.
func (s *Store) ListRecords(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, query, corrected_query, intent, reference_terms,
		       interpretation, strategy, confidence, reconciliation, doc_ids, error, created_at
		FROM retrieval_records WHERE session_id = ?
		ORDER BY created_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r                 Record
			refs, ids, created string
		)
		if err := rows.Scan(
			&r.ID, &r.SessionID, &r.Query, &r.CorrectedQuery, &r.Intent, &refs,
			&r.Interpretation, &r.Strategy, &r.Confidence, &r.Reconciliation, &ids, &r.Error, &created,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if err := json.Unmarshal([]byte(refs), &r.References); err != nil {
			r.References = nil
		}
		if err := json.Unmarshal([]byte(ids), &r.DocIDs); err != nil {
			r.DocIDs = nil
		}
		r.CreatedAt = parseTime(created)
		records = append(records, r)
	}
	return records, rows.Err()
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
