package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/draftprune/internal/core"
)

// DeletionQuery selects journal rows. Limit only applies to listing.
type DeletionQuery struct {
	All   bool
	RunID string
	Limit int
}

func (q DeletionQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.RunID) != "" {
		return nil
	}
	return errors.New("must specify --all or --run")
}

func (q DeletionQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	return "WHERE run_id = ?", []any{strings.TrimSpace(q.RunID)}, nil
}

// RecordDeletion appends one delete attempt to the journal.
func (s *Store) RecordDeletion(ctx context.Context, record core.DeletionRecord) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(record.Identifier) == "" {
		return errors.New("deletion record requires an identifier")
	}

	recordedAt := record.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	status := record.Status
	if status == "" {
		status = core.DeletionFailed
	}

	var statusCode sql.NullInt64
	if record.StatusCode != 0 {
		statusCode = sql.NullInt64{Int64: int64(record.StatusCode), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO deletions (run_id, identifier, creation_time, status, status_code, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.RunID, record.Identifier, record.CreationTime, string(status), statusCode, record.Message, recordedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record deletion: %w", err)
	}
	return nil
}

// ListDeletions returns journal rows, newest first.
func (s *Store) ListDeletions(ctx context.Context, q DeletionQuery) ([]core.DeletionRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	limit := ""
	if q.Limit > 0 {
		limit = "LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, run_id, identifier, creation_time, status, status_code, message, recorded_at
		FROM deletions
		%s
		ORDER BY recorded_at DESC, id DESC
		%s
	`, where, limit), args...)
	if err != nil {
		return nil, fmt.Errorf("list deletions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	records := []core.DeletionRecord{}
	for rows.Next() {
		var (
			id           int64
			runID        string
			identifier   string
			creationTime sql.NullString
			status       string
			statusCode   sql.NullInt64
			message      sql.NullString
			recordedAt   int64
		)
		if err := rows.Scan(&id, &runID, &identifier, &creationTime, &status, &statusCode, &message, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan deletions: %w", err)
		}

		record := core.DeletionRecord{
			ID:           id,
			RunID:        runID,
			Identifier:   identifier,
			CreationTime: creationTime.String,
			Status:       core.DeletionStatus(status),
			Message:      message.String,
			RecordedAt:   time.UnixMilli(recordedAt).UTC(),
		}
		if statusCode.Valid {
			record.StatusCode = int(statusCode.Int64)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deletions: %w", err)
	}

	return records, nil
}

func (s *Store) CountDeletions(ctx context.Context, q DeletionQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM deletions
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count deletions: %w", err)
	}
	return count, nil
}

// ClearDeletions removes journal rows and returns how many were removed.
func (s *Store) ClearDeletions(ctx context.Context, q DeletionQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM deletions
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("clear deletions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear deletions: %w", err)
	}
	return affected, nil
}
