package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
)

type ArchiveStore struct {
	db DBTX
}

func NewArchiveStore(db DBTX) *ArchiveStore {
	return &ArchiveStore{db: db}
}

const archiveCols = `id, month, object_key, size_bytes, status, error_message, completed_at, created_at, updated_at`

func scanArchive(scanner interface{ Scan(...any) error }) (*model.ReportArchive, error) {
	var a model.ReportArchive
	var completedAt sql.NullTime
	err := scanner.Scan(&a.ID, &a.Month, &a.ObjectKey, &a.SizeBytes, &a.Status, &a.ErrorMessage,
		&completedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return &a, nil
}

func (s *ArchiveStore) Create(ctx context.Context, m month.Key, objectKey string) (*model.ReportArchive, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO report_archives (month, object_key, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		m, objectKey, model.ArchivePending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.ReportArchive{
		ID:        id,
		Month:     m,
		ObjectKey: objectKey,
		Status:    model.ArchivePending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *ArchiveStore) GetByID(ctx context.Context, id int64) (*model.ReportArchive, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+archiveCols+` FROM report_archives WHERE id = ?`, id)
	a, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archive %d: %w", id, err)
	}
	return a, nil
}

// List returns archive attempts, newest first. A zero month lists all months.
func (s *ArchiveStore) List(ctx context.Context, m month.Key, limit int) ([]model.ReportArchive, error) {
	q := `SELECT ` + archiveCols + ` FROM report_archives`
	var args []any
	if !m.IsZero() {
		q += ` WHERE month = ?`
		args = append(args, m)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var archives []model.ReportArchive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		archives = append(archives, *a)
	}
	return archives, rows.Err()
}

func (s *ArchiveStore) UpdateStatus(ctx context.Context, id int64, status model.ArchiveStatus, errorMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE report_archives SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errorMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update archive status: %w", err)
	}
	return nil
}

func (s *ArchiveStore) UpdateCompleted(ctx context.Context, id, sizeBytes int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE report_archives SET status = ?, size_bytes = ?, error_message = '', completed_at = ?, updated_at = ? WHERE id = ?`,
		model.ArchiveCompleted, sizeBytes, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update archive completed: %w", err)
	}
	return nil
}

// LatestCompleted returns the most recent successful archive of m.
func (s *ArchiveStore) LatestCompleted(ctx context.Context, m month.Key) (*model.ReportArchive, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+archiveCols+` FROM report_archives WHERE month = ? AND status = ? ORDER BY completed_at DESC LIMIT 1`,
		m, model.ArchiveCompleted,
	)
	a, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed archive: %w", err)
	}
	return a, nil
}
