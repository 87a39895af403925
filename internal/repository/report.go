package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/akave-ai/gpsrelay/internal/model"
)

// DBTX is the subset of pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ReportRepository mirrors accepted log records into Postgres.
type ReportRepository struct {
	db  DBTX
	now func() time.Time
}

// NewReportRepository returns a ReportRepository using the given pool.
func NewReportRepository(db DBTX) *ReportRepository {
	return &ReportRepository{db: db, now: time.Now}
}

// Append inserts rec under a fresh id.
func (r *ReportRepository) Append(ctx context.Context, rec model.LogRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO location_reports (
			id, receipt_time, report_timestamp, battery, source_address,
			longitude, latitude, accuracy, description, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New(),
		rec.ReceiptTime,
		rec.ReportTimestamp,
		rec.Battery,
		rec.SourceAddress,
		rec.Longitude,
		rec.Latitude,
		rec.Accuracy,
		rec.Description,
		r.now().UTC(),
	)
	return err
}

// ListRecent returns up to limit records ordered by received_at descending.
func (r *ReportRepository) ListRecent(ctx context.Context, limit int) ([]model.StoredRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, receipt_time, report_timestamp, battery, source_address,
		       longitude, latitude, accuracy, description, received_at
		FROM location_reports
		ORDER BY received_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.StoredRecord{}
	for rows.Next() {
		var rec model.StoredRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.ReceiptTime,
			&rec.ReportTimestamp,
			&rec.Battery,
			&rec.SourceAddress,
			&rec.Longitude,
			&rec.Latitude,
			&rec.Accuracy,
			&rec.Description,
			&rec.ReceivedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}
