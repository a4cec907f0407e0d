package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/qrtrack/apiserver/types"
)

// ScanEventRepository handles the append-only scan log. Events are never
// updated or deleted.
type ScanEventRepository struct {
	db *sql.DB
}

func NewScanEventRepository(db *sql.DB) *ScanEventRepository {
	return &ScanEventRepository{db: db}
}

func (r *ScanEventRepository) Append(ctx context.Context, event types.ScanEvent) (types.ScanEvent, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	const query = `
		INSERT INTO scan_events (qr_id, action, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		event.QRID,
		event.Action,
		event.Timestamp,
	).Scan(&event.ID); err != nil {
		return types.ScanEvent{}, err
	}
	return event, nil
}

// ListByQR returns the scan history of one code, oldest first.
func (r *ScanEventRepository) ListByQR(ctx context.Context, qrID string, limit int) ([]types.ScanEvent, error) {
	if limit < 1 {
		limit = 100
	}

	const query = `
		SELECT id, qr_id, action, created_at
		FROM scan_events
		WHERE qr_id = $1
		ORDER BY id
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, qrID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]types.ScanEvent, 0, limit)
	for rows.Next() {
		var event types.ScanEvent
		if err := rows.Scan(&event.ID, &event.QRID, &event.Action, &event.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Count returns the total number of logged events.
func (r *ScanEventRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM scan_events`
	var total int
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
