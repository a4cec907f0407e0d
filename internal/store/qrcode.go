package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/qrtrack/apiserver/types"
)

// QRRepository handles persistence for QR code records.
type QRRepository struct {
	db *sql.DB
}

func NewQRRepository(db *sql.DB) *QRRepository {
	return &QRRepository{db: db}
}

// CreateBatch inserts all records inside one transaction. A duplicate id
// anywhere in the batch aborts the whole insert and returns ErrConflict;
// nothing is partially applied.
func (r *QRRepository) CreateBatch(ctx context.Context, codes []types.QRCode) ([]types.QRCode, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		INSERT INTO qr_codes (id, image_data, status, created_at)
		VALUES ($1, $2, $3, $4)`

	now := time.Now()
	created := make([]types.QRCode, 0, len(codes))
	for _, code := range codes {
		if code.CreatedAt.IsZero() {
			code.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, query, code.ID, code.ImageData, code.Status, code.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return nil, ErrConflict
			}
			return nil, err
		}
		created = append(created, code)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// List returns records in insertion order. offset/limit are already
// normalized by the service layer.
func (r *QRRepository) List(ctx context.Context, offset, limit int) ([]types.QRCode, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM qr_codes`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, image_data, status, created_at
		FROM qr_codes
		ORDER BY seq
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	codes := make([]types.QRCode, 0, limit)
	for rows.Next() {
		var code types.QRCode
		if err := rows.Scan(
			&code.ID,
			&code.ImageData,
			&code.Status,
			&code.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return codes, total, nil
}

func (r *QRRepository) Get(ctx context.Context, id string) (types.QRCode, error) {
	const query = `
		SELECT id, image_data, status, created_at
		FROM qr_codes
		WHERE id = $1`
	var code types.QRCode
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&code.ID,
		&code.ImageData,
		&code.Status,
		&code.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.QRCode{}, ErrNotFound
		}
		return types.QRCode{}, err
	}
	return code, nil
}

// UpdateStatus sets the status of one record and returns the updated row.
// Transitions are unrestricted; an unknown id returns ErrNotFound.
func (r *QRRepository) UpdateStatus(ctx context.Context, id, status string) (types.QRCode, error) {
	const query = `
		UPDATE qr_codes
		SET status = $1
		WHERE id = $2
		RETURNING id, image_data, status, created_at`
	var code types.QRCode
	err := r.db.QueryRowContext(ctx, query, status, id).Scan(
		&code.ID,
		&code.ImageData,
		&code.Status,
		&code.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.QRCode{}, ErrNotFound
		}
		return types.QRCode{}, err
	}
	return code, nil
}

// DeleteAll removes every record and returns the number deleted.
// Scan events are untouched.
func (r *QRRepository) DeleteAll(ctx context.Context) (int64, error) {
	const query = `DELETE FROM qr_codes`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
