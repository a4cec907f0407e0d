package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/qrtrack/apiserver/internal/qr"
	"github.com/qrtrack/apiserver/types"
)

const (
	// maxBatchSize bounds one create call.
	maxBatchSize = 100

	// maxPageSize bounds an explicit pageSize.
	maxPageSize = 100

	// unpagedCap bounds a list call without paging parameters so the
	// response can never grow unbounded.
	unpagedCap = 500
)

// QRRepository defines persistence operations for QR records.
type QRRepository interface {
	CreateBatch(ctx context.Context, codes []types.QRCode) ([]types.QRCode, error)
	List(ctx context.Context, offset, limit int) ([]types.QRCode, int, error)
	Get(ctx context.Context, id string) (types.QRCode, error)
	UpdateStatus(ctx context.Context, id, status string) (types.QRCode, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// RenderFunc produces the stored image payload for an id.
type RenderFunc func(id string) (string, error)

// DefaultRender rasters the id with a human-readable label strip and
// returns it as a base64 data URL.
func DefaultRender(id string) (string, error) {
	data, err := qr.Render(id, qr.RenderOptions{Label: id})
	if err != nil {
		return "", err
	}
	return qr.DataURL(data), nil
}

// QRService encapsulates registry use-cases.
type QRService struct {
	repo   QRRepository
	render RenderFunc
}

func NewQRService(repo QRRepository, render RenderFunc) *QRService {
	if render == nil {
		render = DefaultRender
	}
	return &QRService{repo: repo, render: render}
}

// CreateBatch validates and persists a batch all-or-nothing. Records
// without an image are rendered server-side; status defaults to inactive.
func (s *QRService) CreateBatch(ctx context.Context, codes []types.QRCode) ([]types.QRCode, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", ErrInvalid)
	}
	if len(codes) > maxBatchSize {
		return nil, fmt.Errorf("%w: batch exceeds %d records", ErrInvalid, maxBatchSize)
	}

	seen := make(map[string]struct{}, len(codes))
	for i := range codes {
		codes[i].ID = strings.TrimSpace(codes[i].ID)
		if codes[i].ID == "" {
			return nil, fmt.Errorf("%w: record %d has no id", ErrInvalid, i)
		}
		if _, dup := seen[codes[i].ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q in batch", ErrInvalid, codes[i].ID)
		}
		seen[codes[i].ID] = struct{}{}

		if codes[i].Status == "" {
			codes[i].Status = types.StatusInactive
		} else if !types.ValidStatus(codes[i].Status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, codes[i].Status)
		}

		if codes[i].ImageData == "" {
			image, err := s.render(codes[i].ID)
			if err != nil {
				return nil, err
			}
			codes[i].ImageData = image
		}
	}

	return s.repo.CreateBatch(ctx, codes)
}

// List returns one page in insertion order plus a has-more flag.
// page/pageSize <= 0 means "no paging": the full set capped at unpagedCap.
func (s *QRService) List(ctx context.Context, page, pageSize int) ([]types.QRCode, bool, error) {
	offset := 0
	limit := unpagedCap
	if page > 0 || pageSize > 0 {
		if page < 1 {
			page = 1
		}
		if pageSize < 1 {
			pageSize = 20
		}
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
		offset = (page - 1) * pageSize
		limit = pageSize
	}

	codes, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, false, err
	}
	return codes, offset+len(codes) < total, nil
}

func (s *QRService) Get(ctx context.Context, id string) (types.QRCode, error) {
	return s.repo.Get(ctx, id)
}

func (s *QRService) UpdateStatus(ctx context.Context, id, status string) (types.QRCode, error) {
	if !types.ValidStatus(status) {
		return types.QRCode{}, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *QRService) DeleteAll(ctx context.Context) (int64, error) {
	return s.repo.DeleteAll(ctx)
}
