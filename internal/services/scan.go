package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/qrtrack/apiserver/types"
)

// idLengthThreshold is the minimum length for a URL path segment to be
// treated as an embedded identifier (UUID-shape heuristic; a v4 UUID
// string is 36 characters).
const idLengthThreshold = 30

// ScanRegistry is the slice of the registry the resolver mutates.
type ScanRegistry interface {
	UpdateStatus(ctx context.Context, id, status string) (types.QRCode, error)
}

// ScanLog appends resolved events to the persistent audit log.
type ScanLog interface {
	Append(ctx context.Context, event types.ScanEvent) (types.ScanEvent, error)
	ListByQR(ctx context.Context, qrID string, limit int) ([]types.ScanEvent, error)
}

// EventRelay forwards events to the external scan log sink. Implemented
// by the sink package; may be a no-op.
type EventRelay interface {
	Append(ctx context.Context, event types.ScanEvent) error
}

// ScanResult is what a completed resolution returns to the client.
type ScanResult struct {
	QR             types.QRCode
	Event          types.ScanEvent
	DestinationURL string
}

// ScanService turns a decoded scan payload into exactly one registry
// mutation and one scan log append.
type ScanService struct {
	registry        ScanRegistry
	log             ScanLog
	relay           EventRelay
	destinationBase string
}

func NewScanService(registry ScanRegistry, log ScanLog, relay EventRelay, destinationBase string) *ScanService {
	return &ScanService{
		registry:        registry,
		log:             log,
		relay:           relay,
		destinationBase: strings.TrimRight(destinationBase, "/"),
	}
}

// ExtractID canonicalizes decoded scanner text to a registry id. If the
// payload parses as an absolute URL whose last non-empty path segment is
// long enough to be id-shaped, that segment is the id; otherwise the raw
// text is used verbatim.
func ExtractID(decoded string) string {
	decoded = strings.TrimSpace(decoded)

	u, err := url.Parse(decoded)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return decoded
	}

	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			continue
		}
		if len(segments[i]) > idLengthThreshold {
			return segments[i]
		}
		break
	}
	return decoded
}

// statusForAction maps a scan action to the status it sets. An empty
// action is the generic scan marker.
func statusForAction(action string) (normalized, status string, err error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "", types.ActionScan, types.StatusScanned:
		return types.StatusScanned, types.StatusScanned, nil
	case types.ActionActivate:
		return types.ActionActivate, types.StatusActive, nil
	case types.ActionDeactivate:
		return types.ActionDeactivate, types.StatusDeactivated, nil
	default:
		return "", "", fmt.Errorf("%w: unknown scan action %q", ErrInvalid, action)
	}
}

// Resolve updates the scanned record's status, appends one event to the
// log, relays it to the sink and returns the destination for the client.
// Failures are not retried here; the caller surfaces them and the user
// may start a fresh attempt.
func (s *ScanService) Resolve(ctx context.Context, scannedText, action string) (ScanResult, error) {
	if strings.TrimSpace(scannedText) == "" {
		return ScanResult{}, fmt.Errorf("%w: empty scan payload", ErrInvalid)
	}

	normalized, status, err := statusForAction(action)
	if err != nil {
		return ScanResult{}, err
	}

	id := ExtractID(scannedText)
	qr, err := s.registry.UpdateStatus(ctx, id, status)
	if err != nil {
		return ScanResult{}, err
	}

	event, err := s.log.Append(ctx, types.ScanEvent{
		QRID:      qr.ID,
		Action:    normalized,
		Timestamp: time.Now(),
	})
	if err != nil {
		return ScanResult{}, fmt.Errorf("append scan event: %w", err)
	}

	if s.relay != nil {
		if err := s.relay.Append(ctx, event); err != nil {
			return ScanResult{}, fmt.Errorf("relay scan event: %w", err)
		}
	}

	return ScanResult{
		QR:             qr,
		Event:          event,
		DestinationURL: fmt.Sprintf("%s/qrcodes/%s", s.destinationBase, qr.ID),
	}, nil
}

// History returns the scan log of one code, oldest first.
func (s *ScanService) History(ctx context.Context, qrID string, limit int) ([]types.ScanEvent, error) {
	return s.log.ListByQR(ctx, qrID, limit)
}
