package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/qrtrack/apiserver/internal/storage"
	"github.com/qrtrack/apiserver/types"
)

// Exporter streams archived scan events back out as CSV for audit.
type Exporter struct {
	storage *storage.Storage
}

func NewExporter(st *storage.Storage) *Exporter {
	return &Exporter{storage: st}
}

// ExportDay writes all events archived for the given day as CSV rows
// (qr_id, action, timestamp), ordered by key.
func (e *Exporter) ExportDay(ctx context.Context, day time.Time, w io.Writer) (int, error) {
	prefix := fmt.Sprintf("scans/%s/", day.UTC().Format("2006-01-02"))
	keys, err := e.storage.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	sort.Strings(keys)

	out := csv.NewWriter(w)
	if err := out.Write([]string{"qr_id", "action", "timestamp"}); err != nil {
		return 0, err
	}

	count := 0
	for _, key := range keys {
		event, err := e.readEvent(ctx, key)
		if err != nil {
			return count, fmt.Errorf("read %s: %w", key, err)
		}
		row := []string{event.QRID, event.Action, event.Timestamp.UTC().Format(time.RFC3339Nano)}
		if err := out.Write(row); err != nil {
			return count, err
		}
		count++
	}

	out.Flush()
	return count, out.Error()
}

func (e *Exporter) readEvent(ctx context.Context, key string) (types.ScanEvent, error) {
	reader, err := e.storage.Get(ctx, key)
	if err != nil {
		return types.ScanEvent{}, err
	}
	defer reader.Close()

	var event types.ScanEvent
	if err := json.NewDecoder(reader).Decode(&event); err != nil {
		return types.ScanEvent{}, err
	}
	return event, nil
}
