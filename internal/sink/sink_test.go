package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/qrtrack/apiserver/internal/mq"
	"github.com/qrtrack/apiserver/internal/storage"
	"github.com/qrtrack/apiserver/types"
)

// memObjectStorage is an in-memory ObjectStorage backend.
type memObjectStorage struct {
	objects map[string][]byte
	putErr  error
}

func newMemStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (m *memObjectStorage) EnsureBucket(ctx context.Context) error { return nil }

func (m *memObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memObjectStorage) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjectStorage) Bucket() string { return "test-bucket" }

func testEvent(id int64, qrID, action string, at time.Time) types.ScanEvent {
	return types.ScanEvent{ID: id, QRID: qrID, Action: action, Timestamp: at}
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	key := ObjectKey(testEvent(42, "token-1", "activate", at))
	if key != "scans/2026-03-14/token-1-42.json" {
		t.Fatalf("unexpected key %q", key)
	}

	// Timestamps are keyed in UTC regardless of zone.
	offset := at.In(time.FixedZone("UTC+11", 11*3600))
	if got := ObjectKey(testEvent(42, "token-1", "activate", offset)); got != key {
		t.Fatalf("key varies with time zone: %q vs %q", got, key)
	}
}

func TestObjectSinkAppend(t *testing.T) {
	backend := newMemStorage()
	sink := NewObjectSink(storage.NewStorage(backend))

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	event := testEvent(7, "token-1", "scanned", at)
	if err := sink.Append(context.Background(), event); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, ok := backend.objects["scans/2026-03-14/token-1-7.json"]
	if !ok {
		t.Fatalf("object not written; have %v", backend.objects)
	}

	var stored types.ScanEvent
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("stored object is not valid JSON: %v", err)
	}
	if stored.QRID != "token-1" || stored.Action != "scanned" || stored.ID != 7 {
		t.Fatalf("stored event mismatch: %+v", stored)
	}
}

func TestObjectSinkAppendIdempotent(t *testing.T) {
	backend := newMemStorage()
	sink := NewObjectSink(storage.NewStorage(backend))

	event := testEvent(7, "token-1", "scanned", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	for i := 0; i < 3; i++ {
		if err := sink.Append(context.Background(), event); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if len(backend.objects) != 1 {
		t.Fatalf("redelivery duplicated objects: %d", len(backend.objects))
	}
}

func TestWorkerHandle(t *testing.T) {
	backend := newMemStorage()
	worker := NewWorker(nil, "scan-events", NewObjectSink(storage.NewStorage(backend)))

	event := testEvent(3, "token-1", "activate", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := worker.handle(context.Background(), mq.Message{ID: "m1", Data: data}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(backend.objects) != 1 {
		t.Fatalf("event not archived: %d objects", len(backend.objects))
	}
}

func TestWorkerHandleDropsMalformed(t *testing.T) {
	backend := newMemStorage()
	worker := NewWorker(nil, "scan-events", NewObjectSink(storage.NewStorage(backend)))

	if err := worker.handle(context.Background(), mq.Message{ID: "m1", Data: []byte("not json")}); err != nil {
		t.Fatalf("malformed message must be dropped, not retried: %v", err)
	}
	if len(backend.objects) != 0 {
		t.Fatal("malformed message reached storage")
	}
}

func TestWorkerHandleNacksOnAppendFailure(t *testing.T) {
	backend := newMemStorage()
	backend.putErr = errors.New("storage down")
	worker := NewWorker(nil, "scan-events", NewObjectSink(storage.NewStorage(backend)))

	event := testEvent(3, "token-1", "activate", time.Now())
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := worker.handle(context.Background(), mq.Message{ID: "m1", Data: data}); err == nil {
		t.Fatal("append failure must surface so the broker redelivers")
	}
}

func TestExportDay(t *testing.T) {
	backend := newMemStorage()
	st := storage.NewStorage(backend)
	objSink := NewObjectSink(st)

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	events := []types.ScanEvent{
		testEvent(1, "token-1", "activate", day.Add(9 * time.Hour)),
		testEvent(2, "token-2", "scanned", day.Add(10 * time.Hour)),
		testEvent(3, "token-1", "deactivate", day.Add(11 * time.Hour)),
		// Different day, must not appear in the export.
		testEvent(4, "token-3", "scanned", day.AddDate(0, 0, 1)),
	}
	for _, e := range events {
		if err := objSink.Append(context.Background(), e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var buf bytes.Buffer
	count, err := NewExporter(st).ExportDay(context.Background(), day, &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if count != 3 {
		t.Fatalf("exported %d events, want 3", count)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "qr_id,action,timestamp" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(buf.String(), "token-1,activate,") {
		t.Fatalf("missing expected row in:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "token-3") {
		t.Fatal("export leaked an event from another day")
	}
}

func TestExportDayEmpty(t *testing.T) {
	st := storage.NewStorage(newMemStorage())

	var buf bytes.Buffer
	count, err := NewExporter(st).ExportDay(context.Background(), time.Now(), &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 events, got %d", count)
	}
	if strings.TrimSpace(buf.String()) != "qr_id,action,timestamp" {
		t.Fatalf("expected bare header, got %q", buf.String())
	}
}
