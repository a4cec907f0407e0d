// Package sink implements the append-only external record of scan
// events. Events reach it either directly (ObjectSink) or via a broker
// relay (QueueSink) consumed by the Worker.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/qrtrack/apiserver/internal/mq"
	"github.com/qrtrack/apiserver/internal/storage"
	"github.com/qrtrack/apiserver/types"
)

// Sink appends one scan event to the external log.
type Sink interface {
	Append(ctx context.Context, event types.ScanEvent) error
}

// Nop discards events. Used when no external sink is configured; the
// database scan log is still written by the resolver.
type Nop struct{}

func (Nop) Append(context.Context, types.ScanEvent) error { return nil }

// ObjectSink writes one immutable JSON object per event. Keys embed the
// event id, so replays overwrite with identical content instead of
// duplicating entries.
type ObjectSink struct {
	storage *storage.Storage
}

func NewObjectSink(st *storage.Storage) *ObjectSink {
	return &ObjectSink{storage: st}
}

// ObjectKey is the storage key for one event:
// scans/<yyyy-mm-dd>/<qr id>-<event id>.json
func ObjectKey(event types.ScanEvent) string {
	return fmt.Sprintf("scans/%s/%s-%d.json",
		event.Timestamp.UTC().Format("2006-01-02"), event.QRID, event.ID)
}

func (s *ObjectSink) Append(ctx context.Context, event types.ScanEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := ObjectKey(event)
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// QueueSink relays events to a broker channel. A worker drains the
// channel into an ObjectSink.
type QueueSink struct {
	mq      *mq.MQ
	channel string
}

func NewQueueSink(broker *mq.MQ, channel string) *QueueSink {
	return &QueueSink{mq: broker, channel: channel}
}

func (s *QueueSink) Append(ctx context.Context, event types.ScanEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = s.mq.Publish(ctx, s.channel, data, map[string]string{
		"qr_id":  event.QRID,
		"action": event.Action,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.channel, err)
	}
	return nil
}
