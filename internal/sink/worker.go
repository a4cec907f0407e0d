package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/qrtrack/apiserver/internal/mq"
	"github.com/qrtrack/apiserver/types"
)

// Worker consumes relayed scan events from the broker and appends them
// to object storage. Malformed messages are dropped; append failures
// are nacked so the broker redelivers.
type Worker struct {
	mq      *mq.MQ
	channel string
	sink    *ObjectSink
}

func NewWorker(broker *mq.MQ, channel string, sink *ObjectSink) *Worker {
	return &Worker{mq: broker, channel: channel, sink: sink}
}

// Run blocks consuming the channel until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("scan log worker started", "channel", w.channel)
	return w.mq.Subscribe(ctx, w.channel, w.handle)
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var event types.ScanEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Not recoverable by redelivery; drop it.
		slog.Warn("dropping malformed scan event", "message_id", msg.ID, "err", err)
		return nil
	}

	if err := w.sink.Append(ctx, event); err != nil {
		return fmt.Errorf("append event %d: %w", event.ID, err)
	}
	slog.Debug("scan event archived", "qr_id", event.QRID, "action", event.Action)
	return nil
}
