package sink

import (
	"context"
	"fmt"

	"github.com/qrtrack/apiserver/config"
	"github.com/qrtrack/apiserver/internal/mq"
	"github.com/qrtrack/apiserver/internal/storage"
)

// NewStorageFromConfig selects and constructs the object storage backend.
func NewStorageFromConfig(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "":
		return nil, fmt.Errorf("STORAGE_BACKEND is not set")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// NewMQFromConfig selects and constructs the broker backend.
func NewMQFromConfig(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQ.Backend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "":
		return nil, fmt.Errorf("MQ_BACKEND is not set")
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}
