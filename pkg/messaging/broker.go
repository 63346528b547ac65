package messaging

import (
	"context"
)

// Broker is the pub/sub abstraction the audit sink fans out over.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
