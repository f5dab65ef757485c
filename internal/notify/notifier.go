package notify

import (
	"context"
	"log"
	"time"

	"wallet/internal/services"
	"wallet/internal/stream"
)

const EventTransfer = "transfer"

type Broadcaster interface {
	Publish(subject int64, event stream.Event)
}

// Sink receives a copy of every notification outside the process.
type Sink interface {
	Publish(ctx context.Context, key string, event any) error
}

// Notifier tells both parties about a completed transfer. It never returns an
// error: the money has already moved by the time it runs.
type Notifier struct {
	streams Broadcaster
	sink    Sink
	timeout time.Duration
}

// New builds a Notifier. sink may be nil.
func New(streams Broadcaster, sink Sink) *Notifier {
	return &Notifier{streams: streams, sink: sink, timeout: 2 * time.Second}
}

func (n *Notifier) TransferCompleted(ctx context.Context, result services.TransferResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("notify: transfer %d: %v", result.Entry.ID, r)
		}
	}()
	event := stream.NewEvent(EventTransfer, result.Receipt())
	n.streams.Publish(result.Receiver.ID, event)
	n.streams.Publish(result.Sender.ID, event)

	if n.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.sink.Publish(ctx, event.ID, event); err != nil {
		log.Printf("notify: sink rejected transfer %d: %v", result.Entry.ID, err)
	}
}
