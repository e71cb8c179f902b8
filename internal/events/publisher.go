// Package events publishes verdict events to Kafka for downstream audit and
// analytics. Publishing is buffered and best-effort: a full buffer drops the
// event rather than blocking classification.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/hipc-validation/virus-strain-validator/internal/engine"
	"github.com/hipc-validation/virus-strain-validator/pkg/kafka"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
)

// VerdictEvent is the audit record emitted for one classified pair.
type VerdictEvent struct {
	ReportedName     string         `json:"reported_name"`
	PreferredName    string         `json:"preferred_name"`
	ReportedOutcome  engine.Outcome `json:"reported_outcome"`
	PreferredOutcome engine.Outcome `json:"preferred_outcome"`
	CommentsMatch    bool           `json:"comments_match"`
	Timestamp        time.Time      `json:"timestamp"`
	RequestID        string         `json:"request_id,omitempty"`
}

// Publisher buffers verdict events and writes them to a Kafka topic.
type Publisher struct {
	producer *kafka.Producer
	eventCh  chan VerdictEvent
	logger   *slog.Logger
	done     chan struct{}
}

// NewPublisher creates a Publisher over the given producer.
func NewPublisher(producer *kafka.Producer, bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &Publisher{
		producer: producer,
		eventCh:  make(chan VerdictEvent, bufferSize),
		logger:   logger.WithComponent("verdict-events"),
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop; it runs until ctx is cancelled or Close
// is called.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case event, ok := <-p.eventCh:
				if !ok {
					return
				}
				p.publish(ctx, event)
			case <-ctx.Done():
				p.drain()
				return
			}
		}
	}()
	p.logger.Info("verdict event publisher started", "buffer_size", cap(p.eventCh))
}

// Track enqueues an event, dropping it if the buffer is full.
func (p *Publisher) Track(event VerdictEvent) {
	select {
	case p.eventCh <- event:
	default:
		p.logger.Warn("verdict event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the loop to finish.
func (p *Publisher) Close() {
	close(p.eventCh)
	<-p.done
}

func (p *Publisher) publish(ctx context.Context, event VerdictEvent) {
	err := p.producer.Publish(ctx, kafka.Event{
		Key:   event.ReportedName,
		Value: event,
	})
	if err != nil {
		p.logger.Error("failed to publish verdict event", "error", err)
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case event, ok := <-p.eventCh:
			if !ok {
				return
			}
			p.publish(context.Background(), event)
		default:
			return
		}
	}
}
