package notify

import (
	"context"
	"encoding/json"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	eventSource    = "reviewhub.pipeline"
	eventType      = "reviewhub.notification"
	defaultChannel = "reviewhub.notifications"
)

// Writer is the interface to be implemented by the underlying broker writer.
type Writer interface {
	Write(ctx context.Context, channel string, e cloudevents.Event) error
	Close(ctx context.Context) error
}

// Publisher wraps a Writer with a buffer so pipeline callers are never
// blocked by a slow broker. Publishing is best-effort: a write failure is
// logged and dropped, never surfaced to the caller as a job failure.
type Publisher struct {
	buffer  *buffer
	wakeCh  chan struct{}
	doneCh  chan any
	writer  Writer
	channel string
}

type PublisherOption func(p *Publisher)

func WithChannel(channel string) PublisherOption {
	return func(p *Publisher) {
		p.channel = channel
	}
}

func NewPublisher(w Writer, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		buffer:  newBuffer(),
		wakeCh:  make(chan struct{}, 1),
		doneCh:  make(chan any),
		writer:  w,
		channel: defaultChannel,
	}

	for _, o := range opts {
		o(p)
	}

	go p.run()
	return p
}

// Publish builds the wire envelope for the scope and queues it for a
// single write to the shared channel. Fire-and-forget: an unknown scope
// or a marshalling problem is logged and the event dropped.
func (p *Publisher) Publish(scope, targetID string, payload any) {
	typ, err := envelopeType(scope)
	if err != nil {
		zap.S().Named("publisher").Errorw("dropping event", "error", err)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		zap.S().Named("publisher").Errorw("dropping unmarshallable event",
			"scope", scope, "target_id", targetID, "error", err)
		return
	}

	env := Envelope{Type: typ, Message: body}
	if scope != ScopeGlobal {
		env.TargetID = targetID
	}

	p.buffer.PushBack(&message{Envelope: env})

	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *Publisher) Close() error {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(closeCtx)
	g.Go(func() error {
		p.doneCh <- struct{}{}
		return p.writer.Close(ctx)
	})
	if err := g.Wait(); err != nil {
		zap.S().Errorf("publisher closed with error: %s", err)
		return err
	}

	zap.S().Named("publisher").Info("publisher closed")

	return nil
}

func (p *Publisher) run() {
	for {
		select {
		case <-p.doneCh:
			return
		default:
		}

		if p.buffer.Size() == 0 {
			select {
			case <-p.wakeCh:
			case <-p.doneCh:
				return
			}
		}

		msg := p.buffer.Pop()
		if msg == nil {
			continue
		}

		data, err := json.Marshal(msg.Envelope)
		if err != nil {
			zap.S().Named("publisher").Errorw("failed to encode envelope", "error", err)
			continue
		}

		e := cloudevents.NewEvent()
		e.SetID(uuid.NewString())
		e.SetSource(eventSource)
		e.SetType(eventType)
		_ = e.SetData(*cloudevents.StringOfApplicationJSON(), data)

		if err := p.writer.Write(context.TODO(), p.channel, e); err != nil {
			zap.S().Named("publisher").Errorw("failed to publish event", "error", err, "event", e)
		}
	}
}
