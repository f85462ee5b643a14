package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultPollTimeout = 500 * time.Millisecond
	defaultBackoff     = time.Second
)

// Subscription is one open subscription to the shared channel, polled
// with a bounded timeout so cancellation is observed promptly.
type Subscription interface {
	// Receive returns the next raw payload. A nil payload with a nil
	// error means a non-data frame arrived and should be skipped.
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}

// Subscriber opens subscriptions on the broker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// RedisSubscriber subscribes on a redis pub/sub channel.
type RedisSubscriber struct {
	client *redis.Client
}

func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := s.client.Subscribe(ctx, channel)
	// wait for the subscription confirmation so a broken broker surfaces
	// here instead of on the first poll
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return &redisSubscription{ps: ps}, nil
}

type redisSubscription struct {
	ps *redis.PubSub
}

func (s *redisSubscription) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	msg, err := s.ps.ReceiveTimeout(ctx, timeout)
	if err != nil {
		return nil, err
	}
	if m, ok := msg.(*redis.Message); ok {
		return []byte(m.Payload), nil
	}
	// subscription acks, pongs
	return nil, nil
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}

// Relay is the process-wide singleton that forwards broker events into
// the local connection registry. Explicit Start/Stop lifecycle; Stop
// cancels the poll loop and releases the subscription.
type Relay struct {
	subscriber  Subscriber
	registry    *Registry
	channel     string
	pollTimeout time.Duration
	backoff     time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type RelayOption func(r *Relay)

func WithRelayChannel(channel string) RelayOption {
	return func(r *Relay) {
		r.channel = channel
	}
}

func WithPollTimeout(timeout time.Duration) RelayOption {
	return func(r *Relay) {
		r.pollTimeout = timeout
	}
}

func WithBackoff(backoff time.Duration) RelayOption {
	return func(r *Relay) {
		r.backoff = backoff
	}
}

func NewRelay(subscriber Subscriber, registry *Registry, opts ...RelayOption) *Relay {
	r := &Relay{
		subscriber:  subscriber,
		registry:    registry,
		channel:     defaultChannel,
		pollTimeout: defaultPollTimeout,
		backoff:     defaultBackoff,
		done:        make(chan struct{}),
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

// Start launches the poll loop. Starting twice, or after Stop, is a
// no-op.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
}

// Stop cancels the poll loop and blocks until the subscription is
// released. A relay that never started stops immediately. Safe to call
// concurrently with in-flight deliveries.
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	cancel := r.cancel
	r.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-r.done
}

func (r *Relay) run(ctx context.Context) {
	defer close(r.done)

	logger := zap.S().Named("relay")
	for ctx.Err() == nil {
		sub, err := r.subscriber.Subscribe(ctx, r.channel)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warnw("subscribe failed, backing off", "channel", r.channel, "error", err)
			select {
			case <-time.After(r.backoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		logger.Infow("subscribed", "channel", r.channel)
		r.poll(ctx, sub)
		_ = sub.Close()
	}
}

// poll loops on one subscription until cancellation or a broker error
// that forces a resubscribe.
func (r *Relay) poll(ctx context.Context, sub Subscription) {
	logger := zap.S().Named("relay")
	for {
		if ctx.Err() != nil {
			return
		}

		payload, err := sub.Receive(ctx, r.pollTimeout)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			logger.Warnw("receive failed, resubscribing", "error", err)
			return
		}
		if payload == nil {
			continue
		}

		r.dispatch(payload)
	}
}

// dispatch decodes one raw payload and routes it to the registry. A
// malformed payload is logged and skipped; the loop never dies on bad
// input.
func (r *Relay) dispatch(payload []byte) {
	logger := zap.S().Named("relay")

	e := cloudevents.NewEvent()
	if err := json.Unmarshal(payload, &e); err != nil {
		logger.Warnw("discarding malformed event", "error", err)
		return
	}

	var env Envelope
	if err := json.Unmarshal(e.Data(), &env); err != nil {
		logger.Warnw("discarding malformed envelope", "event_id", e.ID(), "error", err)
		return
	}

	scope, err := env.Scope()
	if err != nil {
		logger.Warnw("discarding envelope", "event_id", e.ID(), "error", err)
		return
	}

	r.registry.DeliverLocal(scope, env.TargetID, env.Message)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
