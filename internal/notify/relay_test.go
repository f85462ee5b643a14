package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type fakeSubscription struct {
	payloads chan []byte
}

func (s *fakeSubscription) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	select {
	case p := <-s.payloads:
		return p, nil
	case <-time.After(timeout):
		return nil, timeoutError{}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSubscription) Close() error { return nil }

type fakeSubscriber struct {
	mu         sync.Mutex
	sub        *fakeSubscription
	failuresN  int
	subscribes int
}

func (s *fakeSubscriber) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribes++
	if s.failuresN > 0 {
		s.failuresN--
		return nil, errors.New("broker unavailable")
	}
	return s.sub, nil
}

func (s *fakeSubscriber) subscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes
}

func eventPayload(envType, targetID string, message any) []byte {
	body, err := json.Marshal(message)
	Expect(err).To(BeNil())

	data, err := json.Marshal(Envelope{Type: envType, TargetID: targetID, Message: body})
	Expect(err).To(BeNil())

	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(eventSource)
	e.SetType(eventType)
	Expect(e.SetData(*cloudevents.StringOfApplicationJSON(), data)).To(Succeed())

	payload, err := json.Marshal(e)
	Expect(err).To(BeNil())
	return payload
}

var _ = Describe("relay", func() {
	var (
		registry   *Registry
		sub        *fakeSubscription
		subscriber *fakeSubscriber
		relay      *Relay
	)

	BeforeEach(func() {
		registry = NewRegistry()
		sub = &fakeSubscription{payloads: make(chan []byte, 16)}
		subscriber = &fakeSubscriber{sub: sub}
		relay = NewRelay(subscriber, registry,
			WithPollTimeout(20*time.Millisecond),
			WithBackoff(10*time.Millisecond),
		)
	})

	AfterEach(func() {
		relay.Stop()
	})

	It("routes a job update to the job's local watchers", func() {
		watcher := &fakeConn{}
		registry.Connect(watcher, "user-1", "review-1")

		relay.Start(context.Background())
		sub.payloads <- eventPayload(TypeJobUpdate, "review-1", map[string]any{"progress": 15})

		Eventually(watcher.received, time.Second, 10*time.Millisecond).Should(HaveLen(1))
		Expect(string(watcher.received()[0])).To(MatchJSON(`{"progress":15}`))
	})

	It("routes a system broadcast to every watcher", func() {
		a := &fakeConn{}
		b := &fakeConn{}
		registry.Connect(a, "user-1", "review-1")
		registry.Connect(b, "user-2", "review-2")

		relay.Start(context.Background())
		sub.payloads <- eventPayload(TypeSystemBroadcast, "", "maintenance")

		Eventually(a.received, time.Second, 10*time.Millisecond).Should(HaveLen(1))
		Eventually(b.received, time.Second, 10*time.Millisecond).Should(HaveLen(1))
	})

	It("skips malformed payloads without dying", func() {
		watcher := &fakeConn{}
		registry.Connect(watcher, "user-1", "review-1")

		relay.Start(context.Background())
		sub.payloads <- []byte("not json at all")
		sub.payloads <- eventPayload("unknown_type", "review-1", "x")
		sub.payloads <- eventPayload(TypeJobUpdate, "review-1", map[string]any{"progress": 30})

		Eventually(watcher.received, time.Second, 10*time.Millisecond).Should(HaveLen(1))
		Expect(string(watcher.received()[0])).To(MatchJSON(`{"progress":30}`))
	})

	It("backs off and resubscribes after a subscribe failure", func() {
		watcher := &fakeConn{}
		registry.Connect(watcher, "user-1", "review-1")
		subscriber.failuresN = 2

		relay.Start(context.Background())
		Eventually(subscriber.subscribeCount, time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 3))

		sub.payloads <- eventPayload(TypeJobUpdate, "review-1", "after recovery")
		Eventually(watcher.received, time.Second, 10*time.Millisecond).Should(HaveLen(1))
	})

	It("stops promptly", func() {
		relay.Start(context.Background())

		done := make(chan struct{})
		go func() {
			relay.Stop()
			close(done)
		}()
		Eventually(done, time.Second).Should(BeClosed())
	})

	It("tolerates stopping before starting", func() {
		done := make(chan struct{})
		go func() {
			relay.Stop()
			close(done)
		}()
		Eventually(done, time.Second).Should(BeClosed())

		// the relay is spent; a late Start must not launch an
		// unstoppable loop
		ctx, cancel := context.WithCancel(context.Background())
		relay.Start(ctx)
		cancel()

		Consistently(subscriber.subscribeCount, 100*time.Millisecond, 10*time.Millisecond).Should(BeZero())
	})

	It("tolerates stopping twice", func() {
		relay.Start(context.Background())
		relay.Stop()
		relay.Stop()
	})
})
