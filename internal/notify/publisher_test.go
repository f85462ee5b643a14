package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type testwriter struct {
	mu       sync.Mutex
	messages []cloudevents.Event
	channels []string
}

func newTestWriter() *testwriter {
	return &testwriter{}
}

func (t *testwriter) Write(ctx context.Context, channel string, e cloudevents.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, e)
	t.channels = append(t.channels, channel)
	return nil
}

func (t *testwriter) Close(_ context.Context) error {
	return nil
}

func (t *testwriter) events() []cloudevents.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]cloudevents.Event, len(t.messages))
	copy(out, t.messages)
	return out
}

func decodeEnvelope(e cloudevents.Event) Envelope {
	var env Envelope
	Expect(json.Unmarshal(e.Data(), &env)).To(Succeed())
	return env
}

var _ = Describe("publisher", func() {
	It("wraps the payload in a typed envelope and writes it", func() {
		w := newTestWriter()
		p := NewPublisher(w, WithChannel("test.channel"))

		p.Publish(ScopeJob, "review-1", map[string]any{"progress": 15})

		Eventually(w.events, time.Second, 10*time.Millisecond).Should(HaveLen(1))

		e := w.events()[0]
		Expect(e.Type()).To(Equal(eventType))
		Expect(e.Source()).To(Equal(eventSource))
		Expect(w.channels[0]).To(Equal("test.channel"))

		env := decodeEnvelope(e)
		Expect(env.Type).To(Equal(TypeJobUpdate))
		Expect(env.TargetID).To(Equal("review-1"))
		Expect(string(env.Message)).To(MatchJSON(`{"progress":15}`))

		Expect(p.Close()).To(Succeed())
	})

	It("preserves publish order", func() {
		w := newTestWriter()
		p := NewPublisher(w)

		for i := 0; i < 5; i++ {
			p.Publish(ScopeUser, "user-1", i)
		}

		Eventually(w.events, time.Second, 10*time.Millisecond).Should(HaveLen(5))
		for i, e := range w.events() {
			env := decodeEnvelope(e)
			Expect(env.Type).To(Equal(TypeUserNotification))
			Expect(string(env.Message)).To(MatchJSON(strconv.Itoa(i)))
		}

		Expect(p.Close()).To(Succeed())
	})

	It("omits the target id on global events", func() {
		w := newTestWriter()
		p := NewPublisher(w)

		p.Publish(ScopeGlobal, "ignored", "maintenance window")

		Eventually(w.events, time.Second, 10*time.Millisecond).Should(HaveLen(1))
		env := decodeEnvelope(w.events()[0])
		Expect(env.Type).To(Equal(TypeSystemBroadcast))
		Expect(env.TargetID).To(BeEmpty())

		Expect(p.Close()).To(Succeed())
	})

	It("drops events with an unknown scope", func() {
		w := newTestWriter()
		p := NewPublisher(w)

		p.Publish("bogus", "x", "y")
		p.Publish(ScopeJob, "review-1", "real")

		Eventually(w.events, time.Second, 10*time.Millisecond).Should(HaveLen(1))
		env := decodeEnvelope(w.events()[0])
		Expect(env.Type).To(Equal(TypeJobUpdate))

		Expect(p.Close()).To(Succeed())
	})
})
