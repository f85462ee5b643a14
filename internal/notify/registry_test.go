package notify

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	failSend bool
	closed   bool
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

var _ = Describe("registry", func() {
	var registry *Registry

	BeforeEach(func() {
		registry = NewRegistry()
	})

	Context("connect and disconnect", func() {
		It("indexes a connection under all three scopes", func() {
			conn := &fakeConn{}
			registry.Connect(conn, "user-1", "job-1")

			Expect(registry.Len()).To(Equal(1))
			Expect(registry.byJob).To(HaveKey("job-1"))
			Expect(registry.byUser).To(HaveKey("user-1"))
		})

		It("drops empty buckets on disconnect", func() {
			conn := &fakeConn{}
			registry.Connect(conn, "user-1", "job-1")
			registry.Disconnect(conn, "user-1", "job-1")

			Expect(registry.Len()).To(Equal(0))
			Expect(registry.byJob).NotTo(HaveKey("job-1"))
			Expect(registry.byUser).NotTo(HaveKey("user-1"))
			Expect(registry.keys).To(BeEmpty())
		})

		It("keeps the bucket while another connection shares the key", func() {
			conn1 := &fakeConn{}
			conn2 := &fakeConn{}
			registry.Connect(conn1, "user-1", "job-1")
			registry.Connect(conn2, "user-1", "job-1")

			registry.Disconnect(conn1, "user-1", "job-1")
			Expect(registry.Len()).To(Equal(1))
			Expect(registry.byJob["job-1"]).To(HaveLen(1))
		})

		It("treats a second disconnect as a no-op", func() {
			conn := &fakeConn{}
			registry.Connect(conn, "user-1", "job-1")
			registry.Disconnect(conn, "user-1", "job-1")
			registry.Disconnect(conn, "user-1", "job-1")

			Expect(registry.Len()).To(Equal(0))
		})
	})

	Context("scoped delivery", func() {
		It("delivers a job event only to that job's watchers", func() {
			watcherA := &fakeConn{}
			watcherB := &fakeConn{}
			registry.Connect(watcherA, "user-1", "job-a")
			registry.Connect(watcherB, "user-2", "job-b")

			registry.DeliverLocal(ScopeJob, "job-a", []byte(`{"progress":15}`))

			Expect(watcherA.received()).To(HaveLen(1))
			Expect(watcherB.received()).To(BeEmpty())
		})

		It("delivers a user event to every connection of that user", func() {
			tab1 := &fakeConn{}
			tab2 := &fakeConn{}
			other := &fakeConn{}
			registry.Connect(tab1, "user-1", "job-a")
			registry.Connect(tab2, "user-1", "job-b")
			registry.Connect(other, "user-2", "job-c")

			registry.DeliverLocal(ScopeUser, "user-1", []byte(`"hello"`))

			Expect(tab1.received()).To(HaveLen(1))
			Expect(tab2.received()).To(HaveLen(1))
			Expect(other.received()).To(BeEmpty())
		})

		It("reaches a connection with no job attachment through user and global scopes", func() {
			conn := &fakeConn{}
			registry.Connect(conn, "user-1", "")

			Expect(registry.byJob).To(BeEmpty())

			registry.DeliverLocal(ScopeUser, "user-1", []byte(`"direct"`))
			registry.DeliverLocal(ScopeGlobal, "", []byte(`"broadcast"`))

			Expect(conn.received()).To(HaveLen(2))

			registry.Disconnect(conn, "user-1", "")
			Expect(registry.Len()).To(Equal(0))
		})

		It("broadcasts a global event to every connection", func() {
			conns := []*fakeConn{{}, {}, {}}
			for i, conn := range conns {
				registry.Connect(conn, "user-1", string(rune('a'+i)))
			}

			registry.DeliverLocal(ScopeGlobal, "", []byte(`"maintenance"`))

			for _, conn := range conns {
				Expect(conn.received()).To(HaveLen(1))
			}
		})

		It("is a no-op for a target with no local watchers", func() {
			conn := &fakeConn{}
			registry.Connect(conn, "user-1", "job-a")

			registry.DeliverLocal(ScopeJob, "job-unknown", []byte(`{}`))

			Expect(conn.received()).To(BeEmpty())
		})

		It("delivers twice to a connection matched by two events", func() {
			conn := &fakeConn{}
			registry.Connect(conn, "user-1", "job-a")

			registry.DeliverLocal(ScopeJob, "job-a", []byte(`{"progress":15}`))
			registry.DeliverLocal(ScopeUser, "user-1", []byte(`"ping"`))

			Expect(conn.received()).To(HaveLen(2))
		})
	})

	Context("failed sends", func() {
		It("tears down the failing connection and spares the rest", func() {
			healthy := &fakeConn{}
			broken := &fakeConn{failSend: true}
			registry.Connect(healthy, "user-1", "job-a")
			registry.Connect(broken, "user-2", "job-a")

			registry.DeliverLocal(ScopeJob, "job-a", []byte(`{}`))

			Expect(healthy.received()).To(HaveLen(1))
			Expect(broken.closed).To(BeTrue())
			Expect(registry.Len()).To(Equal(1))
			Expect(registry.byUser).NotTo(HaveKey("user-2"))
		})
	})
})
