package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("websocket serve", func() {
	var (
		registry *Registry
		server   *httptest.Server
		upgrader websocket.Upgrader
	)

	BeforeEach(func() {
		registry = NewRegistry()
		upgrader = websocket.Upgrader{}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ws, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			Serve(r.Context(), registry, ws, r.Header.Get("X-User-ID"), r.URL.Query().Get("job"))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	dial := func(userID, jobID string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "?job=" + jobID
		header := http.Header{"X-User-ID": []string{userID}}
		client, _, err := websocket.DefaultDialer.Dial(url, header)
		Expect(err).To(BeNil())
		return client
	}

	It("streams delivered frames to the socket", func() {
		client := dial("user-1", "review-1")
		defer client.Close()

		Eventually(registry.Len, time.Second, 10*time.Millisecond).Should(Equal(1))

		registry.DeliverLocal(ScopeJob, "review-1", []byte(`{"progress":15}`))

		_ = client.SetReadDeadline(time.Now().Add(time.Second))
		_, payload, err := client.ReadMessage()
		Expect(err).To(BeNil())
		Expect(string(payload)).To(MatchJSON(`{"progress":15}`))
	})

	It("removes the connection when the client goes away", func() {
		client := dial("user-1", "review-1")
		Eventually(registry.Len, time.Second, 10*time.Millisecond).Should(Equal(1))

		client.Close()
		Eventually(registry.Len, time.Second, 10*time.Millisecond).Should(Equal(0))
	})

	It("keeps other watchers when one disconnects", func() {
		first := dial("user-1", "review-1")
		second := dial("user-2", "review-1")
		defer second.Close()

		Eventually(registry.Len, time.Second, 10*time.Millisecond).Should(Equal(2))

		first.Close()
		Eventually(registry.Len, time.Second, 10*time.Millisecond).Should(Equal(1))

		registry.DeliverLocal(ScopeJob, "review-1", []byte(`"still here"`))

		_ = second.SetReadDeadline(time.Now().Add(time.Second))
		_, payload, err := second.ReadMessage()
		Expect(err).To(BeNil())
		Expect(string(payload)).To(Equal(`"still here"`))
	})
})

var _ = Describe("heartbeat", func() {
	var (
		server *httptest.Server
		conns  chan *websocket.Conn
	)

	BeforeEach(func() {
		conns = make(chan *websocket.Conn, 1)
		upgrader := websocket.Upgrader{}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ws, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			conns <- ws
			// hold the handler open so the server side stays usable
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	dial := func() (client *websocket.Conn, serverSide *websocket.Conn) {
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client, _, err := websocket.DefaultDialer.Dial(url, nil)
		Expect(err).To(BeNil())
		Eventually(conns).Should(Receive(&serverSide))
		return client, serverSide
	}

	It("exits promptly on cancellation instead of waiting out a tick", func() {
		client, serverSide := dial()
		defer client.Close()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			heartbeat(ctx, NewWSConn(serverSide), time.Hour, make(chan error, 1))
		}()

		cancel()
		Eventually(done, time.Second, 10*time.Millisecond).Should(BeClosed())
	})

	It("reports a failed ping and exits", func() {
		client, serverSide := dial()
		client.Close()
		serverSide.Close()

		errCh := make(chan error, 1)
		done := make(chan struct{})
		go func() {
			defer close(done)
			heartbeat(context.Background(), NewWSConn(serverSide), 10*time.Millisecond, errCh)
		}()

		Eventually(errCh, time.Second, 10*time.Millisecond).Should(Receive())
		Eventually(done, time.Second, 10*time.Millisecond).Should(BeClosed())
	})
})
