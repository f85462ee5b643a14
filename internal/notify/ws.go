package notify

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	maxFrameSize = 4 * 1024
)

// WSConn adapts a gorilla websocket to the registry Conn interface.
// gorilla allows a single concurrent writer, so every write goes
// through the mutex.
type WSConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

func (c *WSConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *WSConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

func (c *WSConn) Close() error {
	return c.ws.Close()
}

// Serve registers the socket under (userID, jobID) and blocks until the
// transport dies or ctx is cancelled. Liveness is a race between the
// periodic heartbeat and the blocking read pump; whichever fails first
// wins, the other branch is cancelled and the connection is removed
// from all registry indices.
func Serve(ctx context.Context, registry *Registry, ws *websocket.Conn, userID, jobID string) {
	conn := NewWSConn(ws)
	ctx, cancel := context.WithCancel(ctx)
	registry.Connect(conn, userID, jobID)
	defer func() {
		cancel()
		registry.Disconnect(conn, userID, jobID)
		_ = ws.Close()
	}()

	errCh := make(chan error, 2)

	// read pump: observes client disconnects; pongs refresh the read
	// deadline
	go func() {
		ws.SetReadLimit(maxFrameSize)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			// inbound frames are drained but otherwise ignored
			if _, _, err := ws.ReadMessage(); err != nil {
				errCh <- err
				return
			}
		}
	}()

	go heartbeat(ctx, conn, pingInterval, errCh)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		zap.S().Named("websocket").Debugw("connection closed",
			"user_id", userID, "job_id", jobID, "error", err)
	}
}

// heartbeat pings on a jittered interval so idle connections across the
// fleet do not ping in lockstep. It exits when the connection context is
// cancelled or a ping fails.
func heartbeat(ctx context.Context, conn *WSConn, interval time.Duration, errCh chan<- error) {
	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 50})
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				errCh <- err
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
