package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Conn is one open bidirectional channel to a client. The transport layer
// owns the connection; the registry only owns the indexing.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

type connKeys struct {
	userID string
	jobID  string
}

// Registry is the per-process index of live connections, keyed by job id,
// by user id, and a global set. One instance per process; every mutation
// happens under a single registry-wide lock.
type Registry struct {
	mu     sync.Mutex
	byJob  map[string]map[Conn]struct{}
	byUser map[string]map[Conn]struct{}
	global map[Conn]struct{}

	// cleanup bookkeeping only; the transport owns the connection
	keys map[Conn]connKeys
}

func NewRegistry() *Registry {
	return &Registry{
		byJob:  make(map[string]map[Conn]struct{}),
		byUser: make(map[string]map[Conn]struct{}),
		global: make(map[Conn]struct{}),
		keys:   make(map[Conn]connKeys),
	}
}

// Connect registers conn under the job set, the user set and the global
// set. An empty job id means a user-level connection with no job
// attachment; it is still reachable through the user and global sets. A
// structurally valid call never fails.
func (r *Registry) Connect(conn Conn, userID, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if jobID != "" {
		if r.byJob[jobID] == nil {
			r.byJob[jobID] = make(map[Conn]struct{})
		}
		r.byJob[jobID][conn] = struct{}{}
	}

	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[Conn]struct{})
	}
	r.byUser[userID][conn] = struct{}{}

	r.global[conn] = struct{}{}
	r.keys[conn] = connKeys{userID: userID, jobID: jobID}
}

// Disconnect removes conn from all three indices. Empty buckets are
// dropped so abandoned ids do not leak. Calling it twice is a no-op.
func (r *Registry) Disconnect(conn Conn, userID, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(conn, userID, jobID)
}

// Drop removes conn using the bookkeeping recorded at Connect time. Used
// when a delivery failure tears down a connection and the caller has no
// key context.
func (r *Registry) Drop(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, ok := r.keys[conn]
	if !ok {
		return
	}
	r.remove(conn, keys.userID, keys.jobID)
}

func (r *Registry) remove(conn Conn, userID, jobID string) {
	if set, ok := r.byJob[jobID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.byJob, jobID)
		}
	}
	if set, ok := r.byUser[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.byUser, userID)
		}
	}
	delete(r.global, conn)
	delete(r.keys, conn)
}

// DeliverLocal sends payload to every locally attached connection in the
// matching scope. Targets with no local connections are a normal no-op.
// Sends run concurrently; a failed send tears that connection down
// without affecting the others.
func (r *Registry) DeliverLocal(scope, targetID string, payload []byte) {
	conns := r.snapshot(scope, targetID)
	if len(conns) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(c Conn) {
			defer wg.Done()
			if err := c.Send(payload); err != nil {
				zap.S().Named("registry").Debugw("dropping connection after failed send",
					"scope", scope, "target_id", targetID, "error", err)
				_ = c.Close()
				r.Drop(c)
			}
		}(conn)
	}
	wg.Wait()
}

// snapshot copies the matching set under the lock so sends never hold it.
func (r *Registry) snapshot(scope, targetID string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	var set map[Conn]struct{}
	switch scope {
	case ScopeJob:
		set = r.byJob[targetID]
	case ScopeUser:
		set = r.byUser[targetID]
	case ScopeGlobal:
		set = r.global
	}

	conns := make([]Conn, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// Len reports the number of live connections in the global set.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.global)
}
