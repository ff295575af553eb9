// Package room implements a single chat room: its own TCP listener, its
// member set, and the fan-out dispatcher that copies one member's bytes to
// every other member.
package room

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/barnden/roomline/internal/crs/wire"
	"github.com/barnden/roomline/internal/logging"
	"github.com/barnden/roomline/internal/metrics"
)

// outboxSize bounds the per-member outbound buffer. A slow member is
// disconnected rather than allowed to stall fan-out to everyone else,
// mirroring the teacher's client.go writePump non-blocking send.
const outboxSize = 64

// member is one connected chat participant.
type member struct {
	conn   net.Conn
	outbox chan []byte
	done   chan struct{}
}

// Room owns a listener and fans out chat bytes among its members until
// Delete is called.
type Room struct {
	Name     string
	Port     int
	listener net.Listener

	mu      sync.Mutex
	members map[*member]struct{}

	register   chan *member
	unregister chan *member
	broadcast  chan broadcastMsg
	teardown   chan struct{}
	closed     chan struct{}
	deleteOnce sync.Once
}

type broadcastMsg struct {
	from *member
	data []byte
}

// New creates a Room bound to listener and starts its dispatcher goroutine
// and accept loop. The caller (registry) has already performed port
// allocation; Room just owns the resulting listener from here on.
func New(name string, port int, listener net.Listener) *Room {
	r := &Room{
		Name:       name,
		Port:       port,
		listener:   listener,
		members:    make(map[*member]struct{}),
		register:   make(chan *member),
		unregister: make(chan *member),
		broadcast:  make(chan broadcastMsg, outboxSize),
		teardown:   make(chan struct{}),
		closed:     make(chan struct{}),
	}
	go r.acceptLoop()
	go r.dispatchLoop()
	return r
}

// MemberCount returns the current number of connected members.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) acceptLoop() {
	ctx := logging.WithRoom(context.Background(), r.Name)
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			select {
			case <-r.teardown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Warn(ctx, "room accept failed", zap.String("room", r.Name), zap.Error(err))
			continue
		}
		m := &member{conn: conn, outbox: make(chan []byte, outboxSize), done: make(chan struct{})}
		select {
		case r.register <- m:
			go r.readPump(m)
			go r.writePump(m)
		case <-r.teardown:
			conn.Close()
			return
		}
	}
}

// readPump copies one member's inbound bytes into the room broadcast
// channel until the connection errors or the room tears down.
func (r *Room) readPump(m *member) {
	defer func() {
		select {
		case r.unregister <- m:
		case <-r.teardown:
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := m.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case r.broadcast <- broadcastMsg{from: m, data: data}:
			case <-r.teardown:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// writePump drains a member's outbox to its socket. A member that can't
// keep up has its connection closed rather than backing up fan-out for
// everyone else.
func (r *Room) writePump(m *member) {
	for {
		select {
		case data, ok := <-m.outbox:
			if !ok {
				return
			}
			if _, err := m.conn.Write(data); err != nil {
				return
			}
		case <-m.done:
			return
		}
	}
}

func (r *Room) dispatchLoop() {
	ctx := logging.WithRoom(context.Background(), r.Name)
	for {
		select {
		case m := <-r.register:
			r.mu.Lock()
			r.members[m] = struct{}{}
			count := len(r.members)
			r.mu.Unlock()
			metrics.RoomMembers.WithLabelValues(r.Name).Set(float64(count))
			logging.Info(ctx, "member joined", zap.Int("members", count))

		case m := <-r.unregister:
			r.mu.Lock()
			if _, ok := r.members[m]; ok {
				delete(r.members, m)
				close(m.done)
				m.conn.Close()
			}
			count := len(r.members)
			r.mu.Unlock()
			metrics.RoomMembers.WithLabelValues(r.Name).Set(float64(count))
			logging.Info(ctx, "member left", zap.Int("members", count))

		case bm := <-r.broadcast:
			r.mu.Lock()
			for m := range r.members {
				if m == bm.from {
					continue
				}
				select {
				case m.outbox <- bm.data:
				default:
					// member too slow to keep up; drop it rather than
					// stall fan-out for the rest of the room.
					delete(r.members, m)
					close(m.done)
					m.conn.Close()
				}
			}
			r.mu.Unlock()
			metrics.RoomMessagesTotal.WithLabelValues(r.Name).Inc()

		case <-r.teardown:
			r.mu.Lock()
			for m := range r.members {
				_ = wire.WriteTag(m.conn, wire.Delete)
				close(m.done)
				m.conn.Close()
			}
			r.members = make(map[*member]struct{})
			r.mu.Unlock()
			r.listener.Close()
			metrics.RoomMembers.DeleteLabelValues(r.Name)
			close(r.closed)
			return
		}
	}
}

// Delete tears the room down: every member is sent a DELETE frame and its
// connection closed, then the listener is released. Delete blocks until
// teardown has fully completed. Safe to call more than once.
func (r *Room) Delete() {
	r.deleteOnce.Do(func() { close(r.teardown) })
	<-r.closed
}
