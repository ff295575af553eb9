// Package registry implements the CRS control server's room table: room
// creation with dynamic port allocation, deletion, join lookup and listing.
package registry

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"syscall"

	"github.com/barnden/roomline/internal/crs/room"
	"github.com/barnden/roomline/internal/metrics"
)

// ErrAlreadyExists is returned by Create when the room name is taken.
var ErrAlreadyExists = errors.New("registry: room already exists")

// ErrNotExists is returned by Delete/Join when the room name is unknown.
var ErrNotExists = errors.New("registry: room does not exist")

// startPort is the first port probed for a new room's listener, matching
// the original server's scan-from-1024 behavior.
const startPort = 1024

// maxPort bounds the scan so a pathologically full port range fails loudly
// instead of looping forever.
const maxPort = 65534

// Registry is the central, coarse-locked table of active rooms. The lock is
// held only for map/listener bookkeeping; it is always released before any
// blocking I/O (room teardown, accept loops) runs.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room.Room
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{rooms: make(map[string]*room.Room)}
}

// Create allocates a listener on the first free port at or above startPort
// and starts a new Room on it. Returns ErrAlreadyExists if name is taken.
func (reg *Registry) Create(name string) (*room.Room, error) {
	reg.mu.Lock()
	if _, ok := reg.rooms[name]; ok {
		reg.mu.Unlock()
		return nil, ErrAlreadyExists
	}
	reg.mu.Unlock()

	listener, port, err := listenFreePort()
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	r := room.New(name, port, listener)

	reg.mu.Lock()
	if _, ok := reg.rooms[name]; ok {
		reg.mu.Unlock()
		r.Delete()
		return nil, ErrAlreadyExists
	}
	reg.rooms[name] = r
	count := len(reg.rooms)
	reg.mu.Unlock()

	metrics.ActiveRooms.Set(float64(count))
	return r, nil
}

// listenFreePort scans upward from startPort, skipping ports already in
// use (EADDRINUSE), until it finds one it can bind.
func listenFreePort() (net.Listener, int, error) {
	for port := startPort; port <= maxPort; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return l, port, nil
		}
		if !isAddrInUse(err) {
			return nil, 0, err
		}
	}
	return nil, 0, fmt.Errorf("no free port found in [%d, %d]", startPort, maxPort)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// Delete tears down and removes the named room. Returns ErrNotExists if it
// is unknown. The registry lock is released before Room.Delete runs so
// teardown (which notifies members) never blocks other control commands.
func (reg *Registry) Delete(name string) error {
	reg.mu.Lock()
	r, ok := reg.rooms[name]
	if !ok {
		reg.mu.Unlock()
		return ErrNotExists
	}
	delete(reg.rooms, name)
	count := len(reg.rooms)
	reg.mu.Unlock()

	metrics.ActiveRooms.Set(float64(count))
	r.Delete()
	return nil
}

// Join looks up a room by name for a JOIN command's response (port,
// current member count). Returns ErrNotExists if unknown.
func (reg *Registry) Join(name string) (port, memberCount int, err error) {
	reg.mu.Lock()
	r, ok := reg.rooms[name]
	reg.mu.Unlock()
	if !ok {
		return 0, 0, ErrNotExists
	}
	return r.Port, r.MemberCount(), nil
}

// List returns all current room names in sorted order.
func (reg *Registry) List() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	names := make([]string, 0, len(reg.rooms))
	for name := range reg.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
