// Package user defines a single SNS account: its follow graph, its bounded
// timeline history, and the live stream handle attached while its Timeline
// RPC is open.
package user

import (
	"container/list"
	"sort"
	"sync"

	"github.com/barnden/roomline/internal/sns/rpcwire"
)

// MaxRecentPosts bounds the per-user timeline history: the 20 most recent
// posts are kept, oldest dropped first.
const MaxRecentPosts = 20

// Post is one timeline entry as stored in a user's history.
type Post struct {
	Author    string
	Text      string
	Timestamp int64
}

// StreamState is where a user's Timeline RPC sits in its handshake state
// machine.
type StreamState int

const (
	// StreamDetached: no Timeline RPC is open.
	StreamDetached StreamState = iota
	// StreamPending: a stream is open but hasn't completed the 0xFEE1DEAD
	// handshake yet.
	StreamPending
	// StreamAttached: handshake complete, history has been replayed.
	StreamAttached
	// StreamLive: attached and now receiving live fan-out.
	StreamLive
)

// Stream is the live Timeline RPC handle attached to a user, guarded by its
// own lock so sends never block while a caller holds the user's data lock.
type Stream struct {
	mu    sync.Mutex
	state StreamState
	send  func(*rpcwire.PostMsg) error
}

// NewStream wraps a send function (the server-side stream's Send method)
// for a newly opened Timeline RPC.
func NewStream(send func(*rpcwire.PostMsg) error) *Stream {
	return &Stream{state: StreamPending, send: send}
}

// State returns the stream's current handshake state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Advance transitions the stream to state.
func (s *Stream) Advance(state StreamState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Send delivers one post over the live stream. Returns the underlying
// transport error, if any, so the caller can detach a dead stream.
func (s *Stream) Send(p *rpcwire.PostMsg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(p)
}

// User is one registered SNS account.
type User struct {
	Name string

	mu         sync.RWMutex
	followers  map[string]struct{}
	following  map[string]struct{}
	recent     *list.List // front = newest, back = oldest
	stream     *Stream
}

// New creates a user that follows itself, per spec §3: self-following on
// creation so a user's own posts always reach its own timeline.
func New(name string) *User {
	u := &User{
		Name:      name,
		followers: map[string]struct{}{name: {}},
		following: map[string]struct{}{name: {}},
		recent:    list.New(),
	}
	return u
}

// Lock order across the package: registry lock, then user locks in
// lexicographic name order, then (if needed) a stream's own lock. Callers
// must never reacquire a user lock while holding that user's stream lock.

// Followers returns a sorted copy of the follower-name set.
func (u *User) Followers() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return sortedKeys(u.followers)
}

// Following returns a sorted copy of the following-name set.
func (u *User) Following() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return sortedKeys(u.following)
}

// IsFollowing reports whether u already follows other.
func (u *User) IsFollowing(other string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.following[other]
	return ok
}

// AddFollower records that follower now follows u. It takes u's lock
// itself, so callers must not hold it; see registry.Follow.
func (u *User) AddFollower(follower string) {
	u.mu.Lock()
	u.followers[follower] = struct{}{}
	u.mu.Unlock()
}

// RemoveFollower undoes AddFollower.
func (u *User) RemoveFollower(follower string) {
	u.mu.Lock()
	delete(u.followers, follower)
	u.mu.Unlock()
}

// AddFollowing records that u now follows followee.
func (u *User) AddFollowing(followee string) {
	u.mu.Lock()
	u.following[followee] = struct{}{}
	u.mu.Unlock()
}

// RemoveFollowing undoes AddFollowing.
func (u *User) RemoveFollowing(followee string) {
	u.mu.Lock()
	delete(u.following, followee)
	u.mu.Unlock()
}

// PushPost inserts a new post at the front of u's recent-posts deque,
// evicting the oldest entry once the deque exceeds MaxRecentPosts.
func (u *User) PushPost(p Post) {
	u.mu.Lock()
	u.recent.PushFront(p)
	if u.recent.Len() > MaxRecentPosts {
		u.recent.Remove(u.recent.Back())
	}
	u.mu.Unlock()
}

// RecentPosts returns the current history, most-recent-first, for replay
// on stream attach.
func (u *User) RecentPosts() []Post {
	u.mu.RLock()
	defer u.mu.RUnlock()
	posts := make([]Post, 0, u.recent.Len())
	for e := u.recent.Front(); e != nil; e = e.Next() {
		posts = append(posts, e.Value.(Post))
	}
	return posts
}

// AttachStream installs s as u's live Timeline handle, replacing any
// previous one (a second Login+Timeline from the same user takes over).
func (u *User) AttachStream(s *Stream) {
	u.mu.Lock()
	u.stream = s
	u.mu.Unlock()
}

// DetachStream clears u's stream handle if it is still s (a stream that
// has already been replaced by a newer one should not clear it).
func (u *User) DetachStream(s *Stream) {
	u.mu.Lock()
	if u.stream == s {
		u.stream = nil
	}
	u.mu.Unlock()
}

// Stream returns u's current live stream handle, or nil if detached.
func (u *User) Stream() *Stream {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.stream
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
