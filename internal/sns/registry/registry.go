// Package registry is the SNS user table: account creation/lookup and the
// Follow/UnFollow structural operations. The registry lock guards the user
// table; Follow/UnFollow update the two users one after the other, each
// under that user's own lock, and never hold two user locks at once, so the
// pair of updates is not atomic as a whole.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/barnden/roomline/internal/sns/persistence"
	"github.com/barnden/roomline/internal/sns/user"
)

// Registry owns the username -> *User table and the on-disk store backing
// it.
type Registry struct {
	store *persistence.Store

	mu    sync.RWMutex
	users map[string]*user.User
}

// New returns a Registry backed by store, with no users loaded yet; call
// Recover to populate it from disk at startup.
func New(store *persistence.Store) *Registry {
	return &Registry{store: store, users: make(map[string]*user.User)}
}

// Recover loads every username recorded in the store's index and
// reconstructs its User, replaying its persisted posts in original order.
func (reg *Registry) Recover() error {
	names, err := reg.store.IndexNames()
	if err != nil {
		return fmt.Errorf("registry: recover index: %w", err)
	}

	for _, name := range names {
		snap, err := reg.store.Load(name)
		if err != nil {
			return fmt.Errorf("registry: recover %s: %w", name, err)
		}
		u := user.New(name)
		for _, f := range snap.Followers {
			if f != name {
				u.AddFollower(f)
			}
		}
		for _, f := range snap.Following {
			if f != name {
				u.AddFollowing(f)
			}
		}
		for _, p := range snap.Posts {
			u.PushPost(p)
		}
		reg.mu.Lock()
		reg.users[name] = u
		reg.mu.Unlock()
	}
	return nil
}

// GetOrCreate returns name's User, creating and persisting it if this is
// the first time it has been seen. The second return reports whether the
// account was newly created; service.Login rejects a repeat login with
// "duplicate" when it is false.
func (reg *Registry) GetOrCreate(name string) (u *user.User, created bool, err error) {
	reg.mu.RLock()
	if existing, ok := reg.users[name]; ok {
		reg.mu.RUnlock()
		return existing, false, nil
	}
	reg.mu.RUnlock()

	reg.mu.Lock()
	if existing, ok := reg.users[name]; ok {
		reg.mu.Unlock()
		return existing, false, nil
	}
	u = user.New(name)
	reg.users[name] = u
	reg.mu.Unlock()

	if err := reg.store.IndexAppend(name); err != nil {
		return u, true, err
	}
	if err := reg.store.Save(u); err != nil {
		return u, true, err
	}
	return u, true, nil
}

// Get returns name's User, or ok=false if no such account exists.
func (reg *Registry) Get(name string) (u *user.User, ok bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	u, ok = reg.users[name]
	return u, ok
}

// Names returns every registered username, sorted.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.users))
	for name := range reg.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Follow makes follower start following followee. Each User locks its own
// fields internally for the duration of a single AddFollowing/AddFollower
// call, so Follow never needs to hold two users' locks at once — there is
// no ordering to get wrong.
func (reg *Registry) Follow(follower, followee string) error {
	f, ok := reg.Get(follower)
	if !ok {
		return fmt.Errorf("registry: unknown user %q", follower)
	}
	t, ok := reg.Get(followee)
	if !ok {
		return fmt.Errorf("registry: unknown user %q", followee)
	}
	if follower == followee {
		return nil // already self-following since creation
	}

	f.AddFollowing(followee)
	t.AddFollower(follower)

	if err := reg.store.Save(f); err != nil {
		return err
	}
	return reg.store.Save(t)
}

// UnFollow makes follower stop following followee. A user may never
// unfollow itself (self-follow is permanent, per spec §3).
func (reg *Registry) UnFollow(follower, followee string) error {
	f, ok := reg.Get(follower)
	if !ok {
		return fmt.Errorf("registry: unknown user %q", follower)
	}
	t, ok := reg.Get(followee)
	if !ok {
		return fmt.Errorf("registry: unknown user %q", followee)
	}
	if follower == followee {
		return nil
	}

	f.RemoveFollowing(followee)
	t.RemoveFollower(follower)

	if err := reg.store.Save(f); err != nil {
		return err
	}
	return reg.store.Save(t)
}
