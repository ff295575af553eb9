package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barnden/roomline/internal/sns/rpcwire"
)

func TestNewUserSelfFollows(t *testing.T) {
	u := New("alice")
	assert.Contains(t, u.Followers(), "alice")
	assert.Contains(t, u.Following(), "alice")
	assert.True(t, u.IsFollowing("alice"))
}

// TestBoundedRecentPosts is the bounded-timeline property: pushing more
// than MaxRecentPosts posts evicts the oldest, keeping only the most
// recent MaxRecentPosts, newest-first.
func TestBoundedRecentPosts(t *testing.T) {
	u := New("alice")
	for i := 0; i < MaxRecentPosts+5; i++ {
		u.PushPost(Post{Author: "alice", Text: string(rune('a' + i)), Timestamp: int64(i)})
	}

	posts := u.RecentPosts()
	assert.Len(t, posts, MaxRecentPosts)
	// newest-first: the very last pushed post is at index 0.
	assert.Equal(t, int64(MaxRecentPosts+4), posts[0].Timestamp)
	assert.Equal(t, int64(5), posts[len(posts)-1].Timestamp)
}

func TestFollowUnfollow(t *testing.T) {
	u := New("alice")
	u.AddFollowing("bob")
	assert.True(t, u.IsFollowing("bob"))

	u.RemoveFollowing("bob")
	assert.False(t, u.IsFollowing("bob"))
}

func TestStreamLifecycle(t *testing.T) {
	u := New("alice")
	assert.Nil(t, u.Stream())

	var sent []*rpcwire.PostMsg
	s := NewStream(func(p *rpcwire.PostMsg) error {
		sent = append(sent, p)
		return nil
	})

	assert.Equal(t, StreamPending, s.State())
	s.Advance(StreamAttached)
	assert.Equal(t, StreamAttached, s.State())

	u.AttachStream(s)
	assert.Equal(t, s, u.Stream())

	require.NoError(t, s.Send(&rpcwire.PostMsg{Msg: "hi"}))
	assert.Len(t, sent, 1)

	u.DetachStream(s)
	assert.Nil(t, u.Stream())
}
