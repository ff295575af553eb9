package room

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barnden/roomline/internal/crs/wire"
)

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	r := New("test-room", addr.Port, l)
	t.Cleanup(r.Delete)
	return r
}

func dialRoom(t *testing.T, r *Room) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", r.listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForMembers(t *testing.T, r *Room, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.MemberCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d members, have %d", n, r.MemberCount())
}

// TestFanOutExcludesSender is the fan-out-correctness property: a
// message from one member reaches every other member, but not the sender.
func TestFanOutExcludesSender(t *testing.T) {
	r := newTestRoom(t)

	a := dialRoom(t, r)
	b := dialRoom(t, r)
	c := dialRoom(t, r)
	waitForMembers(t, r, 3)

	_, err := a.Write([]byte("hello\x00"))
	require.NoError(t, err)

	for _, conn := range []net.Conn{b, c} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 16)
		n, err := conn.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "hello\x00", string(buf[:n]))
	}

	a.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 16)
	_, err = a.Read(buf)
	assert.Error(t, err, "sender should not receive its own message")
}

func TestMemberCountTracksJoinLeave(t *testing.T) {
	r := newTestRoom(t)

	conn := dialRoom(t, r)
	waitForMembers(t, r, 1)

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && r.MemberCount() != 0 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, r.MemberCount())
}

// TestDeleteSendsTeardownToAllMembers is the teardown-notification
// property at the Room level.
func TestDeleteSendsTeardownToAllMembers(t *testing.T) {
	r := newTestRoom(t)

	a := dialRoom(t, r)
	b := dialRoom(t, r)
	waitForMembers(t, r, 2)

	r.Delete()

	for _, conn := range []net.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		tag, err := wire.ReadTag(bufio.NewReader(conn))
		require.NoError(t, err)
		assert.Equal(t, wire.Delete, tag)
	}
}
