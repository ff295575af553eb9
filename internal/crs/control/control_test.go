package control

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barnden/roomline/internal/crs/wire"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Serve(ctx, l)

	return s, l.Addr().String()
}

func sendCommand(t *testing.T, addr string, tag wire.MessageType, arg string) wire.Response {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if arg != "" || tag == wire.Create || tag == wire.Delete || tag == wire.Join {
		require.NoError(t, wire.WriteNullTerminated(conn, tag, arg))
	} else {
		require.NoError(t, wire.WriteTag(conn, tag))
	}

	resp, err := wire.ReadResponse(bufio.NewReader(conn), tag)
	require.NoError(t, err)
	return resp
}

// TestRoomUniqueness is the room-uniqueness property: creating the same
// room name twice fails the second time.
func TestRoomUniqueness(t *testing.T) {
	_, addr := startServer(t)

	resp := sendCommand(t, addr, wire.Create, "general")
	assert.Equal(t, wire.StatusSuccess, resp.Status)

	resp = sendCommand(t, addr, wire.Create, "general")
	assert.Equal(t, wire.StatusFailureAlreadyExists, resp.Status)
}

func TestCreateDeleteJoinList(t *testing.T) {
	_, addr := startServer(t)

	resp := sendCommand(t, addr, wire.Create, "lobby")
	require.Equal(t, wire.StatusSuccess, resp.Status)

	resp = sendCommand(t, addr, wire.List, "")
	require.Equal(t, wire.StatusSuccess, resp.Status)
	assert.Contains(t, resp.RoomList, "lobby")

	resp = sendCommand(t, addr, wire.Join, "lobby")
	require.Equal(t, wire.StatusSuccess, resp.Status)
	assert.NotZero(t, resp.Port)

	resp = sendCommand(t, addr, wire.Delete, "lobby")
	require.Equal(t, wire.StatusSuccess, resp.Status)

	resp = sendCommand(t, addr, wire.Delete, "lobby")
	assert.Equal(t, wire.StatusFailureNotExists, resp.Status)
}

func TestJoinUnknownRoom(t *testing.T) {
	_, addr := startServer(t)
	resp := sendCommand(t, addr, wire.Join, "ghost")
	assert.Equal(t, wire.StatusFailureNotExists, resp.Status)
}

func TestListEmpty(t *testing.T) {
	_, addr := startServer(t)
	resp := sendCommand(t, addr, wire.List, "")
	assert.Equal(t, "empty", resp.RoomList)
}

// TestControlRateLimiting confirms a control connection over the
// configured per-IP rate is rejected with FAILURE_UNKNOWN instead of being
// dispatched, per SPEC_FULL.md §4.8.
func TestControlRateLimiting(t *testing.T) {
	t.Setenv("CRS_CONTROL_RATE_LIMIT", "1-M")
	_, addr := startServer(t)

	resp := sendCommand(t, addr, wire.List, "")
	require.Equal(t, wire.StatusSuccess, resp.Status)

	resp = sendCommand(t, addr, wire.List, "")
	assert.Equal(t, wire.StatusFailureUnknown, resp.Status)
}

func TestInvalidCommand(t *testing.T) {
	_, addr := startServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	require.NoError(t, wire.WriteTag(conn, wire.MessageType(99)))
	resp, err := wire.ReadResponse(bufio.NewReader(conn), wire.Invalid)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusFailureInvalid, resp.Status)
}
