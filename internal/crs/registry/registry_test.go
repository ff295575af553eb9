package registry

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barnden/roomline/internal/crs/wire"
)

func TestCreateAssignsDistinctPorts(t *testing.T) {
	reg := New()

	r1, err := reg.Create("room-a")
	require.NoError(t, err)
	r2, err := reg.Create("room-b")
	require.NoError(t, err)

	assert.NotEqual(t, r1.Port, r2.Port)

	require.NoError(t, reg.Delete("room-a"))
	require.NoError(t, reg.Delete("room-b"))
}

func TestCreateDuplicateFails(t *testing.T) {
	reg := New()
	_, err := reg.Create("dup")
	require.NoError(t, err)
	defer reg.Delete("dup")

	_, err = reg.Create("dup")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestDeleteUnknownFails(t *testing.T) {
	reg := New()
	err := reg.Delete("nope")
	assert.ErrorIs(t, err, ErrNotExists)
}

func TestJoinUnknownFails(t *testing.T) {
	reg := New()
	_, _, err := reg.Join("nope")
	assert.ErrorIs(t, err, ErrNotExists)
}

func TestListSorted(t *testing.T) {
	reg := New()
	_, err := reg.Create("zeta")
	require.NoError(t, err)
	defer reg.Delete("zeta")
	_, err = reg.Create("alpha")
	require.NoError(t, err)
	defer reg.Delete("alpha")

	assert.Equal(t, []string{"alpha", "zeta"}, reg.List())
}

// TestDeleteNotifiesMembers is the teardown-notification property: every
// member connected to a room gets a DELETE frame when it's torn down.
func TestDeleteNotifiesMembers(t *testing.T) {
	reg := New()
	r, err := reg.Create("teardown-room")
	require.NoError(t, err)

	conn, err := net.Dial("tcp", fmt.Sprintf(":%d", r.Port))
	require.NoError(t, err)
	defer conn.Close()

	// give the accept loop a moment to register the member
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, reg.Delete("teardown-room"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	tag, err := wire.ReadTag(bufio.NewReader(conn))
	require.NoError(t, err)
	assert.Equal(t, wire.Delete, tag)
}
