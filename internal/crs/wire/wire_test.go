package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadTag(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTag(&buf, Join))

	tag, err := ReadTag(&buf)
	require.NoError(t, err)
	assert.Equal(t, Join, tag)
}

func TestNullTerminatedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNullTerminated(&buf, Create, "general"))

	r := bufio.NewReader(&buf)
	tag, err := ReadTag(r)
	require.NoError(t, err)
	assert.Equal(t, Create, tag)

	name, err := ReadNullTerminated(r)
	require.NoError(t, err)
	assert.Equal(t, "general", name)
}

func TestIsDeleteTag(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTag(&buf, Delete))
	assert.True(t, IsDeleteTag(buf.Bytes()))

	assert.False(t, IsDeleteTag([]byte{1, 0, 0, 0}))
	assert.False(t, IsDeleteTag([]byte{0, 0}))
}

func TestJoinTailRoundTrip(t *testing.T) {
	tail := EncodeJoinTail(1025, 3)
	port, members, err := DecodeJoinTail(tail)
	require.NoError(t, err)
	assert.Equal(t, 1025, port)
	assert.Equal(t, 3, members)
}

func TestDecodeJoinTailShort(t *testing.T) {
	_, _, err := DecodeJoinTail([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestEncodeListTail(t *testing.T) {
	assert.Equal(t, []byte("empty"), EncodeListTail(nil))
	assert.Equal(t, []byte("a,b,"), EncodeListTail([]string{"a", "b"}))
}

func TestResponseRoundTripJoin(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, StatusSuccess, EncodeJoinTail(2000, 5)))

	resp, err := ReadResponse(bufio.NewReader(&buf), Join)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, 2000, resp.Port)
	assert.Equal(t, 5, resp.MemberCount)
}

func TestResponseRoundTripList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, StatusSuccess, EncodeListTail([]string{"room1", "room2"})))

	resp, err := ReadResponse(bufio.NewReader(&buf), List)
	require.NoError(t, err)
	assert.Equal(t, "room1,room2,", resp.RoomList)
}

func TestResponseFailureNoTail(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, StatusFailureNotExists, nil))

	resp, err := ReadResponse(bufio.NewReader(&buf), Join)
	require.NoError(t, err)
	assert.Equal(t, StatusFailureNotExists, resp.Status)
}

func TestResponseFailureNoTailList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, StatusFailureUnknown, nil))

	resp, err := ReadResponse(bufio.NewReader(&buf), List)
	require.NoError(t, err)
	assert.Equal(t, StatusFailureUnknown, resp.Status)
	assert.Empty(t, resp.RoomList)
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "SUCCESS", StatusSuccess.String())
	assert.Equal(t, "FAILURE_ALREADY_EXISTS", StatusFailureAlreadyExists.String())
	assert.Equal(t, "FAILURE_UNKNOWN", Status(99).String())
}

func TestMessageTypeStrings(t *testing.T) {
	assert.Equal(t, "CREATE", Create.String())
	assert.Equal(t, "DELETE", Delete.String())
	assert.Equal(t, "JOIN", Join.String())
	assert.Equal(t, "LIST", List.String())
	assert.Equal(t, "RESPONSE", Response.String())
	assert.Equal(t, "INVALID", MessageType(99).String())
}
