package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomNameValid(t *testing.T) {
	assert.True(t, RoomName("general"))
	assert.True(t, RoomName("room-42"))
}

func TestRoomNameInvalid(t *testing.T) {
	assert.False(t, RoomName(""))
	assert.False(t, RoomName("has space"))
	assert.False(t, RoomName("has,comma"))
	assert.False(t, RoomName(strings.Repeat("x", 65)))
}

func TestUsernameValid(t *testing.T) {
	assert.True(t, Username("alice"))
}

func TestUsernameInvalid(t *testing.T) {
	assert.False(t, Username(""))
	assert.False(t, Username("bad name"))
}
