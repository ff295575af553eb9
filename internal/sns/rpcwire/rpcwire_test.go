package rpcwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	c := Codec{}

	req := &Request{Username: "alice", Arguments: []string{"bob"}}
	data, err := c.Marshal(req)
	require.NoError(t, err)

	out := new(Request)
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, req.Username, out.Username)
	assert.Equal(t, req.Arguments, out.Arguments)
}

func TestCodecName(t *testing.T) {
	assert.Equal(t, "gob", Codec{}.Name())
}

func TestCodecRoundTripPostMsg(t *testing.T) {
	c := Codec{}
	p := &PostMsg{Username: "alice", Msg: "hello world", Timestamp: 42}

	data, err := c.Marshal(p)
	require.NoError(t, err)

	out := new(PostMsg)
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, *p, *out)
}
