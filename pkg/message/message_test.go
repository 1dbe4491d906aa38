package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"broadcast","msg_id":3,"message":7}}`))
	require.NoError(t, err)

	assert.Equal(t, "c1", env.Src)
	assert.Equal(t, "n1", env.Dest)
	assert.Equal(t, TypeBroadcast, env.Type())

	id, ok := env.MsgID()
	assert.True(t, ok)
	assert.Equal(t, uint64(3), id)

	_, ok = env.InReplyTo()
	assert.False(t, ok)

	var b Broadcast
	require.NoError(t, env.Unmarshal(&b))
	assert.Equal(t, int64(7), b.Message)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{name: "not json", line: `hello`},
		{name: "truncated", line: `{"src":"c1","dest":"n1","body":{"type":"re`},
		{name: "no body", line: `{"src":"c1","dest":"n1"}`, want: ErrMissingBody},
		{name: "null body", line: `{"src":"c1","dest":"n1","body":null}`, want: ErrMissingType},
		{name: "no type", line: `{"src":"c1","dest":"n1","body":{"msg_id":1}}`, want: ErrMissingType},
		{name: "body not object", line: `{"src":"c1","dest":"n1","body":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.line))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestNewFlattensHeader(t *testing.T) {
	env, err := New("n1", "c1", Header{MsgID: ID(4), InReplyTo: ID(9)}, ReadOk{Messages: []int64{5, 7}})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(env.Body, &body))
	assert.Equal(t, "read_ok", body["type"])
	assert.Equal(t, float64(4), body["msg_id"])
	assert.Equal(t, float64(9), body["in_reply_to"])
	assert.Equal(t, []any{float64(5), float64(7)}, body["messages"])
}

func TestNewOmitsAbsentIDs(t *testing.T) {
	env := MustNew("n1", "n2", Header{}, BroadcastOk{})

	line, err := env.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"src":"n1","dest":"n2","body":{"type":"broadcast_ok"}}`, string(line))
}

func TestEncodeDecodeKeepsTopology(t *testing.T) {
	topo := Topology{Topology: map[string][]string{
		"n1": {"n2", "n3"},
		"n2": {"n1"},
		"n3": {"n1"},
	}}
	line, err := MustNew("c1", "n1", Header{MsgID: ID(0)}, topo).Encode()
	require.NoError(t, err)

	env, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, TypeTopology, env.Type())

	var got Topology
	require.NoError(t, env.Unmarshal(&got))
	assert.Equal(t, topo, got)
}

func TestIdentityOthers(t *testing.T) {
	id := Init{NodeID: "n2", NodeIDs: []string{"n1", "n2", "n3"}}.Identity()

	assert.Equal(t, "n2", id.NodeID)
	assert.Equal(t, []string{"n1", "n3"}, id.Others())
	assert.Equal(t, []string{"n1", "n2", "n3"}, id.PeerIDs)
}

func TestUnmarshalWrongFieldType(t *testing.T) {
	env, err := Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"broadcast","message":"seven"}}`))
	require.NoError(t, err)

	var b Broadcast
	err = env.Unmarshal(&b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}
