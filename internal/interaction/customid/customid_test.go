package customid

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := &State{
		Type:      "autoroles",
		CustomID:  "next",
		Page:      3,
		AuthorID:  "123456789012345678",
		MessageID: "987654321098765432",
	}

	raw, err := Encode(in)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(raw), MaxLength)

	out, ok, err := Decode(raw)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Version, out.Version)
	assert.Equal(t, "autoroles", out.Type)
	assert.Equal(t, "next", out.CustomID)
	assert.Equal(t, 3, out.Page)
	assert.Equal(t, in.AuthorID, out.AuthorID)
	assert.Equal(t, in.MessageID, out.MessageID)
}

func TestEncodeOptionalFieldsOmitted(t *testing.T) {
	raw, err := Encode(&State{Type: "tags", CustomID: "prev"})
	require.NoError(t, err)
	assert.NotContains(t, raw, "aid")
	assert.NotContains(t, raw, "mid")
	assert.NotContains(t, raw, "kw")
}

func TestEncodeRejectsOversizedState(t *testing.T) {
	_, err := Encode(&State{
		Type:     "tags",
		CustomID: "next",
		Kwargs:   map[string]string{"q": strings.Repeat("x", MaxLength)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestDecodeIgnoresPlainCustomIDs(t *testing.T) {
	for _, id := range []string{"", "music:skip1", "ask:abc123:2", "modal:xyz"} {
		state, ok, err := Decode(id)
		assert.NoError(t, err)
		assert.False(t, ok, "plain id %q must not decode", id)
		assert.Nil(t, state)
	}
}

func TestDecodeIgnoresMalformedJSON(t *testing.T) {
	_, ok, err := Decode("{not json")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeUnknownVersionIsError(t *testing.T) {
	raw := fmt.Sprintf(`{"v":%d,"t":"tags","cid":"next","p":0}`, Version+1)
	_, ok, err := Decode(raw)
	assert.True(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestMustEncodePanicsOnOversize(t *testing.T) {
	assert.Panics(t, func() {
		MustEncode(&State{
			Type:     "tags",
			CustomID: "next",
			Kwargs:   map[string]string{"q": strings.Repeat("x", MaxLength)},
		})
	})
}
