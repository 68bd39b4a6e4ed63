package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pointsPayload struct {
	Points int `json:"points" cbor:"points"`
}

func TestDecode_JSON(t *testing.T) {
	var p pointsPayload
	require.NoError(t, Decode("application/json; charset=utf-8", []byte(`{"points": 12}`), &p))
	assert.Equal(t, 12, p.Points)
}

func TestDecode_EmptyAndNull(t *testing.T) {
	for _, body := range []string{"", "  ", "null"} {
		p := pointsPayload{Points: 7}
		require.NoError(t, Decode(ContentJSON, []byte(body), &p), "body %q", body)
		assert.Equal(t, 7, p.Points, "body %q", body)
	}
}

func TestDecode_CBOR(t *testing.T) {
	data, err := Encode(ContentCBOR, pointsPayload{Points: 40})
	require.NoError(t, err)

	var p pointsPayload
	require.NoError(t, Decode(ContentCBOR, data, &p))
	assert.Equal(t, 40, p.Points)
}

func TestDecode_Malformed(t *testing.T) {
	var p pointsPayload
	assert.Error(t, Decode(ContentJSON, []byte(`{"points":`), &p))
	assert.ErrorIs(t, Decode("text/plain", []byte("x"), &p), ErrUnsupportedContentType)
}

func TestEncode_DefaultsToJSON(t *testing.T) {
	data, err := Encode("", map[string]string{"addr": "", "path": ""})
	require.NoError(t, err)
	assert.JSONEq(t, `{"addr":"","path":""}`, string(data))
}

func TestMessage_ContentType(t *testing.T) {
	assert.Equal(t, ContentJSON, Message{}.ContentType())
	assert.Equal(t, ContentCBOR, Message{Binary: true}.ContentType())
}
