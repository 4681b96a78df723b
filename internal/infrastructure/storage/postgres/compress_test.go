package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadCodec_SmallStaysInline(t *testing.T) {
	codec, err := NewPayloadCodec(0)
	require.NoError(t, err)

	p, err := codec.Pack(map[string]int{"total": 3})
	require.NoError(t, err)

	assert.Equal(t, CompressionNone, p.Algo)
	assert.JSONEq(t, `{"total":3}`, string(p.Raw))
	assert.Empty(t, p.Compressed)
}

func TestPayloadCodec_LargeIsCompressed(t *testing.T) {
	codec, err := NewPayloadCodec(64)
	require.NoError(t, err)

	in := []string{strings.Repeat("posting_date not a YYYY-MM-DD date ", 20)}
	p, err := codec.Pack(in)
	require.NoError(t, err)

	assert.Equal(t, CompressionZstd, p.Algo)
	assert.Nil(t, p.Raw)
	assert.NotEmpty(t, p.Compressed)

	var out []string
	require.NoError(t, codec.Unpack(p, &out))
	assert.Equal(t, in, out)
}
