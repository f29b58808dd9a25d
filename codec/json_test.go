package codec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChinmayNoob/lsmkv/codec"
	"github.com/ChinmayNoob/lsmkv/record"
)

func TestJSONPhotoCodecRoundTrip(t *testing.T) {
	p := record.Photo{ID: "abc", URL: "https://x/y", ThumbnailURL: "t"}
	var buf bytes.Buffer
	require.NoError(t, codec.JSONPhotoCodec{}.Encode(&buf, p))

	got, err := codec.JSONPhotoCodec{}.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestJSONPhotoCodecCleanEOF(t *testing.T) {
	_, err := codec.JSONPhotoCodec{}.Decode(bytes.NewReader(nil))
	assert.ErrorIs(t, err, codec.ErrUnexpectedEOF)
}
