package codec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChinmayNoob/lsmkv/codec"
	"github.com/ChinmayNoob/lsmkv/record"
)

func TestPhotoCodecRoundTrip(t *testing.T) {
	p := record.Photo{ID: "abc", URL: "https://x/y", ThumbnailURL: ""}
	var buf bytes.Buffer
	require.NoError(t, codec.PhotoCodec{}.Encode(&buf, p))

	got, err := codec.PhotoCodec{}.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestPhotoCodecCleanEOF(t *testing.T) {
	_, err := codec.PhotoCodec{}.Decode(bytes.NewReader(nil))
	assert.ErrorIs(t, err, codec.ErrUnexpectedEOF)
}

func TestPhotoCodecTruncatedMidRecordIsCorrupt(t *testing.T) {
	p := record.Photo{ID: "abc", URL: "https://x/y", ThumbnailURL: "z"}
	var buf bytes.Buffer
	require.NoError(t, codec.PhotoCodec{}.Encode(&buf, p))

	truncated := buf.Bytes()[:buf.Len()-1]
	_, err := codec.PhotoCodec{}.Decode(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, codec.ErrCorrupt)
}

func TestOptionCodecRoundTrip(t *testing.T) {
	oc := codec.OptionCodec[record.Photo]{Inner: codec.PhotoCodec{}}

	var buf bytes.Buffer
	require.NoError(t, oc.Encode(&buf, record.Some(record.Photo{ID: "a"})))
	got, err := oc.Decode(&buf)
	require.NoError(t, err)
	assert.True(t, got.Present)
	assert.Equal(t, "a", got.Value.ID)

	buf.Reset()
	require.NoError(t, oc.Encode(&buf, record.None[record.Photo]()))
	got, err = oc.Decode(&buf)
	require.NoError(t, err)
	assert.False(t, got.Present)
}

func TestOperationCodecRoundTrip(t *testing.T) {
	oc := codec.OperationCodec[record.Photo]{Inner: codec.PhotoCodec{}}

	var buf bytes.Buffer
	insert := record.Insert(record.Photo{ID: "a", URL: "u"})
	require.NoError(t, oc.Encode(&buf, insert))
	got, err := oc.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, insert, got)

	buf.Reset()
	del := record.Delete[record.Photo]("a")
	require.NoError(t, oc.Encode(&buf, del))
	got, err = oc.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, del, got)
}

func TestOperationCodecUnknownKindIsCorrupt(t *testing.T) {
	oc := codec.OperationCodec[record.Photo]{Inner: codec.PhotoCodec{}}
	_, err := oc.Decode(bytes.NewReader([]byte{99}))
	assert.ErrorIs(t, err, codec.ErrCorrupt)
}

func TestMultipleOperationsSequentialDecode(t *testing.T) {
	oc := codec.OperationCodec[record.Photo]{Inner: codec.PhotoCodec{}}
	var buf bytes.Buffer
	require.NoError(t, oc.Encode(&buf, record.Insert(record.Photo{ID: "a"})))
	require.NoError(t, oc.Encode(&buf, record.Delete[record.Photo]("a")))

	first, err := oc.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, record.OpInsert, first.Kind)

	second, err := oc.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, record.OpDelete, second.Kind)

	_, err = oc.Decode(&buf)
	assert.ErrorIs(t, err, codec.ErrUnexpectedEOF)
}
