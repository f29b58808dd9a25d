package codec

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/ChinmayNoob/lsmkv/record"
)

// JSONPhotoCodec is an alternate Codec[record.Photo] kept as a second,
// unused-by-default implementation demonstrating that the engine is not
// tied to the binary wire format: it length-prefixes a JSON document the
// same way PhotoCodec length-prefixes its fields, so decode stays
// self-delimiting without relying on serde_json's stream-EOF behavior.
type JSONPhotoCodec struct{}

func (JSONPhotoCodec) Encode(w io.Writer, v record.Photo) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "codec: marshal json")
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "codec: write json length")
	}
	_, err = w.Write(body)
	return errors.Wrap(err, "codec: write json body")
}

func (JSONPhotoCodec) Decode(r io.Reader) (record.Photo, error) {
	var p record.Photo
	var lenBuf [4]byte
	if err := readExact(r, lenBuf[:], true); err != nil {
		return p, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if err := readExact(r, body, false); err != nil {
		return p, err
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, ErrCorrupt
	}
	return p, nil
}

var _ Codec[record.Photo] = JSONPhotoCodec{}
