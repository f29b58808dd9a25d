// Package codec provides the two-way byte translation the storage engine
// uses for WAL operations and SSTable payloads. The interface stays
// polymorphic over the payload type so a caller may plug in an alternate
// wire format; one compact binary implementation ships by default.
package codec

import (
	"io"

	"github.com/pkg/errors"
)

// ErrUnexpectedEOF signals a clean end of stream: no bytes were available
// at the start of a Decode call. Callers that scan a stream record-by-
// record (WAL replay, SSTable payload scans) treat this as "no more
// records" and terminate without error.
var ErrUnexpectedEOF = errors.New("codec: unexpected eof at record boundary")

// ErrCorrupt signals a truncated or malformed record: some bytes of the
// record were read before the stream ended or a field failed to validate.
// Unlike ErrUnexpectedEOF this is always fatal — a partial write must
// never be silently dropped.
var ErrCorrupt = errors.New("codec: corrupt record")

// Codec encodes and decodes values of type T to/from a byte stream.
// Decode must consume exactly the bytes of one encoded value, leaving the
// reader positioned at the start of the next one.
type Codec[T any] interface {
	Encode(w io.Writer, v T) error
	Decode(r io.Reader) (T, error)
}

// readExact reads exactly len(buf) bytes, translating a clean end of
// stream into ErrUnexpectedEOF only when first is true (nothing has been
// consumed yet for the value being decoded); any other short read is
// ErrCorrupt.
func readExact(r io.Reader, buf []byte, first bool) error {
	n, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if err == io.EOF {
		if first && n == 0 {
			return ErrUnexpectedEOF
		}
		return ErrCorrupt
	}
	if err == io.ErrUnexpectedEOF {
		return ErrCorrupt
	}
	return errors.Wrap(err, "codec: read")
}
