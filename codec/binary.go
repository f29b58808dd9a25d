package codec

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/ChinmayNoob/lsmkv/record"
)

// writeString writes a length-prefixed UTF-8 string: a uint32 little-
// endian byte count followed by the raw bytes.
func writeString(w io.Writer, s string) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "codec: write string length")
	}
	if len(s) == 0 {
		return nil
	}
	if _, err := w.Write([]byte(s)); err != nil {
		return errors.Wrap(err, "codec: write string body")
	}
	return nil
}

// readString is the inverse of writeString. first indicates whether this
// is the very first read of the enclosing Decode call, which governs
// whether a clean end of stream surfaces as ErrUnexpectedEOF or ErrCorrupt.
func readString(r io.Reader, first bool) (string, error) {
	var lenBuf [4]byte
	if err := readExact(r, lenBuf[:], first); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := readExact(r, buf, false); err != nil {
		return "", err
	}
	return string(buf), nil
}

// PhotoCodec is the compact binary encoding for record.Photo: three
// length-prefixed strings, in field order.
type PhotoCodec struct{}

func (PhotoCodec) Encode(w io.Writer, v record.Photo) error {
	if err := writeString(w, v.ID); err != nil {
		return err
	}
	if err := writeString(w, v.URL); err != nil {
		return err
	}
	return writeString(w, v.ThumbnailURL)
}

func (PhotoCodec) Decode(r io.Reader) (record.Photo, error) {
	var p record.Photo
	id, err := readString(r, true)
	if err != nil {
		return p, err
	}
	url, err := readString(r, false)
	if err != nil {
		return p, err
	}
	thumb, err := readString(r, false)
	if err != nil {
		return p, err
	}
	p.ID, p.URL, p.ThumbnailURL = id, url, thumb
	return p, nil
}

var _ Codec[record.Photo] = PhotoCodec{}

// OptionCodec adapts a Codec[T] into a Codec[record.Optional[T]] by
// prefixing a single presence byte: 0 for a tombstone, 1 for a live value.
type OptionCodec[T any] struct {
	Inner Codec[T]
}

func (c OptionCodec[T]) Encode(w io.Writer, v record.Optional[T]) error {
	var tag [1]byte
	if v.Present {
		tag[0] = 1
	}
	if _, err := w.Write(tag[:]); err != nil {
		return errors.Wrap(err, "codec: write option tag")
	}
	if !v.Present {
		return nil
	}
	return c.Inner.Encode(w, v.Value)
}

func (c OptionCodec[T]) Decode(r io.Reader) (record.Optional[T], error) {
	var zero record.Optional[T]
	var tag [1]byte
	if err := readExact(r, tag[:], true); err != nil {
		return zero, err
	}
	if tag[0] == 0 {
		return record.None[T](), nil
	}
	v, err := c.Inner.Decode(r)
	if err != nil {
		if err == ErrUnexpectedEOF {
			err = ErrCorrupt
		}
		return zero, err
	}
	return record.Some(v), nil
}

var _ Codec[record.Optional[record.Photo]] = OptionCodec[record.Photo]{}

// OperationCodec adapts a Codec[T] into a Codec[record.Operation[T]]: a
// kind byte followed by either the encoded record (insert) or the encoded
// key (delete).
type OperationCodec[T any] struct {
	Inner Codec[T]
}

func (c OperationCodec[T]) Encode(w io.Writer, op record.Operation[T]) error {
	var tag [1]byte
	tag[0] = byte(op.Kind)
	if _, err := w.Write(tag[:]); err != nil {
		return errors.Wrap(err, "codec: write operation tag")
	}
	switch op.Kind {
	case record.OpInsert:
		return c.Inner.Encode(w, op.Record)
	case record.OpDelete:
		return writeString(w, op.Key)
	default:
		return errors.Errorf("codec: unknown operation kind %d", op.Kind)
	}
}

func (c OperationCodec[T]) Decode(r io.Reader) (record.Operation[T], error) {
	var zero record.Operation[T]
	var tag [1]byte
	if err := readExact(r, tag[:], true); err != nil {
		return zero, err
	}
	switch record.OpKind(tag[0]) {
	case record.OpInsert:
		v, err := c.Inner.Decode(r)
		if err != nil {
			if err == ErrUnexpectedEOF {
				err = ErrCorrupt
			}
			return zero, err
		}
		op := record.Operation[T]{Kind: record.OpInsert, Record: v}
		if k, ok := any(v).(interface{ Key() string }); ok {
			op.Key = k.Key()
		}
		return op, nil
	case record.OpDelete:
		key, err := readString(r, false)
		if err != nil {
			if err == ErrUnexpectedEOF {
				err = ErrCorrupt
			}
			return zero, err
		}
		return record.Operation[T]{Kind: record.OpDelete, Key: key}, nil
	default:
		return zero, ErrCorrupt
	}
}

var _ Codec[record.Operation[record.Photo]] = OperationCodec[record.Photo]{}
