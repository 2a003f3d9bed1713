package cachestorage

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

const (
	CodecCBOR    = "cbor"
	CodecMsgpack = "msgpack"
)

// NewCodec returns the entry codec registered under name. Empty means CBOR.
func NewCodec(name string) (Codec[CachedResponse], error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecCBOR:
		return NewCBOR[CachedResponse]()
	case CodecMsgpack:
		return Msgpack[CachedResponse]{}, nil
	}
	return nil, fmt.Errorf("unknown cache codec %q", name)
}

// CBOR serializes values with fxamacker/cbor using the preferred
// unsorted encoding. Times are written as RFC3339Nano.
// The zero value is not ready to use; construct with NewCBOR.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func NewCBOR[V any]() (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}

// Msgpack serializes values with vmihailenco/msgpack/v5.
// The zero value is ready to use.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
