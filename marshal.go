package relative

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Ptr encodes itself as a Record in every supported format, stamped and
// validated by the default codec, so it can be embedded in any struct that is
// sent to another process.

func (p Ptr[S, T]) MarshalJSON() ([]byte, error) {
	return Encode(p).MarshalJSON()
}

// UnmarshalJSON treats null as a no-op, like encoding/json does.
func (p *Ptr[S, T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var rec Record
	if err := rec.UnmarshalJSON(data); err != nil {
		return err
	}
	return p.decode(rec)
}

var (
	_ msgpack.CustomEncoder = Ptr[Data, int]{}
	_ msgpack.CustomDecoder = (*Ptr[Data, int])(nil)
	_ cbor.Marshaler        = Ptr[Data, int]{}
	_ cbor.Unmarshaler      = (*Ptr[Data, int])(nil)
)

func (p Ptr[S, T]) EncodeMsgpack(enc *msgpack.Encoder) error {
	return Encode(p).EncodeMsgpack(enc)
}

func (p *Ptr[S, T]) DecodeMsgpack(dec *msgpack.Decoder) error {
	var rec Record
	if err := rec.DecodeMsgpack(dec); err != nil {
		return err
	}
	return p.decode(rec)
}

func (p Ptr[S, T]) MarshalCBOR() ([]byte, error) {
	return Encode(p).MarshalCBOR()
}

func (p *Ptr[S, T]) UnmarshalCBOR(data []byte) error {
	var rec Record
	if err := rec.UnmarshalCBOR(data); err != nil {
		return err
	}
	return p.decode(rec)
}

func (p Ptr[S, T]) MarshalBinary() ([]byte, error) {
	return Encode(p).MarshalBinary()
}

func (p *Ptr[S, T]) UnmarshalBinary(data []byte) error {
	var rec Record
	if err := rec.UnmarshalBinary(data); err != nil {
		return err
	}
	return p.decode(rec)
}

func (p *Ptr[S, T]) decode(rec Record) error {
	v, err := Decode[S, T](rec)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
