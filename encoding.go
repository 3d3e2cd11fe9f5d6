package relative

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects the byte representation of a Record.
type Encoding int

const (
	MsgPack Encoding = iota
	JSON
	CBOR
	Binary

	DefaultEncoding = MsgPack
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("relative: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

func (enc Encoding) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	case CBOR:
		return "cbor"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("Encoding(%d)", int(enc))
	}
}

// EncodeRecord appends the encoding of rec to buf.
func (enc Encoding) EncodeRecord(buf []byte, rec Record) ([]byte, error) {
	switch enc {
	case MsgPack:
		bb := bytes.NewBuffer(buf)
		e := msgpack.GetEncoder()
		e.Reset(bb)
		err := e.Encode(rec)
		msgpack.PutEncoder(e)
		if err != nil {
			return buf, fmt.Errorf("failed to encode record using MsgPack: %w", err)
		}
		return bb.Bytes(), nil
	case JSON:
		raw, err := json.Marshal(rec)
		if err != nil {
			return buf, fmt.Errorf("failed to encode record to JSON: %w", err)
		}
		return append(buf, raw...), nil
	case CBOR:
		raw, err := rec.MarshalCBOR()
		if err != nil {
			return buf, fmt.Errorf("failed to encode record to CBOR: %w", err)
		}
		return append(buf, raw...), nil
	case Binary:
		return rec.AppendBinary(buf), nil
	default:
		panic("unsupported encoding")
	}
}

// DecodeRecord parses buf into a Record. It does not validate the build id or
// the fingerprint; see Decode.
func (enc Encoding) DecodeRecord(buf []byte) (Record, error) {
	var rec Record
	switch enc {
	case MsgPack:
		var r bytes.Reader
		r.Reset(buf)
		dec := msgpack.GetDecoder()
		dec.Reset(&r)
		err := dec.Decode(&rec)
		msgpack.PutDecoder(dec)
		if err != nil {
			return Record{}, dataErrf(buf, 0, err, "failed to decode msgpack record")
		}
		if r.Len() != 0 {
			return Record{}, dataErrf(buf, len(buf)-r.Len(), nil, "trailing bytes after msgpack record")
		}
	case JSON:
		if err := json.Unmarshal(buf, &rec); err != nil {
			return Record{}, dataErrf(buf, 0, err, "failed to decode JSON record")
		}
	case CBOR:
		if err := rec.UnmarshalCBOR(buf); err != nil {
			return Record{}, dataErrf(buf, 0, err, "failed to decode CBOR record")
		}
	case Binary:
		if err := rec.UnmarshalBinary(buf); err != nil {
			return Record{}, err
		}
	default:
		panic("unsupported encoding")
	}
	return rec, nil
}
