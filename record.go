package relative

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Record is the logical wire form of a Ptr: an ordered triple of the
// producing image's build identifier, the fingerprint of the Ptr's segment and
// type, and the offset. Every encoding writes the fields in this order.
type Record struct {
	Build       uuid.UUID
	Fingerprint uint64
	Offset      uint64
}

// BinaryRecordSize is the size of a record in the Binary encoding:
// build:16 fingerprint:64le offset:64le.
const BinaryRecordSize = 16 + 8 + 8

func (r Record) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("build", r.Build.String()),
		slog.String("fp", fmt.Sprintf("%x", r.Fingerprint)),
		slog.String("off", fmt.Sprintf("%#x", r.Offset)),
	)
}

// AppendBinary appends the Binary encoding of r to buf.
func (r Record) AppendBinary(buf []byte) []byte {
	buf = append(buf, r.Build[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, r.Fingerprint)
	buf = binary.LittleEndian.AppendUint64(buf, r.Offset)
	return buf
}

func (r Record) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(make([]byte, 0, BinaryRecordSize)), nil
}

func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != BinaryRecordSize {
		return dataErrf(data, 0, nil, "invalid record: got %d bytes, wanted %d", len(data), BinaryRecordSize)
	}
	copy(r.Build[:], data[:16])
	r.Fingerprint = binary.LittleEndian.Uint64(data[16:24])
	r.Offset = binary.LittleEndian.Uint64(data[24:32])
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Build, r.Fingerprint, r.Offset})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return dataErrf(data, 0, err, "invalid record")
	}
	if len(fields) != 3 {
		return dataErrf(data, 0, nil, "invalid record: got %d fields, wanted 3", len(fields))
	}
	var rec Record
	if err := json.Unmarshal(fields[0], &rec.Build); err != nil {
		return dataErrf(data, 0, err, "invalid record build id")
	}
	if err := json.Unmarshal(fields[1], &rec.Fingerprint); err != nil {
		return dataErrf(data, 0, err, "invalid record fingerprint")
	}
	if err := json.Unmarshal(fields[2], &rec.Offset); err != nil {
		return dataErrf(data, 0, err, "invalid record offset")
	}
	*r = rec
	return nil
}

var (
	_ msgpack.CustomEncoder = Record{}
	_ msgpack.CustomDecoder = (*Record)(nil)
)

func (r Record) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(3); err != nil {
		return err
	}
	if err := enc.EncodeBytes(r.Build[:]); err != nil {
		return err
	}
	if err := enc.EncodeUint(r.Fingerprint); err != nil {
		return err
	}
	return enc.EncodeUint(r.Offset)
}

func (r *Record) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return dataErrf(nil, 0, err, "invalid record")
	}
	if n != 3 {
		return dataErrf(nil, 0, nil, "invalid record: got %d fields, wanted 3", n)
	}
	b, err := dec.DecodeBytes()
	if err != nil {
		return dataErrf(nil, 0, err, "invalid record build id")
	}
	var rec Record
	if len(b) != len(rec.Build) {
		return dataErrf(b, 0, nil, "invalid record: build id is %d bytes, wanted %d", len(b), len(rec.Build))
	}
	copy(rec.Build[:], b)
	if rec.Fingerprint, err = dec.DecodeUint64(); err != nil {
		return dataErrf(nil, 0, err, "invalid record fingerprint")
	}
	if rec.Offset, err = dec.DecodeUint64(); err != nil {
		return dataErrf(nil, 0, err, "invalid record offset")
	}
	*r = rec
	return nil
}

type cborRecord struct {
	_           struct{} `cbor:",toarray"`
	Build       []byte
	Fingerprint uint64
	Offset      uint64
}

var (
	_ cbor.Marshaler   = Record{}
	_ cbor.Unmarshaler = (*Record)(nil)
)

func (r Record) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(cborRecord{Build: r.Build[:], Fingerprint: r.Fingerprint, Offset: r.Offset})
}

func (r *Record) UnmarshalCBOR(data []byte) error {
	var cr cborRecord
	if err := cbor.Unmarshal(data, &cr); err != nil {
		return dataErrf(data, 0, err, "invalid record")
	}
	if len(cr.Build) != len(r.Build) {
		return dataErrf(data, 0, nil, "invalid record: build id is %d bytes, wanted %d", len(cr.Build), len(r.Build))
	}
	copy(r.Build[:], cr.Build)
	r.Fingerprint = cr.Fingerprint
	r.Offset = cr.Offset
	return nil
}
