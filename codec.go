package relative

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/andreyvit/relative/buildid"
)

// Options configure a Codec. The zero value is valid.
type Options struct {
	// BuildID returns the identifier of the local executable image. Defaults
	// to buildid.Get.
	BuildID func() uuid.UUID

	// Logger receives a debug message for every rejected record. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Codec stamps outgoing Ptrs with the local build identifier and validates
// incoming records against it. A Codec is immutable and safe for concurrent use.
type Codec struct {
	buildID func() uuid.UUID
	logger  *slog.Logger
}

func NewCodec(o Options) *Codec {
	if o.BuildID == nil {
		o.BuildID = buildid.Get
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Codec{
		buildID: o.BuildID,
		logger:  o.Logger,
	}
}

var defaultCodec = sync.OnceValue(func() *Codec {
	return NewCodec(Options{})
})

// DefaultCodec returns the codec used by Encode, Decode and the marshaling
// methods of Ptr.
func DefaultCodec() *Codec {
	return defaultCodec()
}

// BuildID returns the local build identifier this codec stamps and expects.
func (c *Codec) BuildID() uuid.UUID {
	return c.buildID()
}

// Encode converts p into a Record using the default codec.
func Encode[S Segment, T any](p Ptr[S, T]) Record {
	return EncodeWith(DefaultCodec(), p)
}

// Decode validates rec using the default codec.
func Decode[S Segment, T any](rec Record) (Ptr[S, T], error) {
	return DecodeWith[S, T](DefaultCodec(), rec)
}

// EncodeWith converts p into a Record stamped with c's build identifier and
// the fingerprint of (S, T).
func EncodeWith[S Segment, T any](c *Codec, p Ptr[S, T]) Record {
	return Record{
		Build:       c.buildID(),
		Fingerprint: Fingerprint[S, T](),
		Offset:      uint64(p.off),
	}
}

// DecodeWith validates rec and returns the Ptr it describes.
//
// The build identifier is checked first: a record from another image fails
// with *CrossBinaryError whatever its fingerprint. A record from this image
// whose fingerprint differs from that of (S, T) fails with *TypeMismatchError.
// Otherwise the offset is taken as is; the local anchor is applied later by
// Ptr.To.
func DecodeWith[S Segment, T any](c *Codec, rec Record) (Ptr[S, T], error) {
	if local := c.buildID(); rec.Build != local {
		c.reject(rec, "relative: record from a different binary", slog.String("local", local.String()))
		return Ptr[S, T]{}, &CrossBinaryError{Got: rec.Build, Local: local}
	}
	if want := Fingerprint[S, T](); rec.Fingerprint != want {
		err := &TypeMismatchError{
			Got:      rec.Fingerprint,
			Want:     want,
			GotName:  fingerprintName(rec.Fingerprint),
			WantName: describeType(reflect.TypeFor[T](), kindOf[S]()),
		}
		c.reject(rec, "relative: record for a different type", slog.String("got", err.GotName), slog.String("want", err.WantName))
		return Ptr[S, T]{}, err
	}
	return fromOffset[S, T](uintptr(rec.Offset)), nil
}

func (c *Codec) reject(rec Record, msg string, attrs ...slog.Attr) {
	ctx := context.Background()
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs = append(attrs, slog.Any("rec", rec))
	c.logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

// Marshal encodes p with the default codec and the given encoding.
func Marshal[S Segment, T any](enc Encoding, p Ptr[S, T]) ([]byte, error) {
	return enc.EncodeRecord(nil, Encode(p))
}

// Unmarshal parses data in the given encoding and validates it with the
// default codec.
func Unmarshal[S Segment, T any](enc Encoding, data []byte) (Ptr[S, T], error) {
	rec, err := enc.DecodeRecord(data)
	if err != nil {
		return Ptr[S, T]{}, err
	}
	return Decode[S, T](rec)
}
