package relative

import (
	"encoding/binary"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/andreyvit/relative/internal/anchor"
)

var (
	fingerprintCache sync.Map // fingerprintKey -> uint64
	fingerprintNames sync.Map // uint64 -> string
)

type fingerprintKey struct {
	typ  reflect.Type
	kind SegmentKind
}

// Fingerprint returns the identity of (S, T) carried in every encoded Ptr[S, T].
//
// Fingerprints are deterministic within one executable image and differ
// between distinct types of that image with overwhelming probability. They
// are not stable across builds; the build identifier check covers that.
func Fingerprint[S Segment, T any]() uint64 {
	return fingerprintOf(reflect.TypeFor[T](), kindOf[S]())
}

func fingerprintOf(typ reflect.Type, kind SegmentKind) uint64 {
	key := fingerprintKey{typ, kind}
	if v, ok := fingerprintCache.Load(key); ok {
		return v.(uint64)
	}
	fp := fingerprintWithoutCache(typ, kind)
	actual, _ := fingerprintCache.LoadOrStore(key, fp)
	fingerprintNames.LoadOrStore(fp, describeType(typ, kind))
	return actual.(uint64)
}

// fingerprintWithoutCache hashes the type's name together with the position
// of its type descriptor within the image. The name separates types across
// packages; the descriptor offset separates identically named local types.
func fingerprintWithoutCache(typ reflect.Type, kind SegmentKind) uint64 {
	d := xxhash.New()
	d.WriteString(typ.String())
	d.Write([]byte{0})
	d.WriteString(typ.PkgPath())
	d.Write([]byte{0, byte(kind)})

	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(uintptr(anchor.RtypeOf(typ))-anchor.Data()))
	d.Write(b[:])
	return d.Sum64()
}

func describeType(typ reflect.Type, kind SegmentKind) string {
	return kind.String() + " " + typ.String()
}

// fingerprintName returns the description of a fingerprint computed earlier
// by this process, or "???".
func fingerprintName(fp uint64) string {
	if v, ok := fingerprintNames.Load(fp); ok {
		return v.(string)
	}
	return "???"
}

type knownFingerprint struct {
	FP   uint64
	Name string
}

func knownFingerprints() []knownFingerprint {
	var result []knownFingerprint
	fingerprintNames.Range(func(k, v any) bool {
		result = append(result, knownFingerprint{k.(uint64), v.(string)})
		return true
	})
	slices.SortFunc(result, func(a, b knownFingerprint) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result
}
