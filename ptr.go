package relative

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"log/slog"
	"reflect"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"github.com/andreyvit/relative/internal/anchor"
)

// Ptr references a static item of type T living in segment S. It stores only
// the wrapping offset of the item from the segment anchor, so it means the
// same thing in every process started from the same executable image.
//
// Ptr is a plain comparable value: == compares offsets, and it can be used as
// a map key. Pointers captured for different S or T are different Go types
// and cannot be compared with each other.
type Ptr[S Segment, T any] struct {
	_   [0]*S
	_   [0]*T
	off uintptr
}

// FromAddr captures the absolute address addr.
//
// This is unsafe: the caller guarantees that addr is the address of an item of
// type T located in segment S of this executable image. Nothing is checked;
// violating the contract produces a Ptr that resolves to garbage.
func FromAddr[S Segment, T any](addr uintptr) Ptr[S, T] {
	return Ptr[S, T]{off: addr - kindOf[S]().Base()}
}

func fromOffset[S Segment, T any](off uintptr) Ptr[S, T] {
	return Ptr[S, T]{off: off}
}

// To returns the absolute address of the referenced item in the current
// process. The result is only meaningful if the FromAddr contract held where
// the Ptr was captured and this process runs the same image.
func (p Ptr[S, T]) To() uintptr {
	return kindOf[S]().Base() + p.off
}

// Offset returns the raw offset from the segment anchor.
func (p Ptr[S, T]) Offset() uintptr {
	return p.off
}

func (p Ptr[S, T]) Kind() SegmentKind {
	return kindOf[S]()
}

// Compare orders pointers by offset.
func (p Ptr[S, T]) Compare(q Ptr[S, T]) int {
	return cmp.Compare(p.off, q.off)
}

func (p Ptr[S, T]) Less(q Ptr[S, T]) bool {
	return p.off < q.off
}

// Hash returns a hash of the offset, for use in custom hash tables.
func (p Ptr[S, T]) Hash() uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(p.off))
	return xxhash.Sum64(b[:])
}

func (p Ptr[S, T]) String() string {
	return fmt.Sprintf("Ptr[%v]{%s: %#x}", kindOf[S](), typeName[T](), p.off)
}

func (p Ptr[S, T]) GoString() string {
	return fmt.Sprintf("relative.Ptr[%v, %s]{off: %#x}", reflect.TypeFor[S](), typeName[T](), p.off)
}

func (p Ptr[S, T]) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("seg", kindOf[S]().String()),
		slog.String("type", typeName[T]()),
		slog.String("off", fmt.Sprintf("%#x", p.off)),
	)
}

// FromData captures a pointer to a package-level variable.
//
// This is unsafe: p must point into static data (a package-level variable or
// a part of one), never to the heap or the stack.
func FromData[T any](p *T) Ptr[Data, T] {
	return FromAddr[Data, T](uintptr(unsafe.Pointer(p)))
}

// Deref resolves p to a pointer in the current process.
//
//go:nocheckptr
func Deref[T any](p Ptr[Data, T]) *T {
	return (*T)(unsafe.Pointer(p.To()))
}

// FromFunc captures the entry point of a top-level function. F must be a func
// type. Closures and method values are not static items; capturing them is
// a contract violation.
func FromFunc[F any](fn F) Ptr[Code, F] {
	mustKind[F](reflect.Func, "FromFunc")
	return FromAddr[Code, F](anchor.FuncPC(fn))
}

// Func resolves p to a callable function value. A Ptr captured from a nil
// func resolves to nil.
func Func[F any](p Ptr[Code, F]) F {
	return anchor.MakeFunc[F](p.To())
}

// FromInterface captures the dispatch table of v: the itab for a non-empty
// interface type I, or the type descriptor when I is an empty interface.
// I must be an interface type.
//
// This is unsafe: the dispatch table must be part of the executable image.
// That holds when v got its dynamic type through a conversion the compiler
// saw (assigning a concrete value to an I, or to any for a compiler-emitted
// type). An itab that the runtime built on the fly, for example by a type
// assertion x.(I) with no static conversion of that type to I anywhere in the
// program, or for a type made by reflect.StructOf and friends, lives on the
// heap. Its offset is meaningless in any other process, and an interface
// rebuilt from it there will crash on the first method call. Nothing is
// checked.
func FromInterface[I any](v I) Ptr[Vtable, I] {
	mustKind[I](reflect.Interface, "FromInterface")
	return FromAddr[Vtable, I](uintptr(anchor.IfaceTab(unsafe.Pointer(&v))))
}

// Interface pairs the dispatch table referenced by p with a data word and
// returns the resulting interface value. The word must be the data word of a
// value of the dynamic type p was captured from (see DataWord).
//
//go:nocheckptr
func Interface[I any](p Ptr[Vtable, I], word unsafe.Pointer) I {
	mustKind[I](reflect.Interface, "Interface")
	var v I
	if tab := p.To(); tab != 0 {
		anchor.SetIface(unsafe.Pointer(&v), unsafe.Pointer(tab), word)
	}
	return v
}

// DataWord returns the data word of the interface value v.
func DataWord[I any](v I) unsafe.Pointer {
	mustKind[I](reflect.Interface, "DataWord")
	return anchor.IfaceData(unsafe.Pointer(&v))
}

func mustKind[T any](k reflect.Kind, op string) {
	if t := reflect.TypeFor[T](); t.Kind() != k {
		panic(fmt.Errorf("relative.%s: %v is not a %v type", op, t, k))
	}
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
