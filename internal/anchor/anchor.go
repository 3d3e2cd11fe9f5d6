// Package anchor provides the per-segment base addresses that relative
// references are computed against.
//
// Every anchor is a linker-placed symbol: it moves together with the rest of
// the executable image when the loader relocates it, so the distance between
// an anchor and any other static item of the same image is identical in every
// process started from that image.
//
// All values are computed during package initialization and never written
// afterwards, so the accessors are safe for concurrent use without locking.
package anchor

import (
	"fmt"
	"reflect"
	"unsafe"
)

//go:noinline
func codeAnchor() {}

var dataAnchor struct{}

type anchorer interface{ anchor() }

type anchorType struct{}

func (anchorType) anchor() {}

// Statically initialized by the compiler: the itab lives in read-only data
// and this variable is never assigned again.
var vtableAnchor anchorer = anchorType{}

var (
	codeBase   = FuncPC(codeAnchor)
	dataBase   = uintptr(unsafe.Pointer(&dataAnchor))
	vtableBase = uintptr(mustCheckedItab())
)

// Code returns the anchor of the executable code segment.
func Code() uintptr {
	return codeBase
}

// Data returns the anchor of the global data segment.
func Data() uintptr {
	return dataBase
}

// Vtable returns the anchor of the segment holding interface dispatch
// tables (itabs) and type descriptors.
func Vtable() uintptr {
	return vtableBase
}

func mustCheckedItab() unsafe.Pointer {
	tab := IfaceTab(unsafe.Pointer(&vtableAnchor))
	if err := checkItab(tab, reflect.TypeFor[anchorer](), anchorType{}); err != nil {
		panic(fmt.Errorf("anchor: interface layout check failed: %w", err))
	}
	return tab
}

// checkItab verifies the extracted itab against type words obtained through
// independent routes (reflect and an empty interface).
func checkItab(tab unsafe.Pointer, inter reflect.Type, concrete any) error {
	if tab == nil {
		return fmt.Errorf("nil itab")
	}
	it := (*itab)(tab)
	if want := RtypeOf(inter); it.inter != want {
		return fmt.Errorf("itab.inter = %p, wanted %p (%v)", it.inter, want, inter)
	}
	if want := TypeWord(concrete); it.typ != want {
		return fmt.Errorf("itab.typ = %p, wanted %p (%T)", it.typ, want, concrete)
	}
	if want := RtypeOf(reflect.TypeOf(concrete)); it.typ != want {
		return fmt.Errorf("itab.typ = %p, reflect says %p (%T)", it.typ, want, concrete)
	}
	return nil
}
