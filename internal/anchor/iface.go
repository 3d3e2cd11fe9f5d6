package anchor

import (
	"fmt"
	"reflect"
	"unsafe"
)

// The helpers below are the only code in the module that depends on how the
// Go runtime represents func values and interface values. Keep them in sync
// with runtime/runtime2.go (iface, eface, funcval) and internal/abi (ITab).

// iface mirrors both runtime.iface and runtime.eface: a type-or-itab word
// followed by a data word.
type iface struct {
	tab  unsafe.Pointer
	data unsafe.Pointer
}

// itab mirrors the leading fields of internal/abi.ITab.
type itab struct {
	inter unsafe.Pointer
	typ   unsafe.Pointer
	hash  uint32
}

type funcval struct {
	fn uintptr
}

// IfaceTab returns the first word of the interface value at p: the itab for
// non-empty interfaces, the type descriptor for `any`.
func IfaceTab(p unsafe.Pointer) unsafe.Pointer {
	return (*iface)(p).tab
}

// IfaceData returns the data word of the interface value at p.
func IfaceData(p unsafe.Pointer) unsafe.Pointer {
	return (*iface)(p).data
}

// SetIface overwrites both words of the interface value at p.
func SetIface(p unsafe.Pointer, tab, data unsafe.Pointer) {
	v := (*iface)(p)
	v.tab = tab
	v.data = data
}

// TypeWord returns the type descriptor pointer of v's dynamic type.
func TypeWord(v any) unsafe.Pointer {
	return (*iface)(unsafe.Pointer(&v)).tab
}

// RtypeOf returns the address of the type descriptor behind t.
func RtypeOf(t reflect.Type) unsafe.Pointer {
	if t == nil {
		return nil
	}
	return (*iface)(unsafe.Pointer(&t)).data
}

// FuncPC returns the entry PC of a top-level function. Method values and
// closures yield the PC of a wrapper, not of the function itself.
func FuncPC(fn any) uintptr {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Errorf("anchor: FuncPC of non-func %T", fn))
	}
	return v.Pointer()
}

// MakeFunc builds a callable value of func type F that enters at pc.
// A zero pc produces a nil func.
func MakeFunc[F any](pc uintptr) F {
	var fn F
	if reflect.TypeFor[F]().Kind() != reflect.Func {
		panic(fmt.Errorf("anchor: MakeFunc of non-func %v", reflect.TypeFor[F]()))
	}
	if pc == 0 {
		return fn
	}
	*(*unsafe.Pointer)(unsafe.Pointer(&fn)) = unsafe.Pointer(&funcval{fn: pc})
	return fn
}
