package relative

import (
	"fmt"

	"github.com/andreyvit/relative/internal/anchor"
)

// SegmentKind identifies a region of static memory and the anchor that
// references into it are measured from.
type SegmentKind uint8

const (
	KindCode SegmentKind = iota + 1
	KindData
	KindVtable
)

// Base returns the anchor address of the segment in the current process.
func (k SegmentKind) Base() uintptr {
	switch k {
	case KindCode:
		return anchor.Code()
	case KindData:
		return anchor.Data()
	case KindVtable:
		return anchor.Vtable()
	default:
		panic(fmt.Errorf("invalid segment kind %d", uint8(k)))
	}
}

func (k SegmentKind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindData:
		return "data"
	case KindVtable:
		return "vtable"
	default:
		return fmt.Sprintf("SegmentKind(%d)", uint8(k))
	}
}

// Segment is implemented by the marker types Code, Data and Vtable, which
// select the segment of a Ptr at compile time.
type Segment interface {
	Kind() SegmentKind
}

// Code selects the executable code segment (function entry points).
type Code struct{}

// Data selects the global data and BSS segments (package-level variables).
type Data struct{}

// Vtable selects the read-only segment holding itabs and type descriptors.
type Vtable struct{}

func (Code) Kind() SegmentKind   { return KindCode }
func (Data) Kind() SegmentKind   { return KindData }
func (Vtable) Kind() SegmentKind { return KindVtable }

func kindOf[S Segment]() SegmentKind {
	var s S
	return s.Kind()
}
