package relative

import (
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"testing"
	"unsafe"
)

var (
	primes  = [4]uint16{2, 3, 5, 8}
	fives   = [5]uint8{0, 1, 2, 3, 4}
	table   [8]uint32
	counter int64
)

type celsius float64

func (c celsius) String() string { return strconv.FormatFloat(float64(c), 'f', 1, 64) + "C" }

type label string

func (l label) String() string { return string(l) }

func double(x int) int { return x * 2 }

func triple(x int) int { return x * 3 }

func TestFromData_RoundTrip(t *testing.T) {
	p := FromData(&primes)
	if a, e := p.To(), uintptr(unsafe.Pointer(&primes)); a != e {
		t.Fatalf("To() = %#x, wanted %#x", a, e)
	}
	if a := Deref(p); a != &primes {
		t.Fatalf("Deref() = %p, wanted %p", a, &primes)
	}
	if a, e := *Deref(p), [4]uint16{2, 3, 5, 8}; a != e {
		t.Fatalf("*Deref() = %v, wanted %v", a, e)
	}
	if a, e := p.Kind(), KindData; a != e {
		t.Fatalf("Kind() = %v, wanted %v", a, e)
	}
}

func TestDeref_WritesThrough(t *testing.T) {
	p := FromData(&counter)
	*Deref(p) = 42
	if counter != 42 {
		t.Fatalf("counter = %d, wanted 42", counter)
	}
	counter = 0
}

func TestFromAddr_Wraps(t *testing.T) {
	tests := []uintptr{0, 1, ^uintptr(0), KindData.Base() - 1, KindData.Base() + 1}
	for _, addr := range tests {
		if a := FromAddr[Data, byte](addr).To(); a != addr {
			t.Errorf("FromAddr(%#x).To() = %#x", addr, a)
		}
		if a := FromAddr[Code, func()](addr).To(); a != addr {
			t.Errorf("code FromAddr(%#x).To() = %#x", addr, a)
		}
		if a := FromAddr[Vtable, any](addr).To(); a != addr {
			t.Errorf("vtable FromAddr(%#x).To() = %#x", addr, a)
		}
	}

	below := FromAddr[Data, byte](KindData.Base() - 1)
	if a, e := below.Offset(), ^uintptr(0); a != e {
		t.Errorf("offset below anchor = %#x, wanted %#x", a, e)
	}
}

func TestFromFunc_RoundTrip(t *testing.T) {
	p := FromFunc(double)
	if a, e := Func(p)(21), 42; a != e {
		t.Fatalf("Func(p)(21) = %d, wanted %d", a, e)
	}
	if p == FromFunc(triple) {
		t.Fatalf("FromFunc(double) == FromFunc(triple)")
	}
	if p != FromFunc(double) {
		t.Fatalf("FromFunc(double) != FromFunc(double)")
	}

	up := FromFunc(strings.ToUpper)
	if a, e := Func(up)("abc"), "ABC"; a != e {
		t.Fatalf("Func(up)() = %q, wanted %q", a, e)
	}
}

func TestFromFunc_Nil(t *testing.T) {
	var fn func()
	if Func(FromFunc(fn)) != nil {
		t.Fatalf("Func(FromFunc(nil)) != nil")
	}
}

func TestFromInterface_RoundTrip(t *testing.T) {
	var s fmt.Stringer = celsius(21.5)
	p := FromInterface(s)
	rebuilt := Interface(p, DataWord(s))
	if a, e := rebuilt.String(), "21.5C"; a != e {
		t.Fatalf("rebuilt.String() = %q, wanted %q", a, e)
	}

	if q := FromInterface[fmt.Stringer](celsius(-3)); q != p {
		t.Fatalf("same dynamic type: %v != %v", q, p)
	}
	if q := FromInterface[fmt.Stringer](label("x")); q == p {
		t.Fatalf("different dynamic types share %v", q)
	}

	var other fmt.Stringer = celsius(-40)
	if a, e := Interface(p, DataWord(other)).String(), "-40.0C"; a != e {
		t.Fatalf("rebound String() = %q, wanted %q", a, e)
	}
}

func TestFromInterface_Empty(t *testing.T) {
	p := FromInterface[any](42)
	if q := FromInterface[any](7); q != p {
		t.Fatalf("type word differs for the same dynamic type")
	}
	var x any = 99
	v := Interface(p, DataWord(x))
	if a, ok := v.(int); !ok || a != 99 {
		t.Fatalf("rebuilt any = %v, wanted 99", v)
	}
}

type sizer interface{ Size() int }

type widget struct{ n int }

func (w widget) Size() int { return w.n }

// boxedWidget hides the concrete type so that widget is never converted to
// sizer at compile time.
//
//go:noinline
func boxedWidget(n int) any { return widget{n} }

func TestFromInterface_DynamicItabIsNotInImage(t *testing.T) {
	s, ok := boxedWidget(7).(sizer)
	if !ok {
		t.Fatalf("widget does not implement sizer")
	}
	p := FromInterface(s)
	if a := Interface(p, DataWord(s)).Size(); a != 7 {
		t.Fatalf("Size() = %d, wanted 7", a)
	}

	if runtime.GOOS != "linux" {
		t.Skipf("address layout of %s not checked", runtime.GOOS)
	}
	dist := func(off uintptr) uintptr {
		if int(off) < 0 {
			return -off
		}
		return off
	}
	static := FromInterface[fmt.Stringer](celsius(0))
	if d := dist(static.Offset()); d >= 1<<32 {
		t.Fatalf("static itab is %#x away from the anchor", d)
	}
	if d := dist(p.Offset()); d < 1<<32 {
		t.Fatalf("runtime-built itab is only %#x away from the anchor, wanted it outside the image", d)
	}
}

func TestFromInterface_Nil(t *testing.T) {
	var s fmt.Stringer
	if v := Interface(FromInterface(s), nil); v != nil {
		t.Fatalf("Interface(FromInterface(nil)) = %v, wanted nil", v)
	}
}

func TestWrongKind_Panics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"FromFunc", func() { FromFunc(42) }},
		{"FromInterface", func() { FromInterface(42) }},
		{"DataWord", func() { DataWord("x") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestPtr_EqualityDependsOnlyOnOffset(t *testing.T) {
	p := FromData(&primes)
	q := fromOffset[Data, [4]uint16](p.Offset())
	if p != q {
		t.Fatalf("%v != %v", p, q)
	}

	m := map[Ptr[Data, [4]uint16]]string{p: "primes"}
	if m[q] != "primes" {
		t.Fatalf("map lookup by equal Ptr failed")
	}
	if p.Hash() != q.Hash() {
		t.Fatalf("Hash() differs for equal Ptrs")
	}
}

func TestPtr_OrderingMatchesOffsets(t *testing.T) {
	var ptrs []Ptr[Data, uint32]
	for i := len(table) - 1; i >= 0; i-- {
		ptrs = append(ptrs, FromData(&table[i]))
	}
	slices.SortFunc(ptrs, Ptr[Data, uint32].Compare)
	for i, p := range ptrs {
		if a, e := Deref(p), &table[i]; a != e {
			t.Fatalf("sorted[%d] = %p, wanted %p", i, a, e)
		}
	}
	for i := 1; i < len(ptrs); i++ {
		a, b := ptrs[i-1], ptrs[i]
		if !a.Less(b) || b.Less(a) || a.Compare(b) != -1 || b.Compare(a) != 1 {
			t.Fatalf("ordering inconsistent between %v and %v", a, b)
		}
		if (a.Offset() < b.Offset()) != a.Less(b) {
			t.Fatalf("Less disagrees with offsets for %v and %v", a, b)
		}
		if a.Hash() == b.Hash() {
			t.Fatalf("Hash collision between %v and %v", a, b)
		}
	}
	if ptrs[0].Compare(ptrs[0]) != 0 {
		t.Fatalf("Compare(self) != 0")
	}
}

func TestPtr_Formatting(t *testing.T) {
	p := FromData(&primes)
	s := p.String()
	if !strings.Contains(s, "data") || !strings.Contains(s, "[4]uint16") || !strings.Contains(s, fmt.Sprintf("%#x", p.Offset())) {
		t.Fatalf("String() = %q, wanted segment, type and offset", s)
	}
	if a, e := fmt.Sprintf("%v", p), s; a != e {
		t.Fatalf("%%v = %q, wanted %q", a, e)
	}
	gs := fmt.Sprintf("%#v", p)
	if !strings.HasPrefix(gs, "relative.Ptr[relative.Data, [4]uint16]{off: 0x") {
		t.Fatalf("%%#v = %q", gs)
	}

	lv := p.LogValue()
	if lv.Kind() != slog.KindGroup || len(lv.Group()) != 3 {
		t.Fatalf("LogValue() = %v, wanted a 3-attr group", lv)
	}
}

func TestSegmentKind_String(t *testing.T) {
	tests := []struct {
		k SegmentKind
		e string
	}{
		{KindCode, "code"},
		{KindData, "data"},
		{KindVtable, "vtable"},
		{SegmentKind(9), "SegmentKind(9)"},
	}
	for _, tt := range tests {
		if a := tt.k.String(); a != tt.e {
			t.Errorf("String(%d) = %q, wanted %q", tt.k, a, tt.e)
		}
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic from Base() of invalid kind")
		}
	}()
	SegmentKind(0).Base()
}
