/*
Package relative wraps references into static memory so that they can be sent
to another process running the same executable and resolved there.

Absolute addresses differ between runs of the same binary (position-independent
executables are loaded at a random base), but the distance between two items
of one image does not. A Ptr therefore stores the distance from a per-segment
anchor instead of the address itself:

	var primes = [4]uint16{2, 3, 5, 8}

	p := relative.FromData(&primes) // unsafe: &primes must be static memory
	data, err := relative.Marshal(relative.MsgPack, p)
	// ...send data to a process started from the same executable...

	p2, err := relative.Unmarshal[relative.Data, [4]uint16](relative.MsgPack, data)
	fmt.Println(*relative.Deref(p2)) // [2 3 5 8]

# Segments

Code: function entry points. Anchored at a dedicated non-inlined function.
Capture with FromFunc, resolve with Func.

Data: package-level variables. Anchored at a dedicated zero-size variable.
Capture with FromData, resolve with Deref.

Vtable: itabs and type descriptors (the first word of an interface value).
Anchored at the itab of a statically initialized interface value. Capture with
FromInterface, resolve with Interface. Only dispatch tables that the compiler
emitted into the image qualify: the value must have been converted to the
interface type statically somewhere in the program. Itabs the runtime creates
for a dynamic type assertion, and descriptors of types made with
reflect.StructOf and similar, are heap memory and do not survive the trip.

FromAddr and Ptr.To work with raw addresses for all three.

# Wire format

An encoded Ptr is a Record: an ordered triple of

 1. Build identifier (16 bytes, see package buildid).
 2. Type fingerprint (uint64) of the Ptr's segment and type.
 3. Offset (uint64) from the segment anchor, wrapping.

Records can be encoded as msgpack, JSON, CBOR or a fixed 32-byte binary
layout. Decoding checks the build identifier first (CrossBinaryError) and the
fingerprint second (TypeMismatchError). A successfully decoded Ptr is resolved
against the receiving process's own anchors.

# Safety

Nothing verifies that a captured address really lies in the claimed segment or
really holds a T; that is the caller's obligation. A record whose build id and
fingerprint both collide with a valid pair by chance is indistinguishable from
a genuine one.
*/
package relative
