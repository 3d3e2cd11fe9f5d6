package relative

import (
	"fmt"
	"strings"

	"github.com/andreyvit/relative/buildid"
)

var dumpSep = strings.Repeat("-", 60)

// Dump describes the local build identifier, the segment anchors and every
// fingerprint computed so far, for diagnosing decode failures.
func Dump() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "build = %v\n", buildid.Get())
	for _, k := range []SegmentKind{KindCode, KindData, KindVtable} {
		fmt.Fprintf(&buf, "anchor.%s = %#x\n", k, k.Base())
	}
	known := knownFingerprints()
	if len(known) > 0 {
		fmt.Fprintln(&buf, dumpSep)
		for _, kf := range known {
			fmt.Fprintf(&buf, "%016x %s\n", kf.FP, kf.Name)
		}
	}
	return buf.String()
}
