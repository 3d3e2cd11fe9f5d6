package relative

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrCrossBinary matches a *CrossBinaryError.
	ErrCrossBinary = errors.New("relative reference came from a different binary")

	// ErrTypeMismatch matches a *TypeMismatchError.
	ErrTypeMismatch = errors.New("relative reference to wrong type")
)

// CrossBinaryError is returned when decoding a record produced by a different
// executable image. Its offset is meaningless in this process.
type CrossBinaryError struct {
	Got   uuid.UUID
	Local uuid.UUID
}

func (e *CrossBinaryError) Error() string {
	return fmt.Sprintf("relative reference came from a different binary %v, expected %v", e.Got, e.Local)
}

func (e *CrossBinaryError) Is(target error) bool {
	return target == ErrCrossBinary
}

// TypeMismatchError is returned when a record from this image was captured
// for a different segment or type than the one being decoded.
type TypeMismatchError struct {
	Got      uint64
	Want     uint64
	GotName  string // "???" unless this process has computed Got itself
	WantName string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("relative reference to wrong type %s:%x, expected %s:%x", e.GotName, e.Got, e.WantName, e.Want)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// DataError reports bytes that do not form a valid record in the chosen
// encoding.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}
