// Package buildid identifies the executable image the current process was
// started from.
//
// The identifier is derived from the contents of the executable file, so every
// process launched from the same file gets the same value, and any rebuild that
// changes a single byte gets a different one.
package buildid

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/andreyvit/relative/internal/anchor"
)

// Namespace is the name-based UUID namespace all build identifiers live in.
var Namespace = uuid.MustParse("5d0c6f3e-8b7a-4f61-9f0e-2b3c1a7e9d42")

var local = sync.OnceValue(func() uuid.UUID {
	return compute(slog.Default())
})

// Get returns the identifier of the running executable image. It is computed
// on first use and cached for the lifetime of the process.
func Get() uuid.UUID {
	return local()
}

func compute(logger *slog.Logger) uuid.UUID {
	exe, err := os.Executable()
	if err == nil {
		var id uuid.UUID
		id, err = Compute(exe)
		if err == nil {
			return id
		}
	}
	logger.LogAttrs(context.Background(), slog.LevelWarn, "buildid: cannot hash executable, falling back to build info", slog.Any("err", err))
	return fallback()
}

// Compute returns the build identifier of the executable file at path.
func Compute(path string) (uuid.UUID, error) {
	f, err := os.Open(path)
	if err != nil {
		return uuid.Nil, err
	}
	defer f.Close()

	d := xxhash.New()
	size, err := io.Copy(d, f)
	if err != nil {
		return uuid.Nil, fmt.Errorf("buildid: reading %s: %w", path, err)
	}

	buf := make([]byte, 0, 64)
	buf = binary.LittleEndian.AppendUint64(buf, d.Sum64())
	buf = binary.LittleEndian.AppendUint64(buf, uint64(size))
	buf = appendPlatform(buf)
	return uuid.NewSHA1(Namespace, buf), nil
}

// fallback identifies the image by its module build info and by the distances
// between segment anchors, which only change when the image layout does.
func fallback() uuid.UUID {
	buf := make([]byte, 0, 1024)
	if bi, ok := debug.ReadBuildInfo(); ok {
		buf = append(buf, bi.String()...)
	}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(anchor.Code()-anchor.Data()))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(anchor.Vtable()-anchor.Data()))
	buf = appendPlatform(buf)
	return uuid.NewSHA1(Namespace, buf)
}

func appendPlatform(buf []byte) []byte {
	buf = append(buf, runtime.Version()...)
	buf = append(buf, 0)
	buf = append(buf, runtime.GOOS...)
	buf = append(buf, '/')
	buf = append(buf, runtime.GOARCH...)
	return buf
}
