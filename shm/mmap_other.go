//go:build !unix

package shm

import "os"

func mmap(f *os.File, size int, writable bool) ([]byte, error) {
	return nil, ErrUnsupported
}

func munmap(b []byte) error {
	return nil
}

func msync(b []byte) error {
	return ErrUnsupported
}
