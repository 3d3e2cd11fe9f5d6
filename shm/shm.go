// Package shm carries one encoded record between processes in a
// memory-mapped file.
//
// File format: header payload
//
//   - header = magic:64 size:64 checksum:64 reserved:64
//   - payload = size bytes followed by unused capacity
//
// The checksum is xxhash64 of the payload. A slot is written by one process
// and read by others; readers map the file read-only.
package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrUnsupported = errors.New("shm: memory-mapped slots are not supported on this platform")
	ErrTooLarge    = errors.New("shm: payload exceeds slot capacity")
	ErrEmpty       = errors.New("shm: slot is empty")
	ErrReadOnly    = errors.New("shm: slot is read-only")
	ErrCorrupted   = errors.New("shm: corrupted slot file")
)

const (
	magic      = 0x31544f4c534c4552 // "RELSLOT1" as little-endian uint64
	headerSize = 32

	offMagic    = 0
	offSize     = 8
	offChecksum = 16
)

type Slot struct {
	f        *os.File
	mem      []byte
	writable bool
}

// Create creates (or truncates) the slot file at path with room for a payload
// of capacity bytes and maps it for writing.
func Create(path string, capacity int) (*Slot, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("shm: invalid capacity %d", capacity)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	size := headerSize + capacity
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: truncate %s: %w", path, err)
	}
	mem, err := mmap(f, size, true)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}
	binary.LittleEndian.PutUint64(mem[offMagic:], magic)
	return &Slot{f: f, mem: mem, writable: true}, nil
}

// Open maps an existing slot file read-only.
func Open(path string) (*Slot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() <= headerSize {
		f.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrCorrupted, path, st.Size())
	}
	mem, err := mmap(f, int(st.Size()), false)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}
	if binary.LittleEndian.Uint64(mem[offMagic:]) != magic {
		munmap(mem)
		f.Close()
		return nil, fmt.Errorf("%w: %s: bad magic", ErrCorrupted, path)
	}
	return &Slot{f: f, mem: mem}, nil
}

// Capacity returns the largest payload the slot can hold.
func (s *Slot) Capacity() int {
	return len(s.mem) - headerSize
}

// Store replaces the slot's payload with data.
func (s *Slot) Store(data []byte) error {
	if !s.writable {
		return ErrReadOnly
	}
	if len(data) > s.Capacity() {
		return fmt.Errorf("%w: %d > %d", ErrTooLarge, len(data), s.Capacity())
	}
	binary.LittleEndian.PutUint64(s.mem[offSize:], 0)
	copy(s.mem[headerSize:], data)
	binary.LittleEndian.PutUint64(s.mem[offChecksum:], xxhash.Sum64(data))
	binary.LittleEndian.PutUint64(s.mem[offSize:], uint64(len(data)))
	return nil
}

// Load returns a copy of the slot's payload.
func (s *Slot) Load() ([]byte, error) {
	size := binary.LittleEndian.Uint64(s.mem[offSize:])
	if size == 0 {
		return nil, ErrEmpty
	}
	if size > uint64(s.Capacity()) {
		return nil, fmt.Errorf("%w: payload size %d exceeds capacity %d", ErrCorrupted, size, s.Capacity())
	}
	data := append([]byte(nil), s.mem[headerSize:headerSize+int(size)]...)
	if sum := xxhash.Sum64(data); sum != binary.LittleEndian.Uint64(s.mem[offChecksum:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupted)
	}
	return data, nil
}

// Sync flushes the mapping to the file so that readers opening it later see
// the latest payload.
func (s *Slot) Sync() error {
	if !s.writable {
		return nil
	}
	return msync(s.mem)
}

func (s *Slot) Close() error {
	err := munmap(s.mem)
	s.mem = nil
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}
