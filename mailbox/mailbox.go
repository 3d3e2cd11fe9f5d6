// Package mailbox passes encoded relative pointers between processes through
// a Bolt database file.
//
// A mailbox is a single bucket of named slots. One process opens the file,
// stores records and closes it; another process started from the same
// executable opens the same file and receives them. Bolt holds a file lock
// while a mailbox is open, so writers take turns.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/relative"
)

// ErrNotFound is returned when a slot does not exist.
var ErrNotFound = errors.New("mailbox: slot not found")

const (
	DefaultBucket  = "relative"
	DefaultTimeout = time.Second
)

type Options struct {
	Bucket   string        // defaults to DefaultBucket
	Timeout  time.Duration // how long to wait for the file lock; defaults to DefaultTimeout
	ReadOnly bool

	Encoding relative.Encoding // used by Send and Receive
	Codec    *relative.Codec   // defaults to relative.DefaultCodec()
	Logger   *slog.Logger      // defaults to slog.Default()
	Verbose  bool              // log every put and get at debug level
}

type Mailbox struct {
	bdb     *bbolt.DB
	bucket  []byte
	enc     relative.Encoding
	codec   *relative.Codec
	logger  *slog.Logger
	verbose bool
}

// Open opens or creates the mailbox file at path. Read-only mailboxes require
// the file to exist.
func Open(path string, o Options) (*Mailbox, error) {
	if o.Bucket == "" {
		o.Bucket = DefaultBucket
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Codec == nil {
		o.Codec = relative.DefaultCodec()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	bdb, err := bbolt.Open(path, 0o644, &bbolt.Options{
		Timeout:  o.Timeout,
		ReadOnly: o.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("mailbox: open %s: %w", path, err)
	}
	m := &Mailbox{
		bdb:     bdb,
		bucket:  []byte(o.Bucket),
		enc:     o.Encoding,
		codec:   o.Codec,
		logger:  o.Logger,
		verbose: o.Verbose,
	}
	if !o.ReadOnly {
		err = bdb.Update(func(btx *bbolt.Tx) error {
			_, err := btx.CreateBucketIfNotExists(m.bucket)
			return err
		})
		if err != nil {
			bdb.Close()
			return nil, fmt.Errorf("mailbox: init %s: %w", path, err)
		}
	}
	return m, nil
}

func (m *Mailbox) Close() error {
	return m.bdb.Close()
}

// Path returns the file the mailbox lives in.
func (m *Mailbox) Path() string {
	return m.bdb.Path()
}

// Put stores data under name, replacing any previous value.
func (m *Mailbox) Put(name string, data []byte) error {
	err := m.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(m.bucket).Put(unsafeBytesFromString(name), data)
	})
	if err != nil {
		return fmt.Errorf("mailbox: put %q: %w", name, err)
	}
	m.trace("mailbox: put", name, len(data))
	return nil
}

// Get returns a copy of the data stored under name.
func (m *Mailbox) Get(name string) ([]byte, error) {
	var result []byte
	err := m.bdb.View(func(btx *bbolt.Tx) error {
		b := btx.Bucket(m.bucket)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get(unsafeBytesFromString(name))
		if v == nil {
			return ErrNotFound
		}
		result = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mailbox: get %q: %w", name, err)
	}
	m.trace("mailbox: get", name, len(result))
	return result, nil
}

// Delete removes the slot called name.
func (m *Mailbox) Delete(name string) error {
	err := m.bdb.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(m.bucket)
		key := unsafeBytesFromString(name)
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("mailbox: delete %q: %w", name, err)
	}
	return nil
}

// Names lists the slots in key order.
func (m *Mailbox) Names() ([]string, error) {
	var names []string
	err := m.bdb.View(func(btx *bbolt.Tx) error {
		b := btx.Bucket(m.bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			names = append(names, string(k))
		}
		return nil
	})
	return names, err
}

func (m *Mailbox) trace(msg, name string, size int) {
	if m.verbose {
		m.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, slog.String("file", m.bdb.Path()), slog.String("slot", name), slog.Int("size", size))
	}
}

// Send encodes p with the mailbox's codec and encoding and stores it under name.
func Send[S relative.Segment, T any](m *Mailbox, name string, p relative.Ptr[S, T]) error {
	data, err := m.enc.EncodeRecord(nil, relative.EncodeWith(m.codec, p))
	if err != nil {
		return err
	}
	return m.Put(name, data)
}

// Receive loads the record stored under name and validates it as a Ptr[S, T].
func Receive[S relative.Segment, T any](m *Mailbox, name string) (relative.Ptr[S, T], error) {
	data, err := m.Get(name)
	if err != nil {
		return relative.Ptr[S, T]{}, err
	}
	rec, err := m.enc.DecodeRecord(data)
	if err != nil {
		return relative.Ptr[S, T]{}, fmt.Errorf("mailbox: slot %q: %w", name, err)
	}
	return relative.DecodeWith[S, T](m.codec, rec)
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
