package mailbox

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/andreyvit/relative"
	"github.com/andreyvit/relative/internal/reltest"
)

var (
	primes = [4]uint16{2, 3, 5, 8}
	other  = [5]uint8{1, 1, 2, 3, 5}
)

func open(t *testing.T, path string, o Options) *Mailbox {
	t.Helper()
	if o.Logger == nil {
		o.Logger, _ = reltest.Logger(t)
	}
	m, err := Open(path, o)
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	return m
}

func TestMailbox_PutGetDelete(t *testing.T) {
	m := open(t, filepath.Join(t.TempDir(), "mb.db"), Options{Verbose: true})
	defer m.Close()

	if _, err := m.Get("x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v, wanted ErrNotFound", err)
	}
	if err := m.Put("b", []byte("two")); err != nil {
		t.Fatal(err)
	}
	if err := m.Put("a", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := m.Put("b", []byte("deux")); err != nil {
		t.Fatal(err)
	}
	if a, err := m.Get("b"); err != nil || string(a) != "deux" {
		t.Fatalf("Get(b) = %q, %v; wanted deux", a, err)
	}
	names, err := m.Names()
	if err != nil {
		t.Fatal(err)
	}
	if e := []string{"a", "b"}; !slices.Equal(names, e) {
		t.Fatalf("Names() = %q, wanted %q", names, e)
	}

	if err := m.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(missing) err = %v, wanted ErrNotFound", err)
	}
	if _, err := m.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(deleted) err = %v, wanted ErrNotFound", err)
	}
}

func TestMailbox_GetReturnsCopy(t *testing.T) {
	m := open(t, filepath.Join(t.TempDir(), "mb.db"), Options{})
	defer m.Close()
	if err := m.Put("k", []byte("value")); err != nil {
		t.Fatal(err)
	}
	a, err := m.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	a[0] = 'V'
	if b, _ := m.Get("k"); string(b) != "value" {
		t.Fatalf("stored value changed to %q", b)
	}
}

func TestMailbox_SendReceive(t *testing.T) {
	for _, enc := range []relative.Encoding{relative.MsgPack, relative.JSON, relative.CBOR, relative.Binary} {
		t.Run(enc.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mb.db")
			m := open(t, path, Options{Encoding: enc, Bucket: "ptrs"})
			if err := Send(m, "primes", relative.FromData(&primes)); err != nil {
				t.Fatal(err)
			}
			if err := m.Close(); err != nil {
				t.Fatal(err)
			}

			r := open(t, path, Options{Encoding: enc, Bucket: "ptrs", ReadOnly: true})
			defer r.Close()
			p, err := Receive[relative.Data, [4]uint16](r, "primes")
			if err != nil {
				t.Fatalf("Receive: %v", err)
			}
			if a, e := *relative.Deref(p), primes; a != e {
				t.Fatalf("primes = %v, wanted %v", a, e)
			}
			if _, err := Receive[relative.Data, [5]uint8](r, "primes"); !errors.Is(err, relative.ErrTypeMismatch) {
				t.Fatalf("Receive wrong type err = %v, wanted ErrTypeMismatch", err)
			}
			if _, err := Receive[relative.Data, [4]uint16](r, "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Receive missing err = %v, wanted ErrNotFound", err)
			}
		})
	}
}

func TestMailbox_ForeignCodec(t *testing.T) {
	foreign := relative.NewCodec(relative.Options{BuildID: func() uuid.UUID {
		return uuid.MustParse("00000000-0000-5000-8000-0000000000ff")
	}})
	path := filepath.Join(t.TempDir(), "mb.db")
	m := open(t, path, Options{Codec: foreign})
	defer m.Close()
	if err := Send(m, "other", relative.FromData(&other)); err != nil {
		t.Fatal(err)
	}

	local := &Mailbox{bdb: m.bdb, bucket: m.bucket, enc: m.enc, codec: relative.DefaultCodec(), logger: m.logger}
	if _, err := Receive[relative.Data, [5]uint8](local, "other"); !errors.Is(err, relative.ErrCrossBinary) {
		t.Fatalf("Receive err = %v, wanted ErrCrossBinary", err)
	}
}

func TestMailbox_CorruptedSlot(t *testing.T) {
	m := open(t, filepath.Join(t.TempDir(), "mb.db"), Options{Encoding: relative.Binary})
	defer m.Close()
	if err := m.Put("bad", []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	_, err := Receive[relative.Data, [4]uint16](m, "bad")
	var de *relative.DataError
	if !errors.As(err, &de) || !strings.Contains(err.Error(), `"bad"`) {
		t.Fatalf("Receive err = %v, wanted *DataError mentioning the slot", err)
	}
}

func TestOpen_ReadOnlyMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"), Options{ReadOnly: true})
	if err == nil {
		t.Fatalf("Open(missing, ReadOnly) succeeded")
	}
}

func TestMailbox_EmptyReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mb.db")
	open(t, path, Options{Bucket: "a"}).Close()

	r := open(t, path, Options{Bucket: "b", ReadOnly: true})
	defer r.Close()
	if _, err := r.Get("x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get err = %v, wanted ErrNotFound", err)
	}
	if names, err := r.Names(); err != nil || len(names) != 0 {
		t.Fatalf("Names() = %q, %v; wanted empty", names, err)
	}
	if a, e := r.Path(), path; a != e {
		t.Fatalf("Path() = %q, wanted %q", a, e)
	}
}

func TestMailbox_CrossProcess(t *testing.T) {
	const envPath = "MAILBOX_TEST_PATH"
	if reltest.IsChild() {
		r := open(t, os.Getenv(envPath), Options{ReadOnly: true})
		defer r.Close()
		p, err := Receive[relative.Data, [4]uint16](r, "primes")
		if err != nil {
			t.Fatal(err)
		}
		if a, e := *relative.Deref(p), [4]uint16{2, 3, 5, 8}; a != e {
			t.Fatalf("primes = %v, wanted %v", a, e)
		}
		reltest.Succeed(t, p.String())
		return
	}

	path := filepath.Join(t.TempDir(), "mb.db")
	m := open(t, path, Options{})
	if err := Send(m, "primes", relative.FromData(&primes)); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	reltest.Spawn(t, "TestMailbox_CrossProcess", envPath+"="+path)
}
