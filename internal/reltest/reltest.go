// Package reltest contains helpers for tests that pass relative pointers
// between a test process and child copies of itself.
package reltest

import (
	"bytes"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
)

// ChildEnv is set in the environment of processes started by Spawn.
const ChildEnv = "RELATIVE_TEST_CHILD"

// SuccessToken is printed by a child that completed its checks.
const SuccessToken = "success_token_relative"

// IsChild reports whether the current test binary was started by Spawn.
func IsChild() bool {
	return os.Getenv(ChildEnv) != ""
}

// Succeed prints SuccessToken followed by a description of what was verified.
func Succeed(t testing.TB, what string) {
	t.Helper()
	os.Stdout.WriteString(SuccessToken + " " + what + "\n")
}

// Spawn re-runs the current test binary restricted to the given top-level
// test, with env appended to the environment, and returns its output. t fails
// if the child fails or does not print SuccessToken.
func Spawn(t testing.TB, test string, env ...string) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	cmd := testCommand(exe, test)
	cmd.Env = append(os.Environ(), ChildEnv+"=1")
	cmd.Env = append(cmd.Env, env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("child %s failed: %v\n%s", test, err, out)
	}
	if !bytes.Contains(out, []byte(SuccessToken)) {
		t.Fatalf("child %s did not report success:\n%s", test, out)
	}
	return string(out)
}

// BuildPIE compiles the tests of the package in the current directory as a
// position-independent executable and returns its path. t is skipped in short
// mode, without a go command, or where PIE builds are not supported.
func BuildPIE(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("building a PIE test binary is slow")
	}
	gocmd, err := exec.LookPath("go")
	if err != nil {
		t.Skipf("go command not found: %v", err)
	}
	if b, err := os.ReadFile("/proc/sys/kernel/randomize_va_space"); err == nil && strings.TrimSpace(string(b)) == "0" {
		t.Skip("address space randomization is disabled")
	}
	exe := filepath.Join(t.TempDir(), "pie.test")
	cmd := exec.Command(gocmd, "test", "-c", "-buildmode=pie", "-o", exe, ".")
	out, err := cmd.CombinedOutput()
	if err != nil {
		if bytes.Contains(out, []byte("not supported")) {
			t.Skipf("-buildmode=pie: %s", bytes.TrimSpace(out))
		}
		t.Fatalf("go test -c -buildmode=pie: %v\n%s", err, out)
	}
	return exe
}

// Run runs the given top-level test from the test binary exe as a regular
// (non-child) test process and returns its output. t fails unless the test
// passes.
func Run(t testing.TB, exe, test string, env ...string) string {
	t.Helper()
	cmd := testCommand(exe, test, "-test.v")
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %s failed: %v\n%s", filepath.Base(exe), test, err, out)
	}
	if !bytes.Contains(out, []byte("--- PASS: "+test+" ")) {
		t.Fatalf("%s %s did not pass:\n%s", filepath.Base(exe), test, out)
	}
	return string(out)
}

func testCommand(exe, test string, args ...string) *exec.Cmd {
	args = append([]string{"-test.run=^" + regexp.QuoteMeta(test) + "$", "-test.count=1"}, args...)
	return exec.Command(exe, args...)
}

// Logger returns a debug-level logger that writes to t.Log, and a function
// returning everything logged so far.
func Logger(t testing.TB) (*slog.Logger, func() string) {
	w := &logWriter{t: t}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
	}))
	return logger, w.String
}

type logWriter struct {
	t   testing.TB
	mut sync.Mutex
	buf strings.Builder
}

func (c *logWriter) Write(buf []byte) (int, error) {
	msg := string(buf)
	origLen := len(msg)
	c.mut.Lock()
	c.buf.WriteString(msg)
	c.mut.Unlock()
	msg = strings.TrimSuffix(msg, "\n")
	c.t.Log(msg)
	return origLen, nil
}

func (c *logWriter) String() string {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.buf.String()
}
