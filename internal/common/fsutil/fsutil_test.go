package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	// Set a deterministic HOME for the duration of this test so we never skip.
	origHome, hadHome := os.LookupEnv("HOME")
	origUserProfile, hadUserProfile := os.LookupEnv("USERPROFILE")
	t.Cleanup(func() {
		if hadHome {
			_ = os.Setenv("HOME", origHome)
		} else {
			_ = os.Unsetenv("HOME")
		}
		if hadUserProfile {
			_ = os.Setenv("USERPROFILE", origUserProfile)
		} else {
			_ = os.Unsetenv("USERPROFILE")
		}
	})

	home := t.TempDir()
	// Configure both env vars for cross-platform behavior of os.UserHomeDir.
	_ = os.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		_ = os.Setenv("USERPROFILE", home)
	}
	// raw path unaffected
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// empty path
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// ~ expansion
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	// ~/subdir
	sub := "test-sub"
	exp, err := ExpandHome("~/" + sub)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if runtime.GOOS == "windows" {
		if filepath.Base(exp) != sub {
			t.Fatalf("unexpected expanded path: %q", exp)
		}
	} else {
		expected := filepath.Join(home, sub)
		if exp != expected {
			t.Fatalf("expected %q, got %q", expected, exp)
		}
	}
}

func TestIsDirAndIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !IsDir(dir) || IsDir(file) {
		t.Fatalf("IsDir mismatch")
	}
	if !IsFile(file) || IsFile(dir) {
		t.Fatalf("IsFile mismatch")
	}
	missing := filepath.Join(dir, "missing")
	if IsDir(missing) || IsFile(missing) {
		t.Fatalf("missing path reported as present")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.json")
	dst := filepath.Join(dir, "out", "dst.json")
	if err := os.WriteFile(src, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := CopyFile(src, dst, 0o644); err == nil {
		t.Fatalf("expected error when the destination directory is missing")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(dst, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := CopyFile(src, dst, 0o644); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if b, _ := os.ReadFile(dst); string(b) != `{"a":1}` {
		t.Fatalf("unexpected copy: %q", b)
	}
	if err := CopyFile(filepath.Join(dir, "missing"), dst, 0o644); err == nil {
		t.Fatalf("expected error for a missing source")
	}
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()
	cases := []struct {
		rel []string
		ok  bool
	}{
		{[]string{"blobs", "abc"}, true},
		{[]string{"snapshots", "c0ffee", "config.json"}, true},
		{[]string{"..", "etc", "passwd"}, false},
		{[]string{"snapshots", "../../x"}, false},
		{[]string{"..foo"}, true},
	}
	for _, c := range cases {
		got, err := SafeJoin(root, c.rel...)
		if c.ok && err != nil {
			t.Fatalf("%v: unexpected err %v", c.rel, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("%v: expected traversal error, got %q", c.rel, got)
		}
	}
}
