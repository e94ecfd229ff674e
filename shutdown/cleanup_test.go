package shutdown

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCleanupPartialWrites(t *testing.T) {
	dir := t.TempDir()
	files := map[string]bool{
		"edudiff_20240101_120000_ab12cd34.png.tmp":  false,
		"edudiff_20240101_120000_ab12cd34.json.tmp": false,
		"edudiff_20240101_120000_ab12cd34.png":      true,
	}
	for name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "keep.tmp"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := CleanupPartialWrites(testLogger(t), dir)(context.Background()); err != nil {
		t.Fatalf("cleanup error = %v", err)
	}

	for name, kept := range files {
		_, err := os.Stat(filepath.Join(dir, name))
		if exists := err == nil; exists != kept {
			t.Errorf("%s exists = %v, want %v", name, exists, kept)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.tmp")); err != nil {
		t.Error("directories must not be removed")
	}
}

func TestCleanupPartialWrites_MissingDir(t *testing.T) {
	fn := CleanupPartialWrites(testLogger(t), filepath.Join(t.TempDir(), "missing"))
	if err := fn(context.Background()); err != nil {
		t.Errorf("error = %v, want nil", err)
	}
}

type fakeCloser struct{ err error }

func (f fakeCloser) Close() error { return f.err }

func TestCloser(t *testing.T) {
	want := errors.New("closed twice")
	if err := Closer(fakeCloser{err: want})(context.Background()); err != want {
		t.Errorf("error = %v, want %v", err, want)
	}
}
