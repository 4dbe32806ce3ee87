package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.pdf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLocalBackend_SaveMovesSource(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	src := writeTempFile(t, "contenido pdf")
	if err := backend.Save(context.Background(), "originals/doc.pdf", src); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source should be moved, stat err = %v", err)
	}

	rc, err := backend.Open(context.Background(), "originals/doc.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "contenido pdf" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestLocalBackend_OpenMissing(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	if _, err := backend.Open(context.Background(), "no/existe.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalBackend_DeleteAndExists(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	src := writeTempFile(t, "x")
	if err := backend.Save(context.Background(), "a/b.pdf", src); err != nil {
		t.Fatalf("save: %v", err)
	}

	ok, err := backend.Exists(context.Background(), "a/b.pdf")
	if err != nil || !ok {
		t.Fatalf("expected blob to exist, ok=%v err=%v", ok, err)
	}

	if err := backend.Delete(context.Background(), "a/b.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, _ = backend.Exists(context.Background(), "a/b.pdf")
	if ok {
		t.Fatalf("blob should be gone")
	}

	// Borrar algo inexistente no es un error.
	if err := backend.Delete(context.Background(), "a/b.pdf"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
