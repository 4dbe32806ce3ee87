package client

import (
	"os"
	"path/filepath"
	"testing"

	"camps-pdf/internal/domain"
)

func TestFileSessionStore_RoundTrip(t *testing.T) {
	store, err := NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected no session, got %+v", loaded)
	}

	session := &Session{
		AccessToken:  "acc",
		RefreshToken: "ref",
		Principal:    &Principal{ID: "u1", Email: "a@b.com", Role: domain.RoleUser, IsActive: true},
	}
	if err := store.Save(session); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err = store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.AccessToken != "acc" || loaded.RefreshToken != "ref" || loaded.Principal.ID != "u1" {
		t.Fatalf("unexpected session: %+v", loaded)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear must be a no-op: %v", err)
	}
	if loaded, _ := store.Load(); loaded != nil {
		t.Fatalf("expected cleared session")
	}
}

func TestFileSessionStore_RejectsPartialSession(t *testing.T) {
	store, err := NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := store.Save(&Session{AccessToken: "acc"}); err == nil {
		t.Fatalf("expected error persisting session without principal")
	}
	if err := store.Save(nil); err == nil {
		t.Fatalf("expected error persisting nil session")
	}
}

func TestFileSessionStore_DiscardsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store, err := NewFileSessionStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected corrupt session discarded")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected corrupt file removed")
	}
}
