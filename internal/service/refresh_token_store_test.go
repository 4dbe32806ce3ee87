package service

import (
	"testing"
	"time"
)

func TestMemoryRefreshTokenStore(t *testing.T) {
	store := NewMemoryRefreshTokenStore()

	if err := store.Store("jti-1", "user-1", time.Hour); err != nil {
		t.Fatalf("store: %v", err)
	}
	ok, err := store.Exists("jti-1")
	if err != nil || !ok {
		t.Fatalf("expected jti-1 to exist, got ok=%v err=%v", ok, err)
	}

	ok, err = store.Exists("jti-unknown")
	if err != nil || ok {
		t.Fatalf("unknown jti should not exist, got ok=%v err=%v", ok, err)
	}

	if err := store.Revoke("jti-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, _ = store.Exists("jti-1")
	if ok {
		t.Fatalf("jti-1 should be gone after revoke")
	}

	// Revocar algo inexistente no falla.
	if err := store.Revoke("jti-1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}

func TestMemoryRefreshTokenStore_Expiry(t *testing.T) {
	store := NewMemoryRefreshTokenStore()

	if err := store.Store("jti-exp", "user-1", -time.Second); err != nil {
		t.Fatalf("store: %v", err)
	}
	ok, err := store.Exists("jti-exp")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatalf("expired jti should not exist")
	}
}

func TestMemoryRefreshTokenStore_EmptyJTI(t *testing.T) {
	store := NewMemoryRefreshTokenStore()

	if err := store.Store("", "user-1", time.Hour); err != nil {
		t.Fatalf("store empty jti: %v", err)
	}
	ok, _ := store.Exists("")
	if ok {
		t.Fatalf("empty jti should never exist")
	}
}
