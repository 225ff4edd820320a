package logstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "skeenode/pkg/logstore"
)

func TestLocalStore_StoreAndRetrieve(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	body := []byte(`{"output":"hello"}`)
	ref, err := store.Store(context.Background(), "job-123", body)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := store.Retrieve(context.Background(), ref)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("got %q, want %q", got, body)
	}
}

func TestLocalStore_CreatesBaseDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected %s not to exist yet", dir)
	}

	if _, err := NewLocalStore(dir); err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected NewLocalStore to create %s: %v", dir, err)
	}
}

func TestLocalStore_RetrieveUnknownReference(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	if _, err := store.Retrieve(context.Background(), "job-does-not-exist"); err == nil {
		t.Fatalf("expected an error retrieving a reference that was never stored")
	}
}
