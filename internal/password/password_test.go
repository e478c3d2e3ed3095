package password

import (
	"testing"

	"github.com/zalando/go-keyring"
)

func TestStoreFetchClearRoundTrip(t *testing.T) {
	keyring.MockInit()

	c := New("com.example.App-abc123")
	if err := c.Store("s3cr3t"); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := c.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != "s3cr3t" {
		t.Errorf("got %q", got)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	got, err = c.Fetch()
	if err != nil {
		t.Fatalf("Fetch after Clear: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty password after Clear, got %q", got)
	}
}

func TestStoreEmptyPasswordIsNoOp(t *testing.T) {
	keyring.MockInit()

	c := New("com.example.App-xyz")
	if err := c.Store(""); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := c.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty password, got %q", got)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	keyring.MockInit()

	c := New("com.example.App-idempotent")
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear on empty entry should not error: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("second Clear should not error: %v", err)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	keyring.MockInit()

	a := New("com.example.AppA")
	b := New("com.example.AppB")
	if err := a.Store("secretA"); err != nil {
		t.Fatalf("Store a: %v", err)
	}
	got, err := b.Fetch()
	if err != nil {
		t.Fatalf("Fetch b: %v", err)
	}
	if got != "" {
		t.Errorf("expected b's session to be unaffected by a's store, got %q", got)
	}
}
