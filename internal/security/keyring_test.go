package security

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

// setupMockKeyring initializes the go-keyring mock provider and returns
// an enabled KeyringStore that bypasses the real OS keyring.
func setupMockKeyring(t *testing.T) *KeyringStore {
	t.Helper()
	keyring.MockInit()
	return &KeyringStore{enabled: true}
}

func TestNewKeyringStore_WithMockKeyring(t *testing.T) {
	keyring.MockInit()
	if ks := NewKeyringStore(); !ks.IsEnabled() {
		t.Error("expected keyring to be enabled with mock provider")
	}
}

func TestNewKeyringStore_WithFailingKeyring(t *testing.T) {
	keyring.MockInitWithError(errors.New("mock keyring failure"))
	if ks := NewKeyringStore(); ks.IsEnabled() {
		t.Error("expected keyring to be disabled when keyring returns error")
	}
}

func TestKeyringStore_StoreAndGet(t *testing.T) {
	ks := setupMockKeyring(t)

	if err := ks.StoreSVNPassword("https://svn.example.com/repo", "alice", []byte("s3cret")); err != nil {
		t.Fatalf("StoreSVNPassword() error: %v", err)
	}

	got, err := ks.GetSVNPassword("https://svn.example.com/repo/", "alice")
	if err != nil {
		t.Fatalf("GetSVNPassword() error: %v", err)
	}
	if string(got) != "s3cret" {
		t.Errorf("GetSVNPassword() = %q, want %q", got, "s3cret")
	}
}

func TestKeyringStore_GetNotFound(t *testing.T) {
	ks := setupMockKeyring(t)

	got, err := ks.GetSVNPassword("https://svn.example.com/repo", "nobody")
	if err != nil {
		t.Fatalf("GetSVNPassword() error: %v", err)
	}
	if got != nil {
		t.Errorf("GetSVNPassword() = %q, want nil", got)
	}
}

func TestKeyringStore_UsersAreIsolated(t *testing.T) {
	ks := setupMockKeyring(t)
	repo := "svn://svn.example.com/repo"

	_ = ks.StoreSVNPassword(repo, "alice", []byte("a"))
	_ = ks.StoreSVNPassword(repo, "bob", []byte("b"))

	a, _ := ks.GetSVNPassword(repo, "alice")
	b, _ := ks.GetSVNPassword(repo, "bob")
	if string(a) != "a" || string(b) != "b" {
		t.Errorf("got alice=%q bob=%q", a, b)
	}
}

func TestKeyringStore_Delete(t *testing.T) {
	ks := setupMockKeyring(t)
	repo := "https://svn.example.com/repo"

	_ = ks.StoreSVNPassword(repo, "alice", []byte("s3cret"))
	if err := ks.DeleteSVNPassword(repo, "alice"); err != nil {
		t.Fatalf("DeleteSVNPassword() error: %v", err)
	}

	got, err := ks.GetSVNPassword(repo, "alice")
	if err != nil || got != nil {
		t.Errorf("after delete got %q, %v", got, err)
	}

	// Deleting again is not an error.
	if err := ks.DeleteSVNPassword(repo, "alice"); err != nil {
		t.Errorf("second DeleteSVNPassword() error: %v", err)
	}
}

func TestKeyringStore_Disabled(t *testing.T) {
	ks := &KeyringStore{enabled: false}

	if err := ks.StoreSVNPassword("r", "u", []byte("p")); !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("StoreSVNPassword() error = %v", err)
	}
	if _, err := ks.GetSVNPassword("r", "u"); !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("GetSVNPassword() error = %v", err)
	}
	if err := ks.DeleteSVNPassword("r", "u"); !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("DeleteSVNPassword() error = %v", err)
	}
}

func TestKeyringStore_KeyringError(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus unavailable"))
	ks := &KeyringStore{enabled: true}

	if err := ks.StoreSVNPassword("r", "u", []byte("p")); err == nil {
		t.Error("expected StoreSVNPassword() error")
	}
	if _, err := ks.GetSVNPassword("r", "u"); err == nil {
		t.Error("expected GetSVNPassword() error")
	}
}

func TestKeyringStore_InvalidBase64(t *testing.T) {
	ks := setupMockKeyring(t)
	_ = keyring.Set(KeyringService, svnKey("r", "u"), "!!not-base64!!")

	if _, err := ks.GetSVNPassword("r", "u"); err == nil {
		t.Error("expected decode error")
	}
}

func TestKeyringStore_SetEnabled(t *testing.T) {
	ks := &KeyringStore{}
	ks.SetEnabled(true)
	if !ks.IsEnabled() {
		t.Error("expected enabled after SetEnabled(true)")
	}
	ks.SetEnabled(false)
	if ks.IsEnabled() {
		t.Error("expected disabled after SetEnabled(false)")
	}
}
