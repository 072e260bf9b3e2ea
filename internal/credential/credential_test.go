package credential

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v := NewVerifier("test-server-secret", nil)
	t.Cleanup(v.Close)
	return v
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := newTestVerifier(t)

	encrypted, err := v.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if !IsEncrypted(encrypted) {
		t.Fatalf("encrypted form not recognized: %q", encrypted)
	}

	plain, err := v.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plain != "hunter2" {
		t.Fatalf("round trip mismatch: got %q", plain)
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	v := newTestVerifier(t)

	first, err := v.Encrypt("same-password")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	second, err := v.Encrypt("same-password")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if first == second {
		t.Fatal("two encryptions of the same password must differ")
	}
}

func TestMatchesPlaintextSchedulesUpgrade(t *testing.T) {
	v := NewVerifier("test-server-secret", nil)

	var (
		mu       sync.Mutex
		upgraded string
	)
	applied := make(chan struct{})

	ok := v.Matches("legacy-password", "legacy-password", func(encrypted string) error {
		mu.Lock()
		upgraded = encrypted
		mu.Unlock()
		close(applied)
		return nil
	})
	if !ok {
		t.Fatal("exact plaintext match should succeed")
	}

	select {
	case <-applied:
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade was never applied")
	}
	v.Close()

	mu.Lock()
	defer mu.Unlock()
	if !IsEncrypted(upgraded) {
		t.Fatalf("upgrade should store the encrypted form, got %q", upgraded)
	}

	// The migrated value must keep matching the same password.
	if !v.Matches(upgraded, "legacy-password", nil) {
		t.Fatal("migrated credential no longer matches")
	}
}

func TestMatchesPlaintextMismatchDoesNotUpgrade(t *testing.T) {
	v := newTestVerifier(t)

	called := false
	ok := v.Matches("legacy-password", "wrong", func(string) error {
		called = true
		return nil
	})
	if ok {
		t.Fatal("mismatch should not succeed")
	}
	if called {
		t.Fatal("mismatch must not schedule an upgrade")
	}
}

func TestMatchesEncrypted(t *testing.T) {
	v := newTestVerifier(t)

	encrypted, err := v.Encrypt("s3cret")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if !v.Matches(encrypted, "s3cret", nil) {
		t.Fatal("encrypted credential should match its password")
	}
	if v.Matches(encrypted, "other", nil) {
		t.Fatal("encrypted credential must not match a different password")
	}
}

func TestMatchesCorruptedEncryptedFallsBack(t *testing.T) {
	v := newTestVerifier(t)

	// Looks encrypted (single colon) but is not valid hex. The fallback is a
	// raw comparison against the stored value itself.
	stored := "not:hex"
	if !v.Matches(stored, "not:hex", nil) {
		t.Fatal("fallback should compare the raw stored value")
	}
	if v.Matches(stored, "something-else", nil) {
		t.Fatal("fallback must still reject non-matching input")
	}
}

func TestUpgradeFailureDoesNotAffectResult(t *testing.T) {
	v := NewVerifier("test-server-secret", nil)

	ok := v.Matches("plain", "plain", func(string) error {
		return errTest
	})
	if !ok {
		t.Fatal("login result must not depend on the upgrade outcome")
	}
	v.Close()
}

var errTest = errors.New("write-back failed")

func TestIsEncrypted(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"plain", false},
		{"iv:ct", true},
		{"a:b:c", false},
		{"", false},
		{strings.Repeat("ab", 16) + ":deadbeef", true},
	}
	for _, tc := range cases {
		if got := IsEncrypted(tc.text); got != tc.want {
			t.Errorf("IsEncrypted(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
