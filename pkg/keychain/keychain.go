// Package keychain stores secret bytes in the OS-native secret facility
// (macOS Keychain, Secret Service on Linux, Windows Credential Manager).
//
// Only opaque (service, account) references leave this package. The
// metadata store persists references, never secret bytes; this package
// persists secret bytes, never metadata.
package keychain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// MaxAccountLength caps the sanitized label portion of an account id.
const MaxAccountLength = 64

// Sentinel errors returned by secret stores.
var (
	// ErrUnavailable indicates the underlying OS facility could not be
	// reached or did not respond in time. Transient; the caller may retry.
	ErrUnavailable = errors.New("keychain: secret store unavailable")

	// ErrEmptyRef indicates a reference with a blank service or account.
	ErrEmptyRef = errors.New("keychain: empty service or account in reference")

	// ErrEmptySecret indicates an attempt to store a zero-length secret.
	ErrEmptySecret = errors.New("keychain: refusing to store empty secret")
)

// Ref addresses one entry in the secret store.
type Ref struct {
	Service string
	Account string
}

// String renders the reference for error messages and reports. Safe to
// log: a reference identifies where a secret lives, not what it is.
func (r Ref) String() string {
	return r.Service + "/" + r.Account
}

// Store is the surface the vault needs from a secret backend.
//
// Absence is not an error: Get returns (nil, nil) for a missing entry and
// Delete reports false without failing. Every other failure is surfaced.
type Store interface {
	// Put writes the secret under ref, replacing any previous value.
	Put(ref Ref, secret []byte) error

	// Get returns the secret stored under ref, or (nil, nil) if absent.
	Get(ref Ref) ([]byte, error)

	// Delete removes the entry under ref and reports whether an entry
	// was actually removed.
	Delete(ref Ref) (bool, error)
}

// NewRef derives a unique reference for a credential with the given label.
//
// The service name embeds the creation time and the account embeds a
// random suffix, so two credentials whose labels differ only in
// punctuation (or are identical) can never collide. The sanitized label
// is kept in the account purely so entries are recognizable in the OS
// keychain viewer.
func NewRef(prefix, label string) Ref {
	return Ref{
		Service: fmt.Sprintf("%s-%d", prefix, time.Now().UnixMilli()),
		Account: sanitizeLabel(label) + "-" + uuid.NewString()[:8],
	}
}

// sanitizeLabel reduces a user-supplied label to a keychain-safe account
// fragment: NFC-normalized, non-alphanumeric runes replaced with "_".
func sanitizeLabel(label string) string {
	label = norm.NFC.String(strings.TrimSpace(label))

	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	s := b.String()
	if len(s) > MaxAccountLength {
		s = s[:MaxAccountLength]
	}
	if s == "" {
		s = "secret"
	}
	return s
}

// validateRef rejects blank references before they reach the OS facility.
func validateRef(ref Ref) error {
	if ref.Service == "" || ref.Account == "" {
		return ErrEmptyRef
	}
	return nil
}
