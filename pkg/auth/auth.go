// Package auth implements master password hashing and verification.
//
// The vault never stores the master password itself. Setup derives a
// verifier with PBKDF2-SHA512 over a fresh random salt; unlock recomputes
// the derivation with the stored parameters and compares in constant time.
//
// # Example Usage
//
//	rec, err := auth.HashPassword("correct-horse-battery")
//	// persist rec.Encode() in the settings table
//
//	ok, err := auth.VerifyPassword(candidate, rec)
package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters.
const (
	// SaltLength is the salt size in bytes (256 bits).
	SaltLength = 32

	// KeyLength is the derived key size in bytes (512-bit digest width).
	KeyLength = 64

	// Iterations is the PBKDF2 round count, sized to cost on the order
	// of 100ms per derivation on commodity hardware.
	Iterations = 100000

	// Algorithm identifies the derivation in encoded records.
	Algorithm = "pbkdf2-sha512"
)

// Sentinel errors returned by record decoding.
var (
	// ErrMalformedRecord indicates a stored record that cannot be parsed.
	ErrMalformedRecord = errors.New("auth: malformed master password record")

	// ErrUnknownAlgorithm indicates a record derived with an algorithm
	// this build does not support.
	ErrUnknownAlgorithm = errors.New("auth: unknown digest algorithm")
)

// Record holds the persisted master password verifier. It contains no
// reusable key material: the hash only supports equality checks against
// a freshly derived candidate.
type Record struct {
	Algorithm  string
	Iterations int
	Salt       []byte
	Hash       []byte
}

// HashPassword derives a fresh verifier Record for the given password.
// Every call generates a new random salt, so two records for the same
// password differ while both verify correctly.
func HashPassword(password string) (*Record, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("auth: failed to generate salt: %w", err)
	}

	hash := pbkdf2.Key([]byte(password), salt, Iterations, KeyLength, sha512.New)

	return &Record{
		Algorithm:  Algorithm,
		Iterations: Iterations,
		Salt:       salt,
		Hash:       hash,
	}, nil
}

// VerifyPassword reports whether password matches the stored record.
//
// The comparison runs in constant time regardless of where the first
// mismatching byte occurs. A wrong password is a normal false return,
// never an error; errors are reserved for records this build cannot
// evaluate at all.
func VerifyPassword(password string, rec *Record) (bool, error) {
	if rec == nil {
		return false, ErrMalformedRecord
	}
	if rec.Algorithm != Algorithm {
		return false, ErrUnknownAlgorithm
	}
	if rec.Iterations <= 0 || len(rec.Salt) == 0 || len(rec.Hash) == 0 {
		return false, ErrMalformedRecord
	}

	hash := pbkdf2.Key([]byte(password), rec.Salt, rec.Iterations, len(rec.Hash), sha512.New)
	defer SecureWipe(hash)

	return subtle.ConstantTimeCompare(hash, rec.Hash) == 1, nil
}

// Encode serializes the record as "algorithm$iterations$salt$hash" with
// hex-encoded binary fields, suitable for the settings table.
func (r *Record) Encode() string {
	return strings.Join([]string{
		r.Algorithm,
		strconv.Itoa(r.Iterations),
		hex.EncodeToString(r.Salt),
		hex.EncodeToString(r.Hash),
	}, "$")
}

// DecodeRecord parses a record previously produced by Encode.
func DecodeRecord(s string) (*Record, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 4 {
		return nil, ErrMalformedRecord
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return nil, ErrMalformedRecord
	}

	salt, err := hex.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return nil, ErrMalformedRecord
	}

	hash, err := hex.DecodeString(parts[3])
	if err != nil || len(hash) == 0 {
		return nil, ErrMalformedRecord
	}

	return &Record{
		Algorithm:  parts[0],
		Iterations: iterations,
		Salt:       salt,
		Hash:       hash,
	}, nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation. Used to destroy
// derived keys and password buffers once they are no longer needed.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive ensures the write operations are not optimized away
	// by the compiler since b is still "in use" after the loop.
	runtime.KeepAlive(b)
}
