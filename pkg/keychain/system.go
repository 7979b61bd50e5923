package keychain

import (
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"
)

// DefaultTimeout bounds a single OS keychain call. A wedged platform
// daemon (e.g. an unresponsive Secret Service) must not freeze the vault
// session, so calls that exceed the timeout fail with ErrUnavailable.
const DefaultTimeout = 5 * time.Second

// System is the Store backed by the operating system keychain via
// zalando/go-keyring.
type System struct {
	timeout time.Duration
}

// NewSystem returns a System store. A non-positive timeout selects
// DefaultTimeout.
func NewSystem(timeout time.Duration) *System {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &System{timeout: timeout}
}

// Put writes the secret under ref, replacing any previous value.
func (s *System) Put(ref Ref, secret []byte) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	if len(secret) == 0 {
		return ErrEmptySecret
	}

	err := s.call(func() error {
		return keyring.Set(ref.Service, ref.Account, string(secret))
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, ref, err)
	}
	return nil
}

// Get returns the secret stored under ref, or (nil, nil) if absent.
func (s *System) Get(ref Ref) ([]byte, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	var value string
	err := s.call(func() error {
		v, err := keyring.Get(ref.Service, ref.Account)
		value = v
		return err
	})
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, ref, err)
	}
	return []byte(value), nil
}

// Delete removes the entry under ref. A missing entry is not an error.
func (s *System) Delete(ref Ref) (bool, error) {
	if err := validateRef(ref); err != nil {
		return false, err
	}

	err := s.call(func() error {
		return keyring.Delete(ref.Service, ref.Account)
	})
	if errors.Is(err, keyring.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", ErrUnavailable, ref, err)
	}
	return true, nil
}

// errTimeout distinguishes a timed-out call inside call().
var errTimeout = errors.New("call timed out")

// call runs fn with the configured timeout. The goroutine running fn is
// abandoned on timeout; go-keyring offers no cancellation, so this only
// caps how long the session path blocks.
func (s *System) call(fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(s.timeout):
		return fmt.Errorf("%w after %v", errTimeout, s.timeout)
	}
}
