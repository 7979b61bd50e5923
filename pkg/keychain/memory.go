package keychain

import "sync"

// Memory is an in-process Store. It backs tests of everything that
// orchestrates secret storage without touching the real OS keychain.
type Memory struct {
	mu      sync.Mutex
	entries map[Ref][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Ref][]byte)}
}

// Put writes the secret under ref, replacing any previous value.
func (m *Memory) Put(ref Ref, secret []byte) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	if len(secret) == 0 {
		return ErrEmptySecret
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[ref] = append([]byte(nil), secret...)
	return nil
}

// Get returns the secret stored under ref, or (nil, nil) if absent.
func (m *Memory) Get(ref Ref) ([]byte, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.entries[ref]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), secret...), nil
}

// Delete removes the entry under ref. A missing entry is not an error.
func (m *Memory) Delete(ref Ref) (bool, error) {
	if err := validateRef(ref); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[ref]; !ok {
		return false, nil
	}
	delete(m.entries, ref)
	return true, nil
}

// Len reports the number of stored entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
