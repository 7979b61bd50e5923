package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "projectnav.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projectnav.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	s2.Close()
}

func TestCategoriesSeeded(t *testing.T) {
	s := openTestStore(t)

	cats, err := s.Categories()
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(cats) != len(DefaultCategories) {
		t.Fatalf("expected %d categories, got %d", len(DefaultCategories), len(cats))
	}

	found := make(map[string]bool)
	for _, c := range cats {
		found[c] = true
	}
	for _, want := range DefaultCategories {
		if !found[want] {
			t.Errorf("missing seeded category %q", want)
		}
	}
}

func TestMasterPasswordRecord(t *testing.T) {
	s := openTestStore(t)

	has, err := s.HasMasterPassword()
	if err != nil {
		t.Fatalf("HasMasterPassword failed: %v", err)
	}
	if has {
		t.Error("expected fresh store to have no master password")
	}

	if _, err := s.MasterPasswordRecord(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	if err := s.SetMasterPasswordRecord("encoded-record"); err != nil {
		t.Fatalf("SetMasterPasswordRecord failed: %v", err)
	}

	has, err = s.HasMasterPassword()
	if err != nil {
		t.Fatalf("HasMasterPassword failed: %v", err)
	}
	if !has {
		t.Error("expected master password to exist after set")
	}

	rec, err := s.MasterPasswordRecord()
	if err != nil {
		t.Fatalf("MasterPasswordRecord failed: %v", err)
	}
	if rec != "encoded-record" {
		t.Errorf("expected stored record, got %q", rec)
	}
}

func TestMasterPasswordSetGuard(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetMasterPasswordRecord("first"); err != nil {
		t.Fatalf("SetMasterPasswordRecord failed: %v", err)
	}

	// A second set must fail and leave the original record intact.
	if err := s.SetMasterPasswordRecord("second"); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}

	rec, err := s.MasterPasswordRecord()
	if err != nil {
		t.Fatalf("MasterPasswordRecord failed: %v", err)
	}
	if rec != "first" {
		t.Errorf("original record overwritten: got %q", rec)
	}
}
