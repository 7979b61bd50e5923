package store

import (
	"errors"
	"testing"

	"projectnav/pkg/keychain"
)

func testRef(label string) keychain.Ref {
	return keychain.NewRef("projectnav-test", label)
}

func TestCredentialLifecycle(t *testing.T) {
	s := openTestStore(t)

	p, err := s.CreateProject(&Project{Name: "acme", RootPath: "/p/acme"})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	ref := testRef("prod-db")
	c, err := s.InsertCredential(&Credential{
		ProjectID: &p.ID,
		Category:  "Database",
		Label:     "prod-db",
		Username:  "admin",
		Host:      "db.internal",
		Port:      5432,
		Ref:       ref,
		Notes:     "primary",
	})
	if err != nil {
		t.Fatalf("InsertCredential failed: %v", err)
	}
	if c.ID == 0 {
		t.Fatal("expected non-zero credential id")
	}
	if c.Ref != ref {
		t.Errorf("keychain ref not persisted: got %v", c.Ref)
	}
	if c.ProjectName != "acme" {
		t.Errorf("expected joined project name, got %q", c.ProjectName)
	}

	removed, err := s.DeleteCredential(c.ID)
	if err != nil {
		t.Fatalf("DeleteCredential failed: %v", err)
	}
	if !removed {
		t.Error("expected DeleteCredential to report true")
	}

	if _, err := s.Credential(c.ID); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("expected ErrCredentialNotFound, got %v", err)
	}

	removed, err = s.DeleteCredential(c.ID)
	if err != nil {
		t.Fatalf("DeleteCredential of absent row failed: %v", err)
	}
	if removed {
		t.Error("expected second delete to report false")
	}
}

func TestCredentialOrdering(t *testing.T) {
	s := openTestStore(t)

	// Inserted out of order; listing must sort by category then label.
	for _, c := range []struct{ category, label string }{
		{"Database", "staging-db"},
		{"API Keys", "stripe"},
		{"Database", "prod-db"},
		{"API Keys", "mailgun"},
	} {
		if _, err := s.InsertCredential(&Credential{
			Category: c.category,
			Label:    c.label,
			Ref:      testRef(c.label),
		}); err != nil {
			t.Fatalf("InsertCredential(%s) failed: %v", c.label, err)
		}
	}

	creds, err := s.Credentials()
	if err != nil {
		t.Fatalf("Credentials failed: %v", err)
	}

	want := []string{"mailgun", "stripe", "prod-db", "staging-db"}
	if len(creds) != len(want) {
		t.Fatalf("expected %d credentials, got %d", len(want), len(creds))
	}
	for i, label := range want {
		if creds[i].Label != label {
			t.Errorf("position %d: expected %q, got %q", i, label, creds[i].Label)
		}
	}
}

func TestCredentialsByProject(t *testing.T) {
	s := openTestStore(t)

	p1, err := s.CreateProject(&Project{Name: "one", RootPath: "/p/one"})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	p2, err := s.CreateProject(&Project{Name: "two", RootPath: "/p/two"})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	for _, tc := range []struct {
		project *int64
		label   string
	}{
		{&p1.ID, "one-ssh"},
		{&p2.ID, "two-ssh"},
		{nil, "unassigned"},
	} {
		if _, err := s.InsertCredential(&Credential{
			ProjectID: tc.project,
			Category:  "VPS",
			Label:     tc.label,
			Ref:       testRef(tc.label),
		}); err != nil {
			t.Fatalf("InsertCredential(%s) failed: %v", tc.label, err)
		}
	}

	creds, err := s.CredentialsByProject(p1.ID)
	if err != nil {
		t.Fatalf("CredentialsByProject failed: %v", err)
	}
	if len(creds) != 1 || creds[0].Label != "one-ssh" {
		t.Errorf("unexpected project filter result: %+v", creds)
	}

	n, err := s.CredentialCount()
	if err != nil {
		t.Fatalf("CredentialCount failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 credentials, got %d", n)
	}
}

func TestCredentialProjectDeleteDetaches(t *testing.T) {
	s := openTestStore(t)

	p, err := s.CreateProject(&Project{Name: "fleeting", RootPath: "/p/fleeting"})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	c, err := s.InsertCredential(&Credential{
		ProjectID: &p.ID,
		Category:  "Hosting",
		Label:     "panel",
		Ref:       testRef("panel"),
	})
	if err != nil {
		t.Fatalf("InsertCredential failed: %v", err)
	}

	// Deleting the project row directly (not through the vault) must not
	// drop credential metadata; the row is detached instead so no
	// keychain entry is ever left unaccounted for.
	if err := s.DeleteProject(p.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	got, err := s.Credential(c.ID)
	if err != nil {
		t.Fatalf("Credential failed: %v", err)
	}
	if got.ProjectID != nil {
		t.Errorf("expected detached credential, got project id %d", *got.ProjectID)
	}
	if got.ProjectName != "" {
		t.Errorf("expected empty project name, got %q", got.ProjectName)
	}
}

func TestCredentialValidation(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.InsertCredential(&Credential{Label: "no-category", Ref: testRef("x")}); err == nil {
		t.Error("expected error for missing category")
	}
	if _, err := s.InsertCredential(&Credential{Category: "VPS", Label: "no-ref"}); err == nil {
		t.Error("expected error for missing keychain ref")
	}
}
