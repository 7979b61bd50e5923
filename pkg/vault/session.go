// Package vault implements the credential vault session: the
// locked/unlocked state machine and the orchestration between the
// metadata store and the OS keychain.
//
// A Session lives for one process. It starts locked, unlocks against
// the master password record, and gates every credential operation on
// the unlocked state. Secret bytes flow only between the keychain and
// the caller; they never touch the metadata store or any log.
package vault

import (
	"errors"
	"fmt"
	"sync"

	"projectnav/pkg/audit"
	"projectnav/pkg/auth"
	"projectnav/pkg/clipboard"
	"projectnav/pkg/keychain"
	"projectnav/pkg/store"
)

// Errors returned by session operations.
var (
	// ErrNotInitialized indicates no master password has been set up.
	ErrNotInitialized = errors.New("vault: master password has not been set")

	// ErrAlreadyInitialized indicates setup was attempted on an
	// initialized vault. The existing record is never overwritten.
	ErrAlreadyInitialized = errors.New("vault: master password is already set")

	// ErrVaultLocked indicates an operation that requires the unlocked
	// state. No side effect has occurred.
	ErrVaultLocked = errors.New("vault: vault is locked")

	// ErrCredentialNotFound indicates the referenced credential does not
	// exist in the metadata store.
	ErrCredentialNotFound = errors.New("vault: credential not found")

	// ErrProjectNotFound indicates the referenced project does not exist.
	ErrProjectNotFound = errors.New("vault: project not found")

	// ErrSecretMissing indicates credential metadata exists but the
	// keychain holds no entry under its reference. A data-integrity
	// condition, distinct from ErrCredentialNotFound so callers can
	// explain the discrepancy instead of claiming the credential is gone.
	ErrSecretMissing = errors.New("vault: secret store entry missing for credential")

	// ErrOrphanedSecret indicates a secret was written to the keychain
	// but the metadata write failed. The wrapped message names the
	// keychain reference so the orphan can be reported and purged.
	ErrOrphanedSecret = errors.New("vault: secret stored but metadata write failed")

	// ErrPersistence indicates a metadata store failure.
	ErrPersistence = errors.New("vault: metadata store failure")

	// ErrIncompleteDelete indicates a cascading project delete removed
	// only some credentials. The accompanying report names the rest.
	ErrIncompleteDelete = errors.New("vault: some credentials could not be removed")
)

// Session is the process-lifetime vault handle. The zero lock state is
// locked; there is no persistence of the unlocked state across restarts.
//
// All state transitions and store/keychain calls are serialized behind
// one mutex, so a Lock can never race an in-flight credential write.
type Session struct {
	store   *store.Store
	secrets keychain.Store
	clip    *clipboard.Guard
	audit   *audit.Logger
	prefix  string

	mu       sync.Mutex
	unlocked bool
}

// NewSession builds a locked session over its collaborators. prefix
// namespaces this installation's entries in the OS keychain.
func NewSession(st *store.Store, secrets keychain.Store, clip *clipboard.Guard, auditLog *audit.Logger, prefix string) *Session {
	return &Session{
		store:   st,
		secrets: secrets,
		clip:    clip,
		audit:   auditLog,
		prefix:  prefix,
	}
}

// HasMasterPassword reports whether the vault has ever been set up.
// Available while locked.
func (s *Session) HasMasterPassword() (bool, error) {
	return s.store.HasMasterPassword()
}

// IsLocked reports the current lock state. Available while locked.
func (s *Session) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unlocked
}

// Setup creates the master password record and unlocks the session.
// It fails with ErrAlreadyInitialized if a record exists; a second
// setup can never overwrite the original verifier.
func (s *Session) Setup(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	has, err := s.store.HasMasterPassword()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if has {
		return ErrAlreadyInitialized
	}

	rec, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if err := s.store.SetMasterPasswordRecord(rec.Encode()); err != nil {
		if errors.Is(err, store.ErrAlreadyInitialized) {
			return ErrAlreadyInitialized
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Setup transitions straight to unlocked: the user who just chose
	// the password does not need to repeat it.
	s.unlocked = true
	_ = s.audit.LogSuccess(audit.OpVaultSetup, "")
	return nil
}

// Unlock verifies the password and transitions to unlocked. It fails
// closed: false is returned, and the session stays locked, when no
// record exists or verification fails. A wrong password is a normal
// false return, never an error.
func (s *Session) Unlock(password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := s.store.MasterPasswordRecord()
	if errors.Is(err, store.ErrNotInitialized) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	rec, err := auth.DecodeRecord(encoded)
	if err != nil {
		return false, err
	}

	ok, err := auth.VerifyPassword(password, rec)
	if err != nil {
		return false, err
	}
	if !ok {
		_ = s.audit.LogError(audit.OpVaultUnlockFailed, "", "invalid master password")
		return false, nil
	}

	s.unlocked = true
	_ = s.audit.LogSuccess(audit.OpVaultUnlock, "")
	return true, nil
}

// Lock transitions to locked. Idempotent: locking a locked session is a
// no-op. Secrets already handed out are the caller's responsibility; the
// session only stops issuing new ones.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unlocked {
		s.unlocked = false
		_ = s.audit.LogSuccess(audit.OpVaultLock, "")
	}
}

// requireUnlocked must be called with s.mu held.
func (s *Session) requireUnlocked() error {
	if !s.unlocked {
		return ErrVaultLocked
	}
	return nil
}

// CreateParams carries the fields of a new credential. Secret holds the
// secret bytes; everything else is metadata.
type CreateParams struct {
	ProjectID *int64
	Category  string
	Label     string
	Username  string
	Host      string
	Port      int
	Notes     string
	Secret    []byte
}

// Create stores a new credential: secret bytes into the keychain first,
// metadata second. If the keychain write fails no metadata row is
// created. If the metadata write fails after the secret was stored, the
// error wraps ErrOrphanedSecret and names the keychain reference. The
// keychain offers no transactional rollback, so the orphan is reported,
// not silently retried or deleted.
func (s *Session) Create(p CreateParams) (*store.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}
	if p.Label == "" {
		return nil, errors.New("vault: credential label is required")
	}
	if p.Category == "" {
		return nil, errors.New("vault: credential category is required")
	}
	if len(p.Secret) == 0 {
		return nil, errors.New("vault: credential secret is required")
	}

	ref := keychain.NewRef(s.prefix, p.Label)
	if err := s.secrets.Put(ref, p.Secret); err != nil {
		_ = s.audit.LogError(audit.OpCredentialCreate, p.Label, err.Error())
		return nil, err
	}

	cred, err := s.store.InsertCredential(&store.Credential{
		ProjectID: p.ProjectID,
		Category:  p.Category,
		Label:     p.Label,
		Username:  p.Username,
		Host:      p.Host,
		Port:      p.Port,
		Ref:       ref,
		Notes:     p.Notes,
	})
	if err != nil {
		_ = s.audit.LogError(audit.OpCredentialCreate, p.Label, err.Error())
		return nil, fmt.Errorf("%w: keychain entry %s: %v", ErrOrphanedSecret, ref, err)
	}

	_ = s.audit.LogSuccess(audit.OpCredentialCreate, p.Label)
	return cred, nil
}

// List returns credential metadata ordered by category then label.
// With a project id it is filtered to that project; otherwise all
// credentials are returned, annotated with their project's name.
// Secret bytes are never included.
func (s *Session) List(projectID *int64) ([]store.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}

	var (
		creds []store.Credential
		err   error
	)
	if projectID != nil {
		creds, err = s.store.CredentialsByProject(*projectID)
	} else {
		creds, err = s.store.Credentials()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return creds, nil
}

// Reveal returns the secret bytes for a credential.
func (s *Session) Reveal(id int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}
	secret, cred, err := s.fetchSecret(id)
	if err != nil {
		return nil, err
	}

	_ = s.audit.LogSuccess(audit.OpCredentialReveal, cred.Label)
	return secret, nil
}

// CopyToClipboard places the secret on the system clipboard and arms
// the exposure timer. The returned channel closes once the clear
// decision has run (or the copy is superseded). Nothing reaches the
// clipboard when the secret cannot be retrieved.
func (s *Session) CopyToClipboard(id int64) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}
	secret, cred, err := s.fetchSecret(id)
	if err != nil {
		return nil, err
	}

	done, err := s.clip.Copy(secret)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to write clipboard: %w", err)
	}
	auth.SecureWipe(secret)

	_ = s.audit.LogSuccess(audit.OpCredentialCopy, cred.Label)
	return done, nil
}

// ClearClipboard cancels any pending exposure timer and empties the
// clipboard immediately. Available while locked: shutdown paths call
// it to make sure a copied secret does not outlive the process.
func (s *Session) ClearClipboard() error {
	return s.clip.ClearNow()
}

// fetchSecret resolves a credential and its secret bytes. Must be
// called with s.mu held.
func (s *Session) fetchSecret(id int64) ([]byte, *store.Credential, error) {
	cred, err := s.store.Credential(id)
	if errors.Is(err, store.ErrCredentialNotFound) {
		return nil, nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	secret, err := s.secrets.Get(cred.Ref)
	if err != nil {
		return nil, nil, err
	}
	if secret == nil {
		_ = s.audit.LogError(audit.OpCredentialReveal, cred.Label, "secret store entry missing")
		return nil, nil, fmt.Errorf("%w: credential %d (%s)", ErrSecretMissing, cred.ID, cred.Label)
	}
	return secret, cred, nil
}

// Delete removes a credential, keychain entry first. If the keychain
// delete fails the metadata row is retained and the error surfaces, so
// metadata never outlives its secret. A keychain entry that is already
// absent is fine; the metadata row is removed regardless.
func (s *Session) Delete(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlocked(); err != nil {
		return false, err
	}
	return s.deleteLocked(id)
}

// deleteLocked implements Delete. Must be called with s.mu held.
func (s *Session) deleteLocked(id int64) (bool, error) {
	cred, err := s.store.Credential(id)
	if errors.Is(err, store.ErrCredentialNotFound) {
		return false, ErrCredentialNotFound
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if _, err := s.secrets.Delete(cred.Ref); err != nil {
		_ = s.audit.LogError(audit.OpCredentialDelete, cred.Label, err.Error())
		return false, err
	}

	if _, err := s.store.DeleteCredential(id); err != nil {
		// The secret is gone but its metadata row remains: an orphaned
		// row pointing at nothing. Surfaced, never swallowed.
		_ = s.audit.LogError(audit.OpCredentialDelete, cred.Label, err.Error())
		return false, fmt.Errorf("%w: credential %d metadata retained after secret removal: %v",
			ErrPersistence, id, err)
	}

	_ = s.audit.LogSuccess(audit.OpCredentialDelete, cred.Label)
	return true, nil
}

// DeleteFailure names one credential a cascading delete could not
// fully remove, and why.
type DeleteFailure struct {
	ID    int64
	Label string
	Err   error
}

// DeleteReport summarizes a cascading project delete.
type DeleteReport struct {
	Removed []int64
	Failed  []DeleteFailure
}

// DeleteProject removes a project and every credential under it, one
// credential at a time using the same secret-first sequence as Delete.
// On partial failure the project row is retained and the report names
// exactly which credentials were not removed; the error is
// ErrIncompleteDelete, never a silent abort.
func (s *Session) DeleteProject(projectID int64) (*DeleteReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}

	if _, err := s.store.Project(projectID); err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	creds, err := s.store.CredentialsByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	report := &DeleteReport{}
	for _, cred := range creds {
		if _, err := s.deleteLocked(cred.ID); err != nil {
			report.Failed = append(report.Failed, DeleteFailure{
				ID:    cred.ID,
				Label: cred.Label,
				Err:   err,
			})
			continue
		}
		report.Removed = append(report.Removed, cred.ID)
	}

	if len(report.Failed) > 0 {
		_ = s.audit.LogError(audit.OpProjectDelete, "",
			fmt.Sprintf("%d of %d credentials not removed", len(report.Failed), len(creds)))
		return report, ErrIncompleteDelete
	}

	if err := s.store.DeleteProject(projectID); err != nil {
		return report, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	_ = s.audit.LogSuccess(audit.OpProjectDelete, "")
	return report, nil
}
