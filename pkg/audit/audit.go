// Package audit appends tamper-evident records of vault operations.
//
// Events are written as JSONL files per month under the audit directory.
// Each record carries an HMAC over its significant fields chained to the
// previous record's HMAC, so truncation or edits are detectable. Labels
// are recorded as HMACs, never plaintext; secrets never reach this
// package at all.
package audit

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Operation types recorded by the vault session.
const (
	OpVaultSetup        = "vault.setup"
	OpVaultUnlock       = "vault.unlock"
	OpVaultUnlockFailed = "vault.unlock_failed"
	OpVaultLock         = "vault.lock"

	OpCredentialCreate = "credential.create"
	OpCredentialReveal = "credential.reveal"
	OpCredentialCopy   = "credential.copy"
	OpCredentialDelete = "credential.delete"

	OpProjectDelete = "project.delete"
)

// Result indicates the outcome of an operation.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// File layout constants.
const (
	KeyFileName   = "audit.key"
	StateFileName = "chain.state"
	FileMode      = 0600
	DirMode       = 0700
)

// genesisHash seeds the chain before any record exists.
const genesisHash = "genesis"

// Event is a single audit record.
type Event struct {
	Version   int    `json:"v"`
	ID        string `json:"id"`
	Timestamp string `json:"ts"`
	Operation string `json:"op"`
	LabelHMAC string `json:"label,omitempty"`
	SessionID string `json:"session_id"`
	Result    string `json:"result"`
	Error     string `json:"error,omitempty"`
	Chain     Chain  `json:"chain"`
}

// Chain links a record to its predecessor for tamper detection.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

// chainState is persisted between processes so the chain continues
// across sessions.
type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

// Logger writes HMAC-chained audit events.
type Logger struct {
	dir       string
	hmacKey   []byte
	sessionID string

	mu       sync.Mutex
	sequence int64
	prevHash string
}

// NewLogger opens (creating if necessary) the audit log under dir. The
// HMAC key lives in a 0600 key file in the same directory; it is random,
// generated on first use, and HKDF-expanded before signing.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return nil, fmt.Errorf("audit: failed to create directory: %w", err)
	}

	key, err := loadOrCreateKey(filepath.Join(dir, KeyFileName))
	if err != nil {
		return nil, err
	}

	hmacKey := make([]byte, 32)
	r := hkdf.New(sha256.New, key, nil, []byte("projectnav-audit-v1"))
	if _, err := r.Read(hmacKey); err != nil {
		return nil, fmt.Errorf("audit: failed to derive HMAC key: %w", err)
	}

	l := &Logger{
		dir:       dir,
		hmacKey:   hmacKey,
		sessionID: uuid.NewString(),
		prevHash:  genesisHash,
	}
	if err := l.loadChainState(); err != nil {
		// First run or lost state; the chain restarts from genesis.
		l.sequence = 0
		l.prevHash = genesisHash
	}
	return l, nil
}

// LogSuccess records a successful operation.
func (l *Logger) LogSuccess(op, label string) error {
	return l.log(op, ResultSuccess, label, "")
}

// LogError records a failed operation.
func (l *Logger) LogError(op, label, errMsg string) error {
	return l.log(op, ResultError, label, errMsg)
}

func (l *Logger) log(op, result, label, errMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	event := Event{
		Version:   1,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Operation: op,
		SessionID: l.sessionID,
		Result:    result,
		Error:     errMsg,
	}
	if label != "" {
		event.LabelHMAC = l.hmacString(label)
	}

	l.sequence++
	event.Chain.Sequence = l.sequence
	event.Chain.PrevHash = l.prevHash
	event.Chain.HMAC = l.hmacString(string(recordData(&event)))
	l.prevHash = event.Chain.HMAC

	if err := l.writeEvent(&event); err != nil {
		return err
	}
	return l.saveChainState()
}

// Verify walks every log file in sequence order and checks the HMAC
// chain. It returns the number of verified records; a break in the
// chain or a forged record is an error naming the offending sequence.
func (l *Logger) Verify() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(l.dir, "*.jsonl"))
	if err != nil {
		return 0, fmt.Errorf("audit: failed to list log files: %w", err)
	}
	sort.Strings(files)

	prev := genesisHash
	count := 0
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return count, fmt.Errorf("audit: failed to open %s: %w", file, err)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var event Event
			if err := json.Unmarshal([]byte(line), &event); err != nil {
				f.Close()
				return count, fmt.Errorf("audit: corrupt record in %s: %w", file, err)
			}

			if event.Chain.PrevHash != prev {
				f.Close()
				return count, fmt.Errorf("audit: chain break at sequence %d", event.Chain.Sequence)
			}
			if l.hmacString(string(recordData(&event))) != event.Chain.HMAC {
				f.Close()
				return count, fmt.Errorf("audit: HMAC mismatch at sequence %d", event.Chain.Sequence)
			}

			prev = event.Chain.HMAC
			count++
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return count, fmt.Errorf("audit: failed to read %s: %w", file, err)
		}
		f.Close()
	}
	return count, nil
}

func (l *Logger) hmacString(s string) string {
	mac := hmac.New(sha256.New, l.hmacKey)
	mac.Write([]byte(s))
	return hex.EncodeToString(mac.Sum(nil))
}

// recordData builds the byte string covered by a record's HMAC. The
// chain HMAC itself is excluded; everything else significant is covered.
func recordData(event *Event) []byte {
	return []byte(fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%d|%s",
		event.Version,
		event.ID,
		event.Timestamp,
		event.Operation,
		event.LabelHMAC,
		event.SessionID,
		event.Result,
		event.Error,
		event.Chain.Sequence,
		event.Chain.PrevHash,
	))
}

// writeEvent appends the event to the current month's log file.
func (l *Logger) writeEvent(event *Event) error {
	name := time.Now().UTC().Format("2006-01") + ".jsonl"
	path := filepath.Join(l.dir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FileMode)
	if err != nil {
		return fmt.Errorf("audit: failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.dir, StateFileName))
	if err != nil {
		return err
	}
	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return fmt.Errorf("audit: failed to marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, StateFileName), data, FileMode); err != nil {
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	return nil
}

// loadOrCreateKey reads the audit key file, generating a fresh random
// key on first use.
func loadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != 32 {
			return nil, fmt.Errorf("audit: key file %s is corrupted", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("audit: failed to read key file: %w", err)
	}

	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("audit: failed to generate key: %w", err)
	}
	if err := os.WriteFile(path, key, FileMode); err != nil {
		return nil, fmt.Errorf("audit: failed to write key file: %w", err)
	}
	return key, nil
}
