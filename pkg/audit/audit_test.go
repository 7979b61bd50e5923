package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogAndVerify(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	if err := l.LogSuccess(OpVaultSetup, ""); err != nil {
		t.Fatalf("LogSuccess failed: %v", err)
	}
	if err := l.LogSuccess(OpCredentialCreate, "prod-db"); err != nil {
		t.Fatalf("LogSuccess failed: %v", err)
	}
	if err := l.LogError(OpVaultUnlockFailed, "", "invalid master password"); err != nil {
		t.Fatalf("LogError failed: %v", err)
	}

	count, err := l.Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 verified records, got %d", count)
	}
}

func TestLabelIsHMACed(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	if err := l.LogSuccess(OpCredentialReveal, "super-secret-label"); err != nil {
		t.Fatalf("LogSuccess failed: %v", err)
	}

	data, err := os.ReadFile(currentLogFile(t, dir))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if strings.Contains(string(data), "super-secret-label") {
		t.Error("plaintext label leaked into audit log")
	}
}

func TestChainContinuesAcrossLoggers(t *testing.T) {
	dir := t.TempDir()

	l1, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if err := l1.LogSuccess(OpVaultSetup, ""); err != nil {
		t.Fatalf("LogSuccess failed: %v", err)
	}

	// A second process picks up where the first left off.
	l2, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if err := l2.LogSuccess(OpVaultUnlock, ""); err != nil {
		t.Fatalf("LogSuccess failed: %v", err)
	}

	count, err := l2.Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 verified records, got %d", count)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	if err := l.LogSuccess(OpVaultSetup, ""); err != nil {
		t.Fatalf("LogSuccess failed: %v", err)
	}
	if err := l.LogSuccess(OpVaultUnlock, ""); err != nil {
		t.Fatalf("LogSuccess failed: %v", err)
	}

	// Flip the result of the first record.
	path := currentLogFile(t, dir)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	var event Event
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("failed to parse record: %v", err)
	}
	event.Result = ResultError
	forged, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal forged record: %v", err)
	}
	lines[0] = string(forged)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), FileMode); err != nil {
		t.Fatalf("failed to write forged log: %v", err)
	}

	if _, err := l.Verify(); err == nil {
		t.Error("expected Verify to detect the forged record")
	}
}

func TestKeyFilePersists(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewLogger(dir); err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	key1, err := os.ReadFile(filepath.Join(dir, KeyFileName))
	if err != nil {
		t.Fatalf("failed to read key file: %v", err)
	}

	if _, err := NewLogger(dir); err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	key2, err := os.ReadFile(filepath.Join(dir, KeyFileName))
	if err != nil {
		t.Fatalf("failed to read key file: %v", err)
	}

	if string(key1) != string(key2) {
		t.Error("audit key regenerated on second open")
	}
}

func currentLogFile(t *testing.T, dir string) string {
	t.Helper()
	return filepath.Join(dir, time.Now().UTC().Format("2006-01")+".jsonl")
}
