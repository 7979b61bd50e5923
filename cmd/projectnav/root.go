package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"projectnav/internal/config"
	"projectnav/pkg/audit"
	"projectnav/pkg/clipboard"
	"projectnav/pkg/keychain"
	"projectnav/pkg/store"
	"projectnav/pkg/vault"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfg      *config.Config
	st       *store.Store
	auditLog *audit.Logger
	session  *vault.Session
)

var rootCmd = &cobra.Command{
	Use:   "projectnav",
	Short: "projectnav is a local project catalog with a credential vault",
	Long: `A local catalog of client projects with an attached credential vault.

Credential metadata lives in a local SQLite database; secret values are
kept in the OS keychain and never touch the database or exports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE opens the store and wires the vault session for
	// every subcommand. Completion generation needs neither.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "completion" || cmd.Name() == "help" {
			return nil
		}
		return openSession()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if st == nil {
			return nil
		}
		return st.Close()
	},
}

// openSession loads the config and assembles the store, keychain,
// clipboard guard, audit log and vault session they back.
func openSession() error {
	dir := os.Getenv("PROJECTNAV_DIR")
	if dir == "" {
		var err error
		dir, err = config.DefaultDir()
		if err != nil {
			return err
		}
	}

	var err error
	cfg, err = config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		return err
	}
	if os.Getenv("PROJECTNAV_DIR") != "" {
		cfg.DataDir = dir
	}

	st, err = store.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}

	auditLog, err = audit.NewLogger(cfg.AuditDir())
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	secrets := keychain.NewSystem(cfg.KeychainTimeout())
	guard := clipboard.NewGuard(clipboard.System{}, cfg.ClipboardTTL())
	session = vault.NewSession(st, secrets, guard, auditLog, cfg.KeychainPrefix)
	return nil
}

// ensureUnlocked prompts for the master password if the session is
// still locked. A wrong password is a plain failure, not a retry loop.
func ensureUnlocked() error {
	if !session.IsLocked() {
		return nil
	}

	has, err := session.HasMasterPassword()
	if err != nil {
		return err
	}
	if !has {
		return errors.New("vault not initialized; run 'projectnav setup' first")
	}

	password, err := readPassword("Enter master password: ")
	if err != nil {
		return err
	}

	ok, err := session.Unlock(password)
	if err != nil {
		return fmt.Errorf("failed to unlock vault: %w", err)
	}
	if !ok {
		return errors.New("invalid master password")
	}
	return nil
}

// readPassword reads a password without echo when stdin is a terminal,
// falling back to a plain line read for piped input.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(passwordBytes), nil
	}
	return readLine()
}

// readLine reads a single line from stdin, trimming the trailing newline.
func readLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// readSecret reads a secret value: hidden input on a terminal, raw
// bytes up to EOF when piped so multi-line secrets survive.
func readSecret(prompt string) ([]byte, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Print(prompt)
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return nil, fmt.Errorf("failed to read secret: %w", err)
		}
		return secret, nil
	}

	secret, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	for len(secret) > 0 && (secret[len(secret)-1] == '\n' || secret[len(secret)-1] == '\r') {
		secret = secret[:len(secret)-1]
	}
	return secret, nil
}
