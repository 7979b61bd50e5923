package main

import (
	"errors"
	"fmt"
	"strings"

	"projectnav/pkg/vault"

	"github.com/spf13/cobra"
)

const minMasterPasswordLength = 8

func init() {
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(statusCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Set the master password for the credential vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		has, err := session.HasMasterPassword()
		if err != nil {
			return err
		}
		if has {
			return errors.New("vault already initialized; the master password cannot be replaced")
		}

		password1, err := readPassword("Enter master password: ")
		if err != nil {
			return err
		}
		if len(password1) < minMasterPasswordLength {
			return fmt.Errorf("master password must be at least %d characters", minMasterPasswordLength)
		}

		password2, err := readPassword("Confirm master password: ")
		if err != nil {
			return err
		}
		if password1 != password2 {
			return errors.New("passwords do not match")
		}

		if err := session.Setup(password1); err != nil {
			if errors.Is(err, vault.ErrAlreadyInitialized) {
				return errors.New("vault already initialized; the master password cannot be replaced")
			}
			return fmt.Errorf("failed to set up vault: %w", err)
		}

		fmt.Printf("Vault initialized at %s\n", cfg.DataDir)
		fmt.Println("The vault is unlocked for this invocation.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog and vault status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		has, err := session.HasMasterPassword()
		if err != nil {
			return err
		}

		projects, err := st.Projects()
		if err != nil {
			return err
		}
		credentials, err := st.CredentialCount()
		if err != nil {
			return err
		}
		categories, err := st.Categories()
		if err != nil {
			return err
		}

		fmt.Printf("Data directory: %s\n", cfg.DataDir)
		if has {
			fmt.Println("Vault:          initialized")
		} else {
			fmt.Println("Vault:          not initialized (run 'projectnav setup')")
		}
		fmt.Printf("Projects:       %d\n", len(projects))
		fmt.Printf("Credentials:    %d\n", credentials)
		fmt.Printf("Clipboard TTL:  %s\n", cfg.ClipboardTTL())
		fmt.Printf("Categories:     %s\n", strings.Join(categories, ", "))
		return nil
	},
}
