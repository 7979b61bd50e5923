package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"projectnav/internal/cli"
	"projectnav/pkg/vault"

	"github.com/spf13/cobra"
)

var (
	credAddProject  int64
	credAddCategory string
	credAddUsername string
	credAddHost     string
	credAddPort     int
	credAddNotes    string

	credListProject int64
	credListFilter  string

	credRmForce bool
)

func init() {
	rootCmd.AddCommand(credCmd)

	credCmd.AddCommand(credAddCmd)
	credCmd.AddCommand(credListCmd)
	credCmd.AddCommand(credShowCmd)
	credCmd.AddCommand(credCopyCmd)
	credCmd.AddCommand(credRmCmd)

	credAddCmd.Flags().Int64Var(&credAddProject, "project", 0, "Project id to attach the credential to")
	credAddCmd.Flags().StringVarP(&credAddCategory, "category", "c", "", "Category (required, see 'projectnav status')")
	credAddCmd.Flags().StringVarP(&credAddUsername, "username", "u", "", "Username or account name")
	credAddCmd.Flags().StringVar(&credAddHost, "host", "", "Host name or address")
	credAddCmd.Flags().IntVar(&credAddPort, "port", 0, "Port number")
	credAddCmd.Flags().StringVar(&credAddNotes, "notes", "", "Free-form notes")
	_ = credAddCmd.MarkFlagRequired("category")

	credListCmd.Flags().Int64Var(&credListProject, "project", 0, "Only credentials of this project")
	credListCmd.Flags().StringVar(&credListFilter, "filter", "", "Filter labels (substring or glob)")

	credRmCmd.Flags().BoolVarP(&credRmForce, "force", "f", false, "Skip confirmation prompt")
}

var credCmd = &cobra.Command{
	Use:   "cred",
	Short: "Manage vault credentials",
}

var credAddCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Store a new credential in the vault",
	Long: `Store a new credential. The secret value is read from the terminal
without echo, or from stdin when piped:

  projectnav cred add prod-db --category Database --host db.internal --port 5432
  openssl rand -hex 32 | projectnav cred add api-token --category "API Keys"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}

		secret, err := readSecret("Enter secret value: ")
		if err != nil {
			return err
		}

		params := vault.CreateParams{
			Category: credAddCategory,
			Label:    args[0],
			Username: credAddUsername,
			Host:     credAddHost,
			Port:     credAddPort,
			Notes:    credAddNotes,
			Secret:   secret,
		}
		if credAddProject != 0 {
			params.ProjectID = &credAddProject
		}

		cred, err := session.Create(params)
		if err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
		fmt.Printf("Credential '%s' stored with id %d\n", cred.Label, cred.ID)
		return nil
	},
}

var credListCmd = &cobra.Command{
	Use:   "list",
	Short: "List credential metadata (no secrets)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		if credListFilter != "" {
			if err := cli.ValidateFilter(credListFilter); err != nil {
				return err
			}
		}

		var projectID *int64
		if credListProject != 0 {
			projectID = &credListProject
		}

		credentials, err := session.List(projectID)
		if err != nil {
			return err
		}

		shown := 0
		for _, c := range credentials {
			if credListFilter != "" {
				ok, err := cli.MatchesFilter(credListFilter, c.Label)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			shown++

			line := fmt.Sprintf("%d\t%s\t%s", c.ID, c.Category, c.Label)
			if c.Username != "" {
				line += "\t" + c.Username
			}
			if c.Host != "" {
				host := c.Host
				if c.Port != 0 {
					host = fmt.Sprintf("%s:%d", host, c.Port)
				}
				line += "\t" + host
			}
			if c.ProjectName != "" {
				line += fmt.Sprintf("\t(%s)", c.ProjectName)
			}
			fmt.Println(line)
		}

		if shown == 0 {
			fmt.Println("No credentials found")
		}
		return nil
	},
}

var credShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a credential's secret value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := ensureUnlocked(); err != nil {
			return err
		}

		secret, err := session.Reveal(id)
		if err != nil {
			return err
		}

		os.Stdout.Write(secret)
		fmt.Println()
		return nil
	},
}

var credCopyCmd = &cobra.Command{
	Use:   "copy [id]",
	Short: "Copy a credential's secret to the clipboard",
	Long: `Copy a credential's secret to the clipboard. The command waits and
clears the clipboard after the configured interval, unless something
else was copied over it in the meantime.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := ensureUnlocked(); err != nil {
			return err
		}

		done, err := session.CopyToClipboard(id)
		if err != nil {
			return err
		}

		// An interrupt during the wait must not leave the secret on the
		// clipboard past process death.
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		fmt.Printf("Secret copied; clipboard clears in %s\n", cfg.ClipboardTTL())
		select {
		case <-done:
		case <-sigs:
			if err := session.ClearClipboard(); err != nil {
				return fmt.Errorf("failed to clear clipboard: %w", err)
			}
			fmt.Fprintln(os.Stderr, "Interrupted; clipboard cleared")
		}
		return nil
	},
}

var credRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a credential and its keychain secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := ensureUnlocked(); err != nil {
			return err
		}

		if !credRmForce {
			fmt.Printf("Delete credential %d and its keychain secret? [y/N]: ", id)
			response, err := readLine()
			if err != nil {
				return err
			}
			if response = strings.ToLower(response); response != "y" && response != "yes" {
				fmt.Println("Aborted")
				return nil
			}
		}

		if _, err := session.Delete(id); err != nil {
			if errors.Is(err, vault.ErrCredentialNotFound) {
				return fmt.Errorf("credential %d not found", id)
			}
			return fmt.Errorf("failed to delete credential: %w", err)
		}
		fmt.Printf("Credential %d deleted\n", id)
		return nil
	},
}
