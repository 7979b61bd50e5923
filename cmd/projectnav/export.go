package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"projectnav/pkg/store"

	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportForce  bool
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "Overwrite existing file without confirmation")
}

// catalogExport is the JSON shape of an export. Credential entries
// carry metadata only; secret values and their keychain references
// stay out of the file.
type catalogExport struct {
	ExportedAt  time.Time          `json:"exported_at"`
	Projects    []store.Project    `json:"projects"`
	Credentials []store.Credential `json:"credentials"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog and credential metadata as JSON",
	Long: `Export the project catalog and credential metadata as JSON.

Secret values are never exported; restoring on another machine means
re-entering secrets into its keychain. The export is safe to move
around, but credential labels and hosts are still sensitive.

Examples:
  # Export to stdout
  projectnav export

  # Export to a file
  projectnav export -o catalog.json --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := st.Projects()
		if err != nil {
			return err
		}
		for i := range projects {
			links, err := st.ProjectLinks(projects[i].ID)
			if err != nil {
				return err
			}
			projects[i].Links = links
		}

		credentials, err := st.Credentials()
		if err != nil {
			return err
		}

		export := catalogExport{
			ExportedAt:  time.Now().UTC(),
			Projects:    projects,
			Credentials: credentials,
		}
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
		data = append(data, '\n')

		if exportOutput == "" {
			os.Stdout.Write(data)
			return nil
		}

		if !exportForce {
			if _, err := os.Stat(exportOutput); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", exportOutput)
			}
		}
		if err := os.WriteFile(exportOutput, data, 0600); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %d projects and %d credential entries to %s\n",
			len(projects), len(credentials), exportOutput)
		return nil
	},
}
