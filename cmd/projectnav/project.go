package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"projectnav/pkg/store"
	"projectnav/pkg/vault"

	"github.com/spf13/cobra"
)

var (
	projectAddPath     string
	projectAddClient   string
	projectAddPlatform string
	projectAddTags     string
	projectAddNotes    string

	projectEditName     string
	projectEditPath     string
	projectEditClient   string
	projectEditPlatform string
	projectEditTags     string
	projectEditNotes    string

	projectRmWithCredentials bool
)

func init() {
	rootCmd.AddCommand(projectCmd)

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectEditCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectOpenCmd)
	projectCmd.AddCommand(projectRmCmd)
	projectCmd.AddCommand(projectLinkCmd)
	projectCmd.AddCommand(projectUnlinkCmd)

	projectAddCmd.Flags().StringVarP(&projectAddPath, "path", "p", "", "Project root directory (required)")
	projectAddCmd.Flags().StringVar(&projectAddClient, "client", "", "Client name")
	projectAddCmd.Flags().StringVar(&projectAddPlatform, "platform", "", "Platform (e.g. wordpress, rails)")
	projectAddCmd.Flags().StringVar(&projectAddTags, "tags", "", "Comma-separated tags")
	projectAddCmd.Flags().StringVar(&projectAddNotes, "notes", "", "Free-form notes")
	_ = projectAddCmd.MarkFlagRequired("path")

	projectEditCmd.Flags().StringVar(&projectEditName, "name", "", "New project name")
	projectEditCmd.Flags().StringVarP(&projectEditPath, "path", "p", "", "New root directory")
	projectEditCmd.Flags().StringVar(&projectEditClient, "client", "", "New client name")
	projectEditCmd.Flags().StringVar(&projectEditPlatform, "platform", "", "New platform")
	projectEditCmd.Flags().StringVar(&projectEditTags, "tags", "", "Comma-separated tags (replaces existing)")
	projectEditCmd.Flags().StringVar(&projectEditNotes, "notes", "", "New notes")

	projectRmCmd.Flags().BoolVar(&projectRmWithCredentials, "with-credentials", false,
		"Also delete the project's credentials and their keychain secrets")
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage cataloged projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a project to the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := &store.Project{
			Name:     args[0],
			RootPath: projectAddPath,
			Client:   projectAddClient,
			Platform: projectAddPlatform,
			Notes:    projectAddNotes,
		}
		p.Tags = splitTags(projectAddTags)

		created, err := st.CreateProject(p)
		if err != nil {
			return fmt.Errorf("failed to add project: %w", err)
		}
		fmt.Printf("Project '%s' added with id %d\n", created.Name, created.ID)
		return nil
	},
}

var projectEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Update a project's catalog fields",
	Long: `Update a project's catalog fields. Only the flags given change;
everything else keeps its current value. --tags replaces the whole
tag list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		p, err := st.Project(id)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if !flags.Changed("name") && !flags.Changed("path") && !flags.Changed("client") &&
			!flags.Changed("platform") && !flags.Changed("tags") && !flags.Changed("notes") {
			return errors.New("nothing to change (see 'projectnav project edit --help')")
		}

		if flags.Changed("name") {
			p.Name = projectEditName
		}
		if flags.Changed("path") {
			p.RootPath = projectEditPath
		}
		if flags.Changed("client") {
			p.Client = projectEditClient
		}
		if flags.Changed("platform") {
			p.Platform = projectEditPlatform
		}
		if flags.Changed("tags") {
			p.Tags = splitTags(projectEditTags)
		}
		if flags.Changed("notes") {
			p.Notes = projectEditNotes
		}

		if err := st.UpdateProject(p); err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}
		fmt.Printf("Project %d updated\n", id)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, most recently opened first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := st.Projects()
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects cataloged")
			return nil
		}

		for _, p := range projects {
			line := fmt.Sprintf("%d\t%s\t%s", p.ID, p.Name, p.RootPath)
			if p.Client != "" {
				line += "\t" + p.Client
			}
			if len(p.Tags) > 0 {
				line += fmt.Sprintf("\t[%s]", strings.Join(p.Tags, ","))
			}
			if p.LastOpenedAt != nil {
				line += fmt.Sprintf("\t(opened %s)", p.LastOpenedAt.Format("2006-01-02"))
			}
			fmt.Println(line)
		}
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a project's details and links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		p, err := st.Project(id)
		if err != nil {
			return err
		}

		fmt.Printf("Name:     %s\n", p.Name)
		fmt.Printf("Path:     %s\n", p.RootPath)
		if p.Client != "" {
			fmt.Printf("Client:   %s\n", p.Client)
		}
		if p.Platform != "" {
			fmt.Printf("Platform: %s\n", p.Platform)
		}
		if len(p.Tags) > 0 {
			fmt.Printf("Tags:     %s\n", strings.Join(p.Tags, ", "))
		}
		if p.Notes != "" {
			fmt.Printf("Notes:    %s\n", p.Notes)
		}
		fmt.Printf("Created:  %s\n", p.CreatedAt.Format(time.RFC3339))
		if p.LastOpenedAt != nil {
			fmt.Printf("Opened:   %s\n", p.LastOpenedAt.Format(time.RFC3339))
		}
		if len(p.Links) > 0 {
			fmt.Println("Links:")
			for _, link := range p.Links {
				fmt.Printf("  %d\t%s\t%s\n", link.ID, link.Label, link.URL)
			}
		}

		credentials, err := st.CredentialsByProject(p.ID)
		if err != nil {
			return err
		}
		if len(credentials) > 0 {
			fmt.Println("Credentials:")
			for _, c := range credentials {
				fmt.Printf("  %d\t%s\t%s\n", c.ID, c.Category, c.Label)
			}
		}
		return nil
	},
}

var projectOpenCmd = &cobra.Command{
	Use:   "open [id]",
	Short: "Print a project's path and record the access",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		p, err := st.Project(id)
		if err != nil {
			return err
		}
		if err := st.TouchProjectOpened(id); err != nil {
			return err
		}

		fmt.Println(p.RootPath)
		return nil
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Remove a project from the catalog",
	Long: `Remove a project from the catalog.

By default the project's credentials are kept and detached. With
--with-credentials each credential's keychain secret is deleted first,
then its metadata; the command reports any entry it could not remove.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		if !projectRmWithCredentials {
			if err := st.DeleteProject(id); err != nil {
				return err
			}
			fmt.Printf("Project %d removed; its credentials were kept\n", id)
			return nil
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}

		report, err := session.DeleteProject(id)
		if err != nil && !errors.Is(err, vault.ErrIncompleteDelete) {
			return err
		}

		for _, removed := range report.Removed {
			fmt.Printf("Removed credential %d\n", removed)
		}
		if len(report.Failed) > 0 {
			for _, failure := range report.Failed {
				fmt.Printf("Failed to remove credential %d (%s): %v\n",
					failure.ID, failure.Label, failure.Err)
			}
			return fmt.Errorf("project %d kept: %d credential(s) could not be removed", id, len(report.Failed))
		}

		fmt.Printf("Project %d and %d credential(s) removed\n", id, len(report.Removed))
		return nil
	},
}

var projectLinkCmd = &cobra.Command{
	Use:   "link [project-id] [label] [url]",
	Short: "Attach a labeled URL to a project",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		link, err := st.AddProjectLink(id, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Link %d added to project %d\n", link.ID, id)
		return nil
	},
}

var projectUnlinkCmd = &cobra.Command{
	Use:   "unlink [link-id]",
	Short: "Remove a project link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		if err := st.RemoveProjectLink(id); err != nil {
			return err
		}
		fmt.Printf("Link %d removed\n", id)
		return nil
	},
}

// splitTags parses a comma-separated tag list, dropping blanks.
func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// parseID parses a numeric id argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
