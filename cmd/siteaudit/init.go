package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/siteaudit/internal/config"
)

//go:embed templates/siteaudit.yaml
var configTemplate embed.FS

const templatePath = "templates/siteaudit.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a siteaudit configuration file",
		Long: `Init writes a commented .siteaudit configuration file.

The file lists the default stakeholders and shows how to describe an
organization's site: its URL, mission statement, crawl limits and URL
patterns.

Examples:
  # Create .siteaudit in the current directory
  siteaudit init

  # Create the file at a specific path
  siteaudit init -o ~/.config/siteaudit/config.yaml

  # Overwrite an existing file
  siteaudit init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to describe the organizations you audit:")
	fmt.Fprintln(out, "  - Site URL and mission statement")
	fmt.Fprintln(out, "  - Stakeholder groups")
	fmt.Fprintln(out, "  - Page limits and URL patterns")
	return nil
}
