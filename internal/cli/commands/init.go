package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/dsg/internal/cli/config"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new dsg project",
		Long: `Initialize a new dsg project with the default layout.

This creates:
  - dsg.yml configuration file (in-memory DuckDB connection)
  - index.md home page with a sample chart
  - sql/ directory with a sample query
  - pages/ directory with a sample page
  - .gitignore excluding the dist/ output directory`,
		Example: `  # Initialize in the current directory
  dsg init

  # Initialize in a new directory
  dsg init sales-dashboard

  # Overwrite an existing configuration
  dsg init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			mode, _ := cmd.Flags().GetString("output")
			noColor, _ := cmd.Flags().GetBool("no-color")
			return runInit(cmd, dir, force, mode, noColor)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool, mode string, noColor bool) error {
	r := newRenderer(cmd, mode, noColor)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.FileNames[0])
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configPath)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	name := filepath.Base(abs)
	data, err := projectConfigYAML(name, config.DisplayName(name))
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", config.FileNames[0], err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	written, err := copyTemplate(dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	r.Header(2, "Created")
	r.StatusLine(config.FileNames[0], "success", "")
	for _, f := range written {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("dsg project initialized!")
	r.Println("")
	r.Println("Next steps:")
	if dir != "." {
		r.Printf("  cd %s\n", dir)
	}
	r.Println("  dsg build         Build the site into dist/")
	r.Println("  dsg serve --watch Preview with live reload")
	r.Println("  dsg query sales   Preview a query result")

	return nil
}
