package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/dsg/internal/cli/output"
	"github.com/leapstack-labs/dsg/internal/site"
	"github.com/spf13/cobra"
)

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the site",
		Long: `Build the project into static HTML.

Every query file in the queries directory is executed once. The home page and
every page file are rendered with the query results, converted from Markdown
and written to the output directory, one HTML file per page. Any failure
aborts the build before a file is written.`,
		Example: `  # Build the project in the current directory
  dsg build

  # Build another project into a custom directory
  dsg build --project-dir ./reports --output-dir ./public`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := commandConfig(cmd)
			if err != nil {
				return err
			}

			b := site.New(cfg.Project(), cfg.ProjectRoot, site.WithLogger(commandLogger(cmd)))
			res, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}

			r := newRenderer(cmd, cfg.Output, cfg.NoColor)
			return renderBuildResult(r, res, b.OutputDir())
		},
	}
}

// BuildSummary is the JSON form of a build result.
type BuildSummary struct {
	BuildID    string        `json:"build_id"`
	Queries    []string      `json:"queries"`
	Pages      []PageSummary `json:"pages"`
	Files      []string      `json:"files"`
	Output     string        `json:"output"`
	DurationMS int64         `json:"duration_ms"`
}

// PageSummary describes one built page.
type PageSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Route string `json:"route"`
	Home  bool   `json:"home,omitempty"`
}

func renderBuildResult(r *output.Renderer, res *site.Result, outDir string) error {
	if r.Mode() == output.ModeJSON {
		summary := BuildSummary{
			BuildID:    res.BuildID,
			Queries:    res.Queries,
			Files:      res.Files,
			Output:     outDir,
			DurationMS: res.Duration.Milliseconds(),
		}
		for _, page := range res.Pages {
			summary.Pages = append(summary.Pages, PageSummary{ID: page.ID, Title: page.Title, Route: page.Route, Home: page.Home})
		}
		return r.JSON(summary)
	}

	styles := r.Styles()
	r.Header(1, "Build complete")
	r.Println("")
	r.Header(2, "Pages")
	for i, file := range res.Files {
		title := ""
		if i < len(res.Pages) {
			title = res.Pages[i].Title
		}
		r.StatusLine(filepath.ToSlash(file), "success", title)
	}
	r.Println("")
	r.Println(styles.Muted.Render(fmt.Sprintf("%d queries, %d pages written to %s in %s",
		len(res.Queries), len(res.Files), outDir, res.Duration.Round(time.Millisecond))))
	return nil
}
