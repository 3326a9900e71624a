package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/dsg/internal/devserver"
	"github.com/leapstack-labs/dsg/internal/site"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Host  string
	Port  int
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the site and serve it locally",
		Long: `Build the site and serve the output directory over HTTP.

With --watch, any change to pages, queries, templates or the config file
triggers a full rebuild and open browser tabs reload automatically. A failed
rebuild is logged and the last good build keeps being served.`,
		Example: `  # Serve on the default port
  dsg serve

  # Rebuild on change
  dsg serve --watch --port 3000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := commandConfig(cmd)
			if err != nil {
				return err
			}

			serveCfg := cfg.Serve
			if cmd.Flags().Changed("host") {
				serveCfg.Host = opts.Host
			}
			if cmd.Flags().Changed("port") {
				serveCfg.Port = opts.Port
			}
			if cmd.Flags().Changed("watch") {
				serveCfg.Watch = opts.Watch
			}

			logger := commandLogger(cmd)
			srv := devserver.New(devserver.Config{
				Builder: site.New(cfg.Project(), cfg.ProjectRoot, site.WithLogger(logger)),
				Root:    cfg.ProjectRoot,
				Host:    serveCfg.Host,
				Port:    serveCfg.Port,
				Watch:   serveCfg.Watch,
				Logger:  logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := newRenderer(cmd, cfg.Output, cfg.NoColor)
			r.Println(r.Styles().Bold.Render("Serving at http://" + srv.Addr()))
			r.Println(r.Styles().Muted.Render("Press Ctrl+C to stop"))

			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "Host to listen on (default from config: localhost)")
	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port to listen on (default from config: 8000)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Rebuild when project files change")

	return cmd
}
