// Package commands implements the dsg subcommands.
package commands

import (
	"log/slog"

	"github.com/leapstack-labs/dsg/internal/cli/config"
	"github.com/leapstack-labs/dsg/internal/cli/output"
	"github.com/spf13/cobra"
)

// commandConfig returns the configuration loaded by the root command, or
// loads it from the command's flags when the command runs on its own.
func commandConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg := config.FromContext(cmd.Context()); cfg != nil {
		return cfg, nil
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	return config.Load(cfgFile, cmd.Flags())
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	return config.GetLogger(cmd.Context())
}

func newRenderer(cmd *cobra.Command, mode string, noColor bool) *output.Renderer {
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(mode))
	if noColor {
		r.DisableColor()
	}
	return r
}
