// Package commands implements the ops-agent command line.
package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"ops-agent/internal/application/agent"
	"ops-agent/internal/application/config"
	"ops-agent/pkg/log"
)

var errWantedNoArgs = errors.New("expected no arguments")

type rootOpts struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the ops-agent command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOpts{}
	cmd := &cobra.Command{
		Use:           "ops-agent",
		Short:         "Fetch, build and run releases of a single service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultConfigPath, "Path to the JSON configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(
		newOperationCommand(opts, "download", "Fetch a release into the current slot without building or starting it"),
		newOperationCommand(opts, "deploy", "Fetch, build and activate a release, then start the service"),
		newOperationCommand(opts, "upgrade", "Deploy a release, reverting to the previous one if it fails to start"),
		newRollbackCommand(opts),
		newStopCommand(opts),
		newStatusCommand(opts),
		newHistoryCommand(opts),
		newLogsCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// withAgent loads the configuration, builds an agent and runs fn with it.
func (o *rootOpts) withAgent(ctx context.Context, fn func(a *agent.Agent) error) error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	log.InitLog(cfg.LogLevel)

	a, err := agent.NewAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
