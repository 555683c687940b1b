package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ops-agent/internal/application/agent"
	"ops-agent/internal/domain/model"
)

type logsOpts struct {
	*rootOpts
	offset int
}

func newLogsCommand(parent *rootOpts) *cobra.Command {
	opts := &logsOpts{rootOpts: parent}
	cmd := &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Print the log of a job",
		Args:  cobra.ExactArgs(1),
		RunE:  opts.RunE,
	}
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "First line to print")
	return cmd
}

func (opts *logsOpts) RunE(cmd *cobra.Command, args []string) error {
	return opts.withAgent(cmd.Context(), func(a *agent.Agent) error {
		jl, err := a.JobLog(cmd.Context(), args[0], opts.offset)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, line := range jl.Lines {
			fmt.Fprintln(out, line)
		}
		if jl.Job != nil && jl.Job.Status == model.JobStatusRunning {
			fmt.Fprintf(cmd.ErrOrStderr(), "job still running, continue with --offset %d\n", jl.NextOffset)
		}
		return nil
	})
}
