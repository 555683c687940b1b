package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ops-agent/internal/application/agent"
	"ops-agent/internal/domain/model"
)

type operationOpts struct {
	*rootOpts
	action model.Action
	repo   string
	ref    string
}

func newOperationCommand(parent *rootOpts, action, short string) *cobra.Command {
	opts := &operationOpts{rootOpts: parent, action: model.Action(action)}
	cmd := &cobra.Command{
		Use:     action,
		Short:   short,
		Example: fmt.Sprintf("  ops-agent %s --repo https://github.com/acme/app.git --ref v1.4.0\n  ops-agent %s", action, action),
		RunE:    opts.RunE,
	}
	cmd.Flags().StringVar(&opts.repo, "repo", "", "Git repository to fetch; defaults to default_repo")
	cmd.Flags().StringVar(&opts.ref, "ref", "", "Branch or tag to fetch; defaults to default_ref")
	return cmd
}

func newRollbackCommand(parent *rootOpts) *cobra.Command {
	opts := &operationOpts{rootOpts: parent, action: model.ActionRollback}
	return &cobra.Command{
		Use:   "rollback",
		Short: "Restore the backup release and restart the service",
		RunE:  opts.RunE,
	}
}

func newStopCommand(parent *rootOpts) *cobra.Command {
	opts := &operationOpts{rootOpts: parent, action: model.ActionStop}
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the service, leaving the releases in place",
		RunE:  opts.RunE,
	}
}

func (opts *operationOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errWantedNoArgs
	}
	return opts.withAgent(cmd.Context(), func(a *agent.Agent) error {
		jobID, err := a.Run(cmd.Context(), opts.action, opts.repo, opts.ref)
		if err != nil {
			if jobID != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "job %s failed, see: ops-agent logs %s\n", jobID, jobID)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s succeeded (job %s)\n", opts.action, jobID)
		return nil
	})
}
