package commands

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"ops-agent/internal/application/agent"
	"ops-agent/internal/domain/model"
)

type historyOpts struct {
	*rootOpts
	limit int
}

func newHistoryCommand(parent *rootOpts) *cobra.Command {
	opts := &historyOpts{rootOpts: parent}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent operations",
		RunE:  opts.RunE,
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Number of jobs to show")
	return cmd
}

func (opts *historyOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errWantedNoArgs
	}
	return opts.withAgent(cmd.Context(), func(a *agent.Agent) error {
		jobs, err := a.History(cmd.Context(), opts.limit)
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), jobs)
		return nil
	})
}

func printHistory(w io.Writer, jobs []*model.Job) {
	table := newTable(w, "ID", "ACTION", "REF", "STATUS", "STAGE", "COMMIT", "STARTED", "DURATION")
	for _, j := range jobs {
		table.Append([]string{
			j.ID,
			string(j.Action),
			orDash(j.Ref),
			string(j.Status),
			orDash(string(j.Stage)),
			orDash(j.Commit),
			formatTime(&j.StartedAt),
			j.Duration().Round(time.Second).String(),
		})
	}
	table.Render()
}
