package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"ops-agent/internal/application/agent"
	"ops-agent/internal/domain/model"
)

type statusOpts struct {
	*rootOpts
	json bool
}

func newStatusCommand(parent *rootOpts) *cobra.Command {
	opts := &statusOpts{rootOpts: parent}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the deployed version and whether the service is running",
		RunE:  opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the status as JSON")
	return cmd
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errWantedNoArgs
	}
	return opts.withAgent(cmd.Context(), func(a *agent.Agent) error {
		st, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}
		if opts.json {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	})
}

func printStatus(w io.Writer, st *model.AgentStatus) {
	table := newTable(w)
	table.Append([]string{"Service", st.Service})
	table.Append([]string{"Supervisor", st.Supervisor})
	table.Append([]string{"Port", strconv.Itoa(st.Port)})
	table.Append([]string{"Commit", st.Version.Commit})
	ref := st.Version.Ref
	if st.Version.IsRollback() {
		ref += " (restored from backup)"
	}
	table.Append([]string{"Ref", ref})
	table.Append([]string{"Updated", formatTime(st.Version.UpdatedAt)})
	table.Append([]string{"Active", strconv.FormatBool(st.Active)})
	health := strconv.FormatBool(st.Healthy)
	if st.HealthErr != "" {
		health += " (" + st.HealthErr + ")"
	}
	table.Append([]string{"Healthy", health})
	table.Append([]string{"Backup", strconv.FormatBool(st.HasBackup)})
	table.Append([]string{"Running job", orDash(st.ActiveJob)})
	if st.LastJob != nil {
		table.Append([]string{"Last job", fmt.Sprintf("%s %s %s", st.LastJob.ID, st.LastJob.Action, st.LastJob.Status)})
	}
	table.Render()

	if len(st.Capabilities) == 0 {
		return
	}
	fmt.Fprintln(w)
	names := make([]string, 0, len(st.Capabilities))
	for name := range st.Capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	tools := newTable(w, "TOOL", "VERSION")
	for _, name := range names {
		tools.Append([]string{name, st.Capabilities[name]})
	}
	tools.Render()
}
