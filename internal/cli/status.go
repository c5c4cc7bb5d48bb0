package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Limit int
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "status",
		Short:         "List recent synchronization attempts, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of attempts to list")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	client, err := newAPIClient(opts.RootOptions)
	if err != nil {
		return err
	}

	resp, err := client.Status(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	out := cmd.OutOrStdout()
	if len(resp.Attempts) == 0 {
		fmt.Fprintln(out, "No synchronization attempts recorded.")
		return nil
	}

	for _, a := range resp.Attempts {
		line := fmt.Sprintf("%s  %-11s  remote=%s", a.StartedAt.Format("2006-01-02 15:04:05"), a.Status, a.RemoteNodeID)
		if a.Stage != "" {
			line += "  stage=" + a.Stage
		}
		total := 0
		for _, n := range a.Received {
			total += n
		}
		if total > 0 {
			line += fmt.Sprintf("  received=%d", total)
		}
		fmt.Fprintln(out, line)
		if a.Error != "" {
			fmt.Fprintf(out, "    error: %s\n", a.Error)
		}
	}
	return nil
}
