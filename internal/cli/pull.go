package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clinmesh/clinsync/internal/models"
)

// PullOptions holds flags for the pull command.
type PullOptions struct {
	*RootOptions
	Since string
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PullOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pull <remote-node-id>",
		Short: "Run one synchronization attempt against the remote node",
		Long: `Run one synchronization attempt against the remote node.

The node handshakes with the remote, fetches everything newer than the
watermark in dependency order, and imports it in a single transaction.
Without --since the stored watermark is used; --since forces a cutoff,
e.g. a zero time for a full re-pull.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "pull records updated after this RFC3339 time instead of the stored watermark")

	return cmd
}

func runPull(opts *PullOptions, rawNodeID string, cmd *cobra.Command) error {
	nodeID, err := uuid.Parse(rawNodeID)
	if err != nil {
		return fmt.Errorf("invalid remote node id: %w", err)
	}
	since, err := parseSince(opts.Since)
	if err != nil {
		return err
	}

	client, err := newAPIClient(opts.RootOptions)
	if err != nil {
		return err
	}

	result, err := client.Pull(cmd.Context(), nodeID, since)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printResult(cmd, result)
	}

	if result.Status != models.SyncStatusCompleted {
		return fmt.Errorf("pull %s", result.Status)
	}
	return nil
}

func printResult(cmd *cobra.Command, result *models.SyncResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status:  %s\n", result.Status)
	if result.Stage != "" {
		fmt.Fprintf(out, "Stage:   %s\n", result.Stage)
	}
	if result.Error != "" {
		fmt.Fprintf(out, "Error:   %s\n", result.Error)
	}
	if len(result.Received) > 0 {
		fmt.Fprintln(out, "Received:")
		for _, kind := range models.KindOrder {
			if n, ok := result.Received[kind]; ok {
				fmt.Fprintf(out, "  %-12s %6d\n", kind, n)
			}
		}
	}
}
