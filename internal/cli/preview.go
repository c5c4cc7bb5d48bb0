package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clinmesh/clinsync/internal/models"
)

// PreviewOptions holds flags for the preview command.
type PreviewOptions struct {
	*RootOptions
	Since string
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PreviewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "preview <remote-node-id>",
		Short: "Show what a pull from the remote node would transfer",
		Long: `Show what a pull from the remote node would transfer.

Fetches the remote manifest without importing anything. Without --since the
node's stored watermark for the remote is used.

Example:
  syncctl preview 7d4a1c2e-... --since 2026-08-01T00:00:00Z`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "only count records updated after this RFC3339 time")

	return cmd
}

func runPreview(opts *PreviewOptions, rawNodeID string, cmd *cobra.Command) error {
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

	manifest, err := client.Preview(cmd.Context(), nodeID, since)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Remote node: %s (%s)\n", manifest.NodeName, manifest.NodeID)
	fmt.Fprintf(out, "Generated:   %s\n", manifest.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if manifest.Since != nil {
		fmt.Fprintf(out, "Since:       %s\n", manifest.Since.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Fprintln(out, "Since:       (full pull)")
	}
	fmt.Fprintln(out)

	for _, kind := range models.KindOrder {
		stat := manifest.Kinds[kind]
		line := fmt.Sprintf("  %-12s %6d", kind, stat.Count)
		if stat.TotalBytes > 0 {
			line += fmt.Sprintf("  (%d bytes)", stat.TotalBytes)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
