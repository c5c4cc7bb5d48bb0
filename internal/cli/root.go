// Package cli implements the syncctl operator command line: preview, pull,
// and status against a running node's local API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// RootOptions holds global flags shared by all subcommands.
type RootOptions struct {
	Server string
	Token  string
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for syncctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Operator control for a clinsync node",
		Long:  "Trigger and inspect data pulls on a running clinsync node.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Token == "" {
				opts.Token = os.Getenv("CLINSYNC_OPERATOR_TOKEN")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", "http://127.0.0.1:8443", "node operator API address")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "operator bearer token (falls back to CLINSYNC_OPERATOR_TOKEN, then a prompt)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// resolveToken prompts for the operator token when neither the flag nor the
// environment supplied one. Input is read without echo.
func (o *RootOptions) resolveToken() (string, error) {
	if o.Token != "" {
		return o.Token, nil
	}

	fmt.Fprint(os.Stderr, "Operator token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	o.Token = string(raw)
	return o.Token, nil
}
