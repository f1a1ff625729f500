package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewReleaseCommand creates the release command
func NewReleaseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release <key>",
		Short: "Return an operator_required webhook to processing",
		Long: `Return an operator_required webhook to processing.

The status is reset to received and a processing job is enqueued. The retry
count is kept, so a released webhook that fails again escalates immediately.

Examples:
  webhookctl release WH#ABC`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts, func(ctx context.Context, backend Backend) error {
				key := parseKey(args[0])
				if _, err := backend.Release(ctx, key); err != nil {
					return fmt.Errorf("failed to release %s: %w", key.PartitionKey, err)
				}
				if opts.Format == "json" {
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "{\"released\":%q}\n", key.PartitionKey)
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", key.PartitionKey)
				return err
			})
		},
	}
}
