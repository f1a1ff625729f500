package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarathsp06/hookline/internal/webhooks"
)

// NewStatusCommand creates the status command
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <key>",
		Short: "Show the processing status of a webhook",
		Long: `Show the processing status of a webhook.

The key is either a partition key or the provider event id.

Examples:
  webhookctl status WH#ABC
  webhookctl status evt_1NqZ --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts, func(ctx context.Context, backend Backend) error {
				status, err := backend.GetStatus(ctx, parseKey(args[0]))
				if err != nil {
					return fmt.Errorf("failed to get status: %w", err)
				}
				return writeStatuses(cmd.OutOrStdout(), opts.Format, []webhooks.StatusRecord{status})
			})
		},
	}
}

// ListOptions holds flags for the list command
type ListOptions struct {
	*RootOptions
	Status string
	Limit  int
}

// NewListCommand creates the list command
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List webhooks in a status, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status := webhooks.Status(opts.Status)
			if !status.Valid() {
				return fmt.Errorf("invalid status %q: must be one of %v", opts.Status, webhooks.Statuses)
			}
			return withBackend(cmd.Context(), opts.RootOptions, func(ctx context.Context, backend Backend) error {
				statuses, err := backend.ListByStatus(ctx, status, opts.Limit)
				if err != nil {
					return fmt.Errorf("failed to list webhooks: %w", err)
				}
				return writeStatuses(cmd.OutOrStdout(), opts.Format, statuses)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", string(webhooks.StatusOperatorRequired), "status to list")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum number of webhooks")

	return cmd
}

func withBackend(ctx context.Context, opts *RootOptions, fn func(context.Context, Backend) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(ctx, backend)
}

func writeStatuses(w io.Writer, format string, statuses []webhooks.StatusRecord) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if statuses == nil {
			statuses = []webhooks.StatusRecord{}
		}
		return enc.Encode(statuses)
	}

	if len(statuses) == 0 {
		_, err := fmt.Fprintln(w, "No webhooks found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTATUS\tRETRIES\tUPDATED")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.Key.PartitionKey, s.Status, s.Retries, s.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
