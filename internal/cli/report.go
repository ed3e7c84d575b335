package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/issuedesk/issue-service/internal/app"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/service"
)

// NewReportCommand creates the report command group.
func NewReportCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize and export issues",
	}
	cmd.AddCommand(newReportSummaryCommand(root))
	cmd.AddCommand(newReportExportCommand(root))
	return cmd
}

func addFilterFlags(cmd *cobra.Command, raw *service.RawReportFilter) {
	cmd.Flags().StringVar(&raw.Status, "status", "", "comma separated statuses")
	cmd.Flags().StringVar(&raw.Priority, "priority", "", "comma separated priorities")
	cmd.Flags().StringVar(&raw.DateFrom, "from", "", "created on or after (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&raw.DateTo, "to", "", "created on or before (YYYY-MM-DD or RFC 3339)")
}

func newReportSummaryCommand(root *RootOptions) *cobra.Command {
	var (
		raw    service.RawReportFilter
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print issue counts by status, priority and assignee role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
				filter, err := service.ParseReportFilter(c.Catalog, raw)
				if err != nil {
					return err
				}
				summary, err := c.Reports.Summary(ctx, service.SystemActor(), filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(summary)
				}

				fmt.Fprintln(out, heading("Issue summary"))
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "Total\t%d\n", summary.Total)
				fmt.Fprintf(tw, "Open\t%d\n", summary.Open)
				fmt.Fprintf(tw, "Resolved\t%d\n", summary.Resolved)
				fmt.Fprintf(tw, "High priority\t%d\n", summary.HighPriority)
				fmt.Fprintln(tw, heading("By status"))
				for _, status := range domain.IssueStatuses {
					fmt.Fprintf(tw, "  %s\t%d\n", c.Catalog.StatusLabel(status), summary.ByStatus[status])
				}
				fmt.Fprintln(tw, heading("By priority"))
				for _, priority := range domain.IssuePriorities {
					fmt.Fprintf(tw, "  %s\t%d\n", c.Catalog.PriorityLabel(priority), summary.ByPriority[priority])
				}
				fmt.Fprintln(tw, heading("By assignee role"))
				for _, role := range slices.Sorted(maps.Keys(summary.ByAssigneeRole)) {
					fmt.Fprintf(tw, "  %s\t%d\n", role, summary.ByAssigneeRole[role])
				}
				return tw.Flush()
			})
		},
	}
	addFilterFlags(cmd, &raw)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func newReportExportCommand(root *RootOptions) *cobra.Command {
	var (
		raw    service.RawReportFilter
		format string
		outDir string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an issues report as csv, pdf or xlsx",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
				filter, err := service.ParseReportFilter(c.Catalog, raw)
				if err != nil {
					return err
				}
				doc, err := c.Reports.Export(ctx, service.SystemActor(), format, filter)
				if err != nil {
					return err
				}
				path := out
				if path == "" {
					path = filepath.Join(outDir, doc.Filename)
				}
				if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s (%d bytes)\n", success("✓"), path, len(doc.Body))
				return nil
			})
		},
	}
	addFilterFlags(cmd, &raw)
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv|pdf|xlsx)")
	cmd.Flags().StringVar(&outDir, "dir", ".", "directory for the generated file name")
	cmd.Flags().StringVarP(&out, "out", "o", "", "exact output path; overrides --dir")
	return cmd
}
