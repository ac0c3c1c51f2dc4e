package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/agen8/internal/domain"
	"github.com/shaiso/agen8/internal/repo"
)

// NewReportsCmd создаёт группу команд для просмотра архива отчётов.
func NewReportsCmd(dbURLFn func() string, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse archived workflow reports",
	}

	cmd.AddCommand(
		newReportsListCmd(dbURLFn, outputFn),
		newReportsShowCmd(dbURLFn, outputFn),
	)

	return cmd
}

func newReportsListCmd(dbURLFn func() string, outputFn func() *Output) *cobra.Command {
	var workflow string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := runContext(cmd)

			filter := repo.ReportFilter{Workflow: workflow, Limit: limit}
			if status != "" {
				filter.Status = domain.ParseReportStatus(status)
				if string(filter.Status) != status {
					return fmt.Errorf("unknown status %q", status)
				}
			}

			pool, err := repo.Connect(ctx, dbURLFn())
			if err != nil {
				return err
			}
			defer pool.Close()

			summaries, err := repo.NewReportRepo(pool).ListRecent(ctx, filter)
			if err != nil {
				return err
			}

			rows := make([][]string, len(summaries))
			for i, s := range summaries {
				rows[i] = []string{
					s.RunID.String(),
					dash(s.Workflow),
					string(s.Status),
					strconv.Itoa(s.NodeCount),
					strconv.Itoa(s.ErrorCount),
					s.FinishedAt.Format("2006-01-02 15:04:05"),
				}
			}

			out.Print([]string{"RUN_ID", "WORKFLOW", "STATUS", "NODES", "ERRORS", "FINISHED"}, rows, summaries)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflow, "workflow", "", "Filter by workflow name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (success, partial, failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newReportsShowCmd(dbURLFn func() string, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show an archived report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := runContext(cmd)

			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			pool, err := repo.Connect(ctx, dbURLFn())
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := repo.NewReportRepo(pool).GetByID(ctx, runID)
			if err != nil {
				return err
			}

			printReport(out, report)
			return nil
		},
	}
}
