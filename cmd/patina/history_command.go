package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"patina/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd, ctx, 20)
		},
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd, ctx, limit)
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's per-item outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRun(cmd, ctx, args[0])
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *history.Store) error {
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			})
		},
	}

	historyCmd.AddCommand(listCmd, showCmd, clearCmd)
	return historyCmd
}

func withStore(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func listRuns(cmd *cobra.Command, ctx *commandContext, limit int) error {
	return withStore(ctx, func(store *history.Store) error {
		runs, err := store.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No recorded runs")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, []string{
				run.ID,
				run.StartedAt.Local().Format("2006-01-02 15:04"),
				run.Status,
				fmt.Sprintf("%d", run.TotalItems),
				fmt.Sprintf("%d", run.Completed),
				fmt.Sprintf("%d", run.Failed),
				fmt.Sprintf("%d", run.Cancelled),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Run", "Started", "Status", "Items", "OK", "Failed", "Cancelled"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
		))

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d run(s): %d photos restored, %d failed, %d cancelled\n",
			stats.Runs, stats.ItemsCompleted, stats.ItemsFailed, stats.ItemsCancelled)
		return nil
	})
}

func showRun(cmd *cobra.Command, ctx *commandContext, runID string) error {
	return withStore(ctx, func(store *history.Store) error {
		run, items, err := store.GetRun(cmd.Context(), runID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run %s (%s), started %s, took %s\n",
			run.ID, run.Status,
			run.StartedAt.Local().Format(time.RFC822),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
		)

		rows := make([][]string, 0, len(items))
		for _, item := range items {
			detail := item.Error
			if detail == "" {
				for _, photo := range item.Photos {
					if photo.OutputPath != "" {
						detail = photo.OutputPath
						break
					}
				}
			}
			rows = append(rows, []string{
				item.Name,
				item.Status,
				fmt.Sprintf("%d", item.PhotoCount),
				item.Duration.Round(time.Second).String(),
				detail,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Scan", "Status", "Photos", "Duration", "Detail"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		))
		return nil
	})
}
