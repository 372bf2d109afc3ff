package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"patina/internal/history"
	"patina/internal/logging"
	"patina/internal/pipeline"
	"patina/internal/services/gemini"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		concurrency int
		outputDir   string
		noOutpaint  bool
		noVerify    bool
		noHistory   bool
	)

	cmd := &cobra.Command{
		Use:   "run <scan>...",
		Short: "Restore one or more scanned photo files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "patina.log")},
			})
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}

			items, err := loadItems(args)
			if err != nil {
				return err
			}

			opts := pipeline.OptionsFrom(cfg)
			if cmd.Flags().Changed("concurrency") {
				opts.Concurrency = concurrency
			}
			if strings.TrimSpace(outputDir) != "" {
				opts.OutputDir = outputDir
			}
			if noOutpaint {
				opts.EnableOutpaint = false
			}
			if noVerify {
				opts.EnableVerification = false
			}

			var recorder pipeline.Recorder
			var store *history.Store
			if !noHistory {
				store, err = history.Open(cfg)
				if err != nil {
					if errors.Is(err, history.ErrLocked) {
						fmt.Fprintln(cmd.ErrOrStderr(), "history database busy; this run will not be recorded")
					} else {
						return fmt.Errorf("open history: %w", err)
					}
				} else {
					defer store.Close()
					recorder = store
				}
			}

			client := gemini.NewHTTP(gemini.ConfigFrom(cfg))
			sched := pipeline.NewScheduler(client, logger, recorder)

			run, err := sched.Start(cmd.Context(), items, opts)
			if err != nil {
				return err
			}

			sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-sigCtx.Done()
				if run.Status() == pipeline.RunRunning || run.Status() == pipeline.RunPaused {
					fmt.Fprintln(cmd.ErrOrStderr(), "cancelling run...")
					run.Cancel()
				}
			}()

			streamProgress(cmd, run)
			report := run.Wait()
			stop()

			printReport(cmd, report)
			if report.Failed() > 0 {
				return fmt.Errorf("%d of %d item(s) failed", report.Failed(), len(report.Items))
			}
			if report.Status == pipeline.RunCancelled {
				return context.Canceled
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of items processed simultaneously")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for restored photos (defaults to configured output dir)")
	cmd.Flags().BoolVar(&noOutpaint, "no-outpaint", false, "Skip generative edge fill")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip advisory verification calls")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in history")
	return cmd
}

func loadItems(paths []string) ([]*pipeline.Item, error) {
	items := make([]*pipeline.Item, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read scan %s: %w", path, err)
		}
		items = append(items, pipeline.NewItem(filepath.Base(path), data, mimeForPath(path)))
	}
	return items, nil
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func streamProgress(cmd *cobra.Command, run *pipeline.Run) {
	events, cancel := run.Subscribe()
	defer cancel()

	out := cmd.OutOrStdout()
	tty := isTerminal(out)
	lastLine := ""
	for event := range events {
		line := fmt.Sprintf("[%5.1f%%] %d/%d items  eta %s  %s",
			event.Percent,
			event.FinishedItems,
			event.TotalItems,
			formatETA(event.ETA),
			event.Message,
		)
		if line == lastLine {
			continue
		}
		lastLine = line
		if tty {
			fmt.Fprintf(out, "\r\x1b[2K%s", line)
		} else {
			fmt.Fprintln(out, line)
		}
	}
	if tty && lastLine != "" {
		fmt.Fprintln(out)
	}
}

func formatETA(eta time.Duration) string {
	if eta <= 0 {
		return "--"
	}
	return eta.Round(time.Second).String()
}

func printReport(cmd *cobra.Command, report pipeline.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s (%d completed, %d failed, %d cancelled)\n",
		report.RunID, report.Status, report.Completed(), report.Failed(), report.Cancelled())

	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		detail := ""
		switch item.Status {
		case pipeline.StatusFailed:
			detail = fmt.Sprintf("%s: %s", item.FailedStage, item.Error)
		case pipeline.StatusCompleted:
			detail = outputSummary(item)
		}
		rows = append(rows, []string{
			item.Name,
			string(item.Status),
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

	for _, item := range report.Items {
		for _, photo := range item.Photos {
			if len(photo.Improvements) == 0 {
				continue
			}
			fmt.Fprintf(out, "%s photo %d improvements: %s\n",
				item.Name, photo.Index+1, strings.Join(photo.Improvements, "; "))
		}
	}
}

func outputSummary(item pipeline.ItemReport) string {
	paths := make([]string, 0, len(item.Photos))
	for _, photo := range item.Photos {
		if photo.OutputPath != "" {
			paths = append(paths, filepath.Base(photo.OutputPath))
		}
	}
	return strings.Join(paths, ", ")
}
