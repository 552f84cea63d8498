package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/spotloo/backend/internal/bootstrap"
	"github.com/spotloo/backend/internal/config"
	"github.com/spotloo/backend/internal/models"
	"github.com/spotloo/backend/internal/services"
)

// backfill recomputes points and contributions for every user from the
// bathroom and rating collections and overwrites the stored totals.
func main() {
	cfg := config.Load()

	reportPath := flag.String("report", cfg.BackfillReport, "write the JSON report to a file path or gs://bucket/object")
	concurrency := flag.Int("concurrency", cfg.BackfillConcurrency, "parallel profile writes")
	flag.Parse()

	if err := run(context.Background(), cfg, *reportPath, *concurrency); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "backfill failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, reportPath string, concurrency int) error {
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	reports, closeReports, err := app.ReportWriter(ctx, reportPath)
	if err != nil {
		return fmt.Errorf("report writer: %w", err)
	}
	defer closeReports()

	app.Reconciler.Concurrency = concurrency
	report, err := app.Reconciler.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(os.Stdout, report)

	if prev, ok := reports.(previousReporter); ok {
		last, err := prev.PreviousReport(ctx)
		if err != nil {
			slog.Warn("reading previous backfill report failed", "path", reportPath, "error", err)
		} else if last != nil {
			printDrift(os.Stdout, last, services.ReportDrift(last, report))
		}
	}

	if reports != nil {
		if err := reports.WriteReport(ctx, report); err != nil {
			slog.Warn("writing backfill report failed", "path", reportPath, "error", err)
		} else {
			color.New(color.FgCyan).Fprintf(os.Stdout, "report written to %s\n", reportPath)
		}
	}
	return nil
}

// previousReporter is implemented by report sinks that can read back the
// last run.
type previousReporter interface {
	PreviousReport(ctx context.Context) (*models.BackfillReport, error)
}

func printDrift(w io.Writer, last *models.BackfillReport, drift []models.PointsDrift) {
	if len(drift) == 0 {
		color.New(color.FgGreen).Fprintf(w, "no drift since run %s\n\n", last.RunID)
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(w, "%d users drifted since run %s\n", len(drift), last.RunID)
	for _, d := range drift {
		fmt.Fprintf(w, "  %-28s %6d -> %d\n", d.UserID, d.Before, d.After)
	}
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, report *models.BackfillReport) {
	title := color.New(color.FgWhite, color.Bold)
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	title.Fprintf(w, "\nBackfill %s\n", report.RunID)
	fmt.Fprintf(w, "  bathrooms scanned: %d\n", report.BathroomsScanned)
	fmt.Fprintf(w, "  ratings scanned:   %d\n", report.RatingsScanned)
	fmt.Fprintf(w, "  users found:       %d\n", report.UsersFound)
	ok.Fprintf(w, "  updated:           %d\n", report.Succeeded)
	if report.Failed > 0 {
		bad.Fprintf(w, "  failed:            %d\n", report.Failed)
		for _, userID := range report.FailedUsers {
			bad.Fprintf(w, "    - %s\n", userID)
		}
	} else {
		fmt.Fprintf(w, "  failed:            0\n")
	}
	fmt.Fprintf(w, "  took:              %s\n\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}
