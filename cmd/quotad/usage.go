package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/inkwellhq/quotad/adapters/clock"
	"github.com/inkwellhq/quotad/adapters/sqlite"
	"github.com/inkwellhq/quotad/config"
	"github.com/inkwellhq/quotad/domain/usage"
	"github.com/inkwellhq/quotad/ports"
	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect quota records and the consumption log",
	Long: `Inspect the quota state and consumption history of a user.

Examples:
  quotad usage record --user=user_123
  quotad usage summary --user=user_123 --days=7
  quotad usage recent --user=user_123 --limit=20`,
}

var usageRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Show the current quota record for a user",
	RunE:  runUsageRecord,
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show aggregated consumption over a window",
	RunE:  runUsageSummary,
}

var usageRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recent consumption entries",
	RunE:  runUsageRecent,
}

var (
	usageUserID string
	usageDays   int
	usageLimit  int
)

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.AddCommand(usageRecordCmd)
	usageCmd.AddCommand(usageSummaryCmd)
	usageCmd.AddCommand(usageRecentCmd)

	usageRecordCmd.Flags().StringVar(&usageUserID, "user", "", "user ID")
	usageSummaryCmd.Flags().StringVar(&usageUserID, "user", "", "user ID")
	usageSummaryCmd.Flags().IntVar(&usageDays, "days", 7, "window size in days")
	usageRecentCmd.Flags().StringVar(&usageUserID, "user", "", "user ID")
	usageRecentCmd.Flags().IntVar(&usageLimit, "limit", 20, "number of entries to show")
}

// openStores opens the configured sqlite database for offline inspection.
func openStores() (*sqlite.DB, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != "sqlite" {
		return nil, nil, fmt.Errorf("usage inspection requires the sqlite driver")
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, cfg, nil
}

func requireUser() error {
	if usageUserID == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func runUsageRecord(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}

	db, _, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := sqlite.NewUsageStore(db).Load(context.Background(), usageUserID)
	if errors.Is(err, ports.ErrNotFound) {
		fmt.Printf("No record for user %s (none created yet)\n", usageUserID)
		return nil
	}
	if err != nil {
		return err
	}

	limit := fmt.Sprintf("%d", int64(rec.DailyLimit))
	if rec.DailyLimit.IsUnlimited() {
		limit = "unlimited"
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "User:\t%s\n", rec.UserID)
	fmt.Fprintf(w, "Plan:\t%s\n", rec.PlanID)
	fmt.Fprintf(w, "Used today:\t%d\n", rec.QuestionsUsed)
	fmt.Fprintf(w, "Daily limit:\t%s\n", limit)
	fmt.Fprintf(w, "Period start:\t%s\n", rec.PeriodStart.Format("2006-01-02"))
	fmt.Fprintf(w, "Last reset:\t%s\n", rec.LastResetDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Last updated:\t%s\n", rec.LastUpdated.Format(time.RFC3339))
	return w.Flush()
}

func runUsageSummary(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}

	db, cfg, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	loc := cfg.Location()
	clk := clock.NewReal(loc)
	today := clk.DayStart(clk.Now())
	start := today.AddDate(0, 0, -(usageDays - 1))
	end := today.AddDate(0, 0, 1)

	entries, err := sqlite.NewLogStore(db).ListByUser(context.Background(), usageUserID, start, end)
	if err != nil {
		return err
	}
	summary := usage.Summarize(entries, usageUserID, start, end, loc)

	fmt.Printf("Usage for %s, last %d day(s):\n\n", usageUserID, usageDays)
	fmt.Printf("  Total questions:  %d\n", summary.TotalCount)
	fmt.Printf("  Avg artifact:     %d bytes\n\n", summary.AvgArtifactBytes)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tCOUNT")
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		fmt.Fprintf(w, "%s\t%d\n", key, summary.PerDayCounts[key])
	}
	w.Flush()

	if len(summary.PerCategoryCounts) > 0 {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tCOUNT")
		for cat, n := range summary.PerCategoryCounts {
			fmt.Fprintf(w, "%s\t%d\n", cat, n)
		}
		w.Flush()
	}
	return nil
}

func runUsageRecent(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}

	db, cfg, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	clk := clock.NewReal(cfg.Location())
	end := clk.Now().Add(time.Second)
	start := end.AddDate(0, 0, -30)

	entries, err := sqlite.NewLogStore(db).ListByUser(context.Background(), usageUserID, start, end)
	if err != nil {
		return err
	}
	if len(entries) > usageLimit {
		entries = entries[len(entries)-usageLimit:]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPLAN\tCATEGORY\tARTIFACT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d B\n",
			e.Timestamp.Format(time.RFC3339), e.PlanID, e.Category, e.ArtifactBytes)
	}
	return w.Flush()
}
