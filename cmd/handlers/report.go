package handlers

import (
	"fmt"
	"os"

	"blogsmith/internal/config"
	"blogsmith/internal/logger"
	"blogsmith/internal/store"

	"github.com/spf13/cobra"
)

// NewReportCmd creates the report inspection command
func NewReportCmd() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect saved batch reports",
		Long:  `List past batch runs, show their rejection records, and clear history.`,
	}

	reportCmd.AddCommand(newReportListCmd())
	reportCmd.AddCommand(newReportRejectionsCmd())
	reportCmd.AddCommand(newReportClearCmd())

	return reportCmd
}

func newReportListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batch reports",
		Run: func(cmd *cobra.Command, args []string) {
			limit, _ := cmd.Flags().GetInt("limit")
			if err := runReportList(limit); err != nil {
				logger.Error("Failed to list reports", err)
				os.Exit(1)
			}
		},
	}
	listCmd.Flags().Int("limit", 20, "Maximum number of reports to show")
	return listCmd
}

func newReportRejectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rejections [report-id]",
		Short: "Show rejection records for a batch report",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runReportRejections(args[0]); err != nil {
				logger.Error("Failed to show rejections", err)
				os.Exit(1)
			}
		},
	}
}

func newReportClearCmd() *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all saved batch reports",
		Run: func(cmd *cobra.Command, args []string) {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if err := runReportClear(confirm); err != nil {
				logger.Error("Failed to clear reports", err)
				os.Exit(1)
			}
		},
	}
	clearCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	return clearCmd
}

func openStore() (*store.Store, error) {
	return store.NewStore(config.Get().App.DataDir)
}

func runReportList(limit int) error {
	reportStore, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer reportStore.Close()

	reports, err := reportStore.ListBatchReports(limit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("No batch reports saved yet")
		return nil
	}

	fmt.Println("📊 Batch Reports")
	fmt.Println("================")
	for _, report := range reports {
		fmt.Printf("%s  %s  ✅ %d  ❌ %d  🔄 %d  (%s)\n",
			report.ID,
			report.CreatedAt.Format("2006-01-02 15:04:05"),
			report.Summary.ApprovedCount,
			report.Summary.RejectedCount,
			report.Summary.RegenerationCount,
			report.Summary.BatchStats.AnalysisMode)
	}
	return nil
}

func runReportRejections(reportID string) error {
	reportStore, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer reportStore.Close()

	rejections, err := reportStore.GetRejections(reportID)
	if err != nil {
		return err
	}
	if len(rejections) == 0 {
		fmt.Printf("No rejections recorded for report %s\n", reportID)
		return nil
	}

	fmt.Printf("❌ Rejections for %s\n", reportID)
	fmt.Println("========================")
	for _, r := range rejections {
		fmt.Printf("%s: %s", r.JobID, r.Reason)
		if r.SimilarTo != "" {
			fmt.Printf(" (%.1f%% similar to %q)", r.SimilarityScore, r.SimilarTo)
		}
		fmt.Println()
	}
	return nil
}

func runReportClear(confirm bool) error {
	if !confirm {
		fmt.Print("⚠️  This will remove all saved batch reports. Continue? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" && response != "yes" {
			fmt.Println("Clear cancelled")
			return nil
		}
	}

	reportStore, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer reportStore.Close()

	if err := reportStore.Clear(); err != nil {
		return err
	}
	fmt.Println("✅ Batch reports cleared")
	return nil
}
