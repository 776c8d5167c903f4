package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// alertsCmd represents the alerts command
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "알림 규칙 관리",
	Long: `알림 규칙을 조회하거나 평가 사이클을 즉시 실행합니다.

Example:
  go run ./cmd/valuescope alerts evaluate
  go run ./cmd/valuescope alerts list --owner u1`,
}

var (
	alertsEvaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "평가 사이클 1회 실행",
		RunE:  runAlertsEvaluate,
	}

	alertsListCmd = &cobra.Command{
		Use:   "list",
		Short: "사용자 규칙 목록",
		RunE:  runAlertsList,
	}
)

var alertsOwner string

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsEvaluateCmd)
	alertsCmd.AddCommand(alertsListCmd)

	alertsListCmd.Flags().StringVar(&alertsOwner, "owner", "", "규칙 소유자 ID")
	_ = alertsListCmd.MarkFlagRequired("owner")
}

func runAlertsEvaluate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.engine.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("alert cycle: %w", err)
	}

	printHeader("Alert Evaluation")
	fmt.Printf("  Evaluated     : %d\n", report.Evaluated)
	fmt.Printf("  Fired         : %d\n", report.Fired)
	fmt.Printf("  Re-armed      : %d\n", report.Rearmed)
	fmt.Printf("  Skipped       : %d\n", report.Skipped)
	fmt.Printf("  Timeouts      : %d\n", report.Timeouts)
	fmt.Printf("  Sink failures : %d\n", report.SinkFailures)
	printFooter(report.FinishedAt.Sub(report.StartedAt))
	return nil
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	rules, err := a.alerts.List(cmd.Context(), alertsOwner)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	printHeader(fmt.Sprintf("Alert Rules (%s)", alertsOwner))
	for _, r := range rules {
		fmt.Printf("  %-36s  %-8s  %-24s  %-7s  %s\n", r.ID, r.StockCode, r.Condition.String(), r.Channel, r.State)
	}
	fmt.Printf("\n  %d rule(s)\n", len(rules))
	return nil
}
