package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/internal/metricstore"
	"github.com/wonny/valuescope/internal/selection"
)

// presetsCmd represents the presets command
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "스크리너 프리셋",
	Long: `프리셋 카탈로그를 조회, 검증하거나 전체 종목에 적용합니다.

Example:
  go run ./cmd/valuescope presets list
  go run ./cmd/valuescope presets validate ./presets.yaml
  go run ./cmd/valuescope presets run high_dividend --sort dividend_yield --desc --limit 20`,
}

var (
	presetsListCmd = &cobra.Command{
		Use:   "list",
		Short: "프리셋 목록",
		RunE:  runPresetsList,
	}

	presetsValidateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "카탈로그 파일 검증 (생략 시 내장 카탈로그)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPresetsValidate,
	}

	presetsRunCmd = &cobra.Command{
		Use:   "run [preset_id]",
		Short: "프리셋으로 전체 종목 스크리닝",
		Args:  cobra.ExactArgs(1),
		RunE:  runPresetsRun,
	}
)

var (
	presetsFile  string
	presetsSort  string
	presetsDesc  bool
	presetsLimit int
)

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.AddCommand(presetsListCmd)
	presetsCmd.AddCommand(presetsValidateCmd)
	presetsCmd.AddCommand(presetsRunCmd)

	presetsListCmd.Flags().StringVar(&presetsFile, "file", "", "카탈로그 YAML 경로 (기본: 내장)")
	presetsRunCmd.Flags().StringVar(&presetsSort, "sort", "", "정렬 지표")
	presetsRunCmd.Flags().BoolVar(&presetsDesc, "desc", false, "내림차순 정렬")
	presetsRunCmd.Flags().IntVar(&presetsLimit, "limit", 0, "최대 출력 종목 수")
}

func runPresetsList(cmd *cobra.Command, args []string) error {
	catalog, err := selection.LoadCatalog(presetsFile)
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("Preset Catalog v%d", catalog.Version()))
	for _, p := range catalog.List() {
		fmt.Printf("  %-16s v%d  %s\n", p.ID, p.Version, p.Name)
		fmt.Printf("  %-16s      %s\n", "", describeQuery(p.Query))
	}
	return nil
}

func runPresetsValidate(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	catalog, err := selection.LoadCatalog(path)
	if err != nil {
		return fmt.Errorf("❌ invalid catalog: %w", err)
	}

	fmt.Printf("✅ Catalog v%d is valid (%d presets)\n", catalog.Version(), len(catalog.List()))
	return nil
}

func runPresetsRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	query, err := a.catalog.Apply(args[0])
	if err != nil {
		return err
	}

	sort := selection.SortSpec{Descending: presetsDesc, Limit: presetsLimit}
	if presetsSort != "" {
		if sort.Metric, err = contracts.ParseMetricKind(presetsSort); err != nil {
			return err
		}
	}

	start := time.Now()
	ctx := cmd.Context()

	universe, err := metricstore.LoadUniverse(ctx, a.store, a.cfg.Screener.SnapshotTimeout, a.log)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	result, err := a.screener.ScreenDetailed(ctx, universe, query)
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}

	byCode := make(map[string]contracts.MetricSnapshot, len(universe))
	for _, s := range universe {
		byCode[s.Code] = s
	}

	printHeader(fmt.Sprintf("Preset %s: %s", args[0], describeQuery(query)))
	for _, row := range selection.Rank(result.Passed, byCode, sort) {
		fmt.Printf("  %-8s", row.Code)
		for _, c := range query.Conditions {
			if v, ok := row.Values[c.Metric]; ok {
				fmt.Printf("  %s=%.2f", c.Metric, v)
			}
		}
		fmt.Println()
	}
	fmt.Printf("\n  %d / %d passed\n", len(result.Passed), result.TotalInput)
	for reason, n := range result.Filtered {
		fmt.Printf("  filtered by %-16s %d\n", reason, n)
	}
	printFooter(time.Since(start))
	return nil
}

func describeQuery(q contracts.ScreenerQuery) string {
	if q.IsEmpty() {
		return "(all stocks)"
	}
	parts := make([]string, 0, len(q.Conditions)+2)
	for _, c := range q.Conditions {
		parts = append(parts, c.String())
	}
	if len(q.Markets) > 0 {
		parts = append(parts, "market in ["+strings.Join(q.Markets, ", ")+"]")
	}
	if len(q.Industries) > 0 {
		parts = append(parts, "industry in ["+strings.Join(q.Industries, ", ")+"]")
	}
	return strings.Join(parts, " AND ")
}
