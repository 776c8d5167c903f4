package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/valuescope/internal/contracts"
)

// percentileCmd represents the percentile command
var percentileCmd = &cobra.Command{
	Use:   "percentile [code]",
	Short: "종목 지표의 히스토리 백분위 조회",
	Long: `최신 지표 값을 해당 종목의 과거 N년 히스토리와 비교해 백분위와 구간을 출력합니다.

Example:
  go run ./cmd/valuescope percentile 600519
  go run ./cmd/valuescope percentile 600519 --metric pb --years 5`,
	Args: cobra.ExactArgs(1),
	RunE: runPercentile,
}

var (
	percentileMetric string
	percentileYears  int
)

func init() {
	rootCmd.AddCommand(percentileCmd)

	percentileCmd.Flags().StringVar(&percentileMetric, "metric", string(contracts.MetricPE), "지표 (pe_ttm|pb|dividend_yield|roe)")
	percentileCmd.Flags().IntVar(&percentileYears, "years", 0, "비교 기간(년), 0이면 PERCENTILE_YEARS")
}

func runPercentile(cmd *cobra.Command, args []string) error {
	metric, err := contracts.ParseMetricKind(percentileMetric)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ranking, err := a.ranker.RankWindow(cmd.Context(), args[0], metric, time.Now(), percentileYears)
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("%s %s", ranking.Code, ranking.Metric))
	fmt.Printf("  Window      : %s ~ %s\n", ranking.From.Format("2006-01-02"), ranking.To.Format("2006-01-02"))
	fmt.Printf("  Samples     : %d\n", ranking.SampleSize)
	fmt.Printf("  Orientation : %s\n", ranking.Orientation)
	if !ranking.HasRank() {
		fmt.Printf("  Band        : %s\n", ranking.Band)
		return nil
	}
	fmt.Printf("  Current     : %g\n", ranking.Current.Value)
	fmt.Printf("  Percentile  : %.1f\n", *ranking.Rank)
	fmt.Printf("  Band        : %s\n", ranking.Band)
	return nil
}
