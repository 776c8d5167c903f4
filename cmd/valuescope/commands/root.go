package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/valuescope/pkg/config"
)

var (
	// Global flags
	logLevel string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "valuescope",
	Short: "valuescope - 밸류에이션 백분위 & 알림 엔진",
	Long: `valuescope Unified CLI

종목별 PE/PB 히스토리 백분위 계산, 조건 스크리닝, 엣지 트리거 알림.

Usage:
  go run ./cmd/valuescope [command]

Examples:
  go run ./cmd/valuescope api
  go run ./cmd/valuescope scheduler start
  go run ./cmd/valuescope percentile 600519 --metric pe_ttm
  go run ./cmd/valuescope presets list`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")
}

// loadConfig loads the environment config and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
