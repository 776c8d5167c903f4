package config_test

import (
	"fmt"

	"github.com/wonny/valuescope/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Alert schedule: %s\n", cfg.Alert.Schedule)
	fmt.Printf("Metric timeout: %s\n", cfg.Alert.MetricTimeout)
	fmt.Printf("Screener workers: %d\n", cfg.Screener.Workers)
}
