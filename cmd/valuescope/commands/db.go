package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/valuescope/pkg/database"
	"github.com/wonny/valuescope/pkg/redis"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "데이터베이스 관리",
	Long: `스키마를 적용하거나 연결 상태를 점검합니다.

Example:
  go run ./cmd/valuescope db migrate
  go run ./cmd/valuescope db check`,
}

var (
	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "valuation 스키마 적용 (idempotent)",
		RunE:  runDBMigrate,
	}

	dbCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "PostgreSQL / Redis 연결 점검",
		RunE:  runDBCheck,
	}
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbCheckCmd)
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	fmt.Println("✅ Schema applied")
	return nil
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== valuescope Connection Check ===")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", redactURL(cfg.Database.URL))

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}

	fmt.Println("✅ Database Health:")
	fmt.Printf("   Response Time: %v\n", status.ResponseTime)
	fmt.Printf("   Max Connections: %d\n", status.Stats.MaxConns)
	fmt.Printf("   Total Connections: %d\n", status.Stats.TotalConns)
	fmt.Printf("   Idle Connections: %d\n\n", status.Stats.IdleConns)

	rc, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Redis: %w", err)
	}
	defer rc.Close()

	if rc.Enabled() {
		fmt.Println("✅ Redis connected")
	} else {
		fmt.Println("⚠️  Redis disabled (REDIS_ENABLED=false)")
	}
	return nil
}

// redactURL hides the password in a connection URL
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
