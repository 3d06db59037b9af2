package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmehdipour/clinic-notify/internal/config"
	"github.com/jmehdipour/clinic-notify/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var (
	migrateTarget string
	migrateDir    string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (dev: DROP & CREATE tables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch migrateTarget {
		case "mysql", "clickhouse", "all":
		default:
			return fmt.Errorf("unknown target %q (mysql|clickhouse|all)", migrateTarget)
		}

		if migrateTarget != "clickhouse" {
			sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, poolOpts(cfg.MySQL))
			if err != nil {
				return fmt.Errorf("open mysql: %w", err)
			}
			defer sqlDB.Close()
			if err := runMigration(sqlDB, filepath.Join(migrateDir, "mysql", "001_init.sql")); err != nil {
				return err
			}
			fmt.Println(">> MySQL migration complete")
		}

		if migrateTarget != "mysql" {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, poolOpts(cfg.ClickHouse))
			if err != nil {
				return fmt.Errorf("open clickhouse: %w", err)
			}
			defer chDB.Close()
			if err := runMigration(chDB, filepath.Join(migrateDir, "clickhouse", "001_init.sql")); err != nil {
				return err
			}
			fmt.Println(">> ClickHouse migration complete")
		}

		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTarget, "target", "mysql", "database to migrate: mysql | clickhouse | all")
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "migrations", "directory holding mysql/ and clickhouse/ scripts")
}

// runMigration executes a script one statement at a time; neither driver is
// configured for multi-statement exec.
func runMigration(dbx *sqlx.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration file %s: %w", path, err)
	}
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := dbx.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration %s: %w", path, err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, l := range strings.Split(part, "\n") {
			if t := strings.TrimSpace(l); t != "" && !strings.HasPrefix(t, "--") {
				lines = append(lines, l)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(lines, "\n")))
		}
	}
	return out
}
