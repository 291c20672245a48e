package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finplan-core/internal/adapters/driven/postgres"
	"github.com/custodia-labs/finplan-core/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	db, err := connectDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	v, err := db.MigrationVersion(ctx)
	if err != nil {
		return err
	}
	logger.Info("database migrated", "version", v)
	cmd.Printf("database at migration version %d\n", v)
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func dbConfig(cfg config.Config) postgres.Config {
	return postgres.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: seconds(cfg.DBConnMaxLifetime),
		ConnMaxIdleTime: seconds(cfg.DBConnMaxIdleTime),
	}
}

func connectDB(cmd *cobra.Command, cfg config.Config) (*postgres.DB, error) {
	db, err := postgres.Connect(commandContext(cmd), dbConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}
