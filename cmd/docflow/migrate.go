package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/docflow/internal/config"
	"github.com/bigkaa/docflow/internal/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Управление схемой БД",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Применить все миграции",
		RunE: func(*cobra.Command, []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return database.Migrate(cfg, logger)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Откатить миграции",
		RunE: func(*cobra.Command, []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return database.MigrateDown(cfg, steps, logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "количество откатываемых миграций")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Показать текущую версию схемы",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			version, dirty, err := database.MigrationVersion(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	})

	return cmd
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	return cfg, config.SetupLogger(cfg), nil
}
