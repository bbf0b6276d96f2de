package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigkaa/docflow/internal/database"
	"github.com/bigkaa/docflow/internal/repository"
	"github.com/bigkaa/docflow/internal/service"
)

func replicateCmd() *cobra.Command {
	var (
		itemID      int64
		repetitions int
	)

	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Добавить сроки элементу контроля",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := database.Connect(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			replicator := service.NewDeadlineReplicator(repository.NewControlRepository(pool), logger)
			res, err := replicator.Replicate(ctx, itemID, repetitions)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "якорь: %s (%s)\n", res.Anchor.Format(time.DateOnly), res.AnchorSource)
			for _, o := range res.Occurrences {
				fmt.Fprintf(out, "  #%d  %s\n", o.ID, o.DueDate.Format(time.DateOnly))
			}
			fmt.Fprintf(out, "добавлено сроков: %d\n", res.Inserted)
			return nil
		},
	}
	cmd.Flags().Int64Var(&itemID, "item", 0, "ID элемента контроля")
	cmd.Flags().IntVarP(&repetitions, "repetitions", "n", 1, "количество добавляемых сроков")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}
