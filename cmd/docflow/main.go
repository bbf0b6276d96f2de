// Точка входа docflow: сервис учёта документов и сроков.
// Подкоманды: serve (HTTP API), migrate (управление схемой БД),
// replicate (добавление сроков элементу контроля из командной строки).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/docflow/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "docflow",
		Short:   "docflow: документы, сроки общего контроля и анализ ИИ",
		Version: config.Version,
		Long: `docflow принимает PDF-документы, хранит их в Backblaze B2,
ведёт сроки общего контроля и анализирует тексты генеративной моделью.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(replicateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
