package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pautapro",
	Short: "Conversational advertising order assistant",
	Long:  "Turns free-text instructions into advertising orders: extracts the order details, resolves clients, media, contracts and supports in the database, and creates the order with its document after confirmation.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		switch cmd.Name() {
		case "chat", "extract", "serve", "migrate", "seed":
			if err := cfg.Validate(cmd.Name()); err != nil {
				return fmt.Errorf("validate config: %w", err)
			}
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
