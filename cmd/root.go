package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/vehicle-catalog/internal/config"
	"github.com/sells-group/vehicle-catalog/internal/logring"
)

var (
	cfg  *config.Config
	ring *logring.Ring
)

var rootCmd = &cobra.Command{
	Use:   "vehicle-catalog",
	Short: "Vehicle price list extraction and reconciliation",
	Long:  "Scrapes dealer and importer pages, extracts vehicles and variants from HTML and PDF price lists through a chain of OCR and LLM tiers, and reconciles them into one catalog.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}
		ring = logring.New(cfg.Log.RingSize, level)

		if err := config.InitLogger(cfg.Log, ring); err != nil {
			return fmt.Errorf("init logger: %w", err)
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
