package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mappingforchange/geokey-airquality/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "airquality",
	Short: "Air Quality extension service for the GeoKey platform",
	Long:  "Collects diffusion tube measurements, promotes finished ones to host contributions, and reminds collectors about tubes left out.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
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
