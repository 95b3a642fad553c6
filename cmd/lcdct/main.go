package main

import (
	"os"

	"github.com/spf13/cobra"

	"lcdct/internal/logger"
	"lcdct/internal/telemetry"
	"lcdct/pkg/config"
)

var (
	configPath  string
	logLevel    string
	metricsFile string

	// cfg is loaded before every command runs
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "lcdct",
		Short: "Low contrast detectability of CT images with model observers",
		Long: `lcdct measures how well model observers detect low contrast inserts in
repeated CT scans. It reports AUC and SNR per observer, insert, reconstruction
and dose level.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if env := os.Getenv("LOG_LEVEL"); env != "" {
				loaded.Output.LogLevel = env
			}
			if logLevel != "" {
				loaded.Output.LogLevel = logLevel
			}
			if metricsFile != "" {
				loaded.Output.MetricsFile = metricsFile
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			logger.SetLevel(loaded.Output.LogLevel)
			cfg = loaded
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil || cfg.Output.MetricsFile == "" {
				return nil
			}
			return telemetry.WriteTextfile(cfg.Output.MetricsFile)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "lcdct.yaml", "YAML configuration file (defaults apply when missing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	rootCmd.AddCommand(measureCmd, synthCmd, channelsCmd, groundTruthCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
