package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"Toonbeat/config"
	"Toonbeat/logger"
)

var rootCmd = &cobra.Command{
	Use:   "toonbeat",
	Short: "Toonbeat plays a webtoon's soundtrack as the reader scrolls.",
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration and initializes logging from it.
func loadConfig() *config.Config {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    100, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	})
	return cfg
}
