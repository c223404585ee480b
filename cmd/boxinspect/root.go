package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-boxtree/config"
	"github.com/robert-malhotra/go-boxtree/logger"
)

var (
	configPath string
	logLevel   string

	cfg       *config.Config
	log       logger.Logger
	logCloser io.Closer
)

// rootCmd loads the configuration and the logger shared by every subcommand.
var rootCmd = &cobra.Command{
	Use:          "boxinspect",
	Short:        "Inspect box tree containers and event stores",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			if _, err := logger.ParseLevel(logLevel); err != nil {
				return err
			}
			c.Log.Level = logLevel
		}
		l, closer, err := logger.New(c.Log)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		cfg, log, logCloser = c, l, closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser == nil {
			return nil
		}
		return logCloser.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default $BOXTREE_CONFIG or ./boxtree.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error or disabled")
}
