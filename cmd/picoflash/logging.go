package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/picoflash/pkg/config"
)

// configureLogger picks the level from --log-level, then the config file.
// Without either the logger stays at panic level, which is silent for normal operation.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	level := logrus.PanicLevel

	levelStr, _ := cmd.Flags().GetString("log-level")
	if levelStr == "" && cfg != nil {
		levelStr = cfg.LogLevel
	}
	if levelStr != "" {
		parsed, err := config.ParseLogLevel(levelStr)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	logger := config.NewLogger(level)
	logger.SetOutput(cmd.ErrOrStderr())
	return logger, nil
}
