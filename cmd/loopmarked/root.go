package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/loopmarked/dashboard/internal/config"
	applog "github.com/loopmarked/dashboard/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "loopmarked",
		Short:         "Loop Marked marketplace chat: development backend and terminal client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml (default ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(opts), newChatCmd(opts))
	return cmd
}

// load resolves configuration and builds the logger. Flag values win over
// file and environment.
func (o *rootOptions) load(overrides config.Config) (config.Config, *zerolog.Logger, error) {
	bootLogger := applog.New(o.logLevel)

	cfg, path, err := config.Load(bootLogger, o.configPath)
	if err != nil {
		return cfg, bootLogger, err
	}
	overrides.LogLevel = o.logLevel
	cfg.UpdateFrom(overrides)

	logger := applog.New(cfg.LogLevel)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}
