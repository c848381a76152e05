package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"kinokod-bot/internal/config"
	"kinokod-bot/internal/logger"
)

type commandContext struct {
	envFiles *[]string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(envFiles *[]string) *commandContext {
	return &commandContext{envFiles: envFiles}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var files []string
		if c.envFiles != nil {
			for _, f := range *c.envFiles {
				if f = strings.TrimSpace(f); f != "" {
					files = append(files, f)
				}
			}
		}
		cfg, err := config.Load(files...)
		if err != nil {
			c.configErr = err
			return
		}
		if err := logger.Init(cfg.Log); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var envFiles []string
	ctx := newCommandContext(&envFiles)

	rootCmd := &cobra.Command{
		Use:           "kinokod",
		Short:         "Telegram video catalog bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the environment (default .env)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newPollCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))

	return rootCmd
}
