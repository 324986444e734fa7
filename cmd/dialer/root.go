package main

import (
	"fmt"

	"dialer-platform/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "dialer",
		Short:         "Telemarketing dialer: lead assignment queue and call outcome workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before reading config")

	load := func() (config.Config, error) {
		// missing .env is fine; real deployments set env directly
		_ = godotenv.Load(envFile)
		cfg, err := config.Load()
		if err != nil {
			return config.Config{}, fmt.Errorf("config: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load), newMigrateCmd(load), newTokenCmd(load))
	return root
}

type configLoader func() (config.Config, error)
