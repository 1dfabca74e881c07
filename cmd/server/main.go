// Command reviewhub runs the product review and messaging backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vedran77/reviewhub/internal/config"
	"github.com/vedran77/reviewhub/pkg/logger"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "reviewhub",
		Short:         "Product reviews with direct messaging between users",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./.env)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		logger.Init(logger.Config{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Caller: cfg.Env == "development",
		})
		return cfg, nil
	}

	cmd.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newSeedCmd(load),
		newProductsCmd(load),
	)
	return cmd
}

type configLoader func() (*config.Config, error)
