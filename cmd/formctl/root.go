package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/app"
	"github.com/pinkalP4120/order-metafields/internal/config"
	"github.com/pinkalP4120/order-metafields/internal/logging"
)

// cli carries what the commands need so tests can swap the platform and storage
type cli struct {
	out        io.Writer
	loadConfig func() (*config.Config, error)
	newApp     func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app.App, error)
	verbose    bool
}

func defaultCLI() *cli {
	return &cli{
		out: os.Stdout,
		loadConfig: func() (*config.Config, error) {
			_ = godotenv.Load()
			return config.Load()
		},
		newApp: app.New,
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "formctl",
		Short: "Inspect and replay order form submissions",
		Long: `formctl talks to the same Shopify store and submission log as the server.

Configuration is read from .env and the environment (SHOPIFY_STORE, SHOPIFY_ACCESS_TOKEN, DB_*).`,
		SilenceUsage: true,
	}
	root.SetOut(c.out)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log platform calls")

	root.AddCommand(
		newFindOrderCmd(c),
		newMetafieldsCmd(c),
		newSubmitCmd(c),
		newSubmissionsCmd(c),
		newMigrateCmd(c),
		newHashKeyCmd(c),
	)
	return root
}

// open loads configuration and wires the application. The caller closes the app.
func (c *cli) open(ctx context.Context) (*app.App, *config.Config, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger := zap.NewNop()
	if c.verbose {
		if logger, err = logging.New("development", "debug"); err != nil {
			return nil, nil, err
		}
	}

	a, err := c.newApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
