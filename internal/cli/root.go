// Package cli implements issuectl, the operator command line for the issue service.
package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/issuedesk/issue-service/internal/app"
	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/observability"
)

// Options configures the root command. LoadConfig defaults to config.Load.
type Options struct {
	LoadConfig func() (*config.Config, error)
	Logger     *zap.Logger
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Store      string
	SQLitePath string
	NoColor    bool

	opts Options
}

// NewRootCommand creates the root command for issuectl.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	root := &RootOptions{opts: opts}

	cmd := &cobra.Command{
		Use:   "issuectl",
		Short: "Administer the issue service",
		Long: `Operator tooling for the issue service: apply migrations, manage accounts
and roles, and produce reports without going through the HTTP API.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if root.NoColor {
				color.NoColor = true
			}
		},
	}

	cmd.PersistentFlags().StringVar(&root.Store, "store", "", "override STORE_DRIVER (postgres|sqlite)")
	cmd.PersistentFlags().StringVar(&root.SQLitePath, "sqlite-path", "", "override SQLITE_PATH")
	cmd.PersistentFlags().BoolVar(&root.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(NewMigrateCommand(root))
	cmd.AddCommand(NewUserCommand(root))
	cmd.AddCommand(NewReportCommand(root))

	return cmd
}

func (r *RootOptions) config() (*config.Config, error) {
	cfg, err := r.opts.LoadConfig()
	if err != nil {
		return nil, err
	}
	if r.Store != "" {
		if r.Store != config.DriverPostgres && r.Store != config.DriverSQLite {
			return nil, fmt.Errorf("invalid --store %q: want %s or %s", r.Store, config.DriverPostgres, config.DriverSQLite)
		}
		cfg.Store.Driver = r.Store
	}
	if r.SQLitePath != "" {
		cfg.Store.SQLitePath = r.SQLitePath
	}
	return cfg, nil
}

func (r *RootOptions) logger(cfg *config.Config) (*zap.Logger, error) {
	if r.opts.Logger != nil {
		return r.opts.Logger, nil
	}
	return observability.NewLogger(cfg.Logger)
}

// withContainer builds the application, runs fn and releases resources.
func (r *RootOptions) withContainer(ctx context.Context, fn func(ctx context.Context, c *app.Container) error) error {
	cfg, err := r.config()
	if err != nil {
		return err
	}
	logger, err := r.logger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()
	return fn(ctx, container)
}

var (
	success = color.New(color.FgGreen).SprintFunc()
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	muted   = color.New(color.FgHiBlack).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
)
