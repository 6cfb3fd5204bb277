package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autisahara/companion/internal/config"
)

type rootOptions struct {
	out        io.Writer
	configPath string
	dbPath     string
	baseURL    string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}
	root := &cobra.Command{
		Use:   "companion",
		Short: "Journey engine of the screening companion app",
		Long: `companion drives the parent journey of the screening companion app:
language choice, sign-in, the seven-section registration form and the
per-child dashboard. Every command prints one JSON document on stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (env COMPANION_* overrides it)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite state file (overrides db_path)")
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "Remote service URL (overrides base_url)")

	root.AddCommand(
		newLaunchCmd(opts),
		newLanguageCmd(opts),
		newLoginCmd(opts),
		newSignupCmd(opts),
		newLogoutCmd(opts),
		newSectionCmd(opts),
		newMediaCmd(opts),
		newDashboardCmd(opts),
		newSubmitCmd(opts),
		newConfirmCmd(opts),
	)
	return root
}

// run wraps a command body with config loading and app wiring. The app is
// closed when the body returns.
func (o *rootOptions) run(body func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		if o.dbPath != "" {
			cfg.DBPath = o.dbPath
		}
		if o.baseURL != "" {
			cfg.BaseURL = o.baseURL
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		log, err := config.NewLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				log.Warn("close store", zap.Error(cerr))
			}
		}()
		return body(ctx, a, args)
	}
}
