package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mattmezza/alertdesk/internal/config"
	"github.com/mattmezza/alertdesk/internal/history"
	"github.com/mattmezza/alertdesk/internal/instance"
	"github.com/mattmezza/alertdesk/internal/notifier"
	"github.com/mattmezza/alertdesk/internal/server"
	"github.com/mattmezza/alertdesk/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the alert instance API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			st, err := store.Open(cfg.Server.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			a.logger.Info("opened alert instance store", zap.String("path", cfg.Server.DBPath))

			created, err := seedInstances(cmd.Context(), st, cfg.Instances)
			if err != nil {
				return err
			}
			if created > 0 {
				a.logger.Info("seeded alert instances from configuration", zap.Int("count", created))
			}

			srv := server.New(server.Options{
				Store:     st,
				History:   history.NewDeliveryBuffer(cfg.Notify.HistorySize),
				Templates: notifier.Templates{TestTitle: cfg.Templates.TestTitle, TestContent: cfg.Templates.TestContent},
				Notify: notifier.Options{
					MaxRetries: cfg.Notify.MaxRetries,
					DryRun:     cfg.Notify.DryRun,
					Out:        cmd.OutOrStdout(),
				},
				TestRateLimit: cfg.Server.TestRateLimit,
				TestBurst:     cfg.Server.TestBurst,
				Logger:        a.logger,
			})
			return srv.ListenAndServe(cmd.Context(), server.ListenOptions{
				Addr:            cfg.Server.Listen,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
			})
		},
	}
}

// seedInstances creates the configured instances whose names are not taken
// yet. Existing instances are never modified.
func seedInstances(ctx context.Context, st store.Store, seeds []config.SeedInstanceConfig) (int, error) {
	if len(seeds) == 0 {
		return 0, nil
	}
	existing, err := st.List(ctx)
	if err != nil {
		return 0, err
	}
	taken := make(map[string]bool, len(existing))
	for _, inst := range existing {
		taken[strings.ToLower(inst.Name)] = true
	}

	created := 0
	for _, seed := range seeds {
		if taken[strings.ToLower(strings.TrimSpace(seed.Name))] {
			continue
		}
		form, err := seed.Form()
		if err != nil {
			return created, err
		}
		inst, err := instance.Transform(form)
		if err != nil {
			return created, errors.Wrapf(err, "seed instance '%s'", seed.Name)
		}
		if _, err := st.Save(ctx, inst); err != nil {
			return created, errors.Wrapf(err, "seed instance '%s'", seed.Name)
		}
		created++
	}
	return created, nil
}
