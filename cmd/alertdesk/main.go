package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mattmezza/alertdesk/internal/auth"
	"github.com/mattmezza/alertdesk/internal/client"
	"github.com/mattmezza/alertdesk/internal/config"
	"github.com/mattmezza/alertdesk/internal/i18n"
	"github.com/mattmezza/alertdesk/internal/logging"
)

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	configPath string
	url        string

	cfg    *config.Config
	logger *zap.Logger
	authz  *auth.Static
	loc    *i18n.Localizer
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.url != "" {
		cfg.Client.URL = strings.TrimRight(a.url, "/")
	}
	logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.authz = auth.NewStatic(cfg.Console.Permissions...)
	a.loc = i18n.New(cfg.Console.Locale)
	return nil
}

func (a *app) client() (*client.Client, error) {
	return client.New(client.Config{URL: a.cfg.Client.URL, Timeout: a.cfg.Client.Timeout})
}

func (a *app) require(permission string) error {
	if !a.authz.Allowed(permission) {
		return fmt.Errorf("permission denied: %s", permission)
	}
	return nil
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "alertdesk",
		Short:        "Manage alert instances",
		Long:         "alertdesk serves and manages the alert instances used to deliver notifications (DingTalk, WeChat, FeiShu, Email, SMS, HTTP and Telegram).",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the configuration file")
	root.PersistentFlags().StringVar(&a.url, "url", "", "alertdesk server URL, overrides client.url")

	root.AddCommand(
		newServeCmd(a),
		newListCmd(a),
		newCreateCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newEnableCmd(a),
		newTestCmd(a),
		newHistoryCmd(a),
		newConsoleCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
