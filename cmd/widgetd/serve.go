package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/go-lynx/widget/boot"
	"github.com/go-lynx/widget/internal/banner"
	wlog "github.com/go-lynx/widget/log"
)

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Run the widget runtime until SIGINT or SIGTERM",
	Example: `  widgetd serve --conf ./configs
  WIDGET_CONFIG_PATH=/etc/widgetd widgetd`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := boot.GetConfigManager().Resolve(flagConf)
	cfg, conf, err := boot.LoadConfig(path)
	if err != nil {
		return err
	}
	if !conf.Application.CloseBanner {
		if err := banner.Print(cmd.OutOrStdout(), banner.LocalPath, release); err != nil {
			wlog.Warnf("banner: %v", err)
		}
	}
	app, err := boot.NewFromConfig(cfg)
	if err != nil {
		_ = cfg.Close()
		return fmt.Errorf("failed to build widget runtime: %w", err)
	}
	if flagLogLevel != "" {
		wlog.SetLevel(wlog.ParseLevel(flagLogLevel))
	}
	return app.Run(ctx)
}
