// Command widgetd hosts the widget runtime: it installs built-in and
// discovered plugins, follows plugin directories and serves metrics.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/go-lynx/widget/boot"
	wlog "github.com/go-lynx/widget/log"
)

// release is set with -ldflags "-X main.release=x.y.z"
var release = "dev"

var (
	flagConf     string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:     "widgetd",
	Short:   "widgetd: the widget plugin runtime",
	Long:    `widgetd loads widget plugins from manifests, runs their instances and recovers failing ones.`,
	Version: release,
	// Serving is the default action
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConf, "conf", "c", "",
		"config file or directory (default $"+boot.ConfigPathEnv+" or "+boot.DefaultConfigDir+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override widget.log.level: debug|info|warn|error")

	rootCmd.AddCommand(cmdServe)
	rootCmd.AddCommand(cmdValidate)
	rootCmd.AddCommand(cmdList)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		wlog.Error(err)
		os.Exit(1)
	}
}
