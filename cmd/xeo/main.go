// xeo serves the XEO control panel and offers offline tools for its
// tool-call pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-xeo/internal/config"
	"github.com/teslashibe/go-xeo/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "xeo",
		Short:         "XEO panel server and tool-call pipeline utilities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default config.yaml if present)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newParseCmd(opts),
		newCropCmd(opts),
		newPromptCmd(),
		newWatchCmd(),
	)
	return root
}

// load reads the configuration and initializes the global logger.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	log.Init(cfg.Log.Level)
	return cfg, nil
}
