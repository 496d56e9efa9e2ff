package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/rewind/pkg/config"
)

type options struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "rewind",
		Short: "Serve every version of an API from a single head implementation",
		Long: `rewind keeps one implementation of an API (the head version) and derives
every older version from a list of version changes. It serves all versions at
once, picking one per request from a date header, and can publish the changelog
and the schemas of each version.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (defaults to $REWIND_CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log generation steps")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newChangelogCmd(opts),
		newRenderCmd(opts),
		newVersionsCmd(opts),
	)
	return rootCmd
}

func (o *options) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath)
	}
	return config.LoadConfig()
}

// generationLogger logs build-time generation to w, only at debug level when verbose
func (o *options) generationLogger(w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.InfoLevel)
	if o.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
