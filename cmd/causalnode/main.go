// causalnode runs a node replicating an observed-remove set with its peers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/causalmesh/go-causalmesh/config"
)

var version string

func addFlags(flags *pflag.FlagSet, conf *config.Config) (configPath *string, adds *[]string) {
	configPath = flags.StringP("config", "c", "", "load configuration from file")
	flags.StringVarP(&conf.DataDir, "data-dir", "d", conf.DataDir, "directory for the database and the node identity")
	flags.StringVar(&conf.Set, "set", conf.Set, "name of the replicated set")
	flags.StringVar(&conf.Logging.Level, "log-level", conf.Logging.Level, "log level")
	flags.StringVar(&conf.Logging.Encoder, "log-encoder", conf.Logging.Encoder, "log encoder, console or json")
	flags.BoolVar(&conf.Metrics.Enabled, "metrics", conf.Metrics.Enabled, "serve prometheus metrics")
	flags.StringVar(&conf.Metrics.Listen, "metrics-listen", conf.Metrics.Listen, "address of the metrics endpoint")
	flags.StringVar(&conf.P2P.Listen, "listen", conf.P2P.Listen, "multiaddr to listen on")
	flags.StringSliceVar(&conf.P2P.Bootnodes, "bootnodes", conf.P2P.Bootnodes, "multiaddrs of peers to connect on start")
	flags.DurationVar(&conf.Agent.GossipInterval, "gossip-interval", conf.Agent.GossipInterval,
		"interval between broadcasts of the local state")
	adds = flags.StringArray("add", nil, "value to add to the set on start, can be passed multiple times")
	return configPath, adds
}

func command() *cobra.Command {
	conf := config.DefaultConfig()
	var (
		configPath *string
		adds       *[]string
	)
	c := &cobra.Command{
		Use:   "causalnode",
		Short: "replicate a set with peers",
		RunE: func(c *cobra.Command, _ []string) error {
			if *configPath != "" {
				if err := config.Load(*configPath, &conf); err != nil {
					return err
				}
				// flags take precedence over the file
				if err := c.ParseFlags(os.Args[1:]); err != nil {
					return fmt.Errorf("parsing flags: %w", err)
				}
			}
			if err := conf.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			c.SilenceUsage = true

			ctx, cancel := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, &conf, *adds)
		},
	}
	configPath, adds = addFlags(c.PersistentFlags(), &conf)
	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(c *cobra.Command, _ []string) {
			fmt.Println(version)
		},
	})
	return c
}

func main() {
	if err := command().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
