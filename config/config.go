// Package config contains the node configuration.
package config

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/causalmesh/go-causalmesh/agent"
	"github.com/causalmesh/go-causalmesh/log"
	"github.com/causalmesh/go-causalmesh/metrics"
	"github.com/causalmesh/go-causalmesh/p2p"
	"github.com/causalmesh/go-causalmesh/p2p/pubsub"
	"github.com/causalmesh/go-causalmesh/store"
)

const (
	defaultDataDir = "./causalmesh"
	defaultSet     = "default"
)

// Config defines the top level configuration of a node.
type Config struct {
	DataDir string `mapstructure:"data-dir"`
	// Set is the name of the replicated set.
	Set string `mapstructure:"set"`

	Logging log.Config     `mapstructure:"logging"`
	Metrics metrics.Config `mapstructure:"metrics"`
	P2P     p2p.Config     `mapstructure:"p2p"`
	Gossip  pubsub.Config  `mapstructure:"gossip"`
	Store   store.Config   `mapstructure:"store"`
	Agent   agent.Config   `mapstructure:"agent"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DataDir: defaultDataDir,
		Set:     defaultSet,
		Logging: log.DefaultConfig(),
		Metrics: metrics.DefaultConfig(),
		P2P:     p2p.DefaultConfig(),
		Gossip:  pubsub.DefaultConfig(),
		Store:   store.DefaultConfig(),
		Agent:   agent.DefaultConfig(),
	}
}

// Validate checks every section of the config.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.DataDir == "" {
		errs = append(errs, errors.New("data-dir is empty"))
	}
	if cfg.Set == "" {
		errs = append(errs, errors.New("set is empty"))
	}
	if err := cfg.P2P.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("p2p: %w", err))
	}
	if err := cfg.Agent.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("agent sync: %w", err))
	}
	if cfg.Gossip.MaxMessageSize < 0 {
		errs = append(errs, errors.New("gossip max-message-size must not be negative"))
	}
	if cfg.Agent.GossipInterval <= 0 {
		errs = append(errs, errors.New("agent gossip-interval must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads the file at path and overrides matching values in cfg.
func Load(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(hook), withErrorUnused()); err != nil {
		return fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return nil
}

func withErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}
