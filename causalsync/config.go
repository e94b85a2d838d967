package causalsync

import (
	"errors"
	"time"
)

// Config for the synchronizer and the responder.
type Config struct {
	// MaxRequestsPerRemote caps outstanding requests to a single peer.
	MaxRequestsPerRemote int `mapstructure:"max-requests-per-remote"`
	// MaxPendingOps caps ops that are requested but not yet applied.
	MaxPendingOps int `mapstructure:"max-pending-ops"`
	// MaxOpsPerRequest caps ops asked for or sent in a single request.
	MaxOpsPerRequest int `mapstructure:"max-ops-per-request"`
	// MaxHistoryPerResponse caps op history nodes sent in a single response.
	MaxHistoryPerResponse int `mapstructure:"max-history-per-response"`
	// MaxLiteralsPerResponse caps literals streamed for a single request.
	MaxLiteralsPerResponse int `mapstructure:"max-literals-per-response"`
	// MaxOmissionSearch bounds the objects visited when looking for omission chains
	// and when computing the history known by the requester.
	MaxOmissionSearch     int           `mapstructure:"max-omission-search"`
	RequestTimeout        time.Duration `mapstructure:"request-timeout"`
	LiteralArrivalTimeout time.Duration `mapstructure:"literal-arrival-timeout"`
	TimeoutCheckInterval  time.Duration `mapstructure:"timeout-check-interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerRemote:   2,
		MaxPendingOps:          1024,
		MaxOpsPerRequest:       256,
		MaxHistoryPerResponse:  1024,
		MaxLiteralsPerResponse: 4096,
		MaxOmissionSearch:      4096,
		RequestTimeout:         20 * time.Second,
		LiteralArrivalTimeout:  10 * time.Second,
		TimeoutCheckInterval:   time.Second,
	}
}

// Validate checks that the limits are usable.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.MaxRequestsPerRemote <= 0 {
		errs = append(errs, errors.New("max-requests-per-remote must be positive"))
	}
	if cfg.MaxPendingOps <= 0 {
		errs = append(errs, errors.New("max-pending-ops must be positive"))
	}
	if cfg.MaxOpsPerRequest <= 0 || cfg.MaxOpsPerRequest > maxOps {
		errs = append(errs, errors.New("max-ops-per-request must be in (0, 1024]"))
	}
	if cfg.MaxHistoryPerResponse <= 0 || cfg.MaxHistoryPerResponse > maxHistory {
		errs = append(errs, errors.New("max-history-per-response must be in (0, 4096]"))
	}
	if cfg.MaxLiteralsPerResponse <= 0 {
		errs = append(errs, errors.New("max-literals-per-response must be positive"))
	}
	if cfg.RequestTimeout <= 0 || cfg.LiteralArrivalTimeout <= 0 || cfg.TimeoutCheckInterval <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	return errors.Join(errs...)
}
