// internal/transaction/config.go
package transaction

import (
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

const (
	DefaultTimeout             = 60 * time.Second
	DefaultRebroadcastInterval = 500 * time.Millisecond
	DefaultPollInterval        = 2 * time.Second
	DefaultBuildConcurrency    = 4
)

// Config параметры отправки и подтверждения транзакций.
type Config struct {
	// Timeout общий дедлайн на подтверждение одной транзакции.
	Timeout             time.Duration
	RebroadcastInterval time.Duration
	PollInterval        time.Duration
	Commitment          rpc.CommitmentType
	// Poll включает опрос getSignatureStatuses параллельно с push-подпиской.
	Poll          bool
	SkipPreflight bool
}

// DefaultConfig значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		RebroadcastInterval: DefaultRebroadcastInterval,
		PollInterval:        DefaultPollInterval,
		Commitment:          rpc.CommitmentProcessed,
		Poll:                true,
		SkipPreflight:       true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RebroadcastInterval <= 0 {
		c.RebroadcastInterval = d.RebroadcastInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Commitment == "" {
		c.Commitment = d.Commitment
	}
	return c
}
