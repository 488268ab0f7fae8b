// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/rovshanmuradov/candy-mint/internal/transaction"
)

// EnvPrefix префикс переменных окружения, например CANDY_MINT_RPC_LIST.
const EnvPrefix = "CANDY_MINT"

type Config struct {
	RPCList        []string `mapstructure:"rpc_list" validate:"required,min=1,dive,required"`
	WebSocketURL   string   `mapstructure:"websocket_url"`
	CandyMachineID string   `mapstructure:"candy_machine_id"`
	Treasury       string   `mapstructure:"treasury"`
	KeypairFile    string   `mapstructure:"keypair_file"`
	AccessFile     string   `mapstructure:"access_file"`
	ErrorCodesFile string   `mapstructure:"error_codes_file"`

	TxTimeoutMs           int    `mapstructure:"tx_timeout_ms" validate:"gt=0"`
	RebroadcastIntervalMs int    `mapstructure:"rebroadcast_interval_ms" validate:"gt=0"`
	PollIntervalMs        int    `mapstructure:"poll_interval_ms" validate:"gt=0"`
	Commitment            string `mapstructure:"commitment" validate:"oneof=processed confirmed finalized"`
	PollStatus            bool   `mapstructure:"poll_status"`
	SkipPreflight         bool   `mapstructure:"skip_preflight"`
	BuildConcurrency      int    `mapstructure:"build_concurrency" validate:"gte=1,lte=64"`
	BlockhashCacheTTLMs   int    `mapstructure:"blockhash_cache_ttl_ms" validate:"gt=0"`

	DebugLogging      bool   `mapstructure:"debug_logging"`
	LogLevel          string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFile           string `mapstructure:"log_file"`
	MetricsAddr       string `mapstructure:"metrics_addr"`
	NATSURL           string `mapstructure:"nats_url"`
	NATSSubjectPrefix string `mapstructure:"nats_subject_prefix"`
}

const (
	DefaultTxTimeoutMs           = 60000
	DefaultRebroadcastIntervalMs = 500
	DefaultPollIntervalMs        = 2000
	DefaultCommitment            = "processed"
	DefaultBuildConcurrency      = transaction.DefaultBuildConcurrency
	DefaultBlockhashCacheTTLMs   = 20000
	DefaultLogFile               = "candy-mint.log"
	DefaultNATSSubjectPrefix     = "candymint"
)

var defaults = map[string]interface{}{
	"rpc_list":                []string{},
	"websocket_url":           "",
	"candy_machine_id":        "",
	"treasury":                "",
	"keypair_file":            "",
	"access_file":             "",
	"error_codes_file":        "",
	"tx_timeout_ms":           DefaultTxTimeoutMs,
	"rebroadcast_interval_ms": DefaultRebroadcastIntervalMs,
	"poll_interval_ms":        DefaultPollIntervalMs,
	"commitment":              DefaultCommitment,
	"poll_status":             true,
	"skip_preflight":          true,
	"build_concurrency":       DefaultBuildConcurrency,
	"blockhash_cache_ttl_ms":  DefaultBlockhashCacheTTLMs,
	"debug_logging":           false,
	"log_level":               "info",
	"log_file":                DefaultLogFile,
	"metrics_addr":            "",
	"nats_url":                "",
	"nats_subject_prefix":     DefaultNATSSubjectPrefix,
}

// LoadConfig читает файл (если path не пустой), затем применяет переменные окружения.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.RPCList = cleanList(cfg.RPCList)

	return &cfg, validateConfig(&cfg)
}

// cleanList разбивает элементы по запятым: список из env приходит одной строкой.
func cleanList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if clean := strings.TrimSpace(part); clean != "" {
				out = append(out, clean)
			}
		}
	}
	return out
}

var validate = validator.New()

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if cfg.WebSocketURL != "" {
		if err := validateURLWithCache(cfg.WebSocketURL, "ws"); err != nil {
			return fmt.Errorf("invalid WebSocket URL: %w", err)
		}
	}
	if cfg.NATSURL != "" {
		if err := validateURLWithCache(cfg.NATSURL, "nats"); err != nil {
			return fmt.Errorf("invalid NATS URL: %w", err)
		}
	}
	if cfg.RebroadcastIntervalMs >= cfg.TxTimeoutMs {
		return errors.New("rebroadcast_interval_ms must be less than tx_timeout_ms")
	}
	for key, value := range map[string]string{"candy_machine_id": cfg.CandyMachineID, "treasury": cfg.Treasury} {
		if value == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

var urlCache, _ = lru.New[string, *url.URL](64)

// validateURLWithCache кеширует успешные проверки по паре протокол+URL:
// один и тот же адрес может быть валиден для http и невалиден для ws.
func validateURLWithCache(rawURL string, protocol string) error {
	key := protocol + "|" + rawURL
	if _, ok := urlCache.Get(key); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Add(key, parsed)
	return nil
}

// CandyMachine адрес автомата; обязателен для mint и state.
func (c *Config) CandyMachine() (solana.PublicKey, error) {
	if c.CandyMachineID == "" {
		return solana.PublicKey{}, errors.New("candy_machine_id is not set")
	}
	return solana.PublicKeyFromBase58(c.CandyMachineID)
}

// ZapLevel уровень логирования; значение уже проверено валидатором.
func (c *Config) ZapLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// TreasuryKey адрес казны или нулевой ключ, если не задан.
func (c *Config) TreasuryKey() solana.PublicKey {
	if c.Treasury == "" {
		return solana.PublicKey{}
	}
	return solana.MustPublicKeyFromBase58(c.Treasury)
}

func (c *Config) TxTimeout() time.Duration {
	return time.Duration(c.TxTimeoutMs) * time.Millisecond
}

func (c *Config) RebroadcastInterval() time.Duration {
	return time.Duration(c.RebroadcastIntervalMs) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) BlockhashCacheTTL() time.Duration {
	return time.Duration(c.BlockhashCacheTTLMs) * time.Millisecond
}

// TransactionConfig параметры для Broadcaster и Tracker.
func (c *Config) TransactionConfig() transaction.Config {
	return transaction.Config{
		Timeout:             c.TxTimeout(),
		RebroadcastInterval: c.RebroadcastInterval(),
		PollInterval:        c.PollInterval(),
		Commitment:          rpc.CommitmentType(c.Commitment),
		Poll:                c.PollStatus,
		SkipPreflight:       c.SkipPreflight,
	}
}
