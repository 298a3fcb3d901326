package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/truthstamp/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig           `yaml:"store" mapstructure:"store"`
	Log       LogConfig             `yaml:"log" mapstructure:"log"`
	Server    ServerConfig          `yaml:"server" mapstructure:"server"`
	Identity  IdentityConfig        `yaml:"identity" mapstructure:"identity"`
	Protocol  model.ConsensusParams `yaml:"protocol" mapstructure:"protocol"`
	Contracts ContractsConfig       `yaml:"contracts" mapstructure:"contracts"`
	Retry     RetryConfig           `yaml:"retry" mapstructure:"retry"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	NonceTTLSecs   int      `yaml:"nonce_ttl_secs" mapstructure:"nonce_ttl_secs"`
}

// IdentityConfig locates the signing key used by CLI commands.
type IdentityConfig struct {
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`
}

// ContractsConfig names the addresses of the three protocol components.
type ContractsConfig struct {
	ClaimRegistry   string `yaml:"claim_registry" mapstructure:"claim_registry"`
	ExpertRegistry  string `yaml:"expert_registry" mapstructure:"expert_registry"`
	ReviewConsensus string `yaml:"review_consensus" mapstructure:"review_consensus"`
}

// RetryConfig configures transaction retries on transient store errors.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRUTHSTAMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	params := model.DefaultConsensusParams()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "truthstamp.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.nonce_ttl_secs", 300)
	v.SetDefault("identity.key_file", "truthstamp.key")
	v.SetDefault("protocol.min_reviews", params.MinReviews)
	v.SetDefault("protocol.reward_percentage", params.RewardPercentage)
	v.SetDefault("protocol.slash_percentage", params.SlashPercentage)
	v.SetDefault("protocol.correct_points", params.CorrectPoints)
	v.SetDefault("protocol.incorrect_points", params.IncorrectPoints)
	v.SetDefault("contracts.claim_registry", "contract:claim_registry")
	v.SetDefault("contracts.expert_registry", "contract:expert_registry")
	v.SetDefault("contracts.review_consensus", "contract:review_consensus")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 20)
	v.SetDefault("retry.max_backoff_ms", 1000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by mode: "serve" for the HTTP API,
// "cli" for commands that run protocol operations, or "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "migrate":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
			errs = append(errs, "server.rate_limit_rps and server.rate_limit_burst must be >= 0")
		}
		if c.Server.NonceTTLSecs <= 0 {
			errs = append(errs, "server.nonce_ttl_secs must be > 0")
		}
		errs = append(errs, c.protocolErrors()...)
	case "cli":
		errs = append(errs, c.protocolErrors()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) protocolErrors() []string {
	var errs []string
	if err := c.Protocol.Validate(); err != nil {
		errs = append(errs, "protocol: "+err.Error())
	}
	seen := map[string]bool{}
	for _, addr := range []string{c.Contracts.ClaimRegistry, c.Contracts.ExpertRegistry, c.Contracts.ReviewConsensus} {
		switch {
		case addr == "":
			errs = append(errs, "contracts addresses are required")
		case seen[addr]:
			errs = append(errs, fmt.Sprintf("contracts address %q used twice", addr))
		}
		seen[addr] = true
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be >= 1")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
