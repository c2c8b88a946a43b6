package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go-invoice/payment/verify"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	// WEB3_RPC_URL wins over RPC_URL, RPC_URL carries the default
	RPCURL       string        `envconfig:"WEB3_RPC_URL" validate:"omitempty,url"`
	LegacyRPCURL string        `envconfig:"RPC_URL" default:"https://sepolia.base.org" validate:"omitempty,url"`
	USDCContract string        `envconfig:"USDC_CONTRACT" default:"0x036CbD53842c5426634e7929541eC2318f3dCF7e" validate:"required,eth_addr"`
	ChainID      int64         `envconfig:"CHAIN_ID" default:"84532"`
	RPCTimeout   time.Duration `envconfig:"RPC_TIMEOUT" default:"15s" validate:"gt=0"`

	LedgerPath   string `envconfig:"LEDGER_PATH" default:"data/ledger.jsonl" validate:"required"`
	LedgerDSN    string `envconfig:"LEDGER_DSN"`
	PayeeAddress string `envconfig:"PAYEE_ADDRESS" validate:"omitempty,eth_addr"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPHost    string   `envconfig:"HTTP_HOST"`
	HTTPPort    string   `envconfig:"HTTP_PORT" default:"8080"`
	RateLimit   float64  `envconfig:"RATE_LIMIT" default:"5"` // requests per second per client
	RateBurst   int      `envconfig:"RATE_BURST" default:"10"`
	JWTSecret   string   `envconfig:"JWT_SECRET"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
	WebhookURL  string   `envconfig:"WEBHOOK_URL" validate:"omitempty,url"`
}

const rpcURLTag = "required,url,startswith=http://|startswith=https://|startswith=ws://|startswith=wss://"

var validate = validator.New()

// Load reads the configuration from the environment. Call utils.LoadEnv first to pick up .env.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		var perr *envconfig.ParseError
		if errors.As(err, &perr) {
			typeName := perr.TypeName
			if strings.HasPrefix(typeName, "int") || strings.HasPrefix(typeName, "uint") {
				typeName = "integer"
			}
			return nil, fmt.Errorf("%s must be a valid %s, got: %q", perr.KeyName, typeName, perr.Value)
		}
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s %q: failed %s check", fe.Field(), fe.Value(), fe.Tag())
		}
		return err
	}

	if err := validate.Var(c.RPCEndpoint(), rpcURLTag); err != nil {
		return fmt.Errorf("invalid RPC endpoint %q: must be an http, https, ws or wss URL", c.RPCEndpoint())
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

func (c *Config) RPCEndpoint() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return c.LegacyRPCURL
}

func (c *Config) TokenAddress() common.Address {
	return common.HexToAddress(c.USDCContract)
}

func (c *Config) VerifierConfig() verify.Config {
	return verify.Config{
		RPCURL:  c.RPCEndpoint(),
		Token:   c.TokenAddress(),
		ChainID: c.ChainID,
		Timeout: c.RPCTimeout,
	}
}

// SetupLogging points logrus at stderr with the configured level, stdout is kept for command output.
func (c *Config) SetupLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func (c *Config) AllowAllOrigins() bool {
	for _, o := range c.CORSOrigins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
