package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STELLARSAVE_"

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding the existing environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from STELLARSAVE_* variables read through
// lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("GATEWAY", &c.Gateway.Mode)
	str("RPC_URL", &c.Gateway.RPCURL)
	str("SAVINGS_CONTRACT", &c.Gateway.Contracts.Savings)
	str("REWARD_CONTRACT", &c.Gateway.Contracts.RewardToken)
	str("YIELD_CONTRACT", &c.Gateway.Contracts.CrossBorder)
	str("LEDGER_PATH", &c.Ledger.Path)
	str("ADMIN", &c.Ledger.Admin)
	str("API_ADDR", &c.API.Addr)

	if v, ok := lookup(EnvPrefix + "RPC_API_KEY"); ok && v != "" {
		if c.Gateway.Headers == nil {
			c.Gateway.Headers = make(map[string]string)
		}
		c.Gateway.Headers["X-API-Key"] = v
	}
	if v, ok := lookup(EnvPrefix + "AUTO_REFRESH"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sAUTO_REFRESH: %w", EnvPrefix, err)
		}
		c.Refresh.AutoRefresh = d
	}
	if v, ok := lookup(EnvPrefix + "GATEWAY_RPS"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sGATEWAY_RPS: %w", EnvPrefix, err)
		}
		c.Gateway.RateLimit.RPS = rps
	}
	return nil
}
