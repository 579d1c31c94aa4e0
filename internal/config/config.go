// Package config loads stellarsave settings from a YAML file, a .env file
// and STELLARSAVE_* environment variables, in that order of precedence
// (environment wins).
//
// The raw file is checked against an embedded CUE schema before it is
// decoded, so typos and out-of-range values are reported with their path.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/stellarsave/stellarsave/internal/engine"
	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/ledger"
	"github.com/stellarsave/stellarsave/internal/query"
)

//go:embed schema.cue
var schemaSource string

// Gateway modes.
const (
	ModeFixture = "fixture"
	ModeRPC     = "rpc"
)

// RateLimit is a token bucket. A zero RPS disables limiting.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Enabled reports whether the limit applies.
func (r RateLimit) Enabled() bool {
	return r.RPS > 0
}

// GatewayConfig selects and tunes the contract gateway.
type GatewayConfig struct {
	Mode      string            `yaml:"mode"`
	RPCURL    string            `yaml:"rpc_url"`
	Headers   map[string]string `yaml:"headers"`
	Timeout   time.Duration     `yaml:"timeout"`
	Preflight bool              `yaml:"preflight"`
	Fanout    int               `yaml:"fanout"`
	RateLimit RateLimit         `yaml:"rate_limit"`
	Contracts gateway.Addresses `yaml:"contracts"`
}

// LedgerConfig locates the fixture ledger database.
type LedgerConfig struct {
	Path  string `yaml:"path"`
	Admin string `yaml:"admin"`
}

// CacheConfig holds the per-family query options.
type CacheConfig struct {
	Challenge query.Options `yaml:"challenge"`
	Progress  query.Options `yaml:"progress"`
	List      query.Options `yaml:"list"`
	Stats     query.Options `yaml:"stats"`
	Balance   query.Options `yaml:"balance"`
	Yield     query.Options `yaml:"yield"`

	// CollectInterval is how often unused entries are garbage collected.
	CollectInterval time.Duration `yaml:"collect_interval"`
}

// RefreshConfig controls the dashboard refresh loop.
type RefreshConfig struct {
	AutoRefresh time.Duration `yaml:"auto_refresh"`
	Enabled     bool          `yaml:"enabled"`
}

// NotificationsConfig bounds the notification list.
type NotificationsConfig struct {
	Cap int `yaml:"cap"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Addr        string    `yaml:"addr"`
	CORSOrigins []string  `yaml:"cors_origins"`
	RateLimit   RateLimit `yaml:"rate_limit"`
}

// Config is the full settings tree.
type Config struct {
	Gateway       GatewayConfig       `yaml:"gateway"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Cache         CacheConfig         `yaml:"cache"`
	Refresh       RefreshConfig       `yaml:"refresh"`
	Notifications NotificationsConfig `yaml:"notifications"`
	API           APIConfig           `yaml:"api"`
}

// Default returns the stock configuration: a fixture gateway over a local
// sqlite ledger.
func Default() Config {
	t := engine.DefaultTiming()
	return Config{
		Gateway: GatewayConfig{
			Mode:      ModeFixture,
			Timeout:   gateway.DefaultRPCTimeout,
			Fanout:    4,
			Contracts: gateway.DefaultAddresses,
		},
		Ledger: LedgerConfig{
			Path:  "stellarsave.db",
			Admin: ledger.DefaultAdmin,
		},
		Cache: CacheConfig{
			Challenge:       t.Challenge,
			Progress:        t.Progress,
			List:            t.List,
			Stats:           t.Stats,
			Balance:         t.Balance,
			Yield:           t.Yield,
			CollectInterval: time.Minute,
		},
		Refresh: RefreshConfig{
			AutoRefresh: t.AutoRefresh,
			Enabled:     true,
		},
		Notifications: NotificationsConfig{Cap: 50},
		API: APIConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
			RateLimit:   RateLimit{RPS: 20, Burst: 40},
		},
	}
}

// Timing converts the cache and refresh sections for the engine.
func (c Config) Timing() engine.Timing {
	return engine.Timing{
		Challenge:   c.Cache.Challenge,
		Progress:    c.Cache.Progress,
		List:        c.Cache.List,
		Stats:       c.Cache.Stats,
		Balance:     c.Cache.Balance,
		Yield:       c.Cache.Yield,
		AutoRefresh: c.Refresh.AutoRefresh,
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse checks data against the schema and decodes it over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := checkSchema(data); err != nil {
		return Config{}, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func checkSchema(data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	file, err := cueyaml.Extract("config.yaml", data)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// Validate checks rules the schema cannot express.
func (c Config) Validate() error {
	switch c.Gateway.Mode {
	case ModeFixture:
		if c.Ledger.Path == "" {
			return errors.New("config: ledger.path is required in fixture mode")
		}
	case ModeRPC:
		if c.Gateway.RPCURL == "" {
			return errors.New("config: gateway.rpc_url is required in rpc mode")
		}
	default:
		return fmt.Errorf("config: unknown gateway mode %q", c.Gateway.Mode)
	}
	if c.Notifications.Cap <= 0 {
		return errors.New("config: notifications.cap must be positive")
	}
	if c.Refresh.Enabled && c.Refresh.AutoRefresh <= 0 {
		return errors.New("config: refresh.auto_refresh must be positive when refresh is enabled")
	}
	return nil
}
