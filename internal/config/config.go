package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vadimbarashkov/link-gateway/internal/entity"
	"github.com/vadimbarashkov/link-gateway/internal/urlcheck"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// SecretEnv overrides cipher.secret when set.
const SecretEnv = "LINK_GATEWAY_SECRET"

const minSecretLength = 16

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env        string `yaml:"env"`
	Storage    string `yaml:"storage"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	Cipher     `yaml:"cipher"`
	Gateway    `yaml:"gateway"`
	RateLimit  `yaml:"rate_limit"`
	Bots       `yaml:"bots"`
	Registry   `yaml:"registry"`
	Sweeper    `yaml:"sweeper"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
	SwaggerFile    string        `yaml:"swagger_file"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
	SwaggerFile:    "./docs/swagger.yml",
	AllowedOrigins: []string{"https://*"},
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	MigrationsPath  string        `yaml:"migrations_path"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	MigrationsPath:  "file://migrations",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Redis backs the rate limiter. An empty Addr selects the in-process limiter.
type Redis struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	Timeout   time.Duration `yaml:"timeout"`
}

var defaultRedis = Redis{
	KeyPrefix: "link-gateway:ratelimit:",
	Timeout:   100 * time.Millisecond,
}

type Cipher struct {
	Secret string `yaml:"secret"`
}

type Gateway struct {
	ShortIDLength    int           `yaml:"short_id_length"`
	LookupTimeout    time.Duration `yaml:"lookup_timeout"`
	ClickTimeout     time.Duration `yaml:"click_timeout"`
	RegistryTimeout  time.Duration `yaml:"registry_timeout"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

var defaultGateway = Gateway{
	ShortIDLength:    12,
	LookupTimeout:    5 * time.Second,
	ClickTimeout:     2 * time.Second,
	RegistryTimeout:  500 * time.Millisecond,
	BatchConcurrency: 8,
	ShutdownTimeout:  10 * time.Second,
}

// Limit is a fixed-window quota. Zero MaxRequests disables it.
type Limit struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

type RateLimit struct {
	Redirect Limit `yaml:"redirect"`
	Continue Limit `yaml:"continue"`
	API      Limit `yaml:"api"`
}

var defaultRateLimit = RateLimit{
	Redirect: Limit{MaxRequests: 120, Window: time.Minute},
	Continue: Limit{MaxRequests: 5, Window: time.Minute},
	API:      Limit{MaxRequests: 60, Window: time.Minute},
}

type Bots struct {
	PatternsFile   string   `yaml:"patterns_file"`
	ActionPrefixes []string `yaml:"action_prefixes"`
}

// RegistryDomain is a sensitive domain seeded into the registry at startup.
type RegistryDomain struct {
	Domain   string `yaml:"domain"`
	Category string `yaml:"category"`
	Alias    string `yaml:"alias"`
}

type Registry struct {
	Domains []RegistryDomain `yaml:"domains"`
}

// Entries converts the seed list into registry entries keyed by normalized
// host. Validate must have accepted the config first.
func (r *Registry) Entries() []entity.RegistryEntry {
	entries := make([]entity.RegistryEntry, 0, len(r.Domains))
	for _, d := range r.Domains {
		c, _ := entity.ParseCategory(d.Category)
		entries = append(entries, entity.RegistryEntry{
			Domain:   urlcheck.NormalizeHost(d.Domain),
			Category: c,
			Alias:    d.Alias,
		})
	}
	return entries
}

type Sweeper struct {
	Interval time.Duration `yaml:"interval"`
}

var defaultSweeper = Sweeper{
	Interval: 10 * time.Minute,
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if secret := os.Getenv(SecretEnv); secret != "" {
		cfg.Cipher.Secret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

// Validate reports the first setting the gateway cannot start with.
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, c.Storage)
	}

	if len(c.Cipher.Secret) < minSecretLength {
		return fmt.Errorf("%w: cipher secret must be at least %d bytes", ErrInvalidConfig, minSecretLength)
	}

	if c.Gateway.ShortIDLength < 6 || c.Gateway.ShortIDLength > 32 {
		return fmt.Errorf("%w: short id length must be between 6 and 32", ErrInvalidConfig)
	}

	if c.Gateway.LookupTimeout <= 0 || c.Gateway.ClickTimeout <= 0 {
		return fmt.Errorf("%w: gateway timeouts must be positive", ErrInvalidConfig)
	}

	for name, l := range map[string]Limit{
		"redirect": c.RateLimit.Redirect,
		"continue": c.RateLimit.Continue,
		"api":      c.RateLimit.API,
	} {
		if l.MaxRequests < 0 || (l.MaxRequests > 0 && l.Window <= 0) {
			return fmt.Errorf("%w: rate limit %s needs a positive window", ErrInvalidConfig, name)
		}
	}

	for _, d := range c.Registry.Domains {
		if d.Domain == "" {
			return fmt.Errorf("%w: registry domain must not be empty", ErrInvalidConfig)
		}
		if _, ok := entity.ParseCategory(d.Category); !ok {
			return fmt.Errorf("%w: registry domain %s has unknown category %q", ErrInvalidConfig, d.Domain, d.Category)
		}
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.Storage = StoragePostgres
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
	cfg.Gateway = defaultGateway
	cfg.RateLimit = defaultRateLimit
	cfg.Sweeper = defaultSweeper
}
