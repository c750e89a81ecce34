// Package config loads service settings from defaults, an optional .env file
// and the environment, in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "UNIREC_"

// Config holds runtime settings for the API and migration commands.
type Config struct {
	HTTPAddr          string
	DatabaseDSN       string
	JWTSecret         string
	JWTIssuer         string
	AccessTokenTTL    time.Duration
	ResetTokenTTL     time.Duration
	BcryptCost        int
	MinPasswordLength int
	RateLimitBurst    int
	RateLimitPerSec   int
	MaxBodyBytes      int64
	CORSOrigins       []string
	TrustedProxies    []netip.Prefix
	AutoMigrate       bool
	LogLevel          string
}

// Defaults returns the built-in settings. Secrets and the DSN have no default.
func Defaults() Config {
	return Config{
		HTTPAddr:          ":8080",
		JWTIssuer:         "unirecords",
		AccessTokenTTL:    8 * time.Hour,
		ResetTokenTTL:     30 * time.Minute,
		BcryptCost:        10,
		MinPasswordLength: 8,
		RateLimitBurst:    10,
		RateLimitPerSec:   5,
		MaxBodyBytes:      1 << 20,
		AutoMigrate:       true,
		LogLevel:          "info",
	}
}

// Load reads UNIREC_ENV_FILE (default .env) when it exists, then the process
// environment. Variables already set in the environment are not overridden by the file.
func Load() (Config, error) {
	envFile := os.Getenv(envPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults for unset keys.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	p := parser{lookup: lookup}

	p.str("HTTP_ADDR", &cfg.HTTPAddr)
	p.str("PG_DSN", &cfg.DatabaseDSN)
	p.str("JWT_SECRET", &cfg.JWTSecret)
	p.str("JWT_ISSUER", &cfg.JWTIssuer)
	p.duration("JWT_EXPIRES_IN", &cfg.AccessTokenTTL)
	p.duration("RESET_TOKEN_TTL", &cfg.ResetTokenTTL)
	p.integer("BCRYPT_COST", &cfg.BcryptCost)
	p.integer("MIN_PASSWORD_LENGTH", &cfg.MinPasswordLength)
	p.integer("RATE_LIMIT_BURST", &cfg.RateLimitBurst)
	p.integer("RATE_LIMIT_PER_SEC", &cfg.RateLimitPerSec)
	p.int64("MAX_BODY_BYTES", &cfg.MaxBodyBytes)
	p.list("CORS_ORIGINS", &cfg.CORSOrigins)
	p.prefixes("TRUSTED_PROXIES", &cfg.TrustedProxies)
	p.boolean("AUTO_MIGRATE", &cfg.AutoMigrate)
	p.str("LOG_LEVEL", &cfg.LogLevel)

	if err := errors.Join(append(p.errs, cfg.validate()...)...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New(envPrefix+"PG_DSN is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New(envPrefix+"JWT_SECRET is required"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New(envPrefix+"JWT_EXPIRES_IN must be positive"))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New(envPrefix+"RESET_TOKEN_TTL must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("%sBCRYPT_COST must be between 4 and 31, got %d", envPrefix, c.BcryptCost))
	}
	if c.MinPasswordLength < 1 {
		errs = append(errs, errors.New(envPrefix+"MIN_PASSWORD_LENGTH must be positive"))
	}
	if c.RateLimitBurst < 1 || c.RateLimitPerSec < 1 {
		errs = append(errs, errors.New(envPrefix+"RATE_LIMIT_BURST and RATE_LIMIT_PER_SEC must be positive"))
	}
	if c.MaxBodyBytes < 1 {
		errs = append(errs, errors.New(envPrefix+"MAX_BODY_BYTES must be positive"))
	}
	return errs
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) duration(key string, dst *time.Duration) {
	if v, ok := p.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = d
	}
}

func (p *parser) integer(key string, dst *int) {
	if v, ok := p.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = n
	}
}

func (p *parser) int64(key string, dst *int64) {
	if v, ok := p.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = n
	}
}

func (p *parser) boolean(key string, dst *bool) {
	if v, ok := p.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = b
	}
}

func (p *parser) list(key string, dst *[]string) {
	if v, ok := p.get(key); ok {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
	}
}

// prefixes reads a comma list of CIDRs; a bare address is a single-host prefix.
func (p *parser) prefixes(key string, dst *[]netip.Prefix) {
	var items []string
	p.list(key, &items)
	out := make([]netip.Prefix, 0, len(items))
	for _, item := range items {
		if !strings.Contains(item, "/") {
			addr, err := netip.ParseAddr(item)
			if err != nil {
				p.fail(key, err)
				return
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(item)
		if err != nil {
			p.fail(key, err)
			return
		}
		out = append(out, prefix.Masked())
	}
	if len(out) > 0 {
		*dst = out
	}
}
