package auth

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix used by LoadOptions.
// Nested keys are separated by a double underscore, e.g.
// ADMIN_AUTH_VERIFIER__JWKS_URL maps to verifier.jwks_url.
const DefaultEnvPrefix = "ADMIN_AUTH_"

const (
	DefaultAccessTokenTTL = 15 * time.Minute
	DefaultSessionTTL     = 12 * time.Hour
	DefaultSessionHeader  = "X-Session-Token"
	DefaultRegion         = "IN"
)

const (
	VerifierJWKS = "jwks"
	VerifierOIDC = "oidc"

	SessionStoreSQL   = "sql"
	SessionStoreRedis = "redis"
)

// VerifierOptions configures the identity provider proof check
type VerifierOptions struct {
	Kind      string `koanf:"kind"`
	IssuerURL string `koanf:"issuer_url"`
	JWKSURL   string `koanf:"jwks_url"`
	ClientID  string `koanf:"client_id"`
}

// StoreOptions configures persistence
type StoreOptions struct {
	DSN           string `koanf:"dsn"`
	Sessions      string `koanf:"sessions"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`
	// PruneSchedule is a cron expression for deleting dead SQL sessions, empty disables it
	PruneSchedule string `koanf:"prune_schedule"`
}

// HTTPOptions configures the fiber server
type HTTPOptions struct {
	Addr            string `koanf:"addr"`
	MaxArtifactSize int    `koanf:"max_artifact_size"`
	MetricsEnabled  bool   `koanf:"metrics_enabled"`
}

// RateLimitOptions throttles login attempts per identifier
type RateLimitOptions struct {
	PerMinute int `koanf:"per_minute"`
	Burst     int `koanf:"burst"`
}

// Options is the concrete Config. Zero values are replaced by
// DefaultOptions when loaded through LoadOptions.
type Options struct {
	Mode              SessionMode      `koanf:"mode"`
	AdminID           string           `koanf:"admin_id"`
	SigningKey        string           `koanf:"signing_key"`
	Issuer            string           `koanf:"issuer"`
	Audience          []string         `koanf:"audience"`
	AccessTokenTTL    time.Duration    `koanf:"access_token_ttl"`
	SessionTTL        time.Duration    `koanf:"session_ttl"`
	AuthorizedContact string           `koanf:"authorized_contact"`
	DefaultRegion     string           `koanf:"default_region"`
	DevPhone          string           `koanf:"dev_phone"`
	DevPasswordHash   string           `koanf:"dev_password_hash"`
	SessionHeader     string           `koanf:"session_header"`
	LogLevel          string           `koanf:"log_level"`
	Debug             bool             `koanf:"debug"`
	Verifier          VerifierOptions  `koanf:"verifier"`
	Store             StoreOptions     `koanf:"store"`
	HTTP              HTTPOptions      `koanf:"http"`
	RateLimit         RateLimitOptions `koanf:"rate_limit"`
}

// DefaultOptions returns production leaning defaults
func DefaultOptions() *Options {
	return &Options{
		Mode:           ModeProd,
		AdminID:        "admin",
		Issuer:         "go-admin-auth",
		Audience:       []string{"admin"},
		AccessTokenTTL: DefaultAccessTokenTTL,
		SessionTTL:     DefaultSessionTTL,
		DefaultRegion:  DefaultRegion,
		SessionHeader:  DefaultSessionHeader,
		LogLevel:       "info",
		Verifier: VerifierOptions{
			Kind: VerifierJWKS,
		},
		Store: StoreOptions{
			DSN:           "file:admin-auth.db?cache=shared",
			Sessions:      SessionStoreSQL,
			RedisPrefix:   "admin-auth:",
			PruneSchedule: "@every 1h",
		},
		HTTP: HTTPOptions{
			Addr:            ":8080",
			MaxArtifactSize: 2 << 20,
			MetricsEnabled:  true,
		},
		RateLimit: RateLimitOptions{
			PerMinute: 5,
			Burst:     5,
		},
	}
}

// LoadOptions reads defaults, then the YAML file at path (optional),
// then environment variables carrying envPrefix. The result is validated.
func LoadOptions(path, envPrefix string) (*Options, error) {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	transform := func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}

	if err := k.Load(env.Provider(envPrefix, ".", transform), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	opts := DefaultOptions()
	if err := k.Unmarshal("", opts); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}

// Validate checks field constraints and the consistency between the
// selected mode and the credentials it requires.
func (o Options) Validate() error {
	err := validation.ValidateStruct(&o,
		validation.Field(&o.Mode, validation.Required, validation.In(ModeDev, ModeProd)),
		validation.Field(&o.AdminID, validation.Required),
		validation.Field(&o.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&o.Issuer, validation.Required),
		validation.Field(&o.AccessTokenTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&o.SessionTTL, validation.Required, validation.By(o.sessionOutlivesAccess)),
		validation.Field(&o.SessionHeader, validation.Required),
		validation.Field(&o.DefaultRegion, validation.Required, validation.Length(2, 2)),
		validation.Field(&o.Store),
	)
	if err != nil {
		return err
	}

	switch o.Mode {
	case ModeDev:
		if !DevLoginCompiledIn {
			return fmt.Errorf("mode %q is not available in this build", ModeDev)
		}
		return validation.ValidateStruct(&o,
			validation.Field(&o.DevPhone, validation.Required),
			validation.Field(&o.DevPasswordHash, validation.Required),
		)
	default:
		if err := validation.ValidateStruct(&o,
			validation.Field(&o.DevPhone, validation.By(mustBeEmpty)),
			validation.Field(&o.DevPasswordHash, validation.By(mustBeEmpty)),
			validation.Field(&o.AuthorizedContact, validation.Required),
		); err != nil {
			return err
		}
		return o.Verifier.Validate()
	}
}

// Validate checks the store settings
func (s StoreOptions) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.DSN, validation.Required),
		validation.Field(&s.Sessions, validation.Required, validation.In(SessionStoreSQL, SessionStoreRedis)),
		validation.Field(&s.RedisAddr, validation.By(func(value any) error {
			if s.Sessions == SessionStoreRedis && s.RedisAddr == "" {
				return fmt.Errorf("is required for %s session stores", SessionStoreRedis)
			}
			return nil
		})),
	)
}

// Validate checks the verifier settings
func (v VerifierOptions) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.Kind, validation.Required, validation.In(VerifierJWKS, VerifierOIDC)),
		validation.Field(&v.IssuerURL, validation.Required),
		validation.Field(&v.ClientID, validation.Required),
		validation.Field(&v.JWKSURL, validation.By(func(value any) error {
			if v.Kind == VerifierJWKS && v.JWKSURL == "" {
				return fmt.Errorf("is required for %s verifiers", VerifierJWKS)
			}
			return nil
		})),
	)
}

func (o Options) sessionOutlivesAccess(value any) error {
	if o.SessionTTL < o.AccessTokenTTL {
		return fmt.Errorf("must not be shorter than access_token_ttl")
	}
	return nil
}

func mustBeEmpty(value any) error {
	if s, _ := value.(string); s != "" {
		return fmt.Errorf("must be empty outside of dev mode")
	}
	return nil
}

func (o *Options) GetMode() SessionMode             { return o.Mode }
func (o *Options) GetAdminID() string               { return o.AdminID }
func (o *Options) GetSigningKey() string            { return o.SigningKey }
func (o *Options) GetIssuer() string                { return o.Issuer }
func (o *Options) GetAudience() []string            { return o.Audience }
func (o *Options) GetAccessTokenTTL() time.Duration { return o.AccessTokenTTL }
func (o *Options) GetSessionTTL() time.Duration     { return o.SessionTTL }
func (o *Options) GetAuthorizedContact() string     { return o.AuthorizedContact }
func (o *Options) GetDefaultRegion() string         { return o.DefaultRegion }
func (o *Options) GetDevPhone() string              { return o.DevPhone }
func (o *Options) GetDevPasswordHash() string       { return o.DevPasswordHash }
func (o *Options) GetSessionHeader() string         { return o.SessionHeader }
