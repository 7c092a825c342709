package jwtware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup       = "header:" + fiber.HeaderAuthorization
	defaultSessionLookup     = "header:X-Session-Token"
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
	ErrSessionTokenMissing   = errors.New("missing session token")
)

// Session mirrors the validated session view from the auth package
// without an import cycle
type Session interface {
	GetAdminID() string
	GetSessionID() string
	GetMode() string
	GetExpiresAt() time.Time
}

// Validator checks an access token together with its session token
type Validator interface {
	ValidateTokens(ctx context.Context, accessToken, sessionToken string) (Session, error)
}

// ValidatorFunc adapts a function into a Validator
type ValidatorFunc func(ctx context.Context, accessToken, sessionToken string) (Session, error)

func (f ValidatorFunc) ValidateTokens(ctx context.Context, accessToken, sessionToken string) (Session, error) {
	return f(ctx, accessToken, sessionToken)
}

// ValidationListener is invoked after the tokens have been validated.
type ValidationListener func(c *fiber.Ctx, session Session) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	// Validator is required
	Validator     Validator
	ContextKey    string
	TokenLookup   string
	SessionLookup string
	AuthScheme    string

	// ContextEnricher is an optional function to propagate the session to
	// the request's user context.
	ContextEnricher func(c context.Context, session Session) context.Context

	// ValidationListeners are invoked after validation succeeds.
	ValidationListeners []ValidationListener
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	accessExtractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
	sessionExtractors := GetExtractors(cfg.SessionLookup, "")

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		access, err := ExtractRawToken(c, accessExtractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		sessionToken, err := ExtractRawToken(c, sessionExtractors)
		if err != nil {
			return cfg.ErrorHandler(c, ErrSessionTokenMissing)
		}

		session, err := cfg.Validator.ValidateTokens(c.UserContext(), access, sessionToken)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		for _, listener := range cfg.ValidationListeners {
			if listener == nil {
				continue
			}
			if err := listener(c, session); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		c.Locals(cfg.ContextKey, session)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), session))
		}

		return cfg.SuccessHandler(c)
	}
}

func ExtractRawToken(c *fiber.Ctx, extractors []Extractor) (string, error) {
	var raw string
	err := ErrJWTMissingOrMalformed

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			if errors.Is(err, ErrJWTMissingOrMalformed) {
				return c.Status(fiber.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
			}
			return c.Status(fiber.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.Validator == nil {
		panic("AUTH: JWT middleware configuration: Validator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "session"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.SessionLookup == "" {
		cfg.SessionLookup = defaultSessionLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// GetExtractors parses lookups such as "header:Authorization,cookie:jwt".
// An empty authScheme reads header values verbatim.
func GetExtractors(lookup string, authScheme string) []Extractor {
	extractors := make([]Extractor, 0)

	for _, rootPart := range strings.Split(lookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, fromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, fromQuery(name))
		case "param":
			extractors = append(extractors, fromParam(name))
		case "cookie":
			extractors = append(extractors, fromCookie(name))
		}
	}

	return extractors
}

type Extractor func(c *fiber.Ctx) (string, error)

func fromHeader(header string, authScheme string) Extractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(c *fiber.Ctx) (string, error) {
		a := strings.TrimSpace(c.Get(header))
		if authScheme == "" {
			if a == "" {
				return "", ErrJWTMissingOrMalformed
			}
			return a, nil
		}
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

func fromQuery(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func fromParam(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func fromCookie(name string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
