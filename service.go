package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
)

// pruneGrace keeps dead session rows around for a day for audits
const pruneGrace = 24 * time.Hour

// Service holds the wired server side components for one Options value
type Service struct {
	Options      *Options
	Logger       Logger
	DB           *bun.DB
	Redis        redis.UniversalClient
	Repositories RepositoryManager
	Tokens       *TokenServiceImpl
	Issuer       *SessionIssuer
	QR           *QRRegistry
	Auther       *Auther
	Metrics      *Metrics
	Registry     *prometheus.Registry

	closers []func()
}

type serviceConfig struct {
	logger   Logger
	verifier CredentialVerifier
	registry *prometheus.Registry
	skipAuth bool
}

type ServiceOption func(*serviceConfig)

func WithServiceLogger(logger Logger) ServiceOption {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

// WithServiceVerifier skips building a verifier from the options
func WithServiceVerifier(v CredentialVerifier) ServiceOption {
	return func(c *serviceConfig) {
		c.verifier = v
	}
}

func WithServiceRegistry(r *prometheus.Registry) ServiceOption {
	return func(c *serviceConfig) {
		c.registry = r
	}
}

// WithoutAuthenticator builds storage and sessions only, for admin tooling
func WithoutAuthenticator() ServiceOption {
	return func(c *serviceConfig) {
		c.skipAuth = true
	}
}

// NewService opens storage, migrates it and wires the issuer, the QR
// registry and the authenticator.
func NewService(ctx context.Context, opts *Options, svcOpts ...ServiceOption) (*Service, error) {
	cfg := &serviceConfig{}
	for _, opt := range svcOpts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	if cfg.registry == nil {
		cfg.registry = prometheus.NewRegistry()
	}

	s := &Service{
		Options:  opts,
		Logger:   cfg.logger,
		Registry: cfg.registry,
		Metrics:  NewMetrics(cfg.registry),
	}

	if err := s.openStorage(ctx); err != nil {
		s.Close()
		return nil, err
	}

	sink := LoggerActivitySink(s.Logger)
	s.Tokens = NewTokenServiceFromConfig(opts, s.Logger)

	sessions := s.Repositories.Sessions()
	if s.Redis != nil {
		sessions = NewRedisSessionStore(s.Redis, opts.Store.RedisPrefix)
	}

	s.Issuer = NewSessionIssuer(sessions, s.Tokens, opts).
		WithLogger(WithFields(s.Logger, map[string]any{"component": "issuer"})).
		WithMetrics(s.Metrics).
		WithActivitySink(sink)

	s.QR = NewQRRegistry(s.Repositories.Credentials(),
		WithQRLogger(WithFields(s.Logger, map[string]any{"component": "qr"})),
		WithQRMetrics(s.Metrics),
		WithQRActivitySink(sink),
	)

	if cfg.skipAuth {
		return s, nil
	}

	auther, err := NewAuthenticator(opts, s.Issuer)
	if err != nil {
		s.Close()
		return nil, err
	}
	auther.WithLogger(WithFields(s.Logger, map[string]any{"component": "auther"})).
		WithMetrics(s.Metrics).
		WithActivitySink(sink).
		WithAttemptLimiter(NewAttemptLimiter(opts.RateLimit.PerMinute, opts.RateLimit.Burst))

	if opts.Mode == ModeProd {
		verifier := cfg.verifier
		if verifier == nil {
			v, closer, err := NewCredentialVerifier(ctx, opts.Verifier, s.Logger)
			if err != nil {
				s.Close()
				return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build credential verifier")
			}
			s.closers = append(s.closers, closer)
			verifier = v
		}
		auther.WithCredentialVerifier(verifier).WithSecondFactor(s.QR)
	}

	if err := auther.Validate(); err != nil {
		s.Close()
		return nil, err
	}
	s.Auther = auther

	return s, nil
}

func (s *Service) openStorage(ctx context.Context) error {
	db, err := OpenSQLite(s.Options.Store.DSN)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to open database")
	}
	s.DB = db
	s.closers = append(s.closers, func() { _ = db.Close() })

	s.Repositories = NewRepositoryManager(db)
	if err := s.Repositories.Validate(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "invalid repository setup")
	}
	if err := s.Repositories.Migrate(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to migrate database")
	}

	if s.Options.Store.Sessions != SessionStoreRedis {
		return nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{s.Options.Store.RedisAddr},
		Password: s.Options.Store.RedisPassword,
		DB:       s.Options.Store.RedisDB,
	})
	s.closers = append(s.closers, func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to reach redis")
	}
	s.Redis = client
	return nil
}

// App builds the fiber application serving the auth routes
func (s *Service) App() *fiber.App {
	if s.Auther == nil {
		panic("service was built without an authenticator")
	}

	maxArtifact := int64(s.Options.HTTP.MaxArtifactSize)
	app := fiber.New(fiber.Config{
		AppName:               "admin-auth",
		ErrorHandler:          ErrorHandler(s.Logger),
		BodyLimit:             int(maxArtifact) + 64<<10,
		DisableStartupMessage: true,
	})

	controller := NewAuthController(
		WithAuthenticator(s.Auther),
		WithSessionManager(s.Issuer),
		WithControllerConfig(s.Options),
		WithControllerLogger(s.Logger),
		WithMaxArtifactSize(maxArtifact),
		WithDebug(s.Options.Debug),
	)
	RegisterAuthRoutes(app, controller)

	if s.Options.HTTP.MetricsEnabled {
		RegisterMetricsRoute(app, "/metrics", s.Registry)
	}

	return app
}

// StartPruning schedules session cleanup. The returned function stops the
// scheduler and waits for a running job.
func (s *Service) StartPruning() (func(), error) {
	schedule := s.Options.Store.PruneSchedule
	if schedule == "" || s.Redis != nil {
		return func() {}, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Issuer.Prune(ctx, pruneGrace); err != nil {
			s.Logger.Error("session prune failed", "error", err)
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid prune schedule")
	}

	c.Start()
	return func() {
		<-c.Stop().Done()
	}, nil
}

// Close releases storage and background verifier resources
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
