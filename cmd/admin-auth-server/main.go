package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("admin-auth-server stopped")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "admin-auth-server",
		Usage: "serve the admin authentication routes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"ADMIN_AUTH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-prefix",
				Value: auth.DefaultEnvPrefix,
				Usage: "prefix of environment overrides",
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	opts, err := auth.LoadOptions(c.String("config"), c.String("env-prefix"))
	if err != nil {
		return err
	}

	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	if err := auth.ParseLogLevel(base, opts.LogLevel); err != nil {
		return err
	}
	logger := auth.NewLogrusLogger(base)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := auth.NewService(ctx, opts, auth.WithServiceLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	stopPruning, err := svc.StartPruning()
	if err != nil {
		return err
	}
	defer stopPruning()

	app := svc.App()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", opts.HTTP.Addr, "mode", opts.Mode)
		return app.Listen(opts.HTTP.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	return g.Wait()
}
