package main

import (
	"fmt"
	"os"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "adminctl",
		Usage: "manage the admin credential and sessions",
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
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "qr",
				Usage: "admin QR credential",
				Subcommands: []*cli.Command{
					{
						Name:  "issue",
						Usage: "issue a new QR credential, the previous one stops working",
						Flags: []cli.Flag{
							adminFlag(),
							&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "PNG output path"},
						},
						Action: issueQR,
					},
					{
						Name:   "revoke",
						Usage:  "delete the QR credential",
						Flags:  []cli.Flag{adminFlag()},
						Action: revokeQR,
					},
				},
			},
			{
				Name:  "session",
				Usage: "admin sessions",
				Subcommands: []*cli.Command{
					{
						Name:   "revoke",
						Usage:  "revoke every session of an admin",
						Flags:  []cli.Flag{adminFlag()},
						Action: revokeSessions,
					},
				},
			},
			{
				Name:  "password",
				Usage: "dev password helpers",
				Subcommands: []*cli.Command{
					{
						Name:      "hash",
						Usage:     "print the bcrypt hash for dev_password_hash",
						ArgsUsage: "<password>",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "cost", Value: auth.DefaultBcryptCost},
						},
						Action: hashPassword,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("adminctl failed")
	}
}

func adminFlag() cli.Flag {
	return &cli.StringFlag{Name: "admin", Usage: "admin id, defaults to admin_id from config"}
}

func openService(c *cli.Context) (*auth.Service, string, error) {
	opts, err := auth.LoadOptions(c.String("config"), c.String("env-prefix"))
	if err != nil {
		return nil, "", err
	}

	svc, err := auth.NewService(c.Context, opts,
		auth.WithServiceLogger(auth.NewLogrusLogger(logrus.StandardLogger())),
		auth.WithoutAuthenticator(),
	)
	if err != nil {
		return nil, "", err
	}

	adminID := c.String("admin")
	if adminID == "" {
		adminID = opts.AdminID
	}
	return svc, adminID, nil
}

func issueQR(c *cli.Context) error {
	svc, adminID, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	issued, err := svc.QR.Issue(c.Context, adminID)
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.String("out"), issued.PNG, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "issued QR credential for %s at %s\n", adminID, issued.IssuedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func revokeQR(c *cli.Context) error {
	svc, adminID, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.QR.Revoke(c.Context, adminID); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "revoked QR credential for %s\n", adminID)
	return nil
}

func revokeSessions(c *cli.Context) error {
	svc, adminID, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	n, err := svc.Issuer.RevokeAdmin(c.Context, adminID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "revoked %d sessions for %s\n", n, adminID)
	return nil
}

func hashPassword(c *cli.Context) error {
	password := c.Args().First()
	if password == "" {
		return cli.Exit("password argument is required", 2)
	}

	hash, err := auth.BcryptPasswords{Cost: c.Int("cost")}.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}
