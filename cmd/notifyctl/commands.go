package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"collabhub.io/realtime/internal/auth"
	"collabhub.io/realtime/internal/config"
	"collabhub.io/realtime/internal/infrastructure"
	"collabhub.io/realtime/internal/jobs"
	"collabhub.io/realtime/internal/pkg/logger"
	"collabhub.io/realtime/internal/store/sqlite"
	"collabhub.io/realtime/internal/user"
)

// backend is the subset of a store the operator commands need.
type backend interface {
	jobs.Sweeper
	UpsertUser(ctx context.Context, u user.Record) error
	SchemaVersion(ctx context.Context) (int, error)
}

type ctl struct {
	cfg *config.Config
}

func newApp() *cli.Command {
	c := &ctl{}
	return &cli.Command{
		Name:  "notifyctl",
		Usage: "Operate the realtime notification service",
		Description: `notifyctl reads the same configuration as the server (config.yaml and
environment variables) and acts on the configured store.`,
		Before: c.before,
		Commands: []*cli.Command{
			c.migrateCmd(),
			c.tokenCmd(),
			c.sweepCmd(),
			c.userCmd(),
		},
	}
}

func (c *ctl) before(ctx context.Context, _ *cli.Command) (context.Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return ctx, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return ctx, fmt.Errorf("init logger: %w", err)
	}
	c.cfg = cfg
	return ctx, nil
}

// open returns the configured store. migrate also applies River's tables on
// PostgreSQL; SQLite always migrates on open.
func (c *ctl) open(ctx context.Context, migrate bool) (backend, func(), error) {
	if c.cfg.Database.Driver == config.DriverSQLite {
		store, err := sqlite.Open(c.cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}

	db, err := infrastructure.NewDatabaseClients(ctx, c.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return db.Store, db.Close, nil
}

func (c *ctl) migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, closeFn, err := c.open(ctx, true)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer closeFn()

			version, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "schema at version %d (%s)\n", version, c.cfg.Database.Driver)
			return nil
		},
	}
}

func (c *ctl) tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a signed token for a user",
		Description: `Prints an HS256 token the REST API and the websocket handshake accept.

Tokens are only useful when security.access_secret (or refresh_secret) is set
explicitly; auto-generated secrets change on every start.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "user id (token subject)", Required: true},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime (defaults to security.token_lifetime)"},
			&cli.BoolFlag{Name: "refresh", Usage: "sign with the refresh secret"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			secret := c.cfg.Security.AccessSecret
			if cmd.Bool("refresh") {
				secret = c.cfg.Security.RefreshSecret
			}
			ttl := cmd.Duration("ttl")
			if ttl <= 0 {
				ttl = c.cfg.Security.TokenLifetime
			}

			token, expiresAt, err := auth.GenerateToken(auth.TokenConfig{
				SigningKey: []byte(secret),
				Issuer:     c.cfg.Security.Issuer,
				ExpiresIn:  ttl,
			}, strings.TrimSpace(cmd.String("user")))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, token)
			logger.Debug("token minted", zap.Time("expires_at", expiresAt))
			return nil
		},
	}
}

func (c *ctl) sweepCmd() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Delete expired notifications now",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, closeFn, err := c.open(ctx, false)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			defer closeFn()

			deleted, err := jobs.NewNotificationCleanupWorker(store).Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "deleted %d expired notifications\n", deleted)
			return nil
		},
	}
}

func (c *ctl) userCmd() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage the user directory",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Insert or update a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "user id", Required: true},
					&cli.StringFlag{Name: "name", Usage: "display name"},
					&cli.StringFlag{Name: "username", Usage: "handle"},
					&cli.StringFlag{Name: "email", Usage: "email address"},
					&cli.StringFlag{Name: "avatar", Usage: "avatar URL"},
				},
				Action: c.runUserAdd,
			},
		},
	}
}

func (c *ctl) runUserAdd(ctx context.Context, cmd *cli.Command) error {
	rec := user.Record{
		ID:       strings.TrimSpace(cmd.String("id")),
		Name:     cmd.String("name"),
		Username: cmd.String("username"),
		Email:    cmd.String("email"),
		Avatar:   cmd.String("avatar"),
	}
	if rec.ID == "" {
		return errors.New("user id must not be blank")
	}
	if rec.Username == "" {
		rec.Username = rec.ID
	}

	store, closeFn, err := c.open(ctx, false)
	if err != nil {
		return fmt.Errorf("user add: %w", err)
	}
	defer closeFn()

	if err := store.UpsertUser(ctx, rec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "user %s saved\n", rec.ID)
	return nil
}

