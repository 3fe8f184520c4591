// Command comment-rating serves the comment vote API and manages its store.
//
//	comment-rating serve                 run the HTTP server
//	comment-rating migrate               create or update the schema
//	comment-rating comments add 42 43    register votable comment ids
//	comment-rating comments delete 42    remove a comment and its votes
//	comment-rating purge-idempotency     drop expired Idempotency-Key records
//
// Configuration comes from the environment (see internal/config); a .env file
// in the working directory is loaded first when present.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-comment-rating/docs"
	"github.com/tbourn/go-comment-rating/internal/config"
	httpapi "github.com/tbourn/go-comment-rating/internal/http"
	"github.com/tbourn/go-comment-rating/internal/observability"
	"github.com/tbourn/go-comment-rating/internal/repo"
	"github.com/tbourn/go-comment-rating/internal/security"
	"github.com/tbourn/go-comment-rating/internal/services"
	"github.com/tbourn/go-comment-rating/internal/sysutil"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("comment-rating failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "comment-rating",
		Usage:   "up/down votes on comments",
		Version: fmt.Sprintf("%v, commit %v, built at %v", version, commit, date),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serve,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "no-migrate",
						Usage:   "skip schema migration on start",
						EnvVars: []string{"NO_MIGRATE"},
					},
					&cli.DurationFlag{
						Name:    "purge-interval",
						Usage:   "how often expired idempotency keys are dropped (0 disables)",
						Value:   time.Hour,
						EnvVars: []string{"IDEMPOTENCY_PURGE_INTERVAL"},
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "create or update the schema",
				Action: migrate,
			},
			{
				Name:  "comments",
				Usage: "manage votable comment ids",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "register comment ids",
						ArgsUsage: "ID [ID...]",
						Action:    addComments,
					},
					{
						Name:      "delete",
						Usage:     "remove comment ids and their votes",
						ArgsUsage: "ID [ID...]",
						Action:    deleteComments,
					},
				},
			},
			{
				Name:   "purge-idempotency",
				Usage:  "drop expired Idempotency-Key records",
				Action: purgeIdempotency,
			},
		},
	}
}

// setup loads the configuration, configures logging and opens the store.
func setup() (config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, errors.Wrap(err, "invalid configuration")
	}
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	db, err := repo.Open(repo.Options{
		Driver:       cfg.DB.Driver,
		Path:         cfg.DB.Path,
		DSN:          cfg.DB.URL,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		Tracing:      cfg.OTEL.Enabled,
	})
	if err != nil {
		return cfg, nil, errors.Wrapf(err, "cannot open %s store", cfg.DB.Driver)
	}
	return cfg, db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func serve(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer closeDB(db)

	if !c.Bool("no-migrate") {
		if err := repo.AutoMigrate(db); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version))
	if err != nil {
		return errors.Wrap(err, "tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	issuer, err := newIssuer(cfg)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return errors.Wrap(err, "TRUSTED_PROXIES")
	}
	httpapi.RegisterRoutes(r, db, issuer, cfg)

	if every := c.Duration("purge-interval"); every > 0 {
		go purgeLoop(ctx, db, every)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("db_driver", cfg.DB.Driver).
			Str("base_path", cfg.APIBasePath).
			Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "graceful shutdown")
	}
	return nil
}

// newIssuer builds the nonce issuer. Outside release mode a missing secret is
// replaced by a random one, so nonces do not survive a restart.
func newIssuer(cfg config.Config) (*security.Issuer, error) {
	secret := []byte(cfg.Nonce.Secret)
	if len(secret) == 0 {
		var err error
		if secret, err = security.RandomSecret(32); err != nil {
			return nil, errors.Wrap(err, "generate nonce secret")
		}
		log.Warn().Msg("NONCE_SECRET not set; using a per-process random secret")
	}
	iss, err := security.NewIssuer(secret, cfg.Nonce.Lifetime)
	if err != nil {
		return nil, errors.Wrap(err, "NONCE_SECRET")
	}
	log.Info().Dur("nonce_lifetime", iss.Lifetime()).Msg("nonce issuer ready")
	return iss, nil
}

func purgeLoop(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Error().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("purged idempotency keys")
			}
		}
	}
}

func migrate(*cli.Context) error {
	_, db, err := setup()
	if err != nil {
		return err
	}
	defer closeDB(db)

	if err := repo.AutoMigrate(db); err != nil {
		return errors.Wrap(err, "migrate")
	}
	log.Info().Msg("schema is up to date")
	return nil
}

func addComments(c *cli.Context) error {
	return eachCommentID(c, func(ctx context.Context, svc *services.CommentService, id int64) error {
		if err := svc.Register(ctx, id); err != nil {
			return err
		}
		log.Info().Int64("comment_id", id).Msg("comment registered")
		return nil
	})
}

func deleteComments(c *cli.Context) error {
	return eachCommentID(c, func(ctx context.Context, svc *services.CommentService, id int64) error {
		if err := svc.Remove(ctx, id); err != nil {
			return err
		}
		log.Info().Int64("comment_id", id).Msg("comment removed")
		return nil
	})
}

func eachCommentID(c *cli.Context, fn func(context.Context, *services.CommentService, int64) error) error {
	if c.NArg() == 0 {
		return errors.New("at least one comment id is required")
	}
	ids := make([]int64, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return errors.Errorf("invalid comment id %q", arg)
		}
		ids = append(ids, id)
	}

	_, db, err := setup()
	if err != nil {
		return err
	}
	defer closeDB(db)
	if err := repo.AutoMigrate(db); err != nil {
		return errors.Wrap(err, "migrate")
	}

	svc := &services.CommentService{DB: db}
	for _, id := range ids {
		if err := fn(c.Context, svc, id); err != nil {
			return errors.Wrapf(err, "comment %d", id)
		}
	}
	return nil
}

func purgeIdempotency(c *cli.Context) error {
	_, db, err := setup()
	if err != nil {
		return err
	}
	defer closeDB(db)

	n, err := repo.PurgeIdempotency(c.Context, db, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "purge")
	}
	log.Info().Int64("removed", n).Msg("expired idempotency keys purged")
	return nil
}
