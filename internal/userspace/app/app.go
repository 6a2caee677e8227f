package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	httpapi "github.com/aussiebroadwan/userspace/internal/userspace/http"
	"github.com/aussiebroadwan/userspace/internal/userspace/mailer"
	"github.com/aussiebroadwan/userspace/internal/userspace/metrics"
	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/internal/userspace/store"
	"github.com/aussiebroadwan/userspace/internal/userspace/store/drivers/mongo"
	"github.com/aussiebroadwan/userspace/internal/userspace/store/drivers/sqlite"
	"github.com/aussiebroadwan/userspace/internal/userspace/validate"
	"github.com/aussiebroadwan/userspace/pkg/cryptox"
	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/aussiebroadwan/userspace/pkg/jwtx"
	"github.com/aussiebroadwan/userspace/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X ...app.BuildVersion=".
var BuildVersion = "v0.1.0"

// Profile is the set of extra account fields this deployment stores next to
// the core credentials.
type Profile struct {
	FirstName string `json:"first_name,omitempty" bson:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" bson:"last_name,omitempty"`
}

// Application encapsulates the account service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	accounts   *store.AccountStore[Profile]
	keyManager *jwtx.KeyManager
	metrics    *metrics.Registry

	// Services
	credentials  *service.CredentialService[Profile]
	dispatcher   *mailer.Dispatcher
	housekeeping *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router[Profile]
}

// New creates an Application with all dependencies initialized. Nothing runs
// until Run is called.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "userspace",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	keyManager, err := InitSigningKeys(cfg, app.logger)
	if err != nil {
		app.closeStore()
		return nil, err
	}
	app.keyManager = keyManager

	if err := app.initServices(); err != nil {
		app.closeStore()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the background workers and the HTTP server, and blocks until a
// shutdown signal arrives or the server fails.
func (app *Application) Run() error {
	app.Start()

	app.logger.Info("userspace starting", "addr", app.cfg.HTTPAddr, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return errors.Wrap(err, "server failed")
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return errors.Wrap(err, "graceful shutdown failed")
		}
	}

	return nil
}

// Start launches the mail workers and the recovery token sweeper.
func (app *Application) Start() {
	app.dispatcher.Start()
	app.housekeeping.Start()
}

// Shutdown stops accepting requests, drains the mail queue within the grace
// period and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down userspace...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGrace)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.dispatcher.Stop(ctx); err != nil {
		app.logger.Error("mail queue not drained", "error", err)
	}

	if err := app.accounts.Close(context.Background()); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("userspace stopped")
	return nil
}

// initStore opens the configured driver and wraps it in the account store.
func (app *Application) initStore() error {
	pepper, err := cryptox.LoadOrGeneratePepper(app.cfg.PepperFile)
	if err != nil {
		return errors.Wrap(err, "load pepper")
	}
	hasher := cryptox.NewArgon2Hasher(cryptox.DefaultArgon2Params, pepper)

	var driver store.Driver[Profile]
	switch app.cfg.StoreDriver {
	case DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := mongo.Open[Profile](ctx, app.cfg.MongoURI, app.cfg.MongoDatabase)
		if err != nil {
			return errors.Wrap(err, "connect to mongo")
		}
		driver = db
		app.logger.Info("mongo store ready", "database", app.cfg.MongoDatabase)

	default:
		db, err := sqlite.NewStore[Profile](sqliteDSN(app.cfg.SQLiteDSN))
		if err != nil {
			return errors.Wrap(err, "open sqlite database")
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close(context.Background())
			return errors.Wrap(err, "apply database migrations")
		}
		driver = db
		app.logger.Info("database migrations applied successfully")
	}

	app.accounts = store.New[Profile](driver, hasher, nil)
	return nil
}

func (app *Application) closeStore() {
	if app.accounts != nil {
		_ = app.accounts.Close(context.Background())
	}
}

// sqliteDSN adds a busy timeout and WAL journaling to plain file paths.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") || dsn == ":memory:" {
		return dsn
	}
	return "file:" + dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// initServices initializes the business logic and its background workers.
func (app *Application) initServices() error {
	templates, err := mailer.LoadTemplates(app.cfg.MailTemplateDir)
	if err != nil {
		return err
	}

	var sender mailer.Sender
	if app.cfg.SMTPHost != "" {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
		})
	} else {
		app.logger.Warn("smtp_host not set, emails will be logged instead of sent")
		sender = mailer.LogSender{Logger: app.logger}
	}

	deadLetters := mailer.NewDeadLetterLog(app.cfg.MailDeadLetterFile)

	app.dispatcher = mailer.NewDispatcher(mailer.Config{
		From:         app.cfg.MailFrom,
		Workers:      app.cfg.MailWorkers,
		QueueSize:    app.cfg.MailQueueSize,
		MaxAttempts:  app.cfg.MailMaxAttempts,
		RetryBackoff: app.cfg.MailRetryBackoff,
	}, sender, templates, deadLetters, app.logger)
	app.dispatcher.SetMetrics(app.metrics)

	app.credentials = &service.CredentialService[Profile]{
		Store: app.accounts,
		Tokens: &service.TokenIssuer[Profile]{
			Signer:   app.keyManager.Signer,
			Verifier: app.keyManager.Verifier,
			Issuer:   app.cfg.TokenIssuer,
			TTL:      app.cfg.TokenTTL,
		},
		Notifier:  app.dispatcher,
		Validator: validate.New(),
		Links: service.Links{
			ConfirmEmailURL:  app.cfg.ConfirmEmailURL(),
			ResetPasswordURL: app.cfg.ResetURL,
		},
		Options: service.Options{
			UsernamesEnabled:  app.cfg.UsernamesEnabled,
			AvailabilityCheck: app.cfg.AvailabilityCheck,
			RecoveryWindow:    app.cfg.RecoveryWindow,
		},
	}

	app.housekeeping = service.NewHousekeepingService(
		app.accounts,
		app.logger,
		app.cfg.SweepInterval,
		app.cfg.RecoveryWindow,
	)
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.credentials,
		app.keyManager,
		app.accounts,
		BuildVersion,
		app.logger,
	)
	router.Limits = httpx.RateLimitProfilesFromEnv(os.LookupEnv)
	router.AllowedOrigins = app.cfg.CORSAllowedOrigins
	if app.cfg.MetricsEnabled {
		router.Metrics = app.metrics
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              app.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
