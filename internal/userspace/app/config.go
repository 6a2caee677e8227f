package app

import (
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"github.com/aussiebroadwan/userspace/internal/userspace/mailer"
	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/pkg/cryptox"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "USERSPACE_"

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

type Config struct {
	Env       string `koanf:"env"`        // dev, staging, prod (default: dev)
	LogLevel  string `koanf:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat string `koanf:"log_format"` // json, text (default: json)

	HTTPAddr           string   `koanf:"http_addr"`            // listen address (default: :8080)
	PublicURL          string   `koanf:"public_url"`           // externally visible base URL, used in email links
	ResetURL           string   `koanf:"reset_url"`            // password reset form (default: {public_url}/form/reset/password)
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"` // browser origins allowed to call the API (default: none)
	MetricsEnabled     bool     `koanf:"metrics_enabled"`      // serve GET /metrics (default: true)

	StoreDriver   string `koanf:"store_driver"`   // mongo or sqlite (default: sqlite)
	MongoURI      string `koanf:"mongo_uri"`      // required for mongo
	MongoDatabase string `koanf:"mongo_database"` // default: userspace
	SQLiteDSN     string `koanf:"sqlite_dsn"`     // default: userspace.db

	KeyFile       string `koanf:"key_file"`        // signing key, generated when missing (default: ./keys/signing.pem)
	KeyAlgorithm  string `koanf:"key_algorithm"`   // EdDSA, RS256, ES256 (default: EdDSA)
	KeyRSABits    int    `koanf:"key_rsa_bits"`    // RS256 modulus size (default: 4096)
	MasterKeyFile string `koanf:"master_key_file"` // seals the signing key at rest when set
	PepperFile    string `koanf:"pepper_file"`     // password pepper, generated when missing (default: ./keys/pepper)

	TokenIssuer string        `koanf:"token_issuer"` // iss claim (default: userspace)
	TokenTTL    time.Duration `koanf:"token_ttl"`    // identity token lifetime, 0 disables expiry (default: 744h)

	UsernamesEnabled  bool          `koanf:"usernames_enabled"`  // default: true
	AvailabilityCheck bool          `koanf:"availability_check"` // default: false
	RecoveryWindow    time.Duration `koanf:"recovery_window"`    // default: 60m
	SweepInterval     time.Duration `koanf:"sweep_interval"`     // default: 10m

	MailFrom           string        `koanf:"mail_from"`
	SMTPHost           string        `koanf:"smtp_host"` // empty logs mail instead of sending it
	SMTPPort           int           `koanf:"smtp_port"` // default: 587
	SMTPUsername       string        `koanf:"smtp_username"`
	SMTPPassword       string        `koanf:"smtp_password"`
	MailTemplateDir    string        `koanf:"mail_template_dir"`     // overrides the built-in templates
	MailDeadLetterFile string        `koanf:"mail_dead_letter_file"` // default: ./mail-dead-letter.jsonl
	MailWorkers        int           `koanf:"mail_workers"`
	MailQueueSize      int           `koanf:"mail_queue_size"`
	MailMaxAttempts    int           `koanf:"mail_max_attempts"`
	MailRetryBackoff   time.Duration `koanf:"mail_retry_backoff"`

	ShutdownGrace time.Duration `koanf:"shutdown_grace"` // default: 10s
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Env:       "dev",
		LogLevel:  "info",
		LogFormat: "json",

		HTTPAddr:       ":8080",
		PublicURL:      "http://localhost:8080",
		MetricsEnabled: true,

		StoreDriver:   DriverSQLite,
		MongoDatabase: "userspace",
		SQLiteDSN:     "userspace.db",

		KeyFile:      "keys/signing.pem",
		KeyAlgorithm: cryptox.AlgEdDSA,
		PepperFile:   "keys/pepper",

		TokenIssuer: "userspace",
		TokenTTL:    service.DefaultTokenTTL,

		UsernamesEnabled: true,
		RecoveryWindow:   service.DefaultRecoveryWindow,
		SweepInterval:    service.DefaultSweepInterval,

		MailFrom:           "no-reply@localhost",
		SMTPPort:           587,
		MailDeadLetterFile: "mail-dead-letter.jsonl",
		MailWorkers:        mailer.DefaultWorkers,
		MailQueueSize:      mailer.DefaultQueueSize,
		MailMaxAttempts:    mailer.DefaultMaxAttempts,
		MailRetryBackoff:   mailer.DefaultRetryBackoff,

		ShutdownGrace: 10 * time.Second,
	}
}

// LoadConfig layers the defaults, the YAML file at path (skipped when path is
// empty) and USERSPACE_* environment variables, in that order.
func LoadConfig(path string) (Config, error) {
	return loadConfig(path, os.Environ)
}

func loadConfig(path string, environ func() []string) (Config, error) {
	cfg := DefaultConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// USERSPACE_SMTP_HOST -> smtp_host
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
		EnvironFunc: environ,
	}), nil); err != nil {
		return Config{}, errors.Wrap(err, "load env variables")
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")
	if cfg.ResetURL == "" {
		cfg.ResetURL = cfg.PublicURL + "/form/reset/password"
	}
	cfg.CORSAllowedOrigins = slices.DeleteFunc(cfg.CORSAllowedOrigins, func(o string) bool {
		return strings.TrimSpace(o) == ""
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the application cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLiteDSN == "" {
			return errors.New("sqlite_dsn is required for the sqlite driver")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("mongo_uri is required for the mongo driver")
		}
		if c.MongoDatabase == "" {
			return errors.New("mongo_database is required for the mongo driver")
		}
	default:
		return errors.Errorf("unknown store_driver %q (want %s or %s)", c.StoreDriver, DriverMongo, DriverSQLite)
	}

	switch c.KeyAlgorithm {
	case cryptox.AlgEdDSA, cryptox.AlgES256:
	case cryptox.AlgRS256:
		if c.KeyRSABits != 0 && c.KeyRSABits < cryptox.MinRSABits {
			return errors.Errorf("key_rsa_bits must be at least %d", cryptox.MinRSABits)
		}
	default:
		return errors.Errorf("unknown key_algorithm %q", c.KeyAlgorithm)
	}

	for name, raw := range map[string]string{"public_url": c.PublicURL, "reset_url": c.ResetURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}

	if c.KeyFile == "" {
		return errors.New("key_file is required")
	}
	if c.TokenIssuer == "" {
		return errors.New("token_issuer is required")
	}
	if c.TokenTTL < 0 {
		return errors.New("token_ttl must not be negative")
	}
	if c.RecoveryWindow <= 0 {
		return errors.New("recovery_window must be positive")
	}
	if c.SMTPHost != "" && c.MailFrom == "" {
		return errors.New("mail_from is required when smtp_host is set")
	}
	return nil
}

// ConfirmEmailURL is the link target of confirmation emails.
func (c Config) ConfirmEmailURL() string {
	return c.PublicURL + "/v1/users/email/confirmation"
}
