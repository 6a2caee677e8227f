package app

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/aussiebroadwan/userspace/pkg/cryptox"
	"github.com/aussiebroadwan/userspace/pkg/jwtx"
)

// InitSigningKeys loads the identity token signing key from cfg.KeyFile,
// generating it on first start so tokens survive restarts.
//
// When cfg.MasterKeyFile is set the key file is sealed with AES-256-GCM and
// cannot be read without the same master key.
func InitSigningKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyFileOptions{
		Path:      cfg.KeyFile,
		Algorithm: cfg.KeyAlgorithm,
		RSABits:   cfg.KeyRSABits,
		Issuer:    cfg.TokenIssuer,
	}

	if cfg.MasterKeyFile != "" {
		master, err := cryptox.LoadMasterKey(cfg.MasterKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load master key")
		}
		opts.MasterKey = &master
		logger.Info("master key configured", "path", cfg.MasterKeyFile)
	}

	km, generated, err := jwtx.LoadOrGenerateKeyFile(opts)
	if err != nil {
		return nil, errors.Wrap(err, "load signing key")
	}

	if generated {
		logger.Warn("generated new signing key, tokens issued with any previous key are no longer valid",
			"path", cfg.KeyFile,
			"algorithm", km.Algorithm(),
			"kid", km.Signer.KID(),
		)
	} else {
		logger.Info("signing key loaded",
			"path", cfg.KeyFile,
			"algorithm", km.Algorithm(),
			"kid", km.Signer.KID(),
		)
	}
	return km, nil
}
