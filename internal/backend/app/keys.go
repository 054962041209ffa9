package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/askbar/pkg/cryptox"
	"github.com/aussiebroadwan/askbar/pkg/idx"
	"github.com/aussiebroadwan/askbar/pkg/jwtx"
)

// Keys bundles the signer used for new tokens with the key set and verifier
// built from it.
type Keys struct {
	Signer   jwtx.Signer
	KeySet   *jwtx.KeySet
	Verifier jwtx.Verifier
}

// InitKeys loads the Ed25519 signing key.
//
// With no KeyFile a fresh key is generated and kept in memory only; every
// token issued before a restart stops verifying. With a KeyFile the key is
// read from disk, or generated and written there on first start, and its kid
// is derived from the key so it is stable across restarts.
func InitKeys(cfg Config, logger *slog.Logger) (*Keys, error) {
	var (
		pemKey []byte
		kid    string
		err    error
	)

	if cfg.KeyFile == "" {
		pemKey, err = cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		kid = idx.New().String()
		logger.Warn("using an ephemeral signing key, tokens will not survive a restart", "kid", kid)
	} else {
		pemKey, err = loadOrCreateKey(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		kid = cryptox.FingerprintToken(string(pemKey))[:16]
		logger.Info("signing key loaded", "path", cfg.KeyFile, "kid", kid)
	}

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	if err != nil {
		return nil, err
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, err
	}

	return &Keys{
		Signer:   signer,
		KeySet:   keys,
		Verifier: jwtx.NewVerifierEdDSA(keys, cfg.Issuer, cfg.Audience),
	}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	path = filepath.Clean(path)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		return raw, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	pemKey, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, pemKey, 0o600); err != nil {
		return nil, fmt.Errorf("write signing key: %w", err)
	}
	return pemKey, nil
}
