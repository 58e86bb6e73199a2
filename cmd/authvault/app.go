package main

import (
	"fmt"

	"github.com/org/authvault/internal/audit"
	"github.com/org/authvault/internal/core"
	"github.com/org/authvault/internal/storage"
	"github.com/org/authvault/internal/totp"
	"github.com/org/authvault/internal/vault"
	"github.com/org/authvault/pkg/models"
	"github.com/rs/zerolog/log"
)

// app wires the vault for one command invocation.
type app struct {
	keys    *core.KeyManager
	store   *vault.Store
	engine  *totp.Engine
	auditor *audit.Logger
}

func newApp() (*app, error) {
	res, err := storage.MigrateLegacy(
		storage.FilePair{Data: cfg.LegacyDataFile, Key: cfg.LegacyKeyFile},
		storage.FilePair{Data: cfg.VaultFile, Key: cfg.KeyFile},
	)
	if err != nil {
		return nil, err
	}
	if res.KeyCopied || res.DataCopied {
		log.Info().Bool("key", res.KeyCopied).Bool("data", res.DataCopied).
			Str("data_dir", cfg.DataDir).Msg("migrated files from previous location")
	}

	a := &app{
		keys:   core.NewKeyManager(cfg.KeyFile, log.Logger),
		engine: totp.NewEngine(),
	}
	opts := []vault.Option{
		vault.WithLogger(log.Logger),
		vault.WithStrictLoad(cfg.StrictLoad),
	}
	if cfg.AuditLog != "" {
		a.auditor, err = audit.OpenFile(cfg.AuditLog)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vault.WithAuditor(a.auditor))
	}
	a.store = vault.New(storage.NewFileBackend(cfg.VaultFile), a.keys, opts...)
	return a, nil
}

func (a *app) Close() {
	a.keys.Forget()
	if a.auditor != nil {
		if err := a.auditor.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close audit log")
		}
	}
}

// resolve finds an account by id, then by exact name.
func (a *app) resolve(ref string) (models.Account, error) {
	accounts, err := a.store.List()
	if err != nil {
		return models.Account{}, err
	}
	for _, acct := range accounts {
		if acct.ID == ref {
			return acct, nil
		}
	}
	for _, acct := range accounts {
		if acct.Name == ref {
			return acct, nil
		}
	}
	return models.Account{}, fmt.Errorf("%w: %s", vault.ErrAccountNotFound, ref)
}

// withApp runs fn against a freshly wired app and closes it afterwards.
func withApp(fn func(a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
