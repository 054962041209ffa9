package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/askbar/internal/backend/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // the outer DB stays open

// Ping is a no-op; the connection is held by the transaction.
func (t *txStore) Ping(context.Context) error { return nil }

func (t *txStore) Tx(context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(context.Context, func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                 { return &usersRepo{q: t.tx} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{q: t.tx} }
func (t *txStore) Profiles() store.Profiles           { return &profilesRepo{q: t.tx} }
func (t *txStore) Preferences() store.Preferences     { return &preferencesRepo{q: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // apply before starting a tx
