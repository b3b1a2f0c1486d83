package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/genstudio/internal/model"
)

const identityColumns = `id, user_id, provider, provider_user_id, created_at`

// PostgresIdentityRepo はIdentityRepositoryのPostgreSQL実装。
type PostgresIdentityRepo struct {
	db *sql.DB
}

func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

func scanIdentity(row rowScanner) (*model.Identity, error) {
	var ident model.Identity
	if err := row.Scan(&ident.ID, &ident.UserID, &ident.Provider, &ident.ProviderUserID, &ident.CreatedAt); err != nil {
		return nil, err
	}
	return &ident, nil
}

// FindByProviderAndProviderUserID は(provider, provider_user_id)のユニーク制約で1件引く。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	ident, err := scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find identity (%s): %w", provider, err)
	}
	return ident, nil
}

var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
