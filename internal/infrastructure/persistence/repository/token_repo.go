package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/faktugo/faktugo-server/internal/application/port"
)

// TokenRepository implements port.Authenticator against the api_tokens
// table the identity side of the product maintains.
type TokenRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sql.DB, logger *zap.Logger) port.Authenticator {
	return &TokenRepository{db: db, logger: logger}
}

// ErrInvalidToken is returned for unknown bearer tokens.
var ErrInvalidToken = fmt.Errorf("invalid token")

// ResolveToken maps a bearer token to an owner id
func (r *TokenRepository) ResolveToken(ctx context.Context, token string) (string, error) {
	var ownerID string
	err := r.db.QueryRowContext(ctx,
		"SELECT owner_id FROM api_tokens WHERE token = ?", token).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", ErrInvalidToken
	}
	if err != nil {
		r.logger.Error("Failed to resolve token", zap.Error(err))
		return "", fmt.Errorf("failed to resolve token: %w", err)
	}
	return ownerID, nil
}
