package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

// AliasRepository implements port.AliasRepository on sqlite
type AliasRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAliasRepository creates a new alias repository
func NewAliasRepository(db *sql.DB, logger *zap.Logger) port.AliasRepository {
	return &AliasRepository{db: db, logger: logger}
}

// GetActiveByAddress resolves an inbound address to its active alias.
// Addresses compare case-insensitively; a miss returns (nil, nil).
func (r *AliasRepository) GetActiveByAddress(ctx context.Context, address string) (*entity.IngestAlias, error) {
	query := `
		SELECT address, owner_id, active
		FROM ingest_aliases
		WHERE address = ? AND active = 1
	`

	var alias entity.IngestAlias
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(address))).Scan(
		&alias.Address,
		&alias.OwnerID,
		&alias.Active,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve ingest alias", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve alias: %w", err)
	}
	return &alias, nil
}
