package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

// SettingsRepository implements port.SettingsRepository on sqlite. The
// tables it reads are maintained by the profile and billing sides of the
// product; the pipeline never writes them.
type SettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *sql.DB, logger *zap.Logger) port.SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

// GetSettings retrieves an owner's settings
func (r *SettingsRepository) GetSettings(ctx context.Context, ownerID string) (*entity.OwnerSettings, error) {
	query := `
		SELECT owner_id, display_name, gestoria_email, auto_forward,
			bucketing_mode, root_folder, plan_code, is_admin
		FROM owner_settings
		WHERE owner_id = ?
	`

	var s entity.OwnerSettings
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&s.OwnerID,
		&s.DisplayName,
		&s.GestoriaEmail,
		&s.AutoForward,
		&s.BucketingMode,
		&s.RootFolder,
		&s.PlanCode,
		&s.IsAdmin,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get owner settings", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, fmt.Errorf("failed to get owner settings: %w", err)
	}
	return &s, nil
}

// GetPlan retrieves the billing facts for a plan code
func (r *SettingsRepository) GetPlan(ctx context.Context, code string) (*entity.Plan, error) {
	query := `SELECT code, monthly_quota, gestoria_enabled FROM plans WHERE code = ?`

	var p entity.Plan
	err := r.db.QueryRowContext(ctx, query, code).Scan(&p.Code, &p.MonthlyQuota, &p.GestoriaEnabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get plan", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &p, nil
}
