package service

import (
	"context"
	"fmt"
	"time"

	"github.com/faktugo/faktugo-server/internal/application/port"
)

// UnlimitedRemaining is returned by Check when no cap applies.
const UnlimitedRemaining = -1

// QuotaService decides whether an ingestion batch fits the owner's monthly
// plan allowance.
type QuotaService interface {
	// Check returns the remaining allowance after admitting requested new
	// invoices, or a *QuotaError when the batch does not fit. The whole
	// batch is admitted or rejected; partial acceptance would leave the
	// caller guessing which files were processed.
	Check(ctx context.Context, ownerID string, requested int) (remaining int, err error)
}

type quotaServiceImpl struct {
	invoiceRepo  port.InvoiceRepository
	settingsRepo port.SettingsRepository
	logger       Logger
	now          func() time.Time
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(invoiceRepo port.InvoiceRepository, settingsRepo port.SettingsRepository, logger Logger) QuotaService {
	return &quotaServiceImpl{
		invoiceRepo:  invoiceRepo,
		settingsRepo: settingsRepo,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *quotaServiceImpl) Check(ctx context.Context, ownerID string, requested int) (int, error) {
	settings, err := s.settingsRepo.GetSettings(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		return 0, fmt.Errorf("no settings for owner %s", ownerID)
	}

	// Administrative accounts are never capped.
	if settings.IsAdmin {
		return UnlimitedRemaining, nil
	}

	plan, err := s.settingsRepo.GetPlan(ctx, settings.PlanCode)
	if err != nil {
		return 0, fmt.Errorf("get plan: %w", err)
	}
	if plan == nil || plan.Unlimited() {
		return UnlimitedRemaining, nil
	}

	used, err := s.invoiceRepo.CountCreatedInMonth(ctx, ownerID, s.now())
	if err != nil {
		return 0, fmt.Errorf("count monthly invoices: %w", err)
	}

	remaining := plan.MonthlyQuota - used
	if remaining < 0 {
		remaining = 0
	}
	if requested > remaining {
		s.logger.Info("Batch rejected by quota",
			"owner_id", ownerID, "requested", requested, "remaining", remaining)
		return remaining, &QuotaError{Remaining: remaining, Requested: requested}
	}

	return remaining - requested, nil
}
