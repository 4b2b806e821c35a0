package port

import (
	"context"
	"time"

	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

// InvoiceFilter narrows list queries. Zero values mean "no filter".
type InvoiceFilter struct {
	PeriodKey string
	Status    string
	Limit     int
	Offset    int
}

// DispatchOutcome is written back onto an invoice after a gestoría send
// attempt.
type DispatchOutcome struct {
	At        time.Time
	Status    string // "sent" or "failed"
	MessageID string
}

// InvoiceRepository defines persistence operations for Invoice. All reads
// and writes are scoped by owner id.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, ownerID, id string) (*entity.Invoice, error)
	List(ctx context.Context, ownerID string, filter InvoiceFilter) ([]*entity.Invoice, error)

	// ListByDate returns the owner's invoices carrying exactly the given
	// date, ordered by ascending id. Feeds the duplicate detector.
	ListByDate(ctx context.Context, ownerID, date string) ([]*entity.Invoice, error)

	// CountCreatedInMonth counts invoices the owner created in the calendar
	// month containing ref. Feeds the quota enforcer.
	CountCreatedInMonth(ctx context.Context, ownerID string, ref time.Time) (int, error)

	// UpdateFields overwrites the editable descriptive fields only.
	UpdateFields(ctx context.Context, ownerID, id string, date, supplier, category, amount, invoiceNumber string) error

	// RecordDispatch overwrites the delivery-tracking fields and, when the
	// attempt succeeded, promotes Pendiente to Enviada.
	RecordDispatch(ctx context.Context, ownerID, id string, outcome DispatchOutcome) error

	Delete(ctx context.Context, ownerID, id string) error
}

// AliasRepository resolves inbound email addresses to owners.
type AliasRepository interface {
	// GetActiveByAddress returns the active alias for an address, or nil
	// when none exists. A miss is not an error.
	GetActiveByAddress(ctx context.Context, address string) (*entity.IngestAlias, error)
}

// SettingsRepository reads per-owner facts maintained by the rest of the
// product (profile, billing). Read-only from the pipeline's point of view.
type SettingsRepository interface {
	GetSettings(ctx context.Context, ownerID string) (*entity.OwnerSettings, error)
	GetPlan(ctx context.Context, code string) (*entity.Plan, error)
}
