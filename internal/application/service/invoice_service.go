package service

import (
	"context"
	"fmt"
	"time"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"github.com/faktugo/faktugo-server/internal/domain/entity"
	"github.com/faktugo/faktugo-server/internal/domain/period"
)

// InvoiceUpdate carries the editable descriptive fields. Nil pointers mean
// "leave unchanged". Period and file reference are immutable after
// ingestion.
type InvoiceUpdate struct {
	Date          *string
	Supplier      *string
	Category      *string
	Amount        *string
	InvoiceNumber *string
}

// InvoiceService exposes the management operations the clients drive after
// ingestion: browse, correct, delete, re-send.
type InvoiceService interface {
	List(ctx context.Context, ownerID string, filter port.InvoiceFilter) ([]*entity.Invoice, error)
	Get(ctx context.Context, ownerID, id string) (*entity.Invoice, error)
	Update(ctx context.Context, ownerID, id string, update InvoiceUpdate) (*entity.Invoice, error)

	// Delete removes record and underlying file. Immediate and irreversible.
	Delete(ctx context.Context, ownerID, id string) error

	// Resend re-dispatches an existing invoice to the owner's gestoría.
	// Repeated sends simply overwrite the delivery-tracking fields.
	Resend(ctx context.Context, ownerID, id string) (*entity.Invoice, error)
}

type invoiceServiceImpl struct {
	invoiceRepo  port.InvoiceRepository
	settingsRepo port.SettingsRepository
	store        port.ObjectStore
	dispatcher   DispatchService
	logger       Logger
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(
	invoiceRepo port.InvoiceRepository,
	settingsRepo port.SettingsRepository,
	store port.ObjectStore,
	dispatcher DispatchService,
	logger Logger,
) InvoiceService {
	return &invoiceServiceImpl{
		invoiceRepo:  invoiceRepo,
		settingsRepo: settingsRepo,
		store:        store,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

func (s *invoiceServiceImpl) List(ctx context.Context, ownerID string, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	invoices, err := s.invoiceRepo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

func (s *invoiceServiceImpl) Get(ctx context.Context, ownerID, id string) (*entity.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, ErrNotFound
	}
	return invoice, nil
}

func (s *invoiceServiceImpl) Update(ctx context.Context, ownerID, id string, update InvoiceUpdate) (*entity.Invoice, error) {
	invoice, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	date := applied(update.Date, invoice.Date)
	if _, perr := time.Parse(period.DateLayout, date); perr != nil {
		return nil, fmt.Errorf("invalid date %q", date)
	}

	supplier := applied(update.Supplier, invoice.Supplier)
	category := applied(update.Category, invoice.Category)
	amount := applied(update.Amount, invoice.Amount)
	number := applied(update.InvoiceNumber, invoice.InvoiceNumber)

	// The period assignment stays as computed at ingestion time even when
	// the date is corrected; historical buckets are not rewritten.
	if err := s.invoiceRepo.UpdateFields(ctx, ownerID, id, date, supplier, category, amount, number); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	invoice.Date = date
	invoice.Supplier = supplier
	invoice.Category = category
	invoice.Amount = amount
	invoice.InvoiceNumber = number
	return invoice, nil
}

func (s *invoiceServiceImpl) Delete(ctx context.Context, ownerID, id string) error {
	invoice, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.invoiceRepo.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}

	// Row first, then blob: a failed blob delete leaves an orphaned file,
	// which is harmless; the reverse would leave a row pointing nowhere.
	if err := s.store.Delete(ctx, invoice.FilePath); err != nil {
		s.logger.Error("Failed to delete stored document",
			"invoice_id", id, "key", invoice.FilePath, "error", err)
	}

	s.logger.Info("Invoice deleted", "invoice_id", id, "owner_id", ownerID)
	return nil
}

func (s *invoiceServiceImpl) Resend(ctx context.Context, ownerID, id string) (*entity.Invoice, error) {
	invoice, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !invoice.Dispatchable() {
		return nil, ErrArchivalOnly
	}

	settings, err := s.settingsRepo.GetSettings(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil || settings.GestoriaEmail == "" {
		return nil, ErrNoGestoriaEmail
	}

	if _, err := s.dispatcher.Dispatch(ctx, invoice, settings.GestoriaEmail, settings.DisplayName); err != nil {
		return nil, err
	}
	return invoice, nil
}

func applied(p *string, current string) string {
	if p == nil {
		return current
	}
	return *p
}
