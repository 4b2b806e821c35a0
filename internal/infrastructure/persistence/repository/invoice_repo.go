package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

// InvoiceRepository implements port.InvoiceRepository on sqlite
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{db: db, logger: logger}
}

const invoiceColumns = `
	id, owner_id, date, supplier, category, amount, invoice_number,
	status, archival_only, period_type, period_key, folder_path,
	file_path, file_name_original, file_mime_type, file_size, upload_source,
	sent_to_gestoria_at, sent_to_gestoria_status, sent_to_gestoria_message_id,
	created_at, updated_at
`

// Create inserts a new invoice record
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, owner_id, date, supplier, category, amount, invoice_number,
			status, archival_only, period_type, period_key, folder_path,
			file_path, file_name_original, file_mime_type, file_size, upload_source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		invoice.ID,
		invoice.OwnerID,
		invoice.Date,
		invoice.Supplier,
		invoice.Category,
		invoice.Amount,
		invoice.InvoiceNumber,
		invoice.Status,
		invoice.ArchivalOnly,
		invoice.PeriodType,
		invoice.PeriodKey,
		invoice.FolderPath,
		invoice.FilePath,
		invoice.FileNameOriginal,
		invoice.FileMimeType,
		invoice.FileSize,
		invoice.UploadSource,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.String("id", invoice.ID), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice scoped by owner
func (r *InvoiceRepository) GetByID(ctx context.Context, ownerID, id string) (*entity.Invoice, error) {
	query := `SELECT` + invoiceColumns + `FROM invoices WHERE owner_id = ? AND id = ?`

	invoice, err := r.scanOne(r.db.QueryRowContext(ctx, query, ownerID, id))
	if err != nil {
		r.logger.Error("Failed to get invoice by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// List retrieves an owner's invoices, newest date first, with optional
// period/status filters
func (r *InvoiceRepository) List(ctx context.Context, ownerID string, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	query := `SELECT` + invoiceColumns + `FROM invoices WHERE owner_id = ?`
	args := []interface{}{ownerID}

	if filter.PeriodKey != "" {
		query += " AND period_key = ?"
		args = append(args, filter.PeriodKey)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY date DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	return r.queryMany(ctx, query, args...)
}

// ListByDate returns same-date invoices ordered by ascending id, the order
// the duplicate detector documents
func (r *InvoiceRepository) ListByDate(ctx context.Context, ownerID, date string) ([]*entity.Invoice, error) {
	query := `SELECT` + invoiceColumns + `FROM invoices WHERE owner_id = ? AND date = ? ORDER BY id ASC`
	return r.queryMany(ctx, query, ownerID, date)
}

// CountCreatedInMonth counts invoices created in the calendar month of ref
func (r *InvoiceRepository) CountCreatedInMonth(ctx context.Context, ownerID string, ref time.Time) (int, error) {
	month := ref.UTC().Format("2006-01")
	query := `
		SELECT COUNT(*) FROM invoices
		WHERE owner_id = ? AND strftime('%Y-%m', created_at) = ?
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, ownerID, month).Scan(&count); err != nil {
		r.logger.Error("Failed to count monthly invoices", zap.String("owner_id", ownerID), zap.Error(err))
		return 0, fmt.Errorf("failed to count monthly invoices: %w", err)
	}
	return count, nil
}

// UpdateFields overwrites the editable descriptive fields only
func (r *InvoiceRepository) UpdateFields(ctx context.Context, ownerID, id string, date, supplier, category, amount, invoiceNumber string) error {
	query := `
		UPDATE invoices
		SET date = ?, supplier = ?, category = ?, amount = ?, invoice_number = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, query, date, supplier, category, amount, invoiceNumber, ownerID, id)
	if err != nil {
		r.logger.Error("Failed to update invoice", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return requireRow(result, id)
}

// RecordDispatch overwrites the delivery-tracking fields; a successful send
// promotes Pendiente to Enviada
func (r *InvoiceRepository) RecordDispatch(ctx context.Context, ownerID, id string, outcome port.DispatchOutcome) error {
	query := `
		UPDATE invoices
		SET sent_to_gestoria_at = ?,
			sent_to_gestoria_status = ?,
			sent_to_gestoria_message_id = ?,
			status = CASE WHEN ? AND status = ? THEN ? ELSE status END,
			updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND id = ?
	`

	sent := outcome.Status == entity.DispatchSent
	result, err := r.db.ExecContext(ctx, query,
		outcome.At.UTC(),
		outcome.Status,
		nullable(outcome.MessageID),
		sent,
		entity.StatusPendiente,
		entity.StatusEnviada,
		ownerID,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to record dispatch", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to record dispatch: %w", err)
	}
	return requireRow(result, id)
}

// Delete removes an invoice row
func (r *InvoiceRepository) Delete(ctx context.Context, ownerID, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM invoices WHERE owner_id = ? AND id = ?", ownerID, id)
	if err != nil {
		r.logger.Error("Failed to delete invoice", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return requireRow(result, id)
}

func (r *InvoiceRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*entity.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *InvoiceRepository) scanOne(row rowScanner) (*entity.Invoice, error) {
	var invoice entity.Invoice
	var sentAt sql.NullTime
	var sentStatus, sentMessageID sql.NullString

	err := row.Scan(
		&invoice.ID,
		&invoice.OwnerID,
		&invoice.Date,
		&invoice.Supplier,
		&invoice.Category,
		&invoice.Amount,
		&invoice.InvoiceNumber,
		&invoice.Status,
		&invoice.ArchivalOnly,
		&invoice.PeriodType,
		&invoice.PeriodKey,
		&invoice.FolderPath,
		&invoice.FilePath,
		&invoice.FileNameOriginal,
		&invoice.FileMimeType,
		&invoice.FileSize,
		&invoice.UploadSource,
		&sentAt,
		&sentStatus,
		&sentMessageID,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if sentAt.Valid {
		invoice.SentToGestoriaAt = &sentAt.Time
	}
	invoice.SentToGestoriaStatus = sentStatus.String
	invoice.SentToGestoriaMessageID = sentMessageID.String
	return &invoice, nil
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("invoice %s not found", id)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
