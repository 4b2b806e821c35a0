package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"github.com/faktugo/faktugo-server/internal/domain/dedupe"
	"github.com/faktugo/faktugo-server/internal/domain/entity"
	"github.com/faktugo/faktugo-server/internal/domain/period"
)

// Batch limits for the interactive upload path.
const (
	MaxBatchFiles = 20
	MaxFileSize   = 20 << 20 // 20 MiB
)

// IncomingFile is one raw document entering the pipeline.
type IncomingFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// BatchOptions carries the caller's flags for an interactive upload batch.
type BatchOptions struct {
	ArchivalOnly   bool
	SendToGestoria bool
	Source         string // web_upload or mobile_upload
}

// FileResult is the per-file outcome returned to the caller, in input
// order. Exactly one of Error or the invoice fields is populated.
type FileResult struct {
	OriginalName string `json:"originalName"`
	Error        string `json:"error,omitempty"`

	ID            string `json:"id,omitempty"`
	Supplier      string `json:"supplier,omitempty"`
	Category      string `json:"category,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Date          string `json:"date,omitempty"`
	Status        string `json:"status,omitempty"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	PeriodKey     string `json:"periodKey,omitempty"`
	SentStatus    string `json:"sentToGestoriaStatus,omitempty"`
}

// IngestService drives the shared ingestion sequence: classify, validate,
// dedupe, quota-check, store, persist, optionally dispatch.
type IngestService interface {
	// ProcessBatch handles an interactive upload. Files are processed
	// sequentially so each file sees the rows created by the ones before
	// it; per-file failures never abort the rest of the batch. A non-nil
	// error means the whole request was rejected before any file work
	// (quota, batch size) and no invoice was created.
	ProcessBatch(ctx context.Context, ownerID string, files []IncomingFile, opts BatchOptions) ([]FileResult, error)

	// IngestPlaceholder handles one inbound-email attachment: type/size
	// gate, single-unit quota check, store, then a placeholder record with
	// provider-default fields. No classification gate on this path.
	IngestPlaceholder(ctx context.Context, ownerID string, file IncomingFile, senderAddress string, receivedAt time.Time) (*entity.Invoice, error)
}

type ingestServiceImpl struct {
	invoiceRepo  port.InvoiceRepository
	settingsRepo port.SettingsRepository
	store        port.ObjectStore
	classifier   port.Classifier
	quota        QuotaService
	dispatcher   DispatchService
	logger       Logger
	now          func() time.Time
}

// NewIngestService creates a new IngestService.
func NewIngestService(
	invoiceRepo port.InvoiceRepository,
	settingsRepo port.SettingsRepository,
	store port.ObjectStore,
	classifier port.Classifier,
	quota QuotaService,
	dispatcher DispatchService,
	logger Logger,
) IngestService {
	return &ingestServiceImpl{
		invoiceRepo:  invoiceRepo,
		settingsRepo: settingsRepo,
		store:        store,
		classifier:   classifier,
		quota:        quota,
		dispatcher:   dispatcher,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *ingestServiceImpl) ProcessBatch(ctx context.Context, ownerID string, files []IncomingFile, opts BatchOptions) ([]FileResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files in request")
	}
	if len(files) > MaxBatchFiles {
		return nil, fmt.Errorf("too many files: %d (máximo %d por envío)", len(files), MaxBatchFiles)
	}

	// Quota gates the whole batch before any file work; rejecting the
	// entire batch keeps the caller certain about what was processed.
	if _, err := s.quota.Check(ctx, ownerID, len(files)); err != nil {
		return nil, err
	}

	settings, err := s.settingsRepo.GetSettings(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		return nil, fmt.Errorf("no settings for owner %s", ownerID)
	}

	dispatchWanted, err := s.dispatchPermitted(ctx, settings, opts)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(files))
	for _, file := range files {
		invoice, err := s.processFile(ctx, settings, file, opts, dispatchWanted)
		if err != nil {
			s.logger.Info("File rejected",
				"owner_id", ownerID, "file", file.Name, "reason", err.Error())
			results = append(results, FileResult{OriginalName: file.Name, Error: err.Error()})
			continue
		}
		results = append(results, toFileResult(file.Name, invoice))
	}
	return results, nil
}

// dispatchPermitted resolves the send-to-gestoría intent against plan and
// configuration. A missing recipient or a plan without the feature quietly
// downgrades the intent; the invoice is still created.
func (s *ingestServiceImpl) dispatchPermitted(ctx context.Context, settings *entity.OwnerSettings, opts BatchOptions) (bool, error) {
	if !opts.SendToGestoria || opts.ArchivalOnly {
		return false, nil
	}
	if settings.GestoriaEmail == "" {
		return false, nil
	}
	plan, err := s.settingsRepo.GetPlan(ctx, settings.PlanCode)
	if err != nil {
		return false, fmt.Errorf("get plan: %w", err)
	}
	return plan != nil && plan.GestoriaEnabled, nil
}

func (s *ingestServiceImpl) processFile(ctx context.Context, settings *entity.OwnerSettings, file IncomingFile, opts BatchOptions, dispatch bool) (*entity.Invoice, error) {
	if err := validateFile(file); err != nil {
		return nil, err
	}

	// Classify before storing: never pay for storage or create a row for
	// content that is not a real invoice.
	extraction, err := s.classifier.Classify(ctx, file.Data, file.MimeType)
	if err != nil {
		return nil, fmt.Errorf("no se pudo analizar el documento: %w", err)
	}
	if !extraction.Usable() {
		return nil, &RejectionError{Reason: extraction.RejectReason}
	}

	date := extraction.Date
	if _, perr := time.Parse(period.DateLayout, date); perr != nil {
		date = s.now().Format(period.DateLayout)
	}

	assignment := period.Compute(date, settings.EffectiveBucketingMode(), settings.EffectiveRootFolder())

	sameDay, err := s.invoiceRepo.ListByDate(ctx, settings.OwnerID, date)
	if err != nil {
		return nil, fmt.Errorf("list same-date invoices: %w", err)
	}
	if match := dedupe.Find(dedupe.Candidate{
		Supplier:      extraction.Supplier,
		Date:          date,
		Amount:        extraction.FormattedAmount(),
		InvoiceNumber: extraction.InvoiceNumber,
	}, sameDay); match != nil {
		return nil, &DuplicateError{Match: *match}
	}

	invoice := s.newInvoice(settings.OwnerID, file, opts, date, assignment)
	invoice.Supplier = extraction.Supplier
	invoice.Category = joinCategory(extraction.Category, extraction.Concept)
	invoice.Amount = extraction.FormattedAmount()
	invoice.InvoiceNumber = extraction.InvoiceNumber

	if err := s.storeThenRecord(ctx, invoice, file.Data); err != nil {
		return nil, err
	}

	if dispatch && invoice.Dispatchable() {
		// Outcome is recorded on the invoice; transport failure does not
		// undo the ingestion.
		if _, err := s.dispatcher.Dispatch(ctx, invoice, settings.GestoriaEmail, settings.DisplayName); err != nil {
			s.logger.Error("Failed to record dispatch outcome",
				"invoice_id", invoice.ID, "error", err)
		}
	}
	return invoice, nil
}

func (s *ingestServiceImpl) IngestPlaceholder(ctx context.Context, ownerID string, file IncomingFile, senderAddress string, receivedAt time.Time) (*entity.Invoice, error) {
	if err := validateFile(file); err != nil {
		return nil, err
	}
	if _, err := s.quota.Check(ctx, ownerID, 1); err != nil {
		return nil, err
	}

	settings, err := s.settingsRepo.GetSettings(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		return nil, fmt.Errorf("no settings for owner %s", ownerID)
	}

	date := receivedAt.Format(period.DateLayout)
	assignment := period.Compute(date, settings.EffectiveBucketingMode(), settings.EffectiveRootFolder())

	invoice := s.newInvoice(ownerID, file, BatchOptions{Source: entity.SourceEmailIngest}, date, assignment)
	invoice.Supplier = senderAddress
	invoice.Category = entity.DefaultCategory

	if err := s.storeThenRecord(ctx, invoice, file.Data); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *ingestServiceImpl) newInvoice(ownerID string, file IncomingFile, opts BatchOptions, date string, assignment period.Assignment) *entity.Invoice {
	status := entity.StatusPendiente
	if opts.ArchivalOnly {
		status = entity.StatusArchivada
	}
	source := opts.Source
	if source == "" {
		source = entity.SourceWebUpload
	}

	id := uuid.NewString()
	return &entity.Invoice{
		ID:               id,
		OwnerID:          ownerID,
		Date:             date,
		Status:           status,
		ArchivalOnly:     opts.ArchivalOnly,
		PeriodType:       assignment.PeriodType,
		PeriodKey:        assignment.PeriodKey,
		FolderPath:       assignment.FolderPath,
		FilePath:         objectKey(ownerID, date, id, file),
		FileNameOriginal: file.Name,
		FileMimeType:     file.MimeType,
		FileSize:         int64(len(file.Data)),
		UploadSource:     source,
	}
}

// storeThenRecord is the two-phase creation helper: store the blob, then
// insert the row, and delete the blob again if the insert fails. The order
// is fixed so a crash between the phases leaves at worst an orphaned file,
// never a row without its document.
func (s *ingestServiceImpl) storeThenRecord(ctx context.Context, invoice *entity.Invoice, data []byte) error {
	if err := s.store.Put(ctx, invoice.FilePath, data); err != nil {
		s.logger.Error("Failed to store document",
			"invoice_id", invoice.ID, "key", invoice.FilePath, "error", err)
		return fmt.Errorf("store document: %w", err)
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		s.logger.Error("Failed to insert invoice, removing orphaned file",
			"invoice_id", invoice.ID, "key", invoice.FilePath, "error", err)
		if delErr := s.store.Delete(ctx, invoice.FilePath); delErr != nil {
			s.logger.Error("Failed to clean up orphaned file",
				"key", invoice.FilePath, "error", delErr)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// objectKey builds the storage key <owner>/<year>-<month>/<generated name>.
// Names are generated, never derived from the upload, so collisions and
// path traversal are off the table.
func objectKey(ownerID, date, id string, file IncomingFile) string {
	yearMonth := date
	if len(date) >= 7 {
		yearMonth = date[:7]
	}
	return fmt.Sprintf("%s/%s/%s%s", ownerID, yearMonth, id, extensionFor(file))
}

func extensionFor(file IncomingFile) string {
	switch file.MimeType {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/heic":
		return ".heic"
	case "image/webp":
		return ".webp"
	}
	if ext := strings.ToLower(filepath.Ext(file.Name)); ext != "" {
		return ext
	}
	return ".bin"
}

func validateFile(file IncomingFile) error {
	if len(file.Data) == 0 {
		return ErrEmptyFile
	}
	if len(file.Data) > MaxFileSize {
		return ErrFileTooLarge
	}
	if !allowedMimeType(file.MimeType) {
		return ErrUnsupportedType
	}
	return nil
}

func allowedMimeType(mime string) bool {
	return mime == "application/pdf" || strings.HasPrefix(mime, "image/")
}

func joinCategory(category, concept string) string {
	switch {
	case category == "" && concept == "":
		return ""
	case concept == "":
		return category
	case category == "":
		return concept
	}
	return category + " - " + concept
}

func toFileResult(name string, invoice *entity.Invoice) FileResult {
	return FileResult{
		OriginalName:  name,
		ID:            invoice.ID,
		Supplier:      invoice.Supplier,
		Category:      invoice.Category,
		Amount:        invoice.Amount,
		Date:          invoice.Date,
		Status:        invoice.Status,
		InvoiceNumber: invoice.InvoiceNumber,
		PeriodKey:     invoice.PeriodKey,
		SentStatus:    invoice.SentToGestoriaStatus,
	}
}
