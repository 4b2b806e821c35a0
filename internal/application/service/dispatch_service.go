package service

import (
	"context"
	"fmt"
	"time"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

// signedURLTTL bounds how long a gestoría can follow the download link
// embedded in the notification email.
const signedURLTTL = 7 * 24 * time.Hour

// DispatchService forwards an invoice document to the owner's gestoría and
// records the delivery outcome on the invoice record.
//
// Preconditions (recipient present, transport configured, invoice not
// archival-only) are the caller's responsibility.
type DispatchService interface {
	// Dispatch attempts the send and writes the outcome back. Transport
	// failures are recorded as status "failed", never returned: the invoice
	// exists either way, only delivery failed and the user can retry.
	Dispatch(ctx context.Context, invoice *entity.Invoice, recipientEmail, ownerDisplayName string) (*port.DispatchOutcome, error)
}

type dispatchServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	store       port.ObjectStore
	sender      port.MailSender
	logger      Logger
	now         func() time.Time
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(invoiceRepo port.InvoiceRepository, store port.ObjectStore, sender port.MailSender, logger Logger) DispatchService {
	return &dispatchServiceImpl{
		invoiceRepo: invoiceRepo,
		store:       store,
		sender:      sender,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *dispatchServiceImpl) Dispatch(ctx context.Context, invoice *entity.Invoice, recipientEmail, ownerDisplayName string) (*port.DispatchOutcome, error) {
	outcome := port.DispatchOutcome{At: s.now(), Status: entity.DispatchPending}

	// Persist the attempt as pending before touching the transport, so the
	// tracking fields show an in-flight send rather than the previous outcome.
	if err := s.invoiceRepo.RecordDispatch(ctx, invoice.OwnerID, invoice.ID, outcome); err != nil {
		return nil, fmt.Errorf("record dispatch attempt: %w", err)
	}

	messageID, sendErr := s.send(ctx, invoice, recipientEmail, ownerDisplayName)
	if sendErr != nil {
		s.logger.Error("Gestoría dispatch failed",
			"invoice_id", invoice.ID, "recipient", recipientEmail, "error", sendErr)
		outcome.Status = entity.DispatchFailed
	} else {
		outcome.Status = entity.DispatchSent
		outcome.MessageID = messageID
	}

	if err := s.invoiceRepo.RecordDispatch(ctx, invoice.OwnerID, invoice.ID, outcome); err != nil {
		return nil, fmt.Errorf("record dispatch outcome: %w", err)
	}

	// Mirror the persisted state onto the in-memory record so callers can
	// report the final status without a re-read.
	invoice.SentToGestoriaAt = &outcome.At
	invoice.SentToGestoriaStatus = outcome.Status
	invoice.SentToGestoriaMessageID = outcome.MessageID
	if outcome.Status == entity.DispatchSent && invoice.Status == entity.StatusPendiente {
		invoice.Status = entity.StatusEnviada
	}

	if outcome.Status == entity.DispatchSent {
		s.logger.Info("Invoice dispatched to gestoría",
			"invoice_id", invoice.ID, "recipient", recipientEmail, "message_id", messageID)
	}
	return &outcome, nil
}

func (s *dispatchServiceImpl) send(ctx context.Context, invoice *entity.Invoice, recipientEmail, ownerDisplayName string) (string, error) {
	content, err := s.store.Read(ctx, invoice.FilePath)
	if err != nil {
		return "", fmt.Errorf("read stored document: %w", err)
	}

	url, err := s.store.SignURL(invoice.FilePath, signedURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign document url: %w", err)
	}

	msg := port.OutboundMessage{
		To:             recipientEmail,
		Subject:        fmt.Sprintf("Nueva factura de %s - %s", ownerDisplayName, invoice.Date),
		Body:           s.buildBody(invoice, ownerDisplayName, url),
		AttachmentName: invoice.FileNameOriginal,
		AttachmentMime: invoice.FileMimeType,
		Attachment:     content,
	}

	return s.sender.Send(ctx, msg)
}

func (s *dispatchServiceImpl) buildBody(invoice *entity.Invoice, ownerDisplayName, url string) string {
	return fmt.Sprintf(`Hola,

%s te envía una nueva factura a través de FaktuGo.

Fecha: %s
Proveedor: %s
Importe: %s
Número: %s

El documento va adjunto. También puedes descargarlo aquí (enlace temporal):
%s

---
Este mensaje ha sido enviado automáticamente por FaktuGo.
`,
		ownerDisplayName,
		invoice.Date,
		orDash(invoice.Supplier),
		orDash(invoice.Amount),
		orDash(invoice.InvoiceNumber),
		url,
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
