package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"github.com/faktugo/faktugo-server/internal/application/service"
	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

// Handler processes inbound-email webhook events. Every attachment of a
// recognized recipient becomes a placeholder invoice; failures are reported
// in the response body, never as a non-2xx status, so the provider does not
// retry work that already partially succeeded.
type Handler struct {
	verifier   *Verifier
	aliases    port.AliasRepository
	settings   port.SettingsRepository
	fetcher    port.AttachmentFetcher
	ingest     service.IngestService
	dispatcher service.DispatchService
	logger     *zap.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(
	verifier *Verifier,
	aliases port.AliasRepository,
	settings port.SettingsRepository,
	fetcher port.AttachmentFetcher,
	ingest service.IngestService,
	dispatcher service.DispatchService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		verifier:   verifier,
		aliases:    aliases,
		settings:   settings,
		fetcher:    fetcher,
		ingest:     ingest,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// InboundEvent is the Mailgun-shaped webhook payload
type InboundEvent struct {
	Signature EventSignature `json:"signature"`
	EventData EventData      `json:"event-data"`
}

// EventSignature carries the fields Mailgun signs
type EventSignature struct {
	Timestamp string `json:"timestamp"`
	Token     string `json:"token"`
	Signature string `json:"signature"`
}

// EventData describes one stored inbound message. Attachment bytes are not
// inlined; they are fetched from the provider by id.
type EventData struct {
	MessageID   string          `json:"message-id"`
	Sender      string          `json:"sender"`
	Recipients  []string        `json:"recipients"`
	Timestamp   float64         `json:"timestamp"`
	Attachments []AttachmentRef `json:"attachments"`
}

// AttachmentRef is one entry of the attachment manifest
type AttachmentRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content-type"`
	Size        int64  `json:"size"`
}

type webhookResponse struct {
	Processed int      `json:"processed"`
	Errors    []string `json:"errors"`
}

// Handle processes an inbound-email event
func (h *Handler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var event InboundEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("Failed to parse webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse payload"})
		return
	}

	sig := event.Signature
	if !h.verifier.VerifySignature(sig.Timestamp, sig.Token, sig.Signature) {
		h.logger.Warn("Invalid webhook signature",
			zap.String("timestamp", sig.Timestamp),
			zap.String("message_id", event.EventData.MessageID))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	h.logger.Info("Inbound email received",
		zap.String("message_id", event.EventData.MessageID),
		zap.String("sender", event.EventData.Sender),
		zap.Int("recipients", len(event.EventData.Recipients)),
		zap.Int("attachments", len(event.EventData.Attachments)))

	resp := h.processEvent(c.Request.Context(), &event.EventData)
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) processEvent(ctx context.Context, data *EventData) webhookResponse {
	resp := webhookResponse{Errors: []string{}}

	receivedAt := time.Now()
	if data.Timestamp > 0 {
		receivedAt = time.Unix(int64(data.Timestamp), 0)
	}

	for _, recipient := range data.Recipients {
		alias, err := h.aliases.GetActiveByAddress(ctx, recipient)
		if err != nil {
			h.logger.Error("Alias lookup failed",
				zap.String("recipient", recipient),
				zap.Error(err))
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: alias lookup failed", recipient))
			continue
		}
		if alias == nil {
			// Mail to unknown addresses is acknowledged and dropped;
			// answering differently would let senders probe for aliases.
			h.logger.Debug("No active alias for recipient", zap.String("recipient", recipient))
			continue
		}

		for _, att := range data.Attachments {
			invoice, err := h.ingestAttachment(ctx, alias.OwnerID, data, att, receivedAt)
			if err != nil {
				h.logger.Warn("Attachment ingestion failed",
					zap.String("owner_id", alias.OwnerID),
					zap.String("attachment", att.Name),
					zap.Error(err))
				resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", att.Name, err))
				continue
			}
			resp.Processed++

			h.autoForward(ctx, alias.OwnerID, invoice)
		}
	}

	return resp
}

func (h *Handler) ingestAttachment(ctx context.Context, ownerID string, data *EventData, att AttachmentRef, receivedAt time.Time) (*entity.Invoice, error) {
	content, err := h.fetcher.FetchAttachment(ctx, data.MessageID, att.ID)
	if err != nil {
		return nil, err
	}

	invoice, err := h.ingest.IngestPlaceholder(ctx, ownerID, service.IncomingFile{
		Name:     att.Name,
		MimeType: att.ContentType,
		Data:     content,
	}, data.Sender, receivedAt)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// autoForward dispatches a freshly ingested invoice when the owner opted in.
// Dispatch failures are tracked on the invoice, not surfaced here.
func (h *Handler) autoForward(ctx context.Context, ownerID string, invoice *entity.Invoice) {
	settings, err := h.settings.GetSettings(ctx, ownerID)
	if err != nil {
		h.logger.Error("Settings lookup failed for auto-forward",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return
	}
	if settings == nil || !settings.AutoForward || settings.GestoriaEmail == "" {
		return
	}
	if !invoice.Dispatchable() {
		return
	}

	if _, err := h.dispatcher.Dispatch(ctx, invoice, settings.GestoriaEmail, settings.DisplayName); err != nil {
		h.logger.Error("Auto-forward dispatch failed",
			zap.String("invoice_id", invoice.ID),
			zap.Error(err))
	}
}
