package mailgun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"go.uber.org/zap"

	"github.com/faktugo/faktugo-server/internal/application/port"
)

// Sender implements port.MailSender against the Mailgun messages API.
type Sender struct {
	client *Client
	from   string
}

// NewSender creates a new Sender. from is the full From header, e.g.
// "FaktuGo <facturas@mg.faktugo.com>".
func NewSender(client *Client, from string) *Sender {
	return &Sender{client: client, from: from}
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send submits the message and returns the Mailgun message id.
func (s *Sender) Send(ctx context.Context, msg port.OutboundMessage) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"from":    s.from,
		"to":      msg.To,
		"subject": msg.Subject,
		"text":    msg.Body,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("failed to build message form: %w", err)
		}
	}

	if len(msg.Attachment) > 0 {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="attachment"; filename=%q`, msg.AttachmentName))
		header.Set("Content-Type", msg.AttachmentMime)

		part, err := writer.CreatePart(header)
		if err != nil {
			return "", fmt.Errorf("failed to build attachment part: %w", err)
		}
		if _, err := part.Write(msg.Attachment); err != nil {
			return "", fmt.Errorf("failed to write attachment: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize message form: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.client.baseURL, s.client.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	s.client.authorize(req)

	resp, err := s.client.http.Do(req)
	if err != nil {
		s.client.logger.Error("Mailgun send request failed", zap.Error(err))
		return "", fmt.Errorf("mailgun send failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read mailgun response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.client.logger.Error("Mailgun rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return "", fmt.Errorf("mailgun send failed: status %d", resp.StatusCode)
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse mailgun response: %w", err)
	}

	s.client.logger.Info("Message submitted to Mailgun",
		zap.String("to", msg.To),
		zap.String("message_id", parsed.ID))

	return parsed.ID, nil
}

var _ port.MailSender = (*Sender)(nil)
