package mailgun

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/faktugo/faktugo-server/internal/application/port"
)

// maxAttachmentBytes bounds how much of an inbound attachment is read. It is
// above the pipeline's own file-size limit so oversize files reach the
// validator and produce its error instead of a truncated blob.
const maxAttachmentBytes = 32 << 20

// Fetcher implements port.AttachmentFetcher against the Mailgun stored
// messages API.
type Fetcher struct {
	client *Client
}

// NewFetcher creates a new Fetcher
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// FetchAttachment downloads one attachment of a stored inbound message.
func (f *Fetcher) FetchAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/domains/%s/messages/%s/attachments/%s",
		f.client.baseURL,
		url.PathEscape(f.client.domain),
		url.PathEscape(messageID),
		url.PathEscape(attachmentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build attachment request: %w", err)
	}
	f.client.authorize(req)

	resp, err := f.client.http.Do(req)
	if err != nil {
		f.client.logger.Error("Mailgun attachment request failed",
			zap.String("message_id", messageID),
			zap.Error(err))
		return nil, fmt.Errorf("mailgun attachment fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.client.logger.Error("Mailgun attachment fetch rejected",
			zap.String("message_id", messageID),
			zap.String("attachment_id", attachmentID),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("mailgun attachment fetch failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment body: %w", err)
	}
	return data, nil
}

var _ port.AttachmentFetcher = (*Fetcher)(nil)
