// Package mailgun is a thin HTTP client for the two Mailgun surfaces the
// service touches: sending messages and fetching stored attachments. The
// inbound webhook itself is handled elsewhere; this package only talks
// outbound to the Mailgun API.
package mailgun

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.eu.mailgun.net/v3"

// Client carries the credentials and HTTP plumbing shared by the sender and
// the attachment fetcher.
type Client struct {
	domain  string
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a Mailgun API client. baseURL may be empty, in which
// case the EU region endpoint is used.
func NewClient(domain, apiKey, baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		domain:  domain,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *Client) authorize(req *http.Request) {
	req.SetBasicAuth("api", c.apiKey)
}
