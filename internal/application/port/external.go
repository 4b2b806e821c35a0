package port

import "context"

// Extraction is the classifier's best-effort read of a document. Any field
// may be empty; Rejected signals the document is not a recognizable
// invoice at all.
type Extraction struct {
	Supplier      string
	Date          string // YYYY-MM-DD when the classifier could read one
	TotalAmount   string // bare number, e.g. "45.60"
	Currency      string // ISO code, e.g. "EUR"
	InvoiceNumber string
	Category      string
	Concept       string
	Rejected      bool
	RejectReason  string
}

// Usable applies the validity predicate: a non-rejected extraction still
// has to plausibly represent a real invoice before anything is stored.
func (e *Extraction) Usable() bool {
	if e.Rejected {
		return false
	}
	return e.Supplier != "" || e.TotalAmount != ""
}

// FormattedAmount renders the stored "<number> <CURRENCY>" form.
func (e *Extraction) FormattedAmount() string {
	if e.TotalAmount == "" {
		return ""
	}
	cur := e.Currency
	if cur == "" {
		cur = "EUR"
	}
	return e.TotalAmount + " " + cur
}

// Classifier extracts structured invoice fields from raw document bytes.
// External collaborator; implementations must convert provider failures
// into errors, not panics.
type Classifier interface {
	Classify(ctx context.Context, data []byte, mimeType string) (*Extraction, error)
}

// OutboundMessage is an email handed to the transport.
type OutboundMessage struct {
	To             string
	Subject        string
	Body           string
	AttachmentName string
	AttachmentMime string
	Attachment     []byte
}

// MailSender submits outbound email. Returns the transport-assigned message
// id when the provider reports one.
type MailSender interface {
	Send(ctx context.Context, msg OutboundMessage) (messageID string, err error)
}

// AttachmentFetcher retrieves inbound attachment bytes from the email
// provider, keyed by the provider message id and attachment id.
type AttachmentFetcher interface {
	FetchAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// Authenticator resolves a bearer token to an owner. Real identity lives
// outside this service; the middleware only needs the mapping.
type Authenticator interface {
	ResolveToken(ctx context.Context, token string) (ownerID string, err error)
}
