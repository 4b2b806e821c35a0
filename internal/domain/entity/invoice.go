package entity

import "time"

// Invoice is the central record produced by the ingestion pipeline.
// The id is generated by the pipeline (UUID), never by storage or the
// classifier, so a record can reference its stored file before insertion.
type Invoice struct {
	ID      string
	OwnerID string

	// Descriptive fields, editable after ingestion.
	Date          string // calendar date, YYYY-MM-DD
	Supplier      string
	Category      string // may embed a secondary concept after " - "
	Amount        string // formatted "<number> <CURRENCY>", e.g. "45.60 EUR"
	InvoiceNumber string // supplier-assigned, optional, not globally unique

	Status       string
	ArchivalOnly bool

	// Period assignment, fixed at ingestion time. Never recomputed when the
	// owner later changes their bucketing preference.
	PeriodType string
	PeriodKey  string
	FolderPath string

	// Stored file reference.
	FilePath         string
	FileNameOriginal string
	FileMimeType     string
	FileSize         int64

	UploadSource string

	// Gestoría delivery tracking. SentAt is stamped on every attempt;
	// SentStatus reflects only the most recent one.
	SentToGestoriaAt        *time.Time
	SentToGestoriaStatus    string // "", "pending", "sent", "failed"
	SentToGestoriaMessageID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Dispatchable reports whether the invoice may be forwarded to a gestoría.
// Archival-only invoices are permanently excluded.
func (i *Invoice) Dispatchable() bool {
	return !i.ArchivalOnly
}

// ConceptFromCategory splits a secondary concept embedded in the category
// after a " - " separator. Returns the bare category and the concept, which
// may be empty.
func (i *Invoice) ConceptFromCategory() (category, concept string) {
	for idx := 0; idx+3 <= len(i.Category); idx++ {
		if i.Category[idx:idx+3] == " - " {
			return i.Category[:idx], i.Category[idx+3:]
		}
	}
	return i.Category, ""
}
