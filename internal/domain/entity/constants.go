package entity

// Invoice status values. Stored verbatim in Spanish because they are
// user-visible in every client.
const (
	StatusPendiente = "Pendiente"
	StatusEnviada   = "Enviada"
	StatusArchivada = "Archivada"
)

// Upload source values identifying the channel an invoice arrived through.
const (
	SourceWebUpload    = "web_upload"
	SourceMobileUpload = "mobile_upload"
	SourceEmailIngest  = "email_ingest"
)

// Gestoría delivery status values.
const (
	DispatchPending = "pending"
	DispatchSent    = "sent"
	DispatchFailed  = "failed"
)

// Period bucketing modes.
const (
	PeriodMonth = "month"
	PeriodWeek  = "week"
)

// DefaultRootFolder is the virtual folder root shown to users who have not
// configured their own.
const DefaultRootFolder = "/FaktuGo"

// DefaultCategory is assigned to invoices ingested without classification
// (the email path) until the user edits them.
const DefaultCategory = "Sin clasificar"
