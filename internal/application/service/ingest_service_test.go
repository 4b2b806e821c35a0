package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

type ingestFixture struct {
	invoiceRepo  *fakeInvoiceRepo
	settingsRepo *fakeSettingsRepo
	store        *fakeStore
	classifier   *fakeClassifier
	sender       *fakeSender
	svc          IngestService
}

func newIngestFixture(quota int, gestoriaEmail string) *ingestFixture {
	f := &ingestFixture{
		invoiceRepo:  newFakeInvoiceRepo(),
		settingsRepo: newFakeSettingsRepo(),
		store:        newFakeStore(),
		classifier:   &fakeClassifier{extraction: validExtraction()},
		sender:       &fakeSender{messageID: "mg-1"},
	}
	seedOwner(f.settingsRepo, "owner-1", quota, gestoriaEmail)

	quotaSvc := NewQuotaService(f.invoiceRepo, f.settingsRepo, nopLogger{})
	dispatcher := NewDispatchService(f.invoiceRepo, f.store, f.sender, nopLogger{})
	f.svc = NewIngestService(f.invoiceRepo, f.settingsRepo, f.store, f.classifier, quotaSvc, dispatcher, nopLogger{})
	return f
}

func TestProcessBatchCreatesPendingInvoice(t *testing.T) {
	f := newIngestFixture(100, "")

	results, err := f.svc.ProcessBatch(context.Background(), "owner-1",
		[]IncomingFile{pdfFile("factura-repsol.pdf")}, BatchOptions{Source: entity.SourceWebUpload})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Empty(t, r.Error)
	assert.Equal(t, "factura-repsol.pdf", r.OriginalName)
	assert.Equal(t, "REPSOL", r.Supplier)
	assert.Equal(t, "45.60 EUR", r.Amount)
	assert.Equal(t, "2025-02-14", r.Date)
	assert.Equal(t, entity.StatusPendiente, r.Status)
	assert.Equal(t, "2025-02", r.PeriodKey)
	assert.Empty(t, r.SentStatus)

	inv, _ := f.invoiceRepo.GetByID(context.Background(), "owner-1", r.ID)
	require.NotNil(t, inv)
	assert.Equal(t, "/FaktuGo/2025-02", inv.FolderPath)
	assert.Equal(t, entity.SourceWebUpload, inv.UploadSource)
	assert.Contains(t, f.store.objects, inv.FilePath)
	assert.Contains(t, inv.FilePath, "owner-1/2025-02/")
	assert.NotContains(t, inv.FilePath, "factura-repsol", "object names are generated, not taken from the upload")
}

func TestProcessBatchSecondUploadIsDuplicate(t *testing.T) {
	f := newIngestFixture(100, "")
	file := pdfFile("factura.pdf")

	first, err := f.svc.ProcessBatch(context.Background(), "owner-1", []IncomingFile{file}, BatchOptions{})
	require.NoError(t, err)
	require.Empty(t, first[0].Error)

	second, err := f.svc.ProcessBatch(context.Background(), "owner-1", []IncomingFile{file}, BatchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, second[0].Error)
	assert.Contains(t, second[0].Error, "duplicada")
	assert.Contains(t, second[0].Error, "REPSOL")
	assert.Contains(t, second[0].Error, "2025-02-14")
	assert.Contains(t, second[0].Error, "45.60 EUR")

	assert.Equal(t, 1, f.invoiceRepo.creates)
	assert.Len(t, f.store.objects, 1, "duplicate rejection must not store a second blob")
}

func TestProcessBatchDuplicateWithinSameBatch(t *testing.T) {
	// The second file must see the row created by the first one.
	f := newIngestFixture(100, "")
	file := pdfFile("factura.pdf")

	results, err := f.svc.ProcessBatch(context.Background(), "owner-1",
		[]IncomingFile{file, file}, BatchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Empty(t, results[0].Error)
	assert.Contains(t, results[1].Error, "duplicada")
	assert.Equal(t, 1, f.invoiceRepo.creates)
}

func TestProcessBatchRejectionsLeaveNoTrace(t *testing.T) {
	tests := []struct {
		name      string
		file      IncomingFile
		configure func(*ingestFixture)
		contains  string
	}{
		{
			name:     "empty file",
			file:     IncomingFile{Name: "vacio.pdf", MimeType: "application/pdf"},
			contains: "vacío",
		},
		{
			name:     "oversized file",
			file:     IncomingFile{Name: "grande.pdf", MimeType: "application/pdf", Data: make([]byte, MaxFileSize+1)},
			contains: "tamaño máximo",
		},
		{
			name:     "disallowed type",
			file:     IncomingFile{Name: "datos.csv", MimeType: "text/csv", Data: []byte("a,b")},
			contains: "no admitido",
		},
		{
			name: "classifier rejection",
			file: pdfFile("menu.pdf"),
			configure: func(f *ingestFixture) {
				f.classifier.extraction = &port.Extraction{Rejected: true, RejectReason: "no parece una factura"}
			},
			contains: "no parece una factura",
		},
		{
			name: "garbage extraction",
			file: pdfFile("borroso.pdf"),
			configure: func(f *ingestFixture) {
				f.classifier.extraction = &port.Extraction{}
			},
			contains: "no parece una factura",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(100, "")
			if tt.configure != nil {
				tt.configure(f)
			}

			results, err := f.svc.ProcessBatch(context.Background(), "owner-1",
				[]IncomingFile{tt.file}, BatchOptions{})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Contains(t, results[0].Error, tt.contains)

			assert.Empty(t, f.store.objects, "no object-store key on rejection")
			assert.Equal(t, 0, f.invoiceRepo.creates, "no row on rejection")
		})
	}
}

func TestProcessBatchTypeGateSkipsClassifier(t *testing.T) {
	f := newIngestFixture(100, "")

	_, err := f.svc.ProcessBatch(context.Background(), "owner-1",
		[]IncomingFile{{Name: "datos.csv", MimeType: "text/csv", Data: []byte("a,b")}}, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, f.classifier.calls)
}

func TestProcessBatchQuotaRejectsBeforeClassification(t *testing.T) {
	f := newIngestFixture(1, "")
	seed := pdfFile("primera.pdf")
	_, err := f.svc.ProcessBatch(context.Background(), "owner-1", []IncomingFile{seed}, BatchOptions{})
	require.NoError(t, err)
	f.classifier.calls = 0

	_, err = f.svc.ProcessBatch(context.Background(), "owner-1", []IncomingFile{pdfFile("segunda.pdf")}, BatchOptions{})
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 0, f.classifier.calls, "quota rejection happens before any classification")
	assert.Equal(t, 1, f.invoiceRepo.creates, "invoice count unchanged")
}

func TestProcessBatchOverBatchLimit(t *testing.T) {
	f := newIngestFixture(100, "")
	files := make([]IncomingFile, MaxBatchFiles+1)
	for i := range files {
		files[i] = pdfFile("f.pdf")
	}

	_, err := f.svc.ProcessBatch(context.Background(), "owner-1", files, BatchOptions{})
	require.Error(t, err)
	assert.Equal(t, 0, f.invoiceRepo.creates)
}

func TestProcessBatchIsolatesPerFileFailures(t *testing.T) {
	f := newIngestFixture(100, "")

	results, err := f.svc.ProcessBatch(context.Background(), "owner-1", []IncomingFile{
		{Name: "vacio.pdf", MimeType: "application/pdf"},
		pdfFile("buena.pdf"),
	}, BatchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NotEmpty(t, results[0].Error)
	assert.Empty(t, results[1].Error, "one failing file never aborts the others")
	assert.Equal(t, 1, f.invoiceRepo.creates)
}

func TestProcessBatchCompensatesOrphanedFile(t *testing.T) {
	f := newIngestFixture(100, "")
	f.invoiceRepo.createErr = errors.New("disk I/O error")

	results, err := f.svc.ProcessBatch(context.Background(), "owner-1",
		[]IncomingFile{pdfFile("factura.pdf")}, BatchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results[0].Error)

	assert.Empty(t, f.store.objects, "orphaned blob must be removed after insert failure")
	assert.Len(t, f.store.deletes, 1)
}

func TestProcessBatchArchivalOnly(t *testing.T) {
	f := newIngestFixture(100, "gestoria@asesores.es")

	results, err := f.svc.ProcessBatch(context.Background(), "owner-1",
		[]IncomingFile{pdfFile("factura.pdf")},
		BatchOptions{ArchivalOnly: true, SendToGestoria: true})
	require.NoError(t, err)
	require.Empty(t, results[0].Error)

	assert.Equal(t, entity.StatusArchivada, results[0].Status)
	assert.Empty(t, f.sender.sent, "archival-only is never dispatched, even when requested")

	inv, _ := f.invoiceRepo.GetByID(context.Background(), "owner-1", results[0].ID)
	assert.True(t, inv.ArchivalOnly)
	assert.Empty(t, inv.SentToGestoriaStatus)
}

func TestProcessBatchSendWithoutConfiguredEmail(t *testing.T) {
	f := newIngestFixture(100, "")

	results, err := f.svc.ProcessBatch(context.Background(), "owner-1",
		[]IncomingFile{pdfFile("factura.pdf")},
		BatchOptions{SendToGestoria: true})
	require.NoError(t, err)
	require.Empty(t, results[0].Error)

	// Invoice still created, no dispatch attempt recorded.
	assert.Equal(t, entity.StatusPendiente, results[0].Status)
	assert.Empty(t, results[0].SentStatus)
	assert.Empty(t, f.sender.sent)
}

func TestProcessBatchDispatchesWhenRequested(t *testing.T) {
	f := newIngestFixture(100, "gestoria@asesores.es")

	results, err := f.svc.ProcessBatch(context.Background(), "owner-1",
		[]IncomingFile{pdfFile("factura.pdf")},
		BatchOptions{SendToGestoria: true})
	require.NoError(t, err)
	require.Empty(t, results[0].Error)

	assert.Equal(t, entity.StatusEnviada, results[0].Status)
	assert.Equal(t, entity.DispatchSent, results[0].SentStatus)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "gestoria@asesores.es", f.sender.sent[0].To)
}

func TestProcessBatchDispatchFailureStillCreatesInvoice(t *testing.T) {
	f := newIngestFixture(100, "gestoria@asesores.es")
	f.sender.err = errors.New("smtp timeout")

	results, err := f.svc.ProcessBatch(context.Background(), "owner-1",
		[]IncomingFile{pdfFile("factura.pdf")},
		BatchOptions{SendToGestoria: true})
	require.NoError(t, err)
	require.Empty(t, results[0].Error, "delivery failure is not an ingestion failure")

	assert.Equal(t, entity.StatusPendiente, results[0].Status)
	assert.Equal(t, entity.DispatchFailed, results[0].SentStatus)
}

func TestProcessBatchDateFallbackWhenExtractionHasNone(t *testing.T) {
	f := newIngestFixture(100, "")
	f.classifier.extraction.Date = ""

	results, err := f.svc.ProcessBatch(context.Background(), "owner-1",
		[]IncomingFile{pdfFile("factura.pdf")}, BatchOptions{})
	require.NoError(t, err)
	require.Empty(t, results[0].Error)

	assert.Equal(t, time.Now().Format("2006-01-02"), results[0].Date)
}

func TestIngestPlaceholderCreatesProviderDefaults(t *testing.T) {
	f := newIngestFixture(100, "")
	received := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

	inv, err := f.svc.IngestPlaceholder(context.Background(), "owner-1",
		IncomingFile{Name: "adjunto.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")},
		"proveedor@example.com", received)
	require.NoError(t, err)

	assert.Equal(t, "proveedor@example.com", inv.Supplier)
	assert.Equal(t, entity.DefaultCategory, inv.Category)
	assert.Empty(t, inv.Amount)
	assert.Equal(t, "2025-03-03", inv.Date)
	assert.Equal(t, "2025-03", inv.PeriodKey)
	assert.Equal(t, entity.SourceEmailIngest, inv.UploadSource)
	assert.Equal(t, entity.StatusPendiente, inv.Status)
	assert.Equal(t, 0, f.classifier.calls, "email path stores without a classification gate")
	assert.Contains(t, f.store.objects, inv.FilePath)
}

func TestIngestPlaceholderRespectsQuota(t *testing.T) {
	f := newIngestFixture(0, "")

	_, err := f.svc.IngestPlaceholder(context.Background(), "owner-1",
		pdfFile("adjunto.pdf"), "proveedor@example.com", time.Now())
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Empty(t, f.store.objects)
}

func TestIngestPlaceholderRejectsUnsupportedType(t *testing.T) {
	f := newIngestFixture(100, "")

	_, err := f.svc.IngestPlaceholder(context.Background(), "owner-1",
		IncomingFile{Name: "nota.txt", MimeType: "text/plain", Data: []byte("hola")},
		"proveedor@example.com", time.Now())
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
