package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

// Hand-rolled port fakes shared by the service tests.

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fakeInvoiceRepo struct {
	invoices    map[string]*entity.Invoice
	createErr   error
	creates     int
	dispatchLog []port.DispatchOutcome
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[string]*entity.Invoice)}
}

func (r *fakeInvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	if r.createErr != nil {
		return r.createErr
	}
	cp := *inv
	cp.CreatedAt = time.Now()
	r.invoices[inv.ID] = &cp
	r.creates++
	return nil
}

func (r *fakeInvoiceRepo) GetByID(_ context.Context, ownerID, id string) (*entity.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvoiceRepo) List(_ context.Context, ownerID string, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.OwnerID != ownerID {
			continue
		}
		if filter.PeriodKey != "" && inv.PeriodKey != filter.PeriodKey {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeInvoiceRepo) ListByDate(_ context.Context, ownerID, date string) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.OwnerID == ownerID && inv.Date == date {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeInvoiceRepo) CountCreatedInMonth(_ context.Context, ownerID string, ref time.Time) (int, error) {
	month := ref.Format("2006-01")
	n := 0
	for _, inv := range r.invoices {
		if inv.OwnerID == ownerID && inv.CreatedAt.Format("2006-01") == month {
			n++
		}
	}
	return n, nil
}

func (r *fakeInvoiceRepo) UpdateFields(_ context.Context, ownerID, id string, date, supplier, category, amount, invoiceNumber string) error {
	inv, ok := r.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return fmt.Errorf("not found")
	}
	inv.Date, inv.Supplier, inv.Category, inv.Amount, inv.InvoiceNumber = date, supplier, category, amount, invoiceNumber
	return nil
}

func (r *fakeInvoiceRepo) RecordDispatch(_ context.Context, ownerID, id string, outcome port.DispatchOutcome) error {
	inv, ok := r.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return fmt.Errorf("not found")
	}
	r.dispatchLog = append(r.dispatchLog, outcome)
	at := outcome.At
	inv.SentToGestoriaAt = &at
	inv.SentToGestoriaStatus = outcome.Status
	inv.SentToGestoriaMessageID = outcome.MessageID
	if outcome.Status == entity.DispatchSent && inv.Status == entity.StatusPendiente {
		inv.Status = entity.StatusEnviada
	}
	return nil
}

func (r *fakeInvoiceRepo) Delete(_ context.Context, ownerID, id string) error {
	inv, ok := r.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return fmt.Errorf("not found")
	}
	delete(r.invoices, id)
	return nil
}

type fakeSettingsRepo struct {
	settings map[string]*entity.OwnerSettings
	plans    map[string]*entity.Plan
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{
		settings: make(map[string]*entity.OwnerSettings),
		plans:    make(map[string]*entity.Plan),
	}
}

func (r *fakeSettingsRepo) GetSettings(_ context.Context, ownerID string) (*entity.OwnerSettings, error) {
	return r.settings[ownerID], nil
}

func (r *fakeSettingsRepo) GetPlan(_ context.Context, code string) (*entity.Plan, error) {
	return r.plans[code], nil
}

type fakeStore struct {
	objects map[string][]byte
	putErr  error
	deletes []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(_ context.Context, key string, content []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = content
	return nil
}

func (s *fakeStore) Read(_ context.Context, key string) ([]byte, error) {
	content, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return content, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	s.deletes = append(s.deletes, key)
	return nil
}

func (s *fakeStore) SignURL(key string, _ time.Duration) (string, error) {
	return "https://files.test/" + key + "?sig=abc", nil
}

type fakeClassifier struct {
	extraction *port.Extraction
	err        error
	calls      int
}

func (c *fakeClassifier) Classify(_ context.Context, _ []byte, _ string) (*port.Extraction, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	cp := *c.extraction
	return &cp, nil
}

type fakeSender struct {
	err       error
	messageID string
	sent      []port.OutboundMessage
}

func (s *fakeSender) Send(_ context.Context, msg port.OutboundMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, msg)
	return s.messageID, nil
}

// seedOwner sets up an owner with a plan the happy-path tests share.
func seedOwner(settingsRepo *fakeSettingsRepo, ownerID string, quota int, gestoriaEmail string) {
	settingsRepo.settings[ownerID] = &entity.OwnerSettings{
		OwnerID:       ownerID,
		DisplayName:   "Ana Pérez",
		GestoriaEmail: gestoriaEmail,
		BucketingMode: entity.PeriodMonth,
		PlanCode:      "pro",
	}
	settingsRepo.plans["pro"] = &entity.Plan{Code: "pro", MonthlyQuota: quota, GestoriaEnabled: true}
}

func validExtraction() *port.Extraction {
	return &port.Extraction{
		Supplier:      "REPSOL",
		Date:          "2025-02-14",
		TotalAmount:   "45.60",
		Currency:      "EUR",
		InvoiceNumber: "F-2025-019",
		Category:      "Combustible",
	}
}

func pdfFile(name string) IncomingFile {
	return IncomingFile{Name: name, MimeType: "application/pdf", Data: []byte("%PDF-1.4 test")}
}
