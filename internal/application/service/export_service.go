package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/faktugo/faktugo-server/internal/application/port"
)

// ExportService renders a reporting period's invoices as an Excel workbook
// for handing to an accountant outside the automatic dispatch flow.
type ExportService interface {
	ExportPeriod(ctx context.Context, ownerID, periodKey string) ([]byte, error)
}

type exportServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	logger      Logger
}

// NewExportService creates a new ExportService.
func NewExportService(invoiceRepo port.InvoiceRepository, logger Logger) ExportService {
	return &exportServiceImpl{invoiceRepo: invoiceRepo, logger: logger}
}

var exportHeaders = []string{"Fecha", "Proveedor", "Categoría", "Importe", "Número", "Estado", "Origen"}

func (s *exportServiceImpl) ExportPeriod(ctx context.Context, ownerID, periodKey string) ([]byte, error) {
	invoices, err := s.invoiceRepo.List(ctx, ownerID, port.InvoiceFilter{PeriodKey: periodKey, Limit: 10000})
	if err != nil {
		return nil, fmt.Errorf("list invoices for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, periodKey); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sheet = periodKey

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for row, inv := range invoices {
		values := []interface{}{inv.Date, inv.Supplier, inv.Category, inv.Amount, inv.InvoiceNumber, inv.Status, inv.UploadSource}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}

	s.logger.Info("Period exported",
		"owner_id", ownerID, "period_key", periodKey, "invoices", len(invoices))
	return buf.Bytes(), nil
}
