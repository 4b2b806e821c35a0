package service

import (
	"errors"
	"fmt"

	"github.com/faktugo/faktugo-server/internal/domain/dedupe"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Sentinel errors the handlers branch on. Per-file occurrences become
// per-file result entries; request-level occurrences abort the request.
var (
	ErrNotFound        = errors.New("invoice not found")
	ErrEmptyFile       = errors.New("el archivo está vacío")
	ErrFileTooLarge    = errors.New("el archivo supera el tamaño máximo permitido")
	ErrUnsupportedType = errors.New("tipo de archivo no admitido: solo imágenes y PDF")
	ErrArchivalOnly    = errors.New("la factura está marcada como solo archivo y no puede enviarse")
	ErrNoGestoriaEmail = errors.New("no hay email de gestoría configurado")
)

// QuotaError rejects a whole batch when it does not fit the owner's
// remaining monthly allowance.
type QuotaError struct {
	Remaining int
	Requested int
}

func (e *QuotaError) Error() string {
	if e.Remaining <= 0 {
		return "has alcanzado el límite mensual de facturas de tu plan"
	}
	return fmt.Sprintf("tu plan solo permite %d factura(s) más este mes y has enviado %d", e.Remaining, e.Requested)
}

// RejectionError carries the classifier's reason for declining a document.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return "el documento no parece una factura"
	}
	return e.Reason
}

// DuplicateError surfaces the matched invoice's identifying fields so the
// user can verify the rejection.
type DuplicateError struct {
	Match dedupe.Match
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("factura duplicada: ya existe %q del %s por %s (nº %q)",
		e.Match.Supplier, e.Match.Date, e.Match.Amount, e.Match.InvoiceNumber)
}
