// Package dedupe decides whether a freshly classified invoice duplicates
// one the owner already has. The check only runs among invoices sharing the
// candidate's owner and date; that pre-filter is what keeps it cheap.
package dedupe

import (
	"sort"
	"strings"
	"unicode"

	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

// Candidate carries the normalized-comparable fields of an incoming invoice.
type Candidate struct {
	Supplier      string
	Date          string
	Amount        string
	InvoiceNumber string
}

// Match identifies the existing invoice a candidate collided with. The
// fields are surfaced to the user so they can verify the rejection.
type Match struct {
	InvoiceID     string
	Supplier      string
	Date          string
	Amount        string
	InvoiceNumber string
}

const supplierPrefixLen = 12

// Find scans existing same-owner, same-date invoices in ascending id order
// and returns the first duplicate, or nil. Scanning in id order makes the
// outcome independent of storage row order.
//
// A pair is a duplicate when the amounts match (whitespace ignored) and
// either both carry the same non-empty invoice number, or the normalized
// supplier names agree on their first 12 characters or one contains the
// other. Invoice numbers alone are not enough: different suppliers reuse
// the same sequences, so the owner+date+amount context is required.
func Find(c Candidate, existing []*entity.Invoice) *Match {
	rows := make([]*entity.Invoice, len(existing))
	copy(rows, existing)
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	candAmount := normalizeAmount(c.Amount)
	candSupplier := normalizeSupplier(c.Supplier)

	for _, inv := range rows {
		if inv.Date != c.Date {
			continue
		}
		if normalizeAmount(inv.Amount) != candAmount || candAmount == "" {
			continue
		}

		if c.InvoiceNumber != "" && inv.InvoiceNumber != "" && c.InvoiceNumber == inv.InvoiceNumber {
			return toMatch(inv)
		}
		if suppliersAlike(candSupplier, normalizeSupplier(inv.Supplier)) {
			return toMatch(inv)
		}
	}
	return nil
}

func toMatch(inv *entity.Invoice) *Match {
	return &Match{
		InvoiceID:     inv.ID,
		Supplier:      inv.Supplier,
		Date:          inv.Date,
		Amount:        inv.Amount,
		InvoiceNumber: inv.InvoiceNumber,
	}
}

// suppliersAlike compares normalized supplier names: equal 12-character
// prefixes or containment either way. Tolerates minor OCR variance without
// requiring exact equality.
func suppliersAlike(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if prefix(a, supplierPrefixLen) == prefix(b, supplierPrefixLen) {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// normalizeSupplier lowercases and strips everything non-alphanumeric.
func normalizeSupplier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeAmount removes whitespace so "18.15 EUR" and "18.15EUR" compare
// equal.
func normalizeAmount(s string) string {
	return strings.Join(strings.Fields(s), "")
}
