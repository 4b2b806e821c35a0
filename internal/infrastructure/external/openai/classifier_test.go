package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestExtractJSONFromMarkdownFence(t *testing.T) {
	content := "Here is the result:\n```json\n{\"is_invoice\": true, \"supplier\": \"REPSOL\"}\n```\nDone."
	assert.Equal(t, `{"is_invoice": true, "supplier": "REPSOL"}`, extractJSON(content))
}

func TestExtractJSONHandlesNestedBracesAndStrings(t *testing.T) {
	content := `prefix {"a": {"b": "va{lue}"}, "c": "x"} suffix`
	assert.Equal(t, `{"a": {"b": "va{lue}"}, "c": "x"}`, extractJSON(content))
}

func TestExtractJSONNoObject(t *testing.T) {
	assert.Empty(t, extractJSON("no json here"))
}

func TestToExtractionMapsAndNormalizes(t *testing.T) {
	c := NewClassifier("test-key", "gpt-4o", 0.1, zap.NewNop())

	got := c.toExtraction(&extractionPayload{
		IsInvoice:     true,
		Supplier:      "  REPSOL ",
		InvoiceDate:   "2025-02-14",
		TotalAmount:   "45.60 ",
		Currency:      "eur",
		InvoiceNumber: "F-2025-019",
		Category:      "Combustible",
		Concept:       "Gasoil",
	})

	assert.False(t, got.Rejected)
	assert.Equal(t, "REPSOL", got.Supplier)
	assert.Equal(t, "45.60", got.TotalAmount)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "45.60 EUR", got.FormattedAmount())
	assert.True(t, got.Usable())
}

func TestToExtractionRejection(t *testing.T) {
	c := NewClassifier("test-key", "gpt-4o", 0.1, zap.NewNop())

	got := c.toExtraction(&extractionPayload{
		IsInvoice:    false,
		RejectReason: "es una fotografía",
	})

	assert.True(t, got.Rejected)
	assert.Equal(t, "es una fotografía", got.RejectReason)
	assert.False(t, got.Usable())
}
