package openai

const extractionSystemPrompt = "You are an expert in reading Spanish invoices (facturas) and receipts. " +
	"You extract supplier names, dates, amounts and invoice numbers with perfect accuracy. " +
	"Always respond with valid JSON."

const extractionPrompt = `Examine this document and decide whether it is an invoice or receipt (factura, ticket, recibo). Then extract its fields.

Return a JSON object with this exact structure:
{
  "is_invoice": boolean,
  "reject_reason": "string, short reason in Spanish when is_invoice is false, otherwise empty",
  "supplier": "string, the issuing company name (proveedor)",
  "invoice_date": "YYYY-MM-DD, the invoice issue date",
  "total_amount": "string, the total amount including tax, digits and decimal point only, e.g. 45.60",
  "currency": "string, ISO 4217 code, e.g. EUR",
  "invoice_number": "string, the invoice number (número de factura) if present",
  "category": "string, one expense category in Spanish, e.g. Combustible, Suministros, Restauración, Material de oficina, Transporte, Telefonía",
  "concept": "string, a one-line description of what was purchased, in Spanish"
}

IMPORTANT:
- Extract EXACTLY what you see. Do not guess or make up values.
- If a field is not visible or unclear, use empty string "".
- total_amount is the final amount the customer pays (total, importe total), without currency symbols.
- Dates written as DD/MM/YYYY must be converted to YYYY-MM-DD.
- Set is_invoice to false for documents that are clearly not invoices or receipts (photos, letters, blank pages).`
