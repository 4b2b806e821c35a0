package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/faktugo/faktugo-server/internal/application/port"
)

// Classifier implements port.Classifier using the OpenAI Vision API. PDFs
// are rasterized to JPEG pages first; images go straight through.
type Classifier struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewClassifier creates a new OpenAI classifier
func NewClassifier(apiKey, model string, temperature float32, logger *zap.Logger) *Classifier {
	return &Classifier{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// extractionPayload mirrors the JSON contract in the extraction prompt
type extractionPayload struct {
	IsInvoice     bool   `json:"is_invoice"`
	RejectReason  string `json:"reject_reason"`
	Supplier      string `json:"supplier"`
	InvoiceDate   string `json:"invoice_date"`
	TotalAmount   string `json:"total_amount"`
	Currency      string `json:"currency"`
	InvoiceNumber string `json:"invoice_number"`
	Category      string `json:"category"`
	Concept       string `json:"concept"`
}

// Classify extracts structured invoice fields from a document
func (c *Classifier) Classify(ctx context.Context, data []byte, mimeType string) (*port.Extraction, error) {
	c.logger.Debug("Classifying document",
		zap.String("mime_type", mimeType),
		zap.Int("size", len(data)))

	pages, err := c.toImagePages(data, mimeType)
	if err != nil {
		return nil, err
	}

	contentParts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: extractionPrompt,
		},
	}
	for _, page := range pages {
		contentParts = append(contentParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", page.mimeType, base64.StdEncoding.EncodeToString(page.data)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   2048,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: extractionSystemPrompt,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: contentParts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from vision API")
	}

	content := resp.Choices[0].Message.Content

	var payload extractionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		// The model occasionally wraps JSON in markdown fences despite the
		// response format; salvage the object before giving up.
		if jsonStr := extractJSON(content); jsonStr != "" {
			if err := json.Unmarshal([]byte(jsonStr), &payload); err == nil {
				return c.toExtraction(&payload), nil
			}
		}

		c.logger.Error("Failed to parse vision response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	extraction := c.toExtraction(&payload)
	c.logger.Info("Document classified",
		zap.Bool("rejected", extraction.Rejected),
		zap.String("supplier", extraction.Supplier),
		zap.String("amount", extraction.TotalAmount))

	return extraction, nil
}

func (c *Classifier) toExtraction(p *extractionPayload) *port.Extraction {
	return &port.Extraction{
		Supplier:      strings.TrimSpace(p.Supplier),
		Date:          strings.TrimSpace(p.InvoiceDate),
		TotalAmount:   strings.TrimSpace(p.TotalAmount),
		Currency:      strings.ToUpper(strings.TrimSpace(p.Currency)),
		InvoiceNumber: strings.TrimSpace(p.InvoiceNumber),
		Category:      strings.TrimSpace(p.Category),
		Concept:       strings.TrimSpace(p.Concept),
		Rejected:      !p.IsInvoice,
		RejectReason:  strings.TrimSpace(p.RejectReason),
	}
}

// extractJSON extracts a JSON object from markdown code blocks
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		char := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if char == '{' {
			braceCount++
		} else if char == '}' {
			braceCount--
			if braceCount == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
