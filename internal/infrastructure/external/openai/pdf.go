package openai

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"strings"

	fitz "github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// maxVisionPages caps how many PDF pages are sent to the Vision API. Spanish
// invoices rarely run past the first page; the cap keeps token costs bounded.
const maxVisionPages = 2

type imagePage struct {
	data     []byte
	mimeType string
}

// toImagePages normalizes a document into the image pages the Vision API
// accepts. Images pass through untouched; PDFs are rasterized with mupdf.
func (c *Classifier) toImagePages(data []byte, mimeType string) ([]imagePage, error) {
	if strings.HasPrefix(mimeType, "image/") {
		return []imagePage{{data: data, mimeType: mimeType}}, nil
	}

	if mimeType != "application/pdf" {
		return nil, fmt.Errorf("unsupported document type: %s", mimeType)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount > maxVisionPages {
		pageCount = maxVisionPages
	}

	var pages []imagePage
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			c.logger.Warn("Failed to rasterize PDF page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			c.logger.Warn("Failed to encode page to JPEG",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		pages = append(pages, imagePage{data: buf.Bytes(), mimeType: "image/jpeg"})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages extracted from PDF")
	}
	return pages, nil
}
