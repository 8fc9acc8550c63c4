// Package extract converts uploaded files to plain text ahead of chunking.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/models"
)

var (
	ErrTooLarge            = errors.New("file exceeds upload size limit")
	ErrTooManyPages        = errors.New("PDF exceeds page limit")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrNotText             = errors.New("file is not valid UTF-8 text")
)

type Extractor struct {
	maxBytes int64
	maxPages int
}

func New(cfg config.IngestConfig) *Extractor {
	return &Extractor{
		maxBytes: int64(cfg.MaxUploadMB) << 20,
		maxPages: cfg.MaxPDFPages,
	}
}

// Text extracts plain text from raw file bytes. Plain-text formats are
// validated as UTF-8 and passed through unchanged.
func (e *Extractor) Text(fileType string, raw []byte) (string, error) {
	if int64(len(raw)) > e.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(raw))
	}

	switch fileType {
	case models.FileTypePDF:
		return e.pdfText(raw)
	case models.FileTypeDOCX:
		return docxText(raw)
	case models.FileTypeTXT, models.FileTypeMD, models.FileTypeCSV:
		if !utf8.Valid(raw) {
			return "", ErrNotText
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, fileType)
	}
}

func (e *Extractor) pdfText(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	if r.NumPage() > e.maxPages {
		return "", fmt.Errorf("%w: %d pages", ErrTooManyPages, r.NumPage())
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One mangled page should not sink a 400-page document.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// docxText pulls the paragraph text out of word/document.xml. Formatting
// runs collapse to their character data; paragraph ends become newlines.
func docxText(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("open docx: word/document.xml not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open docx document: %w", err)
	}
	defer rc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx document: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			if t.Name.Local == "p" {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String(), nil
}
