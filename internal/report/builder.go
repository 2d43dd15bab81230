package report

import (
	"context"
	"fmt"

	"github.com/campus-attendance/backend/internal/notify"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
	contentTypeZIP  = "application/zip"
)

// Bundle is the rendered report of one day.
type Bundle struct {
	Subject     string
	HTMLBody    string
	Attachments []notify.Attachment
}

// Builder renders a summary into a bundle.
type Builder interface {
	Build(ctx context.Context, s Summary) (*Bundle, error)
}

// DocumentBuilder renders a spreadsheet, a PDF and an HTML email body.
type DocumentBuilder struct{}

// NewDocumentBuilder creates a DocumentBuilder.
func NewDocumentBuilder() *DocumentBuilder { return &DocumentBuilder{} }

// Build implements Builder.
func (b *DocumentBuilder) Build(ctx context.Context, s Summary) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	xlsx, err := BuildSpreadsheet(s)
	if err != nil {
		return nil, fmt.Errorf("build spreadsheet: %w", err)
	}
	pdf, err := BuildPDF(s)
	if err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	body, err := BuildBody(s)
	if err != nil {
		return nil, fmt.Errorf("build body: %w", err)
	}
	stem := fileStem(s.Date)
	return &Bundle{
		Subject:  s.Subject(),
		HTMLBody: body,
		Attachments: []notify.Attachment{
			{Filename: stem + ".xlsx", ContentType: contentTypeXLSX, Data: xlsx},
			{Filename: stem + ".pdf", ContentType: contentTypePDF, Data: pdf},
		},
	}, nil
}
