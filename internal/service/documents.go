package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"backoffice/internal/apperror"
	"backoffice/internal/model"
	"backoffice/pkg/logger"

	"github.com/google/uuid"
)

// InvoiceRenderer produces a document for an invoice and returns where it was stored.
type InvoiceRenderer interface {
	RenderInvoice(ctx context.Context, invoice *model.Invoice) (string, error)
}

// EmailSender delivers a rendered invoice to its customer.
type EmailSender interface {
	SendInvoice(ctx context.Context, invoice *model.Invoice, documentPath string) error
}

// SnapshotRenderer writes the invoice read model as JSON under dir.
// It stands in for a real PDF renderer and keeps the same contract.
type SnapshotRenderer struct {
	dir string
}

func NewSnapshotRenderer(dir string) *SnapshotRenderer {
	return &SnapshotRenderer{dir: dir}
}

func (r *SnapshotRenderer) RenderInvoice(_ context.Context, invoice *model.Invoice) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}
	raw, err := json.MarshalIndent(invoice, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode invoice: %w", err)
	}
	path := filepath.Join(r.dir, invoice.InvoiceNumber+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write invoice document: %w", err)
	}
	return path, nil
}

// LogEmailSender records deliveries in the log instead of sending mail.
type LogEmailSender struct {
	log *logger.Logger
}

func NewLogEmailSender(log *logger.Logger) *LogEmailSender {
	return &LogEmailSender{log: log.WithComponent("email")}
}

func (s *LogEmailSender) SendInvoice(_ context.Context, invoice *model.Invoice, documentPath string) error {
	s.log.Infow("invoice email sent",
		"invoice_number", invoice.InvoiceNumber,
		"customer", invoice.CustomerName,
		"document", documentPath)
	return nil
}

type invoiceJobPayload struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
}

// InvoiceDocuments routes invoice document work through the job records.
type InvoiceDocuments struct {
	jobs     JobService
	invoices InvoiceService
	renderer InvoiceRenderer
	sender   EmailSender
}

// NewInvoiceDocuments registers the invoice job handlers on jobs.
func NewInvoiceDocuments(jobs JobService, invoices InvoiceService, renderer InvoiceRenderer, sender EmailSender) *InvoiceDocuments {
	d := &InvoiceDocuments{jobs: jobs, invoices: invoices, renderer: renderer, sender: sender}
	jobs.Register(model.JobTypeInvoicePDF, d.renderJob)
	jobs.Register(model.JobTypeInvoiceEmail, d.emailJob)
	return d
}

// RequestPDF renders the invoice once per revision. A payment or a status change
// makes a new revision, so the document is rendered again.
func (d *InvoiceDocuments) RequestPDF(ctx context.Context, invoiceID uuid.UUID) (*model.Job, error) {
	inv, err := d.invoices.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return d.jobs.Dispatch(ctx, model.JobTypeInvoicePDF, invoiceJobPayload{InvoiceID: invoiceID},
		PDFJobKey(inv.Invoice))
}

// PDFJobKey identifies one rendered revision of an invoice.
func PDFJobKey(inv *model.Invoice) string {
	return fmt.Sprintf("%s:%s:%s:%s", model.JobTypeInvoicePDF, inv.ID, inv.Status, inv.PaidAmount.StringFixed(2))
}

func (d *InvoiceDocuments) RequestEmail(ctx context.Context, invoiceID uuid.UUID) (*model.Job, error) {
	inv, err := d.invoices.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.EmailSent {
		return nil, apperror.NewConflict("invoice email already sent")
	}
	return d.jobs.Dispatch(ctx, model.JobTypeInvoiceEmail, invoiceJobPayload{InvoiceID: invoiceID},
		model.JobTypeInvoiceEmail+":"+invoiceID.String())
}

func decodeInvoicePayload(job *model.Job) (uuid.UUID, error) {
	var p invoiceJobPayload
	if err := json.Unmarshal([]byte(job.Payload), &p); err != nil {
		return uuid.Nil, fmt.Errorf("decode payload: %w", err)
	}
	return p.InvoiceID, nil
}

func (d *InvoiceDocuments) render(ctx context.Context, id uuid.UUID) (*InvoiceResponse, string, error) {
	inv, err := d.invoices.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	path, err := d.renderer.RenderInvoice(ctx, inv.Invoice)
	if err != nil {
		return nil, "", err
	}
	if err := d.invoices.SetPdfPath(ctx, id, path); err != nil {
		return nil, "", err
	}
	return inv, path, nil
}

func (d *InvoiceDocuments) renderJob(ctx context.Context, job *model.Job) error {
	id, err := decodeInvoicePayload(job)
	if err != nil {
		return err
	}
	_, _, err = d.render(ctx, id)
	return err
}

func (d *InvoiceDocuments) emailJob(ctx context.Context, job *model.Job) error {
	id, err := decodeInvoicePayload(job)
	if err != nil {
		return err
	}
	inv, err := d.invoices.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.EmailSent {
		return nil
	}

	path := inv.PdfPath
	if path == "" {
		if inv, path, err = d.render(ctx, id); err != nil {
			return err
		}
	}
	if err := d.sender.SendInvoice(ctx, inv.Invoice, path); err != nil {
		return err
	}
	return d.invoices.MarkEmailSent(ctx, id)
}
