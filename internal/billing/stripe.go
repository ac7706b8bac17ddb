// Package billing mirrors invoices to Stripe. The mirror is best-effort:
// callers record the outcome but never fail the local write on a provider
// error.
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"github.com/everpower/backoffice/internal/invoices"
)

// Config for the Stripe mirror.
type Config struct {
	SecretKey       string
	DefaultCurrency string
}

// Mirror implements the invoice mirror on the Stripe API.
type Mirror struct {
	client   *stripe.Client
	currency string
	logger   *slog.Logger
}

// NewMirror builds a Stripe-backed mirror, or nil when no secret key is
// configured so callers can treat mirroring as disabled.
func NewMirror(cfg Config, logger *slog.Logger) *Mirror {
	if cfg.SecretKey == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	currency := strings.ToLower(cfg.DefaultCurrency)
	if currency == "" {
		currency = "lkr"
	}
	return &Mirror{
		client:   stripe.NewClient(cfg.SecretKey, nil),
		currency: currency,
		logger:   logger,
	}
}

// Mirror creates the invoice on Stripe: find-or-create the customer by
// email, create a draft invoice collected by email, attach the line items,
// finalize, and optionally let Stripe send it.
func (m *Mirror) Mirror(ctx context.Context, req invoices.MirrorRequest) (*invoices.MirrorResult, error) {
	customerID, err := m.findOrCreateCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	inv, err := m.createDraftInvoice(ctx, customerID, req)
	if err != nil {
		return nil, err
	}

	if err := m.attachItems(ctx, customerID, inv.ID, req); err != nil {
		return nil, err
	}

	finalized, err := m.client.V1Invoices.FinalizeInvoice(ctx, inv.ID, &stripe.InvoiceFinalizeInvoiceParams{})
	if err != nil {
		return nil, fmt.Errorf("billing: finalize invoice %s: %w", inv.ID, err)
	}

	if req.FinalizeAndEmail {
		if _, err := m.client.V1Invoices.SendInvoice(ctx, finalized.ID, &stripe.InvoiceSendInvoiceParams{}); err != nil {
			// Sending is advisory, the finalized invoice already exists.
			m.logger.Warn("send stripe invoice",
				slog.String("stripe_invoice", finalized.ID), slog.Any("error", err))
		}
	}

	return &invoices.MirrorResult{
		CustomerID: customerID,
		InvoiceID:  finalized.ID,
		Status:     string(finalized.Status),
		HostedURL:  finalized.HostedInvoiceURL,
		PDFURL:     finalized.InvoicePDF,
	}, nil
}

func (m *Mirror) findOrCreateCustomer(ctx context.Context, req invoices.MirrorRequest) (string, error) {
	search := &stripe.CustomerSearchParams{}
	search.Query = "email:'" + req.ClientEmail + "'"
	search.Limit = stripe.Int64(1)

	for customer, err := range m.client.V1Customers.Search(ctx, search) {
		if err != nil {
			return "", fmt.Errorf("billing: search customer: %w", err)
		}
		return customer.ID, nil
	}

	name := req.ClientEmail
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	params := &stripe.CustomerCreateParams{
		Name:  stripe.String(name),
		Email: stripe.String(req.ClientEmail),
		Metadata: map[string]string{
			"backoffice_invoice_id": req.InvoiceID,
		},
	}
	if req.ClientPhone != "" {
		params.Phone = stripe.String(req.ClientPhone)
	}
	customer, err := m.client.V1Customers.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("billing: create customer: %w", err)
	}
	return customer.ID, nil
}

func (m *Mirror) createDraftInvoice(ctx context.Context, customerID string, req invoices.MirrorRequest) (*stripe.Invoice, error) {
	params := &stripe.InvoiceCreateParams{
		Customer:         stripe.String(customerID),
		Currency:         stripe.String(m.currency),
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:     stripe.Int64(daysUntilDue(req)),
		AutoAdvance:      stripe.Bool(false),
		Metadata: map[string]string{
			"backoffice_invoice_id": req.InvoiceID,
		},
	}
	if req.Description != nil {
		params.Description = stripe.String(*req.Description)
	}
	params.IdempotencyKey = stripe.String(uuid.NewString())

	inv, err := m.client.V1Invoices.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("billing: create invoice: %w", err)
	}
	return inv, nil
}

func (m *Mirror) attachItems(ctx context.Context, customerID, invoiceID string, req invoices.MirrorRequest) error {
	items := req.Items
	if len(items) == 0 {
		// No explicit lines: a single ad-hoc item for the full amount.
		amount := int64(math.Round(req.Amount * 100))
		items = []invoices.LineItem{{Amount: &amount}}
	}

	for i, item := range items {
		params := &stripe.InvoiceItemCreateParams{
			Customer: stripe.String(customerID),
			Invoice:  stripe.String(invoiceID),
		}
		if item.Description != nil {
			params.Description = stripe.String(*item.Description)
		}
		switch {
		case item.Price != nil:
			params.Pricing = &stripe.InvoiceItemCreatePricingParams{Price: stripe.String(*item.Price)}
			if item.Quantity != nil {
				params.Quantity = stripe.Int64(*item.Quantity)
			}
		case item.Amount != nil:
			amount := *item.Amount
			if item.Quantity != nil {
				amount *= *item.Quantity
			}
			params.Amount = stripe.Int64(amount)
			currency := m.currency
			if item.Currency != nil {
				currency = strings.ToLower(*item.Currency)
			}
			params.Currency = stripe.String(currency)
		default:
			return fmt.Errorf("billing: line %d has neither price nor amount", i)
		}

		if _, err := m.client.V1InvoiceItems.Create(ctx, params); err != nil {
			return fmt.Errorf("billing: attach line %d: %w", i, err)
		}
	}
	return nil
}

// daysUntilDue prefers the explicit request value and otherwise derives it
// from the issue and due dates, never below one day.
func daysUntilDue(req invoices.MirrorRequest) int64 {
	if req.DaysUntilDue != nil && *req.DaysUntilDue > 0 {
		return *req.DaysUntilDue
	}
	days := int64(math.Ceil(req.DueDate.Sub(req.Date).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

var _ invoices.BillingMirror = (*Mirror)(nil)
