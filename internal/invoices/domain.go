package invoices

import (
	"time"
)

// Status enumerates invoice statuses.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusOverdue Status = "OVERDUE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// BillingSync tracks the external mirror state of an invoice. NONE means
// mirroring was disabled at creation; PENDING means the row committed but
// the mirror has not completed yet.
type BillingSync string

const (
	BillingSyncNone    BillingSync = "NONE"
	BillingSyncPending BillingSync = "PENDING"
	BillingSyncSynced  BillingSync = "SYNCED"
	BillingSyncFailed  BillingSync = "FAILED"
)

// Invoice model.
type Invoice struct {
	ID          string      `json:"id"`
	Year        int         `json:"year"`
	Series      int64       `json:"series"`
	ClientEmail string      `json:"clientEmail"`
	ClientPhone string      `json:"clientPhone"`
	Amount      float64     `json:"amount"`
	Status      Status      `json:"status"`
	Date        time.Time   `json:"date"`
	DueDate     time.Time   `json:"dueDate"`
	Description *string     `json:"description,omitempty"`
	CustomerID  *string     `json:"customerId,omitempty"`
	BillingSync BillingSync `json:"billingSync"`

	StripeInvoiceID  *string `json:"stripeInvoiceId,omitempty"`
	StripeStatus     *string `json:"stripeStatus,omitempty"`
	StripeHostedURL  *string `json:"stripeHostedUrl,omitempty"`
	StripePDFURL     *string `json:"stripePdfUrl,omitempty"`
	StripeCustomerID *string `json:"stripeCustomerId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListRow is an invoice plus the computed outstanding amount returned by
// list queries: amount minus the sum of the invoice's non-FAILED payments.
type ListRow struct {
	Invoice
	OverDue float64 `json:"over_due"`
}

// LineItem is one external billing line. Either Price (a catalog price id)
// or Amount+Currency (an ad-hoc charge in minor units) is set.
type LineItem struct {
	Price       *string `json:"price,omitempty"`
	Amount      *int64  `json:"amount,omitempty"`
	Currency    *string `json:"currency,omitempty"`
	Description *string `json:"description,omitempty"`
	Quantity    *int64  `json:"quantity,omitempty"`
}

// BillingOptions carries optional external mirroring instructions.
type BillingOptions struct {
	Items            []LineItem `json:"items,omitempty"`
	DaysUntilDue     *int64     `json:"daysUntilDue,omitempty"`
	FinalizeAndEmail *bool      `json:"finalizeAndEmail,omitempty"`
}

// CreateInput for new invoices.
type CreateInput struct {
	ClientEmail string
	ClientPhone string
	Amount      float64
	Status      Status
	Date        time.Time
	DueDate     time.Time
	Description *string
	CustomerID  *string
	Billing     *BillingOptions
}

// Patch holds the optional fields of a partial update. Nil means leave the
// column untouched.
type Patch struct {
	ClientEmail *string
	ClientPhone *string
	Amount      *float64
	Status      *Status
	Date        *time.Time
	DueDate     *time.Time
	Description *string
	CustomerID  *string
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p.ClientEmail == nil && p.ClientPhone == nil && p.Amount == nil &&
		p.Status == nil && p.Date == nil && p.DueDate == nil &&
		p.Description == nil && p.CustomerID == nil
}

// ListFilters narrows List results.
type ListFilters struct {
	Query  string
	Status Status
	Year   int
}

// MirrorResult is the metadata captured from a completed external mirror.
type MirrorResult struct {
	CustomerID string
	InvoiceID  string
	Status     string
	HostedURL  string
	PDFURL     string
}
