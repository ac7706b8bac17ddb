// Package payments records payments against invoices and keeps invoice
// settlement status in step with the recorded totals.
package payments

import "time"

// Method is how a payment was made.
type Method string

const (
	MethodCash         Method = "CASH"
	MethodCard         Method = "CARD"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodOnline       Method = "ONLINE"
	MethodCheque       Method = "CHEQUE"
	MethodOther        Method = "OTHER"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodOnline, MethodCheque, MethodOther:
		return true
	}
	return false
}

// Status is the lifecycle state of a payment. Only COMPLETED payments
// count toward settling an invoice.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Payment is one recorded payment row.
type Payment struct {
	ID          string    `json:"id"`
	Year        int       `json:"year"`
	Series      int64     `json:"series"`
	InvoiceID   string    `json:"invoiceId"`
	ClientEmail string    `json:"clientEmail"`
	Amount      float64   `json:"amount"`
	Method      Method    `json:"method"`
	Status      Status    `json:"status"`
	Date        time.Time `json:"date"`
	Reference   *string   `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput for new payments. ClientEmail defaults from the owning
// invoice when blank; Status defaults to COMPLETED.
type CreateInput struct {
	InvoiceID   string
	ClientEmail string
	Amount      float64
	Method      Method
	Status      Status
	Date        time.Time
	Reference   *string
}

// Patch holds the optional fields of a partial update. Nil leaves the
// column untouched.
type Patch struct {
	ClientEmail *string
	Amount      *float64
	Method      *Method
	Status      *Status
	Date        *time.Time
	Reference   *string
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p.ClientEmail == nil && p.Amount == nil && p.Method == nil &&
		p.Status == nil && p.Date == nil && p.Reference == nil
}

// ListFilters narrows List results.
type ListFilters struct {
	Query     string
	InvoiceID string
	Status    Status
	Method    Method
	From      *time.Time
	To        *time.Time
}
