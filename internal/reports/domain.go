// Package reports assembles the back-office overview: settlement totals,
// received sums, and the largest outstanding debtors.
package reports

import "time"

// Totals are the headline aggregates for the overview.
type Totals struct {
	Invoiced       float64 `json:"invoiced"`
	Completed      float64 `json:"completed"`
	Pending        float64 `json:"pending"`
	Outstanding    float64 `json:"outstanding"`
	InvoiceCount   int     `json:"invoiceCount"`
	PaidCount      int     `json:"paidCount"`
	ActiveInvoices int     `json:"activeInvoices"`
	SuccessRate    float64 `json:"successRate"`
}

// Received are the completed payment sums per period.
type Received struct {
	Today    float64 `json:"today"`
	ThisWeek float64 `json:"thisWeek"`
	Month    float64 `json:"month"`
}

// OpenInvoice is one invoice with outstanding balance, as read from
// storage before debtors are ranked.
type OpenInvoice struct {
	ClientEmail string
	DueDate     time.Time
	Outstanding float64
}

// DebtorBucket counts one due-date bucket of a debtor's open invoices.
type DebtorBucket struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// Debtor is one client ranked by outstanding balance.
type Debtor struct {
	ClientEmail string       `json:"clientEmail"`
	Outstanding float64      `json:"outstanding"`
	Overdue     DebtorBucket `json:"overdue"`
	Pending     DebtorBucket `json:"pending"`
}

// Meta describes how the overview was produced.
type Meta struct {
	MonthRange  Range     `json:"monthRange"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Range is a half-open [From, To) UTC interval.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Overview is the full report payload.
type Overview struct {
	Totals     Totals   `json:"totals"`
	Received   Received `json:"received"`
	TopDebtors []Debtor `json:"topDebtors"`
	Meta       Meta     `json:"meta"`
}
