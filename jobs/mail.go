package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/everpower/backoffice/internal/invoices"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendMail is the task type for transactional mail delivery.
	TaskTypeSendMail = "mail:send"
)

// Mail kinds carried in MailPayload.
const (
	MailKindInvoiceIssued = "invoice-issued"
	MailKindNewPassword   = "new-password"
)

// MailPayload describes one transactional mail.
type MailPayload struct {
	Kind      string  `json:"kind"`
	To        string  `json:"to"`
	InvoiceID string  `json:"invoiceId,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	PayURL    string  `json:"payUrl,omitempty"`
	Password  string  `json:"password,omitempty"`
}

// NewMailTask constructs an Asynq task for the payload.
func NewMailTask(payload MailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendMail, data), nil
}

// MailSender is the delivery surface the worker needs.
type MailSender interface {
	InvoiceIssued(ctx context.Context, n invoices.Notice) error
	NewPassword(ctx context.Context, to, password string) error
}

// NewMailHandler returns the worker-side handler for mail tasks. A
// malformed payload or unknown kind skips retry: redelivery cannot fix it.
func NewMailHandler(sender MailSender, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload MailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("mail task payload", slog.Any("error", err))
			return asynq.SkipRetry
		}
		switch payload.Kind {
		case MailKindInvoiceIssued:
			return sender.InvoiceIssued(ctx, invoices.Notice{
				To:        payload.To,
				InvoiceID: payload.InvoiceID,
				Amount:    payload.Amount,
				PayURL:    payload.PayURL,
			})
		case MailKindNewPassword:
			return sender.NewPassword(ctx, payload.To, payload.Password)
		default:
			logger.Error("mail task kind unknown", slog.String("kind", payload.Kind))
			return asynq.SkipRetry
		}
	}
}

// QueueNotifier implements the invoice notifier by enqueuing a mail task,
// keeping SMTP latency out of the request path.
type QueueNotifier struct {
	client *Client
}

// NewQueueNotifier builds the notifier, or nil when no client exists.
func NewQueueNotifier(client *Client) *QueueNotifier {
	if client == nil {
		return nil
	}
	return &QueueNotifier{client: client}
}

// InvoiceIssued queues the invoice notification.
func (n *QueueNotifier) InvoiceIssued(ctx context.Context, notice invoices.Notice) error {
	_, err := n.client.EnqueueMail(ctx, MailPayload{
		Kind:      MailKindInvoiceIssued,
		To:        notice.To,
		InvoiceID: notice.InvoiceID,
		Amount:    notice.Amount,
		PayURL:    notice.PayURL,
	})
	return err
}

// NewPassword queues the generated-password mail.
func (n *QueueNotifier) NewPassword(ctx context.Context, to, password string) error {
	_, err := n.client.EnqueueMail(ctx, MailPayload{
		Kind:     MailKindNewPassword,
		To:       to,
		Password: password,
	})
	return err
}
