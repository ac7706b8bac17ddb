package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/everpower/backoffice/internal/invoices"
)

type fakeSender struct {
	notices   []invoices.Notice
	passwords map[string]string
}

func (f *fakeSender) InvoiceIssued(_ context.Context, n invoices.Notice) error {
	f.notices = append(f.notices, n)
	return nil
}

func (f *fakeSender) NewPassword(_ context.Context, to, password string) error {
	if f.passwords == nil {
		f.passwords = map[string]string{}
	}
	f.passwords[to] = password
	return nil
}

func TestMailHandlerDispatchesByKind(t *testing.T) {
	sender := &fakeSender{}
	handler := NewMailHandler(sender, nil)

	task, err := NewMailTask(MailPayload{
		Kind:      MailKindInvoiceIssued,
		To:        "client@example.com",
		InvoiceID: "INV-2026-0001",
		Amount:    1500,
		PayURL:    "https://pay.example.com/x",
	})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Len(t, sender.notices, 1)
	require.Equal(t, "INV-2026-0001", sender.notices[0].InvoiceID)

	task, err = NewMailTask(MailPayload{
		Kind:     MailKindNewPassword,
		To:       "user@example.com",
		Password: "fresh-pass",
	})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, "fresh-pass", sender.passwords["user@example.com"])
}

func TestMailHandlerSkipsMalformedPayload(t *testing.T) {
	handler := NewMailHandler(&fakeSender{}, nil)

	err := handler(context.Background(), asynq.NewTask(TaskTypeSendMail, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	task, buildErr := NewMailTask(MailPayload{Kind: "carrier-pigeon", To: "a@b.c"})
	require.NoError(t, buildErr)
	err = handler(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
