package accounts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/veilnote/go-accounts"
)

// blockingMailer parks every Send until released and reports when the first
// delivery has started.
type blockingMailer struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingMailer() *blockingMailer {
	return &blockingMailer{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (m *blockingMailer) Send(ctx context.Context, to, subject, html string) error {
	select {
	case m.started <- struct{}{}:
	default:
	}
	<-m.release
	return nil
}

func TestOutbox_Deliver(t *testing.T) {
	mailer := &stubMailer{}
	outbox := accounts.NewOutbox(accounts.OutboxConfig{BufferSize: 4}, mailer, accounts.WithOutboxLogger(testLogger{t}))

	outbox.Enqueue(accounts.ConfirmationEmail{To: "a@example.com", Name: "A", Token: "tok"})
	outbox.Enqueue(accounts.PasswordResetEmail{To: "b@example.com", Name: "B", OTP: "123456"})
	outbox.Close()

	sent := mailer.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "a@example.com", sent[0].To)
	assert.Equal(t, "Confirm your email", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "tok")
	assert.Equal(t, "b@example.com", sent[1].To)
	assert.Contains(t, sent[1].HTML, "123456")

	assert.Zero(t, outbox.Dropped())
	assert.Zero(t, outbox.Failed())
}

func TestOutbox_DeliveryFailure(t *testing.T) {
	mailer := &stubMailer{err: assert.AnError}
	outbox := accounts.NewOutbox(accounts.OutboxConfig{BufferSize: 4}, mailer, accounts.WithOutboxLogger(testLogger{t}))

	outbox.Enqueue(accounts.ConfirmationEmail{To: "a@example.com", Name: "A", Token: "tok"})
	outbox.Close()

	assert.Equal(t, uint64(1), outbox.Failed())
	assert.Empty(t, mailer.messages())
}

func TestOutbox_DropOnFullBuffer(t *testing.T) {
	mailer := newBlockingMailer()
	outbox := accounts.NewOutbox(accounts.OutboxConfig{BufferSize: 1}, mailer, accounts.WithOutboxLogger(testLogger{t}))

	// first message occupies the worker, second fills the buffer
	outbox.Enqueue(accounts.ConfirmationEmail{To: "a@example.com", Name: "A", Token: "t1"})
	<-mailer.started
	outbox.Enqueue(accounts.ConfirmationEmail{To: "b@example.com", Name: "B", Token: "t2"})

	outbox.Enqueue(accounts.ConfirmationEmail{To: "c@example.com", Name: "C", Token: "t3"})
	assert.Equal(t, uint64(1), outbox.Dropped())

	close(mailer.release)
	outbox.Close()
}

func TestOutbox_CloseIsIdempotent(t *testing.T) {
	outbox := accounts.NewOutbox(accounts.OutboxConfig{}, &stubMailer{})
	outbox.Close()
	outbox.Close()

	outbox.Enqueue(accounts.ConfirmationEmail{To: "late@example.com"})
	assert.Zero(t, outbox.Dropped())
}

func TestOutbox_NilSafe(t *testing.T) {
	var outbox *accounts.Outbox
	outbox.Enqueue(accounts.ConfirmationEmail{To: "x@example.com"})
	outbox.Close()
	assert.Zero(t, outbox.Dropped())
	assert.Zero(t, outbox.Failed())
}
