package accounts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// OutboxMessage is a typed outbound email.
type OutboxMessage interface {
	Type() string
	Recipient() string
	Subject() string
	HTML() string
}

// ConfirmationEmail carries the signed confirmation token for a new or
// re-confirmed email address.
type ConfirmationEmail struct {
	To    string
	Name  string
	Token string
	Link  string
}

func (m ConfirmationEmail) Type() string      { return "email.confirmation" }
func (m ConfirmationEmail) Recipient() string { return m.To }
func (m ConfirmationEmail) Subject() string   { return "Confirm your email" }

func (m ConfirmationEmail) HTML() string {
	link := m.Link
	if link == "" {
		link = m.Token
	}
	return fmt.Sprintf(`<p>Hi %s,</p><p>Confirm your email by following <a href="%s">this link</a>. The link expires shortly.</p>`, m.Name, link)
}

// PasswordResetEmail carries the one time reset code.
type PasswordResetEmail struct {
	To   string
	Name string
	OTP  string
}

func (m PasswordResetEmail) Type() string      { return "email.password_reset" }
func (m PasswordResetEmail) Recipient() string { return m.To }
func (m PasswordResetEmail) Subject() string   { return "Reset your password" }

func (m PasswordResetEmail) HTML() string {
	return fmt.Sprintf(`<p>Hi %s,</p><p>Your password reset code is <b>%s</b>.</p>`, m.Name, m.OTP)
}

// OutboxConfig controls the outbox buffer.
type OutboxConfig struct {
	BufferSize int
}

// Outbox decouples identity operations from email delivery: operations
// enqueue, a dedicated worker sends. The HTTP response never waits on the
// mailer; delivery failures are counted and logged instead of surfacing
// inside an unobserved handler.
type Outbox struct {
	cfg       OutboxConfig
	mailer    Mailer
	logger    Logger
	ch        chan OutboxMessage
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// OutboxOption customizes the outbox.
type OutboxOption func(*Outbox)

// WithOutboxLogger overrides the fallback logger.
func WithOutboxLogger(logger Logger) OutboxOption {
	return func(o *Outbox) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOutbox starts the delivery worker.
func NewOutbox(cfg OutboxConfig, mailer Mailer, opts ...OutboxOption) *Outbox {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}

	o := &Outbox{
		cfg:    cfg,
		mailer: mailer,
		logger: defLogger{},
		ch:     make(chan OutboxMessage, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	o.wg.Add(1)
	go o.run()

	return o
}

func (o *Outbox) run() {
	defer o.wg.Done()

	for {
		select {
		case msg := <-o.ch:
			o.deliver(msg)
		case <-o.done:
			for {
				select {
				case msg := <-o.ch:
					o.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (o *Outbox) deliver(msg OutboxMessage) {
	if o.mailer == nil {
		return
	}
	if err := o.mailer.Send(context.Background(), msg.Recipient(), msg.Subject(), msg.HTML()); err != nil {
		o.failed.Add(1)
		o.logger.Error("outbox delivery failed type=%s to=%s: %v", msg.Type(), msg.Recipient(), err)
	}
}

// Enqueue hands a message to the worker. A full buffer drops the message
// and bumps the counter; the enclosing operation still succeeds.
func (o *Outbox) Enqueue(msg OutboxMessage) {
	if o == nil || o.closed.Load() {
		return
	}

	select {
	case o.ch <- msg:
	case <-o.done:
	default:
		o.dropped.Add(1)
		o.logger.Warn("outbox buffer full, dropped message type=%s", msg.Type())
	}
}

// Close drains the buffer and stops the worker.
func (o *Outbox) Close() {
	if o == nil {
		return
	}
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		close(o.done)
		o.wg.Wait()
	})
}

// Dropped returns how many messages were discarded on a full buffer.
func (o *Outbox) Dropped() uint64 {
	if o == nil {
		return 0
	}
	return o.dropped.Load()
}

// Failed returns how many deliveries the mailer rejected.
func (o *Outbox) Failed() uint64 {
	if o == nil {
		return 0
	}
	return o.failed.Load()
}
