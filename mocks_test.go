package accounts_test

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"testing"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	accounts "github.com/veilnote/go-accounts"
)

// testLogger routes package logging into the test log.
type testLogger struct {
	t *testing.T
}

func (l testLogger) Debug(format string, args ...any) { l.t.Logf("DBG "+format, args...) }
func (l testLogger) Info(format string, args ...any)  { l.t.Logf("INF "+format, args...) }
func (l testLogger) Warn(format string, args ...any)  { l.t.Logf("WRN "+format, args...) }
func (l testLogger) Error(format string, args ...any) { l.t.Logf("ERR "+format, args...) }

// stubAccounts is an in-memory Accounts store. The embedded interface covers
// the repository surface the tests never touch.
type stubAccounts struct {
	accounts.Accounts

	mu      sync.Mutex
	records map[string]*accounts.Account

	registerErr error
	saveErr     error

	confirmed []uuid.UUID
	frozen    []uuid.UUID
	unfrozen  []uuid.UUID
	deleted   []uuid.UUID

	rotatedHash    string
	rotatedHistory []string
	otpHash        string
	otpExpiresAt   time.Time
	saved          *accounts.Account
}

func newStubAccounts(seed ...*accounts.Account) *stubAccounts {
	s := &stubAccounts{records: map[string]*accounts.Account{}}
	for _, account := range seed {
		s.put(account)
	}
	return s
}

func (s *stubAccounts) put(account *accounts.Account) {
	s.records[account.ID.String()] = account
}

func (s *stubAccounts) findByEmail(email string) *accounts.Account {
	for _, account := range s.records {
		if account.Email == accounts.NormalizeEmail(email) {
			return account
		}
	}
	return nil
}

func (s *stubAccounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account, ok := s.records[identifier]; ok {
		return account, nil
	}
	if account := s.findByEmail(identifier); account != nil {
		return account, nil
	}
	return nil, accounts.ErrAccountNotFound
}

func (s *stubAccounts) GetByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account := s.findByEmail(email); account != nil {
		return account, nil
	}
	return nil, accounts.ErrAccountNotFound
}

func (s *stubAccounts) Register(ctx context.Context, account *accounts.Account) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registerErr != nil {
		return nil, s.registerErr
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	s.put(account)
	return account, nil
}

func (s *stubAccounts) ConfirmEmail(ctx context.Context, id uuid.UUID, revision int64) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.records[id.String()]
	if !ok {
		return nil, accounts.ErrAccountNotFound
	}
	if account.Confirmed {
		return nil, accounts.ErrAlreadyConfirmed
	}
	if account.Revision != revision {
		return nil, accounts.ErrStaleRecord
	}

	account.Confirmed = true
	account.Revision++
	s.confirmed = append(s.confirmed, id)
	return account, nil
}

func (s *stubAccounts) Freeze(ctx context.Context, id, actor uuid.UUID, revision int64) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.records[id.String()]
	if !ok {
		return nil, accounts.ErrAccountNotFound
	}
	if account.IsFrozen() {
		return nil, accounts.ErrAlreadyFrozen
	}
	if account.Revision != revision {
		return nil, accounts.ErrStaleRecord
	}

	now := time.Now()
	account.FrozenAt = &now
	frozenBy := actor
	account.FrozenBy = &frozenBy
	account.Revision++
	s.frozen = append(s.frozen, id)
	return account, nil
}

func (s *stubAccounts) Unfreeze(ctx context.Context, id, actor uuid.UUID, revision int64) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.records[id.String()]
	if !ok {
		return nil, accounts.ErrAccountNotFound
	}
	if !account.IsFrozen() {
		return nil, accounts.ErrNotFrozen
	}
	if account.Revision != revision {
		return nil, accounts.ErrStaleRecord
	}

	now := time.Now()
	account.FrozenAt = nil
	account.FrozenBy = nil
	account.RestoredAt = &now
	restoredBy := actor
	account.RestoredBy = &restoredBy
	account.Revision++
	s.unfrozen = append(s.unfrozen, id)
	return account, nil
}

func (s *stubAccounts) DeleteFrozen(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.records[id.String()]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	if !account.IsFrozen() {
		return accounts.ErrNotFrozen
	}

	delete(s.records, id.String())
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubAccounts) RotatePassword(ctx context.Context, id uuid.UUID, newHash string, history []string, revision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.records[id.String()]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	if account.Revision != revision {
		return accounts.ErrStaleRecord
	}

	account.PasswordHash = newHash
	account.PasswordHistory = history
	account.OTPHash = ""
	account.OTPExpiresAt = nil
	account.Revision++
	s.rotatedHash = newHash
	s.rotatedHistory = history
	return nil
}

func (s *stubAccounts) SetOTP(ctx context.Context, id uuid.UUID, otpHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.records[id.String()]
	if !ok {
		return accounts.ErrAccountNotFound
	}

	account.OTPHash = otpHash
	account.OTPExpiresAt = &expiresAt
	s.otpHash = otpHash
	s.otpExpiresAt = expiresAt
	return nil
}

func (s *stubAccounts) SaveProfile(ctx context.Context, record *accounts.Account) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return nil, s.saveErr
	}

	current, ok := s.records[record.ID.String()]
	if !ok {
		return nil, accounts.ErrAccountNotFound
	}
	if current.Revision != record.Revision {
		return nil, accounts.ErrStaleRecord
	}

	record.Revision++
	s.put(record)
	s.saved = record
	return record, nil
}

// stubLedger is an in-memory RevocationLedger.
type stubLedger struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newStubLedger() *stubLedger {
	return &stubLedger{revoked: map[string]time.Time{}}
}

func (l *stubLedger) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return l.err
	}
	l.revoked[jti] = expiresAt
	return nil
}

func (l *stubLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return false, l.err
	}
	_, ok := l.revoked[jti]
	return ok, nil
}

func (l *stubLedger) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (l *stubLedger) contains(jti string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.revoked[jti]
	return ok
}

// stubRepoManager ties the stubs together behind the manager interface.
type stubRepoManager struct {
	accountsRepo *stubAccounts
	ledger       *stubLedger
}

func (m *stubRepoManager) Validate() error { return nil }

func (m *stubRepoManager) MustValidate() {}

func (m *stubRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *stubRepoManager) Accounts() accounts.Accounts { return m.accountsRepo }

func (m *stubRepoManager) RevokedTokens() accounts.RevocationLedger { return m.ledger }

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

// stubMailer records deliveries.
type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *stubMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *stubMailer) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// stubVerifier returns a canned federated identity.
type stubVerifier struct {
	identity *accounts.FederatedIdentity
	err      error
}

func (v *stubVerifier) Verify(ctx context.Context, credential string) (*accounts.FederatedIdentity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}

// stubStorage records object operations.
type stubStorage struct {
	mu        sync.Mutex
	uploads   []string
	destroyed []string
	uploadErr error
}

func (s *stubStorage) Upload(ctx context.Context, key, contentType string, body io.Reader) (accounts.MediaRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uploadErr != nil {
		return accounts.MediaRef{}, s.uploadErr
	}
	s.uploads = append(s.uploads, key)
	return accounts.MediaRef{URL: "https://cdn.test/" + key, Key: key}, nil
}

func (s *stubStorage) Destroy(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = append(s.destroyed, key)
	return nil
}

func (s *stubStorage) DestroyMany(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = append(s.destroyed, keys...)
	return nil
}

// capturingSink collects lifecycle events.
type capturingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func newTestTokenService(t *testing.T, opts ...accounts.TokenServiceOption) *accounts.TokenService {
	t.Helper()

	secrets := map[accounts.AccountRole]accounts.SecretPair{
		accounts.RoleUser: {
			Access:  []byte("user-access-secret"),
			Refresh: []byte("user-refresh-secret"),
		},
		accounts.RoleAdmin: {
			Access:  []byte("admin-access-secret"),
			Refresh: []byte("admin-refresh-secret"),
		},
	}

	ts, err := accounts.NewTokenService(secrets, []byte("confirm-secret"), opts...)
	require.NoError(t, err)
	return ts
}

// testHasher uses the cheapest bcrypt cost to keep the suite fast.
func testHasher() *accounts.Hasher {
	return accounts.NewHasher(4)
}

func hashedPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := testHasher().HashPassword(password)
	require.NoError(t, err)
	return hash
}

func activeAccount(t *testing.T, email, password string) *accounts.Account {
	t.Helper()
	return &accounts.Account{
		ID:           uuid.New(),
		Role:         accounts.RoleUser,
		Provider:     accounts.ProviderSystem,
		Name:         "Test Account",
		Email:        accounts.NormalizeEmail(email),
		PasswordHash: hashedPassword(t, password),
		Confirmed:    true,
	}
}

// sessionClaims issues a pair for the account and returns the decoded
// access claims, the way the gate hands them to operations.
func sessionClaims(t *testing.T, tokens *accounts.TokenService, account *accounts.Account) *accounts.Claims {
	t.Helper()

	pair, err := tokens.IssuePair(account)
	require.NoError(t, err)

	claims, err := tokens.VerifyScheme("Bearer", pair.Access, accounts.TokenAccess)
	require.NoError(t, err)
	return claims
}

type serviceFixture struct {
	svc          *accounts.Service
	accountsRepo *stubAccounts
	ledger       *stubLedger
	mailer       *stubMailer
	outbox       *accounts.Outbox
	tokens       *accounts.TokenService
}

func newServiceFixture(t *testing.T, opts ...accounts.ServiceOption) *serviceFixture {
	t.Helper()

	accountsRepo := newStubAccounts()
	ledger := newStubLedger()
	mailer := &stubMailer{}
	outbox := accounts.NewOutbox(accounts.OutboxConfig{BufferSize: 8}, mailer)
	t.Cleanup(outbox.Close)

	tokens := newTestTokenService(t)

	base := []accounts.ServiceOption{
		accounts.WithHasher(testHasher()),
		accounts.WithOutbox(outbox),
		accounts.WithServiceLogger(testLogger{t}),
	}

	svc := accounts.NewService(
		&stubRepoManager{accountsRepo: accountsRepo, ledger: ledger},
		tokens,
		append(base, opts...)...,
	)

	return &serviceFixture{
		svc:          svc,
		accountsRepo: accountsRepo,
		ledger:       ledger,
		mailer:       mailer,
		outbox:       outbox,
		tokens:       tokens,
	}
}
