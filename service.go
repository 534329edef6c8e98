package accounts

import (
	"time"
)

// Service composes the identity operations: signup, signin, federated
// signin, confirmation, token refresh, logout, password change and reset,
// profile and media management, freeze/unfreeze/delete.
type Service struct {
	repo        RepositoryManager
	tokens      *TokenService
	hasher      PasswordAuthenticator
	cipher      *PhoneCipher
	outbox      *Outbox
	verifier    IdentityVerifier
	storage     ObjectStorage
	sm          AccountStateMachine
	logger      Logger
	otpTTL      time.Duration
	phoneRegion string
	confirmURL  string
	now         func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithHasher overrides the default bcrypt hasher.
func WithHasher(hasher PasswordAuthenticator) ServiceOption {
	return func(s *Service) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithPhoneCipher enables phone number encryption.
func WithPhoneCipher(cipher *PhoneCipher) ServiceOption {
	return func(s *Service) {
		s.cipher = cipher
	}
}

// WithOutbox wires the outbound email queue.
func WithOutbox(outbox *Outbox) ServiceOption {
	return func(s *Service) {
		s.outbox = outbox
	}
}

// WithIdentityVerifier wires the federated identity oracle.
func WithIdentityVerifier(verifier IdentityVerifier) ServiceOption {
	return func(s *Service) {
		s.verifier = verifier
	}
}

// WithObjectStorage wires media upload storage.
func WithObjectStorage(storage ObjectStorage) ServiceOption {
	return func(s *Service) {
		s.storage = storage
	}
}

// WithStateMachine overrides the default account state machine.
func WithStateMachine(sm AccountStateMachine) ServiceOption {
	return func(s *Service) {
		if sm != nil {
			s.sm = sm
		}
	}
}

// WithServiceLogger overrides the fallback logger.
func WithServiceLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOTPTTL sets how long a reset code stays valid.
func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

// WithPhoneRegion sets the default region for national phone numbers.
func WithPhoneRegion(region string) ServiceOption {
	return func(s *Service) {
		if region != "" {
			s.phoneRegion = region
		}
	}
}

// WithConfirmURL sets the base link embedded in confirmation emails.
func WithConfirmURL(url string) ServiceOption {
	return func(s *Service) {
		s.confirmURL = url
	}
}

// WithServiceClock injects a custom clock (useful for tests).
func WithServiceClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewService wires the identity operations over the repository manager and
// token service.
func NewService(repo RepositoryManager, tokens *TokenService, opts ...ServiceOption) *Service {
	s := &Service{
		repo:        repo,
		tokens:      tokens,
		hasher:      NewHasher(DefaultBcryptCost),
		logger:      defLogger{},
		otpTTL:      10 * time.Minute,
		phoneRegion: DefaultPhoneRegion,
		now:         time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.sm == nil {
		s.sm = NewAccountStateMachine(repo.Accounts(), WithStateMachineLogger(s.logger))
	}

	return s
}

// AuthResult is the payload returned by signin and the federated flows.
type AuthResult struct {
	Account *Account  `json:"account"`
	Tokens  TokenPair `json:"tokens"`
	// Phone is the decrypted number, present only for the owner.
	Phone string `json:"phone,omitempty"`
	// Created reports whether the federated flow registered a new account.
	Created bool `json:"created,omitempty"`
}

// enqueue hands a message to the outbox when one is configured. Operations
// never wait on delivery.
func (s *Service) enqueue(msg OutboxMessage) {
	if s.outbox == nil {
		s.logger.Debug("outbox not configured, skipping %s", msg.Type())
		return
	}
	s.outbox.Enqueue(msg)
}

// decryptPhone returns the owner's phone in the clear. Decryption failure is
// surfaced, it signals key mismatch or corruption.
func (s *Service) decryptPhone(account *Account) (string, error) {
	if s.cipher == nil || account == nil || account.PhoneCiphertext == "" {
		return "", nil
	}
	return s.cipher.Decrypt(account.PhoneCiphertext)
}

func (s *Service) encryptPhone(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	normalized, err := NormalizePhone(raw, s.phoneRegion)
	if err != nil {
		return "", err
	}

	if s.cipher == nil {
		return normalized, nil
	}
	return s.cipher.Encrypt(normalized)
}

func (s *Service) enqueueConfirmation(account *Account) {
	token, err := s.tokens.IssueConfirm(account)
	if err != nil {
		s.logger.Error("failed to issue confirmation token for %s: %v", account.Email, err)
		return
	}

	link := ""
	if s.confirmURL != "" {
		link = s.confirmURL + "?token=" + token
	}

	s.enqueue(ConfirmationEmail{
		To:    account.Email,
		Name:  account.Name,
		Token: token,
		Link:  link,
	})
}
