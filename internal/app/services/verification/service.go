// Package verification issues and checks phone verification codes.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/omnilaze/universal/internal/app/domain/verification"
	"github.com/omnilaze/universal/internal/app/storage"
	"github.com/omnilaze/universal/pkg/logger"
)

// Errors callers can branch on.
var (
	ErrInvalidPhone      = errors.New("invalid phone number format")
	ErrInvalidCodeFormat = errors.New("invalid verification code format")
	ErrCodeNotFound      = errors.New("verification code not found or already used")
	ErrCodeExpired       = errors.New("verification code expired")
	ErrCodeMismatch      = errors.New("verification code incorrect")
	// ErrDelivery wraps an SMS gateway failure. The code is stored
	// before delivery, so callers may retry sending without issuing a
	// new code.
	ErrDelivery = errors.New("verification code delivery failed")
)

var (
	phonePattern = regexp.MustCompile(`^1\d{10}$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)
)

// CodeTTL is how long an issued code stays valid.
const CodeTTL = 10 * time.Minute

// Sender delivers a verification code to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// Service issues single-use verification codes and verifies them.
type Service struct {
	store   storage.VerificationStore
	sender  Sender
	log     *logger.Logger
	devMode bool
	devCode string
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSender assigns the delivery channel for issued codes.
func WithSender(sender Sender) Option {
	return func(s *Service) { s.sender = sender }
}

// WithDevelopmentMode makes the service issue the fixed code and skip
// delivery, so clients can be exercised without an SMS gateway.
func WithDevelopmentMode(code string) Option {
	return func(s *Service) {
		s.devMode = true
		s.devCode = code
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a verification service.
func New(store storage.VerificationStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("verification")
	}
	s := &Service{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DevelopmentMode reports whether the service issues fixed codes.
func (s *Service) DevelopmentMode() bool { return s.devMode }

// Issue generates a code for the phone, stores it and hands it to the
// sender. In development mode the fixed code is returned to the caller
// and nothing is sent. The returned code is always stored, even when
// delivery fails.
func (s *Service) Issue(ctx context.Context, phone string) (verification.Code, error) {
	if !phonePattern.MatchString(phone) {
		return verification.Code{}, ErrInvalidPhone
	}

	value := s.devCode
	if !s.devMode {
		var err error
		value, err = randomCode()
		if err != nil {
			return verification.Code{}, fmt.Errorf("generate code: %w", err)
		}
	}

	code, err := s.store.UpsertCode(ctx, verification.Code{
		PhoneNumber: phone,
		Code:        value,
		ExpiresAt:   s.now().Add(CodeTTL),
	})
	if err != nil {
		return verification.Code{}, err
	}

	if s.devMode {
		s.log.WithField("phone", phone).Debug("issued development code")
		return code, nil
	}

	if s.sender == nil {
		s.log.Warn("no SMS sender configured; code stored but not delivered")
		return code, fmt.Errorf("%w: no sender configured", ErrDelivery)
	}
	if err := s.sender.Send(ctx, phone, value); err != nil {
		s.log.WithError(err).WithField("phone", phone).Warn("SMS delivery failed")
		return code, fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	s.log.WithField("phone", phone).Info("verification code sent")
	return code, nil
}

// Verify checks the submitted code against the stored one and consumes
// it. A code verifies at most once; expiry and mismatch leave it
// untouched.
func (s *Service) Verify(ctx context.Context, phone, submitted string) error {
	if !phonePattern.MatchString(phone) {
		return ErrInvalidPhone
	}
	if !codePattern.MatchString(submitted) {
		return ErrInvalidCodeFormat
	}

	code, err := s.store.GetCode(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrCodeNotFound
	}
	if err != nil {
		return err
	}
	if code.Used {
		return ErrCodeNotFound
	}
	if code.Expired(s.now()) {
		return ErrCodeExpired
	}
	if code.Code != submitted {
		return ErrCodeMismatch
	}

	won, err := s.store.ConsumeCode(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrCodeNotFound
	}
	if err != nil {
		return err
	}
	if !won {
		// A concurrent verify got there first.
		return ErrCodeNotFound
	}
	return nil
}

// randomCode returns a uniformly random 6-digit code.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
