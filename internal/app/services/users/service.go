// Package users manages account lookup and invite-gated registration.
package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"

	"github.com/omnilaze/universal/internal/app/domain/invite"
	"github.com/omnilaze/universal/internal/app/domain/user"
	"github.com/omnilaze/universal/internal/app/storage"
	"github.com/omnilaze/universal/pkg/logger"
)

// Errors callers can branch on.
var (
	ErrInvalidPhone       = errors.New("invalid phone number format")
	ErrInviteCodeRequired = errors.New("invite code is required")
	ErrInvalidInviteCode  = errors.New("invite code invalid or exhausted")
	ErrUserNotFound       = errors.New("user not found")
)

var phonePattern = regexp.MustCompile(`^1\d{10}$`)

const (
	personalCodeLength = 6
	personalCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	mintAttempts       = 10
)

// Service looks up users and registers new ones behind the invite gate.
type Service struct {
	users   storage.UserStore
	invites storage.InviteStore
	log     *logger.Logger
	// personalMaxUses bounds the code minted for each new user.
	personalMaxUses int
}

// New constructs a users service. personalMaxUses must be positive.
func New(users storage.UserStore, invites storage.InviteStore, personalMaxUses int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if personalMaxUses <= 0 {
		personalMaxUses = 2
	}
	return &Service{
		users:           users,
		invites:         invites,
		log:             log,
		personalMaxUses: personalMaxUses,
	}
}

// Lookup returns the user registered under the phone number.
// ErrUserNotFound if the phone is unknown.
func (s *Service) Lookup(ctx context.Context, phone string) (user.User, error) {
	if !phonePattern.MatchString(phone) {
		return user.User{}, ErrInvalidPhone
	}
	u, err := s.users.GetUserByPhone(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, ErrUserNotFound
	}
	return u, err
}

// Get returns the user by ID. ErrUserNotFound if unknown.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, ErrUserNotFound
	}
	return u, err
}

// RedeemInvite consumes one use of the given invite code and registers
// a new user for the phone, minting them a personal invite code. When
// the redeemed code belongs to another user an invitation record links
// inviter and invitee.
func (s *Service) RedeemInvite(ctx context.Context, phone, code string) (user.User, error) {
	if !phonePattern.MatchString(phone) {
		return user.User{}, ErrInvalidPhone
	}
	if code == "" {
		return user.User{}, ErrInviteCodeRequired
	}

	redeemed, err := s.invites.RedeemInviteCode(ctx, code, phone)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExhausted) {
		return user.User{}, ErrInvalidInviteCode
	}
	if err != nil {
		return user.User{}, err
	}

	personal, err := s.mintPersonalCode(ctx)
	if err != nil {
		return user.User{}, err
	}

	u, err := s.users.CreateUser(ctx, user.User{
		PhoneNumber:        phone,
		InviteCode:         code,
		PersonalInviteCode: personal,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return user.User{}, fmt.Errorf("user already registered for phone")
	}
	if err != nil {
		return user.User{}, err
	}

	if _, err := s.invites.CreateInviteCode(ctx, invite.Code{
		Code:        personal,
		Type:        invite.TypeUser,
		MaxUses:     s.personalMaxUses,
		OwnerUserID: u.ID,
	}); err != nil {
		// The user exists either way; losing the personal code only
		// degrades their referral stats.
		s.log.WithError(err).WithField("user_id", u.ID).Warn("minting personal invite code failed")
	}

	if redeemed.Type == invite.TypeUser && redeemed.OwnerUserID != "" {
		if _, err := s.invites.CreateInvitation(ctx, invite.Invitation{
			InviterUserID: redeemed.OwnerUserID,
			InviteeUserID: u.ID,
			InviteCode:    code,
			InviteePhone:  phone,
		}); err != nil {
			s.log.WithError(err).WithField("user_id", u.ID).Warn("recording invitation failed")
		}
	}

	s.log.WithField("user_id", u.ID).WithField("sequence", u.Sequence).Info("user registered")
	return u, nil
}

// mintPersonalCode generates a personal invite code not yet present in
// the store. Collisions are retried a bounded number of times.
func (s *Service) mintPersonalCode(ctx context.Context) (string, error) {
	for i := 0; i < mintAttempts; i++ {
		code, err := randomPersonalCode()
		if err != nil {
			return "", err
		}
		_, err = s.invites.GetInviteCode(ctx, code)
		if errors.Is(err, storage.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not mint a unique personal invite code after %d attempts", mintAttempts)
}

func randomPersonalCode() (string, error) {
	buf := make([]byte, personalCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = personalCodeChars[int(b)%len(personalCodeChars)]
	}
	return string(buf), nil
}
