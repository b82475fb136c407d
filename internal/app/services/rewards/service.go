// Package rewards tracks referral progress and pays out the
// quota-limited free-drink reward.
package rewards

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/omnilaze/universal/internal/app/domain/reward"
	"github.com/omnilaze/universal/internal/app/storage"
	"github.com/omnilaze/universal/pkg/logger"
)

// Errors callers can branch on.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrAlreadyClaimed = errors.New("reward already claimed")
	ErrNotEligible    = errors.New("not eligible for reward yet")
	ErrPoolExhausted  = errors.New("reward pool exhausted")
)

var maskPattern = regexp.MustCompile(`^(\d{3})\d{4}(\d{4})$`)

// InvitationView is a referral entry with the invitee's phone masked.
type InvitationView struct {
	MaskedPhone string
	InvitedAt   time.Time
}

// Service derives referral stats from invite-code counters and performs
// the one-shot reward claim.
type Service struct {
	users   storage.UserStore
	invites storage.InviteStore
	store   storage.RewardStore
	log     *logger.Logger
	// defaultMaxUses is reported for users whose personal code record
	// is missing.
	defaultMaxUses int
}

// New constructs a rewards service.
func New(users storage.UserStore, invites storage.InviteStore, store storage.RewardStore, defaultMaxUses int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("rewards")
	}
	if defaultMaxUses <= 0 {
		defaultMaxUses = 2
	}
	return &Service{
		users:          users,
		invites:        invites,
		store:          store,
		log:            log,
		defaultMaxUses: defaultMaxUses,
	}
}

// Stats returns the user's referral progress. Stats are derived on the
// fly from the personal invite code's counters and the claim record, so
// a first-time lookup needs no initialization.
func (s *Service) Stats(ctx context.Context, userID string) (reward.Stats, error) {
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return reward.Stats{}, ErrUserNotFound
	}
	if err != nil {
		return reward.Stats{}, err
	}

	stats := reward.Stats{
		UserID:     userID,
		InviteCode: u.PersonalInviteCode,
		MaxUses:    s.defaultMaxUses,
	}
	if u.PersonalInviteCode != "" {
		code, err := s.invites.GetInviteCode(ctx, u.PersonalInviteCode)
		switch {
		case err == nil:
			stats.CurrentUses = code.CurrentUses
			stats.MaxUses = code.MaxUses
		case !errors.Is(err, storage.ErrNotFound):
			return reward.Stats{}, err
		}
	}
	stats.RemainingUses = stats.MaxUses - stats.CurrentUses
	if stats.RemainingUses < 0 {
		stats.RemainingUses = 0
	}
	stats.Eligible = stats.CurrentUses >= stats.MaxUses

	if _, err := s.store.GetClaim(ctx, userID); err == nil {
		stats.Claimed = true
	} else if !errors.Is(err, storage.ErrNotFound) {
		return reward.Stats{}, err
	}

	return stats, nil
}

// Progress lists who redeemed the user's personal code, with phone
// numbers masked.
func (s *Service) Progress(ctx context.Context, userID string) ([]InvitationView, error) {
	if _, err := s.users.GetUser(ctx, userID); errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, err
	}

	invs, err := s.invites.ListInvitations(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]InvitationView, 0, len(invs))
	for _, inv := range invs {
		out = append(out, InvitationView{
			MaskedPhone: MaskPhone(inv.InviteePhone),
			InvitedAt:   inv.InvitedAt,
		})
	}
	return out, nil
}

// Claim pays out the user's free drink. The per-user claim flag and the
// global pool decrement succeed or fail together in the store. Returns
// the pool size after a successful claim.
func (s *Service) Claim(ctx context.Context, userID string) (int, error) {
	stats, err := s.Stats(ctx, userID)
	if err != nil {
		return 0, err
	}
	if stats.Claimed {
		return 0, ErrAlreadyClaimed
	}
	if !stats.Eligible {
		return 0, ErrNotEligible
	}

	remaining, err := s.store.ClaimReward(ctx, userID)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return 0, ErrAlreadyClaimed
	}
	if errors.Is(err, storage.ErrExhausted) {
		return 0, ErrPoolExhausted
	}
	if err != nil {
		return 0, err
	}

	s.log.WithField("user_id", userID).WithField("remaining", remaining).Info("free drink claimed")
	return remaining, nil
}

// Remaining returns the current reward pool size.
func (s *Service) Remaining(ctx context.Context) (int, error) {
	return s.store.PoolRemaining(ctx)
}

// MaskPhone hides the middle four digits of an 11-digit phone number.
// Other shapes are returned unchanged.
func MaskPhone(phone string) string {
	return maskPattern.ReplaceAllString(phone, "$1****$2")
}
