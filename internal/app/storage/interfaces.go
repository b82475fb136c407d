package storage

import (
	"context"
	"time"

	"github.com/omnilaze/universal/internal/app/domain/invite"
	"github.com/omnilaze/universal/internal/app/domain/order"
	"github.com/omnilaze/universal/internal/app/domain/preference"
	"github.com/omnilaze/universal/internal/app/domain/reward"
	"github.com/omnilaze/universal/internal/app/domain/user"
	"github.com/omnilaze/universal/internal/app/domain/verification"
)

// VerificationStore persists verification codes, one live record per
// phone number.
type VerificationStore interface {
	// UpsertCode stores a fresh code for the phone, replacing any
	// previous record.
	UpsertCode(ctx context.Context, code verification.Code) (verification.Code, error)
	GetCode(ctx context.Context, phone string) (verification.Code, error)
	// ConsumeCode atomically marks the phone's code used. It returns
	// true only for the caller that flipped the flag; a second call
	// returns false. ErrNotFound if no record exists.
	ConsumeCode(ctx context.Context, phone string) (bool, error)
	// DeleteExpiredCodes removes codes whose expiry is before the given
	// time and reports how many were removed.
	DeleteExpiredCodes(ctx context.Context, before time.Time) (int, error)
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser stores a new user, assigning the next value of the
	// global registration sequence. ErrAlreadyExists on a duplicate
	// phone number.
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByPhone(ctx context.Context, phone string) (user.User, error)
}

// InviteStore persists invite codes and invitation records.
type InviteStore interface {
	CreateInviteCode(ctx context.Context, c invite.Code) (invite.Code, error)
	GetInviteCode(ctx context.Context, code string) (invite.Code, error)
	// RedeemInviteCode atomically increments the code's use count if it
	// exists and still has uses left, recording who redeemed it.
	// ErrNotFound for an unknown code, ErrExhausted for a spent one.
	RedeemInviteCode(ctx context.Context, code, redeemerPhone string) (invite.Code, error)
	CreateInvitation(ctx context.Context, inv invite.Invitation) (invite.Invitation, error)
	ListInvitations(ctx context.Context, inviterUserID string) ([]invite.Invitation, error)
}

// OrderStore persists orders. Deleted orders stay on disk but are
// invisible to every read.
type OrderStore interface {
	// CreateOrder stores a new order, assigning its ID, the user's next
	// order sequence and a day-scoped order number. Both counters are
	// atomic: concurrent creates never share a value.
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id string) (order.Order, error)
	UpdateOrder(ctx context.Context, o order.Order) (order.Order, error)
	// ListOrders returns the user's live orders, most recent first.
	ListOrders(ctx context.Context, userID string) ([]order.Order, error)
}

// RewardStore persists reward claims and the shared free-drink pool.
type RewardStore interface {
	GetClaim(ctx context.Context, userID string) (reward.Claim, error)
	// ClaimReward records the user's claim and decrements the pool as
	// one atomic step; on any failure neither change is visible. It
	// returns the pool size after the decrement. ErrAlreadyExists if
	// the user has claimed before, ErrExhausted if the pool is empty.
	ClaimReward(ctx context.Context, userID string) (int, error)
	PoolRemaining(ctx context.Context) (int, error)
	// SeedPool sets the pool size if it has never been set. Calling it
	// against an initialized pool is a no-op.
	SeedPool(ctx context.Context, remaining int) error
}

// PreferenceStore persists saved order-form defaults, one record per
// user.
type PreferenceStore interface {
	UpsertPreferences(ctx context.Context, p preference.Preferences) (preference.Preferences, error)
	GetPreferences(ctx context.Context, userID string) (preference.Preferences, error)
	DeletePreferences(ctx context.Context, userID string) error
}
