package invite

import "time"

// Code types distinguish startup-seeded codes from codes minted for
// individual users.
const (
	TypeSystem = "system"
	TypeUser   = "user"
)

// Code is a redeemable invite code with a bounded number of uses.
// OwnerUserID is set only for user-minted codes.
type Code struct {
	Code        string
	Type        string
	MaxUses     int
	CurrentUses int
	OwnerUserID string
	LastUsedBy  string
	LastUsedAt  time.Time
	CreatedAt   time.Time
}

// Exhausted reports whether the code has no uses left.
func (c Code) Exhausted() bool {
	return c.CurrentUses >= c.MaxUses
}

// RemainingUses returns how many redemptions are left.
func (c Code) RemainingUses() int {
	if r := c.MaxUses - c.CurrentUses; r > 0 {
		return r
	}
	return 0
}

// Invitation records that an existing user's personal code was redeemed
// by a new user.
type Invitation struct {
	ID            string
	InviterUserID string
	InviteeUserID string
	InviteCode    string
	InviteePhone  string
	InvitedAt     time.Time
}
