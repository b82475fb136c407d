package reward

import "time"

// Stats summarizes a user's referral progress against their personal
// invite code. It is derived from the invite code's use counters and
// the user's claim record rather than stored as its own row, so it can
// never drift from the underlying counts.
type Stats struct {
	UserID        string
	InviteCode    string
	CurrentUses   int
	MaxUses       int
	RemainingUses int
	Eligible      bool
	Claimed       bool
}

// Claim records that a user has taken their free-drink reward. A user
// has at most one claim, ever.
type Claim struct {
	UserID    string
	ClaimedAt time.Time
}
