package user

import "time"

// User is a phone-verified account. Sequence is a global registration
// counter assigned exactly once at creation; InviteCode is the code the
// user redeemed at signup and PersonalInviteCode the code minted for
// them to share.
type User struct {
	ID                 string
	PhoneNumber        string
	Sequence           int64
	InviteCode         string
	PersonalInviteCode string
	CreatedAt          time.Time
}
