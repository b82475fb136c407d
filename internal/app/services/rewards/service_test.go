package rewards

import (
	"context"
	"errors"
	"testing"

	"github.com/omnilaze/universal/internal/app/domain/invite"
	"github.com/omnilaze/universal/internal/app/domain/user"
	"github.com/omnilaze/universal/internal/app/storage/memory"
)

func newService(t *testing.T, poolSize int) (*Service, *memory.Store, user.User) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	if err := store.SeedPool(ctx, poolSize); err != nil {
		t.Fatalf("seed pool: %v", err)
	}
	u, err := store.CreateUser(ctx, user.User{PhoneNumber: "13800000001", PersonalInviteCode: "AAAAAA"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateInviteCode(ctx, invite.Code{
		Code:        "AAAAAA",
		Type:        invite.TypeUser,
		MaxUses:     2,
		OwnerUserID: u.ID,
	}); err != nil {
		t.Fatalf("create invite code: %v", err)
	}
	return New(store, store, store, 2, nil), store, u
}

func redeemTimes(t *testing.T, store *memory.Store, code string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := store.RedeemInviteCode(context.Background(), code, "13900000000"); err != nil {
			t.Fatalf("redeem %d: %v", i, err)
		}
	}
}

func TestStatsFirstLookup(t *testing.T) {
	svc, _, u := newService(t, 100)

	stats, err := svc.Stats(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CurrentUses != 0 || stats.MaxUses != 2 || stats.RemainingUses != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Eligible || stats.Claimed {
		t.Fatalf("fresh user must not be eligible or claimed: %+v", stats)
	}
}

func TestStatsUnknownUser(t *testing.T) {
	svc, _, _ := newService(t, 100)
	if _, err := svc.Stats(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestStatsTracksRedemptions(t *testing.T) {
	svc, store, u := newService(t, 100)
	redeemTimes(t, store, "AAAAAA", 2)

	stats, err := svc.Stats(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CurrentUses != 2 || stats.RemainingUses != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if !stats.Eligible {
		t.Fatal("expected eligibility after max uses reached")
	}
}

func TestClaimFlow(t *testing.T) {
	svc, store, u := newService(t, 100)
	ctx := context.Background()

	// Not yet eligible.
	if _, err := svc.Claim(ctx, u.ID); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}

	redeemTimes(t, store, "AAAAAA", 2)

	remaining, err := svc.Claim(ctx, u.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if remaining != 99 {
		t.Fatalf("expected 99 remaining, got %d", remaining)
	}

	// One claim per user, ever.
	if _, err := svc.Claim(ctx, u.ID); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}

	stats, err := svc.Stats(ctx, u.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !stats.Claimed {
		t.Fatal("expected claimed flag in stats")
	}
}

func TestClaimPoolExhausted(t *testing.T) {
	svc, store, u := newService(t, 0)
	redeemTimes(t, store, "AAAAAA", 2)

	if _, err := svc.Claim(context.Background(), u.ID); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
	// A failed claim leaves no per-user record behind.
	stats, err := svc.Stats(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Claimed {
		t.Fatal("failed claim must not mark the user claimed")
	}
}

func TestProgressMasksPhones(t *testing.T) {
	svc, store, u := newService(t, 100)
	ctx := context.Background()

	if _, err := store.CreateInvitation(ctx, invite.Invitation{
		InviterUserID: u.ID,
		InviteeUserID: "u2",
		InviteCode:    "AAAAAA",
		InviteePhone:  "13812340000",
	}); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	views, err := svc.Progress(ctx, u.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 invitation, got %d", len(views))
	}
	if views[0].MaskedPhone != "138****0000" {
		t.Fatalf("expected masked phone, got %q", views[0].MaskedPhone)
	}
}

func TestMaskPhone(t *testing.T) {
	if got := MaskPhone("13800000000"); got != "138****0000" {
		t.Fatalf("unexpected mask: %q", got)
	}
	// Non-standard shapes pass through untouched.
	if got := MaskPhone("555-1234"); got != "555-1234" {
		t.Fatalf("unexpected mask for short number: %q", got)
	}
}
