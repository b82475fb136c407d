package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/omnilaze/universal/internal/app/domain/invite"
	"github.com/omnilaze/universal/internal/app/storage/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	if _, err := store.CreateInviteCode(context.Background(), invite.Code{
		Code:    "WELCOME",
		Type:    invite.TypeSystem,
		MaxUses: 1000,
	}); err != nil {
		t.Fatalf("seed invite code: %v", err)
	}
	return New(store, store, 2, nil), store
}

func TestRedeemInviteRegistersUser(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	u, err := svc.RedeemInvite(ctx, "13800000000", "WELCOME")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if u.Sequence != 1 {
		t.Fatalf("expected first sequence 1, got %d", u.Sequence)
	}
	if len(u.PersonalInviteCode) != 6 {
		t.Fatalf("expected 6-char personal code, got %q", u.PersonalInviteCode)
	}

	// The personal code is stored and bounded.
	pc, err := store.GetInviteCode(ctx, u.PersonalInviteCode)
	if err != nil {
		t.Fatalf("get personal code: %v", err)
	}
	if pc.Type != invite.TypeUser || pc.OwnerUserID != u.ID || pc.MaxUses != 2 {
		t.Fatalf("unexpected personal code record: %+v", pc)
	}

	got, err := svc.Lookup(ctx, "13800000000")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("lookup returned %s, want %s", got.ID, u.ID)
	}
}

func TestRedeemInviteRejectsBadInput(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.RedeemInvite(ctx, "nope", "WELCOME"); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if _, err := svc.RedeemInvite(ctx, "13800000000", ""); !errors.Is(err, ErrInviteCodeRequired) {
		t.Fatalf("expected ErrInviteCodeRequired, got %v", err)
	}
	if _, err := svc.RedeemInvite(ctx, "13800000000", "UNKNOWN"); !errors.Is(err, ErrInvalidInviteCode) {
		t.Fatalf("expected ErrInvalidInviteCode, got %v", err)
	}
}

func TestRedeemExhaustedInviteCode(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if _, err := store.CreateInviteCode(ctx, invite.Code{Code: "ONE", Type: invite.TypeSystem, MaxUses: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := New(store, store, 2, nil)

	if _, err := svc.RedeemInvite(ctx, "13800000001", "ONE"); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := svc.RedeemInvite(ctx, "13800000002", "ONE"); !errors.Is(err, ErrInvalidInviteCode) {
		t.Fatalf("expected ErrInvalidInviteCode for spent code, got %v", err)
	}
}

func TestRedeemPersonalCodeRecordsInvitation(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	inviter, err := svc.RedeemInvite(ctx, "13800000001", "WELCOME")
	if err != nil {
		t.Fatalf("register inviter: %v", err)
	}
	invitee, err := svc.RedeemInvite(ctx, "13800000002", inviter.PersonalInviteCode)
	if err != nil {
		t.Fatalf("register invitee: %v", err)
	}

	invs, err := store.ListInvitations(ctx, inviter.ID)
	if err != nil {
		t.Fatalf("list invitations: %v", err)
	}
	if len(invs) != 1 {
		t.Fatalf("expected 1 invitation, got %d", len(invs))
	}
	if invs[0].InviteeUserID != invitee.ID || invs[0].InviteePhone != "13800000002" {
		t.Fatalf("unexpected invitation: %+v", invs[0])
	}
}

func TestConcurrentRedemptionsGetDistinctSequences(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := svc.RedeemInvite(ctx, fmt.Sprintf("138%08d", i), "WELCOME")
			if err != nil {
				t.Errorf("redeem %d: %v", i, err)
				return
			}
			seqs <- u.Sequence
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		if seen[seq] {
			t.Fatalf("duplicate sequence %d", seq)
		}
		seen[seq] = true
	}
	for want := int64(1); want <= n; want++ {
		if !seen[want] {
			t.Fatalf("missing sequence %d", want)
		}
	}
}

func TestLookupUnknownPhone(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Lookup(context.Background(), "13800000000"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
