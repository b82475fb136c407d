package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/omnilaze/universal/internal/app/domain/invite"
	"github.com/omnilaze/universal/internal/app/domain/order"
	"github.com/omnilaze/universal/internal/app/domain/user"
	"github.com/omnilaze/universal/internal/app/domain/verification"
	"github.com/omnilaze/universal/internal/app/storage"
)

func TestConsumeCodeSingleWinner(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.UpsertCode(ctx, verification.Code{
		PhoneNumber: "13800000000",
		Code:        "123456",
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}); err != nil {
		t.Fatalf("upsert code: %v", err)
	}

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.ConsumeCode(ctx, "13800000000")
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestCreateUserAssignsContiguousSequences(t *testing.T) {
	store := New()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := store.CreateUser(ctx, user.User{PhoneNumber: fmt.Sprintf("138%08d", i)})
			if err != nil {
				t.Errorf("create user: %v", err)
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

func TestCreateUserDuplicatePhone(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, user.User{PhoneNumber: "13800000000"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{PhoneNumber: "13800000000"}); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRedeemInviteCodeBounds(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateInviteCode(ctx, invite.Code{Code: "WELCOME", Type: invite.TypeSystem, MaxUses: 2}); err != nil {
		t.Fatalf("create invite code: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := store.RedeemInviteCode(ctx, "WELCOME", "13800000000"); err != nil {
			t.Fatalf("redeem %d: %v", i, err)
		}
	}
	if _, err := store.RedeemInviteCode(ctx, "WELCOME", "13800000000"); !errors.Is(err, storage.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if _, err := store.RedeemInviteCode(ctx, "NOPE", "13800000000"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateOrderAssignsSequencesAndNumbers(t *testing.T) {
	store := New()
	ctx := context.Background()

	day := time.Now().UTC().Format("20060102")
	for i := 1; i <= 3; i++ {
		o, err := store.CreateOrder(ctx, order.Order{UserID: "u1", Status: order.StatusDraft})
		if err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
		if o.UserSequence != int64(i) {
			t.Fatalf("order %d: expected user sequence %d, got %d", i, i, o.UserSequence)
		}
		want := fmt.Sprintf("ORD%s%03d", day, i)
		if o.OrderNumber != want {
			t.Fatalf("order %d: expected number %s, got %s", i, want, o.OrderNumber)
		}
	}

	// A different user starts their own sequence but shares the day counter.
	o, err := store.CreateOrder(ctx, order.Order{UserID: "u2", Status: order.StatusDraft})
	if err != nil {
		t.Fatalf("create order for u2: %v", err)
	}
	if o.UserSequence != 1 {
		t.Fatalf("expected user sequence 1 for u2, got %d", o.UserSequence)
	}
	if want := fmt.Sprintf("ORD%s%03d", day, 4); o.OrderNumber != want {
		t.Fatalf("expected number %s, got %s", want, o.OrderNumber)
	}
}

func TestDeletedOrdersInvisible(t *testing.T) {
	store := New()
	ctx := context.Background()

	o, err := store.CreateOrder(ctx, order.Order{UserID: "u1", Status: order.StatusDraft})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	o.IsDeleted = true
	if _, err := store.UpdateOrder(ctx, o); err != nil {
		t.Fatalf("update order: %v", err)
	}

	if _, err := store.GetOrder(ctx, o.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted order, got %v", err)
	}
	orders, err := store.ListOrders(ctx, "u1")
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no visible orders, got %d", len(orders))
	}
}

func TestClaimRewardAtomicity(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.SeedPool(ctx, 2); err != nil {
		t.Fatalf("seed pool: %v", err)
	}
	// Seeding twice must not reset the pool.
	if err := store.SeedPool(ctx, 100); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	if _, err := store.ClaimReward(ctx, "u1"); err != nil {
		t.Fatalf("claim u1: %v", err)
	}
	if _, err := store.ClaimReward(ctx, "u1"); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for repeat claim, got %v", err)
	}

	remaining, err := store.ClaimReward(ctx, "u2")
	if err != nil {
		t.Fatalf("claim u2: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected empty pool, got %d", remaining)
	}

	if _, err := store.ClaimReward(ctx, "u3"); !errors.Is(err, storage.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if _, err := store.GetClaim(ctx, "u3"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("failed claim must not leave a record, got %v", err)
	}
}
