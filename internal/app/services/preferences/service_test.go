package preferences

import (
	"context"
	"errors"
	"testing"

	"github.com/omnilaze/universal/internal/app/domain/preference"
	"github.com/omnilaze/universal/internal/app/storage/memory"
)

func saved() preference.Preferences {
	return preference.Preferences{
		UserID:           "u1",
		DefaultAddress:   "1 Main St",
		DefaultFoodTypes: []string{"noodles"},
		DefaultBudget:    "30",
	}
}

func TestSaveAndGet(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Save(ctx, preference.Preferences{UserID: "", DefaultAddress: "x"}); !errors.Is(err, ErrUserRequired) {
		t.Fatalf("expected ErrUserRequired, got %v", err)
	}
	if _, err := svc.Save(ctx, preference.Preferences{UserID: "u1"}); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}

	if _, err := svc.Save(ctx, saved()); err != nil {
		t.Fatalf("save: %v", err)
	}
	p, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.DefaultAddress != "1 Main St" || len(p.DefaultFoodTypes) != 1 {
		t.Fatalf("unexpected record: %+v", p)
	}

	if _, err := svc.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMergesPartialChanges(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Save(ctx, saved()); err != nil {
		t.Fatalf("save: %v", err)
	}

	budget := "45"
	p, err := svc.Update(ctx, "u1", preference.Update{DefaultBudget: &budget})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.DefaultBudget != "45" {
		t.Fatalf("expected updated budget, got %q", p.DefaultBudget)
	}
	// Untouched fields survive the partial update.
	if p.DefaultAddress != "1 Main St" || len(p.DefaultFoodTypes) != 1 {
		t.Fatalf("partial update clobbered other fields: %+v", p)
	}

	if _, err := svc.Update(ctx, "ghost", preference.Update{DefaultBudget: &budget}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Save(ctx, saved()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCompleteness(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	// No record yet: incomplete, not an error.
	if _, complete, err := svc.Completeness(ctx, "u1"); err != nil || complete {
		t.Fatalf("expected incomplete without record, got complete=%v err=%v", complete, err)
	}

	p := saved()
	p.DefaultFoodTypes = nil
	if _, err := svc.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, complete, _ := svc.Completeness(ctx, "u1"); complete {
		t.Fatal("missing food types must be incomplete")
	}

	if _, err := svc.Save(ctx, saved()); err != nil {
		t.Fatalf("save full: %v", err)
	}
	if _, complete, _ := svc.Completeness(ctx, "u1"); !complete {
		t.Fatal("expected complete preferences")
	}
}
