package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/omnilaze/universal/internal/app/domain/verification"
	"github.com/omnilaze/universal/internal/app/storage"
)

func TestCodeStoreIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	defer client.Close()

	store := NewCodeStore(client)
	ctx := context.Background()
	phone := fmt.Sprintf("139%08d", time.Now().UnixNano()%1e8)

	if _, err := store.GetCode(ctx, phone); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown phone, got %v", err)
	}

	issued, err := store.UpsertCode(ctx, verification.Code{
		PhoneNumber: phone,
		Code:        "654321",
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("upsert code: %v", err)
	}

	got, err := store.GetCode(ctx, phone)
	if err != nil {
		t.Fatalf("get code: %v", err)
	}
	if got.Code != issued.Code || got.Used {
		t.Fatalf("unexpected stored code: %+v", got)
	}

	won, err := store.ConsumeCode(ctx, phone)
	if err != nil || !won {
		t.Fatalf("consume code: won=%v err=%v", won, err)
	}
	won, err = store.ConsumeCode(ctx, phone)
	if err != nil || won {
		t.Fatalf("second consume should lose: won=%v err=%v", won, err)
	}

	got, err = store.GetCode(ctx, phone)
	if err != nil {
		t.Fatalf("get consumed code: %v", err)
	}
	if !got.Used {
		t.Fatal("expected code marked used")
	}
}
