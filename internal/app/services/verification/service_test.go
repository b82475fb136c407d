package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omnilaze/universal/internal/app/storage/memory"
)

type stubSender struct {
	sent []string
	err  error
}

func (s *stubSender) Send(_ context.Context, phone, code string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, phone+":"+code)
	return nil
}

func TestIssueAndVerify(t *testing.T) {
	store := memory.New()
	sender := &stubSender{}
	svc := New(store, nil, WithSender(sender))
	ctx := context.Background()

	code, err := svc.Issue(ctx, "13800000000")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(code.Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code.Code)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(sender.sent))
	}

	if err := svc.Verify(ctx, "13800000000", code.Code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	// Codes are single use.
	if err := svc.Verify(ctx, "13800000000", code.Code); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound on reuse, got %v", err)
	}
}

func TestIssueRejectsBadPhone(t *testing.T) {
	svc := New(memory.New(), nil)
	for _, phone := range []string{"", "12345", "2380000000000", "13800o00000"} {
		if _, err := svc.Issue(context.Background(), phone); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("phone %q: expected ErrInvalidPhone, got %v", phone, err)
		}
	}
}

func TestVerifyRejectsBadInput(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if err := svc.Verify(ctx, "bad", "123456"); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if err := svc.Verify(ctx, "13800000000", "12x456"); !errors.Is(err, ErrInvalidCodeFormat) {
		t.Fatalf("expected ErrInvalidCodeFormat, got %v", err)
	}
	if err := svc.Verify(ctx, "13800000000", "123456"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound for unknown phone, got %v", err)
	}
}

func TestVerifyMismatchKeepsCodeLive(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, WithDevelopmentMode("100000"))
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "13800000000"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.Verify(ctx, "13800000000", "999999"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
	// The stored code is still usable after a wrong guess.
	if err := svc.Verify(ctx, "13800000000", "100000"); err != nil {
		t.Fatalf("verify after mismatch: %v", err)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	svc := New(store, nil,
		WithDevelopmentMode("100000"),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "13800000000"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(CodeTTL + time.Second)
	if err := svc.Verify(ctx, "13800000000", "100000"); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
}

func TestDevelopmentModeIssuesFixedCode(t *testing.T) {
	sender := &stubSender{}
	svc := New(memory.New(), nil, WithSender(sender), WithDevelopmentMode("100000"))

	code, err := svc.Issue(context.Background(), "13800000000")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code.Code != "100000" {
		t.Fatalf("expected fixed dev code, got %q", code.Code)
	}
	if len(sender.sent) != 0 {
		t.Fatal("development mode must not deliver SMS")
	}
}

func TestDeliveryFailureKeepsCode(t *testing.T) {
	store := memory.New()
	sender := &stubSender{err: errors.New("gateway down")}
	svc := New(store, nil, WithSender(sender))
	ctx := context.Background()

	code, err := svc.Issue(ctx, "13800000000")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	// The stored code is still verifiable despite the failed send.
	if err := svc.Verify(ctx, "13800000000", code.Code); err != nil {
		t.Fatalf("verify after delivery failure: %v", err)
	}
}

func TestIssueReplacesPreviousCode(t *testing.T) {
	store := memory.New()
	sender := &stubSender{}
	svc := New(store, nil, WithSender(sender))
	ctx := context.Background()

	first, err := svc.Issue(ctx, "13800000000")
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := svc.Issue(ctx, "13800000000")
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	if first.Code != second.Code {
		if err := svc.Verify(ctx, "13800000000", first.Code); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("expected stale code to mismatch, got %v", err)
		}
	}
	if err := svc.Verify(ctx, "13800000000", second.Code); err != nil {
		t.Fatalf("verify latest code: %v", err)
	}
}
