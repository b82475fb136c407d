// Package redis implements the verification-code store on Redis. Codes
// live under a per-phone hash with a TTL matching their expiry, so
// expired codes vanish without a sweeper.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/omnilaze/universal/internal/app/domain/verification"
	"github.com/omnilaze/universal/internal/app/storage"
)

const keyPrefix = "verification:"

// usedRetention keeps a consumed code around briefly so a replayed
// verify attempt gets a clean "already used" answer instead of
// "not found".
const usedRetention = time.Minute

// consumeScript atomically flips the used flag. Returns -1 when the key
// is missing, 0 when already used, 1 when this call won.
var consumeScript = redis.NewScript(`
	local used = redis.call('HGET', KEYS[1], 'used')
	if not used then
		return -1
	end
	if used == '1' then
		return 0
	end
	redis.call('HSET', KEYS[1], 'used', '1')
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	return 1
`)

// CodeStore implements storage.VerificationStore backed by Redis.
type CodeStore struct {
	client *redis.Client
}

var _ storage.VerificationStore = (*CodeStore)(nil)

// NewCodeStore creates a CodeStore using the provided client.
func NewCodeStore(client *redis.Client) *CodeStore {
	return &CodeStore{client: client}
}

func key(phone string) string {
	return keyPrefix + phone
}

func (s *CodeStore) UpsertCode(ctx context.Context, code verification.Code) (verification.Code, error) {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	code.Used = false

	k := key(code.PhoneNumber)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, k, map[string]any{
		"code":       code.Code,
		"expires_at": code.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"used":       "0",
		"created_at": code.CreatedAt.Format(time.RFC3339Nano),
	})
	pipe.PExpireAt(ctx, k, code.ExpiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return verification.Code{}, err
	}
	return code, nil
}

func (s *CodeStore) GetCode(ctx context.Context, phone string) (verification.Code, error) {
	fields, err := s.client.HGetAll(ctx, key(phone)).Result()
	if err != nil {
		return verification.Code{}, err
	}
	if len(fields) == 0 {
		return verification.Code{}, storage.ErrNotFound
	}

	code := verification.Code{
		PhoneNumber: phone,
		Code:        fields["code"],
		Used:        fields["used"] == "1",
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["expires_at"]); err == nil {
		code.ExpiresAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		code.CreatedAt = t
	}
	return code, nil
}

func (s *CodeStore) ConsumeCode(ctx context.Context, phone string) (bool, error) {
	res, err := consumeScript.Run(ctx, s.client,
		[]string{key(phone)},
		strconv.FormatInt(usedRetention.Milliseconds(), 10),
	).Int()
	if err != nil {
		return false, err
	}
	switch res {
	case -1:
		return false, storage.ErrNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

// DeleteExpiredCodes is a no-op: Redis evicts expired keys itself.
func (s *CodeStore) DeleteExpiredCodes(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}
