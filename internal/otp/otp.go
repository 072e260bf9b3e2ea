package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL is the lifetime of an issued code.
const TTL = 10 * time.Minute

var (
	// ErrUnavailable indicates the code store is unreachable.
	ErrUnavailable = errors.New("otp backend unavailable")
)

// verifyLua atomically consumes a code.
// KEYS[1] = code key
// ARGV[1] = submitted code
//
// Returns 1 and deletes the key on an exact match, 0 otherwise. Absent and
// mismatched codes are indistinguishable to the caller.
var verifyLua = redis.NewScript(`
local stored = redis.call('GET', KEYS[1])
if not stored then
  return 0
end
if stored ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// Service generates, stores, and single-use-verifies one-time codes.
type Service struct {
	redis redis.UniversalClient
}

// NewService creates an OTP [Service] backed by the given Redis client.
func NewService(redisClient redis.UniversalClient) *Service {
	return &Service{redis: redisClient}
}

// Generate returns a 6-digit numeric code drawn uniformly from
// 100000–999999.
func (s *Service) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("otp generate: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Store persists the code for the email with the fixed TTL, overwriting any
// prior live code. Newest always wins.
func (s *Service) Store(ctx context.Context, email, code string) error {
	if err := s.redis.Set(ctx, codeKey(email), code, TTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Verify consumes the stored code when it exactly matches the submitted
// one. A match deletes the code immediately, before any dependent action
// runs. Mismatch, absence, and expiry all report false.
func (s *Service) Verify(ctx context.Context, email, code string) (bool, error) {
	result, err := verifyLua.Run(ctx, s.redis, []string{codeKey(email)}, code).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result == 1, nil
}

func codeKey(email string) string {
	return "otp:" + strings.ToLower(email)
}
