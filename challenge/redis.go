package challenge

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordVersion1 = 1
	recordSize     = 1 + 2 + 8 + 32

	consumeNotFound = 0
	consumeExpired  = 1
	consumeMismatch = 2
	consumeOK       = 3
	consumeExceeded = 4
)

// consumeChallengeLua atomically performs GET→validate→DEL on a challenge record.
// KEYS[1] = record key
// ARGV[1] = provided code hash (32 bytes)
// ARGV[2] = max attempts (0 = unlimited)
// ARGV[3] = current unix time in milliseconds
//
// Record layout: version(1) attempts(2 BE) expiresAtMs(8 BE) hash(32).
var consumeChallengeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return 0
end

local provided = ARGV[1]
local maxAttempts = tonumber(ARGV[2])
local nowMs = tonumber(ARGV[3])

if string.len(data) ~= 43 or string.byte(data, 1) ~= 1 then
  redis.call('DEL', KEYS[1])
  return 0
end

local attempts = string.byte(data, 2) * 256 + string.byte(data, 3)
local expiresAt = 0
for i = 4, 11 do
  expiresAt = expiresAt * 256 + string.byte(data, i)
end

if nowMs >= expiresAt then
  redis.call('DEL', KEYS[1])
  return 1
end

if string.sub(data, 12, 43) ~= provided then
  attempts = attempts + 1
  if maxAttempts > 0 and attempts >= maxAttempts then
    redis.call('DEL', KEYS[1])
    return 4
  end
  if attempts > 65535 then
    attempts = 65535
  end
  local ttl = redis.call('PTTL', KEYS[1])
  if ttl <= 0 then
    redis.call('DEL', KEYS[1])
    return 1
  end
  local updated = string.sub(data, 1, 1) .. string.char(math.floor(attempts / 256), attempts % 256) .. string.sub(data, 4)
  redis.call('SET', KEYS[1], updated, 'PX', ttl)
  return 2
end

redis.call('DEL', KEYS[1])
return 3
`)

// replaceChallengeLua overwrites a record only while it is unexpired.
// KEYS[1] = record key
// ARGV[1] = new record
// ARGV[2] = TTL in milliseconds
// ARGV[3] = current unix time in milliseconds
// Returns 1 when replaced, 0 otherwise.
var replaceChallengeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data or string.len(data) ~= 43 or string.byte(data, 1) ~= 1 then
  return 0
end

local expiresAt = 0
for i = 4, 11 do
  expiresAt = expiresAt * 256 + string.byte(data, i)
end
if tonumber(ARGV[3]) >= expiresAt then
  return 0
end

redis.call('SET', KEYS[1], ARGV[1], 'PX', tonumber(ARGV[2]), 'XX')
return 1
`)

// RedisStore keeps challenges in Redis with a TTL, so every instance behind a
// load balancer sees the same live code.
type RedisStore struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int
}

// NewRedisStore returns a store under the given key prefix (default "sac").
// maxAttempts <= 0 disables the mismatch cap.
func NewRedisStore(client redis.UniversalClient, prefix string, maxAttempts int) *RedisStore {
	if prefix == "" {
		prefix = "sac"
	}
	return &RedisStore{
		redis:       client,
		prefix:      prefix,
		maxAttempts: maxAttempts,
	}
}

func (s *RedisStore) key(email string) string {
	return s.prefix + ":" + email
}

func (s *RedisStore) Put(ctx context.Context, email, code string, expiresAt time.Time) error {
	ttl := recordTTL(expiresAt)
	if err := s.redis.Set(ctx, s.key(email), encodeRecord(hashCode(email, code), expiresAt), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Replace(ctx context.Context, email, code string, expiresAt, now time.Time) error {
	record := encodeRecord(hashCode(email, code), expiresAt)
	replaced, err := replaceChallengeLua.Run(ctx, s.redis, []string{s.key(email)},
		string(record), recordTTL(expiresAt).Milliseconds(), now.UnixMilli()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if replaced != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, email, code string, now time.Time) error {
	hash := hashCode(email, code)
	status, err := consumeChallengeLua.Run(ctx, s.redis, []string{s.key(email)},
		string(hash[:]), s.maxAttempts, now.UnixMilli()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case consumeOK:
		return nil
	case consumeExpired:
		return ErrExpired
	case consumeMismatch:
		return ErrMismatch
	case consumeExceeded:
		return ErrAttemptsExceeded
	default:
		return ErrNotFound
	}
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// recordTTL keeps the key past expiry so Consume can report ErrExpired.
func recordTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt) + expiredRetention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func encodeRecord(hash [32]byte, expiresAt time.Time) []byte {
	buf := make([]byte, recordSize)
	buf[0] = recordVersion1
	binary.BigEndian.PutUint16(buf[1:3], 0)
	binary.BigEndian.PutUint64(buf[3:11], uint64(expiresAt.UnixMilli()))
	copy(buf[11:], hash[:])
	return buf
}
