package stores

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const linkRecordVersionV1 = 1

var (
	ErrLinkNotFound    = errors.New("link not found or already used")
	ErrLinkUnavailable = errors.New("link store unavailable")
)

// LinkPurpose separates activation tokens from reset tokens so one cannot be redeemed as the other.
type LinkPurpose string

const (
	PurposeActivation LinkPurpose = "activate"
	PurposeReset      LinkPurpose = "reset"
)

// LinkStore issues and redeems single-use account links.
type LinkStore interface {
	// Issue stores a new link for accountID and returns the raw token to embed in a URL.
	Issue(ctx context.Context, purpose LinkPurpose, accountID string, ttl time.Duration) (string, error)
	// Consume atomically redeems raw and returns its account id.
	Consume(ctx context.Context, purpose LinkPurpose, raw string) (string, error)
}

// NewLinkToken returns 32 random bytes, base64url encoded.
func NewLinkToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func linkDigest(purpose LinkPurpose, raw string) string {
	sum := sha256.Sum256([]byte(string(purpose) + "\x00" + raw))
	return hex.EncodeToString(sum[:])
}

type linkRecord struct {
	AccountID string
	ExpiresAt int64 // unix ms
}

func encodeLinkRecord(r linkRecord) ([]byte, error) {
	if len(r.AccountID) > 65535 {
		return nil, errors.New("link record account id too long")
	}
	var buf bytes.Buffer
	buf.WriteByte(linkRecordVersionV1)
	_ = binary.Write(&buf, binary.BigEndian, r.ExpiresAt)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(r.AccountID)))
	buf.WriteString(r.AccountID)
	return buf.Bytes(), nil
}

func decodeLinkRecord(data []byte) (linkRecord, error) {
	reader := bytes.NewReader(data)
	version, err := reader.ReadByte()
	if err != nil {
		return linkRecord{}, err
	}
	if version != linkRecordVersionV1 {
		return linkRecord{}, errors.New("invalid link record version")
	}
	var r linkRecord
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return linkRecord{}, err
	}
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return linkRecord{}, err
	}
	id := make([]byte, n)
	if _, err := io.ReadFull(reader, id); err != nil {
		return linkRecord{}, err
	}
	r.AccountID = string(id)
	return r, nil
}

// RedisLinkStore keeps links as TTL keys and redeems them with GETDEL.
type RedisLinkStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisLinkStore(client redis.UniversalClient, prefix string) *RedisLinkStore {
	if prefix == "" {
		prefix = "sal"
	}
	return &RedisLinkStore{redis: client, prefix: prefix}
}

func (s *RedisLinkStore) key(purpose LinkPurpose, raw string) string {
	return s.prefix + ":" + string(purpose) + ":" + linkDigest(purpose, raw)
}

func (s *RedisLinkStore) Issue(ctx context.Context, purpose LinkPurpose, accountID string, ttl time.Duration) (string, error) {
	raw, err := NewLinkToken()
	if err != nil {
		return "", err
	}
	encoded, err := encodeLinkRecord(linkRecord{AccountID: accountID, ExpiresAt: time.Now().Add(ttl).UnixMilli()})
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, s.key(purpose, raw), encoded, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLinkUnavailable, err)
	}
	return raw, nil
}

func (s *RedisLinkStore) Consume(ctx context.Context, purpose LinkPurpose, raw string) (string, error) {
	if raw == "" {
		return "", ErrLinkNotFound
	}
	data, err := s.redis.GetDel(ctx, s.key(purpose, raw)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrLinkNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrLinkUnavailable, err)
	}
	record, err := decodeLinkRecord(data)
	if err != nil {
		return "", ErrLinkNotFound
	}
	if time.Now().UnixMilli() >= record.ExpiresAt {
		return "", ErrLinkNotFound
	}
	return record.AccountID, nil
}

// MemoryLinkStore is a process-local LinkStore.
type MemoryLinkStore struct {
	mu      sync.Mutex
	records map[string]linkRecord
	now     func() time.Time
}

func NewMemoryLinkStore() *MemoryLinkStore {
	return &MemoryLinkStore{records: make(map[string]linkRecord), now: time.Now}
}

// WithClock replaces the clock used for expiry checks. A nil clock is ignored.
func (s *MemoryLinkStore) WithClock(now func() time.Time) *MemoryLinkStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryLinkStore) Issue(_ context.Context, purpose LinkPurpose, accountID string, ttl time.Duration) (string, error) {
	raw, err := NewLinkToken()
	if err != nil {
		return "", err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.records {
		if now.UnixMilli() >= r.ExpiresAt {
			delete(s.records, k)
		}
	}
	s.records[linkDigest(purpose, raw)] = linkRecord{AccountID: accountID, ExpiresAt: now.Add(ttl).UnixMilli()}
	return raw, nil
}

func (s *MemoryLinkStore) Consume(_ context.Context, purpose LinkPurpose, raw string) (string, error) {
	key := linkDigest(purpose, raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return "", ErrLinkNotFound
	}
	delete(s.records, key)
	if s.now().UnixMilli() >= record.ExpiresAt {
		return "", ErrLinkNotFound
	}
	return record.AccountID, nil
}
