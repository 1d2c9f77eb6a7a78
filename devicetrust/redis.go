package devicetrust

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const deviceRecordVersion1 = 1

// RedisStore keeps one key per (user, token hash) with a TTL equal to the remaining
// trust window, plus a per-user set indexing the token hashes.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store under prefix (default "std").
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "std"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(userID, tokenHash string) string {
	return s.prefix + ":d:" + userID + ":" + tokenHash
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func (s *RedisStore) Save(ctx context.Context, device *Device) error {
	data, err := encodeDevice(device)
	if err != nil {
		return err
	}
	ttl := time.Until(device.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(device.UserID, device.TokenHash), data, ttl)
		pipe.SAdd(ctx, s.userKey(device.UserID), device.TokenHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, userID, tokenHash string) (*Device, error) {
	data, err := s.redis.Get(ctx, s.key(userID, tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	d, err := decodeDevice(data)
	if err != nil {
		_ = s.redis.Del(ctx, s.key(userID, tokenHash)).Err()
		return nil, ErrNotFound
	}
	d.UserID = userID
	d.TokenHash = tokenHash
	return d, nil
}

func (s *RedisStore) Touch(ctx context.Context, userID, tokenHash string, lastSeen, expiresAt time.Time) error {
	d, err := s.Find(ctx, userID, tokenHash)
	if err != nil {
		return err
	}
	d.LastSeenAt = lastSeen
	if expiresAt.After(d.ExpiresAt) {
		d.ExpiresAt = expiresAt
	}

	data, err := encodeDevice(d)
	if err != nil {
		return err
	}
	ttl := time.Until(d.ExpiresAt)
	if ttl <= 0 {
		return ErrNotFound
	}

	// XX: a device revoked between Find and here stays revoked.
	ok, err := s.redis.SetXX(ctx, s.key(userID, tokenHash), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, userID string) ([]Device, error) {
	hashes, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Device{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(hashes) == 0 {
		return []Device{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(hashes))
	for i, h := range hashes {
		cmds[i] = pipe.Get(ctx, s.key(userID, h))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	devices := make([]Device, 0, len(hashes))
	stale := make([]interface{}, 0)
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, hashes[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
		}
		d, decErr := decodeDevice(data)
		if decErr != nil {
			stale = append(stale, hashes[i])
			continue
		}
		d.UserID = userID
		d.TokenHash = hashes[i]
		devices = append(devices, *d)
	}

	if len(stale) > 0 {
		_ = s.redis.SRem(ctx, s.userKey(userID), stale...).Err()
	}
	sortDevices(devices)
	return devices, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	devices, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	hashes := make([]string, 0, len(ids))
	for _, d := range devices {
		if _, ok := want[d.ID]; ok {
			hashes = append(hashes, d.TokenHash)
		}
	}
	return s.deleteHashes(ctx, userID, hashes, false)
}

func (s *RedisStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	hashes, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.deleteHashes(ctx, userID, hashes, true)
}

func (s *RedisStore) deleteHashes(ctx context.Context, userID string, hashes []string, dropIndex bool) (int, error) {
	if len(hashes) == 0 && !dropIndex {
		return 0, nil
	}

	keys := make([]string, len(hashes))
	members := make([]interface{}, len(hashes))
	for i, h := range hashes {
		keys[i] = s.key(userID, h)
		members[i] = h
	}

	var delCmd *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			delCmd = pipe.Del(ctx, keys...)
		}
		if dropIndex {
			pipe.Del(ctx, s.userKey(userID))
		} else {
			pipe.SRem(ctx, s.userKey(userID), members...)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if delCmd == nil {
		return 0, nil
	}
	return int(delCmd.Val()), nil
}

func encodeDevice(d *Device) ([]byte, error) {
	if len(d.ID) > 255 || len(d.Label) > 255 || len(d.UserAgentHash) > 255 || len(d.IPPrefix) > 255 {
		return nil, errors.New("trusted device field length exceeded")
	}

	var buf bytes.Buffer
	buf.WriteByte(deviceRecordVersion1)
	for _, field := range []string{d.ID, d.Label, d.UserAgentHash, d.IPPrefix} {
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}
	for _, ts := range []time.Time{d.CreatedAt, d.LastSeenAt, d.ExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts.UnixMilli()); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeDevice(data []byte) (*Device, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != deviceRecordVersion1 {
		return nil, errors.New("unsupported trusted device record version")
	}

	fields := make([]string, 4)
	for i := range fields {
		n, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		fields[i] = string(b)
	}

	stamps := make([]int64, 3)
	for i := range stamps {
		if err := binary.Read(r, binary.BigEndian, &stamps[i]); err != nil {
			return nil, err
		}
	}
	if r.Len() != 0 {
		return nil, errors.New("trailing bytes in trusted device record")
	}

	return &Device{
		ID:            fields[0],
		Label:         fields[1],
		UserAgentHash: fields[2],
		IPPrefix:      fields[3],
		CreatedAt:     time.UnixMilli(stamps[0]).UTC(),
		LastSeenAt:    time.UnixMilli(stamps[1]).UTC(),
		ExpiresAt:     time.UnixMilli(stamps[2]).UTC(),
	}, nil
}
