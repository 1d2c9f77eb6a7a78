package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter thresholds. A zero Max disables that limit.
type Config struct {
	MaxLoginFailures int
	LoginWindow      time.Duration
	EnableIPThrottle bool
	MaxCodeSends     int
	CodeSendWindow   time.Duration
}

// Limiter counts failed logins and code sends in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, config: cfg}
}

// CheckLogin reports ErrRateLimited when email or ip already spent the failure budget.
// It does not count the current attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if l == nil || l.config.MaxLoginFailures <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, loginEmailKey(email), l.config.MaxLoginFailures); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginFailures)
	}
	return nil
}

// RecordLoginFailure counts one failed attempt for email and ip.
func (l *Limiter) RecordLoginFailure(ctx context.Context, email, ip string) error {
	if l == nil || l.config.MaxLoginFailures <= 0 {
		return nil
	}
	if _, err := l.incrementWithTTL(ctx, loginEmailKey(email), l.config.LoginWindow); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginWindow); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the per-email counter after a successful login.
// The IP counter is left to expire since other accounts may share the address.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	if l == nil || l.config.MaxLoginFailures <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, loginEmailKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// AllowCodeSend counts one code send for email and reports ErrRateLimited past the budget.
func (l *Limiter) AllowCodeSend(ctx context.Context, email string) error {
	if l == nil || l.config.MaxCodeSends <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, codeSendKey(email), l.config.CodeSendWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxCodeSends) {
		return ErrRateLimited
	}
	return nil
}

// LoginFailures returns the current failure count for email.
func (l *Limiter) LoginFailures(ctx context.Context, email string) (int, error) {
	if l == nil {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, loginEmailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(max(count, 0)), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, limit int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 && ttl > 0 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func loginEmailKey(email string) string { return "srl:e:" + email }
func loginIPKey(ip string) string       { return "srl:i:" + ip }
func codeSendKey(email string) string   { return "src:" + email }
