package devicetrust

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotRecognized is matched (via errors.Is) by every [Rejection].
var ErrNotRecognized = errors.New("device not recognized")

// Rejection explains why a presented trust token did not skip the second factor.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return "device not recognized: " + r.Reason }

func (r *Rejection) Is(target error) bool { return target == ErrNotRecognized }

const (
	ReasonMalformed       = "malformed_token"
	ReasonUnknown         = "unknown_device"
	ReasonExpired         = "expired"
	ReasonUserAgentChange = "user_agent_mismatch"
	ReasonNetworkChange   = "ip_prefix_mismatch"
)

// Registry applies the recognition rules on top of a [Store].
type Registry struct {
	store  Store
	window time.Duration
	policy IPPolicy
	now    func() time.Time
}

// NewRegistry builds a registry with a sliding trust window. A nil clock means time.Now.
func NewRegistry(store Store, window time.Duration, policy IPPolicy, now func() time.Time) (*Registry, error) {
	if store == nil {
		return nil, errors.New("devicetrust: nil store")
	}
	if window <= 0 {
		return nil, errors.New("devicetrust: trust window must be > 0")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, window: window, policy: policy, now: now}, nil
}

// Window returns the sliding trust window.
func (r *Registry) Window() time.Duration { return r.window }

// Remember creates a trusted device for userID and returns the raw token for the cookie.
// The raw token is not retained anywhere.
func (r *Registry) Remember(ctx context.Context, userID, userAgent, ip string) (string, *Device, error) {
	raw, err := NewToken()
	if err != nil {
		return "", nil, err
	}
	hash, err := HashToken(raw)
	if err != nil {
		return "", nil, err
	}

	now := r.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", nil, err
	}

	device := &Device{
		ID:            id.String(),
		UserID:        userID,
		TokenHash:     hash,
		UserAgentHash: HashUserAgent(userAgent),
		IPPrefix:      r.policy.Prefix(ip),
		Label:         Label(userAgent),
		CreatedAt:     now,
		LastSeenAt:    now,
		ExpiresAt:     now.Add(r.window),
	}
	if err := r.store.Save(ctx, device); err != nil {
		return "", nil, err
	}
	return raw, device, nil
}

// Recognize checks raw against the stored fingerprint and, on success, slides the
// expiry forward. Failures are *Rejection values unless the store itself failed.
func (r *Registry) Recognize(ctx context.Context, userID, raw, userAgent, ip string) (*Device, error) {
	hash, err := HashToken(raw)
	if err != nil {
		return nil, &Rejection{Reason: ReasonMalformed}
	}

	device, err := r.store.Find(ctx, userID, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &Rejection{Reason: ReasonUnknown}
		}
		return nil, err
	}

	now := r.now().UTC()
	if !device.ExpiresAt.After(now) {
		_, _ = r.store.Delete(ctx, userID, []string{device.ID})
		return nil, &Rejection{Reason: ReasonExpired}
	}
	if subtle.ConstantTimeCompare([]byte(device.UserAgentHash), []byte(HashUserAgent(userAgent))) != 1 {
		return nil, &Rejection{Reason: ReasonUserAgentChange}
	}
	if device.IPPrefix != "" && device.IPPrefix != r.policy.Prefix(ip) {
		return nil, &Rejection{Reason: ReasonNetworkChange}
	}

	expiresAt := now.Add(r.window)
	if err := r.store.Touch(ctx, userID, hash, now, expiresAt); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &Rejection{Reason: ReasonUnknown}
		}
		return nil, err
	}
	device.LastSeenAt = now
	if expiresAt.After(device.ExpiresAt) {
		device.ExpiresAt = expiresAt
	}
	return device, nil
}

// List returns the live devices for userID, most recently used first.
func (r *Registry) List(ctx context.Context, userID string) ([]Device, error) {
	devices, err := r.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := r.now()
	live := devices[:0]
	for _, d := range devices {
		if d.ExpiresAt.After(now) {
			live = append(live, d)
		}
	}
	return live, nil
}

// Revoke deletes the listed devices of userID.
func (r *Registry) Revoke(ctx context.Context, userID string, ids []string) (int, error) {
	return r.store.Delete(ctx, userID, ids)
}

// RevokeAll deletes every device of userID.
func (r *Registry) RevokeAll(ctx context.Context, userID string) (int, error) {
	return r.store.DeleteAll(ctx, userID)
}

// Current returns the ID of the device raw belongs to, or "" when raw is not one of userID's devices.
func (r *Registry) Current(ctx context.Context, userID, raw string) string {
	if raw == "" {
		return ""
	}
	hash, err := HashToken(raw)
	if err != nil {
		return ""
	}
	d, err := r.store.Find(ctx, userID, hash)
	if err != nil {
		return ""
	}
	return d.ID
}
