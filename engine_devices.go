package siteAuth

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/MrEthical07/siteAuth/internal/audit"
)

// ListTrustedDevices returns the live trusted devices of accountID. The entry
// matching currentTrustToken, the caller's own trust cookie, is flagged Current.
// Token hashes never leave the engine.
func (e *Engine) ListTrustedDevices(ctx context.Context, accountID, currentTrustToken string) ([]DeviceInfo, error) {
	if e == nil || e.devices == nil {
		return nil, ErrEngineNotReady
	}
	if accountID == "" {
		return nil, ErrUnauthorized
	}

	devices, err := e.devices.List(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	current := e.devices.Current(ctx, accountID, currentTrustToken)

	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		out = append(out, DeviceInfo{
			ID:         d.ID,
			Label:      d.Label,
			CreatedAt:  d.CreatedAt,
			LastSeenAt: d.LastSeenAt,
			ExpiresAt:  d.ExpiresAt,
			Current:    current != "" && d.ID == current,
		})
	}
	return out, nil
}

// RevokeTrustedDevices deletes all, or the listed, trusted devices of
// accountID. ClearTrustCookie is set when the caller's own device was among
// them.
func (e *Engine) RevokeTrustedDevices(ctx context.Context, accountID string, req RevokeDevicesRequest) (*RevokeDevicesResult, error) {
	if e == nil || e.devices == nil {
		return nil, ErrEngineNotReady
	}
	if accountID == "" {
		return nil, ErrUnauthorized
	}
	if !req.All && len(req.IDs) == 0 {
		return nil, ErrInvalidInput
	}

	current := e.devices.Current(ctx, accountID, req.CurrentTrustToken)

	var (
		revoked int
		err     error
	)
	if req.All {
		revoked, err = e.devices.RevokeAll(ctx, accountID)
	} else {
		revoked, err = e.devices.Revoke(ctx, accountID, req.IDs)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	result := &RevokeDevicesResult{
		Revoked:          revoked,
		ClearTrustCookie: current != "" && (req.All || slices.Contains(req.IDs, current)),
	}

	e.metricInc(MetricDevicesRevoked)
	actorRole := ""
	if id, ok := IdentityFromContext(ctx); ok {
		actorRole = id.Role
	}
	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindDevicesRevoked,
		success:     true,
		actorID:     accountID,
		actorRole:   actorRole,
		description: "trusted devices revoked",
		metadata: func() map[string]string {
			return map[string]string{
				"all":     strconv.FormatBool(req.All),
				"revoked": strconv.Itoa(revoked),
			}
		},
	})
	return result, nil
}
