package internaldefs

import (
	siteAuth "github.com/MrEthical07/siteAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   siteAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   siteAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: siteAuth.MetricLoginSuccess, Name: "siteauth_login_success_total", Help: "Logins that issued tokens."},
	{ID: siteAuth.MetricLoginTrusted, Name: "siteauth_login_trusted_device_total", Help: "Logins that skipped the second factor via a trusted device."},
	{ID: siteAuth.MetricLoginFailure, Name: "siteauth_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: siteAuth.MetricLoginInactive, Name: "siteauth_login_inactive_total", Help: "Logins rejected because the account is not active."},
	{ID: siteAuth.MetricLoginRateLimited, Name: "siteauth_login_rate_limited_total", Help: "Logins rejected by throttling."},
	{ID: siteAuth.MetricSecondFactorIssued, Name: "siteauth_second_factor_issued_total", Help: "One-time codes issued."},
	{ID: siteAuth.MetricSecondFactorSuccess, Name: "siteauth_second_factor_success_total", Help: "One-time codes redeemed."},
	{ID: siteAuth.MetricSecondFactorFailure, Name: "siteauth_second_factor_failure_total", Help: "One-time code verifications rejected."},
	{ID: siteAuth.MetricSecondFactorExpired, Name: "siteauth_second_factor_expired_total", Help: "One-time codes presented after expiry."},
	{ID: siteAuth.MetricEmailSendFailure, Name: "siteauth_email_send_failure_total", Help: "Outbound emails that failed to send."},
	{ID: siteAuth.MetricDeviceRemembered, Name: "siteauth_device_remembered_total", Help: "Devices registered as trusted."},
	{ID: siteAuth.MetricDeviceRejected, Name: "siteauth_device_rejected_total", Help: "Trust tokens presented but not honoured."},
	{ID: siteAuth.MetricDeviceUAMismatch, Name: "siteauth_device_ua_mismatch_total", Help: "Trust tokens rejected for a different browser."},
	{ID: siteAuth.MetricDeviceIPMismatch, Name: "siteauth_device_ip_mismatch_total", Help: "Trust tokens rejected for a different network."},
	{ID: siteAuth.MetricDevicesRevoked, Name: "siteauth_devices_revoked_total", Help: "Trusted devices revoked."},
	{ID: siteAuth.MetricRefreshSuccess, Name: "siteauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: siteAuth.MetricRefreshFailure, Name: "siteauth_refresh_failure_total", Help: "Refresh attempts with an invalid token."},
	{ID: siteAuth.MetricRefreshRevoked, Name: "siteauth_refresh_revoked_total", Help: "Refresh attempts with a revoked token."},
	{ID: siteAuth.MetricRefreshReuseDetected, Name: "siteauth_refresh_reuse_detected_total", Help: "Superseded refresh tokens presented again."},
	{ID: siteAuth.MetricLogout, Name: "siteauth_logout_total", Help: "Logout requests."},
	{ID: siteAuth.MetricSessionsRevoked, Name: "siteauth_sessions_revoked_total", Help: "Account-wide session revocations."},
	{ID: siteAuth.MetricAccountCreated, Name: "siteauth_account_created_total", Help: "Accounts created."},
	{ID: siteAuth.MetricAccountActivated, Name: "siteauth_account_activated_total", Help: "Accounts activated."},
	{ID: siteAuth.MetricPasswordChanged, Name: "siteauth_password_changed_total", Help: "Password changes."},
	{ID: siteAuth.MetricPasswordResetRequest, Name: "siteauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: siteAuth.MetricPasswordResetConfirm, Name: "siteauth_password_reset_confirm_total", Help: "Completed password resets."},
	{ID: siteAuth.MetricPasswordRehashed, Name: "siteauth_password_rehashed_total", Help: "Hashes upgraded to current parameters at login."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: siteAuth.MetricValidateLatency, Name: "siteauth_validate_latency_seconds", Help: "Access token validation latency."},
}

const (
	AuditDroppedName = "siteauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
	AuditFailedName  = "siteauth_audit_failed_total"
	AuditFailedHelp  = "Audit events the sink failed to record."
)

// HistogramBounds are the finite bucket upper bounds in seconds. A final
// +Inf bucket follows them.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
