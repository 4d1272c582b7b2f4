package internaldefs

import (
	authority "github.com/Samson23-ux/authority"
)

// CounterDef names one core counter for exporters.
type CounterDef struct {
	ID   authority.MetricID
	Name string
	Help string
}

// HistogramDef names one core histogram for exporters.
type HistogramDef struct {
	ID   authority.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: authority.MetricSignInSuccess, Name: "authority_signin_success_total", Help: "Successful sign-in attempts."},
	{ID: authority.MetricSignInFailure, Name: "authority_signin_failure_total", Help: "Failed sign-in attempts."},
	{ID: authority.MetricSignInRateLimited, Name: "authority_signin_rate_limited_total", Help: "Rate-limited sign-in attempts."},
	{ID: authority.MetricRefreshSuccess, Name: "authority_refresh_success_total", Help: "Successful credential rotations."},
	{ID: authority.MetricRefreshFailure, Name: "authority_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: authority.MetricRefreshReuseDetected, Name: "authority_refresh_reuse_detected_total", Help: "Refresh attempts against consumed credentials."},
	{ID: authority.MetricRefreshRateLimited, Name: "authority_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: authority.MetricCredentialIssued, Name: "authority_credential_issued_total", Help: "Refresh credentials issued."},
	{ID: authority.MetricCredentialRevoked, Name: "authority_credential_revoked_total", Help: "Refresh credentials revoked."},
	{ID: authority.MetricSignOut, Name: "authority_signout_total", Help: "Single-credential sign-out operations."},
	{ID: authority.MetricSignOutAll, Name: "authority_signout_all_total", Help: "Sign-out-everywhere operations."},
	{ID: authority.MetricPasswordChangeSuccess, Name: "authority_password_change_success_total", Help: "Successful password changes."},
	{ID: authority.MetricPasswordChangeInvalidOld, Name: "authority_password_change_invalid_old_total", Help: "Password change attempts with a wrong current password."},
	{ID: authority.MetricValidateSuccess, Name: "authority_validate_success_total", Help: "Successful token validations."},
	{ID: authority.MetricValidateFailure, Name: "authority_validate_failure_total", Help: "Failed token validations."},
	{ID: authority.MetricReaperPurged, Name: "authority_reaper_purged_total", Help: "Records deleted by the reaper."},
}

// HistogramDefs lists every exported histogram in exposition order.
var HistogramDefs = []HistogramDef{
	{ID: authority.MetricValidateLatency, Name: "authority_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds holds the upper bounds of the core latency buckets as
// Prometheus le label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds the same bounds in attribute-safe form for
// exporters that cannot use label syntax.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies a snapshot slice into the fixed bucket array,
// tolerating short or missing slices.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// Prometheus histograms expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
