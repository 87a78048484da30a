// Package metrics provides lock-free counters for auth service events.
// Counters are sampled through Snapshot by exporters; the hot path is a
// single atomic add.
package metrics

import "sync/atomic"

type MetricID uint16

const (
	SignUpSuccess MetricID = iota
	SignUpFailure
	SignInSuccess
	SignInFailure
	SignInRateLimited
	SignOut
	SessionVerified
	SessionExpired
	SessionRefreshed
	TwoFactorRequired
	TwoFactorSuccess
	TwoFactorFailure
	VerificationIssued
	VerificationConsumed
	VerificationFailed
	metricIDCount
)

var metricNames = [metricIDCount]string{
	SignUpSuccess:        "auth_sign_up_success_total",
	SignUpFailure:        "auth_sign_up_failure_total",
	SignInSuccess:        "auth_sign_in_success_total",
	SignInFailure:        "auth_sign_in_failure_total",
	SignInRateLimited:    "auth_sign_in_rate_limited_total",
	SignOut:              "auth_sign_out_total",
	SessionVerified:      "auth_session_verified_total",
	SessionExpired:       "auth_session_expired_total",
	SessionRefreshed:     "auth_session_refreshed_total",
	TwoFactorRequired:    "auth_two_factor_required_total",
	TwoFactorSuccess:     "auth_two_factor_success_total",
	TwoFactorFailure:     "auth_two_factor_failure_total",
	VerificationIssued:   "auth_verification_issued_total",
	VerificationConsumed: "auth_verification_consumed_total",
	VerificationFailed:   "auth_verification_failed_total",
}

// Name returns the stable exporter-facing name for a metric.
func (id MetricID) Name() string {
	if id >= metricIDCount {
		return "auth_unknown_total"
	}
	return metricNames[id]
}

// IDs returns every defined metric, in declaration order.
func IDs() []MetricID {
	ids := make([]MetricID, metricIDCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters [metricIDCount]uint64
}

// Get returns the snapshotted value for a metric.
func (s Snapshot) Get(id MetricID) uint64 {
	if id >= metricIDCount {
		return 0
	}
	return s.Counters[id]
}

// Registry holds the counters. The zero value is not usable; call New.
type Registry struct {
	counters [metricIDCount]atomic.Uint64
}

func New() *Registry {
	return &Registry{}
}

// Inc adds one to the counter. Safe on a nil receiver so call sites don't
// need to guard on metrics being configured.
func (r *Registry) Inc(id MetricID) {
	if r == nil || id >= metricIDCount {
		return
	}
	r.counters[id].Add(1)
}

// Snapshot copies all counters.
func (r *Registry) Snapshot() Snapshot {
	var s Snapshot
	if r == nil {
		return s
	}
	for i := range r.counters {
		s.Counters[i] = r.counters[i].Load()
	}
	return s
}
