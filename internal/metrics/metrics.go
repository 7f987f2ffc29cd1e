// Package metrics defines the Prometheus metrics for the auth service.
// All metrics register with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "beatauth"

// ChallengesIssuedTotal counts nonce issuance attempts.
// Label result: "ok" or "error".
var ChallengesIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "challenges_issued_total",
		Help:      "Total number of sign-in challenges issued.",
	},
	[]string{"result"},
)

// VerificationsTotal counts signature verifications by outcome.
// Label reason: "ok" or a verification failure reason such as "bad_signature".
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total number of sign-in message verifications, by outcome.",
	},
	[]string{"reason"},
)

// SignInsTotal counts completed sign-ins by result.
var SignInsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_ins_total",
		Help:      "Total number of sign-in attempts, by result.",
	},
	[]string{"result"},
)

// BreakGlassTotal counts role resolutions that used the super-admin allowlist.
var BreakGlassTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "break_glass_total",
		Help:      "Total number of role resolutions granted through the super-admin allowlist.",
	},
)

// GateDecisionsTotal counts access gate decisions by outcome.
var GateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Total number of access gate evaluations, by outcome.",
	},
	[]string{"outcome"},
)

// SessionTransitionsTotal counts client session state transitions.
var SessionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Total number of session state machine transitions, by target state and reason.",
	},
	[]string{"to", "reason"},
)
