package auth

import (
	"context"
	"time"
)

// TwoFactorChecker reports whether a user has an active two-factor secret
type TwoFactorChecker interface {
	HasTwoFactor(ctx context.Context, userID string) (bool, error)
}

// TwoFactorGate decides, per login, whether a second verification step is
// required. It is a pure decision over three signals, in priority order:
// an in-flight challenge, whether 2FA is enabled, and how long ago the
// caller last verified.
type TwoFactorGate struct {
	checker TwoFactorChecker
	window  time.Duration // Freshness window; a verification older than this is stale
}

// NewTwoFactorGate creates a gate with the given freshness window
func NewTwoFactorGate(checker TwoFactorChecker, window time.Duration) *TwoFactorGate {
	return &TwoFactorGate{checker: checker, window: window}
}

// ShouldRequestTwoFA returns true when a second factor must be verified
// before a full session may be granted.
//
// pendingInFlight marks a request that already carries an unverified
// session in the verification cookie; that challenge must be completed
// regardless of freshness. sess is the caller's decoded long-lived session
// cookie, nil when absent; an absent or never-set VerifiedAt is treated as
// epoch zero and therefore always stale.
func (g *TwoFactorGate) ShouldRequestTwoFA(ctx context.Context, userID string, sess *SessionPayload, pendingInFlight bool) (bool, error) {
	if pendingInFlight {
		return true, nil
	}

	enabled, err := g.checker.HasTwoFactor(ctx, userID)
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}

	var verifiedAt time.Time
	if sess != nil && sess.VerifiedAt != nil {
		verifiedAt = *sess.VerifiedAt
	}

	return time.Since(verifiedAt) > g.window, nil
}
