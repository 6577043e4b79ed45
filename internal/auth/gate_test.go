package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTwoFactorChecker struct {
	enabled bool
	err     error
}

func (s *stubTwoFactorChecker) HasTwoFactor(ctx context.Context, userID string) (bool, error) {
	return s.enabled, s.err
}

func sessionVerifiedAgo(d time.Duration) *SessionPayload {
	t := time.Now().Add(-d)
	return &SessionPayload{SessionID: "sess-1", VerifiedAt: &t}
}

func TestGate_NoTwoFactorEnabled_NeverChallenges(t *testing.T) {
	gate := NewTwoFactorGate(&stubTwoFactorChecker{enabled: false}, 2*time.Hour)

	for _, sess := range []*SessionPayload{
		nil,
		{SessionID: "sess-1"},
		sessionVerifiedAgo(100 * time.Hour),
	} {
		required, err := gate.ShouldRequestTwoFA(context.Background(), "user-1", sess, false)
		require.NoError(t, err)
		assert.False(t, required)
	}
}

func TestGate_EnabledNoPriorVerification_Challenges(t *testing.T) {
	gate := NewTwoFactorGate(&stubTwoFactorChecker{enabled: true}, 2*time.Hour)

	// No session cookie at all
	required, err := gate.ShouldRequestTwoFA(context.Background(), "user-1", nil, false)
	require.NoError(t, err)
	assert.True(t, required)

	// Session cookie with no verified-at timestamp (treated as epoch zero)
	required, err = gate.ShouldRequestTwoFA(context.Background(), "user-1", &SessionPayload{SessionID: "sess-1"}, false)
	require.NoError(t, err)
	assert.True(t, required)
}

func TestGate_FreshnessWindowBoundary(t *testing.T) {
	const window = 2 * time.Hour
	const epsilon = 5 * time.Minute

	gate := NewTwoFactorGate(&stubTwoFactorChecker{enabled: true}, window)

	// Verified at T, now T + 2h + ε: stale, challenge required
	required, err := gate.ShouldRequestTwoFA(context.Background(), "user-1", sessionVerifiedAgo(window+epsilon), false)
	require.NoError(t, err)
	assert.True(t, required)

	// Verified at T, now T + 2h - ε: still fresh
	required, err = gate.ShouldRequestTwoFA(context.Background(), "user-1", sessionVerifiedAgo(window-epsilon), false)
	require.NoError(t, err)
	assert.False(t, required)
}

func TestGate_PendingChallengeOverridesEverything(t *testing.T) {
	// Even with 2FA disabled and a fresh verification, an in-flight
	// challenge must be completed.
	gate := NewTwoFactorGate(&stubTwoFactorChecker{enabled: false}, 2*time.Hour)

	required, err := gate.ShouldRequestTwoFA(context.Background(), "user-1", sessionVerifiedAgo(time.Minute), true)
	require.NoError(t, err)
	assert.True(t, required)
}

func TestGate_CheckerErrorPropagates(t *testing.T) {
	checkErr := errors.New("store unavailable")
	gate := NewTwoFactorGate(&stubTwoFactorChecker{err: checkErr}, 2*time.Hour)

	_, err := gate.ShouldRequestTwoFA(context.Background(), "user-1", nil, false)
	assert.ErrorIs(t, err, checkErr)
}
