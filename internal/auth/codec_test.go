package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_SessionRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret-32-characters-long!")

	verifiedAt := time.Now().Truncate(time.Second)
	encoded, err := codec.EncodeSession(SessionPayload{
		SessionID:  "sess-123",
		VerifiedAt: &verifiedAt,
	})
	require.NoError(t, err)

	decoded, err := codec.DecodeSession(encoded)
	require.NoError(t, err)
	assert.Equal(t, "sess-123", decoded.SessionID)
	require.NotNil(t, decoded.VerifiedAt)
	assert.WithinDuration(t, verifiedAt, *decoded.VerifiedAt, time.Second)
}

func TestCodec_VerificationRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret-32-characters-long!")

	encoded, err := codec.EncodeVerification(VerificationPayload{
		PendingSessionID: "sess-456",
		Remember:         true,
		RedirectTo:       "/users/kody/notes",
		Onboarding: &OnboardingData{
			Email:        "kody@example.com",
			Username:     "kody",
			ProviderName: "github",
			ProviderID:   "42",
		},
	}, 10*time.Minute)
	require.NoError(t, err)

	decoded, err := codec.DecodeVerification(encoded)
	require.NoError(t, err)
	assert.Equal(t, "sess-456", decoded.PendingSessionID)
	assert.True(t, decoded.Remember)
	assert.Equal(t, "/users/kody/notes", decoded.RedirectTo)
	require.NotNil(t, decoded.Onboarding)
	assert.Equal(t, "github", decoded.Onboarding.ProviderName)
	assert.Equal(t, "42", decoded.Onboarding.ProviderID)
}

func TestCodec_TamperedCookieRejected(t *testing.T) {
	codec := NewCodec("test-secret-32-characters-long!")

	encoded, err := codec.EncodeSession(SessionPayload{SessionID: "sess-123"})
	require.NoError(t, err)

	// Flip a character in the signature segment
	tampered := encoded[:len(encoded)-2] + "xx"
	_, err = codec.DecodeSession(tampered)
	assert.Error(t, err)
}

func TestCodec_WrongSecretRejected(t *testing.T) {
	codec := NewCodec("test-secret-32-characters-long!")
	other := NewCodec("another-secret-32-characters-!!")

	encoded, err := codec.EncodeSession(SessionPayload{SessionID: "sess-123"})
	require.NoError(t, err)

	_, err = other.DecodeSession(encoded)
	assert.Error(t, err)
}

func TestCodec_ExpiredVerificationRejected(t *testing.T) {
	codec := NewCodec("test-secret-32-characters-long!")

	encoded, err := codec.EncodeVerification(VerificationPayload{
		PendingSessionID: "sess-456",
	}, -time.Minute)
	require.NoError(t, err)

	_, err = codec.DecodeVerification(encoded)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid verification cookie"))
}
