package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionPayload is the decoded content of the long-lived session cookie.
type SessionPayload struct {
	SessionID  string     `json:"session_id"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"` // Last successful two-factor verification
}

// OnboardingData is the external profile staged in the verification cookie
// while a new user completes signup after an OAuth handshake.
type OnboardingData struct {
	Email        string `json:"email"`
	Username     string `json:"username"` // Sanitized suggestion
	Name         string `json:"name,omitempty"`
	ProviderName string `json:"provider_name"`
	ProviderID   string `json:"provider_id"`
}

// VerificationPayload is the decoded content of the ephemeral verification
// cookie. It carries everything the two-factor detour and the OAuth
// onboarding flow need across stateless requests.
type VerificationPayload struct {
	PendingSessionID string          `json:"pending_session_id,omitempty"`
	Remember         bool            `json:"remember,omitempty"`
	RedirectTo       string          `json:"redirect_to,omitempty"`
	Onboarding       *OnboardingData `json:"onboarding,omitempty"`
}

type sessionClaims struct {
	SessionPayload
	jwt.RegisteredClaims
}

type verificationClaims struct {
	VerificationPayload
	jwt.RegisteredClaims
}

// Codec signs and verifies cookie payloads as HS256 JWTs. Cookie values are
// opaque to the client and tamper-evident to the server.
type Codec struct {
	secret []byte
}

// NewCodec creates a cookie codec from the session secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

func (c *Codec) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.secret, nil
}

// EncodeSession signs a session payload. Session cookies carry no JWT expiry
// of their own; lifetime is controlled by cookie attributes and the session
// record's expiration date in the store.
func (c *Codec) EncodeSession(payload SessionPayload) (string, error) {
	claims := &sessionClaims{
		SessionPayload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return signed, nil
}

// DecodeSession verifies and decodes a session cookie value.
func (c *Codec) DecodeSession(value string) (*SessionPayload, error) {
	claims := &sessionClaims{}
	if _, err := jwt.ParseWithClaims(value, claims, c.keyFunc); err != nil {
		return nil, fmt.Errorf("invalid session cookie: %w", err)
	}
	return &claims.SessionPayload, nil
}

// EncodeVerification signs a verification payload with a bounded lifetime.
func (c *Codec) EncodeVerification(payload VerificationPayload, ttl time.Duration) (string, error) {
	claims := &verificationClaims{
		VerificationPayload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign verification cookie: %w", err)
	}
	return signed, nil
}

// DecodeVerification verifies and decodes a verification cookie value.
// Expired cookies fail here, which bounds the pending-challenge lifetime.
func (c *Codec) DecodeVerification(value string) (*VerificationPayload, error) {
	claims := &verificationClaims{}
	if _, err := jwt.ParseWithClaims(value, claims, c.keyFunc); err != nil {
		return nil, fmt.Errorf("invalid verification cookie: %w", err)
	}
	return &claims.VerificationPayload, nil
}
