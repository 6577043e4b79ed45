package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/saurabhp75/epic-web/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerification(t *testing.T, tm *TOTPManager, digits, period int) *models.Verification {
	t.Helper()

	secret, err := tm.GenerateSecret("kody@example.com", digits, period)
	require.NoError(t, err)

	return &models.Verification{
		Type:      models.VerificationTypeTwoFA,
		Target:    "user-1",
		Secret:    secret,
		Algorithm: "SHA1",
		Digits:    digits,
		Period:    period,
	}
}

func TestTOTP_GenerateAndValidate(t *testing.T) {
	tm := NewTOTPManager("Epic Notes")
	v := newTestVerification(t, tm, 6, 30)

	code, err := tm.GenerateCode(v, time.Now())
	require.NoError(t, err)
	assert.Len(t, code, 6)

	valid, err := tm.ValidateCode(code, v)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestTOTP_WrongCodeRejected(t *testing.T) {
	tm := NewTOTPManager("Epic Notes")
	v := newTestVerification(t, tm, 6, 30)

	valid, err := tm.ValidateCode("000000", v)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTOTP_ExpiredRecordRejected(t *testing.T) {
	tm := NewTOTPManager("Epic Notes")
	v := newTestVerification(t, tm, 6, 30)

	expired := time.Now().Add(-time.Minute)
	v.ExpiresAt = &expired

	code, err := tm.GenerateCode(v, time.Now())
	require.NoError(t, err)

	valid, err := tm.ValidateCode(code, v)
	require.NoError(t, err)
	assert.False(t, valid, "a valid code must be rejected once the record expired")
}

func TestTOTP_LongPeriodCodes(t *testing.T) {
	// Onboarding codes use a 10 minute window
	tm := NewTOTPManager("Epic Notes")
	v := newTestVerification(t, tm, 6, 600)
	v.Type = models.VerificationTypeOnboarding
	v.Target = "kody@example.com"

	code, err := tm.GenerateCode(v, time.Now())
	require.NoError(t, err)

	valid, err := tm.ValidateCode(code, v)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestTOTP_ProvisioningURI(t *testing.T) {
	tm := NewTOTPManager("Epic Notes")
	v := newTestVerification(t, tm, 6, 30)

	uri := tm.ProvisioningURI(v, "kody@example.com")
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/"))
	assert.Contains(t, uri, "secret="+v.Secret)
	assert.Contains(t, uri, "period=30")
}

func TestTOTP_QRCodeDataURL(t *testing.T) {
	tm := NewTOTPManager("Epic Notes")
	v := newTestVerification(t, tm, 6, 30)

	dataURL, err := tm.QRCodeDataURL(tm.ProvisioningURI(v, "kody@example.com"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
}
