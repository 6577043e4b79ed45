package auth

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/saurabhp75/epic-web/internal/models"
)

// TOTPManager generates and validates one-time codes against verification
// records. Each record carries its own algorithm, digit count, and period,
// so two-factor secrets (30s window) and emailed onboarding codes
// (10 minute window) share one code path.
type TOTPManager struct {
	issuer string // Issuer name for otpauth provisioning URIs
}

// NewTOTPManager creates a new TOTP manager
func NewTOTPManager(issuer string) *TOTPManager {
	return &TOTPManager{issuer: issuer}
}

// TwoFactorDefaults returns the code parameters used for 2FA secrets
func TwoFactorDefaults() (algorithm string, digits, period int) {
	return "SHA1", 6, 30
}

// GenerateSecret creates a new verification secret with the given
// parameters and returns the base32-encoded secret.
func (tm *TOTPManager) GenerateSecret(accountName string, digits, period int) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountName,
		SecretSize:  32,
		Period:      uint(period),
		Digits:      parseDigits(digits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return key.Secret(), nil
}

// ProvisioningURI builds the otpauth:// URI an authenticator app enrolls from
func (tm *TOTPManager) ProvisioningURI(v *models.Verification, accountName string) string {
	q := url.Values{}
	q.Set("secret", v.Secret)
	q.Set("issuer", tm.issuer)
	q.Set("algorithm", v.Algorithm)
	q.Set("digits", fmt.Sprintf("%d", v.Digits))
	q.Set("period", fmt.Sprintf("%d", v.Period))

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + tm.issuer + ":" + accountName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// QRCodeDataURL renders a provisioning URI as a PNG data URL for enrollment
func (tm *TOTPManager) QRCodeDataURL(provisioningURI string) (string, error) {
	qr, err := qrcode.New(provisioningURI, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(200)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// GenerateCode produces the current one-time code for a verification
// record. Used to build the codes emailed during onboarding.
func (tm *TOTPManager) GenerateCode(v *models.Verification, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(v.Secret, at, totp.ValidateOpts{
		Period:    uint(v.Period),
		Skew:      0,
		Digits:    parseDigits(v.Digits),
		Algorithm: parseAlgorithm(v.Algorithm),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return code, nil
}

// ValidateCode validates a submitted code against a verification record.
// Allows ±1 time step for clock drift.
func (tm *TOTPManager) ValidateCode(code string, v *models.Verification) (bool, error) {
	if v.IsExpired() {
		return false, nil
	}

	valid, err := totp.ValidateCustom(code, v.Secret, time.Now(), totp.ValidateOpts{
		Period:    uint(v.Period),
		Skew:      1,
		Digits:    parseDigits(v.Digits),
		Algorithm: parseAlgorithm(v.Algorithm),
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate code: %w", err)
	}
	return valid, nil
}

func parseDigits(digits int) otp.Digits {
	if digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

func parseAlgorithm(algorithm string) otp.Algorithm {
	switch algorithm {
	case "SHA256":
		return otp.AlgorithmSHA256
	case "SHA512":
		return otp.AlgorithmSHA512
	default:
		return otp.AlgorithmSHA1
	}
}
