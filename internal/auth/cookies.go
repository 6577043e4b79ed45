package auth

import (
	"net/http"
	"time"
)

// Cookie names. The session cookie and the verification cookie are distinct
// so that a pending two-factor challenge never grants session access.
const (
	SessionCookieName      = "en_session"
	VerificationCookieName = "en_verification"
	OAuthStateCookieName   = "en_oauth_state"
)

// CookieConfig holds cookie attribute settings shared by all auth cookies
type CookieConfig struct {
	Domain string // Empty string = current host only
	Secure bool   // HTTPS only
}

// SetSessionCookie writes the signed session cookie. When expires is the
// zero time the cookie is session-only (cleared when the browser closes);
// otherwise it persists until the given time ("remember me").
func SetSessionCookie(w http.ResponseWriter, value string, expires time.Time, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		cookie.Expires = expires
		cookie.MaxAge = int(time.Until(expires).Seconds())
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie deletes the session cookie
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetVerificationCookie writes the signed ephemeral verification cookie
func SetVerificationCookie(w http.ResponseWriter, value string, ttl time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     VerificationCookieName,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearVerificationCookie deletes the verification cookie
func ClearVerificationCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     VerificationCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetOAuthStateCookie writes the short-lived OAuth state cookie
func SetOAuthStateCookie(w http.ResponseWriter, state string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookieName,
		Value:    state,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearOAuthStateCookie deletes the OAuth state cookie
func ClearOAuthStateCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetCookie returns the raw value of a named cookie, or "" when absent
func GetCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
