package http

import (
	"net/http"
	"net/url"
	"strings"
)

// SafeRedirectTarget returns target if it is a safe local path, otherwise
// fallback. A safe target starts with a single "/" (not "//" or "/\", which
// browsers treat as protocol-relative) and carries no scheme or host, so a
// crafted redirect_to parameter cannot send the browser off-site.
func SafeRedirectTarget(target, fallback string) string {
	if target == "" {
		return fallback
	}
	if !strings.HasPrefix(target, "/") {
		return fallback
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}

// Redirect issues a 303 See Other to a safe local target. POST handlers in
// the auth flow use 303 so the browser follows with a GET.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, SafeRedirectTarget(target, "/"), http.StatusSeeOther)
}

// RedirectWithNotice issues a redirect carrying a user-facing notice as a
// query parameter. Notices are generic by design; internal error detail
// never reaches the client this way.
func RedirectWithNotice(w http.ResponseWriter, r *http.Request, target, notice string) {
	safe := SafeRedirectTarget(target, "/")
	sep := "?"
	if strings.Contains(safe, "?") {
		sep = "&"
	}
	http.Redirect(w, r, safe+sep+"notice="+url.QueryEscape(notice), http.StatusSeeOther)
}
