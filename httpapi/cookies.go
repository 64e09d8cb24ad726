package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/goAccount/middleware"
)

const (
	accessCookieName  = middleware.AccessCookieName
	refreshCookieName = "refreshToken"
)

type cookieConfig struct {
	secure   bool
	sameSite http.SameSite
}

func (c cookieConfig) set(w http.ResponseWriter, name, value string, expires time.Time, now time.Time) {
	maxAge := int(expires.Sub(now).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	})
}

func (c cookieConfig) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	})
}

// ParseSameSite maps "lax", "strict", "none" and "" (default mode).
func ParseSameSite(s string) (http.SameSite, bool) {
	switch s {
	case "", "default":
		return http.SameSiteDefaultMode, true
	case "lax", "Lax":
		return http.SameSiteLaxMode, true
	case "strict", "Strict":
		return http.SameSiteStrictMode, true
	case "none", "None":
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteDefaultMode, false
}
