// Package cookie encodes and decodes the wire format of the cookies
// oauth-front relies on, plus helpers for the CSRF state cookie itself.
package cookie

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgellow/oauth-front/internal/log"
)

// StateCookie carries the CSRF state token between login and callback.
const StateCookie = "oauth_state"

// StateTTL bounds how long a login attempt stays redeemable.
const StateTTL = 10 * time.Minute

// Attributes is the attribute set encoded after the name=value pair.
type Attributes struct {
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
	Path     string
	Domain   string
}

// Encode renders a Set-Cookie header value. The cookie value is
// percent-escaped so it survives separators and whitespace.
func Encode(name, value string, attrs Attributes) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))

	if attrs.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(attrs.Path)
	}
	if attrs.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(attrs.Domain)
	}
	if attrs.MaxAge != 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(attrs.MaxAge))
	}
	switch attrs.SameSite {
	case http.SameSiteLaxMode:
		b.WriteString("; SameSite=Lax")
	case http.SameSiteStrictMode:
		b.WriteString("; SameSite=Strict")
	case http.SameSiteNoneMode:
		b.WriteString("; SameSite=None")
	}
	if attrs.Secure {
		b.WriteString("; Secure")
	}
	if attrs.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	return b.String()
}

// Parse decodes a raw Cookie request header into a name→value map.
// Tolerates empty headers, bare names with no value, and duplicate
// names (last one wins). Values that fail percent-decoding are kept raw.
func Parse(header string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		cookies[name] = value
	}
	return cookies
}

// SetState attaches the CSRF state cookie to the response.
func SetState(w http.ResponseWriter, value string, secure bool) {
	w.Header().Add("Set-Cookie", Encode(StateCookie, value, Attributes{
		Path:     "/",
		HTTPOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(StateTTL.Seconds()),
	}))

	log.LogDebugWithFields("cookie", "State cookie set", map[string]any{
		"maxAge":   StateTTL.String(),
		"secure":   secure,
		"sameSite": "Lax",
	})
}

// GetState retrieves the CSRF state cookie value from the request.
// Returns an empty string when the cookie is absent.
func GetState(r *http.Request) string {
	return Parse(r.Header.Get("Cookie"))[StateCookie]
}

// ClearState expires the state cookie. Called once the callback has
// consumed the token so the state is single use.
func ClearState(w http.ResponseWriter) {
	w.Header().Add("Set-Cookie", Encode(StateCookie, "", Attributes{
		Path:   "/",
		MaxAge: -1,
	}))
}
