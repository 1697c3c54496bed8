package tryfi

import (
	"net/http"
	"strings"
)

// splitSetCookieHeader splits a folded Set-Cookie value ("a=1; Path=/, b=2")
// into one string per cookie. A comma only separates cookies when the text
// after it begins with a cookie name followed by '='; the comma inside an
// Expires date ("Wed, 21 Oct 2026 07:28:00 GMT") never does.
func splitSetCookieHeader(raw string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] != ',' {
			continue
		}
		if startsCookiePair(raw[i+1:]) {
			if part := strings.TrimSpace(raw[start:i]); part != "" {
				parts = append(parts, part)
			}
			start = i + 1
		}
	}
	if part := strings.TrimSpace(raw[start:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}

func startsCookiePair(rest string) bool {
	rest = strings.TrimLeft(rest, " \t")
	end := strings.IndexAny(rest, "=;,")
	if end <= 0 || rest[end] != '=' {
		return false
	}
	return isCookieName(rest[:end])
}

func isCookieName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c >= 0x7f || strings.IndexByte(`()<>@,;:\"/[]?={}`, c) >= 0 {
			return false
		}
	}
	return true
}

// parseCookiePair returns the leading name=value of a single Set-Cookie string,
// ignoring its attributes.
func parseCookiePair(setCookie string) (*http.Cookie, bool) {
	pair := setCookie
	if idx := strings.IndexByte(pair, ';'); idx >= 0 {
		pair = pair[:idx]
	}
	name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
	if !ok {
		return nil, false
	}
	name = strings.TrimSpace(name)
	if !isCookieName(name) {
		return nil, false
	}
	value = strings.Trim(strings.TrimSpace(value), `"`)
	return &http.Cookie{Name: name, Value: value}, true
}

// cookieHeader renders cookies as a request Cookie header value.
func cookieHeader(cookies []*http.Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c != nil && strings.EqualFold(c.Name, name) && c.Value != "" {
			return c
		}
	}
	return nil
}
