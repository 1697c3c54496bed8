// Package tryfi talks to the Fi collar vendor API: session login, GraphQL
// queries and normalisation of the responses into a flat snapshot.
package tryfi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/nsprdjake/bailey-dashboard/internal/observability"
)

// DefaultSessionCookie is the cookie the vendor uses for its session.
const DefaultSessionCookie = "sessionId"

const maxLoginBody = 1 << 20

// Credential is a session acquired for one sync request. It is never cached.
type Credential struct {
	UserID   string
	Token    string
	Cookies  []*http.Cookie
	Strategy string
}

// CookieHeader renders the credential's cookies for outbound requests.
func (c Credential) CookieHeader() string {
	return cookieHeader(c.Cookies)
}

// LoginBody is the JSON the login endpoint may return.
type LoginBody struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// LoginResponse is what extractors inspect. The HTTP body has already been read into Body.
type LoginResponse struct {
	Response *http.Response
	Body     LoginBody
}

// CookieExtractor is one way of pulling session cookies out of a login response.
type CookieExtractor interface {
	Name() string
	Extract(resp LoginResponse) []*http.Cookie
}

// NativeCookies uses the runtime's own Set-Cookie parsing.
type NativeCookies struct{}

func (NativeCookies) Name() string { return "native" }

func (NativeCookies) Extract(resp LoginResponse) []*http.Cookie {
	if resp.Response == nil {
		return nil
	}
	return resp.Response.Cookies()
}

// HeaderScan walks every header whose name matches Set-Cookie in any casing
// and parses each value as one cookie.
type HeaderScan struct{}

func (HeaderScan) Name() string { return "header-scan" }

func (HeaderScan) Extract(resp LoginResponse) []*http.Cookie {
	if resp.Response == nil {
		return nil
	}
	var out []*http.Cookie
	for _, key := range sortedHeaderNames(resp.Response.Header) {
		if !strings.EqualFold(key, "Set-Cookie") {
			continue
		}
		for _, value := range resp.Response.Header[key] {
			if c, err := http.ParseSetCookie(value); err == nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// RawHeader treats the first Set-Cookie value as a folded, comma-delimited
// list and splits it by hand.
type RawHeader struct{}

func (RawHeader) Name() string { return "raw-header" }

func (RawHeader) Extract(resp LoginResponse) []*http.Cookie {
	if resp.Response == nil {
		return nil
	}
	for _, key := range sortedHeaderNames(resp.Response.Header) {
		if !strings.EqualFold(key, "Set-Cookie") {
			continue
		}
		values := resp.Response.Header[key]
		if len(values) == 0 {
			continue
		}
		var out []*http.Cookie
		for _, part := range splitSetCookieHeader(strings.Join(values, ", ")) {
			if c, ok := parseCookiePair(part); ok {
				out = append(out, c)
			}
		}
		return out
	}
	return nil
}

// BodySession synthesises the session cookie from the JSON sessionId field.
type BodySession struct {
	CookieName string
}

func (BodySession) Name() string { return "body" }

func (b BodySession) Extract(resp LoginResponse) []*http.Cookie {
	sid := strings.TrimSpace(resp.Body.SessionID)
	if sid == "" {
		return nil
	}
	name := b.CookieName
	if name == "" {
		name = DefaultSessionCookie
	}
	return []*http.Cookie{{Name: name, Value: sid}}
}

// DefaultExtractors returns the fallback order used by SessionClient.
func DefaultExtractors(cookieName string) []CookieExtractor {
	return []CookieExtractor{NativeCookies{}, HeaderScan{}, RawHeader{}, BodySession{CookieName: cookieName}}
}

// SessionOption configures a SessionClient.
type SessionOption func(*SessionClient)

// WithSessionCookie overrides the session cookie name.
func WithSessionCookie(name string) SessionOption {
	return func(c *SessionClient) {
		if strings.TrimSpace(name) != "" {
			c.cookieName = name
		}
	}
}

// WithExtractors overrides the extractor fallback order.
func WithExtractors(extractors ...CookieExtractor) SessionOption {
	return func(c *SessionClient) {
		c.extractors = extractors
	}
}

// SessionClient logs in against the vendor's form-encoded auth endpoint.
type SessionClient struct {
	baseURL    string
	httpClient *http.Client
	cookieName string
	extractors []CookieExtractor
}

// NewSessionClient constructs a SessionClient. A nil httpClient gets a two minute timeout.
func NewSessionClient(baseURL string, httpClient *http.Client, opts ...SessionOption) *SessionClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	c := &SessionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		cookieName: DefaultSessionCookie,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.extractors == nil {
		c.extractors = DefaultExtractors(c.cookieName)
	}
	return c
}

// Login posts the credentials and derives a session from the response using
// the configured extractors in order.
func (c *SessionClient) Login(ctx context.Context, email, password string) (cred Credential, err error) {
	started := time.Now()
	defer func() { observability.ObserveVendorRequest("login", started, err) }()

	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return Credential{}, &AuthError{Message: "email and password are required"}
	}

	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Credential{}, &AuthError{Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxLoginBody))
	if err != nil {
		return Credential{}, &AuthError{Status: resp.StatusCode, Message: transportMessage(err), Err: err}
	}

	var body LoginBody
	// The body is not always JSON; header extraction does not need it.
	_ = json.Unmarshal(raw, &body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if body.Error != nil && body.Error.Message != "" {
			msg = body.Error.Message
		}
		return Credential{}, &AuthError{Status: resp.StatusCode, Message: msg}
	}
	if body.Error != nil && body.Error.Message != "" {
		return Credential{}, &AuthError{Status: resp.StatusCode, Message: body.Error.Message}
	}

	cred, err = c.extract(LoginResponse{Response: resp, Body: body})
	if err != nil {
		return Credential{}, err
	}
	cred.UserID = body.UserID
	observability.RecordExtraction(cred.Strategy)
	return cred, nil
}

func (c *SessionClient) extract(resp LoginResponse) (Credential, error) {
	tried := make([]string, 0, len(c.extractors))
	for _, extractor := range c.extractors {
		tried = append(tried, extractor.Name())
		cookies := dedupeCookies(extractor.Extract(resp))
		session := findCookie(cookies, c.cookieName)
		if session == nil {
			continue
		}
		return Credential{
			Token:    session.Value,
			Cookies:  cookies,
			Strategy: extractor.Name(),
		}, nil
	}

	var headers []string
	if resp.Response != nil {
		headers = sortedHeaderNames(resp.Response.Header)
	}
	return Credential{}, &AuthExtractionError{CookieName: c.cookieName, HeaderNames: headers, Tried: tried}
}

func dedupeCookies(cookies []*http.Cookie) []*http.Cookie {
	seen := make(map[string]int, len(cookies))
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		if idx, ok := seen[c.Name]; ok {
			out[idx] = c
			continue
		}
		seen[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

func sortedHeaderNames(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
