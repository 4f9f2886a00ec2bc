package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Default SSO configuration constants.
const (
	defaultBaseURL     = "https://id.itmo.ru/auth/realms/itmo/protocol/openid-connect"
	defaultClientID    = "student-personal-cabinet"
	defaultRedirectURI = "https://my.itmo.ru/login/callback"
	defaultScopes      = "openid profile"
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/143.0.0.0 Safari/537.36"
	defaultTimeout     = 15 * time.Second
)

var loginActionRe = regexp.MustCompile(`"loginAction"\s*:\s*"([^"]+)"`)

// TokenPair is the SSO token response forwarded to clients. Token storage
// is the client's concern; the provider holds no per-user state.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ProviderOption applies a configuration option to the Provider.
type ProviderOption func(*Provider)

// WithBaseURL overrides the SSO endpoint base URL.
func WithBaseURL(u string) ProviderOption {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithClientID overrides the OAuth client id.
func WithClientID(id string) ProviderOption {
	return func(p *Provider) {
		if id != "" {
			p.clientID = id
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// Provider proxies the university SSO: a password + PKCE authorization-code
// login and a refresh-token exchange. All failures are surfaced as
// ErrInvalidCredentials or ErrUpstream; nothing is retried here.
type Provider struct {
	baseURL     string
	clientID    string
	redirectURI string
	scopes      string
	userAgent   string
	timeout     time.Duration
}

// NewProvider creates an SSO provider with default configuration.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		baseURL:     defaultBaseURL,
		clientID:    defaultClientID,
		redirectURI: defaultRedirectURI,
		scopes:      defaultScopes,
		userAgent:   defaultUserAgent,
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Login performs the three-step PKCE flow: fetch the login form, post the
// credentials, exchange the authorization code for tokens.
func (p *Provider) Login(ctx context.Context, username, password string) (TokenPair, error) {
	verifier, challenge, err := generatePKCE()
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: pkce: %v", ErrUpstream, err)
	}

	// The SSO session lives in cookies across the three steps.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: cookie jar: %v", ErrUpstream, err)
	}
	client := &http.Client{Timeout: p.timeout, Jar: jar}

	loginAction, err := p.fetchLoginForm(ctx, client, challenge)
	if err != nil {
		return TokenPair{}, err
	}

	code, err := p.postCredentials(ctx, client, loginAction, username, password)
	if err != nil {
		return TokenPair{}, err
	}

	return p.exchangeToken(ctx, client, url.Values{
		"code":          {code},
		"client_id":     {p.clientID},
		"redirect_uri":  {p.redirectURI},
		"grant_type":    {"authorization_code"},
		"code_verifier": {verifier},
	})
}

// Refresh exchanges a refresh token for a fresh token pair.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	client := &http.Client{Timeout: p.timeout}
	pair, err := p.exchangeToken(ctx, client, url.Values{
		"refresh_token": {refreshToken},
		"client_id":     {p.clientID},
		"grant_type":    {"refresh_token"},
		"scope":         {p.scopes},
	})
	if err != nil {
		return TokenPair{}, err
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

func (p *Provider) fetchLoginForm(ctx context.Context, client *http.Client, challenge string) (string, error) {
	q := url.Values{
		"protocol":              {"oauth2"},
		"response_type":         {"code"},
		"client_id":             {p.clientID},
		"redirect_uri":          {p.redirectURI},
		"scope":                 {p.scopes},
		"state":                 {"im_not_a_browser"},
		"code_challenge_method": {"S256"},
		"code_challenge":        {challenge},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: auth page: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: auth page status %d", ErrUpstream, resp.StatusCode)
	}

	// Login pages are small; cap the read in case the endpoint misbehaves.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: auth page body: %v", ErrUpstream, err)
	}
	m := loginActionRe.FindStringSubmatch(string(body))
	if m == nil {
		return "", fmt.Errorf("%w: login action not found in page source", ErrUpstream)
	}
	return unescapeSlashes(m[1]), nil
}

// unescapeSlashes reverses the slash escaping the SSO applies to URLs
// embedded in its page scripts: literal \u002f unicode escapes and
// JSON-style \/ sequences.
func unescapeSlashes(s string) string {
	s = strings.ReplaceAll(s, `\u002f`, "/")
	s = strings.ReplaceAll(s, `\u002F`, "/")
	return strings.ReplaceAll(s, `\/`, "/")
}

func (p *Provider) postCredentials(ctx context.Context, client *http.Client, action, username, password string) (string, error) {
	form := url.Values{
		"username":   {username},
		"password":   {password},
		"rememberMe": {"on"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// A successful login answers with a redirect carrying the code; follow
	// nothing so the Location header stays observable.
	noRedirect := &http.Client{
		Timeout: client.Timeout,
		Jar:     client.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: credentials post: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		return "", ErrInvalidCredentials
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("%w: redirect location missing", ErrUpstream)
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: redirect location: %v", ErrUpstream, err)
	}
	code := parsed.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: authorization code missing in redirect", ErrUpstream)
	}
	return code, nil
}

func (p *Provider) exchangeToken(ctx context.Context, client *http.Client, form url.Values) (TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: token exchange: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return TokenPair{}, fmt.Errorf("%w: token exchange status %d", ErrUpstream, resp.StatusCode)
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return TokenPair{}, fmt.Errorf("%w: token response: %v", ErrUpstream, err)
	}
	if pair.AccessToken == "" {
		return TokenPair{}, fmt.Errorf("%w: token response without access_token", ErrUpstream)
	}
	return pair, nil
}

// generatePKCE returns a code verifier and its S256 challenge.
func generatePKCE() (verifier, challenge string, err error) {
	raw := make([]byte, 32)
	if _, err = rand.Read(raw); err != nil {
		return "", "", err
	}
	verifier = base64.RawURLEncoding.EncodeToString(raw)
	digest := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(digest[:])
	return verifier, challenge, nil
}
