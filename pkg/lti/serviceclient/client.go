// Package serviceclient issues OAuth2-authorized LTI service calls on behalf
// of a tool: it obtains an access token from the platform with a signed
// client assertion, then sends the service request with it.
package serviceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/quipper/lti/nrps/pkg/common/keys"
	"github.com/quipper/lti/nrps/pkg/common/logger"
	"github.com/quipper/lti/nrps/pkg/lti"
)

const (
	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionTTL        = 5 * time.Minute
	expiryLeeway        = 10 * time.Second
	maxBodySize         = 10 << 20
)

// ServiceClient is the authorized transport LTI services are called through.
type ServiceClient interface {
	Request(ctx context.Context, reg *lti.Registration, method, url string, opts RequestOptions, scopes []string) (*Response, error)
}

// RequestOptions carries the per-call request details.
type RequestOptions struct {
	Headers map[string]string
	Body    []byte
}

// Response is a fully read service response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type cachedToken struct {
	value   string
	expires time.Time
}

// Client implements ServiceClient with the client_credentials grant and a
// private_key_jwt client assertion.
type Client struct {
	http   *http.Client
	keys   *keys.KeyPair
	clock  clock.Clock
	mu     sync.Mutex
	cache  map[string]cachedToken
	grants singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithClock(c clock.Clock) Option {
	return func(cl *Client) { cl.clock = c }
}

// New returns a client signing its assertions with the tool key pair.
func New(toolKeys *keys.KeyPair, opts ...Option) *Client {
	c := &Client{
		http:  &http.Client{Timeout: 10 * time.Second},
		keys:  toolKeys,
		clock: clock.New(),
		cache: map[string]cachedToken{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request obtains a token for scopes and performs the call. Any non-2xx
// status is returned as an error.
func (c *Client) Request(ctx context.Context, reg *lti.Registration, method, target string, opts RequestOptions, scopes []string) (*Response, error) {
	token, err := c.AccessToken(ctx, reg, scopes)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "build service request")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	logger.Debug("serviceclient: %s %s client_id=%s", method, target, reg.ClientID)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, target)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read service response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.forget(reg, scopes)
		}
		return nil, errors.Errorf("%s %s: unexpected status %d", method, target, resp.StatusCode)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// AccessToken returns a cached token for the registration and scopes, or
// requests a new one from the registration's access token URL.
func (c *Client) AccessToken(ctx context.Context, reg *lti.Registration, scopes []string) (string, error) {
	key := cacheKey(reg, scopes)
	c.mu.Lock()
	tok, ok := c.cache[key]
	c.mu.Unlock()
	if ok && c.clock.Now().Before(tok.expires) {
		return tok.value, nil
	}

	v, err, _ := c.grants.Do(key, func() (any, error) {
		return c.requestToken(ctx, reg, scopes, key)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) requestToken(ctx context.Context, reg *lti.Registration, scopes []string, key string) (string, error) {
	assertion, err := c.clientAssertion(reg)
	if err != nil {
		return "", err
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_assertion_type", clientAssertionType)
	form.Set("client_assertion", assertion)
	form.Set("scope", strings.Join(scopes, " "))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.AccessTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request access token")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("access token endpoint returned status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode access token response")
	}
	if out.AccessToken == "" {
		return "", errors.New("access token response has no access_token")
	}

	expires := c.clock.Now().Add(time.Duration(out.ExpiresIn)*time.Second - expiryLeeway)
	c.mu.Lock()
	c.cache[key] = cachedToken{value: out.AccessToken, expires: expires}
	c.mu.Unlock()
	logger.Debug("serviceclient: obtained token client_id=%s expires_in=%d", reg.ClientID, out.ExpiresIn)
	return out.AccessToken, nil
}

func (c *Client) forget(reg *lti.Registration, scopes []string) {
	c.mu.Lock()
	delete(c.cache, cacheKey(reg, scopes))
	c.mu.Unlock()
}

func (c *Client) clientAssertion(reg *lti.Registration) (string, error) {
	if c.keys == nil {
		return "", errors.New("tool key pair not configured")
	}
	now := c.clock.Now()
	tok, err := jwt.NewBuilder().
		Issuer(reg.ClientID).
		Subject(reg.ClientID).
		Audience([]string{reg.AccessTokenURL}).
		IssuedAt(now).
		Expiration(now.Add(assertionTTL)).
		JwtID(uuid.NewString()).
		Build()
	if err != nil {
		return "", errors.Wrap(err, "build client assertion")
	}
	hdrs := jws.NewHeaders()
	_ = hdrs.Set(jws.KeyIDKey, c.keys.Kid())
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, c.keys.PrivateKey(), jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return "", errors.Wrap(err, "sign client assertion")
	}
	return string(signed), nil
}

func cacheKey(reg *lti.Registration, scopes []string) string {
	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	return reg.ClientID + "|" + reg.AccessTokenURL + "|" + strings.Join(sorted, " ")
}
