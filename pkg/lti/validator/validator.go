// Package validator authenticates inbound LTI service requests: it verifies
// the OAuth2 bearer access token, checks its scopes and resolves the calling
// tool registration.
package validator

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"

	"github.com/quipper/lti/nrps/pkg/lti"
)

// KeySetFunc returns the keys access tokens are verified against.
type KeySetFunc func(ctx context.Context) (jwk.Set, error)

// StaticKeySet serves a fixed key set.
func StaticKeySet(set jwk.Set) KeySetFunc {
	return func(context.Context) (jwk.Set, error) { return set, nil }
}

// RegistrationRepository resolves registrations by OAuth2 client id.
// A nil registration with a nil error means not found.
type RegistrationRepository interface {
	GetRegistrationByClientID(ctx context.Context, clientID string) (*lti.Registration, error)
}

// Result is the outcome of a successful validation.
type Result struct {
	Registration *lti.Registration
	Token        jwt.Token
	Scopes       []string
}

// Error is a validation failure carrying the HTTP status and the RFC 6750
// error code to report.
type Error struct {
	Status      int
	Code        string
	Description string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.cause)
	}
	return e.Code + ": " + e.Description
}

func (e *Error) Unwrap() error { return e.cause }

// Validator verifies bearer access tokens.
type Validator struct {
	keySet        KeySetFunc
	registrations RegistrationRepository
	audience      string
}

// New builds a Validator. When audience is empty the aud claim is not checked.
func New(keySet KeySetFunc, registrations RegistrationRepository, audience string) *Validator {
	return &Validator{keySet: keySet, registrations: registrations, audience: audience}
}

// Validate checks the request bearer token. The token must grant at least one
// of allowedScopes; when allowedScopes is empty any scope is accepted.
func (v *Validator) Validate(r *http.Request, allowedScopes []string) (*Result, error) {
	ctx := r.Context()
	auth := r.Header.Get("Authorization")
	if auth == "" || !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return nil, &Error{Status: http.StatusUnauthorized, Code: "invalid_request", Description: "missing bearer token"}
	}
	tokStr := strings.TrimSpace(auth[len("Bearer "):])

	set, err := v.keySet(ctx)
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Code: "server_error", Description: "key set unavailable", cause: err}
	}
	opts := []jwt.ParseOption{jwt.WithKeySet(set), jwt.WithValidate(true)}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	tok, err := jwt.ParseString(tokStr, opts...)
	if err != nil {
		return nil, &Error{Status: http.StatusUnauthorized, Code: "invalid_token", Description: "expired or invalid token", cause: err}
	}

	var granted []string
	if raw, ok := tok.Get("scope"); ok {
		granted = scopeList(raw)
	}
	if !hasAnyScope(granted, allowedScopes) {
		return nil, &Error{Status: http.StatusForbidden, Code: "insufficient_scope", Description: "token does not grant " + strings.Join(allowedScopes, " ")}
	}

	clientID := tok.Subject()
	if raw, ok := tok.Get("client_id"); ok {
		if s, _ := raw.(string); s != "" {
			clientID = s
		}
	}
	if clientID == "" {
		return nil, &Error{Status: http.StatusUnauthorized, Code: "invalid_token", Description: "token has no client id"}
	}
	reg, err := v.registrations.GetRegistrationByClientID(ctx, clientID)
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Code: "server_error", Description: "registration lookup failed", cause: errors.WithStack(err)}
	}
	if reg == nil {
		return nil, &Error{Status: http.StatusUnauthorized, Code: "invalid_token", Description: "unknown client " + clientID}
	}
	return &Result{Registration: reg, Token: tok, Scopes: granted}, nil
}

// scopeList normalizes the scope claim: OAuth encodes it as a space-delimited
// string, some issuers use an array.
func scopeList(claim any) []string {
	switch s := claim.(type) {
	case string:
		return strings.Fields(s)
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, x := range s {
			if str, ok := x.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func hasAnyScope(granted, allowed []string) bool {
	if len(allowed) == 0 {
		return len(granted) > 0
	}
	for _, need := range allowed {
		for _, have := range granted {
			if have == need {
				return true
			}
		}
	}
	return false
}
