package validator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipper/lti/nrps/pkg/common/keys"
	"github.com/quipper/lti/nrps/pkg/lti"
)

const testScope = "https://purl.imsglobal.org/spec/lti-nrps/scope/contextmembership.readonly"

type registrations map[string]*lti.Registration

func (r registrations) GetRegistrationByClientID(_ context.Context, clientID string) (*lti.Registration, error) {
	if clientID == "broken" {
		return nil, errors.New("db down")
	}
	return r[clientID], nil
}

func sign(t *testing.T, kp *keys.KeyPair, build func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()
	b := jwt.NewBuilder().IssuedAt(time.Now()).Expiration(time.Now().Add(time.Minute))
	tok, err := build(b).Build()
	require.NoError(t, err)
	hdrs := jws.NewHeaders()
	require.NoError(t, hdrs.Set(jws.KeyIDKey, kp.Kid()))
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, kp.PrivateKey(), jws.WithProtectedHeaders(hdrs)))
	require.NoError(t, err)
	return string(signed)
}

func TestValidate(t *testing.T) {
	kp, err := keys.Generate("platform")
	require.NoError(t, err)
	other, err := keys.Generate("platform")
	require.NoError(t, err)
	regs := registrations{"tool-1": {ID: "r1", ClientID: "tool-1"}}
	v := New(StaticKeySet(kp.PublicSet()), regs, "")

	tests := []struct {
		name    string
		auth    string
		status  int
		code    string
		wantReg string
	}{
		{name: "ok with sub", auth: "Bearer " + sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject("tool-1").Claim("scope", "openid "+testScope)
		}), wantReg: "r1"},
		{name: "ok with client_id and array scope", auth: "bearer " + sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject("someone").Claim("client_id", "tool-1").Claim("scope", []string{testScope})
		}), wantReg: "r1"},
		{name: "missing header", status: http.StatusUnauthorized, code: "invalid_request"},
		{name: "basic auth", auth: "Basic Zm9vOmJhcg==", status: http.StatusUnauthorized, code: "invalid_request"},
		{name: "wrong key", auth: "Bearer " + sign(t, other, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject("tool-1").Claim("scope", testScope)
		}), status: http.StatusUnauthorized, code: "invalid_token"},
		{name: "expired", auth: "Bearer " + sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject("tool-1").Claim("scope", testScope).Expiration(time.Now().Add(-time.Hour))
		}), status: http.StatusUnauthorized, code: "invalid_token"},
		{name: "missing scope", auth: "Bearer " + sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject("tool-1").Claim("scope", "other")
		}), status: http.StatusForbidden, code: "insufficient_scope"},
		{name: "unknown client", auth: "Bearer " + sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject("tool-9").Claim("scope", testScope)
		}), status: http.StatusUnauthorized, code: "invalid_token"},
		{name: "no client", auth: "Bearer " + sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
			return b.Claim("scope", testScope)
		}), status: http.StatusUnauthorized, code: "invalid_token"},
		{name: "lookup failure", auth: "Bearer " + sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject("broken").Claim("scope", testScope)
		}), status: http.StatusInternalServerError, code: "server_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/memberships", nil)
			if tt.auth != "" {
				r.Header.Set("Authorization", tt.auth)
			}
			res, err := v.Validate(r, []string{testScope})
			if tt.status == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.wantReg, res.Registration.ID)
				assert.Contains(t, res.Scopes, testScope)
				return
			}
			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.status, verr.Status)
			assert.Equal(t, tt.code, verr.Code)
		})
	}
}

func TestValidate_Audience(t *testing.T) {
	kp, err := keys.Generate("platform")
	require.NoError(t, err)
	regs := registrations{"tool-1": {ID: "r1", ClientID: "tool-1"}}
	v := New(StaticKeySet(kp.PublicSet()), regs, "https://platform.example/token")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
		return b.Subject("tool-1").Claim("scope", testScope).Audience([]string{"https://elsewhere"})
	}))
	_, err = v.Validate(r, []string{testScope})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, http.StatusUnauthorized, verr.Status)

	r.Header.Set("Authorization", "Bearer "+sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
		return b.Subject("tool-1").Claim("scope", testScope).Audience([]string{"https://platform.example/token"})
	}))
	_, err = v.Validate(r, []string{testScope})
	assert.NoError(t, err)
}

func TestValidate_KeySetUnavailable(t *testing.T) {
	v := New(func(context.Context) (jwk.Set, error) { return nil, errors.New("offline") }, registrations{}, "")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer x.y.z")

	_, err := v.Validate(r, []string{testScope})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, http.StatusInternalServerError, verr.Status)
}

func TestHasAnyScope(t *testing.T) {
	assert.True(t, hasAnyScope([]string{"a", "b"}, []string{"c", "b"}))
	assert.False(t, hasAnyScope([]string{"a"}, []string{"b"}))
	assert.True(t, hasAnyScope([]string{"a"}, nil))
	assert.False(t, hasAnyScope(nil, nil))
}
