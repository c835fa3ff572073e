package validator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipper/lti/nrps/pkg/common/keys"
)

type stubService struct {
	err    error
	called bool
}

func (s *stubService) ServiceName() string        { return "stub" }
func (s *stubService) AllowedMethods() []string   { return []string{http.MethodGet, http.MethodPost} }
func (s *stubService) AllowedContentType() string { return "application/vnd.stub+json" }
func (s *stubService) AllowedScopes() []string    { return []string{testScope} }
func (s *stubService) HandleValidatedServiceRequest(w http.ResponseWriter, _ *http.Request, res *Result) error {
	s.called = true
	if s.err != nil {
		return s.err
	}
	_, _ = w.Write([]byte(res.Registration.ClientID))
	return nil
}

func TestServiceServer(t *testing.T) {
	kp, err := keys.Generate("platform")
	require.NoError(t, err)
	v := New(StaticKeySet(kp.PublicSet()), registrations{"tool-1": {ClientID: "tool-1"}}, "")
	good := "Bearer " + sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
		return b.Subject("tool-1").Claim("scope", testScope)
	})
	weak := "Bearer " + sign(t, kp, func(b *jwt.Builder) *jwt.Builder {
		return b.Subject("tool-1").Claim("scope", "other")
	})

	tests := []struct {
		name        string
		method      string
		accept      string
		contentType string
		auth        string
		handlerErr  error
		status      int
		called      bool
	}{
		{name: "get ok", method: http.MethodGet, accept: "application/vnd.stub+json", auth: good, status: http.StatusOK, called: true},
		{name: "post ok", method: http.MethodPost, contentType: "application/vnd.stub+json; charset=utf-8", auth: good, status: http.StatusOK, called: true},
		{name: "delete", method: http.MethodDelete, auth: good, status: http.StatusMethodNotAllowed},
		{name: "get bad accept", method: http.MethodGet, accept: "text/html", auth: good, status: http.StatusNotAcceptable},
		{name: "post bad content type", method: http.MethodPost, contentType: "application/json", auth: good, status: http.StatusUnsupportedMediaType},
		{name: "no token", method: http.MethodGet, accept: "application/vnd.stub+json", status: http.StatusUnauthorized},
		{name: "weak token", method: http.MethodGet, accept: "application/vnd.stub+json", auth: weak, status: http.StatusForbidden},
		{name: "handler failure", method: http.MethodGet, accept: "application/vnd.stub+json", auth: good, handlerErr: errors.New("boom"), status: http.StatusInternalServerError, called: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &stubService{err: tt.handlerErr}
			s := NewServiceServer(v, h)
			r := httptest.NewRequest(tt.method, "/svc", strings.NewReader("{}"))
			r.Header.Set("Accept", tt.accept)
			r.Header.Set("Content-Type", tt.contentType)
			if tt.auth != "" {
				r.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			s.ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.called, h.called)
			switch tt.status {
			case http.StatusOK:
				assert.Equal(t, "tool-1", w.Body.String())
			case http.StatusMethodNotAllowed:
				assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
			case http.StatusUnauthorized, http.StatusForbidden:
				assert.Contains(t, w.Header().Get("WWW-Authenticate"), `realm="lti-stub"`)
			}
		})
	}
}
