package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quipper/lti/nrps/pkg/lti"
	"github.com/quipper/lti/nrps/pkg/lti/serviceclient"
	"github.com/quipper/lti/nrps/pkg/nrps"
)

type MockServiceClient struct {
	mock.Mock
}

func (m *MockServiceClient) Request(ctx context.Context, reg *lti.Registration, method, url string, opts serviceclient.RequestOptions, scopes []string) (*serviceclient.Response, error) {
	args := m.Called(ctx, reg, method, url, opts, scopes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*serviceclient.Response), args.Error(1)
}

const containerBody = `{"id":"https://lms.example/nrps","context":{"id":"ctx-1","label":"CS101"},"members":[{"user_id":"u1","roles":["Learner"]},{"user_id":"u2"}]}`

var (
	testRegistration = &lti.Registration{ClientID: "tool-1", AccessTokenURL: "https://lms.example/token"}
	acceptHeader     = serviceclient.RequestOptions{Headers: map[string]string{"Accept": nrps.ContentTypeMembership}}
	readonlyScopes   = []string{nrps.ScopeMembershipReadonly}
)

func TestBuildEndpointURL(t *testing.T) {
	str := func(s string) *string { return &s }
	num := func(n int) *int { return &n }

	tests := []struct {
		name string
		base string
		q    query
		want string
	}{
		{name: "no params", base: "https://lms.example/nrps", want: "https://lms.example/nrps"},
		{name: "role and limit", base: "https://lms.example/nrps", q: query{role: str("Learner"), limit: num(10)}, want: "https://lms.example/nrps?role=Learner&limit=10"},
		{name: "all params", base: "https://lms.example/nrps", q: query{rlid: str("rl-1"), role: str("Instructor"), limit: num(5)}, want: "https://lms.example/nrps?rlid=rl-1&role=Instructor&limit=5"},
		{name: "existing query", base: "https://lms.example/nrps?ctx=1", q: query{rlid: str("rl-1")}, want: "https://lms.example/nrps?ctx=1&rlid=rl-1"},
		{name: "limit only", base: "https://lms.example/nrps", q: query{limit: num(0)}, want: "https://lms.example/nrps?limit=0"},
		{
			name: "encoded values",
			base: "https://lms.example/nrps",
			q:    query{rlid: str("rl 1&x"), role: str("http://purl.imsglobal.org/vocab/lis/v2/membership#Learner")},
			want: "https://lms.example/nrps?rlid=rl+1%26x&role=http%3A%2F%2Fpurl.imsglobal.org%2Fvocab%2Flis%2Fv2%2Fmembership%23Learner",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildEndpointURL(tt.base, tt.q))
		})
	}
}

func TestClient_GetContextMembership(t *testing.T) {
	transport := new(MockServiceClient)
	header := http.Header{}
	header.Set("Link", `<https://lms.example/nrps?offset=2&limit=2>; rel="next"`)
	transport.On("Request", mock.Anything, testRegistration, http.MethodGet, "https://lms.example/nrps?role=Learner&limit=2", acceptHeader, readonlyScopes).
		Return(&serviceclient.Response{StatusCode: http.StatusOK, Header: header, Body: []byte(containerBody)}, nil)

	m, err := New(transport).GetContextMembership(context.Background(), testRegistration,
		lti.NewNrpsClaim("https://lms.example/nrps"), WithRole("Learner"), WithLimit(2))
	require.NoError(t, err)

	assert.Equal(t, "https://lms.example/nrps", m.Identifier())
	assert.Equal(t, &nrps.Context{ID: "ctx-1", Label: "CS101"}, m.Context())
	assert.Equal(t, 2, m.Members().Count())
	assert.Equal(t, `<https://lms.example/nrps?offset=2&limit=2>; rel="next"`, m.RelationLink())
	transport.AssertExpectations(t)
}

func TestClient_GetResourceLinkMembership(t *testing.T) {
	transport := new(MockServiceClient)
	transport.On("Request", mock.Anything, testRegistration, http.MethodGet, "https://lms.example/nrps?rlid=rl-1", acceptHeader, readonlyScopes).
		Return(&serviceclient.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(containerBody)}, nil)

	m, err := New(transport).GetResourceLinkMembership(context.Background(), testRegistration,
		lti.NewNrpsClaim("https://lms.example/nrps"), &lti.ResourceLinkClaim{ID: "rl-1"})
	require.NoError(t, err)

	assert.False(t, m.HasRelationLink())
	assert.True(t, m.Members().Has("u1"))
	transport.AssertExpectations(t)
}

func TestClient_GetResourceLinkMembership_RequiresLink(t *testing.T) {
	transport := new(MockServiceClient)

	_, err := New(transport).GetResourceLinkMembership(context.Background(), testRegistration,
		lti.NewNrpsClaim("https://lms.example/nrps"), nil)
	require.Error(t, err)
	assert.True(t, nrps.IsKind(err, nrps.ErrorKindMembershipRetrievalFailed))
	transport.AssertNotCalled(t, "Request", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name       string
		resp       *serviceclient.Response
		err        error
		resource   bool
		wantPrefix string
		malformed  bool
	}{
		{name: "transport error", err: errors.New("connection refused"), wantPrefix: "cannot get context membership: connection refused"},
		{name: "transport error on resource link", err: errors.New("unexpected status 401"), resource: true, wantPrefix: "cannot get resource link membership: unexpected status 401"},
		{name: "malformed body", resp: &serviceclient.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(`{"members":"nope"}`)}, wantPrefix: "cannot get context membership: ", malformed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockServiceClient)
			transport.On("Request", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tt.resp, tt.err)
			c := New(transport)
			claim := lti.NewNrpsClaim("https://lms.example/nrps")

			var err error
			if tt.resource {
				_, err = c.GetResourceLinkMembership(context.Background(), testRegistration, claim, &lti.ResourceLinkClaim{ID: "rl-1"})
			} else {
				_, err = c.GetContextMembership(context.Background(), testRegistration, claim)
			}
			require.Error(t, err)
			assert.True(t, nrps.IsKind(err, nrps.ErrorKindMembershipRetrievalFailed))
			assert.Contains(t, err.Error(), tt.wantPrefix)
			assert.Equal(t, tt.malformed, nrps.IsKind(err, nrps.ErrorKindMalformedPayload))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestNextPageURL(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
		ok   bool
	}{
		{name: "next", link: `<https://lms.example/nrps?offset=10>; rel="next"`, want: "https://lms.example/nrps?offset=10", ok: true},
		{name: "several relations", link: `<https://a/prev>; rel="prev", <https://a/next>; rel="next"`, want: "https://a/next", ok: true},
		{name: "unquoted", link: `<https://a/next>; rel=next`, want: "https://a/next", ok: true},
		{name: "only differences", link: `<https://a/diff>; rel="differences"`, ok: false},
		{name: "empty", link: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextPageURL(tt.link)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
