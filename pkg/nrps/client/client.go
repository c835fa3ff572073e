// Package client retrieves memberships from a platform NRPS endpoint.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/quipper/lti/nrps/pkg/common/logger"
	"github.com/quipper/lti/nrps/pkg/lti"
	"github.com/quipper/lti/nrps/pkg/lti/serviceclient"
	"github.com/quipper/lti/nrps/pkg/nrps"
)

// Client is the tool side of the membership service.
type Client struct {
	transport  serviceclient.ServiceClient
	serializer *nrps.Serializer
}

// New returns a Client sending requests through transport.
func New(transport serviceclient.ServiceClient) *Client {
	return &Client{transport: transport, serializer: nrps.NewSerializer()}
}

// Option narrows a membership request.
type Option func(*query)

// WithRole filters members by role (full URI or short name).
func WithRole(role string) Option {
	return func(q *query) { q.role = &role }
}

// WithLimit caps the number of members per page.
func WithLimit(limit int) Option {
	return func(q *query) { q.limit = &limit }
}

type query struct {
	rlid  *string
	role  *string
	limit *int
}

// GetContextMembership retrieves the roster of the launch context.
//
// See https://www.imsglobal.org/spec/lti-nrps/v2p0#context-membership
func (c *Client) GetContextMembership(ctx context.Context, reg *lti.Registration, claim *lti.NrpsClaim, opts ...Option) (*nrps.Membership, error) {
	q := newQuery(opts)
	m, err := c.getMembership(ctx, reg, claim, q)
	if err != nil {
		return nil, nrps.WrapError(nrps.ErrorKindMembershipRetrievalFailed, err, "cannot get context membership")
	}
	return m, nil
}

// GetResourceLinkMembership retrieves the roster of one resource link.
//
// See https://www.imsglobal.org/spec/lti-nrps/v2p0#resource-link-membership-service
func (c *Client) GetResourceLinkMembership(ctx context.Context, reg *lti.Registration, claim *lti.NrpsClaim, link *lti.ResourceLinkClaim, opts ...Option) (*nrps.Membership, error) {
	if link == nil {
		return nil, nrps.NewError(nrps.ErrorKindMembershipRetrievalFailed, "cannot get resource link membership: resource link claim is required")
	}
	q := newQuery(opts)
	q.rlid = &link.ID
	m, err := c.getMembership(ctx, reg, claim, q)
	if err != nil {
		return nil, nrps.WrapError(nrps.ErrorKindMembershipRetrievalFailed, err, "cannot get resource link membership")
	}
	return m, nil
}

func newQuery(opts []Option) query {
	var q query
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

func (c *Client) getMembership(ctx context.Context, reg *lti.Registration, claim *lti.NrpsClaim, q query) (*nrps.Membership, error) {
	if reg == nil || claim == nil {
		return nil, nrps.NewError(nrps.ErrorKindMembershipRetrievalFailed, "registration and nrps claim are required")
	}
	endpoint := buildEndpointURL(claim.ContextMembershipsURL, q)
	logger.Debug("nrps client: GET %s client_id=%s", endpoint, reg.ClientID)

	resp, err := c.transport.Request(ctx, reg, http.MethodGet, endpoint,
		serviceclient.RequestOptions{Headers: map[string]string{"Accept": nrps.ContentTypeMembership}},
		[]string{nrps.ScopeMembershipReadonly},
	)
	if err != nil {
		return nil, err
	}

	membership, err := c.serializer.Deserialize(resp.Body)
	if err != nil {
		return nil, err
	}
	if link := resp.Header.Get(nrps.HeaderLink); link != "" {
		membership = membership.WithRelationLink(link)
	}
	return membership, nil
}

// buildEndpointURL appends rlid, role and limit to base, in that order,
// skipping absent ones.
func buildEndpointURL(base string, q query) string {
	u := base
	appendParam := func(kv string) {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u = u + sep + kv
	}
	if q.rlid != nil {
		appendParam("rlid=" + url.QueryEscape(*q.rlid))
	}
	if q.role != nil {
		appendParam("role=" + url.QueryEscape(*q.role))
	}
	if q.limit != nil {
		appendParam("limit=" + strconv.Itoa(*q.limit))
	}
	return u
}
