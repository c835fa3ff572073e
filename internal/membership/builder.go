// Package membership builds NRPS memberships from the local roster store.
package membership

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/quipper/lti/nrps/pkg/common/logger"
	"github.com/quipper/lti/nrps/pkg/lti"
	"github.com/quipper/lti/nrps/pkg/nrps"
	"github.com/quipper/lti/nrps/pkg/nrps/server"
	rosterRepo "github.com/quipper/lti/nrps/pkg/repositories/roster"
)

// Scope is the request-bound part of a membership: which context is asked
// for and the absolute URL it was asked at.
type Scope struct {
	ContextID    string
	ContainerURL string
}

type scopeKey struct{}

// WithScope attaches s to ctx for the builder.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func ScopeFrom(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}

// RosterBuilder implements server.Builder over a roster repository.
type RosterBuilder struct {
	roster          rosterRepo.Repository
	defaultPageSize int
	maxPageSize     int
}

var _ server.Builder = (*RosterBuilder)(nil)

func NewRosterBuilder(roster rosterRepo.Repository, defaultPageSize, maxPageSize int) *RosterBuilder {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &RosterBuilder{roster: roster, defaultPageSize: defaultPageSize, maxPageSize: maxPageSize}
}

func (b *RosterBuilder) BuildContextMembership(ctx context.Context, reg *lti.Registration, role *string, limit, offset *int) (*nrps.Membership, error) {
	return b.build(ctx, reg, nil, role, limit, offset)
}

func (b *RosterBuilder) BuildResourceLinkMembership(ctx context.Context, reg *lti.Registration, rlid string, role *string, limit, offset *int) (*nrps.Membership, error) {
	return b.build(ctx, reg, &rlid, role, limit, offset)
}

func (b *RosterBuilder) build(ctx context.Context, reg *lti.Registration, rlid, role *string, limit, offset *int) (*nrps.Membership, error) {
	scope, ok := ScopeFrom(ctx)
	if !ok || scope.ContextID == "" {
		return nil, errors.New("membership scope missing from request context")
	}

	pageSize := b.defaultPageSize
	if limit != nil && *limit > 0 {
		pageSize = min(*limit, b.maxPageSize)
	}
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
	}
	filter := rosterRepo.Filter{ContextID: scope.ContextID, ResourceLinkID: rlid}
	if role != nil {
		filter.Role = *role
	}

	c, err := b.roster.GetContext(ctx, scope.ContextID)
	if err != nil {
		return nil, err
	}
	nctx := &nrps.Context{ID: scope.ContextID}
	if c != nil {
		nctx.Label = c.Label
		nctx.Title = c.Title
	}

	page, total, err := b.roster.ListMembersPage(ctx, filter, start, pageSize)
	if err != nil {
		return nil, err
	}
	members := nrps.NewMemberCollection()
	for _, m := range page {
		members.Add(toNrpsMember(m))
	}

	membership, err := nrps.NewMembership(containerID(scope.ContainerURL), nctx, members)
	if err != nil {
		return nil, err
	}
	if start+pageSize < total {
		next, err := pageURL(scope.ContainerURL, start+pageSize, pageSize)
		if err != nil {
			return nil, err
		}
		membership = membership.WithRelationLink("<" + next + `>; rel="next"`)
	}
	logger.Debug("membership: built context=%s resource_link=%t client_id=%s offset=%d limit=%d total=%d",
		scope.ContextID, rlid != nil, reg.ClientID, start, pageSize, total)
	return membership, nil
}

func toNrpsMember(m *rosterRepo.Member) nrps.Member {
	return nrps.Member{
		UserID:             m.UserID,
		Name:               m.Name,
		GivenName:          m.GivenName,
		FamilyName:         m.FamilyName,
		MiddleName:         m.MiddleName,
		Email:              m.Email,
		Picture:            m.Picture,
		Locale:             m.Locale,
		LISPersonSourcedID: m.LISPersonSourcedID,
		Status:             m.Status,
		Roles:              m.Roles,
	}
}

// containerID strips the query from the request URL.
func containerID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// pageURL keeps the request filters and moves offset/limit.
func pageURL(raw string, offset, limit int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "parse container url")
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
