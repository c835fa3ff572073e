package nrps

import "github.com/pkg/errors"

// Context describes the course a membership belongs to.
type Context struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Title string `json:"title,omitempty"`
}

// Membership binds a member collection to its context. It is read-only once
// built; the pagination relation is attached with WithRelationLink.
type Membership struct {
	id           string
	context      *Context
	members      *MemberCollection
	relationLink string
}

func NewMembership(id string, context *Context, members *MemberCollection) (*Membership, error) {
	if context == nil {
		return nil, errors.New("membership context is required")
	}
	if members == nil {
		return nil, errors.New("membership members are required")
	}
	return &Membership{id: id, context: context, members: members}, nil
}

func (m *Membership) Identifier() string { return m.id }

func (m *Membership) Context() *Context { return m.context }

func (m *Membership) Members() *MemberCollection { return m.members }

// RelationLink is the raw HTTP Link header value, empty when there is none.
func (m *Membership) RelationLink() string { return m.relationLink }

func (m *Membership) HasRelationLink() bool { return m.relationLink != "" }

// WithRelationLink returns a copy of m carrying the given Link header value.
// Context and members are shared with m.
func (m *Membership) WithRelationLink(link string) *Membership {
	cp := *m
	cp.relationLink = link
	return &cp
}
