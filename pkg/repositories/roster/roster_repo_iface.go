package roster

import (
	"context"
	"time"
)

// Context is a course whose roster is served over NRPS.
type Context struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member represents an NRPS membership in a context.
// Roles follow LTI role URIs; store as array of strings.
// Status can be Active, Inactive or Deleted.
type Member struct {
	UserID             string    `json:"user_id"`
	Name               string    `json:"name,omitempty"`
	GivenName          string    `json:"given_name,omitempty"`
	FamilyName         string    `json:"family_name,omitempty"`
	MiddleName         string    `json:"middle_name,omitempty"`
	Email              string    `json:"email,omitempty"`
	Picture            string    `json:"picture,omitempty"`
	Locale             string    `json:"locale,omitempty"`
	LISPersonSourcedID string    `json:"lis_person_sourcedid,omitempty"`
	Roles              []string  `json:"roles,omitempty"`
	Status             string    `json:"status,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Filter narrows a roster listing. Empty fields do not filter.
type Filter struct {
	ContextID string
	// ResourceLinkID, when set, restricts the listing to members assigned to
	// that link. A set but empty id matches nobody.
	ResourceLinkID *string
	// Role matches a full role URI or its short name ("Learner").
	Role string
}

type Repository interface {
	UpsertContext(ctx context.Context, c *Context) error
	// GetContext returns nil when the context is unknown.
	GetContext(ctx context.Context, contextID string) (*Context, error)
	// ListMembersPage returns members matching f with pagination,
	// along with the total count of matching members.
	ListMembersPage(ctx context.Context, f Filter, offset, limit int) ([]*Member, int, error)
	UpsertMember(ctx context.Context, contextID string, m *Member) error
	DeleteMember(ctx context.Context, contextID, userID string) error
	// AssignResourceLink makes a context member part of a resource link roster.
	AssignResourceLink(ctx context.Context, contextID, resourceLinkID, userID string) error
	Disconnect()
}
