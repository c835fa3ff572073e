package nrps

import (
	"iter"
	"slices"
)

// Member is one roster entry of a membership container.
// Roles follow LTI role URIs. Only UserID is required.
type Member struct {
	UserID             string   `json:"user_id"`
	Name               string   `json:"name,omitempty"`
	GivenName          string   `json:"given_name,omitempty"`
	FamilyName         string   `json:"family_name,omitempty"`
	MiddleName         string   `json:"middle_name,omitempty"`
	Email              string   `json:"email,omitempty"`
	Picture            string   `json:"picture,omitempty"`
	Locale             string   `json:"locale,omitempty"`
	LISPersonSourcedID string   `json:"lis_person_sourcedid,omitempty"`
	Status             string   `json:"status,omitempty"`
	Roles              []string `json:"roles,omitempty"`
}

// HasRole reports whether the member holds role, either as the exact role URI
// or as its short name (e.g. "Learner" for ".../membership#Learner").
func (m Member) HasRole(role string) bool {
	for _, r := range m.Roles {
		if RoleMatches(r, role) {
			return true
		}
	}
	return false
}

// RoleMatches compares a role URI with a requested role filter.
func RoleMatches(have, want string) bool {
	if have == want {
		return true
	}
	for i := len(have) - 1; i >= 0; i-- {
		if have[i] == '#' || have[i] == '/' {
			return have[i+1:] == want
		}
	}
	return false
}

// MemberCollection maps user ids to members. At most one member is held per
// user id: adding a member with a known id replaces the previous entry in
// place, so iteration order is first-insertion order.
type MemberCollection struct {
	members []Member
	index   map[string]int
}

func NewMemberCollection(members ...Member) *MemberCollection {
	c := &MemberCollection{index: make(map[string]int, len(members))}
	for _, m := range members {
		c.Add(m)
	}
	return c
}

// Add inserts or replaces m and returns the collection for chaining.
func (c *MemberCollection) Add(m Member) *MemberCollection {
	if c.index == nil {
		c.index = map[string]int{}
	}
	m.Roles = slices.Clone(m.Roles)
	if i, ok := c.index[m.UserID]; ok {
		c.members[i] = m
		return c
	}
	c.index[m.UserID] = len(c.members)
	c.members = append(c.members, m)
	return c
}

// Get returns the member with the given user id or a NotFound error.
func (c *MemberCollection) Get(userID string) (Member, error) {
	i, ok := c.index[userID]
	if !ok {
		return Member{}, NewError(ErrorKindNotFound, "member with user_id %s not found", userID)
	}
	return c.members[i], nil
}

func (c *MemberCollection) Has(userID string) bool {
	_, ok := c.index[userID]
	return ok
}

func (c *MemberCollection) Count() int {
	return len(c.members)
}

// All yields the members in collection order. The sequence can be ranged
// over any number of times.
func (c *MemberCollection) All() iter.Seq[Member] {
	return func(yield func(Member) bool) {
		for _, m := range c.members {
			if !yield(m) {
				return
			}
		}
	}
}

// Slice returns a copy of the members in collection order.
func (c *MemberCollection) Slice() []Member {
	return slices.Clone(c.members)
}
