// Package nrps holds the Names and Role Provisioning Service model:
// members, the membership container and its JSON wire format.
//
// See https://www.imsglobal.org/spec/lti-nrps/v2p0
package nrps

const (
	// ServiceName identifies NRPS among LTI services.
	ServiceName = "nrps"
	// ScopeMembershipReadonly is the OAuth2 scope required to read memberships.
	ScopeMembershipReadonly = "https://purl.imsglobal.org/spec/lti-nrps/scope/contextmembership.readonly"
	// ContentTypeMembership is the media type of the membership container.
	ContentTypeMembership = "application/vnd.ims.lti-nrps.v2.membershipcontainer+json"
	// HeaderLink carries the pagination relation.
	HeaderLink = "Link"
)

// Member status values.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
	StatusDeleted  = "Deleted"
)
