package lti

const (
	ClaimNrps         = "https://purl.imsglobal.org/spec/lti-nrps/claim/namesroleservice"
	ClaimResourceLink = "https://purl.imsglobal.org/spec/lti/claim/resource_link"
)

// NrpsClaim is the names and role service claim of a launch message.
type NrpsClaim struct {
	ContextMembershipsURL string   `json:"context_memberships_url"`
	ServiceVersions       []string `json:"service_versions,omitempty"`
}

func NewNrpsClaim(membershipsURL string) *NrpsClaim {
	return &NrpsClaim{ContextMembershipsURL: membershipsURL, ServiceVersions: []string{"2.0"}}
}

// ResourceLinkClaim identifies the placement a launch came from.
type ResourceLinkClaim struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}
