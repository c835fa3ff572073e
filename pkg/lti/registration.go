// Package lti holds the LTI 1.3 values NRPS is built on: tool registrations
// and the launch claims that carry service endpoints.
package lti

import "time"

// Registration binds a tool to a platform. The same record is used on both
// sides: a tool uses it to reach the platform token endpoint, a platform uses
// it to resolve the caller of a service request.
type Registration struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ClientID        string    `json:"client_id"`
	PlatformIssuer  string    `json:"platform_issuer"`
	AccessTokenURL  string    `json:"access_token_url"`
	PlatformJWKSURL string    `json:"platform_jwks_url,omitempty"`
	ToolJWKSURL     string    `json:"tool_jwks_url,omitempty"`
	DeploymentIDs   []string  `json:"deployment_ids,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasDeployment reports whether id is one of the registration deployments.
func (r *Registration) HasDeployment(id string) bool {
	for _, d := range r.DeploymentIDs {
		if d == id {
			return true
		}
	}
	return false
}
