package lti

import (
	"context"

	"github.com/quipper/lti/nrps/pkg/lti"
)

// Repository defines storage operations for tool registrations.
type Repository interface {
	// Health is a simple check to verify repository works.
	Health() error
	// Disconnect gracefully closes resources. Should be safe to call on shutdown.
	Disconnect()
	// CreateRegistration inserts a registration, assigning its ID when empty.
	CreateRegistration(ctx context.Context, reg *lti.Registration) error
	// ListRegistrations returns all registrations.
	ListRegistrations(ctx context.Context) ([]*lti.Registration, error)
	// GetRegistration returns a registration by ID, nil when absent.
	GetRegistration(ctx context.Context, id string) (*lti.Registration, error)
	// GetRegistrationByClientID returns a registration by client_id, nil when absent.
	GetRegistrationByClientID(ctx context.Context, clientID string) (*lti.Registration, error)
	// DeleteRegistration deletes a registration by ID.
	DeleteRegistration(ctx context.Context, id string) error
}
