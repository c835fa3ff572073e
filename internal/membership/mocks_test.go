package membership

import (
	"context"

	"github.com/stretchr/testify/mock"

	rosterRepo "github.com/quipper/lti/nrps/pkg/repositories/roster"
)

type MockRosterRepository struct {
	mock.Mock
}

func (m *MockRosterRepository) UpsertContext(ctx context.Context, c *rosterRepo.Context) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockRosterRepository) GetContext(ctx context.Context, contextID string) (*rosterRepo.Context, error) {
	args := m.Called(ctx, contextID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rosterRepo.Context), args.Error(1)
}

func (m *MockRosterRepository) ListMembersPage(ctx context.Context, f rosterRepo.Filter, offset, limit int) ([]*rosterRepo.Member, int, error) {
	args := m.Called(ctx, f, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*rosterRepo.Member), args.Int(1), args.Error(2)
}

func (m *MockRosterRepository) UpsertMember(ctx context.Context, contextID string, mem *rosterRepo.Member) error {
	return m.Called(ctx, contextID, mem).Error(0)
}

func (m *MockRosterRepository) DeleteMember(ctx context.Context, contextID, userID string) error {
	return m.Called(ctx, contextID, userID).Error(0)
}

func (m *MockRosterRepository) AssignResourceLink(ctx context.Context, contextID, resourceLinkID, userID string) error {
	return m.Called(ctx, contextID, resourceLinkID, userID).Error(0)
}

func (m *MockRosterRepository) Disconnect() {}
