package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/SscSPs/brokerage_sync_app/internal/apperrors"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	"github.com/SscSPs/brokerage_sync_app/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockCredentialStore is a mock type for the CredentialStore interface
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) Read(ctx context.Context) (map[string]string, clients.StoreVersion, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(map[string]string), args.Get(1).(clients.StoreVersion), args.Error(2)
}

func (m *MockCredentialStore) Write(ctx context.Context, tokens map[string]string, version clients.StoreVersion) error {
	args := m.Called(ctx, tokens, version)
	return args.Error(0)
}

// --- Test Suite Setup ---

type RotationServiceTestSuite struct {
	suite.Suite
	mockStore *MockCredentialStore
	service   *services.CredentialRotationService
	ctx       context.Context
}

func (suite *RotationServiceTestSuite) SetupTest() {
	suite.mockStore = new(MockCredentialStore)
	suite.service = services.NewCredentialRotationService(suite.mockStore)
	suite.ctx = context.Background()
}

// --- Test Cases ---

func (suite *RotationServiceTestSuite) TestPersistRotations_EmptyIsNoOp() {
	err := suite.service.PersistRotations(suite.ctx, nil)

	assert.NoError(suite.T(), err)
	suite.mockStore.AssertNotCalled(suite.T(), "Read", mock.Anything)
	suite.mockStore.AssertNotCalled(suite.T(), "Write", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RotationServiceTestSuite) TestPersistRotations_MergesUntouchedGroups() {
	current := map[string]string{"primary": "old-a", "spouse": "old-b"}
	suite.mockStore.On("Read", suite.ctx).Return(current, clients.StoreVersion(3), nil)
	suite.mockStore.On("Write", suite.ctx, map[string]string{
		"primary": "new-a",
		"spouse":  "old-b",
	}, clients.StoreVersion(3)).Return(nil)

	err := suite.service.PersistRotations(suite.ctx, map[string]string{"primary": "new-a"})

	assert.NoError(suite.T(), err)
	suite.mockStore.AssertExpectations(suite.T())
}

func (suite *RotationServiceTestSuite) TestPersistRotations_ReadFailureAborts() {
	suite.mockStore.On("Read", suite.ctx).Return(nil, clients.StoreVersion(0), fmt.Errorf("store corrupt"))

	err := suite.service.PersistRotations(suite.ctx, map[string]string{"primary": "new-a"})

	var persistErr *apperrors.PersistError
	assert.ErrorAs(suite.T(), err, &persistErr)
	assert.Equal(suite.T(), "read", persistErr.Op)
	suite.mockStore.AssertNotCalled(suite.T(), "Write", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RotationServiceTestSuite) TestPersistRotations_WriteFailureIsPersistError() {
	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{}, clients.StoreVersion(1), nil)
	suite.mockStore.On("Write", suite.ctx, mock.Anything, clients.StoreVersion(1)).Return(apperrors.ErrConflict)

	err := suite.service.PersistRotations(suite.ctx, map[string]string{"primary": "new-a"})

	var persistErr *apperrors.PersistError
	assert.ErrorAs(suite.T(), err, &persistErr)
	assert.Equal(suite.T(), "write", persistErr.Op)
	assert.ErrorIs(suite.T(), err, apperrors.ErrConflict)
}

func (suite *RotationServiceTestSuite) TestSeedMissing_EmptyBootstrapIsNoOp() {
	err := suite.service.SeedMissing(suite.ctx, []string{"primary"}, "")

	assert.NoError(suite.T(), err)
	suite.mockStore.AssertNotCalled(suite.T(), "Read", mock.Anything)
}

func (suite *RotationServiceTestSuite) TestSeedMissing_SeedsUnstoredGroup() {
	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{}, clients.StoreVersion(0), nil)
	suite.mockStore.On("Write", suite.ctx, map[string]string{"primary": "boot-1"}, clients.StoreVersion(0)).Return(nil)

	err := suite.service.SeedMissing(suite.ctx, []string{"primary"}, "boot-1")

	assert.NoError(suite.T(), err)
	suite.mockStore.AssertExpectations(suite.T())
}

func (suite *RotationServiceTestSuite) TestSeedMissing_NeverOverwritesStoredToken() {
	// The stored token is the live one; the configured bootstrap was already
	// consumed on some earlier run.
	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{"primary": "live-7"}, clients.StoreVersion(5), nil)

	err := suite.service.SeedMissing(suite.ctx, []string{"primary"}, "boot-1")

	assert.NoError(suite.T(), err)
	suite.mockStore.AssertNotCalled(suite.T(), "Write", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RotationServiceTestSuite) TestSeedMissing_BareTokenCannotSeedSeveralGroups() {
	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{}, clients.StoreVersion(0), nil)

	err := suite.service.SeedMissing(suite.ctx, []string{"primary", "spouse"}, "boot-1")

	assert.ErrorContains(suite.T(), err, "cannot seed 2 groups")
	suite.mockStore.AssertNotCalled(suite.T(), "Write", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RotationServiceTestSuite) TestSeedMissing_TokenMapSeedsPerGroup() {
	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{"primary": "live-7"}, clients.StoreVersion(5), nil)
	suite.mockStore.On("Write", suite.ctx, map[string]string{
		"primary": "live-7",
		"spouse":  "boot-s",
	}, clients.StoreVersion(5)).Return(nil)

	err := suite.service.SeedMissing(suite.ctx, []string{"primary", "spouse"}, `{"primary": "boot-p", "spouse": "boot-s"}`)

	assert.NoError(suite.T(), err)
	suite.mockStore.AssertExpectations(suite.T())
}

func (suite *RotationServiceTestSuite) TestSeedMissing_TokenMapMustNameAnUnseededGroup() {
	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{}, clients.StoreVersion(0), nil)

	err := suite.service.SeedMissing(suite.ctx, []string{"primary"}, `{"other": "boot-o"}`)

	assert.ErrorContains(suite.T(), err, "names none of the unseeded groups")
}

func TestRotationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RotationServiceTestSuite))
}
