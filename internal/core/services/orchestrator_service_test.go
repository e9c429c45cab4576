package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/apperrors"
	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	"github.com/SscSPs/brokerage_sync_app/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockAccountSyncSvc is a mock type for the AccountSyncSvc interface
type MockAccountSyncSvc struct {
	mock.Mock
}

func (m *MockAccountSyncSvc) SyncAccount(ctx context.Context, acct domain.AccountConfig, token string, window domain.Window) domain.SyncResult {
	args := m.Called(ctx, acct, token, window)
	return args.Get(0).(domain.SyncResult)
}

// MockCredentialRotationSvc is a mock type for the CredentialRotationSvc interface
type MockCredentialRotationSvc struct {
	mock.Mock
}

func (m *MockCredentialRotationSvc) PersistRotations(ctx context.Context, rotated map[string]string) error {
	args := m.Called(ctx, rotated)
	return args.Error(0)
}

func (m *MockCredentialRotationSvc) SeedMissing(ctx context.Context, groups []string, bootstrap string) error {
	args := m.Called(ctx, groups, bootstrap)
	return args.Error(0)
}

// --- Test Suite Setup ---

type OrchestratorServiceTestSuite struct {
	suite.Suite
	mockStore    *MockCredentialStore
	mockSync     *MockAccountSyncSvc
	mockRotation *MockCredentialRotationSvc
	ctx          context.Context
	now          time.Time
}

func (suite *OrchestratorServiceTestSuite) SetupTest() {
	suite.mockStore = new(MockCredentialStore)
	suite.mockSync = new(MockAccountSyncSvc)
	suite.mockRotation = new(MockCredentialRotationSvc)
	suite.ctx = context.Background()
	suite.now = time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
}

func (suite *OrchestratorServiceTestSuite) newOrchestrator(accounts []domain.AccountConfig) *services.SyncOrchestratorService {
	return services.NewSyncOrchestratorService(
		accounts, suite.mockStore, suite.mockSync, suite.mockRotation, 31,
		services.WithClock(func() time.Time { return suite.now }),
	)
}

func groupAccount(id, group string) domain.AccountConfig {
	return domain.AccountConfig{AccountID: id, GroupID: group, LedgerTarget: "asset-" + id, Currency: "cad"}
}

func okResult(accountID, nextToken string, newTxns int) domain.SyncResult {
	return domain.SyncResult{AccountID: accountID, NextToken: nextToken, NewTransactions: newTxns}
}

// --- Test Cases ---

func (suite *OrchestratorServiceTestSuite) TestRun_ChainsTokensWithinGroup() {
	acct1 := groupAccount("a1", "primary")
	acct2 := groupAccount("a2", "primary")
	orch := suite.newOrchestrator([]domain.AccountConfig{acct1, acct2})

	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{"primary": "t1"}, clients.StoreVersion(1), nil)
	suite.mockSync.On("SyncAccount", suite.ctx, acct1, "t1", mock.AnythingOfType("domain.Window")).Return(okResult("a1", "t2", 3))
	suite.mockSync.On("SyncAccount", suite.ctx, acct2, "t2", mock.AnythingOfType("domain.Window")).Return(okResult("a2", "t3", 1))
	// The last rotated token in the chain is the one the store must end up with.
	suite.mockRotation.On("PersistRotations", suite.ctx, map[string]string{"primary": "t3"}).Return(nil)

	run := orch.Run(suite.ctx)

	assert.Equal(suite.T(), domain.RunSuccess, run.Status)
	assert.Equal(suite.T(), 2, run.AccountsProcessed)
	assert.Equal(suite.T(), 4, run.TotalNew)
	assert.Equal(suite.T(), 1, run.TokensRotated)
	assert.True(suite.T(), run.CredentialsPersisted)
	suite.mockSync.AssertExpectations(suite.T())
	suite.mockRotation.AssertExpectations(suite.T())
}

func (suite *OrchestratorServiceTestSuite) TestRun_MidGroupFailureIsolated() {
	acct1 := groupAccount("a1", "primary")
	acct2 := groupAccount("a2", "primary")
	acct3 := groupAccount("a3", "primary")
	orch := suite.newOrchestrator([]domain.AccountConfig{acct1, acct2, acct3})

	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{"primary": "t1"}, clients.StoreVersion(1), nil)
	suite.mockSync.On("SyncAccount", suite.ctx, acct1, "t1", mock.AnythingOfType("domain.Window")).Return(okResult("a1", "t2", 1))
	// The middle account fails before its exchange completes: no token claimed,
	// so the next account retries with the still-valid current token.
	suite.mockSync.On("SyncAccount", suite.ctx, acct2, "t2", mock.AnythingOfType("domain.Window")).
		Return(domain.SyncResult{AccountID: "a2", Err: fmt.Errorf("fetching activities: %w", apperrors.ErrAuth)})
	suite.mockSync.On("SyncAccount", suite.ctx, acct3, "t2", mock.AnythingOfType("domain.Window")).Return(okResult("a3", "t3", 2))
	suite.mockRotation.On("PersistRotations", suite.ctx, map[string]string{"primary": "t3"}).Return(nil)

	run := orch.Run(suite.ctx)

	assert.Equal(suite.T(), domain.RunPartial, run.Status)
	assert.NoError(suite.T(), run.Accounts["a1"].Err)
	assert.ErrorIs(suite.T(), run.Accounts["a2"].Err, apperrors.ErrAuth)
	assert.NoError(suite.T(), run.Accounts["a3"].Err)
	suite.mockSync.AssertExpectations(suite.T())
}

func (suite *OrchestratorServiceTestSuite) TestRun_IndependentGroups() {
	acct1 := groupAccount("a1", "primary")
	acct2 := groupAccount("a2", "spouse")
	orch := suite.newOrchestrator([]domain.AccountConfig{acct1, acct2})

	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{"primary": "p1", "spouse": "s1"}, clients.StoreVersion(1), nil)
	suite.mockSync.On("SyncAccount", suite.ctx, acct1, "p1", mock.AnythingOfType("domain.Window")).Return(okResult("a1", "p2", 1))
	suite.mockSync.On("SyncAccount", suite.ctx, acct2, "s1", mock.AnythingOfType("domain.Window")).Return(okResult("a2", "s2", 1))
	suite.mockRotation.On("PersistRotations", suite.ctx, map[string]string{"primary": "p2", "spouse": "s2"}).Return(nil)

	run := orch.Run(suite.ctx)

	assert.Equal(suite.T(), domain.RunSuccess, run.Status)
	assert.Equal(suite.T(), 2, run.TokensRotated)
	suite.mockRotation.AssertExpectations(suite.T())
}

func (suite *OrchestratorServiceTestSuite) TestRun_MissingGroupCredential() {
	acct1 := groupAccount("a1", "primary")
	acct2 := groupAccount("a2", "spouse")
	orch := suite.newOrchestrator([]domain.AccountConfig{acct1, acct2})

	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{"primary": "p1"}, clients.StoreVersion(1), nil)
	suite.mockSync.On("SyncAccount", suite.ctx, acct1, "p1", mock.AnythingOfType("domain.Window")).Return(okResult("a1", "p2", 1))
	suite.mockRotation.On("PersistRotations", suite.ctx, map[string]string{"primary": "p2"}).Return(nil)

	run := orch.Run(suite.ctx)

	assert.Equal(suite.T(), domain.RunPartial, run.Status)
	assert.ErrorIs(suite.T(), run.Accounts["a2"].Err, apperrors.ErrAuth)
	suite.mockSync.AssertNotCalled(suite.T(), "SyncAccount", mock.Anything, acct2, mock.Anything, mock.Anything)
}

func (suite *OrchestratorServiceTestSuite) TestRun_StoreReadFailureFailsEverything() {
	acct1 := groupAccount("a1", "primary")
	orch := suite.newOrchestrator([]domain.AccountConfig{acct1})

	suite.mockStore.On("Read", suite.ctx).Return(nil, clients.StoreVersion(0), fmt.Errorf("bucket unreachable"))
	suite.mockRotation.On("PersistRotations", suite.ctx, map[string]string(nil)).Return(nil)

	run := orch.Run(suite.ctx)

	assert.Equal(suite.T(), domain.RunFailure, run.Status)
	assert.Error(suite.T(), run.Accounts["a1"].Err)
	assert.Equal(suite.T(), 0, run.TokensRotated)
	suite.mockSync.AssertNotCalled(suite.T(), "SyncAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *OrchestratorServiceTestSuite) TestRun_PersistFailureOutranksAccountSuccess() {
	acct1 := groupAccount("a1", "primary")
	orch := suite.newOrchestrator([]domain.AccountConfig{acct1})

	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{"primary": "t1"}, clients.StoreVersion(1), nil)
	suite.mockSync.On("SyncAccount", suite.ctx, acct1, "t1", mock.AnythingOfType("domain.Window")).Return(okResult("a1", "t2", 5))
	suite.mockRotation.On("PersistRotations", suite.ctx, map[string]string{"primary": "t2"}).
		Return(&apperrors.PersistError{Op: "write", Err: apperrors.ErrConflict})

	run := orch.Run(suite.ctx)

	assert.Equal(suite.T(), domain.RunFailure, run.Status)
	assert.False(suite.T(), run.CredentialsPersisted)
	assert.Equal(suite.T(), 1, run.TokensRotated)
	assert.Error(suite.T(), run.PersistErr)
	assert.Equal(suite.T(), 5, run.TotalNew)
}

func (suite *OrchestratorServiceTestSuite) TestRun_UnrotatedTokenNotPersisted() {
	acct1 := groupAccount("a1", "primary")
	orch := suite.newOrchestrator([]domain.AccountConfig{acct1})

	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{"primary": "t1"}, clients.StoreVersion(1), nil)
	suite.mockSync.On("SyncAccount", suite.ctx, acct1, "t1", mock.AnythingOfType("domain.Window")).
		Return(domain.SyncResult{AccountID: "a1", Err: fmt.Errorf("fetching activities: %w", apperrors.ErrAuth)})
	suite.mockRotation.On("PersistRotations", suite.ctx, map[string]string{}).Return(nil)

	run := orch.Run(suite.ctx)

	assert.Equal(suite.T(), domain.RunFailure, run.Status)
	assert.Equal(suite.T(), 0, run.TokensRotated)
	suite.mockRotation.AssertExpectations(suite.T())
}

func (suite *OrchestratorServiceTestSuite) TestRun_RecordsHistory() {
	acct1 := groupAccount("a1", "primary")
	history := new(MockRunHistory)
	history.On("RecordRun", suite.ctx, mock.AnythingOfType("domain.RunResult")).Return(nil)

	orch := services.NewSyncOrchestratorService(
		[]domain.AccountConfig{acct1}, suite.mockStore, suite.mockSync, suite.mockRotation, 31,
		services.WithClock(func() time.Time { return suite.now }),
		services.WithHistory(history),
	)

	suite.mockStore.On("Read", suite.ctx).Return(map[string]string{"primary": "t1"}, clients.StoreVersion(1), nil)
	suite.mockSync.On("SyncAccount", suite.ctx, acct1, "t1", mock.AnythingOfType("domain.Window")).Return(okResult("a1", "t2", 1))
	suite.mockRotation.On("PersistRotations", suite.ctx, map[string]string{"primary": "t2"}).Return(nil)

	orch.Run(suite.ctx)

	history.AssertExpectations(suite.T())
}

func TestOrchestratorServiceTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorServiceTestSuite))
}
