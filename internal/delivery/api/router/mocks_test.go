package router

import (
	"context"
	"time"

	"clubinex/internal/domain/entity"
	"clubinex/internal/domain/service"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
)

// orNil returns the typed value at index i, or the zero value when nil was stubbed.
func orNil[T any](args mock.Arguments, i int) T {
	var zero T
	if v, ok := args.Get(i).(T); ok {
		return v
	}

	return zero
}

type mockUserUsecase struct{ mock.Mock }

func (m *mockUserUsecase) Register(ctx context.Context, input usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	args := m.Called(ctx, input)

	return orNil[*usecase.RegisterOutput](args, 0), args.Error(1)
}

func (m *mockUserUsecase) VerifyMobile(ctx context.Context, userID uuid.UUID, code string) (*entity.User, error) {
	args := m.Called(ctx, userID, code)

	return orNil[*entity.User](args, 0), args.Error(1)
}

func (m *mockUserUsecase) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	args := m.Called(ctx, input)

	return orNil[*usecase.LoginOutput](args, 0), args.Error(1)
}

func (m *mockUserUsecase) Refresh(ctx context.Context, refreshToken string) (*usecase.LoginOutput, error) {
	args := m.Called(ctx, refreshToken)

	return orNil[*usecase.LoginOutput](args, 0), args.Error(1)
}

func (m *mockUserUsecase) Profile(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	args := m.Called(ctx, userID)

	return orNil[*entity.User](args, 0), args.Error(1)
}

func (m *mockUserUsecase) Disable(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

type mockPointUsecase struct{ mock.Mock }

func (m *mockPointUsecase) EarnPoints(ctx context.Context, input usecase.EarnPointsInput) (*entity.PointTransaction, error) {
	args := m.Called(ctx, input)

	return orNil[*entity.PointTransaction](args, 0), args.Error(1)
}

func (m *mockPointUsecase) RedeemPoints(ctx context.Context, input usecase.RedeemPointsInput) (*entity.PointTransaction, error) {
	args := m.Called(ctx, input)

	return orNil[*entity.PointTransaction](args, 0), args.Error(1)
}

func (m *mockPointUsecase) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)

	return orNil[int64](args, 0), args.Error(1)
}

func (m *mockPointUsecase) History(ctx context.Context, userID uuid.UUID, limit, offset int) (*usecase.PointHistoryOutput, error) {
	args := m.Called(ctx, userID, limit, offset)

	return orNil[*usecase.PointHistoryOutput](args, 0), args.Error(1)
}

type mockStatsUsecase struct{ mock.Mock }

func (m *mockStatsUsecase) DirectReferrals(ctx context.Context, userID uuid.UUID) ([]entity.ReferredUser, error) {
	args := m.Called(ctx, userID)

	return orNil[[]entity.ReferredUser](args, 0), args.Error(1)
}

func (m *mockStatsUsecase) TotalReferralCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)

	return orNil[int64](args, 0), args.Error(1)
}

func (m *mockStatsUsecase) TotalCommission(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)

	return orNil[int64](args, 0), args.Error(1)
}

func (m *mockStatsUsecase) ActiveReferralCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)

	return orNil[int64](args, 0), args.Error(1)
}

func (m *mockStatsUsecase) Summary(ctx context.Context, userID uuid.UUID) (*entity.ReferralSummary, error) {
	args := m.Called(ctx, userID)

	return orNil[*entity.ReferralSummary](args, 0), args.Error(1)
}

type mockAgentUsecase struct{ mock.Mock }

func (m *mockAgentUsecase) RegisterAgent(ctx context.Context, userID uuid.UUID, maxClients *int) (*entity.Agent, error) {
	args := m.Called(ctx, userID, maxClients)

	return orNil[*entity.Agent](args, 0), args.Error(1)
}

func (m *mockAgentUsecase) VerifyAgent(ctx context.Context, agentID uuid.UUID) (*entity.Agent, error) {
	args := m.Called(ctx, agentID)

	return orNil[*entity.Agent](args, 0), args.Error(1)
}

func (m *mockAgentUsecase) SetActive(ctx context.Context, agentID uuid.UUID, active bool) (*entity.Agent, error) {
	args := m.Called(ctx, agentID, active)

	return orNil[*entity.Agent](args, 0), args.Error(1)
}

func (m *mockAgentUsecase) AddClient(ctx context.Context, agentCode string, clientID uuid.UUID) (*entity.AgentClient, error) {
	args := m.Called(ctx, agentCode, clientID)

	return orNil[*entity.AgentClient](args, 0), args.Error(1)
}

type mockFailedJobUsecase struct{ mock.Mock }

func (m *mockFailedJobUsecase) List(ctx context.Context, limit, offset int) (*usecase.FailedJobListOutput, error) {
	args := m.Called(ctx, limit, offset)

	return orNil[*usecase.FailedJobListOutput](args, 0), args.Error(1)
}

func (m *mockFailedJobUsecase) Retry(ctx context.Context, id uuid.UUID) (*entity.CommissionJob, error) {
	args := m.Called(ctx, id)

	return orNil[*entity.CommissionJob](args, 0), args.Error(1)
}

func (m *mockFailedJobUsecase) Record(ctx context.Context, job *entity.FailedJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockFailedJobUsecase) CountPending(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	return orNil[int64](args, 0), args.Error(1)
}

// stubTokens accepts the literal tokens "member" and "admin".
type stubTokens struct {
	memberID uuid.UUID
	adminID  uuid.UUID
}

func (s stubTokens) GenerateTokens(uuid.UUID, []string) (string, string, error) {
	return "access", "refresh", nil
}

func (s stubTokens) ValidateToken(token string) (*service.Claims, error) {
	switch token {
	case "member":
		return &service.Claims{UserID: s.memberID, Roles: []string{"user"}, Type: service.TokenTypeAccess}, nil
	case "admin":
		return &service.Claims{UserID: s.adminID, Roles: []string{"user", "admin"}, Type: service.TokenTypeAccess}, nil
	default:
		return nil, errors.New("invalid token")
	}
}

func (s stubTokens) GetAccessTokenDuration() time.Duration {
	return 15 * time.Minute
}

type stubQRCodes struct{}

func (stubQRCodes) GenerateReferralQR(code string) ([]byte, error) {
	return []byte("\x89PNG" + code), nil
}

func (stubQRCodes) ReferralLink(code string) string {
	return "https://clubinex.test/join?ref=" + code
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }
