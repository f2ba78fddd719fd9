package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

// MockAlertRepository is a mock implementation of domain.AlertRepository
type MockAlertRepository struct {
	mock.Mock
}

func (m *MockAlertRepository) Append(ctx context.Context, alert *domain.PriceAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockAlertRepository) List(ctx context.Context) ([]*domain.PriceAlert, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PriceAlert), args.Error(1)
}

func (m *MockAlertRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, alert *domain.PriceAlert, price decimal.Decimal) error {
	args := m.Called(ctx, alert, price)
	return args.Error(0)
}

func (m *MockNotifier) SendTest(ctx context.Context, recipient string) error {
	args := m.Called(ctx, recipient)
	return args.Error(0)
}

type stubPrices struct {
	pair domain.SpotPrices
}

func (s *stubPrices) SpotPrices(context.Context) domain.SpotPrices { return s.pair }

func newTestService(repo *MockAlertRepository, notifier *MockNotifier, btc, eth int64) *Service {
	prices := &stubPrices{pair: domain.SpotPrices{
		domain.AssetBitcoin:  decimal.NewFromInt(btc),
		domain.AssetEthereum: decimal.NewFromInt(eth),
	}}
	return NewService(repo, prices, notifier, zerolog.Nop())
}

func alertAbove(asset domain.Asset, target int64) *domain.PriceAlert {
	return &domain.PriceAlert{
		ID:          uuid.New(),
		Asset:       asset,
		TargetPrice: decimal.NewFromInt(target),
		Condition:   domain.AlertConditionAbove,
		Email:       "holder@example.com",
		Enabled:     true,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreate_StoresValidAlert(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAlertRepository)
	notifier := new(MockNotifier)
	repo.On("Append", ctx, mock.AnythingOfType("*domain.PriceAlert")).Return(nil)

	service := newTestService(repo, notifier, 50000, 3000)
	alert, err := service.Create(ctx, CreateInput{
		Asset:       domain.AssetBitcoin,
		TargetPrice: decimal.NewFromInt(60000),
		Condition:   domain.AlertConditionAbove,
		Email:       "holder@example.com",
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, alert.ID)
	assert.True(t, alert.Enabled)
	assert.NotEmpty(t, alert.Description)
	repo.AssertExpectations(t)
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAlertRepository)
	notifier := new(MockNotifier)

	service := newTestService(repo, notifier, 50000, 3000)
	_, err := service.Create(ctx, CreateInput{
		Asset:       domain.AssetBitcoin,
		TargetPrice: decimal.Zero,
		Condition:   domain.AlertConditionAbove,
		Email:       "holder@example.com",
	})

	assert.Error(t, err)
	repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestCheckOnce_DeliversAndRemovesTriggeredAlert(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAlertRepository)
	notifier := new(MockNotifier)

	triggered := alertAbove(domain.AssetBitcoin, 45000)
	dormant := alertAbove(domain.AssetEthereum, 5000)
	repo.On("List", ctx).Return([]*domain.PriceAlert{triggered, dormant}, nil)
	notifier.On("Send", ctx, triggered, decimal.NewFromInt(50000)).Return(nil)
	repo.On("Delete", ctx, triggered.ID).Return(nil)

	service := newTestService(repo, notifier, 50000, 3000)
	count, err := service.CheckOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	notifier.AssertNumberOfCalls(t, "Send", 1)
	repo.AssertCalled(t, "Delete", ctx, triggered.ID)
}

func TestCheckOnce_KeepsAlertWhenDeliveryFails(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAlertRepository)
	notifier := new(MockNotifier)

	triggered := alertAbove(domain.AssetBitcoin, 45000)
	repo.On("List", ctx).Return([]*domain.PriceAlert{triggered}, nil)
	notifier.On("Send", ctx, triggered, decimal.NewFromInt(50000)).
		Return(errors.New("smtp unreachable"))

	service := newTestService(repo, notifier, 50000, 3000)
	count, err := service.CheckOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestCheckOnce_SkipsDisabledAlerts(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAlertRepository)
	notifier := new(MockNotifier)

	disabled := alertAbove(domain.AssetBitcoin, 45000)
	disabled.Enabled = false
	repo.On("List", ctx).Return([]*domain.PriceAlert{disabled}, nil)

	service := newTestService(repo, notifier, 50000, 3000)
	count, err := service.CheckOnce(ctx)

	require.NoError(t, err)
	assert.Zero(t, count)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckOnce_BelowCondition(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAlertRepository)
	notifier := new(MockNotifier)

	alert := &domain.PriceAlert{
		ID:          uuid.New(),
		Asset:       domain.AssetEthereum,
		TargetPrice: decimal.NewFromInt(3200),
		Condition:   domain.AlertConditionBelow,
		Email:       "holder@example.com",
		Enabled:     true,
	}
	repo.On("List", ctx).Return([]*domain.PriceAlert{alert}, nil)
	notifier.On("Send", ctx, alert, decimal.NewFromInt(3000)).Return(nil)
	repo.On("Delete", ctx, alert.ID).Return(nil)

	service := newTestService(repo, notifier, 50000, 3000)
	count, err := service.CheckOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCheckOnce_ListFailurePropagates(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAlertRepository)
	notifier := new(MockNotifier)
	repo.On("List", ctx).Return(nil, errors.New("connection refused"))

	service := newTestService(repo, notifier, 50000, 3000)
	_, err := service.CheckOnce(ctx)

	assert.Error(t, err)
}

func TestMonitor_StopsOnContextCancel(t *testing.T) {
	repo := new(MockAlertRepository)
	notifier := new(MockNotifier)
	repo.On("List", mock.Anything).Return([]*domain.PriceAlert{}, nil)

	service := newTestService(repo, notifier, 50000, 3000).
		WithIntervals(5*time.Millisecond, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		service.Monitor(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
	repo.AssertCalled(t, "List", mock.Anything)
}

func TestSendTest_WrapsNotifierError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAlertRepository)
	notifier := new(MockNotifier)
	notifier.On("SendTest", ctx, "holder@example.com").Return(errors.New("auth failed"))

	service := newTestService(repo, notifier, 50000, 3000)
	err := service.SendTest(ctx, "holder@example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "send test notification")
}
