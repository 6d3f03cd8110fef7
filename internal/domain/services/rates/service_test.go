package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	"github.com/ryzan/ryzan_service/internal/infrastructure/cache"
	"github.com/ryzan/ryzan_service/pkg/logger"
)

type MockRateProvider struct {
	mock.Mock
}

func (m *MockRateProvider) Latest(ctx context.Context, base string, symbols []string) (map[string]float64, error) {
	args := m.Called(ctx, base, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *MockRateProvider) OnDate(ctx context.Context, date time.Time, base string, symbols []string) (map[string]float64, error) {
	args := m.Called(ctx, date, base, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *MockRateProvider) Series(ctx context.Context, start, end time.Time, base, symbol string) ([]entities.RatePoint, error) {
	args := m.Called(ctx, start, end, base, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.RatePoint), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	if fn, ok := args.Get(0).(func(interface{}) error); ok {
		return fn(dest)
	}
	return args.Error(0)
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func TestCurrencyForCountry(t *testing.T) {
	tests := map[string]string{
		"IN": "INR",
		"in": "INR",
		"FR": "EUR",
		"SN": "XOF",
		"KE": "KES",
		"":   "USD",
		"??": "USD",
	}
	for country, want := range tests {
		assert.Equal(t, want, CurrencyForCountry(country), country)
	}
}

func TestFallbackRate(t *testing.T) {
	assert.Equal(t, 89.5, FallbackRate("EUR", "INR"))
	assert.Equal(t, 83.2, FallbackRate("usd", "inr"))
	assert.Equal(t, 655.96, FallbackRate("EUR", "XOF"))
	assert.Equal(t, float64(1), FallbackRate("GBP", "JPY"))
}

func TestService_GetRate(t *testing.T) {
	provider := new(MockRateProvider)
	c := new(MockCache)
	svc := NewService(provider, c, time.Minute, logger.NewNop())
	ctx := context.Background()

	c.On("Get", mock.Anything, "rates:EUR:INR", mock.Anything).Return(cache.ErrCacheMiss).Once()
	provider.On("Latest", mock.Anything, "EUR", []string{"INR"}).Return(map[string]float64{"INR": 90.1}, nil).Once()
	c.On("Set", mock.Anything, "rates:EUR:INR", 90.1, time.Minute).Return(nil).Once()

	rate, err := svc.GetRate(ctx, "eur", "inr")
	require.NoError(t, err)
	assert.Equal(t, 90.1, rate)

	c.On("Get", mock.Anything, "rates:EUR:INR", mock.Anything).Return(func(dest interface{}) error {
		*dest.(*float64) = 90.2
		return nil
	}).Once()
	rate, err = svc.GetRate(ctx, "EUR", "INR")
	require.NoError(t, err)
	assert.Equal(t, 90.2, rate)

	rate, err = svc.GetRate(ctx, "USD", "usd")
	require.NoError(t, err)
	assert.Equal(t, float64(1), rate)

	provider.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestService_CalculateReceived(t *testing.T) {
	ctx := context.Background()

	t.Run("live rate", func(t *testing.T) {
		provider := new(MockRateProvider)
		provider.On("Latest", mock.Anything, "EUR", []string{"INR"}).Return(map[string]float64{"INR": 90}, nil)
		svc := NewService(provider, nil, 0, logger.NewNop())

		got, err := svc.CalculateReceived(ctx, decimal.NewFromInt(100), "EUR", "IN")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(9000).Equal(got.Amount))
		assert.Equal(t, "INR", got.Currency)
		assert.Equal(t, entities.RateSourceLive, got.Source)
	})

	t.Run("fallback table when the feed fails", func(t *testing.T) {
		provider := new(MockRateProvider)
		provider.On("Latest", mock.Anything, "EUR", []string{"INR"}).Return(nil, errors.New("timeout"))
		svc := NewService(provider, nil, 0, logger.NewNop())

		got, err := svc.CalculateReceived(ctx, decimal.NewFromInt(100), "EUR", "IN")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(8950).Equal(got.Amount), got.Amount.String())
		assert.Equal(t, 89.5, got.Rate)
		assert.Equal(t, entities.RateSourceFallback, got.Source)
	})

	t.Run("same currency skips the feed", func(t *testing.T) {
		provider := new(MockRateProvider)
		svc := NewService(provider, nil, 0, logger.NewNop())

		got, err := svc.CalculateReceived(ctx, decimal.NewFromInt(42), "EUR", "FR")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(42).Equal(got.Amount))
		assert.Equal(t, float64(1), got.Rate)
		provider.AssertNotCalled(t, "Latest", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_GetRateChange(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		trend    string
	}{
		{"up", 90.5, 90.0, entities.TrendUp},
		{"down", 89.0, 90.0, entities.TrendDown},
		{"stable", 90.005, 90.0, entities.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(MockRateProvider)
			provider.On("Latest", mock.Anything, "EUR", []string{"INR"}).Return(map[string]float64{"INR": tt.current}, nil)
			provider.On("OnDate", mock.Anything, mock.Anything, "EUR", []string{"INR"}).Return(map[string]float64{"INR": tt.previous}, nil)
			svc := NewService(provider, nil, 0, logger.NewNop())

			change, err := svc.GetRateChange(context.Background(), "inr")
			require.NoError(t, err)
			assert.Equal(t, tt.trend, change.Trend)
			assert.InDelta(t, (tt.current-tt.previous)/tt.previous*100, change.ChangePercent, 1e-9)
		})
	}
}

func TestPreviousBusinessDay(t *testing.T) {
	monday := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Friday, previousBusinessDay(monday).Weekday())

	wednesday := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Tuesday, previousBusinessDay(wednesday).Weekday())
}

func TestService_GetHistory(t *testing.T) {
	provider := new(MockRateProvider)
	points := []entities.RatePoint{{Time: time.Now(), Rate: 1.1}}
	provider.On("Series", mock.Anything, mock.Anything, mock.Anything, "EUR", "USD").Return(points, nil)
	svc := NewService(provider, nil, 0, logger.NewNop())

	got, err := svc.GetHistory(context.Background(), "usd", 0)
	require.NoError(t, err)
	assert.Equal(t, points, got)
}
