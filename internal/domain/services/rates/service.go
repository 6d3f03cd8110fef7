// Package rates converts between fiat currencies for recipients abroad.
// Live rates come from the ECB reference feed and are cached in Redis; a
// static table covers the corridors the product serves when the feed is down.
package rates

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	"github.com/ryzan/ryzan_service/internal/infrastructure/cache"
	"github.com/ryzan/ryzan_service/pkg/logger"
	"github.com/ryzan/ryzan_service/pkg/metrics"
	"github.com/ryzan/ryzan_service/pkg/tracing"
)

const (
	// BaseCurrency is the base of the reference feed.
	BaseCurrency = "EUR"

	// DefaultCurrency is used for countries with no known currency.
	DefaultCurrency = "USD"

	defaultCacheTTL = 5 * time.Minute
	trendThreshold  = 0.01
)

// DefaultSymbols are returned by GetCurrentRates when none are requested.
var DefaultSymbols = []string{"INR", "USD", "GBP", "JPY", "CNY"}

var countryCurrency = map[string]string{
	"IN": "INR", "US": "USD", "GB": "GBP", "FR": "EUR", "DE": "EUR",
	"JP": "JPY", "CN": "CNY", "BR": "BRL", "MX": "MXN", "MA": "MAD",
	"SN": "XOF", "NG": "NGN", "ZA": "ZAR", "CA": "CAD", "AU": "AUD",
}

var fallbackRates = map[string]float64{
	"EUR-INR": 89.5,
	"USD-INR": 83.2,
	"EUR-USD": 1.08,
	"EUR-GBP": 0.86,
	"EUR-MAD": 10.8,
	"EUR-XOF": 655.96,
}

// RateProvider is the upstream rate feed.
type RateProvider interface {
	Latest(ctx context.Context, base string, symbols []string) (map[string]float64, error)
	OnDate(ctx context.Context, date time.Time, base string, symbols []string) (map[string]float64, error)
	Series(ctx context.Context, start, end time.Time, base, symbol string) ([]entities.RatePoint, error)
}

// Cache stores rates between lookups.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Service handles rate lookups and recipient conversions
type Service struct {
	provider RateProvider
	cache    Cache
	cacheTTL time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a new rate service. cache may be nil.
func NewService(provider RateProvider, cache Cache, cacheTTL time.Duration, logger *logger.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Service{
		provider: provider,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// CurrencyForCountry maps an ISO 3166 alpha-2 country to its currency.
func CurrencyForCountry(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if code, ok := countryCurrency[country]; ok {
		return code
	}
	region, err := language.ParseRegion(country)
	if err != nil {
		return DefaultCurrency
	}
	if unit, ok := currency.FromRegion(region); ok {
		return unit.String()
	}
	return DefaultCurrency
}

// FallbackRate returns the static rate for a pair, or 1 when the pair is unknown.
func FallbackRate(from, to string) float64 {
	if rate, ok := fallbackRates[strings.ToUpper(from)+"-"+strings.ToUpper(to)]; ok {
		return rate
	}
	return 1
}

// GetRate returns how many units of to one unit of from buys.
func (s *Service) GetRate(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, nil
	}

	key := fmt.Sprintf("rates:%s:%s", from, to)
	if s.cache != nil {
		var cached float64
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			metrics.RecordRateLookup("cache")
			return cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Rate cache read failed", "key", key, "error", err)
		}
	}

	ctx, span := tracing.StartSpan(ctx, "rates.get", attribute.String("pair", from+"-"+to))
	rates, err := s.provider.Latest(ctx, from, []string{to})
	tracing.EndSpan(span, err)
	if err != nil {
		return 0, fmt.Errorf("get rate %s-%s: %w", from, to, err)
	}
	rate, ok := rates[to]
	if !ok {
		return 0, fmt.Errorf("get rate %s-%s: no rate returned", from, to)
	}
	metrics.RecordRateLookup("live")

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, rate, s.cacheTTL); err != nil {
			s.logger.Warn("Rate cache write failed", "key", key, "error", err)
		}
	}
	return rate, nil
}

// GetCurrentRates returns EUR-based rates for symbols.
func (s *Service) GetCurrentRates(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	upper := make([]string, len(symbols))
	for i, sym := range symbols {
		upper[i] = strings.ToUpper(sym)
	}
	rates, err := s.provider.Latest(ctx, BaseCurrency, upper)
	if err != nil {
		return nil, fmt.Errorf("get current rates: %w", err)
	}
	metrics.RecordRateLookup("live")
	return rates, nil
}

// GetHistory returns the EUR-based rate of currency over the last days,
// oldest first.
func (s *Service) GetHistory(ctx context.Context, currencyCode string, days int) ([]entities.RatePoint, error) {
	if days <= 0 {
		days = 7
	}
	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)
	points, err := s.provider.Series(ctx, start, end, BaseCurrency, strings.ToUpper(currencyCode))
	if err != nil {
		return nil, fmt.Errorf("get history for %s: %w", currencyCode, err)
	}
	return points, nil
}

// GetRateChange compares today's EUR-based rate with the previous business day.
func (s *Service) GetRateChange(ctx context.Context, currencyCode string) (*entities.RateChange, error) {
	currencyCode = strings.ToUpper(currencyCode)
	symbols := []string{currencyCode}

	current, err := s.provider.Latest(ctx, BaseCurrency, symbols)
	if err != nil {
		return nil, fmt.Errorf("get current %s rate: %w", currencyCode, err)
	}
	previous, err := s.provider.OnDate(ctx, previousBusinessDay(s.now().UTC()), BaseCurrency, symbols)
	if err != nil {
		return nil, fmt.Errorf("get previous %s rate: %w", currencyCode, err)
	}

	cur, prev := current[currencyCode], previous[currencyCode]
	change := &entities.RateChange{
		Currency: currencyCode,
		Current:  cur,
		Previous: prev,
		Trend:    entities.TrendStable,
	}
	if prev != 0 {
		change.ChangePercent = (cur - prev) / prev * 100
	}
	switch {
	case change.ChangePercent > trendThreshold:
		change.Trend = entities.TrendUp
	case change.ChangePercent < -trendThreshold:
		change.Trend = entities.TrendDown
	}
	return change, nil
}

// CalculateReceived converts amount from fromFiat into the currency of the
// recipient's country. A failed live lookup falls back to the static table.
func (s *Service) CalculateReceived(ctx context.Context, amount decimal.Decimal, fromFiat, country string) (*entities.ConvertedAmount, error) {
	fromFiat = strings.ToUpper(fromFiat)
	target := CurrencyForCountry(country)
	if fromFiat == target {
		return &entities.ConvertedAmount{Amount: amount, Currency: target, Rate: 1, Source: entities.RateSourceIdentity}, nil
	}

	source := entities.RateSourceLive
	rate, err := s.GetRate(ctx, fromFiat, target)
	if err != nil {
		s.logger.Warn("Live rate unavailable, using fallback", "from", fromFiat, "to", target, "error", err)
		metrics.RecordRateLookup("fallback")
		rate = FallbackRate(fromFiat, target)
		source = entities.RateSourceFallback
	}
	if math.IsNaN(rate) || rate <= 0 {
		return nil, fmt.Errorf("invalid rate %v for %s-%s", rate, fromFiat, target)
	}

	return &entities.ConvertedAmount{
		Amount:   amount.Mul(decimal.NewFromFloat(rate)),
		Currency: target,
		Rate:     rate,
		Source:   source,
	}, nil
}

func previousBusinessDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
