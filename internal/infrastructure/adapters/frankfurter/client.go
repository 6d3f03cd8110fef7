package frankfurter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
)

const (
	DefaultBaseURL = "https://api.frankfurter.app"

	defaultTimeout           = 10 * time.Second
	defaultRequestsPerSecond = 5
	maxRetries               = 2
	dateLayout               = "2006-01-02"
)

// Config represents Frankfurter client configuration
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client is a Frankfurter (ECB reference rates) API client
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

// NewClient creates a new Frankfurter API client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaultRequestsPerSecond
	}

	cbSettings := gobreaker.Settings{
		Name:        "FrankfurterAPI",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Rates circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:         logger,
	}
}

// Latest returns today's rates of symbols against base.
func (c *Client) Latest(ctx context.Context, base string, symbols []string) (map[string]float64, error) {
	body, err := c.doRequest(ctx, "/latest", ratesQuery(base, symbols))
	if err != nil {
		return nil, fmt.Errorf("get latest rates failed: %w", err)
	}
	return parseRates(body, symbols)
}

// OnDate returns the reference rates published for date (or the last
// business day before it).
func (c *Client) OnDate(ctx context.Context, date time.Time, base string, symbols []string) (map[string]float64, error) {
	body, err := c.doRequest(ctx, "/"+date.UTC().Format(dateLayout), ratesQuery(base, symbols))
	if err != nil {
		return nil, fmt.Errorf("get rates for %s failed: %w", date.Format(dateLayout), err)
	}
	return parseRates(body, symbols)
}

// Series returns the daily rate of symbol against base between start and
// end inclusive, oldest first.
func (c *Client) Series(ctx context.Context, start, end time.Time, base, symbol string) ([]entities.RatePoint, error) {
	path := fmt.Sprintf("/%s..%s", start.UTC().Format(dateLayout), end.UTC().Format(dateLayout))
	body, err := c.doRequest(ctx, path, ratesQuery(base, []string{symbol}))
	if err != nil {
		return nil, fmt.Errorf("get rate series failed: %w", err)
	}

	rates := gjson.GetBytes(body, "rates")
	if !rates.IsObject() {
		return nil, ErrMalformedResponse
	}

	points := make([]entities.RatePoint, 0)
	var parseErr error
	rates.ForEach(func(day, values gjson.Result) bool {
		t, err := time.Parse(dateLayout, day.String())
		if err != nil {
			parseErr = fmt.Errorf("%w: bad date %q", ErrMalformedResponse, day.String())
			return false
		}
		v := values.Get(symbol)
		if !v.Exists() {
			return true
		}
		points = append(points, entities.RatePoint{Time: t, Rate: v.Float()})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

func ratesQuery(base string, symbols []string) url.Values {
	q := url.Values{}
	q.Set("from", strings.ToUpper(base))
	if len(symbols) > 0 {
		q.Set("to", strings.ToUpper(strings.Join(symbols, ",")))
	}
	return q
}

func parseRates(body []byte, symbols []string) (map[string]float64, error) {
	rates := gjson.GetBytes(body, "rates")
	if !rates.IsObject() {
		return nil, ErrMalformedResponse
	}
	out := make(map[string]float64)
	rates.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.Float()
		return true
	})
	for _, s := range symbols {
		if _, ok := out[strings.ToUpper(s)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrRateNotFound, strings.ToUpper(s))
		}
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.doRequestInternal(ctx, path, query)
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) doRequestInternal(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.config.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    gjson.GetBytes(body, "message").String(),
			}
		}
		return body, nil
	}
	return nil, lastErr
}
