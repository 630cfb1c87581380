package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
)

// RateSource yields a daily ARS/USD conversion rate for a calendar date.
type RateSource interface {
	GetRate(ctx context.Context, date time.Time) (float64, error)
}

type Config struct {
	BaseURL string        // default https://api.bluelytics.com.ar
	Timeout time.Duration // http client timeout
}

// BluelyticsClient fetches historical blue-dollar rates from bluelytics.
// Historical rates never change, so responses are memoized per date; both the
// preview and commit of the same invoice then cost a single outbound call.
type BluelyticsClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]float64 // ISO date -> blue value_avg
}

func NewBluelyticsClient(cfg Config, logger *slog.Logger) *BluelyticsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.bluelytics.com.ar"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BluelyticsClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		cache:      make(map[string]float64),
	}
}

type quote struct {
	ValueAvg  float64 `json:"value_avg"`
	ValueSell float64 `json:"value_sell"`
	ValueBuy  float64 `json:"value_buy"`
}

type historicalResponse struct {
	Oficial *quote `json:"oficial"`
	Blue    *quote `json:"blue"`
}

// GetRate returns the blue value_avg for the requested calendar date. Any
// source failure (unreachable, non-2xx, no data for the date) is reported as
// common.ErrRateUnavailable; callers decide whether that aborts their path.
func (c *BluelyticsClient) GetRate(ctx context.Context, date time.Time) (float64, error) {
	day := date.Format("2006-01-02")

	c.mu.Lock()
	if rate, ok := c.cache[day]; ok {
		c.mu.Unlock()
		return rate, nil
	}
	c.mu.Unlock()

	start := time.Now()
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v2/historical?day=" + day

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", common.ErrRateUnavailable, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("fx.rate.fetch_error", "day", day, "error", err)
		return 0, fmt.Errorf("%w: fetch %s: %v", common.ErrRateUnavailable, day, err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Warn("fx.rate.body_close_error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode/100 != 2 {
		c.logger.Error("fx.rate.bad_status", "day", day, "status", resp.StatusCode)
		return 0, fmt.Errorf("%w: status %d for %s", common.ErrRateUnavailable, resp.StatusCode, day)
	}

	var hr historicalResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		c.logger.Error("fx.rate.decode_error", "day", day, "error", err)
		return 0, fmt.Errorf("%w: decode response for %s: %v", common.ErrRateUnavailable, day, err)
	}
	if hr.Blue == nil || hr.Blue.ValueAvg <= 0 {
		c.logger.Error("fx.rate.no_blue_quote", "day", day)
		return 0, fmt.Errorf("%w: no blue quote for %s", common.ErrRateUnavailable, day)
	}

	rate := hr.Blue.ValueAvg
	c.mu.Lock()
	c.cache[day] = rate
	c.mu.Unlock()

	c.logger.Info("fx.rate.fetch",
		"day", day,
		"rate", rate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rate, nil
}
