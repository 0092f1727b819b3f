// Package yahoo fetches daily adjusted close history from the Yahoo
// Finance chart API. It is the external collaborator that populates the
// daily_prices cache; the study itself only ever reads the cache.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quantfold/insider-flow/internal/common"
	"github.com/quantfold/insider-flow/internal/model"
)

const chartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Yahoo blocks generic clients (401/429), so we present a browser UA.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Client fetches daily price history for one ticker at a time.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Yahoo chart API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    chartURL,
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint; used in tests.
func NewClientWithBaseURL(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// chartResponse mirrors the subset of the v8 chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyHistory fetches daily adjusted closes for a ticker over [start, end].
// Transport and server errors are retryable; an empty or unknown-symbol
// response is not.
func (c *Client) DailyHistory(ctx context.Context, ticker string, start, end time.Time) ([]model.PricePoint, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", common.ErrInvalidConfig)
	}

	u := fmt.Sprintf("%s/%s?interval=1d&events=div%%2Csplit&period1=%d&period2=%d",
		c.baseURL,
		url.PathEscape(toYahooSymbol(ticker)),
		model.Midnight(start).Unix(),
		model.Midnight(end).AddDate(0, 0, 1).Unix(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPriceSource, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", common.ErrPriceRateLimit, ticker)
	case resp.StatusCode == http.StatusNotFound:
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("unknown symbol %s", ticker),
			Retryable: false,
		}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d for %s", common.ErrPriceSource, resp.StatusCode, ticker)
	}

	var data chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: bad payload: %v", common.ErrPriceSource, err)
	}

	if data.Chart.Error != nil {
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("chart error for %s: %s", ticker, data.Chart.Error.Description),
			Retryable: false,
		}
	}
	if len(data.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrNoPriceData, ticker)
	}

	result := data.Chart.Result[0]

	// Prefer the split/dividend adjusted series; fall back to raw closes
	// when Yahoo omits it.
	var closes []float64
	if len(result.Indicators.AdjClose) > 0 && len(result.Indicators.AdjClose[0].AdjClose) > 0 {
		closes = result.Indicators.AdjClose[0].AdjClose
	} else if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrNoPriceData, ticker)
	}

	points := make([]model.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) {
			break
		}
		if closes[i] <= 0 {
			// Halted sessions come back as zeros; skip them
			continue
		}
		points = append(points, model.PricePoint{
			Ticker:   ticker,
			Date:     model.Midnight(time.Unix(ts, 0).UTC()),
			AdjClose: closes[i],
		})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrNoPriceData, ticker)
	}

	return points, nil
}

// toYahooSymbol converts share-class dots to Yahoo's dash form: BRK.B -> BRK-B.
func toYahooSymbol(sym string) string {
	return strings.ReplaceAll(sym, ".", "-")
}
