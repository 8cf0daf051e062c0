package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const DefaultYahooURL = "https://query1.finance.yahoo.com/v8/finance/chart"

type YahooOptions struct {
	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond limits outgoing calls across all sessions sharing the fetcher
	RequestsPerSecond float64
	Burst             int
	Logger            *slog.Logger
}

func NewDefaultYahooOptions() *YahooOptions {
	return &YahooOptions{
		BaseURL:           DefaultYahooURL,
		Timeout:           15 * time.Second,
		RequestsPerSecond: 2,
		Burst:             1,
	}
}

// YahooFetcher retrieves daily bars from the Yahoo chart endpoint
type YahooFetcher struct {
	opt     *YahooOptions
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewYahooFetcher(opt *YahooOptions) *YahooFetcher {
	if opt == nil {
		opt = NewDefaultYahooOptions()
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	burst := opt.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if opt.RequestsPerSecond > 0 {
		limit = rate.Limit(opt.RequestsPerSecond)
	}
	return &YahooFetcher{
		opt:     opt,
		client:  &http.Client{Timeout: opt.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(slog.String("component", "yahoo_fetcher")),
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string   `json:"symbol"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func valueAt(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return math.NaN()
	}
	return *vals[i]
}

func (y *YahooFetcher) endpoint(req Request) (string, error) {
	start, end, err := req.Range()
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", "1d")
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(y.opt.BaseURL, "/"), url.PathEscape(strings.ToUpper(req.Symbol)), q.Encode()), nil
}

// Fetch returns ErrRateLimited on a 429 response and ErrNoData when the symbol has no bars
func (y *YahooFetcher) Fetch(ctx context.Context, req Request) (*Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	endpoint, err := y.endpoint(req)
	if err != nil {
		return nil, err
	}
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("unable to wait for rate limiter, %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build request, %w", err)
	}
	httpReq.Header.Set("User-Agent", "go-marketmaster/1.0")

	y.logger.Debug("fetching quote", slog.String("symbol", req.Symbol), slog.String("start", req.Start), slog.String("end", req.End))
	resp, err := y.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch %s, %w", req.Symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read response body, %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(string(body), "Too Many Requests") {
		return nil, fmt.Errorf("%s, %w", req.Symbol, ErrRateLimited)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s, %w", req.Symbol, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, req.Symbol)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unable to decode chart response, %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s, %w", parsed.Chart.Error.Code, parsed.Chart.Error.Description, ErrNoData)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s, %w", req.Symbol, ErrNoData)
	}
	return toQuote(req.Symbol, parsed.Chart.Result[0])
}

func toQuote(symbol string, res chartResult) (*Quote, error) {
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s, %w", symbol, ErrNoData)
	}
	ind := res.Indicators.Quote[0]
	q := &Quote{
		Symbol: strings.ToUpper(symbol),
		Bars:   make([]Bar, 0, len(res.Timestamp)),
	}
	for i, ts := range res.Timestamp {
		d := time.Unix(ts, 0).UTC()
		q.Bars = append(q.Bars, Bar{
			Date:   time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			Open:   valueAt(ind.Open, i),
			High:   valueAt(ind.High, i),
			Low:    valueAt(ind.Low, i),
			Close:  valueAt(ind.Close, i),
			Volume: valueAt(ind.Volume, i),
		})
	}
	if res.Meta.RegularMarketPrice != nil {
		price := *res.Meta.RegularMarketPrice
		q.LastPrice = &price
	} else if last := q.Bars[len(q.Bars)-1].Close; !math.IsNaN(last) {
		q.LastPrice = &last
	}
	return q, nil
}
