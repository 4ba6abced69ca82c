package yahoo

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"marketstore/config"
	"marketstore/internal/timezone"
	"marketstore/logger"
	"marketstore/models"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client downloads historical market data from Yahoo Finance and
// shapes it into the legacy symbol-tagged table layout. Requests are
// paced by a shared rate limiter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	log        *logger.Log
}

// NewClient builds a Yahoo client from the reader configuration. A
// nil logger falls back to the process logger.
func NewClient(cfg *config.Config, log *logger.Log) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	rl := cfg.Reader.RateLimit
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Reader.Timeout},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst),
		log:        log,
	}
}

// WithBaseURL points the client at another host. Used by tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// Daily downloads auto-adjusted daily bars for the given symbols. The
// adjusted close rescales open, high and low so splits and dividends
// do not show up as price jumps. Rows of all symbols are concatenated
// and sorted by date, each tagged with its symbol.
func (c *Client) Daily(ctx context.Context, symbols []string, start, end time.Time) (*models.Table, error) {
	if end.IsZero() {
		end = time.Now()
	}

	out := models.NewTable("symbol", "open", "high", "low", "close", "volume")
	for _, sym := range symbols {
		if err := c.appendDaily(ctx, out, sym, start, end); err != nil {
			return nil, err
		}
	}
	out.SortByIndex()

	c.log.WithComponent("yahoo_reader").WithFields(logger.Fields{
		"symbols": len(symbols),
		"rows":    out.Len(),
	}).Info("daily data downloaded")
	return out, nil
}

func (c *Client) appendDaily(ctx context.Context, out *models.Table, symbol string, start, end time.Time) error {
	url := fmt.Sprintf(
		"%s/v7/finance/download/%s?period1=%d&period2=%d&interval=1d&events=history&includeAdjustedClose=true",
		c.baseURL, symbol, start.Unix(), end.Unix(),
	)
	body, err := c.get(ctx, url)
	if err != nil {
		return fmt.Errorf("download %s: %w", symbol, err)
	}
	defer body.Close()

	r := csv.NewReader(body)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", symbol, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range []string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"} {
		if _, ok := col[name]; !ok {
			return fmt.Errorf("download %s: missing column %s", symbol, name)
		}
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", symbol, err)
		}

		ts, err := timezone.Parse(record[col["Date"]])
		if err != nil {
			return fmt.Errorf("parse %s date: %w", symbol, err)
		}
		open, oerr := strconv.ParseFloat(record[col["Open"]], 64)
		high, herr := strconv.ParseFloat(record[col["High"]], 64)
		low, lerr := strconv.ParseFloat(record[col["Low"]], 64)
		closePx, cerr := strconv.ParseFloat(record[col["Close"]], 64)
		adjClose, aerr := strconv.ParseFloat(record[col["Adj Close"]], 64)
		volume, verr := strconv.ParseFloat(record[col["Volume"]], 64)
		if oerr != nil || herr != nil || lerr != nil || cerr != nil || aerr != nil || verr != nil {
			// Yahoo marks halted sessions with "null" cells.
			continue
		}

		// Auto-adjust prices against the adjusted close.
		ratio := 1.0
		if adjClose != 0 {
			ratio = closePx / adjClose
		}
		out.Append(ts, models.Row{
			"symbol": symbol,
			"open":   round2(open / ratio),
			"high":   round2(high / ratio),
			"low":    round2(low / ratio),
			"close":  round2(adjClose),
			"volume": float64(int64(volume)),
		})
	}
	return nil
}

// chartResponse is the slice of the v8 chart payload intraday data
// needs.
type chartResponse struct {
	Chart struct {
		Result []struct {
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
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Intraday downloads 1-minute bars for a single symbol, up to the
// range the chart endpoint serves.
func (c *Client) Intraday(ctx context.Context, symbol string, lookback string) (*models.Table, error) {
	if lookback == "" {
		lookback = "5d"
	}
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1m&range=%s", c.baseURL, symbol, lookback)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", symbol, err)
	}
	defer body.Close()

	var payload chartResponse
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s chart: %w", symbol, err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("download %s: %s", symbol, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("download %s: empty chart payload", symbol)
	}

	result := payload.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	out := models.NewTable("symbol", "open", "high", "low", "close", "volume")
	// The in-progress minute is sometimes missing from the quote
	// arrays, leaving them shorter than the timestamp list.
	n := len(result.Timestamp)
	for _, arr := range [][]*float64{quote.Open, quote.High, quote.Low, quote.Close, quote.Volume} {
		if len(arr) < n {
			n = len(arr)
		}
	}
	for i, unix := range result.Timestamp[:n] {
		if quote.Close[i] == nil {
			continue
		}
		out.Append(time.Unix(unix, 0).UTC(), models.Row{
			"symbol": symbol,
			"open":   round2(deref(quote.Open[i])),
			"high":   round2(deref(quote.High[i])),
			"low":    round2(deref(quote.Low[i])),
			"close":  round2(deref(quote.Close[i])),
			"volume": deref(quote.Volume[i]),
		})
	}

	c.log.WithComponent("yahoo_reader").WithFields(logger.Fields{
		"symbol": symbol,
		"rows":   out.Len(),
	}).Info("intraday data downloaded")
	return out, nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
