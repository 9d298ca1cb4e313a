package alphavantage

import (
	"context"
	"fmt"
	"io"
	"maps"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const baseURL = "https://www.alphavantage.co"

// GlobalQuote is the normalized subset of a GLOBAL_QUOTE payload. The
// upstream encodes every number as a string under numbered keys such as
// "05. price"; fields it omits, or that fail to parse as finite numbers,
// are nil here.
type GlobalQuote struct {
	Symbol        string
	Price         *float64
	PreviousClose *float64
	Change        *float64
	ChangePercent *float64
}

// GlobalQuote retrieves the GLOBAL_QUOTE payload for one symbol.
// A well-formed response that carries no quote object (unknown symbol,
// or the rate-limit "Note" body Alpha Vantage sends with status 200)
// returns (nil, nil) rather than an error.
func (c *Client) GlobalQuote(ctx context.Context, symbol string, opts ...ClientOption) (*GlobalQuote, error) {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	query := maps.Clone(override.query)
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", symbol)

	url := fmt.Sprintf("%s/query?%s", override.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized")

	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited")

	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading quote response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decoding quote response: invalid JSON")
	}

	// The object key has been seen in several spellings.
	gq := firstExisting(body, "Global Quote", "GlobalQuote", "globalQuote")
	if !gq.Exists() {
		return nil, nil
	}

	out := &GlobalQuote{
		Symbol: strings.ToUpper(pick(gq, `01\. symbol`, "symbol")),
	}
	out.Price = parseNumber(pick(gq, `05\. price`, "price"))
	out.PreviousClose = parseNumber(pick(gq, `08\. previous close`, "previousClose"))
	out.Change = parseNumber(pick(gq, `09\. change`, "change"))
	out.ChangePercent = parseNumber(strings.TrimSuffix(pick(gq, `10\. change percent`, "changePercent"), "%"))
	return out, nil
}

// firstExisting returns the first of paths present in body.
func firstExisting(body []byte, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := gjson.GetBytes(body, p); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// pick returns the trimmed string value of the first of paths present in obj.
func pick(obj gjson.Result, paths ...string) string {
	for _, p := range paths {
		if r := obj.Get(p); r.Exists() {
			return strings.TrimSpace(r.String())
		}
	}
	return ""
}

// parseNumber parses a string-encoded decimal. Empty, unparseable and
// non-finite values normalize to nil, never NaN.
func parseNumber(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
