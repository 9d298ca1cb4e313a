package yahoo

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "sync"
    "time"

    "stockwatch/internal/httpx"
    "stockwatch/internal/provider"
)

type Config struct {
    Name    string
    URL     string
    Headers map[string]string
    // MaxSymbolsPerRequest splits large symbol lists into smaller batch
    // requests. 0 or negative means no limit (single request).
    MaxSymbolsPerRequest int
    // MaxConcurrency limits concurrent batch requests when splitting.
    // Defaults to 1 when <= 0.
    MaxConcurrency int
}

// Provider fetches batch quotes from the Yahoo Finance v7 quote endpoint.
type Provider struct {
    cfg    Config
    client *httpx.Client
    now    func() time.Time
}

func New(cfg Config, hc *httpx.Client) *Provider {
    if cfg.Name == "" { cfg.Name = "Yahoo" }
    if cfg.URL == "" { cfg.URL = "https://query1.finance.yahoo.com/v7/finance/quote" }
    return &Provider{cfg: cfg, client: hc, now: time.Now}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Fetch issues one batch request (or several chunked ones) for symbols.
// Symbols the upstream omits are simply absent from the result; a symbol
// returned without any usable price still yields a quote with a null
// price. An empty symbol list returns immediately without a request.
func (p *Provider) Fetch(ctx context.Context, symbols []string) ([]provider.Quote, error) {
    if len(symbols) == 0 {
        return []provider.Quote{}, nil
    }

    bySymbol := make(map[string]apiQuote, len(symbols))
    var firstErr error

    batchSize := p.cfg.MaxSymbolsPerRequest
    if batchSize <= 0 || len(symbols) <= batchSize {
        got, err := p.doBatch(ctx, symbols)
        if err != nil {
            firstErr = err
        } else {
            bySymbol = got
        }
    } else {
        batches := chunkStrings(symbols, batchSize)
        maxConc := p.cfg.MaxConcurrency
        if maxConc <= 0 { maxConc = 1 }
        sem := make(chan struct{}, maxConc)
        var wg sync.WaitGroup
        var mu sync.Mutex
        for _, b := range batches {
            b := b
            wg.Add(1)
            go func() {
                defer wg.Done()
                select {
                case sem <- struct{}{}:
                    defer func() { <-sem }()
                case <-ctx.Done():
                    return
                }
                got, err := p.doBatch(ctx, b)
                mu.Lock()
                if err != nil {
                    if firstErr == nil { firstErr = err }
                } else {
                    for k, v := range got { bySymbol[k] = v }
                }
                mu.Unlock()
            }()
        }
        wg.Wait()
    }

    now := p.now().UTC()
    out := make([]provider.Quote, 0, len(bySymbol))
    for _, s := range symbols {
        if e, ok := bySymbol[s]; ok {
            out = append(out, normalize(e, now))
            delete(bySymbol, s)
        }
    }
    if len(out) == 0 && firstErr != nil {
        return nil, firstErr
    }
    return out, nil
}

func (p *Provider) doBatch(ctx context.Context, batch []string) (map[string]apiQuote, error) {
    u, err := url.Parse(p.cfg.URL)
    if err != nil { return nil, err }
    q := u.Query()
    q.Set("symbols", strings.Join(batch, ","))
    u.RawQuery = q.Encode()
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
    if err != nil { return nil, err }
    req.Header.Set("Accept", "application/json")
    for k, v := range p.cfg.Headers { req.Header.Set(k, v) }
    resp, err := p.client.Do(ctx, req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
        return nil, fmt.Errorf("GET %s -> %d: %s", p.cfg.URL, resp.StatusCode, strings.TrimSpace(string(b)))
    }
    var api apiResponse
    if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
        return nil, fmt.Errorf("decode: %w", err)
    }
    if api.QuoteResponse.Error != nil {
        return nil, fmt.Errorf("provider error: code=%q msg=%q", api.QuoteResponse.Error.Code, api.QuoteResponse.Error.Description)
    }
    got := make(map[string]apiQuote, len(api.QuoteResponse.Result))
    for _, e := range api.QuoteResponse.Result {
        sym := strings.ToUpper(strings.TrimSpace(e.Symbol))
        // entries with no symbol carry nothing we can key on
        if sym == "" { continue }
        got[sym] = e
    }
    return got, nil
}

// normalize maps one upstream entry to the canonical quote shape. Price
// prefers the regular session, then post-market, then pre-market; the
// timestamp follows whichever price was chosen.
func normalize(e apiQuote, now time.Time) provider.Quote {
    price := e.RegularMarketPrice
    ts := e.RegularMarketTime
    if price == nil {
        price, ts = e.PostMarketPrice, e.PostMarketTime
    }
    if price == nil {
        price, ts = e.PreMarketPrice, e.PreMarketTime
    }

    name := e.LongName
    if name == "" { name = e.ShortName }
    if name == "" { name = e.DisplayName }

    var currency *string
    if e.Currency != "" {
        c := e.Currency
        currency = &c
    }

    return provider.Quote{
        Symbol:        strings.ToUpper(strings.TrimSpace(e.Symbol)),
        Name:          name,
        Price:         price,
        Currency:      currency,
        Change:        e.RegularMarketChange,
        ChangePercent: e.RegularMarketChangePercent,
        UpdatedAt:     parseEpochMaybeMillis(ts, now),
        Source:        provider.SourceYahoo,
    }
}

type apiResponse struct {
    QuoteResponse struct {
        Result []apiQuote `json:"result"`
        Error  *apiError  `json:"error"`
    } `json:"quoteResponse"`
}

type apiError struct {
    Code        string `json:"code"`
    Description string `json:"description"`
}

type apiQuote struct {
    Symbol                     string   `json:"symbol"`
    ShortName                  string   `json:"shortName"`
    LongName                   string   `json:"longName"`
    DisplayName                string   `json:"displayName"`
    Currency                   string   `json:"currency"`
    RegularMarketPrice         *float64 `json:"regularMarketPrice"`
    RegularMarketTime          int64    `json:"regularMarketTime"`
    RegularMarketChange        *float64 `json:"regularMarketChange"`
    RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
    PostMarketPrice            *float64 `json:"postMarketPrice"`
    PostMarketTime             int64    `json:"postMarketTime"`
    PreMarketPrice             *float64 `json:"preMarketPrice"`
    PreMarketTime              int64    `json:"preMarketTime"`
}

func parseEpochMaybeMillis(v int64, fallback time.Time) time.Time {
    if v <= 0 { return fallback }
    if v > 1_000_000_000_000 { // ms
        return time.UnixMilli(v).UTC()
    }
    return time.Unix(v, 0).UTC()
}

func chunkStrings(in []string, size int) [][]string {
    if size <= 0 || len(in) == 0 { return [][]string{in} }
    out := make([][]string, 0, (len(in)+size-1)/size)
    for i := 0; i < len(in); i += size {
        j := i + size
        if j > len(in) { j = len(in) }
        out = append(out, in[i:j])
    }
    return out
}
