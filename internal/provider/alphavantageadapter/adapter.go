package alphavantageadapter

import (
    "context"
    "strings"
    "time"

    "stockwatch/internal/provider"
    "stockwatch/internal/provider/alphavantage"
)

type Config struct {
    Name string // display name, default: AlphaVantage
}

// Adapter exposes the Alpha Vantage GLOBAL_QUOTE endpoint as a
// single-symbol quote source. It is constructed only when an API key is
// configured; callers treat a missing adapter the same as one that
// returned no data.
type Adapter struct {
    cfg    Config
    client *alphavantage.Client
    now    func() time.Time
}

func New(cfg Config, client *alphavantage.Client) *Adapter {
    if cfg.Name == "" { cfg.Name = "AlphaVantage" }
    return &Adapter{cfg: cfg, client: client, now: time.Now}
}

func (a *Adapter) Name() string { return a.cfg.Name }

// FetchOne resolves one symbol. A payload with no quote object yields
// (nil, nil): an ordinary miss, not an error.
func (a *Adapter) FetchOne(ctx context.Context, symbol string) (*provider.Quote, error) {
    gq, err := a.client.GlobalQuote(ctx, symbol)
    if err != nil {
        return nil, err
    }
    if gq == nil {
        return nil, nil
    }

    sym := gq.Symbol
    if sym == "" { sym = strings.ToUpper(strings.TrimSpace(symbol)) }
    if sym == "" {
        return nil, nil
    }

    change := gq.Change
    if change == nil && gq.Price != nil && gq.PreviousClose != nil {
        d := *gq.Price - *gq.PreviousClose
        change = &d
    }
    changePercent := gq.ChangePercent
    // Derive the percentage from previous close only when it is nonzero;
    // a zero close would otherwise produce an infinite result.
    if changePercent == nil && gq.Price != nil && gq.PreviousClose != nil && *gq.PreviousClose != 0 {
        pct := (*gq.Price - *gq.PreviousClose) / *gq.PreviousClose * 100
        changePercent = &pct
    }

    // This endpoint carries no name, currency or timestamp.
    return &provider.Quote{
        Symbol:        sym,
        Name:          "",
        Price:         gq.Price,
        Currency:      nil,
        Change:        change,
        ChangePercent: changePercent,
        UpdatedAt:     a.now().UTC(),
        Source:        provider.SourceAlphaVantage,
    }, nil
}
