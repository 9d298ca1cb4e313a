package provider

import (
    "context"
    "encoding/json"
    "time"
)

// Source tags recorded on quotes for diagnostics. They never drive
// resolution decisions.
const (
    SourceYahoo        = "yahoo"
    SourceAlphaVantage = "alphavantage"
)

// Quote is the normalized shape returned by all providers.
// Every field besides Symbol and Source may be null: a quote with no
// usable price is still a valid "found" result, distinct from not found.
type Quote struct {
    Symbol        string    `json:"symbol"`
    Name          string    `json:"name"`
    Price         *float64  `json:"price"`
    Currency      *string   `json:"currency"`
    Change        *float64  `json:"change"`
    ChangePercent *float64  `json:"changePercent"`
    UpdatedAt     time.Time `json:"updatedAt"`
    Source        string    `json:"source"`
}

// BatchSource resolves many symbols in a single upstream call.
type BatchSource interface {
    Name() string
    Fetch(ctx context.Context, symbols []string) ([]Quote, error)
}

// SingleSource resolves exactly one symbol per upstream call.
type SingleSource interface {
    Name() string
    FetchOne(ctx context.Context, symbol string) (*Quote, error)
}

// Result is one row of a resolution: the quote for a symbol, or a
// not-found marker when no provider supplied data for it.
type Result struct {
    Symbol string
    Quote  *Quote
}

func (r Result) NotFound() bool { return r.Quote == nil }

type notFoundJSON struct {
    Symbol string `json:"symbol"`
    Error  string `json:"error"`
}

func (r Result) MarshalJSON() ([]byte, error) {
    if r.Quote != nil {
        return json.Marshal(r.Quote)
    }
    return json.Marshal(notFoundJSON{Symbol: r.Symbol, Error: "not_found"})
}
