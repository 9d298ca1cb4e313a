package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "io"
    "log"
    "net/http"
    "net/url"
    "os"
    "time"

    "stockwatch/internal/config"
    "stockwatch/internal/provider/alphavantage"
    "stockwatch/internal/provider/alphavantageadapter"
)

// avdump fetches one raw GLOBAL_QUOTE payload and prints it next to the
// normalized quote, for eyeballing normalization against what Alpha
// Vantage actually returned.
func main() {
    var symbol string
    var cfgPath string
    var timeoutSec int

    flag.StringVar(&symbol, "symbol", "AAPL", "ticker symbol to dump")
    flag.StringVar(&cfgPath, "config", "", "path to config.json (optional)")
    flag.IntVar(&timeoutSec, "timeout", 20, "HTTP timeout seconds")
    flag.Parse()

    cfg, err := config.Load(cfgPath)
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    if cfg.AlphaVantage.APIKey == "" {
        log.Fatal("ALPHAVANTAGE_API_KEY missing (set in config.json or env)")
    }
    endpoint := cfg.AlphaVantage.Endpoint
    if endpoint == "" {
        endpoint = "https://www.alphavantage.co"
    }

    hc := &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}
    ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
    defer cancel()

    // Raw payload first, untouched by any normalization.
    q := url.Values{}
    q.Set("function", "GLOBAL_QUOTE")
    q.Set("symbol", symbol)
    q.Set("apikey", cfg.AlphaVantage.APIKey)
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/query?"+q.Encode(), http.NoBody)
    if err != nil { log.Fatalf("request: %v", err) }
    resp, err := hc.Do(req)
    if err != nil { log.Fatalf("fetch: %v", err) }
    raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
    resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        log.Fatalf("http %d: %s", resp.StatusCode, string(raw))
    }

    var pretty json.RawMessage = raw
    if b, err := json.MarshalIndent(pretty, "", "  "); err == nil {
        pretty = b
    }
    fmt.Println("--- raw ---")
    fmt.Println(string(pretty))

    avClient, err := alphavantage.NewClient(cfg.AlphaVantage.APIKey,
        alphavantage.WithBaseURL(endpoint),
        alphavantage.WithHTTPClient(hc),
    )
    if err != nil { log.Fatalf("client: %v", err) }
    adapter := alphavantageadapter.New(alphavantageadapter.Config{}, avClient)

    quote, err := adapter.FetchOne(ctx, symbol)
    if err != nil { log.Fatalf("normalize: %v", err) }
    fmt.Println("--- normalized ---")
    if quote == nil {
        fmt.Println("null (no quote object in payload)")
        os.Exit(0)
    }
    b, _ := json.MarshalIndent(quote, "", "  ")
    fmt.Println(string(b))
}
