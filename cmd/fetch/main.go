package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log"
    "net/http"
    "os"
    "strings"
    "time"

    "stockwatch/internal/config"
    "stockwatch/internal/httpx"
    "stockwatch/internal/provider/alphavantage"
    "stockwatch/internal/provider/alphavantageadapter"
    "stockwatch/internal/provider/cache"
    "stockwatch/internal/provider/yahoo"
    "stockwatch/internal/resolve"
)

func main() {
    var symbolsCSV string
    var noCache bool
    var timeout int
    var configPath string

    flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "AAPL,MSFT"), "comma-separated ticker symbols")
    flag.BoolVar(&noCache, "nocache", false, "bypass the quote cache")
    flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "request timeout seconds")
    flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
    flag.Parse()

    cfg, err := config.Load(configPath)
    if err != nil { log.Fatalf("config: %v", err) }
    if timeout != 0 { cfg.Server.RequestTimeoutSec = timeout }

    httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

    resolver := &resolve.Resolver{
        Cache:               cache.New(time.Duration(cfg.Quotes.CacheTTLSeconds) * time.Second),
        FallbackConcurrency: cfg.Quotes.FallbackConcurrency,
    }
    if cfg.Yahoo.Enabled {
        resolver.Primary = yahoo.New(yahoo.Config{
            URL:                  cfg.Yahoo.Endpoint,
            MaxSymbolsPerRequest: cfg.Yahoo.MaxSymbolsPerRequest,
            MaxConcurrency:       cfg.Yahoo.MaxConcurrency,
        }, httpClient)
    }
    if cfg.AlphaVantage.APIKey != "" {
        avClient, err := alphavantage.NewClient(
            cfg.AlphaVantage.APIKey,
            alphavantage.WithBaseURL(cfg.AlphaVantage.Endpoint),
            alphavantage.WithHTTPClient(httpClient.HTTP),
            alphavantage.WithHeader(http.Header{
                "User-Agent": []string{"stockwatch/1.0"},
            }),
        )
        if err != nil { log.Fatalf("alphavantage client: %v", err) }
        resolver.Secondary = alphavantageadapter.New(alphavantageadapter.Config{}, avClient)
    }
    if resolver.Primary == nil && resolver.Secondary == nil {
        log.Fatal("no providers configured; enable yahoo or set ALPHAVANTAGE_API_KEY")
    }

    symbols := splitCSV(symbolsCSV)
    if len(symbols) == 0 { log.Fatal("no symbols provided") }

    ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeoutSec)*time.Second)
    defer cancel()

    results, err := resolver.Resolve(ctx, symbols, resolve.Options{BypassCache: noCache})
    if err != nil { log.Fatalf("resolve: %v", err) }

    misses := 0
    for _, r := range results {
        if r.NotFound() { misses++ }
    }
    log.Printf("resolved %d/%d symbols", len(results)-misses, len(results))

    out := struct {
        Quotes any `json:"quotes"`
    }{Quotes: results}
    b, _ := json.MarshalIndent(out, "", "  ")
    fmt.Println(string(b))
}

func splitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}

func getenv(key, def string) string { if v := os.Getenv(key); v != "" { return v }; return def }
func getenvInt(key string, def int) int {
    if v := os.Getenv(key); v != "" {
        var x int
        _, _ = fmt.Sscanf(v, "%d", &x)
        if x != 0 { return x }
    }
    return def
}
