package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "strings"
)

type Server struct {
    Port              string `json:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Quotes struct {
    CacheTTLSeconds     int `json:"cache_ttl_sec"`
    FallbackConcurrency int `json:"fallback_concurrency"`
}

type Yahoo struct {
    Enabled              bool   `json:"enabled"`
    Endpoint             string `json:"endpoint"`
    MaxSymbolsPerRequest int    `json:"max_symbols_per_request"`
    MaxConcurrency       int    `json:"max_concurrency"`
}

type AlphaVantage struct {
    APIKey   string `json:"api_key"`
    Endpoint string `json:"endpoint"`
}

type Watchlist struct {
    DataFile string `json:"data_file"`
}

type Config struct {
    Server       Server       `json:"server"`
    Quotes       Quotes       `json:"quotes"`
    Yahoo        Yahoo        `json:"yahoo"`
    AlphaVantage AlphaVantage `json:"alphavantage"`
    Watchlist    Watchlist    `json:"watchlist"`
    CORSOrigins  []string     `json:"cors_origins"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 10},
        Quotes: Quotes{
            CacheTTLSeconds:     300,
            FallbackConcurrency: 4,
        },
        Yahoo: Yahoo{
            Enabled:              true,
            Endpoint:             "https://query1.finance.yahoo.com/v7/finance/quote",
            MaxSymbolsPerRequest: 100,
            MaxConcurrency:       2,
        },
        AlphaVantage: AlphaVantage{
            Endpoint: "https://www.alphavantage.co",
        },
        Watchlist: Watchlist{DataFile: "data/watchlist.json"},
        CORSOrigins: []string{
            "http://localhost:8080",
            "http://127.0.0.1:8080",
        },
    }
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := json.Unmarshal(b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg)
    return cfg, nil
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }
    if v := os.Getenv("QUOTES_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Quotes.CacheTTLSeconds = x }
    }
    if v := os.Getenv("QUOTES_FALLBACK_CONCURRENCY"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Quotes.FallbackConcurrency = x }
    }
    if v := os.Getenv("YAHOO_ENABLED"); v != "" {
        switch strings.ToLower(v) {
        case "1","true","yes","y": cfg.Yahoo.Enabled = true
        case "0","false","no","n": cfg.Yahoo.Enabled = false
        }
    }
    if v := os.Getenv("YAHOO_ENDPOINT"); v != "" { cfg.Yahoo.Endpoint = v }
    if v := os.Getenv("YAHOO_MAX_SYMBOLS_PER_REQUEST"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Yahoo.MaxSymbolsPerRequest = x }
    }
    if v := os.Getenv("YAHOO_MAX_CONCURRENCY"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Yahoo.MaxConcurrency = x }
    }
    if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" { cfg.AlphaVantage.APIKey = v }
    if v := os.Getenv("ALPHAVANTAGE_ENDPOINT"); v != "" { cfg.AlphaVantage.Endpoint = v }
    if v := os.Getenv("WATCHLIST_FILE"); v != "" { cfg.Watchlist.DataFile = v }
    if v := os.Getenv("CORS_ORIGINS"); v != "" {
        cfg.CORSOrigins = append(cfg.CORSOrigins, splitCSV(v)...)
    }
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
