package main

import (
    "compress/gzip"
    "context"
    "encoding/json"
    "io"
    "log"
    "log/slog"
    "net/http"
    "net/url"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "sync"
    "syscall"
    "time"

    "stockwatch/internal/config"
    "stockwatch/internal/httpx"
    "stockwatch/internal/provider"
    "stockwatch/internal/provider/alphavantage"
    "stockwatch/internal/provider/alphavantageadapter"
    "stockwatch/internal/provider/cache"
    "stockwatch/internal/provider/yahoo"
    "stockwatch/internal/resolve"
    "stockwatch/internal/watchlist"
)

type quotesResponse struct {
    Symbols []string          `json:"symbols"`
    Quotes  []provider.Result `json:"quotes"`
}

func main() {
    cfgPath := os.Getenv("CONFIG_FILE")
    cfg, err := config.Load(cfgPath)
    if err != nil { log.Fatalf("config: %v", err) }
    port := cfg.Server.Port
    timeoutSec := cfg.Server.RequestTimeoutSec

    httpClient := httpx.New(time.Duration(timeoutSec) * time.Second)
    httpClient.UserAgent = "stockwatch/1.0"

    resolver := &resolve.Resolver{
        Cache:               cache.New(time.Duration(cfg.Quotes.CacheTTLSeconds) * time.Second),
        FallbackConcurrency: cfg.Quotes.FallbackConcurrency,
        Logger:              slog.Default(),
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
        if err != nil {
            log.Printf("alphavantage client error: %v", err)
        } else {
            resolver.Secondary = alphavantageadapter.New(alphavantageadapter.Config{}, avClient)
        }
    } else {
        log.Println("ALPHAVANTAGE_API_KEY not set; fallback provider disabled")
    }

    store := watchlist.NewStore(cfg.Watchlist.DataFile)

    mux := http.NewServeMux()
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte(`{"ok":true}`))
    })
    mux.HandleFunc("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet {
            writeError(w, http.StatusMethodNotAllowed, "method not allowed")
            return
        }
        handleGetQuotes(w, r, resolver, store)
    })
    mux.HandleFunc("/api/watchlist", func(w http.ResponseWriter, r *http.Request) {
        switch r.Method {
        case http.MethodGet:
            handleListWatchlist(w, store)
        case http.MethodPost:
            handleAddWatchlist(w, r, store)
        default:
            writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        }
    })
    mux.HandleFunc("/api/watchlist/", func(w http.ResponseWriter, r *http.Request) {
        id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/watchlist/"))
        if err != nil {
            writeError(w, http.StatusBadRequest, "Invalid id")
            return
        }
        switch r.Method {
        case http.MethodPut:
            handleUpdateWatchlist(w, r, store, id)
        case http.MethodDelete:
            handleDeleteWatchlist(w, store, id)
        default:
            writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        }
    })

    srv := &http.Server{
        Addr:              ":" + port,
        Handler:           withJSONHeaders(cfg.CORSOrigins, withGzip(recoverPanic(limitBody(mux)))),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        WriteTimeout:      20 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    go func() {
        log.Printf("server listening on :%s", port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatalf("server: %v", err)
        }
    }()

    // graceful shutdown
    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
}

func handleGetQuotes(w http.ResponseWriter, r *http.Request, res *resolve.Resolver, store *watchlist.Store) {
    var symbols []string
    if q := strings.TrimSpace(r.URL.Query().Get("symbols")); q != "" {
        symbols = splitCSV(q)
    } else {
        var err error
        symbols, err = store.Symbols()
        if err != nil {
            writeError(w, http.StatusInternalServerError, "Failed to fetch quotes")
            return
        }
    }
    if len(symbols) > 1000 {
        writeError(w, http.StatusBadRequest, "too many symbols (max 1000)")
        return
    }
    bypass := false
    switch strings.ToLower(r.URL.Query().Get("nocache")) {
    case "1", "true":
        bypass = true
    }
    writeQuotes(w, r.Context(), res, symbols, bypass)
}

func writeQuotes(w http.ResponseWriter, rctx context.Context, res *resolve.Resolver, symbols []string, bypass bool) {
    ctx, cancel := context.WithTimeout(rctx, 15*time.Second)
    defer cancel()
    results, err := res.Resolve(ctx, symbols, resolve.Options{BypassCache: bypass})
    if err != nil {
        writeError(w, http.StatusInternalServerError, "Failed to fetch quotes")
        return
    }
    writeJSON(w, http.StatusOK, quotesResponse{Symbols: resolve.Normalize(symbols), Quotes: results})
}

func handleListWatchlist(w http.ResponseWriter, store *watchlist.Store) {
    items, err := store.Tick()
    if err != nil {
        writeError(w, http.StatusInternalServerError, "Failed to read watchlist")
        return
    }
    writeJSON(w, http.StatusOK, items)
}

type addBody struct {
    Symbol string `json:"symbol"`
    Name   string `json:"name"`
    Notes  string `json:"notes"`
}

func handleAddWatchlist(w http.ResponseWriter, r *http.Request, store *watchlist.Store) {
    var b addBody
    if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
        writeError(w, http.StatusBadRequest, "invalid JSON body")
        return
    }
    item, err := store.Add(b.Symbol, b.Name, b.Notes)
    switch {
    case err == nil:
        writeJSON(w, http.StatusCreated, item)
    case err == watchlist.ErrNoSymbol:
        writeError(w, http.StatusBadRequest, "symbol is required")
    case err == watchlist.ErrDuplicate:
        writeError(w, http.StatusConflict, "symbol already exists in watchlist")
    default:
        writeError(w, http.StatusInternalServerError, "Failed to update watchlist")
    }
}

type updateBody struct {
    Name  *string `json:"name"`
    Notes *string `json:"notes"`
}

func handleUpdateWatchlist(w http.ResponseWriter, r *http.Request, store *watchlist.Store, id int) {
    var b updateBody
    if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
        writeError(w, http.StatusBadRequest, "invalid JSON body")
        return
    }
    item, err := store.Update(id, b.Name, b.Notes)
    switch {
    case err == nil:
        writeJSON(w, http.StatusOK, item)
    case err == watchlist.ErrNotFound:
        writeError(w, http.StatusNotFound, "Item not found")
    default:
        writeError(w, http.StatusInternalServerError, "Failed to update watchlist")
    }
}

func handleDeleteWatchlist(w http.ResponseWriter, store *watchlist.Store, id int) {
    err := store.Delete(id)
    switch {
    case err == nil:
        writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted successfully"})
    case err == watchlist.ErrNotFound:
        writeError(w, http.StatusNotFound, "Item not found")
    default:
        writeError(w, http.StatusInternalServerError, "Failed to update watchlist")
    }
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.WriteHeader(code)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
    writeJSON(w, code, map[string]string{"error": msg})
}

// withJSONHeaders sets the content type and answers CORS preflight for
// allowed origins: the configured list plus any *.github.io page, where
// the original frontend is hosted.
func withJSONHeaders(origins []string, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        if origin := r.Header.Get("Origin"); origin != "" && originAllowed(origins, origin) {
            w.Header().Set("Access-Control-Allow-Origin", origin)
            w.Header().Set("Vary", "Origin")
            w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
            w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Accept")
        }
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

func originAllowed(origins []string, origin string) bool {
    for _, o := range origins {
        if strings.EqualFold(o, origin) { return true }
    }
    u, err := url.Parse(origin)
    if err != nil { return false }
    return strings.HasSuffix(u.Hostname(), ".github.io")
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        // Prefer best speed to reduce CPU usage since payloads are JSON
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
        next.ServeHTTP(gw, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
    const maxBody = 1 << 20 // 1MB
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
            r.Body = http.MaxBytesReader(w, r.Body, maxBody)
        }
        next.ServeHTTP(w, r)
    })
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                writeError(w, http.StatusInternalServerError, "internal server error")
            }
        }()
        next.ServeHTTP(w, r)
    })
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
