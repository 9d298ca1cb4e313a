package resolve

import (
    "context"
    "errors"
    "log/slog"
    "strings"
    "sync"

    "golang.org/x/sync/errgroup"

    "stockwatch/internal/provider"
    "stockwatch/internal/provider/cache"
)

// ErrNoCache is the only failure Resolve itself can produce; individual
// symbol misses and provider outages degrade to partial results instead.
var ErrNoCache = errors.New("resolve: nil cache store")

const defaultFallbackConcurrency = 4

// Options controls a single resolution.
type Options struct {
    // BypassCache skips cache reads. Fresh quotes are still written back.
    BypassCache bool
}

// Resolver answers symbol lists from the cache, then a primary batch
// source, then a per-symbol fallback source. Either source may be nil,
// which behaves exactly like a source that returned no data.
type Resolver struct {
    Cache     *cache.Store
    Primary   provider.BatchSource
    Secondary provider.SingleSource
    // FallbackConcurrency bounds concurrent Secondary lookups. <= 0
    // selects a small default; watchlists are tens of symbols at most.
    FallbackConcurrency int
    // Logger, when set, records provider failures. Failures never abort
    // a resolution.
    Logger *slog.Logger
}

// Resolve returns one result per distinct normalized input symbol, in
// first-occurrence order. A symbol neither source could supply data for
// becomes a not-found row, not an error.
func (r *Resolver) Resolve(ctx context.Context, symbols []string, opts Options) ([]provider.Result, error) {
    if r.Cache == nil {
        return nil, ErrNoCache
    }

    unique := Normalize(symbols)
    if len(unique) == 0 {
        return []provider.Result{}, nil
    }

    found := make(map[string]provider.Quote, len(unique))

    // 1) Cache partition
    var missing []string
    if opts.BypassCache {
        missing = unique
    } else {
        for _, s := range unique {
            if q, ok := r.Cache.Get(s); ok {
                found[s] = q
            } else {
                missing = append(missing, s)
            }
        }
    }

    // 2) One primary batch for everything uncached
    if len(missing) > 0 && r.Primary != nil {
        quotes, err := r.Primary.Fetch(ctx, missing)
        if err != nil {
            r.warn("primary fetch failed", r.Primary.Name(), err)
        }
        for _, q := range quotes {
            if q.Symbol == "" { continue }
            r.Cache.Put(q.Symbol, q)
            found[q.Symbol] = q
        }
    }

    // 3) Per-symbol fallback for whatever the primary left unresolved
    var unresolved []string
    for _, s := range missing {
        if _, ok := found[s]; !ok {
            unresolved = append(unresolved, s)
        }
    }
    if len(unresolved) > 0 && r.Secondary != nil {
        limit := r.FallbackConcurrency
        if limit <= 0 { limit = defaultFallbackConcurrency }
        var mu sync.Mutex
        g, gctx := errgroup.WithContext(ctx)
        g.SetLimit(limit)
        for _, s := range unresolved {
            s := s
            g.Go(func() error {
                q, err := r.Secondary.FetchOne(gctx, s)
                if err != nil {
                    r.warn("fallback fetch failed", r.Secondary.Name(), err, "symbol", s)
                    return nil
                }
                if q == nil {
                    return nil
                }
                r.Cache.Put(s, *q)
                mu.Lock()
                found[s] = *q
                mu.Unlock()
                return nil
            })
        }
        _ = g.Wait()
    }

    // 4) Assemble in first-occurrence input order
    out := make([]provider.Result, 0, len(unique))
    for _, s := range unique {
        if q, ok := found[s]; ok {
            q := q
            out = append(out, provider.Result{Symbol: s, Quote: &q})
        } else {
            out = append(out, provider.Result{Symbol: s})
        }
    }
    return out, nil
}

func (r *Resolver) warn(msg, source string, err error, args ...any) {
    if r.Logger == nil {
        return
    }
    all := append([]any{"source", source, "err", err}, args...)
    r.Logger.Warn(msg, all...)
}

// Normalize trims, uppercases, drops empties and de-duplicates symbols,
// preserving each symbol's first occurrence.
func Normalize(symbols []string) []string {
    out := make([]string, 0, len(symbols))
    seen := make(map[string]struct{}, len(symbols))
    for _, s := range symbols {
        s = strings.ToUpper(strings.TrimSpace(s))
        if s == "" { continue }
        if _, dup := seen[s]; dup { continue }
        seen[s] = struct{}{}
        out = append(out, s)
    }
    return out
}
