package resolve

import (
    "context"
    "errors"
    "sync/atomic"
    "testing"
    "time"

    "stockwatch/internal/provider"
    "stockwatch/internal/provider/cache"
)

type fakeBatch struct {
    quotes map[string]provider.Quote
    err    error
    calls  int32
}

func (f *fakeBatch) Name() string { return "fake-batch" }
func (f *fakeBatch) Fetch(_ context.Context, symbols []string) ([]provider.Quote, error) {
    atomic.AddInt32(&f.calls, 1)
    if f.err != nil { return nil, f.err }
    var out []provider.Quote
    for _, s := range symbols {
        if q, ok := f.quotes[s]; ok { out = append(out, q) }
    }
    return out, nil
}

type fakeSingle struct {
    quotes map[string]provider.Quote
    err    error
    calls  int32
}

func (f *fakeSingle) Name() string { return "fake-single" }
func (f *fakeSingle) FetchOne(_ context.Context, symbol string) (*provider.Quote, error) {
    atomic.AddInt32(&f.calls, 1)
    if f.err != nil { return nil, f.err }
    if q, ok := f.quotes[symbol]; ok { return &q, nil }
    return nil, nil
}

func q(symbol string, price float64) provider.Quote {
    return provider.Quote{Symbol: symbol, Price: &price, UpdatedAt: time.Now().UTC(), Source: provider.SourceYahoo}
}

func newResolver() *Resolver {
    return &Resolver{Cache: cache.New(time.Minute)}
}

func TestResolve_NilCacheIsTheOnlyFailure(t *testing.T) {
    r := &Resolver{}
    if _, err := r.Resolve(testContext(t), []string{"AAPL"}, Options{}); !errors.Is(err, ErrNoCache) {
        t.Fatalf("want ErrNoCache, got %v", err)
    }
}

func TestResolve_EmptyInputTouchesNothing(t *testing.T) {
    pri := &fakeBatch{}
    sec := &fakeSingle{}
    r := newResolver()
    r.Primary, r.Secondary = pri, sec

    out, err := r.Resolve(testContext(t), []string{"", "  "}, Options{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(out) != 0 { t.Fatalf("want empty result, got %+v", out) }
    if pri.calls != 0 || sec.calls != 0 {
        t.Fatalf("providers contacted for empty input: %d/%d", pri.calls, sec.calls)
    }
}

func TestResolve_NormalizationAndOrder(t *testing.T) {
    pri := &fakeBatch{quotes: map[string]provider.Quote{"AAPL": q("AAPL", 150.25)}}
    r := newResolver()
    r.Primary = pri

    out, err := r.Resolve(testContext(t), []string{"aapl", " AAPL ", "MSFT"}, Options{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(out) != 2 {
        t.Fatalf("want 2 rows after dedupe, got %d: %+v", len(out), out)
    }
    if out[0].Symbol != "AAPL" || out[0].NotFound() || *out[0].Quote.Price != 150.25 {
        t.Fatalf("unexpected first row: %+v", out[0])
    }
    if out[1].Symbol != "MSFT" || !out[1].NotFound() {
        t.Fatalf("want MSFT not_found, got %+v", out[1])
    }
}

func TestResolve_CacheHitSkipsProviders(t *testing.T) {
    pri := &fakeBatch{quotes: map[string]provider.Quote{"AAPL": q("AAPL", 150)}}
    sec := &fakeSingle{}
    r := newResolver()
    r.Primary, r.Secondary = pri, sec
    r.Cache.Put("AAPL", q("AAPL", 100))

    out, err := r.Resolve(testContext(t), []string{"AAPL"}, Options{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if pri.calls != 0 || sec.calls != 0 {
        t.Fatalf("providers called despite cache hit: %d/%d", pri.calls, sec.calls)
    }
    if out[0].NotFound() || *out[0].Quote.Price != 100 {
        t.Fatalf("want cached price 100, got %+v", out[0])
    }
}

func TestResolve_BypassCacheForcesFetch(t *testing.T) {
    pri := &fakeBatch{quotes: map[string]provider.Quote{"AAPL": q("AAPL", 150)}}
    r := newResolver()
    r.Primary = pri
    r.Cache.Put("AAPL", q("AAPL", 100))

    out, err := r.Resolve(testContext(t), []string{"AAPL"}, Options{BypassCache: true})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if pri.calls != 1 {
        t.Fatalf("primary not called with bypass: %d", pri.calls)
    }
    if *out[0].Quote.Price != 150 {
        t.Fatalf("want fresh price 150, got %v", *out[0].Quote.Price)
    }
    // bypass still refreshes the cache
    if cached, ok := r.Cache.Get("AAPL"); !ok || *cached.Price != 150 {
        t.Fatalf("cache not refreshed: %+v ok=%v", cached, ok)
    }
}

func TestResolve_FallbackOnlyForPrimaryMisses(t *testing.T) {
    pri := &fakeBatch{quotes: map[string]provider.Quote{"AAPL": q("AAPL", 150)}}
    secQuote := provider.Quote{Symbol: "MSFT", Price: fp(401), UpdatedAt: time.Now().UTC(), Source: provider.SourceAlphaVantage}
    sec := &fakeSingle{quotes: map[string]provider.Quote{"MSFT": secQuote, "AAPL": q("AAPL", 999)}}
    r := newResolver()
    r.Primary, r.Secondary = pri, sec

    out, err := r.Resolve(testContext(t), []string{"AAPL", "MSFT"}, Options{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if sec.calls != 1 {
        t.Fatalf("fallback should only see primary misses, calls=%d", sec.calls)
    }
    if *out[0].Quote.Price != 150 || out[0].Quote.Source != provider.SourceYahoo {
        t.Fatalf("primary result overridden: %+v", out[0])
    }
    if *out[1].Quote.Price != 401 || out[1].Quote.Source != provider.SourceAlphaVantage {
        t.Fatalf("fallback result wrong: %+v", out[1])
    }
}

func TestResolve_PrimaryErrorDegradesToFallback(t *testing.T) {
    pri := &fakeBatch{err: errors.New("upstream down")}
    sec := &fakeSingle{quotes: map[string]provider.Quote{"AAPL": q("AAPL", 142)}}
    r := newResolver()
    r.Primary, r.Secondary = pri, sec

    out, err := r.Resolve(testContext(t), []string{"AAPL"}, Options{})
    if err != nil { t.Fatalf("resolution must not fail on provider outage: %v", err) }
    if out[0].NotFound() || *out[0].Quote.Price != 142 {
        t.Fatalf("fallback not used: %+v", out[0])
    }
}

func TestResolve_NoProvidersMeansNotFound(t *testing.T) {
    r := newResolver()
    out, err := r.Resolve(testContext(t), []string{"AAPL"}, Options{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(out) != 1 || !out[0].NotFound() || out[0].Symbol != "AAPL" {
        t.Fatalf("want not_found row, got %+v", out)
    }
}

func TestResolve_SecondaryErrorIsARowMissNotAFailure(t *testing.T) {
    sec := &fakeSingle{err: errors.New("rate limited")}
    r := newResolver()
    r.Secondary = sec

    out, err := r.Resolve(testContext(t), []string{"AAPL"}, Options{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if !out[0].NotFound() {
        t.Fatalf("want not_found on fallback error, got %+v", out[0])
    }
}

func TestResolve_FreshQuotesPopulateCache(t *testing.T) {
    pri := &fakeBatch{quotes: map[string]provider.Quote{"AAPL": q("AAPL", 150)}}
    r := newResolver()
    r.Primary = pri

    if _, err := r.Resolve(testContext(t), []string{"AAPL"}, Options{}); err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if cached, ok := r.Cache.Get("AAPL"); !ok || *cached.Price != 150 {
        t.Fatalf("cache not populated: %+v ok=%v", cached, ok)
    }
}

func TestResolve_IdempotentWithinTTL(t *testing.T) {
    pri := &fakeBatch{quotes: map[string]provider.Quote{"AAPL": q("AAPL", 150), "MSFT": q("MSFT", 400)}}
    r := newResolver()
    r.Primary = pri

    first, err := r.Resolve(testContext(t), []string{"AAPL", "MSFT"}, Options{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    second, err := r.Resolve(testContext(t), []string{"AAPL", "MSFT"}, Options{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }

    if pri.calls != 1 {
        t.Fatalf("second call should be served from cache, calls=%d", pri.calls)
    }
    if len(first) != len(second) {
        t.Fatalf("result sets differ in length: %d vs %d", len(first), len(second))
    }
    for i := range first {
        if first[i].Symbol != second[i].Symbol || *first[i].Quote.Price != *second[i].Quote.Price {
            t.Fatalf("row %d differs: %+v vs %+v", i, first[i], second[i])
        }
    }
}

func TestResolve_PartialPrimaryDataIsStillAQuote(t *testing.T) {
    // symbol present upstream but with no price
    pri := &fakeBatch{quotes: map[string]provider.Quote{
        "AAPL": {Symbol: "AAPL", UpdatedAt: time.Now().UTC(), Source: provider.SourceYahoo},
    }}
    r := newResolver()
    r.Primary = pri

    out, err := r.Resolve(testContext(t), []string{"AAPL"}, Options{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if out[0].NotFound() {
        t.Fatal("priceless quote must not collapse into not_found")
    }
    if out[0].Quote.Price != nil {
        t.Fatalf("want nil price, got %v", *out[0].Quote.Price)
    }
}

func TestNormalize(t *testing.T) {
    got := Normalize([]string{" aapl", "AAPL ", "", "msft", "AAPL"})
    want := []string{"AAPL", "MSFT"}
    if len(got) != len(want) {
        t.Fatalf("want %v, got %v", want, got)
    }
    for i := range want {
        if got[i] != want[i] { t.Fatalf("want %v, got %v", want, got) }
    }
}

func fp(v float64) *float64 { return &v }
