package watchlist

import (
    "encoding/json"
    "errors"
    "fmt"
    "math"
    "math/rand"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"
)

var (
    ErrNotFound  = errors.New("watchlist: item not found")
    ErrDuplicate = errors.New("watchlist: symbol already exists")
    ErrNoSymbol  = errors.New("watchlist: symbol is required")
)

// Item is one watchlist record. The file format is the pretty-printed
// JSON array the original data file used, so it stays hand-editable.
type Item struct {
    ID        int       `json:"id"`
    Symbol    string    `json:"symbol"`
    Name      string    `json:"name"`
    Notes     string    `json:"notes"`
    LastPrice float64   `json:"lastPrice"`
    UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a JSON-file-backed watchlist. A missing or unreadable file
// reads as an empty list. All mutations are serialized by one lock and
// rewrite the whole file.
type Store struct {
    path string
    mu   sync.Mutex
}

func NewStore(path string) *Store {
    return &Store{path: path}
}

// List returns all items in file order.
func (s *Store) List() ([]Item, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.read()
}

// Symbols returns the symbols of all items, in file order.
func (s *Store) Symbols() ([]string, error) {
    items, err := s.List()
    if err != nil { return nil, err }
    out := make([]string, 0, len(items))
    for _, it := range items {
        if it.Symbol != "" { out = append(out, it.Symbol) }
    }
    return out, nil
}

// Add appends a new item. Symbols are canonicalized to uppercase and
// must be unique within the list.
func (s *Store) Add(symbol, name, notes string) (Item, error) {
    symbol = strings.ToUpper(strings.TrimSpace(symbol))
    if symbol == "" {
        return Item{}, ErrNoSymbol
    }

    s.mu.Lock()
    defer s.mu.Unlock()
    items, err := s.read()
    if err != nil { return Item{}, err }

    nextID := 1
    for _, it := range items {
        if it.Symbol == symbol {
            return Item{}, ErrDuplicate
        }
        if it.ID >= nextID { nextID = it.ID + 1 }
    }

    item := Item{
        ID:        nextID,
        Symbol:    symbol,
        Name:      strings.TrimSpace(name),
        Notes:     strings.TrimSpace(notes),
        LastPrice: 100, // placeholder until a real quote arrives
        UpdatedAt: time.Now().UTC(),
    }
    items = append(items, item)
    if err := s.write(items); err != nil { return Item{}, err }
    return item, nil
}

// Update edits the name and/or notes of the item with id. Nil fields are
// left untouched.
func (s *Store) Update(id int, name, notes *string) (Item, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    items, err := s.read()
    if err != nil { return Item{}, err }

    for i := range items {
        if items[i].ID != id { continue }
        if name != nil { items[i].Name = strings.TrimSpace(*name) }
        if notes != nil { items[i].Notes = strings.TrimSpace(*notes) }
        items[i].UpdatedAt = time.Now().UTC()
        if err := s.write(items); err != nil { return Item{}, err }
        return items[i], nil
    }
    return Item{}, ErrNotFound
}

// Delete removes the item with id.
func (s *Store) Delete(id int) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    items, err := s.read()
    if err != nil { return err }

    out := items[:0]
    found := false
    for _, it := range items {
        if it.ID == id {
            found = true
            continue
        }
        out = append(out, it)
    }
    if !found {
        return ErrNotFound
    }
    return s.write(out)
}

// Tick nudges every lastPrice by up to ±2% and persists the result, so
// repeated watchlist reads look live without any upstream call. This is
// display dressing only; real quotes come from the resolver.
func (s *Store) Tick() ([]Item, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    items, err := s.read()
    if err != nil { return nil, err }

    now := time.Now().UTC()
    for i := range items {
        last := items[i].LastPrice
        if last <= 0 { last = 100 }
        drift := (rand.Float64() * 0.04) - 0.02
        next := last * (1 + drift)
        items[i].LastPrice = math.Round(next*100) / 100 // 2 dp
        items[i].UpdatedAt = now
    }
    if len(items) > 0 {
        if err := s.write(items); err != nil { return nil, err }
    }
    return items, nil
}

// read loads the file; callers hold s.mu. Missing or invalid files fall
// back to an empty list.
func (s *Store) read() ([]Item, error) {
    b, err := os.ReadFile(s.path)
    if err != nil {
        if errors.Is(err, os.ErrNotExist) {
            return []Item{}, nil
        }
        return nil, fmt.Errorf("read watchlist: %w", err)
    }
    var items []Item
    if err := json.Unmarshal(b, &items); err != nil {
        return []Item{}, nil
    }
    return items, nil
}

// write persists the full list; callers hold s.mu.
func (s *Store) write(items []Item) error {
    if dir := filepath.Dir(s.path); dir != "." && dir != "" {
        if err := os.MkdirAll(dir, 0o755); err != nil {
            return fmt.Errorf("write watchlist: %w", err)
        }
    }
    b, err := json.MarshalIndent(items, "", "  ")
    if err != nil {
        return fmt.Errorf("write watchlist: %w", err)
    }
    if err := os.WriteFile(s.path, b, 0o644); err != nil {
        return fmt.Errorf("write watchlist: %w", err)
    }
    return nil
}
