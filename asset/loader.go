package asset

import (
	"context"
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config parameterizes a Loader.
type Config struct {
	// Root is the directory relative sources and VirtualPrefix sources
	// resolve against.
	Root string

	// OnError receives load failures. Failures are reported here and
	// logged; they are never thrown into the frame loop.
	OnError func(error)

	// Fetch overrides the filesystem read. It receives the resolved path.
	// Used by tests and by hosts with non-filesystem sources.
	Fetch func(path string, kind Kind) (any, error)
}

// Loader resolves source identifiers to decoded payloads, collapsing
// concurrent identical requests into one singleflight flight per source.
// Successful loads are cached; failed loads clear their in-flight marker so
// the source stays retryable.
type Loader struct {
	root    string
	onError func(error)
	fetchFn func(path string, kind Kind) (any, error)
	flight  singleflight.Group

	mu       sync.Mutex
	pending  map[string]struct{}
	byName   map[string]*Asset
	bySource map[string]*Asset
	waiters  map[string][]chan *Asset
	closed   bool
}

// NewLoader creates a loader over the configured root directory.
func NewLoader(cfg Config) *Loader {
	return &Loader{
		root:     cfg.Root,
		onError:  cfg.OnError,
		fetchFn:  cfg.Fetch,
		pending:  make(map[string]struct{}),
		byName:   make(map[string]*Asset),
		bySource: make(map[string]*Asset),
		waiters:  make(map[string][]chan *Asset),
	}
}

// Load requests a source. A cached source is served from the cache (the
// asset is additionally published under name, when given); otherwise the
// call joins the source's in-flight singleflight flight, starting one when
// none exists, and returns immediately.
//
// For any number of concurrent Load calls with the same source, exactly one
// underlying read occurs.
func (l *Loader) Load(source string, kind Kind, name ...string) {
	logical := source
	if len(name) > 0 && name[0] != "" {
		logical = name[0]
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if a, ok := l.bySource[source]; ok {
		if _, exists := l.byName[logical]; !exists {
			l.byName[logical] = a
		}
		l.mu.Unlock()
		return
	}
	l.pending[source] = struct{}{}
	// DoChan registration is synchronous, so a concurrent Load for the same
	// source joins this flight instead of starting a second read. The
	// pending set mirrors the flight for the sync queries; it is not the
	// dedup gate.
	ch := l.flight.DoChan(source, func() (any, error) {
		return l.read(source, kind)
	})
	l.mu.Unlock()

	go l.publish(source, kind, logical, ch)
}

// publish lands one caller's view of a completed flight. The first caller
// to arrive clears the in-flight marker and publishes the result (or
// reports the failure); siblings of the same flight at most add their
// logical-name alias.
func (l *Loader) publish(source string, kind Kind, logical string, ch <-chan singleflight.Result) {
	res := <-ch

	l.mu.Lock()
	if _, inFlight := l.pending[source]; !inFlight {
		if a, ok := l.bySource[source]; ok {
			if _, exists := l.byName[logical]; !exists {
				l.byName[logical] = a
			}
		}
		l.mu.Unlock()
		return
	}

	// Clearing the in-flight marker and publishing happen under one lock:
	// a waker never observes "loaded" and "still pending" simultaneously.
	delete(l.pending, source)

	if l.closed {
		l.mu.Unlock()
		// Late completion after Close: discard silently.
		if d, ok := res.Val.(Disposer); ok {
			d.Dispose()
		}
		return
	}

	if res.Err != nil {
		l.mu.Unlock()
		l.fail(&LoadError{Source: source, Kind: kind, Err: res.Err})
		return
	}

	a := &Asset{Name: logical, Source: source, Kind: kind, Payload: res.Val, Owned: true}
	l.bySource[source] = a
	l.byName[logical] = a
	ws := l.waiters[source]
	delete(l.waiters, source)
	l.mu.Unlock()

	for _, w := range ws {
		w <- a
	}
	Logger().Debug("asset loaded",
		zap.String("source", source),
		zap.String("name", logical),
		zap.String("kind", string(kind)),
	)
}

func (l *Loader) read(source string, kind Kind) (any, error) {
	path := Resolve(l.root, source)
	if l.fetchFn != nil {
		return l.fetchFn(path, kind)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch kind {
	case KindJSON:
		var v any
		if err := json.NewDecoder(f).Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, err
		}
		return img, nil
	}
}

func (l *Loader) fail(err *LoadError) {
	Logger().Warn("asset load failed",
		zap.String("source", err.Source),
		zap.String("kind", string(err.Kind)),
		zap.Error(err.Err),
	)
	if l.onError != nil {
		l.onError(err)
	}
}

// Register publishes an externally-created asset. The loader does not own it.
// A pending fetch for the same source is superseded: its in-flight marker is
// cleared here so loaded and pending never overlap.
func (l *Loader) Register(a Asset) {
	a.Owned = false
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	delete(l.pending, a.Source)
	stored := &a
	l.bySource[a.Source] = stored
	l.byName[a.Name] = stored
	for _, w := range l.waiters[a.Source] {
		w <- stored
	}
	delete(l.waiters, a.Source)
}

// Loaded reports whether the source has resolved.
func (l *Loader) Loaded(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.bySource[source]
	return ok
}

// Pending reports whether the source is in flight.
func (l *Loader) Pending(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.pending[source]
	return ok
}

// PendingCount returns the number of in-flight sources. The engine's asset
// gate polls this once per frame.
func (l *Loader) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Get returns an asset by logical name, falling back to raw source.
func (l *Loader) Get(name string) (*Asset, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.byName[name]; ok {
		return a, true
	}
	a, ok := l.bySource[name]
	return a, ok
}

// Assets returns all resolved assets, sorted by name.
func (l *Loader) Assets() []*Asset {
	l.mu.Lock()
	out := make([]*Asset, 0, len(l.bySource))
	for _, a := range l.bySource {
		out = append(out, a)
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Await blocks until the source resolves or the context expires. A failed
// load does not wake waiters (the source simply never becomes ready); the
// context bounds the wait.
func (l *Loader) Await(ctx context.Context, source string) (*Asset, error) {
	l.mu.Lock()
	if a, ok := l.bySource[source]; ok {
		l.mu.Unlock()
		return a, nil
	}
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	ch := make(chan *Asset, 1)
	l.waiters[source] = append(l.waiters[source], ch)
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case a := <-ch:
		return a, nil
	}
}

// Close shuts the loader down. In-flight loads may still complete afterward
// and are discarded silently; owned payloads holding native resources are
// released.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	assets := make([]*Asset, 0, len(l.bySource))
	for _, a := range l.bySource {
		assets = append(assets, a)
	}
	l.bySource = make(map[string]*Asset)
	l.byName = make(map[string]*Asset)
	l.waiters = make(map[string][]chan *Asset)
	l.mu.Unlock()

	for _, a := range assets {
		if !a.Owned {
			continue
		}
		if d, ok := a.Payload.(Disposer); ok {
			d.Dispose()
		}
	}
}
