package asset_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plus3/keel/asset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentLoadsDeduplicate(t *testing.T) {
	var fetches atomic.Int64
	gate := make(chan struct{})

	l := asset.NewLoader(asset.Config{
		Fetch: func(path string, kind asset.Kind) (any, error) {
			fetches.Add(1)
			<-gate
			return "payload", nil
		},
	})

	const callers = 64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Load("hero.png", asset.KindImage)
		}()
	}
	wg.Wait()
	close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := l.Await(ctx, "hero.png")
	require.NoError(t, err)

	for i := 0; i < callers; i++ {
		a, err := l.Await(ctx, "hero.png")
		require.NoError(t, err)
		assert.Same(t, first, a, "all callers observe the same asset")
	}

	assert.Equal(t, int64(1), fetches.Load(), "exactly one underlying fetch")
}

func TestSiblingLoadsJoinOneFlight(t *testing.T) {
	var fetches atomic.Int64
	gate := make(chan struct{})

	l := asset.NewLoader(asset.Config{
		Fetch: func(path string, kind asset.Kind) (any, error) {
			fetches.Add(1)
			<-gate
			return "payload", nil
		},
	})

	// Two names for one source while the fetch is still in flight: both
	// calls join the same flight, and both logical names land when the
	// shared read completes.
	l.Load("hero.png", asset.KindImage, "first")
	l.Load("hero.png", asset.KindImage, "second")
	close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, err := l.Await(ctx, "hero.png")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok1 := l.Get("first")
		_, ok2 := l.Get("second")
		return ok1 && ok2
	}, 5*time.Second, time.Millisecond, "both callers publish their name")

	first, _ := l.Get("first")
	second, _ := l.Get("second")
	assert.Same(t, a, first)
	assert.Same(t, a, second)
	assert.Equal(t, int64(1), fetches.Load())
}

func TestCachedSourceServedWithoutRefetch(t *testing.T) {
	var fetches atomic.Int64
	l := asset.NewLoader(asset.Config{
		Fetch: func(path string, kind asset.Kind) (any, error) {
			fetches.Add(1)
			return 42, nil
		},
	})

	l.Load("data.json", asset.KindJSON)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := l.Await(ctx, "data.json")
	require.NoError(t, err)

	l.Load("data.json", asset.KindJSON)
	l.Load("data.json", asset.KindJSON, "config")
	assert.Equal(t, int64(1), fetches.Load())

	// The later named request published the cached asset under the name.
	a, ok := l.Get("config")
	require.True(t, ok)
	assert.Equal(t, "data.json", a.Source)
}

func TestFailedLoadClearsInFlightAndStaysRetryable(t *testing.T) {
	var fetches atomic.Int64
	var mu sync.Mutex
	var reported []error

	boom := errors.New("disk on fire")
	l := asset.NewLoader(asset.Config{
		OnError: func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		},
		Fetch: func(path string, kind asset.Kind) (any, error) {
			if fetches.Add(1) == 1 {
				return nil, boom
			}
			return "recovered", nil
		},
	})

	l.Load("flaky.png", asset.KindImage)
	require.Eventually(t, func() bool {
		return !l.Pending("flaky.png")
	}, 5*time.Second, time.Millisecond, "a failed load must never stay stuck pending")
	assert.False(t, l.Loaded("flaky.png"))

	mu.Lock()
	require.Len(t, reported, 1)
	assert.True(t, asset.IsLoadError(reported[0]))
	assert.ErrorIs(t, reported[0], boom)
	mu.Unlock()

	// Retry succeeds with a fresh fetch.
	l.Load("flaky.png", asset.KindImage)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, err := l.Await(ctx, "flaky.png")
	require.NoError(t, err)
	assert.Equal(t, "recovered", a.Payload)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestLoadedAndPendingNeverOverlap(t *testing.T) {
	gate := make(chan struct{})
	l := asset.NewLoader(asset.Config{
		Fetch: func(path string, kind asset.Kind) (any, error) {
			<-gate
			return "ok", nil
		},
	})

	l.Load("slow.png", asset.KindImage)
	assert.True(t, l.Pending("slow.png"))
	assert.False(t, l.Loaded("slow.png"))

	close(gate)
	require.Eventually(t, func() bool {
		return l.Loaded("slow.png")
	}, 5*time.Second, time.Millisecond)
	assert.False(t, l.Pending("slow.png"))
	assert.Zero(t, l.PendingCount())
}

func TestAwaitHonorsContext(t *testing.T) {
	l := asset.NewLoader(asset.Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := l.Await(ctx, "never-requested.png")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type disposable struct {
	disposed atomic.Bool
}

func (d *disposable) Dispose() { d.disposed.Store(true) }

func TestCloseDropsLateCompletionsSilently(t *testing.T) {
	payload := &disposable{}
	gate := make(chan struct{})
	done := make(chan struct{})

	var callbacks atomic.Int64
	l := asset.NewLoader(asset.Config{
		OnError: func(error) { callbacks.Add(1) },
		Fetch: func(path string, kind asset.Kind) (any, error) {
			<-gate
			defer close(done)
			return payload, nil
		},
	})

	l.Load("late.png", asset.KindImage)
	l.Close()
	close(gate)
	<-done

	require.Eventually(t, func() bool {
		return payload.disposed.Load()
	}, 5*time.Second, time.Millisecond, "owned native resources are released on late completion")
	assert.False(t, l.Loaded("late.png"))
	assert.Zero(t, callbacks.Load(), "no callback fires into a closed loader")

	l.Close() // second close is a no-op
}

func TestCloseDisposesOwnedAssets(t *testing.T) {
	payload := &disposable{}
	l := asset.NewLoader(asset.Config{
		Fetch: func(path string, kind asset.Kind) (any, error) {
			return payload, nil
		},
	})

	l.Load("owned.png", asset.KindImage)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := l.Await(ctx, "owned.png")
	require.NoError(t, err)

	l.Close()
	assert.True(t, payload.disposed.Load())
}

func TestRegisterClearsInFlightMarker(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)

	l := asset.NewLoader(asset.Config{
		Fetch: func(path string, kind asset.Kind) (any, error) {
			<-gate
			return "slow", nil
		},
	})

	l.Load("ui.png", asset.KindImage)
	require.True(t, l.Pending("ui.png"))

	// Registering the source out-of-band supersedes the in-flight fetch.
	l.Register(asset.Asset{Name: "ui", Source: "ui.png", Kind: asset.KindImage, Payload: "ready"})

	assert.True(t, l.Loaded("ui.png"))
	assert.False(t, l.Pending("ui.png"), "loaded and pending never overlap")
	assert.Zero(t, l.PendingCount())
}

func TestRegisteredAssetsAreNotOwned(t *testing.T) {
	payload := &disposable{}
	l := asset.NewLoader(asset.Config{})
	l.Register(asset.Asset{Name: "ui", Source: "mem://ui", Kind: asset.KindImage, Payload: payload})

	a, ok := l.Get("ui")
	require.True(t, ok)
	assert.False(t, a.Owned)

	l.Close()
	assert.False(t, payload.disposed.Load())
}

func TestFilesystemJSONLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"speed": 5}`), 0o644))

	l := asset.NewLoader(asset.Config{Root: dir})
	l.Load("cfg.json", asset.KindJSON, "config")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, err := l.Await(ctx, "cfg.json")
	require.NoError(t, err)

	obj, ok := a.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 5.0, obj["speed"])

	byName, ok := l.Get("config")
	require.True(t, ok)
	assert.Same(t, a, byName)
}

func TestAssetsSortedByName(t *testing.T) {
	l := asset.NewLoader(asset.Config{
		Fetch: func(path string, kind asset.Kind) (any, error) { return path, nil },
	})

	for _, name := range []string{"c", "a", "b"} {
		l.Load(fmt.Sprintf("%s.png", name), asset.KindImage, name)
	}
	require.Eventually(t, func() bool {
		return l.PendingCount() == 0
	}, 5*time.Second, time.Millisecond)

	all := l.Assets()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "b", all[1].Name)
	assert.Equal(t, "c", all[2].Name)
}
