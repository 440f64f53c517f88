package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
)

type memoryBackend struct {
	mu   sync.Mutex
	data map[string]string
	fail bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]string)}
}

func (m *memoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("connection refused")
	}
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memoryBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func result(buildID, query string, topK int) *executor.SearchResult {
	return &executor.SearchResult{
		Query:   query,
		TopK:    topK,
		Terms:   []string{"solar"},
		Results: []ranker.ScoredDoc{{DocumentID: 0, DocumentName: "doc0.html", Score: 0.61}},
		BuildID: buildID,
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	ctx := context.Background()
	computes := 0
	compute := func(context.Context) (*executor.SearchResult, error) {
		computes++
		return result("b1", "solar", 5), nil
	}

	first, hit, err := c.GetOrCompute(ctx, "b1", "solar", 5, compute)
	if err != nil || hit {
		t.Fatalf("first call: hit=%v err=%v; want miss", hit, err)
	}
	second, hit, err := c.GetOrCompute(ctx, "b1", "  SOLAR ", 5, compute)
	if err != nil || !hit {
		t.Fatalf("second call: hit=%v err=%v; want hit", hit, err)
	}
	if computes != 1 {
		t.Fatalf("computes = %d; want 1", computes)
	}
	if second.Results[0] != first.Results[0] {
		t.Fatalf("cached result %+v differs from %+v", second.Results[0], first.Results[0])
	}
	if second.Query != "  SOLAR " {
		t.Fatalf("hit query = %q; want the caller's raw query", second.Query)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("stats = %d hits / %d misses; want 1 / 1", hits, misses)
	}
}

func TestSharedComputeSurvivesCallerCancel(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return result("b1", "solar", 5), nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaderCtx, "b1", "solar", 5, compute)
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		res *executor.SearchResult
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, _, err := c.GetOrCompute(context.Background(), "b1", "Solar", 5, func(context.Context) (*executor.SearchResult, error) {
			return result("b1", "Solar", 5), nil
		})
		follower <- outcome{res, err}
	}()

	cancel()
	// Give the follower time to join the in-flight computation.
	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-leaderErr; err != nil {
		t.Fatalf("leader err = %v; want nil", err)
	}
	got := <-follower
	if got.err != nil {
		t.Fatalf("follower err = %v", got.err)
	}
	if got.res.Query != "Solar" {
		t.Fatalf("follower query = %q; want Solar", got.res.Query)
	}
}

func TestKeyIncludesBuildAndTopK(t *testing.T) {
	base := buildKey("b1", "solar power", 5)
	for _, other := range []string{
		buildKey("b2", "solar power", 5),
		buildKey("b1", "solar power", 2),
		buildKey("b1", "power solar", 5),
	} {
		if other == base {
			t.Fatalf("key collision for %q", other)
		}
	}
	if buildKey("b1", "Solar   Power", 5) != base {
		t.Fatal("case and spacing should not change the key")
	}
}

func TestComputeErrorNotCached(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "b1", "solar", 5, func(context.Context) (*executor.SearchResult, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v; want boom", err)
	}
	if _, ok := c.Get(context.Background(), "b1", "solar", 5); ok {
		t.Fatal("failed computation must not be cached")
	}
}

func TestBackendFailureOpensCircuit(t *testing.T) {
	backend := newMemoryBackend()
	backend.fail = true
	c := New(backend, time.Minute, nil)
	for i := 0; i < 10; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), "b1", "solar", 5, func(context.Context) (*executor.SearchResult, error) {
			return result("b1", "solar", 5), nil
		})
		if err != nil || hit || res == nil {
			t.Fatalf("call %d: res=%v hit=%v err=%v; search must keep working", i, res, hit, err)
		}
	}
	if c.CircuitState() != "open" {
		t.Fatalf("circuit = %s; want open", c.CircuitState())
	}
}

func TestInvalidate(t *testing.T) {
	backend := newMemoryBackend()
	c := New(backend, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, result("b1", "solar", 5))
	c.Set(ctx, result("b1", "wind", 5))
	backend.data["other:key"] = "x"

	n, err := c.Invalidate(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Invalidate = %d, %v; want 2", n, err)
	}
	if _, ok := backend.data["other:key"]; !ok {
		t.Fatal("keys outside the cache prefix must survive")
	}
}
