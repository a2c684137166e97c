package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockRouter records calls and returns a scripted response or error.
type mockRouter struct {
	mu    sync.Mutex
	calls int
	resp  *RoutingResponse
	err   error
}

func (m *mockRouter) Route(_ context.Context, _ RoutingRequest) (*RoutingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	cp := *m.resp
	return &cp, nil
}

func (m *mockRouter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockStore is a scriptable CacheStore.
type mockStore struct {
	mu      sync.Mutex
	entries map[string]*RoutingResponse
	getErr  error
	setErr  error
	sets    int
}

func newMockStore() *mockStore {
	return &mockStore{entries: map[string]*RoutingResponse{}}
}

func (s *mockStore) GetCachedPath(_ context.Context, key string) (*RoutingResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.entries[key], nil
}

func (s *mockStore) SetCachedPath(_ context.Context, key string, resp *RoutingResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[key] = resp
	return nil
}

var testReq = RoutingRequest{
	OriginLat:      50.0647,
	OriginLon:      19.9450,
	DestinationLat: 50.0540,
	DestinationLon: 19.9354,
	Profile:        ProfileWalking,
}

func TestCachedRouter_Hit(t *testing.T) {
	inner := &mockRouter{resp: &RoutingResponse{Polyline: "live", DistanceM: 1, DurationS: 1}}
	store := newMockStore()
	store.entries[CacheKey(testReq)] = &RoutingResponse{Polyline: "cached", DistanceM: 1400, DurationS: 1000}

	r := NewCachedRouter(inner, store)
	resp, err := r.Route(context.Background(), testReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Polyline != "cached" {
		t.Errorf("polyline = %q, want cached entry", resp.Polyline)
	}
	if inner.callCount() != 0 {
		t.Errorf("inner router called %d times on a cache hit", inner.callCount())
	}
}

func TestCachedRouter_MissCallsInnerAndStores(t *testing.T) {
	inner := &mockRouter{resp: &RoutingResponse{Polyline: "live", DistanceM: 1400, DurationS: 1000}}
	store := newMockStore()

	stored := make(chan struct{}, 1)
	r := NewCachedRouter(inner, store, withAfterStore(func() { stored <- struct{}{} }))

	resp, err := r.Route(context.Background(), testReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Polyline != "live" {
		t.Errorf("polyline = %q, want live response", resp.Polyline)
	}
	if inner.callCount() != 1 {
		t.Errorf("inner router called %d times, want 1", inner.callCount())
	}

	select {
	case <-stored:
	case <-time.After(2 * time.Second):
		t.Fatal("async cache write did not complete")
	}
	if got, _ := store.GetCachedPath(context.Background(), CacheKey(testReq)); got == nil {
		t.Error("response was not persisted to the cache")
	}
}

func TestCachedRouter_InnerErrorNotCached(t *testing.T) {
	wantErr := errors.New("routes api unavailable")
	inner := &mockRouter{err: wantErr}
	store := newMockStore()

	r := NewCachedRouter(inner, store)
	if _, err := r.Route(context.Background(), testReq); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}

	store.mu.Lock()
	sets := store.sets
	store.mu.Unlock()
	if sets != 0 {
		t.Errorf("failed response was written to the cache %d times", sets)
	}
}

func TestCachedRouter_StoreReadErrorFallsThrough(t *testing.T) {
	inner := &mockRouter{resp: &RoutingResponse{Polyline: "live", DistanceM: 10, DurationS: 10}}
	store := newMockStore()
	store.getErr = errors.New("connection reset")

	stored := make(chan struct{}, 1)
	r := NewCachedRouter(inner, store, withAfterStore(func() { stored <- struct{}{} }))

	resp, err := r.Route(context.Background(), testReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Polyline != "live" {
		t.Errorf("polyline = %q, want live response despite cache read failure", resp.Polyline)
	}
	<-stored
}

func TestCachedRouter_AsyncWriteFailureLogged(t *testing.T) {
	inner := &mockRouter{resp: &RoutingResponse{Polyline: "live", DistanceM: 10, DurationS: 10}}
	store := newMockStore()
	store.setErr = errors.New("disk full")

	var (
		logMu  sync.Mutex
		logged bool
	)
	stored := make(chan struct{}, 1)
	r := NewCachedRouter(inner, store,
		WithLogger(func(string, ...any) {
			logMu.Lock()
			logged = true
			logMu.Unlock()
		}),
		withAfterStore(func() { stored <- struct{}{} }),
	)

	if _, err := r.Route(context.Background(), testReq); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-stored

	logMu.Lock()
	defer logMu.Unlock()
	if !logged {
		t.Error("async write failure was not logged")
	}
}

func TestCacheKey_DistinguishesProfiles(t *testing.T) {
	walk := testReq
	drive := testReq
	drive.Profile = ProfileDriving

	if CacheKey(walk) == CacheKey(drive) {
		t.Error("walking and driving requests share a cache key")
	}
}

func TestCacheKey_DistinguishesEndpoints(t *testing.T) {
	other := testReq
	other.DestinationLat += 0.1
	if CacheKey(testReq) == CacheKey(other) {
		t.Error("distinct destinations share a cache key")
	}
}
