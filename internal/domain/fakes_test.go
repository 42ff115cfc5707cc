package domain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

type fakeIntegration struct {
	name     string
	features []Feature

	profileCalls  atomic.Int32
	activityCalls atomic.Int32

	// When set, FetchProfile signals profileStarted and then waits on
	// profileGate before touching the cache.
	profileStarted chan struct{}
	profileGate    chan struct{}
}

func (f *fakeIntegration) Name() string { return f.name }
func (f *fakeIntegration) IdentifierField() string { return strings.ToLower(f.name) }
func (f *fakeIntegration) SupportedFeatures() []Feature { return f.features }
func (f *fakeIntegration) AvailableLeadFields() []LeadField { return nil }

func (f *fakeIntegration) ResolveUserID(_ context.Context, identifier string, cache *SocialCache) (string, error) {
	if cache.ID != "" {
		return cache.ID, nil
	}
	if identifier == "" {
		return "", ErrNotFound
	}
	cache.ID = "id-" + identifier
	return cache.ID, nil
}

func (f *fakeIntegration) FetchProfile(ctx context.Context, identifier string, cache *SocialCache) {
	f.profileCalls.Add(1)
	if f.profileGate != nil {
		f.profileStarted <- struct{}{}
		<-f.profileGate
	}
	if _, err := f.ResolveUserID(ctx, identifier, cache); err != nil {
		return
	}
	cache.Profile = map[string]string{"profileHandle": identifier}
}

func (f *fakeIntegration) FetchPublicActivity(ctx context.Context, identifier string, cache *SocialCache) {
	f.activityCalls.Add(1)
	cache.Has.Activity = false
	if _, err := f.ResolveUserID(ctx, identifier, cache); err != nil {
		return
	}
	cache.Has.Activity = true
	cache.Activity = NewActivity()
	cache.Activity.Photos = append(cache.Activity.Photos, Photo{URL: "http://img/" + identifier})
}

type fakeLookup struct {
	integrations []Integration
}

func (l *fakeLookup) Get(network string) (Integration, error) {
	for _, i := range l.integrations {
		if strings.EqualFold(i.Name(), network) {
			return i, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
}

func (l *fakeLookup) All() []Integration { return l.integrations }

type memoryStore struct {
	mu      sync.Mutex
	caches  map[string]*SocialCache
	cursors map[string]int64
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{caches: map[string]*SocialCache{}, cursors: map[string]int64{}}
}

func (m *memoryStore) GetSocialCache(_ context.Context, leadID, network string) (*SocialCache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.caches[leadID+"/"+network]
	if !ok {
		return nil, ErrCacheMiss
	}
	cp := *c
	return &cp, nil
}

func (m *memoryStore) SaveSocialCache(ctx context.Context, leadID, network string, cache *SocialCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *cache
	m.caches[leadID+"/"+network] = &cp
	return nil
}

func (m *memoryStore) DeleteSocialCache(_ context.Context, leadID, network string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caches, leadID+"/"+network)
	return nil
}

func (m *memoryStore) GetCursor(_ context.Context, service string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[service], nil
}

func (m *memoryStore) UpdateCursor(_ context.Context, service string, cursor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[service] = cursor
	return nil
}
