package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/blackmichael/social-enrichment/internal/logging"
)

const defaultBatchWorkers = 4

// EnrichRequest asks for one lead to be enriched from one network.
type EnrichRequest struct {
	LeadID     string
	Network    string
	Identifier string

	// Features limits which features run. Empty means every feature the
	// integration supports.
	Features []Feature
}

// EnrichResult is the outcome of a single request in a batch.
type EnrichResult struct {
	Request EnrichRequest
	Cache   *SocialCache
	Err     error
}

// EnrichmentService is the core domain service. It loads the stored social
// cache for a lead, lets the network's integration merge fresh data into it,
// and persists the result.
type EnrichmentService struct {
	integrations IntegrationLookup
	store        CacheStore
	cursors      CursorRepository
	workers      int
	inflight     singleflight.Group
	leads        leadLocks
}

// leadLocks serializes the load-merge-save cycle per lead and network.
// Entries are dropped once no caller holds or waits on them.
type leadLocks struct {
	mu    sync.Mutex
	locks map[string]*leadLock
}

type leadLock struct {
	sync.Mutex
	refs int
}

func (l *leadLocks) lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*leadLock)
	}
	ll, ok := l.locks[key]
	if !ok {
		ll = &leadLock{}
		l.locks[key] = ll
	}
	ll.refs++
	l.mu.Unlock()

	ll.Lock()
	return func() {
		ll.Unlock()
		l.mu.Lock()
		ll.refs--
		if ll.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// NewEnrichmentService creates an EnrichmentService. workers bounds the
// concurrency of EnrichBatch; values below 1 use a default.
func NewEnrichmentService(integrations IntegrationLookup, store CacheStore, cursors CursorRepository, workers int) *EnrichmentService {
	if workers < 1 {
		workers = defaultBatchWorkers
	}
	return &EnrichmentService{
		integrations: integrations,
		store:        store,
		cursors:      cursors,
		workers:      workers,
	}
}

// NetworkKey is the storage key for an integration's network.
func NetworkKey(integration Integration) string {
	return strings.ToLower(integration.Name())
}

// Integrations returns every registered integration.
func (s *EnrichmentService) Integrations() []Integration {
	return s.integrations.All()
}

// Enrich runs the requested features for one lead and persists the merged
// cache. Identical concurrent requests share a single remote round trip;
// other requests for the same lead and network wait for the one in progress
// so neither overwrites the other's result.
func (s *EnrichmentService) Enrich(ctx context.Context, req EnrichRequest) (*SocialCache, error) {
	if req.LeadID == "" {
		return nil, fmt.Errorf("lead id is required")
	}

	integration, err := s.integrations.Get(req.Network)
	if err != nil {
		return nil, err
	}

	features, err := selectFeatures(integration, req.Features)
	if err != nil {
		return nil, err
	}

	network := NetworkKey(integration)
	key := flightKey(req.LeadID, network, req.Identifier, features)

	v, err, _ := s.inflight.Do(key, func() (any, error) {
		// Shared by every caller with the same key, so one caller going
		// away must not abort the save for the rest.
		fctx := context.WithoutCancel(ctx)
		unlock := s.leads.lock(req.LeadID + "\x00" + network)
		defer unlock()
		return s.enrich(fctx, req.LeadID, network, req.Identifier, integration, features)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SocialCache), nil
}

func (s *EnrichmentService) enrich(ctx context.Context, leadID, network, identifier string, integration Integration, features []Feature) (*SocialCache, error) {
	ctx, l := logging.WithLead(ctx, leadID, network)

	cache, err := s.store.GetSocialCache(ctx, leadID, network)
	if errors.Is(err, ErrCacheMiss) {
		cache = &SocialCache{}
	} else if err != nil {
		return nil, fmt.Errorf("load social cache: %w", err)
	}

	for _, f := range features {
		l.Debug().Str(logging.FieldFeature, string(f)).Msg("running feature")
		switch f {
		case FeaturePublicProfile:
			integration.FetchProfile(ctx, identifier, cache)
		case FeaturePublicActivity:
			integration.FetchPublicActivity(ctx, identifier, cache)
		}
	}

	if err := s.store.SaveSocialCache(ctx, leadID, network, cache); err != nil {
		return nil, fmt.Errorf("save social cache: %w", err)
	}

	l.Info().
		Str(logging.FieldExternalID, cache.ID).
		Bool("has_profile", cache.Profile != nil).
		Bool("has_activity", cache.Has.Activity).
		Msg("lead enriched")

	return cache, nil
}

// EnrichBatch enriches several leads concurrently. A failure for one request
// is reported in its result and does not stop the others. Requests naming
// the same lead and network twice are rejected up front.
func (s *EnrichmentService) EnrichBatch(ctx context.Context, reqs []EnrichRequest) ([]EnrichResult, error) {
	seen := make(map[string]struct{}, len(reqs))
	for _, r := range reqs {
		k := r.LeadID + "\x00" + strings.ToLower(r.Network)
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: lead %s on %s", ErrDuplicateRequest, r.LeadID, r.Network)
		}
		seen[k] = struct{}{}
	}

	results := make([]EnrichResult, len(reqs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, r := range reqs {
		g.Go(func() error {
			cache, err := s.Enrich(gCtx, r)
			results[i] = EnrichResult{Request: r, Cache: cache, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetCache returns the stored cache for a lead, or ErrCacheMiss.
func (s *EnrichmentService) GetCache(ctx context.Context, leadID, network string) (*SocialCache, error) {
	integration, err := s.integrations.Get(network)
	if err != nil {
		return nil, err
	}
	return s.store.GetSocialCache(ctx, leadID, NetworkKey(integration))
}

// ClearCache drops the stored cache, so the next Enrich resolves the remote
// user id again.
func (s *EnrichmentService) ClearCache(ctx context.Context, leadID, network string) error {
	integration, err := s.integrations.Get(network)
	if err != nil {
		return err
	}
	return s.store.DeleteSocialCache(ctx, leadID, NetworkKey(integration))
}

// GetCursor retrieves the last-processed event cursor for the given service.
func (s *EnrichmentService) GetCursor(ctx context.Context, service string) (int64, error) {
	return s.cursors.GetCursor(ctx, service)
}

// UpdateCursor persists the event cursor for the given service.
func (s *EnrichmentService) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	return s.cursors.UpdateCursor(ctx, service, cursor)
}

// StartPruneJob runs a background loop that removes caches older than
// maxAge. It runs immediately on start and then repeats at the given
// interval. It blocks until ctx is cancelled.
func (s *EnrichmentService) StartPruneJob(ctx context.Context, pruner CachePruner, interval, maxAge time.Duration) {
	s.runPrune(ctx, pruner, maxAge)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPrune(ctx, pruner, maxAge)
		}
	}
}

func (s *EnrichmentService) runPrune(ctx context.Context, pruner CachePruner, maxAge time.Duration) {
	l := logging.Ctx(ctx)
	deleted, err := pruner.DeleteStaleCaches(ctx, maxAge)
	if err != nil {
		l.Error().Err(err).Msg("social cache prune failed")
	} else if deleted > 0 {
		l.Info().Int64("deleted", deleted).Msg("social cache prune complete")
	}
}

func selectFeatures(integration Integration, requested []Feature) ([]Feature, error) {
	supported := integration.SupportedFeatures()
	if len(requested) == 0 {
		return supported, nil
	}

	out := make([]Feature, 0, len(requested))
	for _, f := range requested {
		if !slices.Contains(supported, f) {
			return nil, fmt.Errorf("%w: %s does not support %s", ErrUnsupportedFeature, integration.Name(), f)
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func flightKey(leadID, network, identifier string, features []Feature) string {
	parts := make([]string, 0, len(features)+3)
	parts = append(parts, leadID, network, identifier)
	for _, f := range features {
		parts = append(parts, string(f))
	}
	return strings.Join(parts, "\x00")
}
