package domain

import (
	"context"
	"time"
)

// Integration is the contract every social network provider implements.
//
// The fetch methods take the SocialCache as an in-out parameter: they read
// any previously resolved id from it and merge what they fetch back into it.
// They are best-effort and never report remote failures; a failed or empty
// response leaves the corresponding section of the cache untouched.
type Integration interface {
	// Name returns the display name of the network (e.g. "Instagram").
	Name() string

	// IdentifierField is the lead field holding the user's handle.
	IdentifierField() string

	SupportedFeatures() []Feature
	AvailableLeadFields() []LeadField

	// ResolveUserID returns the remote user id for identifier, storing it in
	// cache.ID on success. It returns ErrNotFound when no user matches.
	ResolveUserID(ctx context.Context, identifier string, cache *SocialCache) (string, error)

	// FetchProfile merges the remote profile into cache.Profile.
	FetchProfile(ctx context.Context, identifier string, cache *SocialCache)

	// FetchPublicActivity merges recent activity into cache.Activity and
	// sets cache.Has.Activity.
	FetchPublicActivity(ctx context.Context, identifier string, cache *SocialCache)
}

// IntegrationLookup resolves integrations by network name.
type IntegrationLookup interface {
	Get(network string) (Integration, error)
	All() []Integration
}

// CacheStore persists SocialCache documents keyed by lead and network.
type CacheStore interface {
	// GetSocialCache returns ErrCacheMiss when nothing is stored.
	GetSocialCache(ctx context.Context, leadID, network string) (*SocialCache, error)

	SaveSocialCache(ctx context.Context, leadID, network string, cache *SocialCache) error

	// DeleteSocialCache removes the stored cache. Deleting a missing entry is
	// not an error.
	DeleteSocialCache(ctx context.Context, leadID, network string) error
}

// CachePruner removes cache documents that have not been refreshed recently.
type CachePruner interface {
	// DeleteStaleCaches removes caches older than maxAge and returns the
	// number removed.
	DeleteStaleCaches(ctx context.Context, maxAge time.Duration) (int64, error)
}

// CursorRepository defines persistence operations for event stream cursors.
type CursorRepository interface {
	// GetCursor retrieves the last-processed cursor for the given service
	// name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}
