package domain

import "errors"

var (
	// ErrNotFound means no remote user could be resolved for an identifier.
	ErrNotFound = errors.New("social user not found")

	// ErrCacheMiss means no SocialCache is stored for a lead and network.
	ErrCacheMiss = errors.New("social cache miss")

	ErrUnknownNetwork     = errors.New("unknown network")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrDuplicateRequest   = errors.New("duplicate enrichment request")
)
