package integration

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blackmichael/social-enrichment/internal/domain"
)

// Registry holds the configured social network integrations and allows
// lookup by network name. Lookups are case-insensitive.
type Registry struct {
	integrations map[string]domain.Integration
}

// NewRegistry registers the given integrations by name. Later entries with
// the same name replace earlier ones.
func NewRegistry(list ...domain.Integration) *Registry {
	m := make(map[string]domain.Integration, len(list))
	for _, i := range list {
		m[strings.ToLower(i.Name())] = i
	}
	return &Registry{integrations: m}
}

// Get returns the integration for network or an error wrapping
// domain.ErrUnknownNetwork.
func (r *Registry) Get(network string) (domain.Integration, error) {
	i, ok := r.integrations[strings.ToLower(strings.TrimSpace(network))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownNetwork, network)
	}
	return i, nil
}

// All returns every registered integration ordered by name.
func (r *Registry) All() []domain.Integration {
	out := make([]domain.Integration, 0, len(r.integrations))
	for _, i := range r.integrations {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool {
		return strings.ToLower(out[a].Name()) < strings.ToLower(out[b].Name())
	})
	return out
}
