package services

import (
	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/pkg/utils"
)

// ProviderDeduplicator collapses providers that describe the same
// establishment. Records match on identical id, or on same type with equal
// folded name and city. Matching records are merged field by field, the
// higher-priority source winning wherever it has a value.
type ProviderDeduplicator struct{}

// NewProviderDeduplicator creates a deduplicator.
func NewProviderDeduplicator() *ProviderDeduplicator {
	return &ProviderDeduplicator{}
}

// Deduplicate returns one provider per establishment in order of first
// appearance. Ids in the output are unique.
func (d *ProviderDeduplicator) Deduplicate(providers []entities.Provider) []entities.Provider {
	out := make([]entities.Provider, 0, len(providers))
	byID := make(map[string]int, len(providers))
	byName := make(map[nameKey]int, len(providers))

	register := func(p entities.Provider, idx int) {
		byID[p.ID] = idx
		if k, ok := nameKeyOf(p); ok {
			byName[k] = idx
		}
	}

	for _, p := range providers {
		idx, found := byID[p.ID]
		if !found {
			if k, ok := nameKeyOf(p); ok {
				idx, found = byName[k]
			}
		}
		if !found {
			out = append(out, p)
			register(p, len(out)-1)
			continue
		}

		merged := mergeProviders(out[idx], p)
		out[idx] = merged
		// both ids and both name keys resolve to the merged entry
		register(p, idx)
		register(merged, idx)
	}
	return out
}

type nameKey struct {
	typ  entities.ProviderType
	name string
	city string
}

// nameKeyOf is only defined when both name and city are known.
func nameKeyOf(p entities.Provider) (nameKey, bool) {
	name := utils.FoldKey(p.Name)
	city := utils.FoldKey(p.City)
	if name == "" || city == "" {
		return nameKey{}, false
	}
	return nameKey{typ: p.Type, name: name, city: city}, true
}

// mergeProviders combines two records of the same establishment. On equal
// priority the existing record wins.
func mergeProviders(existing, incoming entities.Provider) entities.Provider {
	hi, lo := existing, incoming
	if incoming.Source.Priority() > existing.Source.Priority() {
		hi, lo = incoming, existing
	}

	merged := hi
	merged.Name = preferString(hi.Name, lo.Name)
	merged.Province = preferString(hi.Province, lo.Province)
	merged.City = preferString(hi.City, lo.City)
	merged.Neighborhood = preferString(hi.Neighborhood, lo.Neighborhood)
	merged.Address = preferString(hi.Address, lo.Address)
	merged.DescriptiveAddress = DescriptiveAddress(merged.Address, merged.Neighborhood, merged.City, merged.Province)
	if merged.Coordinates == nil {
		merged.Coordinates = lo.Coordinates
	}
	merged.Phones = preferList(hi.Phones, lo.Phones)
	merged.Services = preferList(hi.Services, lo.Services)
	merged.Specialties = preferList(hi.Specialties, lo.Specialties)
	if merged.OperationalStatus == entities.StatusUnknown || merged.OperationalStatus == "" {
		merged.OperationalStatus = lo.OperationalStatus
	}
	return merged
}

func preferString(hi, lo string) string {
	if hi != "" {
		return hi
	}
	return lo
}

func preferList(hi, lo []string) []string {
	if len(hi) > 0 {
		return hi
	}
	return lo
}
