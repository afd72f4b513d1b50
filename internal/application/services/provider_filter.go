package services

import (
	"math"
	"sort"
	"strings"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/pkg/geo"
	"github.com/zatekoja/cartosante/pkg/utils"
)

// DefaultNearMeDistanceKm is the near-me radius when none is requested.
const DefaultNearMeDistanceKm = 10.0

// ProvinceAll disables the province constraint.
const ProvinceAll = "all"

// FilterSpec is the set of constraints a search applies. All active
// constraints are ANDed. Zero values mean "no constraint".
type FilterSpec struct {
	Types         []entities.ProviderType `json:"types,omitempty"`
	Province      string                  `json:"province,omitempty"`
	Open24_7      bool                    `json:"open_24_7,omitempty"`
	CNAMGS        bool                    `json:"cnamgs,omitempty"`
	Urgent        bool                    `json:"urgent,omitempty"`
	NearMe        bool                    `json:"near_me,omitempty"`
	MaxDistanceKm float64                 `json:"max_distance_km,omitempty"`
	Specialty     string                  `json:"specialty,omitempty"`
	Equipment     string                  `json:"equipment,omitempty"`
	SearchText    string                  `json:"q,omitempty"`
}

// SortKey orders search results.
type SortKey string

const (
	SortNameAsc     SortKey = "name-asc"
	SortNameDesc    SortKey = "name-desc"
	SortCityAsc     SortKey = "city-asc"
	SortCityDesc    SortKey = "city-desc"
	SortTypeAsc     SortKey = "type-asc"
	SortDistanceAsc SortKey = "distance-asc"
)

var sortKeys = []SortKey{SortNameAsc, SortNameDesc, SortCityAsc, SortCityDesc, SortTypeAsc, SortDistanceAsc}

// ParseSortKey returns the sort key named by s. Empty input is name-asc.
// Unknown keys fall back to name-asc and report false.
func ParseSortKey(s string) (SortKey, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortNameAsc, true
	}
	for _, k := range sortKeys {
		if string(k) == s {
			return k, true
		}
	}
	return SortNameAsc, false
}

// FilterOutcome is the result of applying a filter and sort.
type FilterOutcome struct {
	Results []entities.ProviderResult
	// LocationMissing is set when near-me was requested without a user location.
	LocationMissing bool
}

// ProviderFilter is the pure filter/sort engine over an aggregate.
type ProviderFilter struct {
	locale               string
	defaultMaxDistanceKm float64
}

// NewProviderFilter creates an engine. A non-positive default distance uses
// DefaultNearMeDistanceKm.
func NewProviderFilter(locale string, defaultMaxDistanceKm float64) *ProviderFilter {
	if math.IsNaN(defaultMaxDistanceKm) || math.IsInf(defaultMaxDistanceKm, 0) || defaultMaxDistanceKm <= 0 {
		defaultMaxDistanceKm = DefaultNearMeDistanceKm
	}
	return &ProviderFilter{locale: locale, defaultMaxDistanceKm: defaultMaxDistanceKm}
}

// Apply filters and sorts aggregate without modifying it. Distances are
// computed for every provider when user is known.
func (f *ProviderFilter) Apply(aggregate []entities.Provider, spec FilterSpec, key SortKey, user *entities.Coordinates) FilterOutcome {
	if spec.NearMe && (user == nil || !user.Finite()) {
		return FilterOutcome{Results: []entities.ProviderResult{}, LocationMissing: true}
	}

	allowed := f.allowedTypes(spec)
	maxDistance := spec.MaxDistanceKm
	if math.IsNaN(maxDistance) || math.IsInf(maxDistance, 0) || maxDistance <= 0 {
		maxDistance = f.defaultMaxDistanceKm
	}
	query := strings.ToLower(strings.TrimSpace(spec.SearchText))
	province := strings.TrimSpace(spec.Province)
	if strings.EqualFold(province, ProvinceAll) {
		province = ""
	}

	results := make([]entities.ProviderResult, 0, len(aggregate))
	for _, p := range aggregate {
		r := entities.ProviderResult{Provider: p}
		if user != nil {
			if d, ok := geo.DistanceFrom(*user, p.Coordinates); ok {
				r.DistanceKm = &d
			}
		}

		if allowed != nil {
			if _, ok := allowed[p.Type]; !ok {
				continue
			}
		}
		if province != "" && p.Province != province {
			continue
		}
		if spec.Open24_7 && !p.Open24_7 {
			continue
		}
		if spec.CNAMGS && !p.Coverage.CNAMGS {
			continue
		}
		if spec.NearMe && (r.DistanceKm == nil || *r.DistanceKm > maxDistance) {
			continue
		}
		if spec.Specialty != "" && !anyTagContains(p.Specialties, spec.Specialty) {
			continue
		}
		if spec.Equipment != "" && !anyTagContains(p.Services, spec.Equipment) {
			continue
		}
		if query != "" && !matchesText(p, query) {
			continue
		}
		results = append(results, r)
	}

	f.sort(results, key)
	return FilterOutcome{Results: results}
}

// allowedTypes intersects the requested types with the urgent subset. nil
// means every type is allowed.
func (f *ProviderFilter) allowedTypes(spec FilterSpec) map[entities.ProviderType]struct{} {
	if len(spec.Types) == 0 && !spec.Urgent {
		return nil
	}

	allowed := make(map[entities.ProviderType]struct{})
	if len(spec.Types) > 0 {
		for _, t := range spec.Types {
			allowed[t] = struct{}{}
		}
	} else {
		for _, t := range entities.ProviderTypes {
			allowed[t] = struct{}{}
		}
	}
	if spec.Urgent {
		urgent := make(map[entities.ProviderType]struct{}, len(entities.EmergencyProviderTypes))
		for _, t := range entities.EmergencyProviderTypes {
			if _, ok := allowed[t]; ok {
				urgent[t] = struct{}{}
			}
		}
		allowed = urgent
	}
	return allowed
}

func anyTagContains(tags []string, needle string) bool {
	n := utils.FoldKey(needle)
	if n == "" {
		return true
	}
	for _, tag := range tags {
		if strings.Contains(utils.FoldKey(tag), n) {
			return true
		}
	}
	return false
}

// matchesText expects an already lowercased query.
func matchesText(p entities.Provider, query string) bool {
	for _, field := range []string{p.Name, p.City, string(p.Type), p.DescriptiveAddress} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (f *ProviderFilter) sort(results []entities.ProviderResult, key SortKey) {
	coll := utils.NewCollator(f.locale)

	var less func(a, b entities.ProviderResult) bool
	switch key {
	case SortNameDesc:
		less = func(a, b entities.ProviderResult) bool { return coll.CompareString(a.Name, b.Name) > 0 }
	case SortCityAsc:
		less = func(a, b entities.ProviderResult) bool { return coll.CompareString(a.City, b.City) < 0 }
	case SortCityDesc:
		less = func(a, b entities.ProviderResult) bool { return coll.CompareString(a.City, b.City) > 0 }
	case SortTypeAsc:
		less = func(a, b entities.ProviderResult) bool { return a.Type < b.Type }
	case SortDistanceAsc:
		less = func(a, b entities.ProviderResult) bool {
			switch {
			case a.DistanceKm == nil:
				return false
			case b.DistanceKm == nil:
				return true
			default:
				return *a.DistanceKm < *b.DistanceKm
			}
		}
	default:
		less = func(a, b entities.ProviderResult) bool { return coll.CompareString(a.Name, b.Name) < 0 }
	}

	sort.SliceStable(results, func(i, j int) bool { return less(results[i], results[j]) })
}
