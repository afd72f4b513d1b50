package entities

import (
	"strings"

	"github.com/zatekoja/cartosante/pkg/geo"
)

// ProviderType is the canonical category of a health-service establishment.
type ProviderType string

const (
	ProviderTypeHospital      ProviderType = "hospital"
	ProviderTypeClinic        ProviderType = "clinic"
	ProviderTypeMedicalOffice ProviderType = "medical_office"
	ProviderTypePharmacy      ProviderType = "pharmacy"
	ProviderTypeLaboratory    ProviderType = "laboratory"
	ProviderTypeImagingCenter ProviderType = "imaging_center"
	ProviderTypeInstitution   ProviderType = "institution"
)

// ProviderTypes lists every canonical type in display order.
var ProviderTypes = []ProviderType{
	ProviderTypeHospital,
	ProviderTypeClinic,
	ProviderTypeMedicalOffice,
	ProviderTypePharmacy,
	ProviderTypeLaboratory,
	ProviderTypeImagingCenter,
	ProviderTypeInstitution,
}

// EmergencyProviderTypes are the types kept by the urgent quick-filter.
var EmergencyProviderTypes = []ProviderType{ProviderTypeHospital, ProviderTypeClinic}

// ParseProviderType returns the canonical type for s, or false when s is not
// one of the canonical values.
func ParseProviderType(s string) (ProviderType, bool) {
	candidate := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range ProviderTypes {
		if t == candidate {
			return t, true
		}
	}
	return "", false
}

// Sector distinguishes public from private establishments.
type Sector string

const (
	SectorPublic  Sector = "public"
	SectorPrivate Sector = "private"
)

// OperationalStatus is a best-effort liveness flag.
type OperationalStatus string

const (
	StatusOperational OperationalStatus = "operational"
	StatusUnknown     OperationalStatus = "unknown"
)

// Coverage holds insurer conventioning flags. CNAMGS is the primary insurer
// exposed by the "cnamgs" filter.
type Coverage struct {
	CNAMGS bool `json:"cnamgs"`
	CNSS   bool `json:"cnss"`
}

// Coordinates are decimal degrees. Providers without a geocode carry a nil
// pointer rather than a zero value.
type Coordinates = geo.Point

// Provider is the canonical, post-normalization directory entry.
type Provider struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Type               ProviderType      `json:"type"`
	Province           string            `json:"province"`
	City               string            `json:"city"`
	Neighborhood       string            `json:"neighborhood,omitempty"`
	Address            string            `json:"address"`
	DescriptiveAddress string            `json:"descriptive_address"`
	Coordinates        *Coordinates      `json:"coordinates,omitempty"`
	Phones             []string          `json:"phones"`
	Open24_7           bool              `json:"open_24_7"`
	Coverage           Coverage          `json:"coverage"`
	Sector             Sector            `json:"sector"`
	Services           []string          `json:"services"`
	Specialties        []string          `json:"specialties"`
	Source             Source            `json:"source"`
	OperationalStatus  OperationalStatus `json:"operational_status"`
}

// ProviderResult is a provider as returned by a search, with the transient
// distance from the user's location. DistanceKm is nil when unknown.
type ProviderResult struct {
	Provider
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// HasDistance reports whether a distance was computed for r.
func (r ProviderResult) HasDistance() bool {
	return r.DistanceKm != nil
}
