package entities

import (
	"strings"
	"time"

	"github.com/zatekoja/cartosante/pkg/geo"
)

// Establishment is an operator-entered provider record. It is the
// highest-priority directory source.
type Establishment struct {
	ID           string       `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	Type         ProviderType `json:"type" db:"type"`
	Province     string       `json:"province" db:"province"`
	City         string       `json:"city" db:"city"`
	Neighborhood string       `json:"neighborhood" db:"neighborhood"`
	Street       string       `json:"street" db:"street"`
	Latitude     *float64     `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64     `json:"longitude,omitempty" db:"longitude"`
	Phones       []string     `json:"phones" db:"-"`
	Open24_7     bool         `json:"open_24_7" db:"open_24_7"`
	CNAMGS       bool         `json:"cnamgs" db:"cnamgs"`
	CNSS         bool         `json:"cnss" db:"cnss"`
	Sector       Sector       `json:"sector" db:"sector"`
	Services     []string     `json:"services" db:"-"`
	Specialties  []string     `json:"specialties" db:"-"`
	IsActive     bool         `json:"is_active" db:"is_active"`
	CreatedBy    string       `json:"created_by,omitempty" db:"created_by"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Validate checks the fields an operator must provide.
func (e *Establishment) Validate() []string {
	var problems []string
	if strings.TrimSpace(e.Name) == "" {
		problems = append(problems, "name is required")
	}
	if _, ok := ParseProviderType(string(e.Type)); !ok {
		problems = append(problems, "type must be one of hospital, clinic, medical_office, pharmacy, laboratory, imaging_center, institution")
	}
	if strings.TrimSpace(e.Province) == "" {
		problems = append(problems, "province is required")
	}
	if e.Sector != "" && e.Sector != SectorPublic && e.Sector != SectorPrivate {
		problems = append(problems, "sector must be public or private")
	}
	if (e.Latitude == nil) != (e.Longitude == nil) {
		problems = append(problems, "latitude and longitude must be set together")
	} else if e.Latitude != nil && !(geo.Point{Lat: *e.Latitude, Lng: *e.Longitude}).InRange() {
		problems = append(problems, "coordinates are out of range")
	}
	return problems
}

// EstablishmentFilter narrows establishment listings.
type EstablishmentFilter struct {
	Province string
	Type     ProviderType
	IsActive *bool
	Limit    int
	Offset   int
}
