package repositories

import (
	"context"
	"time"
)

// GeodataRecord is a row imported from the external geodata source by the
// sync function. Coordinates are kept as the strings the upstream returned.
type GeodataRecord struct {
	ExternalID   string
	Name         string
	Amenity      string
	Healthcare   string
	Street       string
	Suburb       string
	City         string
	Province     string
	Latitude     string
	Longitude    string
	Phone        string
	OpeningHours string
	Operator     string
	Speciality   string
	SyncedAt     time.Time
}

// GeodataScope narrows an import to a province and optionally a city.
type GeodataScope struct {
	Province string
	City     string
}

// GeodataRepository reads synced external provider rows.
type GeodataRepository interface {
	// ListActive returns every active row within scope. An empty scope means all rows.
	ListActive(ctx context.Context, scope GeodataScope) ([]GeodataRecord, error)
}
