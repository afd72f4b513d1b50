package providers

import (
	"context"
	"errors"

	"github.com/zatekoja/cartosante/pkg/geo"
)

// ErrNoGeocode is returned when an address matches no known place.
var ErrNoGeocode = errors.New("address could not be geocoded")

// Geocoder resolves a postal address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geo.Point, error)
}
