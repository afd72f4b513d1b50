package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/pkg/utils"
)

// NormalizationError describes a raw record that could not become a Provider.
type NormalizationError struct {
	Source   entities.Source
	RecordID string
	Reason   string
}

func (e *NormalizationError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("normalize %s record: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("normalize %s record %s: %s", e.Source, e.RecordID, e.Reason)
}

// fieldMapping lists, per canonical field, the raw keys a source may use.
// The first present key wins.
type fieldMapping struct {
	ID           []string
	Name         []string
	Type         []string
	Street       []string
	Neighborhood []string
	City         []string
	Province     []string
	Latitude     []string
	Longitude    []string
	Phones       []string
	Open24_7     []string
	OpeningHours []string
	CNAMGS       []string
	CNSS         []string
	Sector       []string
	Services     []string
	Specialties  []string
	Status       []string
}

var sourceMappings = map[entities.Source]fieldMapping{
	entities.SourceEstablishment: {
		ID:           []string{"id"},
		Name:         []string{"name"},
		Type:         []string{"type"},
		Street:       []string{"street", "address"},
		Neighborhood: []string{"neighborhood"},
		City:         []string{"city"},
		Province:     []string{"province"},
		Latitude:     []string{"latitude"},
		Longitude:    []string{"longitude"},
		Phones:       []string{"phones"},
		Open24_7:     []string{"open_24_7"},
		CNAMGS:       []string{"cnamgs"},
		CNSS:         []string{"cnss"},
		Sector:       []string{"sector"},
		Services:     []string{"services"},
		Specialties:  []string{"specialties"},
		Status:       []string{"status"},
	},
	entities.SourceCurated: {
		ID:           []string{"id", "code"},
		Name:         []string{"nom", "name"},
		Type:         []string{"type", "categorie"},
		Street:       []string{"adresse", "rue"},
		Neighborhood: []string{"quartier", "arrondissement"},
		City:         []string{"ville"},
		Province:     []string{"province"},
		Latitude:     []string{"latitude", "lat"},
		Longitude:    []string{"longitude", "lng"},
		Phones:       []string{"telephones", "telephone"},
		Open24_7:     []string{"ouvert_24_7", "garde"},
		CNAMGS:       []string{"cnamgs", "conventionne_cnamgs"},
		CNSS:         []string{"cnss", "conventionne_cnss"},
		Sector:       []string{"secteur"},
		Services:     []string{"services", "equipements"},
		Specialties:  []string{"specialites"},
		Status:       []string{"statut"},
	},
	entities.SourceGeodata: {
		ID:           []string{"osm_id", "id"},
		Name:         []string{"name", "name:fr"},
		Type:         []string{"amenity", "healthcare"},
		Street:       []string{"addr:street"},
		Neighborhood: []string{"addr:suburb"},
		City:         []string{"addr:city"},
		Province:     []string{"addr:province", "addr:state"},
		Latitude:     []string{"lat"},
		Longitude:    []string{"lon"},
		Phones:       []string{"phone", "contact:phone"},
		OpeningHours: []string{"opening_hours"},
		Sector:       []string{"operator:type"},
		Specialties:  []string{"healthcare:speciality"},
		Status:       []string{"status"},
	},
}

// providerTypeTable maps folded source type strings to canonical types.
// Anything not listed becomes medical_office.
var providerTypeTable = map[string]entities.ProviderType{
	"hospital":             entities.ProviderTypeHospital,
	"hopital":              entities.ProviderTypeHospital,
	"chu":                  entities.ProviderTypeHospital,
	"centre hospitalier":   entities.ProviderTypeHospital,
	"clinic":               entities.ProviderTypeClinic,
	"clinique":             entities.ProviderTypeClinic,
	"polyclinique":         entities.ProviderTypeClinic,
	"medical_office":       entities.ProviderTypeMedicalOffice,
	"cabinet medical":      entities.ProviderTypeMedicalOffice,
	"cabinet":              entities.ProviderTypeMedicalOffice,
	"doctors":              entities.ProviderTypeMedicalOffice,
	"dentist":              entities.ProviderTypeMedicalOffice,
	"pharmacy":             entities.ProviderTypePharmacy,
	"pharmacie":            entities.ProviderTypePharmacy,
	"laboratory":           entities.ProviderTypeLaboratory,
	"laboratoire":          entities.ProviderTypeLaboratory,
	"imaging_center":       entities.ProviderTypeImagingCenter,
	"centre d'imagerie":    entities.ProviderTypeImagingCenter,
	"imagerie":             entities.ProviderTypeImagingCenter,
	"radiology":            entities.ProviderTypeImagingCenter,
	"institution":          entities.ProviderTypeInstitution,
	"institution de sante": entities.ProviderTypeInstitution,
}

// ProviderNormalizer maps source-specific raw records to canonical Providers.
type ProviderNormalizer struct {
	mappings  map[entities.Source]fieldMapping
	typeTable map[string]entities.ProviderType
}

// NewProviderNormalizer creates a normalizer with the built-in source mappings.
func NewProviderNormalizer() *ProviderNormalizer {
	return &ProviderNormalizer{
		mappings:  sourceMappings,
		typeTable: providerTypeTable,
	}
}

// MapType returns the canonical type for a source type string.
func (n *ProviderNormalizer) MapType(raw string) entities.ProviderType {
	if t, ok := n.typeTable[utils.FoldKey(raw)]; ok {
		return t
	}
	return entities.ProviderTypeMedicalOffice
}

// Normalize converts one raw record. id, name and type are required.
func (n *ProviderNormalizer) Normalize(rec entities.RawRecord) (entities.Provider, error) {
	m, ok := n.mappings[rec.Source]
	if !ok {
		return entities.Provider{}, &NormalizationError{Source: rec.Source, Reason: "unknown source"}
	}
	f := rec.Fields

	id := coerceString(first(f, m.ID))
	if id == "" {
		return entities.Provider{}, &NormalizationError{Source: rec.Source, Reason: "missing id"}
	}
	name := coerceString(first(f, m.Name))
	if name == "" {
		return entities.Provider{}, &NormalizationError{Source: rec.Source, RecordID: id, Reason: "missing name"}
	}
	rawType := coerceString(first(f, m.Type))
	if rawType == "" {
		return entities.Provider{}, &NormalizationError{Source: rec.Source, RecordID: id, Reason: "missing type"}
	}

	street := coerceString(first(f, m.Street))
	neighborhood := coerceString(first(f, m.Neighborhood))
	city := coerceString(first(f, m.City))
	province := coerceString(first(f, m.Province))

	p := entities.Provider{
		ID:                 id,
		Name:               name,
		Type:               n.MapType(rawType),
		Province:           province,
		City:               city,
		Neighborhood:       neighborhood,
		Address:            street,
		DescriptiveAddress: DescriptiveAddress(street, neighborhood, city, province),
		Coordinates:        coerceCoordinates(first(f, m.Latitude), first(f, m.Longitude)),
		Phones:             coerceStringList(first(f, m.Phones)),
		Open24_7:           coerceBool(first(f, m.Open24_7)) || isAlwaysOpen(coerceString(first(f, m.OpeningHours))),
		Coverage: entities.Coverage{
			CNAMGS: coerceBool(first(f, m.CNAMGS)),
			CNSS:   coerceBool(first(f, m.CNSS)),
		},
		Sector:            coerceSector(coerceString(first(f, m.Sector))),
		Services:          dedupeTags(coerceStringList(first(f, m.Services))),
		Specialties:       dedupeTags(coerceStringList(first(f, m.Specialties))),
		Source:            rec.Source,
		OperationalStatus: coerceStatus(coerceString(first(f, m.Status))),
	}
	return p, nil
}

// NormalizeAll converts records, collecting failures instead of aborting.
func (n *ProviderNormalizer) NormalizeAll(records []entities.RawRecord) ([]entities.Provider, []*NormalizationError) {
	providers := make([]entities.Provider, 0, len(records))
	var failures []*NormalizationError
	for _, rec := range records {
		p, err := n.Normalize(rec)
		if err != nil {
			var nerr *NormalizationError
			if errors.As(err, &nerr) {
				failures = append(failures, nerr)
			} else {
				failures = append(failures, &NormalizationError{Source: rec.Source, Reason: err.Error()})
			}
			continue
		}
		providers = append(providers, p)
	}
	return providers, failures
}

// DescriptiveAddress joins street, neighborhood, city and province, skipping
// empty segments.
func DescriptiveAddress(street, neighborhood, city, province string) string {
	parts := make([]string, 0, 4)
	for _, segment := range []string{street, neighborhood, city, province} {
		if s := strings.TrimSpace(segment); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func first(fields map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

// coerceString renders scalars as trimmed strings. Unsupported values give "".
func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return coerceString(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// coerceFloat accepts numbers and numeric strings (comma or dot decimals).
// Non-finite or unparseable values report false.
func coerceFloat(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), ",", ".")
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// coerceCoordinates returns nil unless both components coerce to finite numbers.
func coerceCoordinates(lat, lng any) *entities.Coordinates {
	la, ok := coerceFloat(lat)
	if !ok {
		return nil
	}
	lo, ok := coerceFloat(lng)
	if !ok {
		return nil
	}
	return &entities.Coordinates{Lat: la, Lng: lo}
}

// coerceBool treats true, non-zero numbers and yes-like strings as true.
func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	case string:
		switch utils.FoldKey(val) {
		case "true", "1", "yes", "oui", "y", "o", "24/7", "24h/24":
			return true
		}
	}
	return false
}

func isAlwaysOpen(openingHours string) bool {
	h := strings.ReplaceAll(strings.ToLower(openingHours), " ", "")
	return h == "24/7" || h == "mo-su00:00-24:00"
}

// coerceStringList accepts arrays or a ";"/","-separated string.
func coerceStringList(v any) []string {
	var items []string
	switch val := v.(type) {
	case nil:
		return []string{}
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, coerceString(item))
		}
	case string:
		sep := ";"
		if !strings.Contains(val, ";") {
			sep = ","
		}
		items = strings.Split(val, sep)
	default:
		if s := coerceString(val); s != "" {
			items = []string{s}
		}
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// dedupeTags drops case-insensitive duplicates, keeping the first spelling.
func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		key := utils.FoldKey(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// coerceSector defaults to private when the source says nothing usable.
func coerceSector(raw string) entities.Sector {
	switch utils.FoldKey(raw) {
	case "public", "publique", "government", "etat", "public_sector":
		return entities.SectorPublic
	default:
		return entities.SectorPrivate
	}
}

func coerceStatus(raw string) entities.OperationalStatus {
	switch utils.FoldKey(raw) {
	case "operational", "operationnel", "ouvert", "open", "active", "actif":
		return entities.StatusOperational
	default:
		return entities.StatusUnknown
	}
}
