package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/cartosante/internal/domain/entities"
)

func provider(id, name string, typ entities.ProviderType, city string, src entities.Source) entities.Provider {
	return entities.Provider{
		ID:                id,
		Name:              name,
		Type:              typ,
		City:              city,
		Source:            src,
		Sector:            entities.SectorPrivate,
		Phones:            []string{},
		Services:          []string{},
		Specialties:       []string{},
		OperationalStatus: entities.StatusUnknown,
	}
}

func TestProviderDeduplicator_SameIDPrefersHigherPriority(t *testing.T) {
	d := NewProviderDeduplicator()

	geo := provider("P1", "Pharmacie Centrale (OSM)", entities.ProviderTypePharmacy, "Libreville", entities.SourceGeodata)
	geo.Coordinates = &entities.Coordinates{Lat: 0.39, Lng: 9.45}
	geo.Phones = []string{"+241 01 00"}
	curated := provider("P1", "Pharmacie Centrale", entities.ProviderTypePharmacy, "Libreville", entities.SourceCurated)
	curated.Services = []string{"Garde"}

	out := d.Deduplicate([]entities.Provider{geo, curated})

	require.Len(t, out, 1)
	assert.Equal(t, "P1", out[0].ID)
	assert.Equal(t, "Pharmacie Centrale", out[0].Name)
	assert.Equal(t, entities.SourceCurated, out[0].Source)
	require.NotNil(t, out[0].Coordinates, "missing fields are filled from the lower-priority record")
	assert.Equal(t, []string{"+241 01 00"}, out[0].Phones)
	assert.Equal(t, []string{"Garde"}, out[0].Services)
}

func TestProviderDeduplicator_SameIDEqualPriorityKeepsFirst(t *testing.T) {
	d := NewProviderDeduplicator()

	a := provider("E1", "First", entities.ProviderTypeClinic, "Oyem", entities.SourceEstablishment)
	b := provider("E1", "Second", entities.ProviderTypeClinic, "Oyem", entities.SourceEstablishment)

	out := d.Deduplicate([]entities.Provider{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, "First", out[0].Name)
}

func TestProviderDeduplicator_NameAndCityMatch(t *testing.T) {
	d := NewProviderDeduplicator()

	operator := provider("est-7", "Clinique Chambrier", entities.ProviderTypeClinic, "Libreville", entities.SourceEstablishment)
	operator.Open24_7 = true
	geodata := provider("node/9", "CLINIQUE  CHAMBRIER", entities.ProviderTypeClinic, "libreville", entities.SourceGeodata)
	geodata.Coordinates = &entities.Coordinates{Lat: 0.41, Lng: 9.44}

	out := d.Deduplicate([]entities.Provider{geodata, operator})

	require.Len(t, out, 1)
	assert.Equal(t, "est-7", out[0].ID)
	assert.Equal(t, "Clinique Chambrier", out[0].Name)
	assert.True(t, out[0].Open24_7)
	assert.NotNil(t, out[0].Coordinates)
}

func TestProviderDeduplicator_MergedAddressIsRebuilt(t *testing.T) {
	d := NewProviderDeduplicator()

	operator := provider("node/12", "Pharmacie Mindoubé", entities.ProviderTypePharmacy, "", entities.SourceEstablishment)
	operator.Address = "Carrefour Mindoubé"
	operator.DescriptiveAddress = DescriptiveAddress(operator.Address, "", "", "")
	geodata := provider("node/12", "Pharmacie Mindoube", entities.ProviderTypePharmacy, "Libreville", entities.SourceGeodata)
	geodata.Neighborhood = "Mindoubé 1"
	geodata.Province = "Estuaire"
	geodata.DescriptiveAddress = DescriptiveAddress("", geodata.Neighborhood, geodata.City, geodata.Province)

	out := d.Deduplicate([]entities.Provider{operator, geodata})

	require.Len(t, out, 1)
	assert.Equal(t, "Pharmacie Mindoubé", out[0].Name)
	assert.Equal(t, "Libreville", out[0].City)
	assert.Equal(t, "Carrefour Mindoubé, Mindoubé 1, Libreville, Estuaire", out[0].DescriptiveAddress)
}

func TestProviderDeduplicator_DifferentTypeOrCityAreKept(t *testing.T) {
	d := NewProviderDeduplicator()

	out := d.Deduplicate([]entities.Provider{
		provider("a", "Centre Médical", entities.ProviderTypeClinic, "Franceville", entities.SourceCurated),
		provider("b", "Centre Médical", entities.ProviderTypeLaboratory, "Franceville", entities.SourceCurated),
		provider("c", "Centre Médical", entities.ProviderTypeClinic, "Moanda", entities.SourceCurated),
		provider("d", "Centre Médical", entities.ProviderTypeClinic, "", entities.SourceGeodata),
		provider("e", "Centre Médical", entities.ProviderTypeClinic, "", entities.SourceGeodata),
	})

	require.Len(t, out, 5)
	ids := make([]string, 0, len(out))
	for _, p := range out {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestProviderDeduplicator_OutputIDsUnique(t *testing.T) {
	d := NewProviderDeduplicator()

	out := d.Deduplicate([]entities.Provider{
		provider("x1", "Hôpital Régional", entities.ProviderTypeHospital, "Mouila", entities.SourceGeodata),
		provider("x2", "Hopital Regional", entities.ProviderTypeHospital, "Mouila", entities.SourceCurated),
		provider("x1", "Hôpital Régional de Mouila", entities.ProviderTypeHospital, "Mouila", entities.SourceGeodata),
		provider("x2", "Autre", entities.ProviderTypeHospital, "Mouila", entities.SourceGeodata),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "x2", out[0].ID)
	assert.Equal(t, "Hopital Regional", out[0].Name)
}

func TestProviderDeduplicator_Empty(t *testing.T) {
	assert.Empty(t, NewProviderDeduplicator().Deduplicate(nil))
}
