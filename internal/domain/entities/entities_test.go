package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProviderType(t *testing.T) {
	got, ok := ParseProviderType(" Pharmacy ")
	assert.True(t, ok)
	assert.Equal(t, ProviderTypePharmacy, got)

	_, ok = ParseProviderType("urgent_care")
	assert.False(t, ok)
}

func TestSourcePriority(t *testing.T) {
	assert.Greater(t, SourceEstablishment.Priority(), SourceCurated.Priority())
	assert.Greater(t, SourceCurated.Priority(), SourceGeodata.Priority())
	assert.Greater(t, SourceGeodata.Priority(), Source("unknown").Priority())
}

func TestSession_IsPatientOnly(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"patient", []string{"patient"}, true},
		{"no roles", nil, true},
		{"admin", []string{"patient", "admin"}, false},
		{"super admin upper case", []string{"SUPER_ADMIN"}, false},
		{"doctor", []string{"doctor"}, false},
		{"pharmacist", []string{"pharmacist", "patient"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{UserID: "u1", Roles: tt.roles}
			assert.Equal(t, tt.want, s.IsPatientOnly())
		})
	}
}

func TestSession_NilIsNotAdmin(t *testing.T) {
	var s *Session
	assert.False(t, s.IsAdmin())
}

func TestEstablishment_Validate(t *testing.T) {
	lat, lng := 0.39, 9.45
	badLat := 120.0

	valid := &Establishment{Name: "Clinique El Rapha", Type: ProviderTypeClinic, Province: "Estuaire", Latitude: &lat, Longitude: &lng}
	assert.Empty(t, valid.Validate())

	missing := &Establishment{Type: "spa"}
	assert.ElementsMatch(t, []string{
		"name is required",
		"type must be one of hospital, clinic, medical_office, pharmacy, laboratory, imaging_center, institution",
		"province is required",
	}, missing.Validate())

	halfCoords := &Establishment{Name: "X", Type: ProviderTypeHospital, Province: "Ogooué-Maritime", Latitude: &lat}
	assert.Equal(t, []string{"latitude and longitude must be set together"}, halfCoords.Validate())

	outOfRange := &Establishment{Name: "X", Type: ProviderTypeHospital, Province: "Ngounié", Latitude: &badLat, Longitude: &lng}
	assert.Equal(t, []string{"coordinates are out of range"}, outOfRange.Validate())
}
