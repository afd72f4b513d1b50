package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

type stubSource struct {
	source  entities.Source
	records []entities.RawRecord
	err     error
}

func (s *stubSource) Source() entities.Source { return s.source }

func (s *stubSource) Fetch(_ context.Context) ([]entities.RawRecord, error) {
	return s.records, s.err
}

type MockSearchRepo struct {
	mock.Mock
}

func (m *MockSearchRepo) InitSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSearchRepo) IndexAll(ctx context.Context, ps []entities.Provider) error {
	return m.Called(ctx, ps).Error(0)
}

func (m *MockSearchRepo) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.DirectoryEvent) error {
	return m.Called(ctx, channel, event).Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DirectoryEvent, error) {
	args := m.Called(ctx, channel)
	return args.Get(0).(<-chan *entities.DirectoryEvent), args.Error(1)
}

func (m *MockEventBus) Close() error {
	return m.Called().Error(0)
}

func curatedRecords() []entities.RawRecord {
	return []entities.RawRecord{
		entities.NewRawRecord(entities.SourceCurated, map[string]any{
			"id": "P1", "nom": "Pharmacie Centrale", "type": "Pharmacie", "ville": "Libreville",
			"province": "Estuaire", "latitude": 0.390, "longitude": 9.454, "ouvert_24_7": true,
		}),
		entities.NewRawRecord(entities.SourceCurated, map[string]any{
			"id": "C1", "nom": "Clinique El Rapha", "type": "Clinique", "ville": "Libreville",
			"province": "Estuaire",
		}),
		entities.NewRawRecord(entities.SourceCurated, map[string]any{
			"id": "BROKEN", "type": "Clinique",
		}),
	}
}

func geodataRecords() []entities.RawRecord {
	return []entities.RawRecord{
		entities.NewRawRecord(entities.SourceGeodata, map[string]any{
			"osm_id": "P1", "name": "Pharmacie Centrale OSM", "amenity": "pharmacy", "addr:city": "Libreville",
			"phone": "+241 01 72 00 00",
		}),
		entities.NewRawRecord(entities.SourceGeodata, map[string]any{
			"osm_id": "node/2", "name": "Hôpital de Lambaréné", "amenity": "hospital", "addr:city": "Lambaréné",
			"addr:province": "Moyen-Ogooué", "lat": "-0.7001", "lon": "10.2406",
		}),
	}
}

func TestDirectoryService_LoadMergesSources(t *testing.T) {
	search := new(MockSearchRepo)
	bus := new(MockEventBus)
	search.On("IndexAll", mock.Anything, mock.MatchedBy(func(ps []entities.Provider) bool { return len(ps) == 3 })).Return(nil)
	bus.On("Publish", mock.Anything, providers.EventChannelDirectory, mock.MatchedBy(func(e *entities.DirectoryEvent) bool {
		return e.Type == entities.DirectoryEventReloaded && e.Count == 3
	})).Return(nil)

	svc := NewDirectoryService(DirectoryDeps{
		Sources: []repositories.ProviderSource{
			&stubSource{source: entities.SourceGeodata, records: geodataRecords()},
			&stubSource{source: entities.SourceCurated, records: curatedRecords()},
		},
		SearchRepo: search,
		EventBus:   bus,
	}, DirectoryOptions{})

	report, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.Version)
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, 1, report.Dropped)
	assert.Empty(t, report.FailedSources)
	assert.False(t, report.Superseded)

	p, err := svc.Get(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "Pharmacie Centrale", p.Name, "curated outranks geodata")
	assert.Equal(t, []string{"+241 01 72 00 00"}, p.Phones)

	search.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestDirectoryService_PartialFailureWarns(t *testing.T) {
	svc := NewDirectoryService(DirectoryDeps{
		Sources: []repositories.ProviderSource{
			&stubSource{source: entities.SourceCurated, records: curatedRecords()},
			&stubSource{source: entities.SourceGeodata, err: errors.New("connection refused")},
		},
	}, DirectoryOptions{})

	report, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"geodata"}, report.FailedSources)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, WarningSourceUnavailable, report.Warnings[0].Code)
	assert.Equal(t, 2, report.Count)
}

func TestDirectoryService_AllSourcesFailKeepsPreviousAggregate(t *testing.T) {
	curated := &stubSource{source: entities.SourceCurated, records: curatedRecords()}
	svc := NewDirectoryService(DirectoryDeps{
		Sources: []repositories.ProviderSource{curated},
	}, DirectoryOptions{})

	_, err := svc.Load(context.Background())
	require.NoError(t, err)

	curated.err = errors.New("dataset unreadable")
	_, err = svc.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))

	snapshot, version := svc.Snapshot()
	assert.Len(t, snapshot, 2)
	assert.Equal(t, uint64(1), version)
}

// gatedSource blocks its first fetch until gate is closed and serves a
// shorter, older record set from it.
type gatedSource struct {
	records []entities.RawRecord
	gate    chan struct{}
	entered chan struct{}
	calls   atomic.Int32
}

func (s *gatedSource) Source() entities.Source { return entities.SourceCurated }

func (s *gatedSource) Fetch(ctx context.Context) ([]entities.RawRecord, error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return s.records[:1], nil
	}
	return s.records, nil
}

func TestDirectoryService_SupersededLoadIsDiscarded(t *testing.T) {
	src := &gatedSource{records: curatedRecords(), gate: make(chan struct{}), entered: make(chan struct{})}
	svc := NewDirectoryService(DirectoryDeps{
		Sources: []repositories.ProviderSource{src},
	}, DirectoryOptions{LoadTimeout: 5 * time.Second})

	firstDone := make(chan *LoadReport, 1)
	go func() {
		report, err := svc.Load(context.Background())
		assert.NoError(t, err)
		firstDone <- report
	}()
	<-src.entered

	report, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), report.Version)
	assert.False(t, report.Superseded)

	close(src.gate)
	first := <-firstDone
	assert.Equal(t, uint64(1), first.Version)
	assert.True(t, first.Superseded)

	snapshot, version := svc.Snapshot()
	assert.Equal(t, uint64(2), version)
	assert.Len(t, snapshot, 2)
}

func newLoadedService(t *testing.T, deps DirectoryDeps) *DirectoryService {
	t.Helper()
	if deps.Sources == nil {
		deps.Sources = []repositories.ProviderSource{
			&stubSource{source: entities.SourceCurated, records: curatedRecords()},
			&stubSource{source: entities.SourceGeodata, records: geodataRecords()},
		}
	}
	svc := NewDirectoryService(deps, DirectoryOptions{})
	_, err := svc.Load(context.Background())
	require.NoError(t, err)
	return svc
}

func TestDirectoryService_Version(t *testing.T) {
	svc := NewDirectoryService(DirectoryDeps{
		Sources: []repositories.ProviderSource{&stubSource{source: entities.SourceCurated, records: curatedRecords()}},
	}, DirectoryOptions{})
	assert.Equal(t, uint64(0), svc.Version())

	report, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Version, svc.Version())
}

func TestDirectoryService_SearchLoadsLazily(t *testing.T) {
	svc := NewDirectoryService(DirectoryDeps{
		Sources: []repositories.ProviderSource{&stubSource{source: entities.SourceCurated, records: curatedRecords()}},
	}, DirectoryOptions{})

	res, err := svc.Search(context.Background(), SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, uint64(1), res.Version)
	assert.Equal(t, SortNameAsc, res.Sort)
	assert.Equal(t, "C1", res.Providers[0].ID)
}

func TestDirectoryService_SearchUnknownSortFallsBack(t *testing.T) {
	svc := newLoadedService(t, DirectoryDeps{})

	res, err := svc.Search(context.Background(), SearchQuery{Sort: "rating-desc"})
	require.NoError(t, err)
	assert.Equal(t, SortNameAsc, res.Sort)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningUnknownSortKey, res.Warnings[0].Code)
	assert.Equal(t, 3, res.Total)
}

func TestDirectoryService_SearchNearMeWithoutLocation(t *testing.T) {
	svc := newLoadedService(t, DirectoryDeps{})

	res, err := svc.Search(context.Background(), SearchQuery{Filter: FilterSpec{NearMe: true}})
	require.NoError(t, err)
	assert.Empty(t, res.Providers)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningLocationUnavailable, res.Warnings[0].Code)
}

func TestDirectoryService_SearchWithDistance(t *testing.T) {
	svc := newLoadedService(t, DirectoryDeps{})

	res, err := svc.Search(context.Background(), SearchQuery{
		Sort:         "distance-asc",
		UserLocation: &entities.Coordinates{Lat: 0.390, Lng: 9.454},
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	assert.Equal(t, "P1", res.Providers[0].ID)
	require.NotNil(t, res.Providers[0].DistanceKm)
	assert.InDelta(t, 0, *res.Providers[0].DistanceKm, 1e-6)
	assert.Equal(t, "node/2", res.Providers[1].ID)
	assert.Nil(t, res.Providers[2].DistanceKm)
}

func TestDirectoryService_GetNotFound(t *testing.T) {
	svc := newLoadedService(t, DirectoryDeps{})

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDirectoryService_SuggestUsesIndex(t *testing.T) {
	search := new(MockSearchRepo)
	search.On("IndexAll", mock.Anything, mock.Anything).Return(nil)
	search.On("Suggest", mock.Anything, "hop", 5).Return([]string{"node/2", "gone"}, nil)

	svc := newLoadedService(t, DirectoryDeps{SearchRepo: search})

	out, err := svc.Suggest(context.Background(), "hop", 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "node/2", out[0].ID)
}

func TestDirectoryService_SuggestFallsBackToScan(t *testing.T) {
	search := new(MockSearchRepo)
	search.On("IndexAll", mock.Anything, mock.Anything).Return(errors.New("typesense down"))
	search.On("Suggest", mock.Anything, "pharm", 10).Return(nil, errors.New("typesense down"))

	svc := newLoadedService(t, DirectoryDeps{SearchRepo: search})

	out, err := svc.Suggest(context.Background(), "pharm", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "P1", out[0].ID)

	empty, err := svc.Suggest(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDirectoryService_Reindex(t *testing.T) {
	search := new(MockSearchRepo)
	search.On("IndexAll", mock.Anything, mock.Anything).Return(nil)
	search.On("InitSchema", mock.Anything).Return(nil)

	svc := newLoadedService(t, DirectoryDeps{SearchRepo: search})
	n, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	search.AssertNumberOfCalls(t, "IndexAll", 2)

	bare := newLoadedService(t, DirectoryDeps{})
	_, err = bare.Reindex(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
