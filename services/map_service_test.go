package services

import (
	"context"
	"errors"
	"testing"

	"community-help/logger"
	"community-help/models"
	"community-help/services/servicestest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func putAt(store *servicestest.ReportStore, title string, status models.Status, lat, lng float64) models.Report {
	r := models.Report{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Status:    status,
		Version:   1,
		Latitude:  &lat,
		Longitude: &lng,
		Geo:       models.NewGeoPoint(lat, lng),
	}
	store.Put(r)
	return r
}

func TestMarkersFiltersByAreaAndStatus(t *testing.T) {
	logger.Discard()
	store := servicestest.NewReportStore()
	svc := NewMapService(store, servicestest.NewCache())

	putAt(store, "plaza", models.StatusPending, 14.7566, 120.9466)
	putAt(store, "bridge", models.StatusResolved, 14.7601, 120.9502)
	putAt(store, "far away", models.StatusPending, 10.3157, 123.8854)
	store.Put(models.Report{ID: primitive.NewObjectID(), Title: "no coordinates", Status: models.StatusPending})

	all, err := svc.Markers(context.Background(), models.MarkerQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	box := &models.BoundingBox{MinLat: 14.7, MinLng: 120.9, MaxLat: 14.8, MaxLng: 121.0}
	local, err := svc.Markers(context.Background(), models.MarkerQuery{Box: box})
	require.NoError(t, err)
	assert.Len(t, local, 2)

	resolved, err := svc.Markers(context.Background(), models.MarkerQuery{Box: box, Status: models.StatusResolved})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "bridge", resolved[0].Title)
	assert.True(t, resolved[0].Resolved)

	near, err := svc.Markers(context.Background(), models.MarkerQuery{Near: &models.Circle{Lat: 14.7566, Lng: 120.9466, RadiusMeters: 100}})
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, "plaza", near[0].Title)
}

func TestMarkersServedFromCacheUntilInvalidated(t *testing.T) {
	logger.Discard()
	store := servicestest.NewReportStore()
	cache := servicestest.NewCache()
	svc := NewMapService(store, cache)
	ctx := context.Background()

	putAt(store, "plaza", models.StatusPending, 14.7566, 120.9466)
	first, err := svc.Markers(ctx, models.MarkerQuery{})
	require.NoError(t, err)
	require.Len(t, first, 1)

	putAt(store, "bridge", models.StatusPending, 14.7601, 120.9502)
	cached, err := svc.Markers(ctx, models.MarkerQuery{})
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	require.NoError(t, cache.Invalidate(ctx))
	fresh, err := svc.Markers(ctx, models.MarkerQuery{})
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestMarkersFallsBackToStoreWhenCacheFails(t *testing.T) {
	logger.Discard()
	store := servicestest.NewReportStore()
	cache := servicestest.NewCache()
	cache.Err = errors.New("connection refused")
	svc := NewMapService(store, cache)

	putAt(store, "plaza", models.StatusPending, 14.7566, 120.9466)
	markers, err := svc.Markers(context.Background(), models.MarkerQuery{})
	require.NoError(t, err)
	assert.Len(t, markers, 1)
}

func TestMarkersRejectsBadQuery(t *testing.T) {
	svc := NewMapService(servicestest.NewReportStore(), nil)

	_, err := svc.Markers(context.Background(), models.MarkerQuery{Near: &models.Circle{Lat: 14, Lng: 120, RadiusMeters: models.MaxRadiusMeters + 1}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Markers(context.Background(), models.MarkerQuery{Status: "Closed"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMarkersEmptyIsNotNil(t *testing.T) {
	svc := NewMapService(servicestest.NewReportStore(), nil)
	markers, err := svc.Markers(context.Background(), models.MarkerQuery{})
	require.NoError(t, err)
	assert.NotNil(t, markers)
	assert.Empty(t, markers)
}

func TestWarm(t *testing.T) {
	store := servicestest.NewReportStore()
	cache := servicestest.NewCache()
	svc := NewMapService(store, cache)
	ctx := context.Background()
	putAt(store, "plaza", models.StatusPending, 14.7566, 120.9466)
	putAt(store, "bridge", models.StatusInProgress, 14.7601, 120.9502)

	n, err := svc.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cached, _, ok, err := cache.Get(ctx, models.MarkerQuery{}.Key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached, 2)
}

// invalidatingStore runs an Invalidate while a marker query is in flight,
// the way a concurrent status write would.
type invalidatingStore struct {
	*servicestest.ReportStore
	cache *servicestest.Cache
	once  bool
}

func (s *invalidatingStore) Markers(ctx context.Context, q models.MarkerQuery, limit int) ([]models.Marker, error) {
	markers, err := s.ReportStore.Markers(ctx, q, limit)
	if !s.once {
		s.once = true
		_ = s.cache.Invalidate(ctx)
	}
	return markers, err
}

func TestMarkersNotCachedAcrossInvalidate(t *testing.T) {
	logger.Discard()
	cache := servicestest.NewCache()
	store := &invalidatingStore{ReportStore: servicestest.NewReportStore(), cache: cache}
	svc := NewMapService(store, cache)
	ctx := context.Background()

	putAt(store.ReportStore, "plaza", models.StatusPending, 14.7566, 120.9466)
	_, err := svc.Markers(ctx, models.MarkerQuery{})
	require.NoError(t, err)

	putAt(store.ReportStore, "plaza", models.StatusResolved, 14.7566, 120.9466)
	_, _, ok, err := cache.Get(ctx, models.MarkerQuery{}.Key())
	require.NoError(t, err)
	assert.False(t, ok, "a result read before the invalidation must not become current")
}

func TestMarkersSharingAKeyRunTheSameQuery(t *testing.T) {
	logger.Discard()
	store := servicestest.NewReportStore()
	svc := NewMapService(store, servicestest.NewCache())
	ctx := context.Background()
	putAt(store, "edge", models.StatusPending, 14.0003, 121.0)

	narrow := models.MarkerQuery{Box: &models.BoundingBox{MinLat: 13.9, MinLng: 120.9, MaxLat: 14.0001, MaxLng: 121.1}}
	wide := models.MarkerQuery{Box: &models.BoundingBox{MinLat: 13.9, MinLng: 120.9, MaxLat: 14.0004, MaxLng: 121.1}}

	first, err := svc.Markers(ctx, narrow)
	require.NoError(t, err)
	second, err := svc.Markers(ctx, wide)
	require.NoError(t, err)
	require.Len(t, second, 1, "the wider box contains the report")
	assert.Equal(t, first, second)
}
