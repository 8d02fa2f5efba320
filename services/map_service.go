package services

import (
	"context"
	"fmt"

	"community-help/logger"
	"community-help/metrics"
	"community-help/models"
)

// MapService answers marker queries, going to the store only on cache misses.
type MapService struct {
	reports ReportStore
	cache   MarkerCache
}

func NewMapService(reports ReportStore, cache MarkerCache) *MapService {
	if cache == nil {
		cache = NoopCache()
	}
	return &MapService{reports: reports, cache: cache}
}

// Markers runs the query on its snapped grid, so the result may include
// markers up to about 100 m outside the requested box or radius.
func (s *MapService) Markers(ctx context.Context, q models.MarkerQuery) ([]models.Marker, error) {
	if err := q.Validate(); err != nil {
		return nil, invalid("query", err.Error())
	}
	q = q.Snapped()
	key := q.Key()

	cached, gen, ok, err := s.cache.Get(ctx, key)
	cacheUp := err == nil
	switch {
	case err != nil:
		metrics.MarkerCache.WithLabelValues("error").Inc()
		logger.Log.WithError(err).WithField("key", key).Warn("Marker cache read failed")
	case ok:
		metrics.MarkerCache.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.MarkerCache.WithLabelValues("miss").Inc()
	}

	markers, err := s.reports.Markers(ctx, q, models.MaxMarkers)
	if err != nil {
		return nil, fmt.Errorf("query markers: %w", err)
	}
	if markers == nil {
		markers = []models.Marker{}
	}
	// A failed Get gives no generation to write under.
	if cacheUp {
		if err := s.cache.Set(ctx, gen, key, markers); err != nil {
			logger.Log.WithError(err).WithField("key", key).Warn("Marker cache write failed")
		}
	}
	return markers, nil
}

// Warm fills the cache for the unfiltered map, the query every client opens with.
func (s *MapService) Warm(ctx context.Context) (int, error) {
	key := models.MarkerQuery{}.Key()
	_, gen, _, err := s.cache.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	markers, err := s.reports.Markers(ctx, models.MarkerQuery{}, models.MaxMarkers)
	if err != nil {
		return 0, err
	}
	if markers == nil {
		markers = []models.Marker{}
	}
	if err := s.cache.Set(ctx, gen, key, markers); err != nil {
		return 0, err
	}
	return len(markers), nil
}
