package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"community-help/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReportStore keeps reports in the reports collection. Status writes are
// conditional on the stored status and version.
type ReportStore struct {
	coll *mongo.Collection
}

func NewReportStore(database *mongo.Database) *ReportStore {
	return &ReportStore{coll: database.Collection(ReportsCollection)}
}

func (s *ReportStore) Insert(ctx context.Context, r *models.Report) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if r.History == nil {
		r.History = []models.StatusChange{}
	}
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *ReportStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Report, error) {
	var r models.Report
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	return &r, nil
}

func (s *ReportStore) List(ctx context.Context, f models.ReportFilter) ([]models.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.Offset > 0 {
		opts.SetSkip(f.Offset)
	}

	cursor, err := s.coll.Find(ctx, listFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer cursor.Close(ctx)

	reports := []models.Report{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	return reports, nil
}

func listFilter(f models.ReportFilter) bson.M {
	filter := bson.M{}
	if f.UserID != nil {
		filter["user_id"] = *f.UserID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.AssignedTo != nil {
		if f.IncludeUnassigned {
			// null also matches documents where the field is missing
			filter["$or"] = bson.A{
				bson.M{"assigned_to": *f.AssignedTo},
				bson.M{"assigned_to": nil},
			}
		} else {
			filter["assigned_to"] = *f.AssignedTo
		}
	}
	return filter
}

func (s *ReportStore) ApplyStatus(ctx context.Context, id primitive.ObjectID, u models.StatusUpdate) (*models.Report, error) {
	set := bson.M{
		"status":     u.To,
		"updated_at": u.At,
	}
	setIf(set, "admin_notes", u.AdminNotes)
	setIf(set, "plan_notes", u.PlanNotes)
	setIf(set, "rejection_reason", u.RejectionReason)
	setIf(set, "resolution_notes", u.ResolutionNotes)
	setIf(set, "resolution_image_url", u.ResolutionImageURL)
	if u.AssignTo != nil {
		set["assigned_to"] = *u.AssignTo
	}

	filter := bson.M{"_id": id, "status": u.From, "version": u.ExpectedVersion}
	update := bson.M{
		"$set":  set,
		"$inc":  bson.M{"version": 1},
		"$push": bson.M{"history": u.Change()},
	}
	return s.compareAndSet(ctx, id, filter, update)
}

func (s *ReportStore) Assign(ctx context.Context, id primitive.ObjectID, expectedVersion int64, worker primitive.ObjectID, change models.StatusChange) (*models.Report, error) {
	filter := bson.M{"_id": id, "status": models.StatusAccepted, "version": expectedVersion}
	update := bson.M{
		"$set":  bson.M{"assigned_to": worker, "updated_at": change.At},
		"$inc":  bson.M{"version": 1},
		"$push": bson.M{"history": change},
	}
	return s.compareAndSet(ctx, id, filter, update)
}

// compareAndSet applies update when filter still matches. A miss is
// ErrNotFound when the report is gone and ErrConflict otherwise.
func (s *ReportStore) compareAndSet(ctx context.Context, id primitive.ObjectID, filter, update bson.M) (*models.Report, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Report
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update report: %w", err)
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("check report: %w", err)
	}
	if n == 0 {
		return nil, models.ErrNotFound
	}
	return nil, models.ErrConflict
}

type statusCount struct {
	Status models.Status `bson:"_id"`
	Count  int64         `bson:"count"`
}

func (s *ReportStore) CountByStatus(ctx context.Context) (models.Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.Stats{}, fmt.Errorf("aggregate stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []statusCount
	if err := cursor.All(ctx, &rows); err != nil {
		return models.Stats{}, fmt.Errorf("decode stats: %w", err)
	}

	stats := models.NewStats()
	for _, row := range rows {
		stats.ByStatus[row.Status] += row.Count
		stats.Total += row.Count
	}
	return stats, nil
}

var markerProjection = bson.M{
	"_id":       1,
	"title":     1,
	"status":    1,
	"latitude":  1,
	"longitude": 1,
}

func (s *ReportStore) Markers(ctx context.Context, q models.MarkerQuery, limit int) ([]models.Marker, error) {
	opts := options.Find().SetProjection(markerProjection)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	filter := markerFilter(q)
	if q.Near == nil {
		// $nearSphere already orders by distance
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}})
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find markers: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("decode markers: %w", err)
	}

	markers := make([]models.Marker, 0, len(reports))
	for _, r := range reports {
		if m, ok := models.MarkerFromReport(r); ok {
			markers = append(markers, m)
		}
	}
	return markers, nil
}

func markerFilter(q models.MarkerQuery) bson.M {
	filter := bson.M{"geo": bson.M{"$exists": true}}
	switch {
	case q.Box != nil:
		// Plain ranges on the stored coordinates. A GeoJSON polygon would
		// bend its edges along great circles and flip to the complement for
		// boxes wider than a hemisphere.
		b := q.Box
		filter["latitude"] = bson.M{"$gte": b.MinLat, "$lte": b.MaxLat}
		filter["longitude"] = bson.M{"$gte": b.MinLng, "$lte": b.MaxLng}
	case q.Near != nil:
		c := q.Near
		filter["geo"] = bson.M{"$nearSphere": bson.M{
			"$geometry":    bson.M{"type": "Point", "coordinates": bson.A{c.Lng, c.Lat}},
			"$maxDistance": c.RadiusMeters,
		}}
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	return filter
}

func (s *ReportStore) PendingBefore(ctx context.Context, cutoff time.Time) (int64, *models.Report, error) {
	filter := bson.M{"status": models.StatusPending, "created_at": bson.M{"$lt": cutoff}}

	count, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, nil, fmt.Errorf("count pending: %w", err)
	}
	if count == 0 {
		return 0, nil, nil
	}

	var oldest models.Report
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if err := s.coll.FindOne(ctx, filter, opts).Decode(&oldest); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return count, nil, nil
		}
		return 0, nil, fmt.Errorf("find oldest pending: %w", err)
	}
	return count, &oldest, nil
}

func setIf(m bson.M, key, value string) {
	if value != "" {
		m[key] = value
	}
}
