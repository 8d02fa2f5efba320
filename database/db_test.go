package db

import (
	"context"
	"testing"
	"time"

	"community-help/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func ns(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestUserStore(t *testing.T) {
	mt := newMock(t)

	mt.Run("insert maps duplicate key", func(mt *mtest.T) {
		store := &UserStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: users index: email_unique",
		}))

		err := store.Insert(context.Background(), &models.User{Email: "ana@example.com"})
		assert.ErrorIs(mt, err, models.ErrDuplicateEmail)
	})

	mt.Run("insert assigns id", func(mt *mtest.T) {
		store := &UserStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := &models.User{Email: "ana@example.com"}
		require.NoError(mt, store.Insert(context.Background(), u))
		assert.False(mt, u.ID.IsZero())
	})

	mt.Run("find by email", func(mt *mtest.T) {
		store := &UserStore{coll: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Ana"},
			{Key: "email", Value: "ana@example.com"},
			{Key: "password", Value: "hash"},
			{Key: "role", Value: "worker"},
		}))

		u, err := store.FindByEmail(context.Background(), "ana@example.com")
		require.NoError(mt, err)
		assert.Equal(mt, id, u.ID)
		assert.Equal(mt, models.RoleWorker, u.Role)
		assert.Equal(mt, "hash", u.Password)
	})

	mt.Run("find missing", func(mt *mtest.T) {
		store := &UserStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		_, err := store.FindByID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})

	mt.Run("update role of missing user", func(mt *mtest.T) {
		store := &UserStore{coll: mt.Coll}
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}})

		err := store.UpdateRole(context.Background(), primitive.NewObjectID(), models.RoleAdmin)
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})
}

func TestUserStoreUpdatePassword(t *testing.T) {
	mt := newMock(t)

	mt.Run("matched", func(mt *mtest.T) {
		store := &UserStore{coll: mt.Coll}
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})
		assert.NoError(mt, store.UpdatePassword(context.Background(), primitive.NewObjectID(), "hash"))
	})

	mt.Run("missing user", func(mt *mtest.T) {
		store := &UserStore{coll: mt.Coll}
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}})
		err := store.UpdatePassword(context.Background(), primitive.NewObjectID(), "hash")
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})
}

func statusUpdate() models.StatusUpdate {
	return models.StatusUpdate{
		From:            models.StatusAccepted,
		To:              models.StatusInProgress,
		ExpectedVersion: 2,
		By:              primitive.NewObjectID(),
		Role:            models.RoleWorker,
		At:              time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestReportStoreApplyStatus(t *testing.T) {
	mt := newMock(t)

	mt.Run("returns updated document", func(mt *mtest.T) {
		store := &ReportStore{coll: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: id},
				{Key: "status", Value: "In Progress"},
				{Key: "version", Value: int64(3)},
			}},
		})

		r, err := store.ApplyStatus(context.Background(), id, statusUpdate())
		require.NoError(mt, err)
		assert.Equal(mt, models.StatusInProgress, r.Status)
		assert.Equal(mt, int64(3), r.Version)
	})

	mt.Run("conflict when report still exists", func(mt *mtest.T) {
		store := &ReportStore{coll: mt.Coll}
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)

		_, err := store.ApplyStatus(context.Background(), primitive.NewObjectID(), statusUpdate())
		assert.ErrorIs(mt, err, models.ErrConflict)
	})

	mt.Run("not found when report is gone", func(mt *mtest.T) {
		store := &ReportStore{coll: mt.Coll}
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch),
		)

		_, err := store.ApplyStatus(context.Background(), primitive.NewObjectID(), statusUpdate())
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})
}

func TestReportStoreCountByStatus(t *testing.T) {
	mt := newMock(t)

	mt.Run("fills missing statuses with zero", func(mt *mtest.T) {
		store := &ReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "Pending"}, {Key: "count", Value: int64(4)}},
			bson.D{{Key: "_id", Value: "Resolved"}, {Key: "count", Value: int64(2)}},
		))

		stats, err := store.CountByStatus(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, int64(6), stats.Total)
		assert.Equal(mt, int64(4), stats.ByStatus[models.StatusPending])
		assert.Equal(mt, int64(0), stats.ByStatus[models.StatusAccepted])
		assert.Len(mt, stats.ByStatus, len(models.AllStatuses))
	})
}

func TestReportStoreMarkers(t *testing.T) {
	mt := newMock(t)

	mt.Run("skips reports without coordinates", func(mt *mtest.T) {
		store := &ReportStore{coll: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: id},
				{Key: "title", Value: "Pothole"},
				{Key: "status", Value: "Resolved"},
				{Key: "latitude", Value: 14.7566},
				{Key: "longitude", Value: 120.9466},
			},
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "title", Value: "Legacy"},
				{Key: "status", Value: "Pending"},
			},
		))

		markers, err := store.Markers(context.Background(), models.MarkerQuery{}, models.MaxMarkers)
		require.NoError(mt, err)
		require.Len(mt, markers, 1)
		assert.Equal(mt, id.Hex(), markers[0].ID)
		assert.True(mt, markers[0].Resolved)
	})
}

func TestReportStorePendingBefore(t *testing.T) {
	mt := newMock(t)

	mt.Run("counts and returns oldest", func(mt *mtest.T) {
		store := &ReportStore{coll: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: 3}}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
				{Key: "_id", Value: id},
				{Key: "status", Value: "Pending"},
			}),
		)

		count, oldest, err := store.PendingBefore(context.Background(), time.Now())
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), count)
		require.NotNil(mt, oldest)
		assert.Equal(mt, id, oldest.ID)
	})

	mt.Run("empty backlog", func(mt *mtest.T) {
		store := &ReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		count, oldest, err := store.PendingBefore(context.Background(), time.Now())
		require.NoError(mt, err)
		assert.Zero(mt, count)
		assert.Nil(mt, oldest)
	})
}

func TestListFilter(t *testing.T) {
	worker := primitive.NewObjectID()

	f := listFilter(models.ReportFilter{
		Statuses:          []models.Status{models.StatusAccepted, models.StatusInProgress},
		AssignedTo:        &worker,
		IncludeUnassigned: true,
	})
	assert.Equal(t, bson.M{"$in": []models.Status{models.StatusAccepted, models.StatusInProgress}}, f["status"])
	assert.Equal(t, bson.A{bson.M{"assigned_to": worker}, bson.M{"assigned_to": nil}}, f["$or"])
	assert.NotContains(t, f, "assigned_to")

	f = listFilter(models.ReportFilter{AssignedTo: &worker})
	assert.Equal(t, worker, f["assigned_to"])
	assert.NotContains(t, f, "$or")

	assert.Empty(t, listFilter(models.ReportFilter{}))
}

func TestMarkerFilter(t *testing.T) {
	f := markerFilter(models.MarkerQuery{Status: models.StatusPending})
	assert.Equal(t, bson.M{"$exists": true}, f["geo"])
	assert.Equal(t, models.StatusPending, f["status"])

	f = markerFilter(models.MarkerQuery{Near: &models.Circle{Lat: 14.75, Lng: 120.94, RadiusMeters: 500}})
	near := f["geo"].(bson.M)["$nearSphere"].(bson.M)
	assert.Equal(t, 500.0, near["$maxDistance"])
	assert.Equal(t, bson.A{120.94, 14.75}, near["$geometry"].(bson.M)["coordinates"])

	f = markerFilter(models.MarkerQuery{Box: &models.BoundingBox{MinLat: 1, MinLng: 2, MaxLat: 3, MaxLng: 4}})
	assert.Equal(t, bson.M{"$exists": true}, f["geo"])
	assert.Equal(t, bson.M{"$gte": 1.0, "$lte": 3.0}, f["latitude"])
	assert.Equal(t, bson.M{"$gte": 2.0, "$lte": 4.0}, f["longitude"])
	assert.NotContains(t, f, "status")

	// wider than a hemisphere: still the same box, not its complement
	f = markerFilter(models.MarkerQuery{Box: &models.BoundingBox{MinLat: -60, MinLng: -100, MaxLat: 60, MaxLng: 100}})
	assert.Equal(t, bson.M{"$gte": -100.0, "$lte": 100.0}, f["longitude"])
	assert.Equal(t, bson.M{"$gte": -60.0, "$lte": 60.0}, f["latitude"])

	f = markerFilter(models.MarkerQuery{Box: &models.BoundingBox{MinLat: -90, MinLng: -180, MaxLat: 90, MaxLng: 180}})
	assert.Equal(t, bson.M{"$gte": -180.0, "$lte": 180.0}, f["longitude"])
}
