package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"community-help/logger"
	"community-help/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeBacklog struct {
	count  int64
	oldest *models.Report
	err    error
	gotAge time.Duration
}

func (f *fakeBacklog) PendingBacklog(_ context.Context, age time.Duration) (int64, *models.Report, error) {
	f.gotAge = age
	return f.count, f.oldest, f.err
}

type fakeWarmer struct {
	calls int
	err   error
}

func (f *fakeWarmer) Warm(context.Context) (int, error) {
	f.calls++
	return 7, f.err
}

func config() Config {
	return Config{BacklogSpec: "*/30 * * * *", WarmMarkersSpec: "*/5 * * * *", StalePendingAfter: 72 * time.Hour}
}

func TestNewRejectsBadSpec(t *testing.T) {
	cfg := config()
	cfg.BacklogSpec = "every now and then"
	_, err := New(cfg, &fakeBacklog{}, &fakeWarmer{})
	assert.Error(t, err)
}

func TestNewRegistersBothJobs(t *testing.T) {
	s, err := New(config(), &fakeBacklog{}, &fakeWarmer{})
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestCheckBacklogLogsStaleReports(t *testing.T) {
	hook := test.NewLocal(logger.Log)
	logger.Discard()
	defer hook.Reset()

	oldest := &models.Report{ID: primitive.NewObjectID(), CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	backlog := &fakeBacklog{count: 4, oldest: oldest}
	s, err := New(config(), backlog, &fakeWarmer{})
	require.NoError(t, err)

	assert.Equal(t, int64(4), s.CheckBacklog(context.Background()))
	assert.Equal(t, 72*time.Hour, backlog.gotAge)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, int64(4), entry.Data["count"])
	assert.Equal(t, oldest.ID.Hex(), entry.Data["oldest_id"])
}

func TestCheckBacklogSurvivesErrors(t *testing.T) {
	logger.Discard()
	s, err := New(config(), &fakeBacklog{err: errors.New("mongo down")}, &fakeWarmer{})
	require.NoError(t, err)
	assert.Zero(t, s.CheckBacklog(context.Background()))
}

func TestWarmMarkers(t *testing.T) {
	logger.Discard()
	warmer := &fakeWarmer{}
	s, err := New(config(), &fakeBacklog{}, warmer)
	require.NoError(t, err)

	s.WarmMarkers(context.Background())
	warmer.err = errors.New("redis down")
	s.WarmMarkers(context.Background())
	assert.Equal(t, 2, warmer.calls)
}

func TestStartStop(t *testing.T) {
	logger.Discard()
	s, err := New(config(), &fakeBacklog{}, &fakeWarmer{})
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
