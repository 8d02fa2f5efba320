package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"community-help/logger"
	"community-help/metrics"
	"community-help/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	maxTitleLength       = 120
	maxDescriptionLength = 2000
	maxNoteLength        = 2000

	reportImageFolder     = "reports"
	resolutionImageFolder = "resolutions"
)

// CreateReportInput is what a citizen fills in on the report form.
type CreateReportInput struct {
	Title       string
	Description string
	Category    string
	Location    string
	Latitude    *float64
	Longitude   *float64
}

// ReportView is a report plus the statuses the caller may move it to.
type ReportView struct {
	*models.Report
	NextStatuses []models.Status `json:"next_statuses"`
}

type ReportService struct {
	reports  ReportStore
	users    UserStore
	images   ImageStore
	cache    MarkerCache
	events   EventPublisher
	notifier Notifier
	now      func() time.Time
}

func NewReportService(reports ReportStore, users UserStore, images ImageStore, cache MarkerCache, events EventPublisher, notifier Notifier) *ReportService {
	if cache == nil {
		cache = NoopCache()
	}
	if events == nil {
		events = NoopPublisher()
	}
	if notifier == nil {
		notifier = NoopNotifier()
	}
	return &ReportService{
		reports:  reports,
		users:    users,
		images:   images,
		cache:    cache,
		events:   events,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create validates the form, uploads the photo and stores a Pending report.
func (s *ReportService) Create(ctx context.Context, actor Actor, in CreateReportInput, photo *Photo) (*models.Report, error) {
	if actor.Role != models.RoleCitizen && actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	switch {
	case title == "":
		return nil, invalid("title", "is required")
	case len(title) > maxTitleLength:
		return nil, invalid("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	case description == "":
		return nil, invalid("description", "is required")
	case len(description) > maxDescriptionLength:
		return nil, invalid("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	case in.Latitude == nil || in.Longitude == nil:
		return nil, invalid("location", "latitude and longitude are required")
	case !models.ValidLatLng(*in.Latitude, *in.Longitude):
		return nil, invalid("location", "coordinates out of range")
	case photo == nil || photo.Reader == nil:
		return nil, invalid("image", "a photo is required")
	}
	category := models.DefaultCategory
	if strings.TrimSpace(in.Category) != "" {
		c, ok := models.NormalizeCategory(in.Category)
		if !ok {
			return nil, invalid("category", "is not a known category")
		}
		category = c
	}
	if _, err := ImageExtension(photo.ContentType); err != nil {
		return nil, err
	}

	imageURL, err := s.images.Upload(ctx, photo.Reader, photo.ContentType, reportImageFolder)
	if err != nil {
		return nil, fmt.Errorf("upload report image: %w", err)
	}

	lat, lng := *in.Latitude, *in.Longitude
	now := s.now().UTC()
	report := &models.Report{
		ID:          primitive.NewObjectID(),
		UserID:      actor.ID,
		Title:       title,
		Description: description,
		Category:    category,
		Location:    strings.TrimSpace(in.Location),
		ImageURL:    imageURL,
		Latitude:    &lat,
		Longitude:   &lng,
		Geo:         models.NewGeoPoint(lat, lng),
		Status:      models.StatusPending,
		Version:     1,
		History:     []models.StatusChange{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.reports.Insert(ctx, report); err != nil {
		s.discardImage(ctx, imageURL, err)
		return nil, fmt.Errorf("insert report: %w", err)
	}

	metrics.ReportsCreated.Inc()
	s.invalidateMarkers(ctx)
	logger.Log.WithFields(logrus.Fields{"report_id": report.ID.Hex(), "user_id": actor.ID.Hex()}).Info("Report created")
	return report, nil
}

// ListMine returns the caller's own reports, newest first.
func (s *ReportService) ListMine(ctx context.Context, actor Actor) ([]models.Report, error) {
	id := actor.ID
	return s.reports.List(ctx, models.ReportFilter{UserID: &id, Limit: MaxListLimit})
}

// ListAll is the admin dashboard listing. No statuses means all of them.
func (s *ReportService) ListAll(ctx context.Context, actor Actor, statuses []models.Status, limit, offset int64) ([]models.Report, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.reports.List(ctx, models.ReportFilter{Statuses: statuses, Limit: limit, Offset: offset})
}

// Get returns one report. Citizens only see their own.
func (s *ReportService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*ReportView, error) {
	r, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleCitizen && r.UserID != actor.ID {
		return nil, ErrForbidden
	}
	return &ReportView{Report: r, NextStatuses: models.NextStatuses(r.Status, actor.Role)}, nil
}

// AcceptInput is the admin's plan for a Pending report.
type AcceptInput struct {
	PlanNotes       string
	WorkerID        *primitive.ObjectID
	ExpectedVersion int64
}

func (s *ReportService) Accept(ctx context.Context, actor Actor, id primitive.ObjectID, in AcceptInput) (*models.Report, error) {
	return s.transition(ctx, actor, id, models.StatusAccepted, in.ExpectedVersion, func(r *models.Report, u *models.StatusUpdate) error {
		notes, err := requireNote("plan_notes", in.PlanNotes)
		if err != nil {
			return err
		}
		if in.WorkerID != nil {
			if err := s.requireWorker(ctx, *in.WorkerID); err != nil {
				return err
			}
			u.AssignTo = in.WorkerID
		}
		u.PlanNotes = notes
		u.AdminNotes = notes
		u.Note = notes
		return nil
	})
}

func (s *ReportService) Reject(ctx context.Context, actor Actor, id primitive.ObjectID, reason string, expectedVersion int64) (*models.Report, error) {
	return s.transition(ctx, actor, id, models.StatusRejected, expectedVersion, func(r *models.Report, u *models.StatusUpdate) error {
		reason, err := requireNote("rejection_reason", reason)
		if err != nil {
			return err
		}
		u.RejectionReason = reason
		u.AdminNotes = reason
		u.Note = reason
		return nil
	})
}

// Start moves an Accepted job to In Progress. An unassigned job is claimed
// by the worker who starts it.
func (s *ReportService) Start(ctx context.Context, actor Actor, id primitive.ObjectID, expectedVersion int64) (*models.Report, error) {
	return s.transition(ctx, actor, id, models.StatusInProgress, expectedVersion, func(r *models.Report, u *models.StatusUpdate) error {
		if r.AssignedTo != nil && *r.AssignedTo != actor.ID {
			return fmt.Errorf("%w: job is assigned to another worker", ErrForbidden)
		}
		if r.AssignedTo == nil {
			workerID := actor.ID
			u.AssignTo = &workerID
		}
		return nil
	})
}

// Resolve closes an In Progress job. Notes and a proof photo are required.
// The photo is uploaded only once every other check has passed, and removed
// again if the write loses to a concurrent change.
func (s *ReportService) Resolve(ctx context.Context, actor Actor, id primitive.ObjectID, notes string, proof *Photo, expectedVersion int64) (*models.Report, error) {
	var proofURL string
	r, err := s.transition(ctx, actor, id, models.StatusResolved, expectedVersion, func(r *models.Report, u *models.StatusUpdate) error {
		if !r.AssignedToUser(actor.ID) {
			return fmt.Errorf("%w: job is assigned to another worker", ErrForbidden)
		}
		notes, err := requireNote("resolution_notes", notes)
		if err != nil {
			return err
		}
		if proof == nil || proof.Reader == nil {
			return invalid("image", "a proof photo is required")
		}
		if _, err := ImageExtension(proof.ContentType); err != nil {
			return err
		}
		url, err := s.images.Upload(ctx, proof.Reader, proof.ContentType, resolutionImageFolder)
		if err != nil {
			return fmt.Errorf("upload resolution image: %w", err)
		}
		proofURL = url
		u.ResolutionNotes = notes
		u.ResolutionImageURL = url
		u.Note = notes
		return nil
	})
	if err != nil && proofURL != "" {
		s.discardImage(ctx, proofURL, err)
	}
	return r, err
}

// Assign hands an Accepted report to a worker.
func (s *ReportService) Assign(ctx context.Context, actor Actor, id, workerID primitive.ObjectID, expectedVersion int64) (*models.Report, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	r, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != r.Version {
		return nil, &ConflictError{Status: r.Status, Version: r.Version}
	}
	if r.Status != models.StatusAccepted {
		return nil, fmt.Errorf("%w: only Accepted reports can be assigned, report is %q", models.ErrInvalidTransition, r.Status)
	}
	if err := s.requireWorker(ctx, workerID); err != nil {
		return nil, err
	}

	change := models.StatusChange{
		From: r.Status,
		To:   r.Status,
		By:   actor.ID,
		Role: actor.Role,
		Note: "assigned to " + workerID.Hex(),
		At:   s.now().UTC(),
	}
	updated, err := s.reports.Assign(ctx, id, r.Version, workerID, change)
	if err != nil {
		return nil, s.conflictOr(ctx, id, err)
	}

	metrics.ReportsAssigned.Inc()
	s.publish(ctx, updated, change)
	logger.Log.WithFields(logrus.Fields{
		"report_id": id.Hex(),
		"worker_id": workerID.Hex(),
		"admin_id":  actor.ID.Hex(),
	}).Info("Report assigned")
	return updated, nil
}

// WorkerQueue lists the jobs a worker can act on: Accepted or In Progress,
// assigned to them or to nobody. Active jobs come first, then oldest first.
func (s *ReportService) WorkerQueue(ctx context.Context, actor Actor) ([]models.Report, error) {
	if actor.Role != models.RoleWorker {
		return nil, ErrForbidden
	}
	id := actor.ID
	jobs, err := s.reports.List(ctx, models.ReportFilter{
		Statuses:          []models.Status{models.StatusAccepted, models.StatusInProgress},
		AssignedTo:        &id,
		IncludeUnassigned: true,
		Limit:             MaxListLimit,
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		ai, aj := jobs[i].Status == models.StatusInProgress, jobs[j].Status == models.StatusInProgress
		if ai != aj {
			return ai
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *ReportService) Stats(ctx context.Context, actor Actor) (models.Stats, error) {
	if actor.Role != models.RoleAdmin {
		return models.Stats{}, ErrForbidden
	}
	return s.reports.CountByStatus(ctx)
}

// PendingBacklog counts Pending reports older than age and returns the oldest.
func (s *ReportService) PendingBacklog(ctx context.Context, age time.Duration) (int64, *models.Report, error) {
	return s.reports.PendingBefore(ctx, s.now().UTC().Add(-age))
}

type mutation func(r *models.Report, u *models.StatusUpdate) error

func (s *ReportService) transition(ctx context.Context, actor Actor, id primitive.ObjectID, to models.Status, expectedVersion int64, mutate mutation) (*models.Report, error) {
	r, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != r.Version {
		metrics.TransitionConflicts.Inc()
		return nil, &ConflictError{Status: r.Status, Version: r.Version}
	}
	if err := models.CanTransition(r.Status, to, actor.Role); err != nil {
		return nil, err
	}

	u := models.StatusUpdate{
		From:            r.Status,
		To:              to,
		ExpectedVersion: r.Version,
		By:              actor.ID,
		Role:            actor.Role,
		At:              s.now().UTC(),
	}
	if err := mutate(r, &u); err != nil {
		return nil, err
	}

	updated, err := s.reports.ApplyStatus(ctx, id, u)
	if err != nil {
		return nil, s.conflictOr(ctx, id, err)
	}

	metrics.StatusTransitions.WithLabelValues(string(u.From), string(u.To)).Inc()
	logger.Log.WithFields(logrus.Fields{
		"report_id": id.Hex(),
		"from":      u.From,
		"to":        u.To,
		"by":        actor.ID.Hex(),
		"role":      actor.Role,
		"version":   updated.Version,
	}).Info("Report status changed")

	s.afterStatusChange(ctx, updated, u)
	return updated, nil
}

// conflictOr turns a store conflict into a ConflictError carrying the
// current state, so the client can refresh and retry.
func (s *ReportService) conflictOr(ctx context.Context, id primitive.ObjectID, err error) error {
	if !errors.Is(err, models.ErrConflict) {
		return err
	}
	metrics.TransitionConflicts.Inc()
	current, ferr := s.reports.FindByID(ctx, id)
	if ferr != nil {
		return ferr
	}
	return &ConflictError{Status: current.Status, Version: current.Version}
}

// afterStatusChange runs the side effects of a committed write. Failures
// are logged and never undo the write.
func (s *ReportService) afterStatusChange(ctx context.Context, r *models.Report, u models.StatusUpdate) {
	s.invalidateMarkers(ctx)
	s.publish(ctx, r, u.Change())

	reporter, err := s.users.FindByID(ctx, r.UserID)
	if err != nil {
		logger.Log.WithError(err).WithField("report_id", r.ID.Hex()).Warn("Reporter lookup failed, skipping notification")
		return
	}
	if err := s.notifier.NotifyStatusChange(ctx, *reporter, *r); err != nil {
		logger.Log.WithError(err).WithField("report_id", r.ID.Hex()).Warn("Failed to notify reporter")
	}
}

func (s *ReportService) publish(ctx context.Context, r *models.Report, c models.StatusChange) {
	ev := models.StatusChangedEvent{
		ReportID: r.ID.Hex(),
		From:     c.From,
		To:       c.To,
		By:       c.By.Hex(),
		Role:     c.Role,
		Version:  r.Version,
		At:       c.At.Format(time.RFC3339),
	}
	if r.AssignedTo != nil {
		ev.AssignedTo = r.AssignedTo.Hex()
	}
	if err := s.events.PublishStatusChange(ctx, ev); err != nil {
		logger.Log.WithError(err).WithField("report_id", ev.ReportID).Warn("Failed to publish status change")
	}
}

// discardImage removes an upload whose report write did not commit. It runs
// even when ctx is already cancelled.
func (s *ReportService) discardImage(ctx context.Context, url string, cause error) {
	if err := s.images.Delete(context.WithoutCancel(ctx), url); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"image_url": url,
			"cause":     cause.Error(),
		}).Warn("Failed to delete orphaned image")
	}
}

func (s *ReportService) invalidateMarkers(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.Log.WithError(err).Warn("Failed to invalidate marker cache")
	}
}

func (s *ReportService) requireWorker(ctx context.Context, id primitive.ObjectID) error {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return invalid("worker_id", "no such user")
	}
	if err != nil {
		return err
	}
	if u.Role != models.RoleWorker {
		return invalid("worker_id", "user is not a worker")
	}
	return nil
}

func requireNote(field, note string) (string, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return "", invalid(field, "is required")
	}
	if len(note) > maxNoteLength {
		return "", invalid(field, fmt.Sprintf("must be at most %d characters", maxNoteLength))
	}
	return note, nil
}
