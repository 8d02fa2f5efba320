package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"community-help/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnsupportedImage   = errors.New("unsupported image type")
	ErrInvalidToken       = errors.New("invalid token")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ConflictError carries the stored state a stale writer lost against.
type ConflictError struct {
	Status  models.Status
	Version int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("report is now %q at version %d", e.Status, e.Version)
}

func (e *ConflictError) Is(target error) bool {
	return target == models.ErrConflict
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   primitive.ObjectID
	Role models.Role
}

// ReportStore is the document store for reports.
type ReportStore interface {
	Insert(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Report, error)
	List(ctx context.Context, f models.ReportFilter) ([]models.Report, error)
	// ApplyStatus writes u only if the stored report is still in u.From at
	// u.ExpectedVersion. It returns models.ErrNotFound or models.ErrConflict otherwise.
	ApplyStatus(ctx context.Context, id primitive.ObjectID, u models.StatusUpdate) (*models.Report, error)
	// Assign sets the assignee of an Accepted report at the expected version
	// and records change in its history.
	Assign(ctx context.Context, id primitive.ObjectID, expectedVersion int64, worker primitive.ObjectID, change models.StatusChange) (*models.Report, error)
	CountByStatus(ctx context.Context) (models.Stats, error)
	Markers(ctx context.Context, q models.MarkerQuery, limit int) ([]models.Marker, error)
	PendingBefore(ctx context.Context, cutoff time.Time) (int64, *models.Report, error)
}

// UserStore is the document store for accounts.
type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
}

// ImageStore hosts uploaded photos and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, r io.Reader, contentType, folder string) (string, error)
	Delete(ctx context.Context, url string) error
}

// MarkerCache caches marker query results until the next Invalidate.
// Get also returns the generation it looked in; Set writes under that
// generation, so a result computed across an Invalidate is never current.
type MarkerCache interface {
	Get(ctx context.Context, key string) (markers []models.Marker, gen int64, ok bool, err error)
	Set(ctx context.Context, gen int64, key string, markers []models.Marker) error
	Invalidate(ctx context.Context) error
}

// EventPublisher fans status changes out to other systems.
type EventPublisher interface {
	PublishStatusChange(ctx context.Context, ev models.StatusChangedEvent) error
}

// Notifier tells a reporter their report moved.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, to models.User, r models.Report) error
}

// ImageExtension maps an accepted image content type to a file extension.
func ImageExtension(contentType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return "png", nil
	case "image/jpeg", "image/jpg":
		return "jpeg", nil
	case "image/gif":
		return "gif", nil
	case "image/webp":
		return "webp", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, contentType)
}

// Photo is an uploaded image waiting to be stored.
type Photo struct {
	Reader      io.Reader
	ContentType string
}

type noopCache struct{}

// NoopCache never hits; used when Redis is not configured.
func NoopCache() MarkerCache { return noopCache{} }

func (noopCache) Get(context.Context, string) ([]models.Marker, int64, bool, error) {
	return nil, 0, false, nil
}
func (noopCache) Set(context.Context, int64, string, []models.Marker) error { return nil }
func (noopCache) Invalidate(context.Context) error                         { return nil }

type noopPublisher struct{}

// NoopPublisher drops events; used when NATS is not configured.
func NoopPublisher() EventPublisher { return noopPublisher{} }

func (noopPublisher) PublishStatusChange(context.Context, models.StatusChangedEvent) error {
	return nil
}

type noopNotifier struct{}

// NoopNotifier drops notifications; used when SMTP is not configured.
func NoopNotifier() Notifier { return noopNotifier{} }

func (noopNotifier) NotifyStatusChange(context.Context, models.User, models.Report) error {
	return nil
}
