// Package servicestest provides in-memory implementations of the service
// dependencies for tests.
package servicestest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"community-help/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReportStore keeps reports in memory with the same compare-and-set rules
// as the MongoDB store.
type ReportStore struct {
	mu      sync.Mutex
	reports map[primitive.ObjectID]models.Report

	// BeforeWrite, when set, runs at the start of ApplyStatus and Assign.
	// Tests use it to slip in a concurrent change.
	BeforeWrite func()
}

func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[primitive.ObjectID]models.Report)}
}

func (s *ReportStore) Insert(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if _, ok := s.reports[r.ID]; ok {
		return fmt.Errorf("duplicate report id %s", r.ID.Hex())
	}
	s.reports[r.ID] = clone(*r)
	return nil
}

// Put stores r as-is, overwriting any existing report with the same id.
func (s *ReportStore) Put(r models.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = clone(r)
}

func (s *ReportStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := clone(r)
	return &c, nil
}

func (s *ReportStore) List(_ context.Context, f models.ReportFilter) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Report{}
	for _, r := range s.reports {
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, r.Status) {
			continue
		}
		if f.AssignedTo != nil {
			mine := r.AssignedTo != nil && *r.AssignedTo == *f.AssignedTo
			if !mine && !(f.IncludeUnassigned && r.AssignedTo == nil) {
				continue
			}
		}
		out = append(out, clone(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= int64(len(out)) {
			return []models.Report{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *ReportStore) ApplyStatus(_ context.Context, id primitive.ObjectID, u models.StatusUpdate) (*models.Report, error) {
	if s.BeforeWrite != nil {
		s.BeforeWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if r.Status != u.From || r.Version != u.ExpectedVersion {
		return nil, models.ErrConflict
	}

	r.Status = u.To
	setIf(&r.AdminNotes, u.AdminNotes)
	setIf(&r.PlanNotes, u.PlanNotes)
	setIf(&r.RejectionReason, u.RejectionReason)
	setIf(&r.ResolutionNotes, u.ResolutionNotes)
	setIf(&r.ResolutionImageURL, u.ResolutionImageURL)
	if u.AssignTo != nil {
		w := *u.AssignTo
		r.AssignedTo = &w
	}
	r.Version++
	r.History = append(r.History, u.Change())
	r.UpdatedAt = u.At

	s.reports[id] = clone(r)
	return &r, nil
}

func (s *ReportStore) Assign(_ context.Context, id primitive.ObjectID, expectedVersion int64, worker primitive.ObjectID, change models.StatusChange) (*models.Report, error) {
	if s.BeforeWrite != nil {
		s.BeforeWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if r.Status != models.StatusAccepted || r.Version != expectedVersion {
		return nil, models.ErrConflict
	}
	r.AssignedTo = &worker
	r.Version++
	r.History = append(r.History, change)
	r.UpdatedAt = change.At

	s.reports[id] = clone(r)
	return &r, nil
}

func (s *ReportStore) CountByStatus(context.Context) (models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := models.NewStats()
	for _, r := range s.reports {
		stats.ByStatus[r.Status]++
		stats.Total++
	}
	return stats, nil
}

func (s *ReportStore) Markers(_ context.Context, q models.MarkerQuery, limit int) ([]models.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Marker{}
	for _, r := range s.reports {
		m, ok := models.MarkerFromReport(r)
		if !ok || !q.Matches(m.Latitude, m.Longitude, m.Status) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ReportStore) PendingBefore(_ context.Context, cutoff time.Time) (int64, *models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	var oldest *models.Report
	for _, r := range s.reports {
		if r.Status != models.StatusPending || !r.CreatedAt.Before(cutoff) {
			continue
		}
		count++
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			c := clone(r)
			oldest = &c
		}
	}
	return count, oldest, nil
}

// UserStore keeps accounts in memory.
type UserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func NewUserStore(users ...models.User) *UserStore {
	s := &UserStore{users: make(map[primitive.ObjectID]models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *UserStore) Insert(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return models.ErrDuplicateEmail
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *UserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *UserStore) UpdateRole(_ context.Context, id primitive.ObjectID, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.Role = role
	s.users[id] = u
	return nil
}

func (s *UserStore) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.Password = hash
	s.users[id] = u
	return nil
}

// Upload records one stored image.
type Upload struct {
	Folder      string
	ContentType string
	Data        []byte
}

// ImageStore records uploads and hands out fake URLs.
type ImageStore struct {
	mu      sync.Mutex
	Uploads []Upload
	Deleted []string
	Err     error
}

func (s *ImageStore) Upload(_ context.Context, r io.Reader, contentType, folder string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	s.Uploads = append(s.Uploads, Upload{Folder: folder, ContentType: contentType, Data: buf.Bytes()})
	return fmt.Sprintf("https://images.test/%s/%d", folder, len(s.Uploads)), nil
}

func (s *ImageStore) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, url)
	return nil
}

// Cache is a map-backed marker cache with the same generation rules as the
// Redis cache. It counts invalidations.
type Cache struct {
	mu            sync.Mutex
	gen           int64
	entries       map[string][]models.Marker
	Invalidations int
	Err           error
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string][]models.Marker)}
}

func (c *Cache) Get(_ context.Context, key string) ([]models.Marker, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, 0, false, c.Err
	}
	m, ok := c.entries[cacheKey(c.gen, key)]
	return m, c.gen, ok, nil
}

func (c *Cache) Set(_ context.Context, gen int64, key string, markers []models.Marker) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.entries[cacheKey(gen, key)] = markers
	return nil
}

func (c *Cache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.Invalidations++
	return c.Err
}

func cacheKey(gen int64, key string) string {
	return fmt.Sprintf("%d:%s", gen, key)
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	Events []models.StatusChangedEvent
}

func (p *Publisher) PublishStatusChange(_ context.Context, ev models.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, ev)
	return nil
}

// Notification is one recorded reporter notification.
type Notification struct {
	To     string
	Status models.Status
}

// Notifier records notifications.
type Notifier struct {
	mu   sync.Mutex
	Sent []Notification
}

func (n *Notifier) NotifyStatusChange(_ context.Context, to models.User, r models.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Notification{To: to.Email, Status: r.Status})
	return nil
}

func clone(r models.Report) models.Report {
	if r.Latitude != nil {
		v := *r.Latitude
		r.Latitude = &v
	}
	if r.Longitude != nil {
		v := *r.Longitude
		r.Longitude = &v
	}
	if r.AssignedTo != nil {
		v := *r.AssignedTo
		r.AssignedTo = &v
	}
	if r.Geo != nil {
		g := *r.Geo
		g.Coordinates = append([]float64(nil), r.Geo.Coordinates...)
		r.Geo = &g
	}
	r.History = append([]models.StatusChange{}, r.History...)
	return r
}

func hasStatus(list []models.Status, st models.Status) bool {
	for _, s := range list {
		if s == st {
			return true
		}
	}
	return false
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
