// Package domain defines the business logic for the Bailey dashboard.
package domain

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record cannot be located.
	ErrNotFound = errors.New("record not found")
	// ErrStorageUnavailable is returned when photo uploads are requested without object storage.
	ErrStorageUnavailable = errors.New("photo storage is not configured")
)

// MaxActivityDays bounds the activity page window.
const MaxActivityDays = 7

// ObjectStore is the photo bucket.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, time.Time, error)
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

// Service orchestrates dashboard workflows.
type Service struct {
	store   Store
	objects ObjectStore
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithObjectStore enables photo uploads.
func WithObjectStore(objects ObjectStore) Option {
	return func(s *Service) { s.objects = objects }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ActivityOverview assembles the activity page for the last days calendar days.
func (s *Service) ActivityOverview(ctx context.Context, days int) (*ActivityOverview, error) {
	if days < 1 || days > MaxActivityDays {
		days = MaxActivityDays
	}
	since := Day(s.now()).AddDate(0, 0, -(days - 1))

	snapshots, err := s.store.ListSnapshots(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sleep, err := s.store.ListSleepIntervals(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list sleep: %w", err)
	}
	walks, _, err := s.store.ListWalks(ctx, WalkFilter{Since: &since, Source: WalkSourceVendor})
	if err != nil {
		return nil, fmt.Errorf("list walks: %w", err)
	}
	lastRun, err := s.store.LastSyncRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("last sync run: %w", err)
	}

	return &ActivityOverview{
		Days:      days,
		Snapshots: snapshots,
		Sleep:     sleep,
		Walks:     walks,
		Stats:     WeekStatsFor(snapshots),
		LastSync:  lastRun,
	}, nil
}

// LogWalkInput captures a hand-logged walk.
type LogWalkInput struct {
	Date            time.Time
	DurationMinutes int
	Location        string
	Notes           string
	Steps           int
	DistanceMeters  float64
}

// LogWalk records a manual walk.
func (s *Service) LogWalk(ctx context.Context, input LogWalkInput) (*WalkEvent, error) {
	walk := WalkEvent{
		ID:              uuid.NewString(),
		Date:            Day(input.Date),
		DurationMinutes: input.DurationMinutes,
		Steps:           input.Steps,
		DistanceMeters:  input.DistanceMeters,
		Location:        strings.TrimSpace(input.Location),
		Notes:           strings.TrimSpace(input.Notes),
		Source:          WalkSourceManual,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.CreateWalk(ctx, walk); err != nil {
		return nil, err
	}
	return &walk, nil
}

// ListWalks pages through walks newest first.
func (s *Service) ListWalks(ctx context.Context, cursor *Cursor, limit int) ([]WalkEvent, *Cursor, error) {
	return s.store.ListWalks(ctx, WalkFilter{Cursor: cursor, Limit: limit})
}

// DeleteWalk removes a walk.
func (s *Service) DeleteWalk(ctx context.Context, id string) error {
	return s.store.DeleteWalk(ctx, id)
}

// AddHealthRecord stores a health log entry.
func (s *Service) AddHealthRecord(ctx context.Context, record HealthRecord) (*HealthRecord, error) {
	record.ID = uuid.NewString()
	record.Date = Day(record.Date)
	record.CreatedAt = s.now().UTC()
	if err := s.store.CreateHealthRecord(ctx, record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListHealthRecords returns entries newest first, optionally of one type.
func (s *Service) ListHealthRecords(ctx context.Context, recordType HealthRecordType, limit int) ([]HealthRecord, error) {
	return s.store.ListHealthRecords(ctx, recordType, limit)
}

// AddVetRecord stores a vet record.
func (s *Service) AddVetRecord(ctx context.Context, record VetRecord) (*VetRecord, error) {
	record.ID = uuid.NewString()
	record.Date = Day(record.Date)
	record.CreatedAt = s.now().UTC()
	if err := s.store.CreateVetRecord(ctx, record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListVetRecords returns vet records newest first.
func (s *Service) ListVetRecords(ctx context.Context, limit int) ([]VetRecord, error) {
	return s.store.ListVetRecords(ctx, limit)
}

// AddMedication stores a medication. A medication with an end date in the
// past is never active.
func (s *Service) AddMedication(ctx context.Context, med Medication) (*Medication, error) {
	med.ID = uuid.NewString()
	med.StartDate = Day(med.StartDate)
	if med.EndDate != nil {
		end := Day(*med.EndDate)
		med.EndDate = &end
		if end.Before(Day(s.now())) {
			med.Active = false
		}
	}
	med.CreatedAt = s.now().UTC()
	if err := s.store.CreateMedication(ctx, med); err != nil {
		return nil, err
	}
	return &med, nil
}

// ListMedications returns medications, optionally only active ones.
func (s *Service) ListMedications(ctx context.Context, activeOnly bool) ([]Medication, error) {
	return s.store.ListMedications(ctx, activeOnly)
}

// LogWeight stores a weigh-in.
func (s *Service) LogWeight(ctx context.Context, entry WeightLog) (*WeightLog, error) {
	entry.ID = uuid.NewString()
	entry.Date = Day(entry.Date)
	entry.CreatedAt = s.now().UTC()
	if err := s.store.CreateWeightLog(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListWeights returns weigh-ins newest first.
func (s *Service) ListWeights(ctx context.Context, limit int) ([]WeightLog, error) {
	return s.store.ListWeightLogs(ctx, limit)
}

// UploadTicket is a presigned upload the client PUTs the image to.
type UploadTicket struct {
	Key       string
	UploadURL string
	PublicURL string
	ExpiresAt time.Time
}

// PrepareUpload signs an upload URL under a fresh, date-prefixed key.
func (s *Service) PrepareUpload(ctx context.Context, filename, contentType string) (*UploadTicket, error) {
	if s.objects == nil {
		return nil, ErrStorageUnavailable
	}
	now := s.now().UTC()
	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("photos/%s/%s%s", now.Format("2006/01"), uuid.NewString(), ext)

	url, expires, err := s.objects.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &UploadTicket{Key: key, UploadURL: url, PublicURL: s.objects.PublicURL(key), ExpiresAt: expires}, nil
}

// AddPhotoInput describes a gallery entry. Either URL or StorageKey must be set.
type AddPhotoInput struct {
	URL        string
	StorageKey string
	Caption    *string
	Date       time.Time
	IsFavorite bool
}

// AddPhoto stores a gallery entry, deriving the URL from the storage key when needed.
func (s *Service) AddPhoto(ctx context.Context, input AddPhotoInput) (*Photo, error) {
	url := strings.TrimSpace(input.URL)
	if url == "" && input.StorageKey != "" {
		if s.objects == nil {
			return nil, ErrStorageUnavailable
		}
		url = s.objects.PublicURL(input.StorageKey)
	}
	if url == "" {
		return nil, errors.New("url or storage_key is required")
	}
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	photo := Photo{
		ID:         uuid.NewString(),
		URL:        url,
		StorageKey: input.StorageKey,
		Caption:    input.Caption,
		Date:       Day(date),
		IsFavorite: input.IsFavorite,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreatePhoto(ctx, photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

// ListPhotos returns photos newest first.
func (s *Service) ListPhotos(ctx context.Context, favoritesOnly bool, limit int) ([]Photo, error) {
	return s.store.ListPhotos(ctx, favoritesOnly, limit)
}

// UpdatePhoto edits the caption or favourite flag.
func (s *Service) UpdatePhoto(ctx context.Context, id string, patch PhotoPatch) (*Photo, error) {
	return s.store.UpdatePhoto(ctx, id, patch)
}

// DeletePhoto removes the record and, for uploaded photos, the object.
func (s *Service) DeletePhoto(ctx context.Context, id string) error {
	photo, err := s.store.GetPhoto(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePhoto(ctx, id); err != nil {
		return err
	}
	if photo.StorageKey != "" && s.objects != nil {
		if err := s.objects.Delete(ctx, photo.StorageKey); err != nil {
			return fmt.Errorf("delete object %s: %w", photo.StorageKey, err)
		}
	}
	return nil
}

// AddMemory stores a fun fact.
func (s *Service) AddMemory(ctx context.Context, memory Memory) (*Memory, error) {
	memory.ID = uuid.NewString()
	if memory.Date != nil {
		d := Day(*memory.Date)
		memory.Date = &d
	}
	memory.CreatedAt = s.now().UTC()
	if err := s.store.CreateMemory(ctx, memory); err != nil {
		return nil, err
	}
	return &memory, nil
}

// ListMemories returns memories newest first.
func (s *Service) ListMemories(ctx context.Context, limit int) ([]Memory, error) {
	return s.store.ListMemories(ctx, limit)
}

// Dashboard is the home page summary.
type Dashboard struct {
	WalksThisMonth int
	WalkStreak     int
	DaysSinceVet   *int
	LatestWalk     *WalkEvent
	LastVetVisit   *HealthRecord
	Today          *ActivitySnapshot
	RecentPhotos   []Photo
	FunFacts       []string
}

// Dashboard assembles the home page.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now().UTC()
	today := Day(now)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	walks, _, err := s.store.ListWalks(ctx, WalkFilter{Since: &monthStart})
	if err != nil {
		return nil, fmt.Errorf("list walks: %w", err)
	}
	visits, err := s.store.ListHealthRecords(ctx, HealthVetVisit, 1)
	if err != nil {
		return nil, fmt.Errorf("list vet visits: %w", err)
	}
	photos, err := s.store.ListPhotos(ctx, false, 6)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	memories, err := s.store.ListMemories(ctx, 5)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	snapshots, err := s.store.ListSnapshots(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	dash := &Dashboard{
		WalksThisMonth: len(walks),
		WalkStreak:     WalkStreak(walks),
		RecentPhotos:   photos,
		FunFacts:       make([]string, 0, len(memories)),
	}
	if len(walks) > 0 {
		latest := walks[0]
		dash.LatestWalk = &latest
	}
	if len(visits) > 0 {
		visit := visits[0]
		dash.LastVetVisit = &visit
		days := int(today.Sub(Day(visit.Date)).Hours() / 24)
		dash.DaysSinceVet = &days
	}
	for _, m := range memories {
		dash.FunFacts = append(dash.FunFacts, m.Description)
	}
	for i := range snapshots {
		if snapshots[i].Date.Equal(today) {
			dash.Today = &snapshots[i]
			break
		}
	}
	return dash, nil
}

// WalkStreak counts consecutive walk days ending at the most recent walk.
func WalkStreak(walks []WalkEvent) int {
	if len(walks) == 0 {
		return 0
	}
	days := make([]time.Time, 0, len(walks))
	for _, w := range walks {
		days = append(days, Day(w.Date))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	streak := 1
	current := days[0]
	for _, d := range days[1:] {
		gap := int(current.Sub(d).Hours() / 24)
		if gap == 1 {
			streak++
			current = d
		} else if gap > 1 {
			break
		}
	}
	return streak
}
