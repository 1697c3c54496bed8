// Package memory provides an in-process store for local development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nsprdjake/bailey-dashboard/internal/domain"
)

// Store keeps every table in maps guarded by a single lock.
type Store struct {
	mu          sync.RWMutex
	snapshots   map[string]domain.ActivitySnapshot
	walks       map[string]domain.WalkEvent
	vendorWalks map[string]string
	sleep       map[string]domain.SleepInterval
	syncRuns    []domain.SyncRun
	health      []domain.HealthRecord
	vetRecords  []domain.VetRecord
	medications []domain.Medication
	weights     []domain.WeightLog
	photos      map[string]domain.Photo
	memories    []domain.Memory
}

var _ domain.Store = (*Store)(nil)

// New constructs an empty Store.
func New() *Store {
	return &Store{
		snapshots:   make(map[string]domain.ActivitySnapshot),
		walks:       make(map[string]domain.WalkEvent),
		vendorWalks: make(map[string]string),
		sleep:       make(map[string]domain.SleepInterval),
		photos:      make(map[string]domain.Photo),
	}
}

func dayKey(t time.Time) string { return domain.Day(t).Format(domain.DateLayout) }

// UpsertSnapshot implements domain.ActivityStore.
func (s *Store) UpsertSnapshot(ctx context.Context, snapshot domain.ActivitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot.Date = domain.Day(snapshot.Date)
	s.snapshots[dayKey(snapshot.Date)] = snapshot
	return nil
}

// UpsertStepTotals updates only the step columns of an existing day.
func (s *Store) UpsertStepTotals(ctx context.Context, totals domain.StepTotals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dayKey(totals.Date)
	snap, ok := s.snapshots[key]
	if !ok {
		snap = domain.ActivitySnapshot{Date: domain.Day(totals.Date)}
	}
	snap.TotalSteps = totals.TotalSteps
	snap.DailyGoalSteps = totals.DailyGoalSteps
	snap.GoalAchieved = totals.DailyGoalSteps > 0 && totals.TotalSteps >= totals.DailyGoalSteps
	snap.SyncedAt = totals.SyncedAt
	s.snapshots[key] = snap
	return nil
}

// UpsertVendorWalk implements domain.ActivityStore.
func (s *Store) UpsertVendorWalk(ctx context.Context, walk domain.WalkEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if walk.VendorWalkID == nil || *walk.VendorWalkID == "" {
		return errors.New("vendor walk id is required")
	}
	walk.Date = domain.Day(walk.Date)
	walk.Source = domain.WalkSourceVendor
	if id, ok := s.vendorWalks[*walk.VendorWalkID]; ok {
		existing := s.walks[id]
		walk.ID = existing.ID
		walk.CreatedAt = existing.CreatedAt
	} else {
		if strings.TrimSpace(walk.ID) == "" {
			walk.ID = uuid.NewString()
		}
		if walk.CreatedAt.IsZero() {
			walk.CreatedAt = time.Now().UTC()
		}
		s.vendorWalks[*walk.VendorWalkID] = walk.ID
	}
	s.walks[walk.ID] = walk
	return nil
}

// UpsertSleepInterval keys intervals by date and start time.
func (s *Store) UpsertSleepInterval(ctx context.Context, interval domain.SleepInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	interval.Date = domain.Day(interval.Date)
	key := dayKey(interval.Date) + "|" + interval.StartTime.UTC().Format(time.RFC3339Nano)
	if existing, ok := s.sleep[key]; ok {
		interval.ID = existing.ID
		interval.CreatedAt = existing.CreatedAt
	} else {
		if interval.ID == "" {
			interval.ID = uuid.NewString()
		}
		if interval.CreatedAt.IsZero() {
			interval.CreatedAt = time.Now().UTC()
		}
	}
	s.sleep[key] = interval
	return nil
}

// ListSnapshots returns days on or after since, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, since time.Time) ([]domain.ActivitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	since = domain.Day(since)
	out := make([]domain.ActivitySnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		if !snap.Date.Before(since) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ListSleepIntervals returns intervals on or after since ordered by start.
func (s *Store) ListSleepIntervals(ctx context.Context, since time.Time) ([]domain.SleepInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	since = domain.Day(since)
	out := make([]domain.SleepInterval, 0, len(s.sleep))
	for _, interval := range s.sleep {
		if !interval.Date.Before(since) {
			out = append(out, interval)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// CreateSyncRun implements domain.ActivityStore.
func (s *Store) CreateSyncRun(ctx context.Context, run domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncRuns = append(s.syncRuns, run)
	return nil
}

// CompleteSyncRun implements domain.ActivityStore.
func (s *Store) CompleteSyncRun(ctx context.Context, run domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.syncRuns {
		if s.syncRuns[i].ID == run.ID {
			s.syncRuns[i] = run
			return nil
		}
	}
	return domain.ErrNotFound
}

// LastSyncRun returns the most recently started run, or nil.
func (s *Store) LastSyncRun(ctx context.Context) (*domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *domain.SyncRun
	for i := range s.syncRuns {
		if last == nil || !s.syncRuns[i].StartedAt.Before(last.StartedAt) {
			run := s.syncRuns[i]
			last = &run
		}
	}
	return last, nil
}

// SyncRuns returns every recorded run in insertion order.
func (s *Store) SyncRuns() []domain.SyncRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SyncRun(nil), s.syncRuns...)
}

// CreateWalk implements domain.RecordStore.
func (s *Store) CreateWalk(ctx context.Context, walk domain.WalkEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	walk.Date = domain.Day(walk.Date)
	s.walks[walk.ID] = walk
	return nil
}

// ListWalks orders by (date, id) descending and pages with the cursor.
func (s *Store) ListWalks(ctx context.Context, filter domain.WalkFilter) ([]domain.WalkEvent, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WalkEvent, 0, len(s.walks))
	for _, walk := range s.walks {
		if filter.Since != nil && walk.Date.Before(domain.Day(*filter.Since)) {
			continue
		}
		if filter.Source != "" && walk.Source != filter.Source {
			continue
		}
		if c := filter.Cursor; c != nil {
			if walk.Date.After(c.Date) || (walk.Date.Equal(c.Date) && walk.ID >= c.ID) {
				continue
			}
		}
		out = append(out, walk)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Limit <= 0 || len(out) < filter.Limit {
		return out, nil, nil
	}
	out = out[:filter.Limit]
	last := out[len(out)-1]
	return out, &domain.Cursor{Date: last.Date, ID: last.ID}, nil
}

// DeleteWalk implements domain.RecordStore.
func (s *Store) DeleteWalk(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	walk, ok := s.walks[id]
	if !ok {
		return domain.ErrNotFound
	}
	if walk.VendorWalkID != nil {
		delete(s.vendorWalks, *walk.VendorWalkID)
	}
	delete(s.walks, id)
	return nil
}

// CreateHealthRecord implements domain.RecordStore.
func (s *Store) CreateHealthRecord(ctx context.Context, record domain.HealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = append(s.health, record)
	return nil
}

// ListHealthRecords implements domain.RecordStore.
func (s *Store) ListHealthRecords(ctx context.Context, recordType domain.HealthRecordType, limit int) ([]domain.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.HealthRecord, 0, len(s.health))
	for _, r := range s.health {
		if recordType == "" || r.Type == recordType {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i].Date, out[i].CreatedAt, out[j].Date, out[j].CreatedAt) })
	return truncate(out, limit), nil
}

// CreateVetRecord implements domain.RecordStore.
func (s *Store) CreateVetRecord(ctx context.Context, record domain.VetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vetRecords = append(s.vetRecords, record)
	return nil
}

// ListVetRecords implements domain.RecordStore.
func (s *Store) ListVetRecords(ctx context.Context, limit int) ([]domain.VetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.VetRecord(nil), s.vetRecords...)
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i].Date, out[i].CreatedAt, out[j].Date, out[j].CreatedAt) })
	return truncate(out, limit), nil
}

// CreateMedication implements domain.RecordStore.
func (s *Store) CreateMedication(ctx context.Context, med domain.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.medications = append(s.medications, med)
	return nil
}

// ListMedications implements domain.RecordStore.
func (s *Store) ListMedications(ctx context.Context, activeOnly bool) ([]domain.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Medication, 0, len(s.medications))
	for _, m := range s.medications {
		if !activeOnly || m.Active {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i].StartDate, out[i].CreatedAt, out[j].StartDate, out[j].CreatedAt) })
	return out, nil
}

// CreateWeightLog implements domain.RecordStore.
func (s *Store) CreateWeightLog(ctx context.Context, entry domain.WeightLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights = append(s.weights, entry)
	return nil
}

// ListWeightLogs implements domain.RecordStore.
func (s *Store) ListWeightLogs(ctx context.Context, limit int) ([]domain.WeightLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.WeightLog(nil), s.weights...)
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i].Date, out[i].CreatedAt, out[j].Date, out[j].CreatedAt) })
	return truncate(out, limit), nil
}

// CreatePhoto implements domain.RecordStore.
func (s *Store) CreatePhoto(ctx context.Context, photo domain.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[photo.ID] = photo
	return nil
}

// GetPhoto implements domain.RecordStore.
func (s *Store) GetPhoto(ctx context.Context, id string) (*domain.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	photo, ok := s.photos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &photo, nil
}

// ListPhotos implements domain.RecordStore.
func (s *Store) ListPhotos(ctx context.Context, favoritesOnly bool, limit int) ([]domain.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Photo, 0, len(s.photos))
	for _, p := range s.photos {
		if !favoritesOnly || p.IsFavorite {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].Date, out[i].CreatedAt, out[j].Date, out[j].CreatedAt) })
	return truncate(out, limit), nil
}

// UpdatePhoto implements domain.RecordStore.
func (s *Store) UpdatePhoto(ctx context.Context, id string, patch domain.PhotoPatch) (*domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if patch.Caption != nil {
		caption := *patch.Caption
		photo.Caption = &caption
	}
	if patch.IsFavorite != nil {
		photo.IsFavorite = *patch.IsFavorite
	}
	s.photos[id] = photo
	return &photo, nil
}

// DeletePhoto implements domain.RecordStore.
func (s *Store) DeletePhoto(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photos[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.photos, id)
	return nil
}

// CreateMemory implements domain.RecordStore.
func (s *Store) CreateMemory(ctx context.Context, memory domain.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories = append(s.memories, memory)
	return nil
}

// ListMemories returns memories newest first.
func (s *Store) ListMemories(ctx context.Context, limit int) ([]domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.Memory(nil), s.memories...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func newer(dateA, createdA, dateB, createdB time.Time) bool {
	if !dateA.Equal(dateB) {
		return dateA.After(dateB)
	}
	return createdA.After(createdB)
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
