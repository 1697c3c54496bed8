package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nsprdjake/bailey-dashboard/internal/domain"
	"github.com/nsprdjake/bailey-dashboard/internal/persistence/memory"
)

var now = time.Date(2026, time.October, 17, 18, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return domain.Day(now).AddDate(0, 0, offset)
}

type fakeObjects struct {
	deleted []string
	failDel error
}

func (f *fakeObjects) PresignUpload(_ context.Context, key, _ string) (string, time.Time, error) {
	return "https://bucket.test/" + key + "?sig=1", now.Add(15 * time.Minute), nil
}

func (f *fakeObjects) PublicURL(key string) string { return "https://cdn.test/" + key }

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.failDel
}

func newService(t *testing.T, opts ...domain.Option) (*domain.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	opts = append([]domain.Option{domain.WithClock(func() time.Time { return now })}, opts...)
	return domain.NewService(store, opts...), store
}

func TestWalkStreak(t *testing.T) {
	walks := func(offsets ...int) []domain.WalkEvent {
		out := make([]domain.WalkEvent, 0, len(offsets))
		for _, o := range offsets {
			out = append(out, domain.WalkEvent{Date: day(o)})
		}
		return out
	}

	require.Equal(t, 0, domain.WalkStreak(nil))
	require.Equal(t, 1, domain.WalkStreak(walks(0)))
	require.Equal(t, 3, domain.WalkStreak(walks(0, -1, -2, -4)))
	require.Equal(t, 2, domain.WalkStreak(walks(-1, -1, -2)), "two walks on one day count once")
	require.Equal(t, 2, domain.WalkStreak(walks(-5, -6)), "streak ends at the most recent walk")
}

func TestWeekStatsFor(t *testing.T) {
	stats := domain.WeekStatsFor([]domain.ActivitySnapshot{
		{TotalSteps: 10000, TotalDistanceMeters: 5000, WalkCount: 2, GoalAchieved: true},
		{TotalSteps: 5001, TotalDistanceMeters: 2500, WalkCount: 1},
	})
	require.Equal(t, domain.WeekStats{AvgSteps: 7501, AvgDistance: 3750, TotalWalks: 3, GoalDays: 1}, stats)
	require.Equal(t, domain.WeekStats{}, domain.WeekStatsFor(nil))
}

func TestActivityOverviewWindow(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	for offset := -9; offset <= 0; offset++ {
		require.NoError(t, store.UpsertSnapshot(ctx, domain.ActivitySnapshot{
			Date:           day(offset),
			TotalSteps:     1000,
			DailyGoalSteps: 1000,
			GoalAchieved:   true,
			SyncedAt:       now,
		}))
	}
	vendorID := "walk-1"
	require.NoError(t, store.UpsertVendorWalk(ctx, domain.WalkEvent{
		ID: "7d0f5f0e-7c1f-4a63-8f0b-0d7a1b2f1f11", VendorWalkID: &vendorID, Date: day(0), Source: domain.WalkSourceVendor,
	}))
	_, err := svc.LogWalk(ctx, domain.LogWalkInput{Date: now, DurationMinutes: 20})
	require.NoError(t, err)

	overview, err := svc.ActivityOverview(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 3, overview.Days)
	require.Len(t, overview.Snapshots, 3)
	require.Equal(t, day(-2), overview.Snapshots[0].Date)
	require.Len(t, overview.Walks, 1, "only collar walks are listed")
	require.Equal(t, 3, overview.Stats.GoalDays)
	require.Nil(t, overview.LastSync)

	overview, err = svc.ActivityOverview(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, domain.MaxActivityDays, overview.Days)
	require.Len(t, overview.Snapshots, domain.MaxActivityDays)
}

func TestLogWalkTrimsAndTruncates(t *testing.T) {
	svc, _ := newService(t)

	walk, err := svc.LogWalk(context.Background(), domain.LogWalkInput{
		Date:            time.Date(2026, time.October, 16, 22, 15, 0, 0, time.UTC),
		DurationMinutes: 45,
		Location:        "  Riverside  ",
	})
	require.NoError(t, err)
	require.NotEmpty(t, walk.ID)
	require.Equal(t, day(-1), walk.Date)
	require.Equal(t, "Riverside", walk.Location)
	require.Equal(t, domain.WalkSourceManual, walk.Source)
	require.Nil(t, walk.VendorWalkID)
}

func TestAddMedicationEndedIsInactive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	past := day(-3)
	ended, err := svc.AddMedication(ctx, domain.Medication{Name: "Apoquel", StartDate: day(-30), EndDate: &past, Active: true})
	require.NoError(t, err)
	require.False(t, ended.Active)

	future := day(10)
	current, err := svc.AddMedication(ctx, domain.Medication{Name: "Heartgard", StartDate: day(-1), EndDate: &future, Active: true})
	require.NoError(t, err)
	require.True(t, current.Active)

	active, err := svc.ListMedications(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Heartgard", active[0].Name)
}

func TestPhotosWithObjectStore(t *testing.T) {
	ctx := context.Background()
	objects := &fakeObjects{}
	svc, _ := newService(t, domain.WithObjectStore(objects))

	ticket, err := svc.PrepareUpload(ctx, "Beach.JPG", "image/jpeg")
	require.NoError(t, err)
	require.Regexp(t, `^photos/2026/10/[0-9a-f-]{36}\.jpg$`, ticket.Key)
	require.Equal(t, "https://cdn.test/"+ticket.Key, ticket.PublicURL)

	photo, err := svc.AddPhoto(ctx, domain.AddPhotoInput{StorageKey: ticket.Key})
	require.NoError(t, err)
	require.Equal(t, ticket.PublicURL, photo.URL)
	require.Equal(t, day(0), photo.Date)

	external, err := svc.AddPhoto(ctx, domain.AddPhotoInput{URL: "https://img.test/a.png"})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePhoto(ctx, external.ID))
	require.Empty(t, objects.deleted)

	require.NoError(t, svc.DeletePhoto(ctx, photo.ID))
	require.Equal(t, []string{ticket.Key}, objects.deleted)

	require.ErrorIs(t, svc.DeletePhoto(ctx, photo.ID), domain.ErrNotFound)
}

func TestDeletePhotoReportsObjectFailure(t *testing.T) {
	ctx := context.Background()
	objects := &fakeObjects{failDel: errors.New("bucket gone")}
	svc, store := newService(t, domain.WithObjectStore(objects))

	photo, err := svc.AddPhoto(ctx, domain.AddPhotoInput{StorageKey: "photos/2026/10/x.jpg"})
	require.NoError(t, err)

	err = svc.DeletePhoto(ctx, photo.ID)
	require.ErrorContains(t, err, "photos/2026/10/x.jpg")

	_, err = store.GetPhoto(ctx, photo.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPhotosWithoutObjectStore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.PrepareUpload(ctx, "a.jpg", "image/jpeg")
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)

	_, err = svc.AddPhoto(ctx, domain.AddPhotoInput{StorageKey: "photos/a.jpg"})
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)

	_, err = svc.AddPhoto(ctx, domain.AddPhotoInput{})
	require.Error(t, err)
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	empty, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Zero(t, empty.WalksThisMonth)
	require.Nil(t, empty.DaysSinceVet)
	require.Nil(t, empty.Today)
	require.Empty(t, empty.FunFacts)

	for _, offset := range []int{0, -1, -3} {
		_, err := svc.LogWalk(ctx, domain.LogWalkInput{Date: day(offset), DurationMinutes: 30})
		require.NoError(t, err)
	}
	_, err = svc.LogWalk(ctx, domain.LogWalkInput{Date: day(-20), DurationMinutes: 30})
	require.NoError(t, err)

	_, err = svc.AddHealthRecord(ctx, domain.HealthRecord{Type: domain.HealthVetVisit, Date: day(-40), Title: "Checkup"})
	require.NoError(t, err)
	_, err = svc.AddHealthRecord(ctx, domain.HealthRecord{Type: domain.HealthVetVisit, Date: day(-12), Title: "Ear infection"})
	require.NoError(t, err)
	_, err = svc.AddHealthRecord(ctx, domain.HealthRecord{Type: domain.HealthVaccination, Date: day(-1), Title: "Rabies"})
	require.NoError(t, err)

	_, err = svc.AddMemory(ctx, domain.Memory{Type: domain.MemoryToy, Title: "Duck", Description: "Loves the squeaky duck"})
	require.NoError(t, err)
	require.NoError(t, store.UpsertSnapshot(ctx, domain.ActivitySnapshot{Date: day(0), TotalSteps: 4200, SyncedAt: now}))

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, dash.WalksThisMonth)
	require.Equal(t, 2, dash.WalkStreak)
	require.Equal(t, day(0), dash.LatestWalk.Date)
	require.Equal(t, "Ear infection", dash.LastVetVisit.Title)
	require.Equal(t, 12, *dash.DaysSinceVet)
	require.Equal(t, 4200, dash.Today.TotalSteps)
	require.Equal(t, []string{"Loves the squeaky duck"}, dash.FunFacts)
}
