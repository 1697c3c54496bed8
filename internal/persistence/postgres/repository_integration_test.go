//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nsprdjake/bailey-dashboard/internal/domain"
)

func newTestRepository(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("bailey"),
		postgrescontainer.WithUsername("bailey"),
		postgrescontainer.WithPassword("bailey"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return NewRepository(pool), pool
}

func TestUpsertSnapshotIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, pool := newTestRepository(t)

	day := time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)
	snapshot := domain.ActivitySnapshot{
		Date:                day,
		TotalSteps:          13500,
		TotalDistanceMeters: 8123.5,
		CalorieEstimate:     540,
		ActiveMinutes:       90,
		DailyGoalSteps:      13500,
		GoalAchieved:        true,
		SyncedAt:            time.Now().UTC(),
	}

	require.NoError(t, repo.UpsertSnapshot(ctx, snapshot))
	snapshot.TotalSteps = 14000
	require.NoError(t, repo.UpsertSnapshot(ctx, snapshot))

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM bailey_fi_activity WHERE date=$1", day).Scan(&count))
	require.Equal(t, 1, count)

	stored, err := repo.ListSnapshots(ctx, day)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, 14000, stored[0].TotalSteps)
	require.Equal(t, 90, stored[0].ActiveMinutes)

	require.NoError(t, repo.UpsertStepTotals(ctx, domain.StepTotals{Date: day, TotalSteps: 9000, DailyGoalSteps: 13500, SyncedAt: time.Now().UTC()}))
	stored, err = repo.ListSnapshots(ctx, day)
	require.NoError(t, err)
	require.Equal(t, 9000, stored[0].TotalSteps)
	require.False(t, stored[0].GoalAchieved)
	require.Equal(t, 90, stored[0].ActiveMinutes, "step backfill must not clear other columns")
}

func TestVendorWalkAndSleepUpserts(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	day := time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)
	vendorID := "ongoing:" + start.Format(time.RFC3339)

	walk := domain.WalkEvent{VendorWalkID: &vendorID, Date: day, StartTime: &start, DurationMinutes: 20, Steps: 1500, Location: "Elm St"}
	require.NoError(t, repo.UpsertVendorWalk(ctx, walk))
	walk.DurationMinutes = 35
	require.NoError(t, repo.UpsertVendorWalk(ctx, walk))

	walks, next, err := repo.ListWalks(ctx, domain.WalkFilter{Source: domain.WalkSourceVendor, Limit: 10})
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, walks, 1)
	require.Equal(t, 35, walks[0].DurationMinutes)
	require.Equal(t, domain.WalkSourceVendor, walks[0].Source)

	interval := domain.SleepInterval{Date: day, Type: domain.SleepTypeDeep, StartTime: day, EndTime: day.Add(8 * time.Hour), DurationMinutes: 480}
	require.NoError(t, repo.UpsertSleepInterval(ctx, interval))
	interval.DurationMinutes = 490
	require.NoError(t, repo.UpsertSleepInterval(ctx, interval))

	sleep, err := repo.ListSleepIntervals(ctx, day)
	require.NoError(t, err)
	require.Len(t, sleep, 1)
	require.Equal(t, 490, sleep[0].DurationMinutes)
}

func TestSyncRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	last, err := repo.LastSyncRun(ctx)
	require.NoError(t, err)
	require.Nil(t, last)

	run := domain.SyncRun{ID: uuid.NewString(), SyncType: "manual", StartedAt: time.Now().UTC(), Status: domain.SyncStatusRunning}
	require.NoError(t, repo.CreateSyncRun(ctx, run))

	done := time.Now().UTC()
	run.CompletedAt = &done
	run.Status = domain.SyncStatusSuccess
	run.RecordsSynced = 4
	require.NoError(t, repo.CompleteSyncRun(ctx, run))

	last, err = repo.LastSyncRun(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.SyncStatusSuccess, last.Status)
	require.Equal(t, 4, last.RecordsSynced)
}

func TestPhotoPatchAndDelete(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	photo := domain.Photo{ID: uuid.NewString(), URL: "https://cdn.example/p.jpg", Date: time.Now().UTC(), CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreatePhoto(ctx, photo))

	fav := true
	updated, err := repo.UpdatePhoto(ctx, photo.ID, domain.PhotoPatch{IsFavorite: &fav})
	require.NoError(t, err)
	require.True(t, updated.IsFavorite)
	require.Nil(t, updated.Caption)

	require.NoError(t, repo.DeletePhoto(ctx, photo.ID))
	require.ErrorIs(t, repo.DeletePhoto(ctx, photo.ID), domain.ErrNotFound)
	_, err = repo.GetPhoto(ctx, photo.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
