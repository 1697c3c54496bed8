package domain

import (
	"context"
	"time"
)

// DateLayout is the calendar-day format used at every boundary.
const DateLayout = "2006-01-02"

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LocalDay is the calendar day t shows in its own zone, as UTC midnight. Vendor
// timestamps carry the collar's offset, so their day is the one the owner saw.
func LocalDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD value.
func ParseDay(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// ActivitySnapshot is one calendar day of collar activity. Re-syncing a day
// overwrites it.
type ActivitySnapshot struct {
	Date                time.Time
	TotalSteps          int
	TotalDistanceMeters float64
	CalorieEstimate     int
	ActiveMinutes       int
	RestMinutes         int
	NapMinutes          int
	WalkCount           int
	DailyGoalSteps      int
	GoalAchieved        bool
	SyncedAt            time.Time
}

// StepTotals is the subset of a snapshot the weekly summary can backfill.
type StepTotals struct {
	Date           time.Time
	TotalSteps     int
	DailyGoalSteps int
	SyncedAt       time.Time
}

// WalkSource distinguishes hand-logged walks from collar walks.
type WalkSource string

const (
	WalkSourceManual WalkSource = "manual"
	WalkSourceVendor WalkSource = "fi"
)

// WalkEvent is a single walk. Vendor walks carry a VendorWalkID used as their
// upsert key; manual walks are insert-only.
type WalkEvent struct {
	ID              string
	VendorWalkID    *string
	Date            time.Time
	StartTime       *time.Time
	EndTime         *time.Time
	DurationMinutes int
	Steps           int
	DistanceMeters  float64
	Location        string
	Notes           string
	Source          WalkSource
	CreatedAt       time.Time
}

// SleepType classifies a sleep interval.
type SleepType string

const (
	SleepTypeNap  SleepType = "nap"
	SleepTypeRest SleepType = "rest"
	SleepTypeDeep SleepType = "deep"
)

// SleepInterval is one nap or rest period. Several may exist per date; vendor
// rows are keyed by (date, start time).
type SleepInterval struct {
	ID              string
	Date            time.Time
	Type            SleepType
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	QualityScore    *int
	CreatedAt       time.Time
}

// SyncStatus is the lifecycle of a sync run.
type SyncStatus string

const (
	SyncStatusRunning SyncStatus = "running"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncRun is the audit record of one non-dry-run sync.
type SyncRun struct {
	ID            string
	SyncType      string
	StartedAt     time.Time
	CompletedAt   *time.Time
	Status        SyncStatus
	RecordsSynced int
	ErrorMessage  *string
}

// WeekStats summarises the snapshots shown on the activity page.
type WeekStats struct {
	AvgSteps    int
	AvgDistance int
	TotalWalks  int
	GoalDays    int
}

// ActivityOverview is everything the activity page renders.
type ActivityOverview struct {
	Days      int
	Snapshots []ActivitySnapshot
	Sleep     []SleepInterval
	Walks     []WalkEvent
	Stats     WeekStats
	LastSync  *SyncRun
}

// ActivityStore persists collar data. All writes are upserts on natural keys
// with last-write-wins semantics.
type ActivityStore interface {
	UpsertSnapshot(ctx context.Context, snapshot ActivitySnapshot) error
	UpsertStepTotals(ctx context.Context, totals StepTotals) error
	UpsertVendorWalk(ctx context.Context, walk WalkEvent) error
	UpsertSleepInterval(ctx context.Context, interval SleepInterval) error
	ListSnapshots(ctx context.Context, since time.Time) ([]ActivitySnapshot, error)
	ListSleepIntervals(ctx context.Context, since time.Time) ([]SleepInterval, error)

	CreateSyncRun(ctx context.Context, run SyncRun) error
	CompleteSyncRun(ctx context.Context, run SyncRun) error
	LastSyncRun(ctx context.Context) (*SyncRun, error)
}

// WeekStatsFor computes the averages the activity page shows.
func WeekStatsFor(snapshots []ActivitySnapshot) WeekStats {
	if len(snapshots) == 0 {
		return WeekStats{}
	}
	var steps, walks, goalDays int
	var distance float64
	for _, s := range snapshots {
		steps += s.TotalSteps
		distance += s.TotalDistanceMeters
		walks += s.WalkCount
		if s.GoalAchieved {
			goalDays++
		}
	}
	n := len(snapshots)
	return WeekStats{
		AvgSteps:    int(float64(steps)/float64(n) + 0.5),
		AvgDistance: int(distance/float64(n) + 0.5),
		TotalWalks:  walks,
		GoalDays:    goalDays,
	}
}
