// Package sync pulls the day's collar data from the vendor and reconciles it
// into the dashboard store.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nsprdjake/bailey-dashboard/internal/domain"
	"github.com/nsprdjake/bailey-dashboard/internal/events"
	"github.com/nsprdjake/bailey-dashboard/internal/logging"
	"github.com/nsprdjake/bailey-dashboard/internal/observability"
	"github.com/nsprdjake/bailey-dashboard/internal/tryfi"
)

// MaxDays bounds the backfill window; the weekly summary only covers seven days.
const MaxDays = 7

// SessionLogin acquires a vendor session.
type SessionLogin interface {
	Login(ctx context.Context, email, password string) (tryfi.Credential, error)
}

// VendorQueries are the GraphQL operations a sync needs.
type VendorQueries interface {
	Pets(ctx context.Context, cred tryfi.Credential) ([]tryfi.Pet, error)
	PetProfile(ctx context.Context, cred tryfi.Credential, petID string) (tryfi.Pet, error)
	ActivitySummaries(ctx context.Context, cred tryfi.Credential, petID string) (daily, weekly *tryfi.ActivitySummary, err error)
	OngoingActivity(ctx context.Context, cred tryfi.Credential, petID string) (tryfi.OngoingActivity, error)
	RestSummaries(ctx context.Context, cred tryfi.Credential, petID string, limit int) ([]tryfi.RestSummary, error)
	Probe(ctx context.Context) error
}

// Store is the persistence a sync writes to.
type Store interface {
	domain.ActivityStore
	ListWalks(ctx context.Context, filter domain.WalkFilter) ([]domain.WalkEvent, *domain.Cursor, error)
}

// Config carries the vendor account and sync defaults.
type Config struct {
	Email        string
	Password     string
	PetID        string
	PetName      string
	DefaultDays  int
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

// ConfigurationError reports missing vendor credentials.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "fi integration is not configured: missing " + strings.Join(e.Missing, ", ")
}

// PetNotFoundError reports that the configured pet is not on the account.
type PetNotFoundError struct {
	Wanted    string
	Available []string
}

func (e *PetNotFoundError) Error() string {
	available := "none"
	if len(e.Available) > 0 {
		available = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("pet %q not found on fi account (available: %s)", e.Wanted, available)
}

// Request is one sync invocation.
type Request struct {
	Days   int
	DryRun bool
}

// Stats counts the rows a sync wrote.
type Stats struct {
	Activities   int `json:"activities"`
	Walks        int `json:"walks"`
	SleepRecords int `json:"sleepRecords"`
	TotalRecords int `json:"totalRecords"`
}

// Result is what a successful sync reports back.
type Result struct {
	RunID    string
	Days     int
	DryRun   bool
	Snapshot tryfi.Snapshot
	Stats    Stats
	Warnings []string
	Debug    []string
}

// Status describes the integration without running a sync.
type Status struct {
	Configured  bool
	Reachable   bool
	DefaultDays int
	LastRun     *domain.SyncRun
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher emits an event after each persisted sync.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs vendor syncs. It holds no session state between runs.
type Service struct {
	cfg       Config
	login     SessionLogin
	vendor    VendorQueries
	store     Store
	publisher events.Publisher
	now       func() time.Time
}

// NewService wires a Service.
func NewService(cfg Config, login SessionLogin, vendor VendorQueries, store Store, opts ...Option) *Service {
	if cfg.DefaultDays < 1 || cfg.DefaultDays > MaxDays {
		cfg.DefaultDays = MaxDays
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	s := &Service{
		cfg:       cfg,
		login:     login,
		vendor:    vendor,
		store:     store,
		publisher: events.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether vendor credentials are present.
func (s *Service) Configured() bool {
	return s.configurationError() == nil
}

func (s *Service) configurationError() error {
	var missing []string
	if strings.TrimSpace(s.cfg.Email) == "" {
		missing = append(missing, "FI_EMAIL")
	}
	if strings.TrimSpace(s.cfg.Password) == "" {
		missing = append(missing, "FI_PASSWORD")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// Run performs one sync. Unless req.DryRun is set the result is persisted,
// recorded in the sync log and announced to the publisher.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if err := s.configurationError(); err != nil {
		observability.RecordSyncRun("failure", time.Time{})
		return nil, err
	}

	days := req.Days
	if days <= 0 {
		days = s.cfg.DefaultDays
	}
	if days > MaxDays {
		days = MaxDays
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	logger := logging.Ctx(ctx).With().Str("component", "sync").Int("days", days).Bool("dry_run", req.DryRun).Logger()
	result := &Result{Days: days, DryRun: req.DryRun, Warnings: []string{}, Debug: []string{}}

	var run *domain.SyncRun
	if !req.DryRun {
		run = &domain.SyncRun{
			ID:        uuid.NewString(),
			SyncType:  "manual",
			StartedAt: s.now().UTC(),
			Status:    domain.SyncStatusRunning,
		}
		if err := s.store.CreateSyncRun(ctx, *run); err != nil {
			observability.RecordSyncRun("failure", time.Time{})
			return nil, fmt.Errorf("record sync run: %w", err)
		}
		result.RunID = run.ID
	}

	err := s.run(ctx, days, req.DryRun, result)
	completed := s.now().UTC()

	if run != nil {
		run.CompletedAt = &completed
		run.RecordsSynced = result.Stats.TotalRecords
		run.Status = domain.SyncStatusSuccess
		if err != nil {
			msg := err.Error()
			run.Status = domain.SyncStatusFailed
			run.ErrorMessage = &msg
		}
		// The request context may already be cancelled; the log entry must still close.
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if cerr := s.store.CompleteSyncRun(finishCtx, *run); cerr != nil {
			logger.Error().Err(cerr).Str("run_id", run.ID).Msg("failed to complete sync run")
		}
		cancel()
	}

	if err != nil {
		observability.RecordSyncRun("failure", time.Time{})
		logger.Warn().Err(err).Msg("sync failed")
		return nil, err
	}

	switch {
	case req.DryRun:
		observability.RecordSyncRun("dry_run", time.Time{})
	default:
		observability.RecordSyncRun("success", completed)
		s.publish(ctx, result, completed, &logger)
	}

	logger.Info().
		Str("date", result.Snapshot.Date).
		Int("steps", result.Snapshot.Steps).
		Int("records", result.Stats.TotalRecords).
		Int("warnings", len(result.Warnings)).
		Msg("sync completed")
	return result, nil
}

func (s *Service) run(ctx context.Context, days int, dryRun bool, result *Result) error {
	cred, err := s.login.Login(ctx, s.cfg.Email, s.cfg.Password)
	if err != nil {
		return err
	}
	result.debugf("authenticated via %s strategy", cred.Strategy)

	pets, err := s.vendor.Pets(ctx, cred)
	if err != nil {
		return err
	}
	selected, err := selectPet(pets, s.cfg.PetID, s.cfg.PetName)
	if err != nil {
		return err
	}
	result.debugf("found %d pet(s); using %s (%s)", len(pets), selected.Name, selected.ID)

	pet, err := s.vendor.PetProfile(ctx, cred, selected.ID)
	if err != nil {
		return err
	}

	daily, weekly, err := s.vendor.ActivitySummaries(ctx, cred, pet.ID)
	if err != nil {
		return err
	}
	if daily != nil {
		result.debugf("daily activity: %d steps of %d goal", daily.TotalSteps, daily.StepGoal)
	}

	ongoing, err := s.vendor.OngoingActivity(ctx, cred, pet.ID)
	if err != nil {
		result.warnf("location unavailable: %v", err)
		ongoing = nil
	} else if kind := tryfi.ActivityKind(ongoing); kind != "" {
		result.debugf("ongoing activity: %s", kind)
	}

	rest, err := s.vendor.RestSummaries(ctx, cred, pet.ID, days)
	if err != nil {
		result.warnf("sleep data unavailable: %v", err)
		rest = nil
	} else {
		result.debugf("rest summaries: %d", len(rest))
	}

	now := s.now().UTC()
	result.Snapshot = tryfi.Normalize(tryfi.Inputs{
		Pet:     pet,
		Daily:   daily,
		Weekly:  weekly,
		Ongoing: ongoing,
		Rest:    rest,
		Now:     now,
	})

	if dryRun {
		result.debugf("dry run: nothing persisted")
		return nil
	}
	return s.persist(ctx, days, now, ongoing, rest, result)
}

func (s *Service) persist(ctx context.Context, days int, now time.Time, ongoing tryfi.OngoingActivity, rest []tryfi.RestSummary, result *Result) error {
	snap := result.Snapshot
	day, err := domain.ParseDay(snap.Date)
	if err != nil {
		day = domain.Day(now)
	}

	switch a := ongoing.(type) {
	case *tryfi.OngoingWalk:
		if walk, ok := ongoingWalk(a, snap.Location, now); ok {
			if err := s.store.UpsertVendorWalk(ctx, walk); err != nil {
				return fmt.Errorf("store ongoing walk: %w", err)
			}
			result.Stats.Walks++
		}
	case *tryfi.OngoingRest:
		if interval, ok := ongoingRest(a, now); ok {
			if err := s.store.UpsertSleepInterval(ctx, interval); err != nil {
				return fmt.Errorf("store ongoing rest: %w", err)
			}
			result.Stats.SleepRecords++
		}
	}

	for _, summary := range rest {
		for _, interval := range sleepIntervals(summary) {
			if err := s.store.UpsertSleepInterval(ctx, interval); err != nil {
				return fmt.Errorf("store sleep interval: %w", err)
			}
			result.Stats.SleepRecords++
		}
	}

	walks, _, err := s.store.ListWalks(ctx, domain.WalkFilter{Since: &day, Source: domain.WalkSourceVendor})
	if err != nil {
		return fmt.Errorf("count walks: %w", err)
	}
	walkCount := 0
	for _, w := range walks {
		if domain.Day(w.Date).Equal(day) {
			walkCount++
		}
	}

	if err := s.store.UpsertSnapshot(ctx, domain.ActivitySnapshot{
		Date:                day,
		TotalSteps:          snap.Steps,
		TotalDistanceMeters: snap.DistanceMeters,
		CalorieEstimate:     snap.Calories,
		ActiveMinutes:       snap.ActiveMinutes,
		RestMinutes:         snap.RestMinutes,
		NapMinutes:          snap.NapMinutes,
		WalkCount:           walkCount,
		DailyGoalSteps:      snap.DailyGoal,
		GoalAchieved:        snap.GoalAchieved,
		SyncedAt:            now,
	}); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	result.Stats.Activities++

	oldest := day.AddDate(0, 0, -(days - 1))
	for _, h := range snap.History {
		date, err := domain.ParseDay(h.Date)
		if err != nil || !date.Before(day) || date.Before(oldest) {
			continue
		}
		if err := s.store.UpsertStepTotals(ctx, domain.StepTotals{
			Date:           date,
			TotalSteps:     h.TotalSteps,
			DailyGoalSteps: h.StepGoal,
			SyncedAt:       now,
		}); err != nil {
			return fmt.Errorf("store step totals: %w", err)
		}
		result.Stats.Activities++
	}

	result.Stats.TotalRecords = result.Stats.Activities + result.Stats.Walks + result.Stats.SleepRecords
	result.debugf("persisted %d record(s)", result.Stats.TotalRecords)
	return nil
}

func (s *Service) publish(ctx context.Context, result *Result, completed time.Time, logger *zerolog.Logger) {
	event := events.SyncCompleted{
		RunID:         result.RunID,
		PetID:         result.Snapshot.PetID,
		Date:          result.Snapshot.Date,
		Steps:         result.Snapshot.Steps,
		GoalPercent:   result.Snapshot.GoalPercent,
		RecordsSynced: result.Stats.TotalRecords,
		CompletedAt:   completed,
	}
	if err := s.publisher.PublishSyncCompleted(ctx, event); err != nil {
		result.warnf("sync event not published: %v", err)
		logger.Warn().Err(err).Msg("failed to publish sync event")
	}
}

// Status reports configuration, vendor reachability and the last sync run.
func (s *Service) Status(ctx context.Context) Status {
	status := Status{Configured: s.Configured(), DefaultDays: s.cfg.DefaultDays}

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()
	status.Reachable = s.vendor.Probe(probeCtx) == nil

	last, err := s.store.LastSyncRun(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to load last sync run")
	} else {
		status.LastRun = last
	}
	return status
}

func selectPet(pets []tryfi.Pet, petID, petName string) (tryfi.Pet, error) {
	if petID = strings.TrimSpace(petID); petID != "" {
		for _, p := range pets {
			if p.ID == petID {
				return p, nil
			}
		}
		return tryfi.Pet{}, &PetNotFoundError{Wanted: petID, Available: petNames(pets)}
	}
	if petName = strings.TrimSpace(petName); petName == "" {
		petName = "Bailey"
	}
	for _, p := range pets {
		if strings.EqualFold(strings.TrimSpace(p.Name), petName) {
			return p, nil
		}
	}
	return tryfi.Pet{}, &PetNotFoundError{Wanted: petName, Available: petNames(pets)}
}

func petNames(pets []tryfi.Pet) []string {
	names := make([]string, 0, len(pets))
	for _, p := range pets {
		names = append(names, p.Name)
	}
	return names
}

// ongoingWalk records an in-progress walk under a key derived from its start
// so repeated syncs update the same row.
func ongoingWalk(w *tryfi.OngoingWalk, location string, now time.Time) (domain.WalkEvent, bool) {
	start, ok := parseTime(w.Start)
	if !ok {
		return domain.WalkEvent{}, false
	}
	startUTC := start.UTC()
	vendorID := "ongoing:" + startUTC.Format(time.RFC3339)
	return domain.WalkEvent{
		VendorWalkID:    &vendorID,
		Date:            domain.LocalDay(start),
		StartTime:       &startUTC,
		DurationMinutes: minutesBetween(start, now),
		Steps:           w.TotalSteps,
		DistanceMeters:  w.Distance,
		Location:        location,
		Notes:           "in progress at last sync",
		Source:          domain.WalkSourceVendor,
	}, true
}

func ongoingRest(r *tryfi.OngoingRest, now time.Time) (domain.SleepInterval, bool) {
	start, ok := parseTime(r.Start)
	if !ok || !start.Before(now) {
		return domain.SleepInterval{}, false
	}
	return domain.SleepInterval{
		Date:            domain.LocalDay(start),
		Type:            domain.SleepTypeRest,
		StartTime:       start.UTC(),
		EndTime:         now,
		DurationMinutes: minutesBetween(start, now),
	}, true
}

// sleepIntervals lays a summary's stages end to end from its start. Awake
// time advances the clock but is not stored.
func sleepIntervals(summary tryfi.RestSummary) []domain.SleepInterval {
	start, ok := parseTime(summary.Start)
	if !ok {
		return nil
	}
	var out []domain.SleepInterval
	cursor := start
	for _, amount := range summary.Amounts() {
		if amount.Duration <= 0 {
			continue
		}
		end := cursor.Add(time.Duration(amount.Duration) * time.Second)
		if !strings.EqualFold(amount.Type, "AWAKE") {
			out = append(out, domain.SleepInterval{
				Date:            domain.LocalDay(cursor),
				Type:            domain.SleepType(tryfi.SleepIntervalType(amount.Type)),
				StartTime:       cursor.UTC(),
				EndTime:         end.UTC(),
				DurationMinutes: amount.Duration / 60,
			})
		}
		cursor = end
	}
	return out
}

// parseTime keeps the vendor's offset so callers can take the local day.
func parseTime(value string) (time.Time, bool) {
	return tryfi.ParseTime(value)
}

func minutesBetween(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

func (r *Result) debugf(format string, args ...any) {
	r.Debug = append(r.Debug, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// IsVendorError reports whether err came from the vendor rather than from
// configuration or storage.
func IsVendorError(err error) bool {
	var authErr *tryfi.AuthError
	var extractErr *tryfi.AuthExtractionError
	var queryErr *tryfi.QueryError
	return errors.As(err, &authErr) || errors.As(err, &extractErr) || errors.As(err, &queryErr)
}
