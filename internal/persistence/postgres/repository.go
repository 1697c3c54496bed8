package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nsprdjake/bailey-dashboard/internal/domain"
	"github.com/nsprdjake/bailey-dashboard/internal/observability"
)

// Repository provides Postgres-backed persistence for the dashboard.
type Repository struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertSnapshot writes the full day, replacing any previous sync of it.
func (r *Repository) UpsertSnapshot(ctx context.Context, s domain.ActivitySnapshot) error {
	const stmt = `INSERT INTO bailey_fi_activity (date, total_steps, total_distance_meters, total_calories, walk_count, rest_minutes, nap_minutes, active_minutes, daily_goal_steps, goal_achieved, synced_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (date) DO UPDATE SET
            total_steps = EXCLUDED.total_steps,
            total_distance_meters = EXCLUDED.total_distance_meters,
            total_calories = EXCLUDED.total_calories,
            walk_count = EXCLUDED.walk_count,
            rest_minutes = EXCLUDED.rest_minutes,
            nap_minutes = EXCLUDED.nap_minutes,
            active_minutes = EXCLUDED.active_minutes,
            daily_goal_steps = EXCLUDED.daily_goal_steps,
            goal_achieved = EXCLUDED.goal_achieved,
            synced_at = EXCLUDED.synced_at`

	_, err := r.pool.Exec(ctx, stmt,
		domain.Day(s.Date),
		s.TotalSteps,
		s.TotalDistanceMeters,
		s.CalorieEstimate,
		s.WalkCount,
		s.RestMinutes,
		s.NapMinutes,
		s.ActiveMinutes,
		s.DailyGoalSteps,
		s.GoalAchieved,
		s.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	observability.RecordPersisted("activity", 1)
	return nil
}

// UpsertStepTotals touches only the step columns so a backfilled day keeps
// any richer data from an earlier full sync.
func (r *Repository) UpsertStepTotals(ctx context.Context, t domain.StepTotals) error {
	const stmt = `INSERT INTO bailey_fi_activity (date, total_steps, daily_goal_steps, goal_achieved, synced_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (date) DO UPDATE SET
            total_steps = EXCLUDED.total_steps,
            daily_goal_steps = EXCLUDED.daily_goal_steps,
            goal_achieved = EXCLUDED.goal_achieved,
            synced_at = EXCLUDED.synced_at`

	achieved := t.DailyGoalSteps > 0 && t.TotalSteps >= t.DailyGoalSteps
	if _, err := r.pool.Exec(ctx, stmt, domain.Day(t.Date), t.TotalSteps, t.DailyGoalSteps, achieved, t.SyncedAt); err != nil {
		return fmt.Errorf("upsert step totals: %w", err)
	}
	observability.RecordPersisted("activity", 1)
	return nil
}

// UpsertVendorWalk inserts or refreshes a collar walk keyed by fi_walk_id.
func (r *Repository) UpsertVendorWalk(ctx context.Context, w domain.WalkEvent) error {
	if w.VendorWalkID == nil || *w.VendorWalkID == "" {
		return errors.New("vendor walk id is required")
	}
	const stmt = `INSERT INTO bailey_walks (id, fi_walk_id, date, start_time, end_time, duration_minutes, steps, distance_meters, location, notes, source, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'fi',$11)
        ON CONFLICT (fi_walk_id) DO UPDATE SET
            date = EXCLUDED.date,
            start_time = EXCLUDED.start_time,
            end_time = EXCLUDED.end_time,
            duration_minutes = EXCLUDED.duration_minutes,
            steps = EXCLUDED.steps,
            distance_meters = EXCLUDED.distance_meters,
            location = EXCLUDED.location`

	id := w.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := w.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, stmt,
		id,
		*w.VendorWalkID,
		domain.Day(w.Date),
		w.StartTime,
		w.EndTime,
		w.DurationMinutes,
		w.Steps,
		w.DistanceMeters,
		w.Location,
		w.Notes,
		created,
	)
	if err != nil {
		return fmt.Errorf("upsert vendor walk: %w", err)
	}
	observability.RecordPersisted("walks", 1)
	return nil
}

// UpsertSleepInterval inserts or refreshes an interval keyed by (date, start_time).
func (r *Repository) UpsertSleepInterval(ctx context.Context, s domain.SleepInterval) error {
	const stmt = `INSERT INTO bailey_fi_sleep (id, date, sleep_type, start_time, end_time, duration_minutes, quality_score)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (date, start_time) DO UPDATE SET
            sleep_type = EXCLUDED.sleep_type,
            end_time = EXCLUDED.end_time,
            duration_minutes = EXCLUDED.duration_minutes,
            quality_score = EXCLUDED.quality_score`

	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, stmt, id, domain.Day(s.Date), string(s.Type), s.StartTime, s.EndTime, s.DurationMinutes, s.QualityScore)
	if err != nil {
		return fmt.Errorf("upsert sleep interval: %w", err)
	}
	observability.RecordPersisted("sleep", 1)
	return nil
}

// ListSnapshots returns days on or after since, oldest first.
func (r *Repository) ListSnapshots(ctx context.Context, since time.Time) ([]domain.ActivitySnapshot, error) {
	const query = `SELECT date, total_steps, total_distance_meters, total_calories, active_minutes, rest_minutes, nap_minutes, walk_count, daily_goal_steps, goal_achieved, synced_at
        FROM bailey_fi_activity WHERE date >= $1 ORDER BY date ASC`

	rows, err := r.pool.Query(ctx, query, domain.Day(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ActivitySnapshot, 0)
	for rows.Next() {
		var s domain.ActivitySnapshot
		if err := rows.Scan(&s.Date, &s.TotalSteps, &s.TotalDistanceMeters, &s.CalorieEstimate, &s.ActiveMinutes, &s.RestMinutes, &s.NapMinutes, &s.WalkCount, &s.DailyGoalSteps, &s.GoalAchieved, &s.SyncedAt); err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// ListSleepIntervals returns intervals on or after since ordered by start.
func (r *Repository) ListSleepIntervals(ctx context.Context, since time.Time) ([]domain.SleepInterval, error) {
	const query = `SELECT id, date, sleep_type, start_time, end_time, duration_minutes, quality_score, created_at
        FROM bailey_fi_sleep WHERE date >= $1 ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, domain.Day(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.SleepInterval, 0)
	for rows.Next() {
		var s domain.SleepInterval
		if err := rows.Scan(&s.ID, &s.Date, &s.Type, &s.StartTime, &s.EndTime, &s.DurationMinutes, &s.QualityScore, &s.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// CreateSyncRun records the start of a sync.
func (r *Repository) CreateSyncRun(ctx context.Context, run domain.SyncRun) error {
	const stmt = `INSERT INTO bailey_fi_sync_log (id, sync_type, started_at, status, records_synced)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := r.pool.Exec(ctx, stmt, run.ID, run.SyncType, run.StartedAt, string(run.Status), run.RecordsSynced)
	return err
}

// CompleteSyncRun records the outcome of a sync.
func (r *Repository) CompleteSyncRun(ctx context.Context, run domain.SyncRun) error {
	const stmt = `UPDATE bailey_fi_sync_log SET completed_at=$2, status=$3, records_synced=$4, error_message=$5 WHERE id=$1`
	tag, err := r.pool.Exec(ctx, stmt, run.ID, run.CompletedAt, string(run.Status), run.RecordsSynced, run.ErrorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LastSyncRun returns the most recently started run, or nil.
func (r *Repository) LastSyncRun(ctx context.Context) (*domain.SyncRun, error) {
	const query = `SELECT id, sync_type, started_at, completed_at, status, records_synced, error_message
        FROM bailey_fi_sync_log ORDER BY started_at DESC LIMIT 1`

	var run domain.SyncRun
	err := r.pool.QueryRow(ctx, query).Scan(&run.ID, &run.SyncType, &run.StartedAt, &run.CompletedAt, &run.Status, &run.RecordsSynced, &run.ErrorMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// CreateWalk inserts a manual walk.
func (r *Repository) CreateWalk(ctx context.Context, w domain.WalkEvent) error {
	const stmt = `INSERT INTO bailey_walks (id, fi_walk_id, date, start_time, end_time, duration_minutes, steps, distance_meters, location, notes, source, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := r.pool.Exec(ctx, stmt,
		w.ID,
		w.VendorWalkID,
		domain.Day(w.Date),
		w.StartTime,
		w.EndTime,
		w.DurationMinutes,
		w.Steps,
		w.DistanceMeters,
		w.Location,
		w.Notes,
		string(w.Source),
		w.CreatedAt,
	)
	return err
}

// ListWalks returns walks ordered by (date, id) descending.
func (r *Repository) ListWalks(ctx context.Context, filter domain.WalkFilter) ([]domain.WalkEvent, *domain.Cursor, error) {
	query := `SELECT id, fi_walk_id, date, start_time, end_time, duration_minutes, steps, distance_meters, location, notes, source, created_at
        FROM bailey_walks`

	var (
		where []string
		args  []interface{}
	)
	if filter.Since != nil {
		args = append(args, domain.Day(*filter.Since))
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.Cursor != nil {
		args = append(args, filter.Cursor.Date, filter.Cursor.ID)
		where = append(where, fmt.Sprintf("(date, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.WalkEvent, 0)
	for rows.Next() {
		var (
			w      domain.WalkEvent
			source string
		)
		if err := rows.Scan(&w.ID, &w.VendorWalkID, &w.Date, &w.StartTime, &w.EndTime, &w.DurationMinutes, &w.Steps, &w.DistanceMeters, &w.Location, &w.Notes, &source, &w.CreatedAt); err != nil {
			return nil, nil, err
		}
		w.Source = domain.WalkSource(source)
		results = append(results, w)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if filter.Limit > 0 && len(results) == filter.Limit {
		last := results[len(results)-1]
		next = &domain.Cursor{Date: last.Date, ID: last.ID}
	}
	return results, next, nil
}

// DeleteWalk removes a walk by id.
func (r *Repository) DeleteWalk(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "bailey_walks", id)
}

// CreateHealthRecord inserts a health log entry.
func (r *Repository) CreateHealthRecord(ctx context.Context, h domain.HealthRecord) error {
	const stmt = `INSERT INTO bailey_health (id, type, date, title, description, value, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, stmt, h.ID, string(h.Type), h.Date, h.Title, h.Description, h.Value, h.CreatedAt)
	return err
}

// ListHealthRecords returns entries newest first, optionally of one type.
func (r *Repository) ListHealthRecords(ctx context.Context, recordType domain.HealthRecordType, limit int) ([]domain.HealthRecord, error) {
	query := `SELECT id, type, date, title, description, value, created_at FROM bailey_health`
	args := []interface{}{}
	if recordType != "" {
		args = append(args, string(recordType))
		query += " WHERE type = $1"
	}
	query += " ORDER BY date DESC, created_at DESC"
	query, args = withLimit(query, args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.HealthRecord, 0)
	for rows.Next() {
		var h domain.HealthRecord
		if err := rows.Scan(&h.ID, &h.Type, &h.Date, &h.Title, &h.Description, &h.Value, &h.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// CreateVetRecord inserts a vet record.
func (r *Repository) CreateVetRecord(ctx context.Context, v domain.VetRecord) error {
	const stmt = `INSERT INTO bailey_vet_records (id, date, type, title, description, vet_name, cost, next_due_date, file_url, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.pool.Exec(ctx, stmt, v.ID, v.Date, v.Type, v.Title, v.Description, v.VetName, v.Cost, v.NextDueDate, v.FileURL, v.CreatedAt)
	return err
}

// ListVetRecords returns vet records newest first.
func (r *Repository) ListVetRecords(ctx context.Context, limit int) ([]domain.VetRecord, error) {
	query, args := withLimit(`SELECT id, date, type, title, description, vet_name, cost, next_due_date, file_url, created_at
        FROM bailey_vet_records ORDER BY date DESC, created_at DESC`, nil, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.VetRecord, 0)
	for rows.Next() {
		var v domain.VetRecord
		if err := rows.Scan(&v.ID, &v.Date, &v.Type, &v.Title, &v.Description, &v.VetName, &v.Cost, &v.NextDueDate, &v.FileURL, &v.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// CreateMedication inserts a medication.
func (r *Repository) CreateMedication(ctx context.Context, m domain.Medication) error {
	const stmt = `INSERT INTO bailey_medications (id, name, dosage, frequency, start_date, end_date, active, notes, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.pool.Exec(ctx, stmt, m.ID, m.Name, m.Dosage, m.Frequency, m.StartDate, m.EndDate, m.Active, m.Notes, m.CreatedAt)
	return err
}

// ListMedications returns medications, optionally only active ones.
func (r *Repository) ListMedications(ctx context.Context, activeOnly bool) ([]domain.Medication, error) {
	query := `SELECT id, name, dosage, frequency, start_date, end_date, active, notes, created_at FROM bailey_medications`
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY start_date DESC, created_at DESC"

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Medication, 0)
	for rows.Next() {
		var m domain.Medication
		if err := rows.Scan(&m.ID, &m.Name, &m.Dosage, &m.Frequency, &m.StartDate, &m.EndDate, &m.Active, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// CreateWeightLog inserts a weigh-in.
func (r *Repository) CreateWeightLog(ctx context.Context, w domain.WeightLog) error {
	const stmt = `INSERT INTO bailey_weight_logs (id, date, weight_lbs, notes, created_at) VALUES ($1,$2,$3,$4,$5)`
	_, err := r.pool.Exec(ctx, stmt, w.ID, w.Date, w.WeightLbs, w.Notes, w.CreatedAt)
	return err
}

// ListWeightLogs returns weigh-ins newest first.
func (r *Repository) ListWeightLogs(ctx context.Context, limit int) ([]domain.WeightLog, error) {
	query, args := withLimit(`SELECT id, date, weight_lbs, notes, created_at FROM bailey_weight_logs ORDER BY date DESC, created_at DESC`, nil, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.WeightLog, 0)
	for rows.Next() {
		var w domain.WeightLog
		if err := rows.Scan(&w.ID, &w.Date, &w.WeightLbs, &w.Notes, &w.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, w)
	}
	return results, rows.Err()
}

const photoColumns = `id, url, storage_key, caption, date, is_favorite, created_at`

func scanPhoto(row pgx.Row) (*domain.Photo, error) {
	var p domain.Photo
	if err := row.Scan(&p.ID, &p.URL, &p.StorageKey, &p.Caption, &p.Date, &p.IsFavorite, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreatePhoto inserts a gallery entry.
func (r *Repository) CreatePhoto(ctx context.Context, p domain.Photo) error {
	const stmt = `INSERT INTO bailey_photos (` + photoColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, stmt, p.ID, p.URL, p.StorageKey, p.Caption, p.Date, p.IsFavorite, p.CreatedAt)
	return err
}

// GetPhoto fetches a photo by id.
func (r *Repository) GetPhoto(ctx context.Context, id string) (*domain.Photo, error) {
	return scanPhoto(r.pool.QueryRow(ctx, `SELECT `+photoColumns+` FROM bailey_photos WHERE id=$1`, id))
}

// ListPhotos returns photos newest first.
func (r *Repository) ListPhotos(ctx context.Context, favoritesOnly bool, limit int) ([]domain.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM bailey_photos`
	if favoritesOnly {
		query += " WHERE is_favorite"
	}
	query, args := withLimit(query+" ORDER BY date DESC, created_at DESC", nil, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Photo, 0)
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *p)
	}
	return results, rows.Err()
}

// UpdatePhoto applies the non-nil fields of patch.
func (r *Repository) UpdatePhoto(ctx context.Context, id string, patch domain.PhotoPatch) (*domain.Photo, error) {
	const stmt = `UPDATE bailey_photos SET
            caption = COALESCE($2, caption),
            is_favorite = COALESCE($3, is_favorite)
        WHERE id=$1 RETURNING ` + photoColumns
	return scanPhoto(r.pool.QueryRow(ctx, stmt, id, patch.Caption, patch.IsFavorite))
}

// DeletePhoto removes a photo by id.
func (r *Repository) DeletePhoto(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "bailey_photos", id)
}

// CreateMemory inserts a fun fact.
func (r *Repository) CreateMemory(ctx context.Context, m domain.Memory) error {
	const stmt = `INSERT INTO bailey_memories (id, type, title, description, date, created_at) VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.pool.Exec(ctx, stmt, m.ID, string(m.Type), m.Title, m.Description, m.Date, m.CreatedAt)
	return err
}

// ListMemories returns memories newest first.
func (r *Repository) ListMemories(ctx context.Context, limit int) ([]domain.Memory, error) {
	query, args := withLimit(`SELECT id, type, title, description, date, created_at FROM bailey_memories ORDER BY created_at DESC`, nil, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Memory, 0)
	for rows.Next() {
		var m domain.Memory
		if err := rows.Scan(&m.ID, &m.Type, &m.Title, &m.Description, &m.Date, &m.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (r *Repository) deleteByID(ctx context.Context, table, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM "+table+" WHERE id=$1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func withLimit(query string, args []interface{}, limit int) (string, []interface{}) {
	if limit <= 0 {
		return query, args
	}
	args = append(args, limit)
	return fmt.Sprintf("%s LIMIT $%d", query, len(args)), args
}
