package api

import (
	"time"

	"github.com/nsprdjake/bailey-dashboard/internal/domain"
)

// CreateWalkRequest is the payload for POST /v1/walks.
type CreateWalkRequest struct {
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=1,max=1440"`
	Location        string  `json:"location" validate:"max=200"`
	Notes           string  `json:"notes" validate:"max=2000"`
	Steps           int     `json:"steps" validate:"min=0"`
	DistanceMeters  float64 `json:"distance_meters" validate:"min=0"`
}

// CreateHealthRecordRequest is the payload for POST /v1/health/records.
type CreateHealthRecordRequest struct {
	Type        string  `json:"type" validate:"required,oneof=vet_visit vaccination medication weight"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	Value       *string `json:"value" validate:"omitempty,max=200"`
}

// CreateVetRecordRequest is the payload for POST /v1/health/vet-records.
type CreateVetRecordRequest struct {
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	Type        string   `json:"type" validate:"required,max=50"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=4000"`
	VetName     *string  `json:"vet_name" validate:"omitempty,max=200"`
	Cost        *float64 `json:"cost" validate:"omitempty,min=0"`
	NextDueDate *string  `json:"next_due_date" validate:"omitempty,datetime=2006-01-02"`
	FileURL     *string  `json:"file_url" validate:"omitempty,url"`
}

// CreateMedicationRequest is the payload for POST /v1/health/medications.
type CreateMedicationRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Dosage    string  `json:"dosage" validate:"required,max=100"`
	Frequency string  `json:"frequency" validate:"required,max=100"`
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Active    *bool   `json:"active"`
	Notes     *string `json:"notes" validate:"omitempty,max=2000"`
}

// CreateWeightRequest is the payload for POST /v1/health/weights.
type CreateWeightRequest struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	WeightLbs float64 `json:"weight_lbs" validate:"required,gt=0,lt=400"`
	Notes     *string `json:"notes" validate:"omitempty,max=2000"`
}

// CreatePhotoRequest is the payload for POST /v1/photos.
type CreatePhotoRequest struct {
	URL        string  `json:"url" validate:"required_without=StorageKey,omitempty,url"`
	StorageKey string  `json:"storage_key" validate:"required_without=URL,omitempty,max=512"`
	Caption    *string `json:"caption" validate:"omitempty,max=500"`
	Date       string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	IsFavorite bool    `json:"is_favorite"`
}

// UpdatePhotoRequest is the payload for PATCH /v1/photos/{id}.
type UpdatePhotoRequest struct {
	Caption    *string `json:"caption" validate:"omitempty,max=500"`
	IsFavorite *bool   `json:"is_favorite"`
}

// CreateUploadRequest is the payload for POST /v1/photos/uploads.
type CreateUploadRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required,oneof=image/jpeg image/png image/gif image/webp image/heic"`
}

// CreateMemoryRequest is the payload for POST /v1/memories.
type CreateMemoryRequest struct {
	Type        string  `json:"type" validate:"required,oneof=quote toy funny_moment"`
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"required,max=4000"`
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// ActivitySnapshotView is one day on the activity page.
type ActivitySnapshotView struct {
	Date                string    `json:"date"`
	TotalSteps          int       `json:"total_steps"`
	TotalDistanceMeters float64   `json:"total_distance_meters"`
	CalorieEstimate     int       `json:"calorie_estimate"`
	ActiveMinutes       int       `json:"active_minutes"`
	RestMinutes         int       `json:"rest_minutes"`
	NapMinutes          int       `json:"nap_minutes"`
	WalkCount           int       `json:"walk_count"`
	DailyGoalSteps      int       `json:"daily_goal_steps"`
	GoalAchieved        bool      `json:"goal_achieved"`
	SyncedAt            time.Time `json:"synced_at"`
}

// SleepIntervalView is one nap or rest period.
type SleepIntervalView struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	Type            string    `json:"type"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	QualityScore    *int      `json:"quality_score,omitempty"`
}

// WalkView exposes a walk.
type WalkView struct {
	ID              string     `json:"id"`
	FiWalkID        *string    `json:"fi_walk_id,omitempty"`
	Date            string     `json:"date"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Steps           int        `json:"steps"`
	DistanceMeters  float64    `json:"distance_meters"`
	Location        string     `json:"location,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Source          string     `json:"source"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListWalksResponse packages a page of walks.
type ListWalksResponse struct {
	Items      []WalkView `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// WeekStatsView summarises the activity window.
type WeekStatsView struct {
	AvgSteps    int `json:"avg_steps"`
	AvgDistance int `json:"avg_distance_meters"`
	TotalWalks  int `json:"total_walks"`
	GoalDays    int `json:"goal_days"`
}

// SyncRunSummary is the last sync shown on the activity page.
type SyncRunSummary struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	RecordsSynced int        `json:"records_synced"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
}

// ActivityResponse is the activity page payload.
type ActivityResponse struct {
	Days      int                    `json:"days"`
	Snapshots []ActivitySnapshotView `json:"snapshots"`
	Sleep     []SleepIntervalView    `json:"sleep"`
	Walks     []WalkView             `json:"walks"`
	Stats     WeekStatsView          `json:"stats"`
	LastSync  *SyncRunSummary        `json:"last_sync,omitempty"`
}

// HealthRecordView exposes a health log entry.
type HealthRecordView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Date        string    `json:"date"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Value       *string   `json:"value,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// VetRecordView exposes a vet record.
type VetRecordView struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	VetName     *string   `json:"vet_name,omitempty"`
	Cost        *float64  `json:"cost,omitempty"`
	NextDueDate *string   `json:"next_due_date,omitempty"`
	FileURL     *string   `json:"file_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MedicationView exposes a medication.
type MedicationView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage"`
	Frequency string    `json:"frequency"`
	StartDate string    `json:"start_date"`
	EndDate   *string   `json:"end_date,omitempty"`
	Active    bool      `json:"active"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WeightView exposes a weigh-in.
type WeightView struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	WeightLbs float64   `json:"weight_lbs"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PhotoView exposes a gallery photo.
type PhotoView struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	StorageKey string    `json:"storage_key,omitempty"`
	Caption    *string   `json:"caption,omitempty"`
	Date       string    `json:"date"`
	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"`
}

// UploadTicketView is a presigned upload.
type UploadTicketView struct {
	StorageKey string    `json:"storage_key"`
	UploadURL  string    `json:"upload_url"`
	PublicURL  string    `json:"public_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// MemoryView exposes a fun fact.
type MemoryView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        *string   `json:"date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ItemsResponse wraps unpaginated lists.
type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}

// DashboardResponse is the home page payload.
type DashboardResponse struct {
	WalksThisMonth int                   `json:"walks_this_month"`
	WalkStreak     int                   `json:"walk_streak"`
	DaysSinceVet   *int                  `json:"days_since_vet"`
	LatestWalk     *WalkView             `json:"latest_walk"`
	LastVetVisit   *HealthRecordView     `json:"last_vet_visit"`
	Today          *ActivitySnapshotView `json:"today"`
	RecentPhotos   []PhotoView           `json:"recent_photos"`
	FunFacts       []string              `json:"fun_facts"`
}

func formatDay(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func formatDayPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDay(*t)
	return &s
}

func toSnapshotView(s domain.ActivitySnapshot) ActivitySnapshotView {
	return ActivitySnapshotView{
		Date:                formatDay(s.Date),
		TotalSteps:          s.TotalSteps,
		TotalDistanceMeters: s.TotalDistanceMeters,
		CalorieEstimate:     s.CalorieEstimate,
		ActiveMinutes:       s.ActiveMinutes,
		RestMinutes:         s.RestMinutes,
		NapMinutes:          s.NapMinutes,
		WalkCount:           s.WalkCount,
		DailyGoalSteps:      s.DailyGoalSteps,
		GoalAchieved:        s.GoalAchieved,
		SyncedAt:            s.SyncedAt,
	}
}

func toSleepView(s domain.SleepInterval) SleepIntervalView {
	return SleepIntervalView{
		ID:              s.ID,
		Date:            formatDay(s.Date),
		Type:            string(s.Type),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationMinutes: s.DurationMinutes,
		QualityScore:    s.QualityScore,
	}
}

func toWalkView(w domain.WalkEvent) WalkView {
	return WalkView{
		ID:              w.ID,
		FiWalkID:        w.VendorWalkID,
		Date:            formatDay(w.Date),
		StartTime:       w.StartTime,
		EndTime:         w.EndTime,
		DurationMinutes: w.DurationMinutes,
		Steps:           w.Steps,
		DistanceMeters:  w.DistanceMeters,
		Location:        w.Location,
		Notes:           w.Notes,
		Source:          string(w.Source),
		CreatedAt:       w.CreatedAt,
	}
}

func toSyncRunSummary(run *domain.SyncRun) *SyncRunSummary {
	if run == nil {
		return nil
	}
	return &SyncRunSummary{
		ID:            run.ID,
		Status:        string(run.Status),
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
		RecordsSynced: run.RecordsSynced,
		ErrorMessage:  run.ErrorMessage,
	}
}

func toActivityResponse(o domain.ActivityOverview) ActivityResponse {
	resp := ActivityResponse{
		Days:      o.Days,
		Snapshots: make([]ActivitySnapshotView, 0, len(o.Snapshots)),
		Sleep:     make([]SleepIntervalView, 0, len(o.Sleep)),
		Walks:     make([]WalkView, 0, len(o.Walks)),
		Stats: WeekStatsView{
			AvgSteps:    o.Stats.AvgSteps,
			AvgDistance: o.Stats.AvgDistance,
			TotalWalks:  o.Stats.TotalWalks,
			GoalDays:    o.Stats.GoalDays,
		},
		LastSync: toSyncRunSummary(o.LastSync),
	}
	for _, s := range o.Snapshots {
		resp.Snapshots = append(resp.Snapshots, toSnapshotView(s))
	}
	for _, s := range o.Sleep {
		resp.Sleep = append(resp.Sleep, toSleepView(s))
	}
	for _, w := range o.Walks {
		resp.Walks = append(resp.Walks, toWalkView(w))
	}
	return resp
}

func toHealthRecordView(r domain.HealthRecord) HealthRecordView {
	return HealthRecordView{
		ID:          r.ID,
		Type:        string(r.Type),
		Date:        formatDay(r.Date),
		Title:       r.Title,
		Description: r.Description,
		Value:       r.Value,
		CreatedAt:   r.CreatedAt,
	}
}

func toVetRecordView(r domain.VetRecord) VetRecordView {
	return VetRecordView{
		ID:          r.ID,
		Date:        formatDay(r.Date),
		Type:        r.Type,
		Title:       r.Title,
		Description: r.Description,
		VetName:     r.VetName,
		Cost:        r.Cost,
		NextDueDate: formatDayPtr(r.NextDueDate),
		FileURL:     r.FileURL,
		CreatedAt:   r.CreatedAt,
	}
}

func toMedicationView(m domain.Medication) MedicationView {
	return MedicationView{
		ID:        m.ID,
		Name:      m.Name,
		Dosage:    m.Dosage,
		Frequency: m.Frequency,
		StartDate: formatDay(m.StartDate),
		EndDate:   formatDayPtr(m.EndDate),
		Active:    m.Active,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
	}
}

func toWeightView(w domain.WeightLog) WeightView {
	return WeightView{
		ID:        w.ID,
		Date:      formatDay(w.Date),
		WeightLbs: w.WeightLbs,
		Notes:     w.Notes,
		CreatedAt: w.CreatedAt,
	}
}

func toPhotoView(p domain.Photo) PhotoView {
	return PhotoView{
		ID:         p.ID,
		URL:        p.URL,
		StorageKey: p.StorageKey,
		Caption:    p.Caption,
		Date:       formatDay(p.Date),
		IsFavorite: p.IsFavorite,
		CreatedAt:  p.CreatedAt,
	}
}

func toMemoryView(m domain.Memory) MemoryView {
	return MemoryView{
		ID:          m.ID,
		Type:        string(m.Type),
		Title:       m.Title,
		Description: m.Description,
		Date:        formatDayPtr(m.Date),
		CreatedAt:   m.CreatedAt,
	}
}

func toDashboardResponse(d domain.Dashboard) DashboardResponse {
	resp := DashboardResponse{
		WalksThisMonth: d.WalksThisMonth,
		WalkStreak:     d.WalkStreak,
		DaysSinceVet:   d.DaysSinceVet,
		RecentPhotos:   make([]PhotoView, 0, len(d.RecentPhotos)),
		FunFacts:       d.FunFacts,
	}
	if resp.FunFacts == nil {
		resp.FunFacts = []string{}
	}
	if d.LatestWalk != nil {
		v := toWalkView(*d.LatestWalk)
		resp.LatestWalk = &v
	}
	if d.LastVetVisit != nil {
		v := toHealthRecordView(*d.LastVetVisit)
		resp.LastVetVisit = &v
	}
	if d.Today != nil {
		v := toSnapshotView(*d.Today)
		resp.Today = &v
	}
	for _, p := range d.RecentPhotos {
		resp.RecentPhotos = append(resp.RecentPhotos, toPhotoView(p))
	}
	return resp
}

func mapSlice[T, V any](items []T, fn func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
