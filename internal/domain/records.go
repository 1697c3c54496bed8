package domain

import (
	"context"
	"time"
)

// HealthRecordType is the kind of entry in the health log.
type HealthRecordType string

const (
	HealthVetVisit    HealthRecordType = "vet_visit"
	HealthVaccination HealthRecordType = "vaccination"
	HealthMedication  HealthRecordType = "medication"
	HealthWeight      HealthRecordType = "weight"
)

// HealthRecord is one health log entry. Value carries weight readings.
type HealthRecord struct {
	ID          string
	Type        HealthRecordType
	Date        time.Time
	Title       string
	Description *string
	Value       *string
	CreatedAt   time.Time
}

// VetRecord is a veterinary event with optional cost and follow-up date.
type VetRecord struct {
	ID          string
	Date        time.Time
	Type        string
	Title       string
	Description *string
	VetName     *string
	Cost        *float64
	NextDueDate *time.Time
	FileURL     *string
	CreatedAt   time.Time
}

// Medication is a prescription; Active marks ones still being given.
type Medication struct {
	ID        string
	Name      string
	Dosage    string
	Frequency string
	StartDate time.Time
	EndDate   *time.Time
	Active    bool
	Notes     *string
	CreatedAt time.Time
}

// WeightLog is a single weigh-in.
type WeightLog struct {
	ID        string
	Date      time.Time
	WeightLbs float64
	Notes     *string
	CreatedAt time.Time
}

// Photo is a gallery entry. StorageKey is empty for externally hosted URLs.
type Photo struct {
	ID         string
	URL        string
	StorageKey string
	Caption    *string
	Date       time.Time
	IsFavorite bool
	CreatedAt  time.Time
}

// PhotoPatch carries the mutable photo fields; nil leaves a field unchanged.
type PhotoPatch struct {
	Caption    *string
	IsFavorite *bool
}

// MemoryType is the kind of fun fact.
type MemoryType string

const (
	MemoryQuote       MemoryType = "quote"
	MemoryToy         MemoryType = "toy"
	MemoryFunnyMoment MemoryType = "funny_moment"
)

// Memory is a quote, favourite toy or funny moment.
type Memory struct {
	ID          string
	Type        MemoryType
	Title       string
	Description string
	Date        *time.Time
	CreatedAt   time.Time
}

// Cursor models the pagination token for date-ordered lists.
type Cursor struct {
	Date time.Time
	ID   string
}

// WalkFilter narrows a walk listing.
type WalkFilter struct {
	Since  *time.Time
	Source WalkSource
	Cursor *Cursor
	Limit  int
}

// RecordStore persists the hand-entered dashboard data.
type RecordStore interface {
	CreateWalk(ctx context.Context, walk WalkEvent) error
	ListWalks(ctx context.Context, filter WalkFilter) ([]WalkEvent, *Cursor, error)
	DeleteWalk(ctx context.Context, id string) error

	CreateHealthRecord(ctx context.Context, record HealthRecord) error
	ListHealthRecords(ctx context.Context, recordType HealthRecordType, limit int) ([]HealthRecord, error)
	CreateVetRecord(ctx context.Context, record VetRecord) error
	ListVetRecords(ctx context.Context, limit int) ([]VetRecord, error)
	CreateMedication(ctx context.Context, med Medication) error
	ListMedications(ctx context.Context, activeOnly bool) ([]Medication, error)
	CreateWeightLog(ctx context.Context, entry WeightLog) error
	ListWeightLogs(ctx context.Context, limit int) ([]WeightLog, error)

	CreatePhoto(ctx context.Context, photo Photo) error
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	ListPhotos(ctx context.Context, favoritesOnly bool, limit int) ([]Photo, error)
	UpdatePhoto(ctx context.Context, id string, patch PhotoPatch) (*Photo, error)
	DeletePhoto(ctx context.Context, id string) error

	CreateMemory(ctx context.Context, memory Memory) error
	ListMemories(ctx context.Context, limit int) ([]Memory, error)
}

// Store is the full persistence port.
type Store interface {
	ActivityStore
	RecordStore
}
