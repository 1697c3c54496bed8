// Package api exposes HTTP handlers for the Bailey dashboard.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/nsprdjake/bailey-dashboard/internal/auth"
	"github.com/nsprdjake/bailey-dashboard/internal/domain"
	"github.com/nsprdjake/bailey-dashboard/internal/logging"
	"github.com/nsprdjake/bailey-dashboard/internal/persistence"
)

const maxBodyBytes = 1 << 20

// Options tune the handler.
type Options struct {
	// AuthEnabled turns on scope checks; the auth middleware must populate claims.
	AuthEnabled    bool
	SyncRateLimit  int
	SyncRateWindow time.Duration
}

// Handler coordinates HTTP requests with the domain and sync services.
type Handler struct {
	service     *domain.Service
	syncer      Syncer
	authEnabled bool
	triggerSync http.Handler
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, syncer Syncer, opts Options) *Handler {
	h := &Handler{service: service, syncer: syncer, authEnabled: opts.AuthEnabled}
	h.triggerSync = http.HandlerFunc(h.runSync)
	if opts.SyncRateLimit > 0 && opts.SyncRateWindow > 0 {
		limiter := httprate.Limit(opts.SyncRateLimit, opts.SyncRateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeSyncError(w, http.StatusTooManyRequests, "too many sync requests, try again shortly")
			}),
		)
		h.triggerSync = limiter(h.triggerSync)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", healthz)
	mux.HandleFunc("/sync", h.sync)
	mux.HandleFunc("/v1/activity", h.activity)
	mux.HandleFunc("/v1/walks", h.walks)
	mux.HandleFunc("/v1/walks/", h.walkByID)
	mux.HandleFunc("/v1/health/records", h.healthRecords)
	mux.HandleFunc("/v1/health/vet-records", h.vetRecords)
	mux.HandleFunc("/v1/health/medications", h.medications)
	mux.HandleFunc("/v1/health/weights", h.weights)
	mux.HandleFunc("/v1/photos", h.photos)
	mux.HandleFunc("/v1/photos/uploads", h.photoUploads)
	mux.HandleFunc("/v1/photos/", h.photoByID)
	mux.HandleFunc("/v1/memories", h.memories)
	mux.HandleFunc("/v1/dashboard", h.dashboard)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize checks that the caller holds one of scopes. Reads pass with the
// write scope as well.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, scopes ...string) bool {
	if !h.authEnabled {
		return true
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return false
}

func (h *Handler) canRead(w http.ResponseWriter, r *http.Request) bool {
	return h.authorize(w, r, auth.ScopeDashboardRead, auth.ScopeDashboardWrite)
}

func (h *Handler) canWrite(w http.ResponseWriter, r *http.Request) bool {
	return h.authorize(w, r, auth.ScopeDashboardWrite)
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.canRead(w, r) {
		return
	}

	days := domain.MaxActivityDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > domain.MaxActivityDays {
			writeError(w, http.StatusBadRequest, "validation_failed", "days must be between 1 and 7")
			return
		}
		days = parsed
	}

	overview, err := h.service.ActivityOverview(r.Context(), days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityResponse(*overview))
}

func (h *Handler) walks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createWalk(w, r)
	case http.MethodGet:
		h.listWalks(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) walkByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "/v1/walks/", "walk")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if !h.canWrite(w, r) {
			return
		}
		if err := h.service.DeleteWalk(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createWalk(w http.ResponseWriter, r *http.Request) {
	if !h.canWrite(w, r) {
		return
	}
	var req CreateWalkRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	date, _ := domain.ParseDay(req.Date)

	walk, err := h.service.LogWalk(r.Context(), domain.LogWalkInput{
		Date:            date,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		Notes:           req.Notes,
		Steps:           req.Steps,
		DistanceMeters:  req.DistanceMeters,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWalkView(*walk))
}

func (h *Handler) listWalks(w http.ResponseWriter, r *http.Request) {
	if !h.canRead(w, r) {
		return
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	walks, next, err := h.service.ListWalks(r.Context(), cursor, queryLimit(r, 20, 100))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListWalksResponse{
		Items:      mapSlice(walks, toWalkView),
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) healthRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !h.canRead(w, r) {
			return
		}
		recordType := domain.HealthRecordType(r.URL.Query().Get("type"))
		switch recordType {
		case "", domain.HealthVetVisit, domain.HealthVaccination, domain.HealthMedication, domain.HealthWeight:
		default:
			writeError(w, http.StatusBadRequest, "validation_failed", "unknown health record type")
			return
		}
		records, err := h.service.ListHealthRecords(r.Context(), recordType, queryLimit(r, 50, 200))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemsResponse[HealthRecordView]{Items: mapSlice(records, toHealthRecordView)})
	case http.MethodPost:
		if !h.canWrite(w, r) {
			return
		}
		var req CreateHealthRecordRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		date, _ := domain.ParseDay(req.Date)
		record, err := h.service.AddHealthRecord(r.Context(), domain.HealthRecord{
			Type:        domain.HealthRecordType(req.Type),
			Date:        date,
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			Value:       req.Value,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toHealthRecordView(*record))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) vetRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !h.canRead(w, r) {
			return
		}
		records, err := h.service.ListVetRecords(r.Context(), queryLimit(r, 50, 200))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemsResponse[VetRecordView]{Items: mapSlice(records, toVetRecordView)})
	case http.MethodPost:
		if !h.canWrite(w, r) {
			return
		}
		var req CreateVetRecordRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		date, _ := domain.ParseDay(req.Date)
		record, err := h.service.AddVetRecord(r.Context(), domain.VetRecord{
			Date:        date,
			Type:        req.Type,
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			VetName:     req.VetName,
			Cost:        req.Cost,
			NextDueDate: parseDayPtr(req.NextDueDate),
			FileURL:     req.FileURL,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toVetRecordView(*record))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) medications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !h.canRead(w, r) {
			return
		}
		activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
		meds, err := h.service.ListMedications(r.Context(), activeOnly)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemsResponse[MedicationView]{Items: mapSlice(meds, toMedicationView)})
	case http.MethodPost:
		if !h.canWrite(w, r) {
			return
		}
		var req CreateMedicationRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		start, _ := domain.ParseDay(req.StartDate)
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		med, err := h.service.AddMedication(r.Context(), domain.Medication{
			Name:      strings.TrimSpace(req.Name),
			Dosage:    req.Dosage,
			Frequency: req.Frequency,
			StartDate: start,
			EndDate:   parseDayPtr(req.EndDate),
			Active:    active,
			Notes:     req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toMedicationView(*med))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) weights(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !h.canRead(w, r) {
			return
		}
		entries, err := h.service.ListWeights(r.Context(), queryLimit(r, 50, 500))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemsResponse[WeightView]{Items: mapSlice(entries, toWeightView)})
	case http.MethodPost:
		if !h.canWrite(w, r) {
			return
		}
		var req CreateWeightRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		date, _ := domain.ParseDay(req.Date)
		entry, err := h.service.LogWeight(r.Context(), domain.WeightLog{Date: date, WeightLbs: req.WeightLbs, Notes: req.Notes})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toWeightView(*entry))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) photos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !h.canRead(w, r) {
			return
		}
		favorites, _ := strconv.ParseBool(r.URL.Query().Get("favorites"))
		photos, err := h.service.ListPhotos(r.Context(), favorites, queryLimit(r, 60, 500))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemsResponse[PhotoView]{Items: mapSlice(photos, toPhotoView)})
	case http.MethodPost:
		if !h.canWrite(w, r) {
			return
		}
		var req CreatePhotoRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		var date time.Time
		if req.Date != "" {
			date, _ = domain.ParseDay(req.Date)
		}
		photo, err := h.service.AddPhoto(r.Context(), domain.AddPhotoInput{
			URL:        req.URL,
			StorageKey: req.StorageKey,
			Caption:    req.Caption,
			Date:       date,
			IsFavorite: req.IsFavorite,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPhotoView(*photo))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) photoUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.canWrite(w, r) {
		return
	}
	var req CreateUploadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ticket, err := h.service.PrepareUpload(r.Context(), req.Filename, req.ContentType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadTicketView{
		StorageKey: ticket.Key,
		UploadURL:  ticket.UploadURL,
		PublicURL:  ticket.PublicURL,
		ExpiresAt:  ticket.ExpiresAt,
	})
}

func (h *Handler) photoByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "/v1/photos/", "photo")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPatch:
		if !h.canWrite(w, r) {
			return
		}
		var req UpdatePhotoRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		if req.Caption == nil && req.IsFavorite == nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "caption or is_favorite is required")
			return
		}
		photo, err := h.service.UpdatePhoto(r.Context(), id, domain.PhotoPatch{Caption: req.Caption, IsFavorite: req.IsFavorite})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPhotoView(*photo))
	case http.MethodDelete:
		if !h.canWrite(w, r) {
			return
		}
		if err := h.service.DeletePhoto(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) memories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !h.canRead(w, r) {
			return
		}
		memories, err := h.service.ListMemories(r.Context(), queryLimit(r, 50, 200))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemsResponse[MemoryView]{Items: mapSlice(memories, toMemoryView)})
	case http.MethodPost:
		if !h.canWrite(w, r) {
			return
		}
		var req CreateMemoryRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		memory, err := h.service.AddMemory(r.Context(), domain.Memory{
			Type:        domain.MemoryType(req.Type),
			Title:       strings.TrimSpace(req.Title),
			Description: strings.TrimSpace(req.Description),
			Date:        parseDayPtr(req.Date),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toMemoryView(*memory))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.canRead(w, r) {
		return
	}
	dash, err := h.service.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(*dash))
}

// pathID extracts and validates the trailing UUID of an item route.
func pathID(w http.ResponseWriter, r *http.Request, prefix, noun string) (string, bool) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing "+noun+" id")
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid "+noun+" id")
		return "", false
	}
	return id, true
}

func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func parseDayPtr(value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	t, err := domain.ParseDay(*value)
	if err != nil {
		return nil
	}
	return &t
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(w, r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	if err := validateRequest(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

// decodeBody reads a JSON body. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
