package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nsprdjake/bailey-dashboard/internal/auth"
	"github.com/nsprdjake/bailey-dashboard/internal/domain"
	"github.com/nsprdjake/bailey-dashboard/internal/logging"
	syncsvc "github.com/nsprdjake/bailey-dashboard/internal/sync"
	"github.com/nsprdjake/bailey-dashboard/internal/tryfi"
)

// Syncer runs vendor syncs.
type Syncer interface {
	Run(ctx context.Context, req syncsvc.Request) (*syncsvc.Result, error)
	Status(ctx context.Context) syncsvc.Status
}

// SyncRequest is the optional body of POST /sync.
type SyncRequest struct {
	Days   int  `json:"days" validate:"omitempty,min=1,max=7"`
	DryRun bool `json:"dryRun"`
}

// SyncResponse is the envelope the dashboard's sync button expects.
type SyncResponse struct {
	Success  bool            `json:"success"`
	Data     *tryfi.Snapshot `json:"data,omitempty"`
	Stats    *syncsvc.Stats  `json:"stats,omitempty"`
	Days     int             `json:"days,omitempty"`
	DryRun   bool            `json:"dryRun,omitempty"`
	RunID    string          `json:"runId,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Debug    []string        `json:"debug,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// SyncStatusResponse answers GET /sync.
type SyncStatusResponse struct {
	Success bool           `json:"success"`
	Data    SyncStatusView `json:"data"`
}

// SyncStatusView describes the integration.
type SyncStatusView struct {
	Configured  bool         `json:"configured"`
	Reachable   bool         `json:"reachable"`
	DefaultDays int          `json:"defaultDays"`
	LastSync    *SyncRunView `json:"lastSync"`
}

// SyncRunView is a sync log entry in the sync envelope's casing.
type SyncRunView struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	RecordsSynced int        `json:"recordsSynced"`
	ErrorMessage  *string    `json:"errorMessage,omitempty"`
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.triggerSync.ServeHTTP(w, r)
	case http.MethodGet:
		h.syncStatus(w, r)
	default:
		writeSyncError(w, http.StatusMethodNotAllowed, "unsupported method")
	}
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeSync(w, r, auth.ScopeSyncTrigger) {
		return
	}

	var req SyncRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeSyncError(w, http.StatusBadRequest, "unable to parse body")
		return
	}
	if err := validateRequest(&req); err != nil {
		writeSyncError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.syncer.Run(r.Context(), syncsvc.Request{Days: req.Days, DryRun: req.DryRun})
	if err != nil {
		status, message := syncFailure(err)
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("sync request failed")
		}
		writeSyncError(w, status, message)
		return
	}

	snapshot := result.Snapshot
	stats := result.Stats
	writeJSON(w, http.StatusOK, SyncResponse{
		Success:  true,
		Data:     &snapshot,
		Stats:    &stats,
		Days:     result.Days,
		DryRun:   result.DryRun,
		RunID:    result.RunID,
		Warnings: result.Warnings,
		Debug:    result.Debug,
	})
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeSync(w, r, auth.ScopeDashboardRead, auth.ScopeSyncTrigger) {
		return
	}
	status := h.syncer.Status(r.Context())
	writeJSON(w, http.StatusOK, SyncStatusResponse{
		Success: true,
		Data: SyncStatusView{
			Configured:  status.Configured,
			Reachable:   status.Reachable,
			DefaultDays: status.DefaultDays,
			LastSync:    toSyncRunView(status.LastRun),
		},
	})
}

func (h *Handler) authorizeSync(w http.ResponseWriter, r *http.Request, scopes ...string) bool {
	if !h.authEnabled {
		return true
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeSyncError(w, http.StatusUnauthorized, "missing bearer token")
		return false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return true
		}
	}
	writeSyncError(w, http.StatusForbidden, "scope "+scopes[0]+" required")
	return false
}

// syncFailure maps a sync error onto an HTTP status and the message shown to
// the caller. Only our own error types and vendor-reported messages are
// echoed; anything else is logged and replaced with a fixed message.
func syncFailure(err error) (int, string) {
	var cfgErr *syncsvc.ConfigurationError
	var petErr *syncsvc.PetNotFoundError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, cfgErr.Error()
	case errors.As(err, &petErr):
		return http.StatusNotFound, petErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "vendor request timed out"
	case syncsvc.IsVendorError(err):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "sync failed; see server logs"
	}
}

func toSyncRunView(run *domain.SyncRun) *SyncRunView {
	if run == nil {
		return nil
	}
	return &SyncRunView{
		ID:            run.ID,
		Status:        string(run.Status),
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
		RecordsSynced: run.RecordsSynced,
		ErrorMessage:  run.ErrorMessage,
	}
}

func writeSyncError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, SyncResponse{Success: false, Error: message})
}
