package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/nsprdjake/bailey-dashboard/internal/auth"
	"github.com/nsprdjake/bailey-dashboard/internal/domain"
	"github.com/nsprdjake/bailey-dashboard/internal/persistence/memory"
)

var testNow = time.Date(2026, time.October, 17, 18, 0, 0, 0, time.UTC)

type fakeObjects struct {
	deleted []string
}

func (f *fakeObjects) PresignUpload(_ context.Context, key, _ string) (string, time.Time, error) {
	return "https://bucket.example.com/" + key + "?X-Amz-Signature=abc", testNow.Add(15 * time.Minute), nil
}

func (f *fakeObjects) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type testEnv struct {
	store  *memory.Store
	syncer *fakeSyncer
	mux    *http.ServeMux
}

func newTestEnv(t *testing.T, opts Options, domainOpts ...domain.Option) *testEnv {
	t.Helper()
	store := memory.New()
	domainOpts = append([]domain.Option{domain.WithClock(func() time.Time { return testNow })}, domainOpts...)
	service := domain.NewService(store, domainOpts...)
	syncer := &fakeSyncer{}
	mux := http.NewServeMux()
	NewHandler(service, syncer, opts).RegisterRoutes(mux)
	return &testEnv{store: store, syncer: syncer, mux: mux}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func claimsWith(scopes ...string) *auth.Claims {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return &auth.Claims{Subject: "owner", Scopes: set, ExpiresAt: time.Now().Add(time.Hour)}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestWalkLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, date := range []string{"2026-10-15", "2026-10-16", "2026-10-17"} {
		rr := env.do(t, http.MethodPost, "/v1/walks", CreateWalkRequest{Date: date, DurationMinutes: 30, Location: " Elm St ", Steps: 3000}, nil)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		view := decode[WalkView](t, rr)
		require.Equal(t, date, view.Date)
		require.Equal(t, "Elm St", view.Location)
		require.Equal(t, "manual", view.Source)
	}

	rr := env.do(t, http.MethodGet, "/v1/walks?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[ListWalksResponse](t, rr)
	require.Len(t, page.Items, 2)
	require.Equal(t, "2026-10-17", page.Items[0].Date)
	require.NotEmpty(t, page.NextCursor)

	rr = env.do(t, http.MethodGet, "/v1/walks?limit=2&cursor="+page.NextCursor, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	last := decode[ListWalksResponse](t, rr)
	require.Len(t, last.Items, 1)
	require.Equal(t, "2026-10-15", last.Items[0].Date)
	require.Empty(t, last.NextCursor)

	rr = env.do(t, http.MethodDelete, "/v1/walks/"+last.Items[0].ID, nil, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodDelete, "/v1/walks/"+last.Items[0].ID, nil, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodDelete, "/v1/walks/not-a-uuid", nil, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/walks?cursor=!!!", nil, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateWalkValidation(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/v1/walks", CreateWalkRequest{Date: "10/17/2026"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[map[string]string](t, rr)
	require.Equal(t, "validation_failed", body["type"])
	require.Contains(t, body["detail"], "date must be a date")
	require.Contains(t, body["detail"], "duration_minutes is required")

	req := httptest.NewRequest(http.MethodPost, "/v1/walks", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decode[map[string]string](t, rec)["type"])
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/v1/health/records", CreateHealthRecordRequest{Type: "vet_visit", Date: "2026-10-01", Title: "Annual checkup"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/v1/health/records", CreateHealthRecordRequest{Type: "grooming", Date: "2026-10-01", Title: "Bath"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/health/records?type=vet_visit", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	records := decode[ItemsResponse[HealthRecordView]](t, rr)
	require.Len(t, records.Items, 1)

	rr = env.do(t, http.MethodGet, "/v1/health/records?type=bogus", nil, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	cost := 120.5
	rr = env.do(t, http.MethodPost, "/v1/health/vet-records", CreateVetRecordRequest{Date: "2026-10-01", Type: "checkup", Title: "Annual", Cost: &cost}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, 120.5, *decode[VetRecordView](t, rr).Cost)

	ended := "2026-09-01"
	rr = env.do(t, http.MethodPost, "/v1/health/medications", CreateMedicationRequest{Name: "Apoquel", Dosage: "16mg", Frequency: "daily", StartDate: "2026-08-01", EndDate: &ended}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.False(t, decode[MedicationView](t, rr).Active)

	rr = env.do(t, http.MethodPost, "/v1/health/medications", CreateMedicationRequest{Name: "Heartgard", Dosage: "1 chew", Frequency: "monthly", StartDate: "2026-01-01"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/health/medications?active=true", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	meds := decode[ItemsResponse[MedicationView]](t, rr)
	require.Len(t, meds.Items, 1)
	require.Equal(t, "Heartgard", meds.Items[0].Name)

	rr = env.do(t, http.MethodPost, "/v1/health/weights", CreateWeightRequest{Date: "2026-10-10", WeightLbs: 62.4}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = env.do(t, http.MethodPost, "/v1/health/weights", CreateWeightRequest{Date: "2026-10-10", WeightLbs: -1}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/health/weights", nil, nil)
	require.Len(t, decode[ItemsResponse[WeightView]](t, rr).Items, 1)
}

func TestPhotoEndpoints(t *testing.T) {
	objects := &fakeObjects{}
	env := newTestEnv(t, Options{}, domain.WithObjectStore(objects))

	rr := env.do(t, http.MethodPost, "/v1/photos/uploads", CreateUploadRequest{Filename: "beach.JPG", ContentType: "image/jpeg"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	ticket := decode[UploadTicketView](t, rr)
	require.Regexp(t, `^photos/2026/10/[0-9a-f-]{36}\.jpg$`, ticket.StorageKey)
	require.Contains(t, ticket.UploadURL, "X-Amz-Signature")

	rr = env.do(t, http.MethodPost, "/v1/photos", CreatePhotoRequest{StorageKey: ticket.StorageKey}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	photo := decode[PhotoView](t, rr)
	require.Equal(t, "https://cdn.example.com/"+ticket.StorageKey, photo.URL)
	require.Equal(t, "2026-10-17", photo.Date)

	rr = env.do(t, http.MethodPost, "/v1/photos", CreatePhotoRequest{}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	fav := true
	rr = env.do(t, http.MethodPatch, "/v1/photos/"+photo.ID, UpdatePhotoRequest{IsFavorite: &fav}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decode[PhotoView](t, rr).IsFavorite)

	rr = env.do(t, http.MethodPatch, "/v1/photos/"+photo.ID, UpdatePhotoRequest{}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/photos?favorites=true", nil, nil)
	require.Len(t, decode[ItemsResponse[PhotoView]](t, rr).Items, 1)

	rr = env.do(t, http.MethodDelete, "/v1/photos/"+photo.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, []string{ticket.StorageKey}, objects.deleted)

	rr = env.do(t, http.MethodPatch, "/v1/photos/"+photo.ID, UpdatePhotoRequest{IsFavorite: &fav}, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPhotoUploadsWithoutStorage(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodPost, "/v1/photos/uploads", CreateUploadRequest{Filename: "a.png", ContentType: "image/png"}, nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "storage_unavailable", decode[map[string]string](t, rr)["type"])

	rr = env.do(t, http.MethodPost, "/v1/photos", CreatePhotoRequest{URL: "https://example.com/a.png", Caption: strPtr("Park")}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestMemoriesAndDashboard(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/v1/memories", CreateMemoryRequest{Type: "toy", Title: "Favorite toy", Description: "The squeaky duck"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = env.do(t, http.MethodPost, "/v1/memories", CreateMemoryRequest{Type: "song", Title: "x", Description: "y"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	for _, date := range []string{"2026-10-16", "2026-10-17"} {
		rr = env.do(t, http.MethodPost, "/v1/walks", CreateWalkRequest{Date: date, DurationMinutes: 20}, nil)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/v1/health/records", CreateHealthRecordRequest{Type: "vet_visit", Date: "2026-10-07", Title: "Checkup"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NoError(t, env.store.UpsertSnapshot(context.Background(), domain.ActivitySnapshot{Date: domain.Day(testNow), TotalSteps: 9000, DailyGoalSteps: 13500}))

	rr = env.do(t, http.MethodGet, "/v1/dashboard", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	dash := decode[DashboardResponse](t, rr)
	require.Equal(t, 2, dash.WalksThisMonth)
	require.Equal(t, 2, dash.WalkStreak)
	require.NotNil(t, dash.DaysSinceVet)
	require.Equal(t, 10, *dash.DaysSinceVet)
	require.Equal(t, "2026-10-17", dash.LatestWalk.Date)
	require.Equal(t, 9000, dash.Today.TotalSteps)
	require.Equal(t, []string{"The squeaky duck"}, dash.FunFacts)
}

func TestActivityEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, env.store.UpsertSnapshot(ctx, domain.ActivitySnapshot{
			Date:           domain.Day(testNow).AddDate(0, 0, -i),
			TotalSteps:     12000 + i*1000,
			DailyGoalSteps: 13500,
			GoalAchieved:   12000+i*1000 >= 13500,
		}))
	}

	rr := env.do(t, http.MethodGet, "/v1/activity?days=2", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[ActivityResponse](t, rr)
	require.Equal(t, 2, resp.Days)
	require.Len(t, resp.Snapshots, 2)
	require.Nil(t, resp.LastSync)

	rr = env.do(t, http.MethodGet, "/v1/activity?days=8", nil, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/v1/activity", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestScopesEnforcedWhenAuthEnabled(t *testing.T) {
	env := newTestEnv(t, Options{AuthEnabled: true})

	rr := env.do(t, http.MethodGet, "/v1/walks", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/walks", nil, claimsWith(auth.ScopeDashboardRead))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/v1/walks", CreateWalkRequest{Date: "2026-10-17", DurationMinutes: 10}, claimsWith(auth.ScopeDashboardRead))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", decode[map[string]string](t, rr)["type"])

	rr = env.do(t, http.MethodPost, "/v1/walks", CreateWalkRequest{Date: "2026-10-17", DurationMinutes: 10}, claimsWith(auth.ScopeDashboardWrite))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/dashboard", nil, claimsWith(auth.ScopeDashboardWrite))
	require.Equal(t, http.StatusOK, rr.Code)
}

func strPtr(s string) *string { return &s }

func TestWriteServiceErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/walks", nil)
	writeServiceError(rr, req, errors.New("list walks: dial tcp 10.0.0.5:5432: connect: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decode[map[string]string](t, rr)
	require.Equal(t, "server_error", body["type"])
	require.Equal(t, "internal server error", body["detail"])
	require.NotContains(t, rr.Body.String(), "10.0.0.5")

	rr = httptest.NewRecorder()
	writeServiceError(rr, req, domain.ErrNotFound)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
