package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetcare/backend/internal/metrics"
	"vetcare/backend/internal/service/scheduling"
	"vetcare/backend/internal/store"
	"vetcare/backend/internal/store/memory"
)

const (
	vetID    = "00000000-0000-0000-0000-0000000000a1"
	clientID = "00000000-0000-0000-0000-00000000c001"
	petID    = "00000000-0000-0000-0000-00000000e001"
	monday   = "2026-01-05"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New(time.Second)
	now := time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)
	svc := scheduling.NewService(st, st, scheduling.Options{
		Clock:    scheduling.ClockFunc(func() time.Time { return now }),
		Location: time.UTC,
		Logger:   discard,
	})
	t.Cleanup(svc.Wait)

	opts.Logger = discard
	router, err := NewRouter(svc, opts)
	require.NoError(t, err)
	return router
}

func do(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// openMonday gives the veterinarian a Monday from 08:00 to 10:00.
func openMonday(t *testing.T, router http.Handler) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/v1/veterinarians/"+vetID+"/availability", gin.H{
		"day_of_week": 1,
		"start_time":  "08:00",
		"end_time":    "10:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func availableTimes(t *testing.T, router http.Handler, duration string) []string {
	t.Helper()
	rec := do(t, router, http.MethodGet, "/api/v1/available-times?veterinary_id="+vetID+"&date="+monday+"&duration_minutes="+duration, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[[]string](t, rec)
}

func bookBody(start string, minutes int) gin.H {
	return gin.H{
		"veterinary_id":    vetID,
		"client_id":        clientID,
		"pet_id":           petID,
		"appointment_type": "vaccination",
		"date":             monday,
		"start_time":       start,
		"duration_minutes": minutes,
	}
}

func TestAvailableTimes(t *testing.T) {
	router := newTestRouter(t, Options{})
	openMonday(t, router)

	assert.Equal(t, []string{"08:00", "08:30", "09:00", "09:30"}, availableTimes(t, router, "30"))
	assert.Equal(t, []string{"08:00", "08:30", "09:00"}, availableTimes(t, router, "45"))
	assert.Equal(t, []string{}, availableTimes(t, router, "180"))
}

func TestAvailableTimesValidation(t *testing.T) {
	router := newTestRouter(t, Options{})

	cases := map[string]struct {
		query   string
		message string
	}{
		"missing duration": {"veterinary_id=" + vetID + "&date=" + monday, "duration_minutes is required"},
		"zero duration":    {"veterinary_id=" + vetID + "&date=" + monday + "&duration_minutes=0", "duration_minutes is required"},
		"bad date":         {"veterinary_id=" + vetID + "&date=2026-13-01&duration_minutes=30", "date must be a date as YYYY-MM-DD"},
		"bad vet":          {"veterinary_id=nope&date=" + monday + "&duration_minutes=30", "veterinary_id must be a UUID"},
		"too long":         {"veterinary_id=" + vetID + "&date=" + monday + "&duration_minutes=2000", "duration_minutes must be lte 1440"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/api/v1/available-times?"+tc.query, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Equal(t, "invalid_input", body.Error)
			assert.Contains(t, body.Message, tc.message)
		})
	}
}

func TestBookAppointmentAndConflict(t *testing.T) {
	router := newTestRouter(t, Options{})
	openMonday(t, router)

	rec := do(t, router, http.MethodPost, "/api/v1/appointments", bookBody("08:00", 30))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[appointmentResponse](t, rec)
	assert.Equal(t, "scheduled", string(appt.Status))
	assert.Equal(t, "08:00", appt.StartTime.String())
	assert.Equal(t, "08:30", appt.EndTime.String())
	assert.Equal(t, vetID, appt.VeterinaryID.String())

	rec = do(t, router, http.MethodPost, "/api/v1/appointments", bookBody("08:15", 30))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	body := decode[errorBody](t, rec)
	assert.Equal(t, "conflict", body.Error)
	assert.Equal(t, msgSlotTaken, body.Message)

	assert.Equal(t, []string{"08:30", "09:00", "09:30"}, availableTimes(t, router, "30"))

	rec = do(t, router, http.MethodGet, "/api/v1/appointments?veterinary_id="+vetID+"&date="+monday, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]appointmentResponse](t, rec), 1)
}

func TestBookAppointmentOutsideAvailability(t *testing.T) {
	router := newTestRouter(t, Options{})
	openMonday(t, router)

	rec := do(t, router, http.MethodPost, "/api/v1/appointments", bookBody("09:45", 30))
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "conflict", body.Error)
	assert.NotEqual(t, msgSlotTaken, body.Message)
}

func TestBookAppointmentValidation(t *testing.T) {
	router := newTestRouter(t, Options{})
	openMonday(t, router)

	body := bookBody("8am", 30)
	rec := do(t, router, http.MethodPost, "/api/v1/appointments", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Message, "start_time must be a time of day as HH:MM")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	raw := httptest.NewRecorder()
	router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestBookAppointmentIdempotencyKey(t *testing.T) {
	router := newTestRouter(t, Options{})
	openMonday(t, router)

	first := do(t, router, http.MethodPost, "/api/v1/appointments", bookBody("09:00", 30), idempotencyKeyHeader, "req-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := do(t, router, http.MethodPost, "/api/v1/appointments", bookBody("09:00", 30), idempotencyKeyHeader, "req-1")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())

	assert.Equal(t, decode[appointmentResponse](t, first).ID, decode[appointmentResponse](t, second).ID)

	other := do(t, router, http.MethodPost, "/api/v1/appointments", bookBody("08:00", 30), idempotencyKeyHeader, "req-1")
	assert.Equal(t, http.StatusConflict, other.Code)
}

func TestAppointmentTransitions(t *testing.T) {
	router := newTestRouter(t, Options{})
	openMonday(t, router)

	rec := do(t, router, http.MethodPost, "/api/v1/appointments", bookBody("08:00", 30))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[appointmentResponse](t, rec).ID.String()

	rec = do(t, router, http.MethodPost, "/api/v1/appointments/"+id+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decode[appointmentResponse](t, rec)
	assert.Equal(t, "confirmed", string(confirmed.Status))
	assert.NotNil(t, confirmed.ConfirmedAt)

	rec = do(t, router, http.MethodPost, "/api/v1/appointments/"+id+"/confirm", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "invalid_transition", body.Error)
	assert.Equal(t, "confirmed", body.CurrentStatus)
	assert.Equal(t, "confirmed", body.RequestedStatus)

	rec = do(t, router, http.MethodPost, "/api/v1/appointments/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", string(decode[appointmentResponse](t, rec).Status))

	rec = do(t, router, http.MethodGet, "/api/v1/appointments/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", string(decode[appointmentResponse](t, rec).Status))

	assert.Equal(t, []string{"08:00", "08:30", "09:00", "09:30"}, availableTimes(t, router, "30"))
}

func TestRescheduleAppointment(t *testing.T) {
	router := newTestRouter(t, Options{})
	openMonday(t, router)

	rec := do(t, router, http.MethodPost, "/api/v1/appointments", bookBody("08:00", 30))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[appointmentResponse](t, rec).ID.String()

	rec = do(t, router, http.MethodPost, "/api/v1/appointments/"+id+"/reschedule", gin.H{"date": monday, "start_time": "09:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[appointmentResponse](t, rec)
	assert.Equal(t, "09:00", moved.StartTime.String())
	assert.Equal(t, "09:30", moved.EndTime.String())

	assert.Equal(t, []string{"08:00", "08:30", "09:30"}, availableTimes(t, router, "30"))
}

func TestAppointmentNotFoundAndBadID(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := do(t, router, http.MethodGet, "/api/v1/appointments/11111111-1111-1111-1111-111111111111", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, rec).Error)

	rec = do(t, router, http.MethodPost, "/api/v1/appointments/not-a-uuid/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityAndHolidayAdmin(t *testing.T) {
	router := newTestRouter(t, Options{})
	openMonday(t, router)

	rec := do(t, router, http.MethodGet, "/api/v1/veterinarians/"+vetID+"/availability", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]availabilityResponse](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].DayOfWeek)

	rec = do(t, router, http.MethodPost, "/api/v1/veterinarians/"+vetID+"/availability", gin.H{
		"start_time": "08:00",
		"end_time":   "10:00",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "day_of_week is required")

	rec = do(t, router, http.MethodPost, "/api/v1/veterinarians/"+vetID+"/holidays", gin.H{
		"start_date": monday,
		"end_date":   monday,
		"reason":     "conference",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	holiday := decode[holidayResponse](t, rec)
	assert.Equal(t, []string{}, availableTimes(t, router, "30"))

	rec = do(t, router, http.MethodGet, "/api/v1/veterinarians/"+vetID+"/holidays?from=2026-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]holidayResponse](t, rec), 1)

	rec = do(t, router, http.MethodDelete, "/api/v1/veterinarians/"+vetID+"/holidays/"+holiday.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, availableTimes(t, router, "30"), 4)

	rec = do(t, router, http.MethodDelete, "/api/v1/veterinarians/"+vetID+"/availability/"+rows[0].ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{}, availableTimes(t, router, "30"))
}

func TestHealthzAndMetrics(t *testing.T) {
	router := newTestRouter(t, Options{Metrics: metrics.New().Handler()})

	rec := do(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	down := newTestRouter(t, Options{Ready: func(ctx context.Context) error { return errors.New("db down") }})
	rec = do(t, down, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := do(t, router, http.MethodGet, "/healthz", nil, requestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = do(t, router, http.MethodGet, "/healthz", nil)
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)
}

func TestErrorResponseMapping(t *testing.T) {
	status, body := errorResponse(&scheduling.Error{Kind: scheduling.KindStorageUnavailable, Msg: "storage unavailable", Err: errors.New("dial tcp")})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, msgUnavailable, body.Message)

	status, body = errorResponse(&scheduling.Error{Kind: scheduling.KindStorageUnavailable, Msg: "appointment is being changed by another request", Err: store.ErrBusy})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, msgUnavailable, body.Message)
	assert.NotEqual(t, msgSlotTaken, body.Message)

	status, body = errorResponse(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal", body.Error)
}
