package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vitigo/clinic-scheduler/internal/access"
	"github.com/vitigo/clinic-scheduler/internal/booking"
	"github.com/vitigo/clinic-scheduler/internal/logging"
)

const testSecret = "test-secret"

// stubService lets each test pin just the methods it exercises.
type stubService struct {
	createFn     func(ctx context.Context, actor access.Actor, p booking.CreateParams) (*booking.Booking, error)
	editFn       func(ctx context.Context, actor access.Actor, id uuid.UUID, p booking.EditParams) (*booking.Booking, error)
	deleteFn     func(ctx context.Context, actor access.Actor, id uuid.UUID) error
	transitionFn func(ctx context.Context, actor access.Actor, id uuid.UUID, to booking.Status) (*booking.Booking, error)
	getFn        func(ctx context.Context, actor access.Actor, id uuid.UUID) (*booking.Booking, error)
	listSlotsFn  func(ctx context.Context, doctorID, centerID uuid.UUID, date time.Time) ([]booking.TimeSlot, error)
	centersFn    func(ctx context.Context, doctorID uuid.UUID) ([]booking.Center, error)
	datesFn      func(ctx context.Context, doctorID, centerID uuid.UUID) ([]time.Time, error)
	populateFn   func(ctx context.Context, actor access.Actor, p booking.PopulateParams) (int, error)
}

func (s *stubService) CreateBooking(ctx context.Context, actor access.Actor, p booking.CreateParams) (*booking.Booking, error) {
	return s.createFn(ctx, actor, p)
}

func (s *stubService) EditBooking(ctx context.Context, actor access.Actor, id uuid.UUID, p booking.EditParams) (*booking.Booking, error) {
	return s.editFn(ctx, actor, id, p)
}

func (s *stubService) DeleteBooking(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	return s.deleteFn(ctx, actor, id)
}

func (s *stubService) Transition(ctx context.Context, actor access.Actor, id uuid.UUID, to booking.Status) (*booking.Booking, error) {
	return s.transitionFn(ctx, actor, id, to)
}

func (s *stubService) GetBooking(ctx context.Context, actor access.Actor, id uuid.UUID) (*booking.Booking, error) {
	return s.getFn(ctx, actor, id)
}

func (s *stubService) ListAvailableSlots(ctx context.Context, doctorID, centerID uuid.UUID, date time.Time) ([]booking.TimeSlot, error) {
	return s.listSlotsFn(ctx, doctorID, centerID, date)
}

func (s *stubService) ListDoctorCenters(ctx context.Context, doctorID uuid.UUID) ([]booking.Center, error) {
	return s.centersFn(ctx, doctorID)
}

func (s *stubService) ListDoctorAvailableDates(ctx context.Context, doctorID, centerID uuid.UUID) ([]time.Time, error) {
	return s.datesFn(ctx, doctorID, centerID)
}

func (s *stubService) PopulateSlots(ctx context.Context, actor access.Actor, p booking.PopulateParams) (int, error) {
	return s.populateFn(ctx, actor, p)
}

func newTestRouter(t *testing.T, svc BookingService) http.Handler {
	t.Helper()
	return NewRouter(RouterConfig{
		Service:   svc,
		JWTSecret: testSecret,
		Logger:    logging.Nop(),
		Env:       "test",
		Version:   "test",
	})
}

func signToken(t *testing.T, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  uuid.NewString(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateBookingEndpoint(t *testing.T) {
	scheduledAt := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	patientID := uuid.New()
	doctorID := uuid.New()
	centerID := uuid.New()

	svc := &stubService{
		createFn: func(ctx context.Context, actor access.Actor, p booking.CreateParams) (*booking.Booking, error) {
			require.Equal(t, access.RoleAdministrator, actor.Role)
			require.Equal(t, patientID, p.PatientID)
			require.Equal(t, doctorID, p.DoctorID)
			return &booking.Booking{
				ID:          uuid.New(),
				PatientID:   p.PatientID,
				DoctorID:    p.DoctorID,
				CenterID:    p.CenterID,
				ScheduledAt: p.ScheduledAt,
				Status:      booking.StatusScheduled,
				Priority:    booking.PriorityMedium,
			}, nil
		},
	}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/bookings", signToken(t, "ADMINISTRATOR"), map[string]any{
		"patient_id":   patientID.String(),
		"doctor_id":    doctorID.String(),
		"center_id":    centerID.String(),
		"scheduled_at": scheduledAt,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "SCHEDULED", resp.Status)
	require.Equal(t, patientID, resp.PatientID)
}

func TestCreateBookingRequiresAuth(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	rec := doRequest(t, router, http.MethodPost, "/bookings", "", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateBookingRejectsForgedToken(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"role": "ADMINISTRATOR",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/bookings", forged, map[string]any{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateBookingBadUUID(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	rec := doRequest(t, router, http.MethodPost, "/bookings", signToken(t, "ADMINISTRATOR"), map[string]any{
		"center_id":    "not-a-uuid",
		"scheduled_at": time.Now().Add(time.Hour),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"denied", access.ErrDenied, http.StatusForbidden},
		{"doctor not found", booking.ErrDoctorNotFound, http.StatusNotFound},
		{"patient not found", booking.ErrPatientNotFound, http.StatusNotFound},
		{"center not found", booking.ErrCenterNotFound, http.StatusNotFound},
		{"missing doctor", booking.ErrMissingDoctor, http.StatusUnprocessableEntity},
		{"past scheduling", booking.ErrPastScheduling, http.StatusUnprocessableEntity},
		{"doctor unavailable", booking.ErrDoctorUnavailable, http.StatusConflict},
		{"slot unavailable", booking.ErrSlotUnavailable, http.StatusConflict},
		{"slot reserved", booking.ErrSlotAlreadyReserved, http.StatusConflict},
		{"center mismatch", booking.ErrCenterMismatch, http.StatusConflict},
		{"doctor mismatch", booking.ErrDoctorMismatch, http.StatusConflict},
		{"doctor busy", booking.ErrDoctorBusy, http.StatusConflict},
	}

	centerID := uuid.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{
				createFn: func(ctx context.Context, actor access.Actor, p booking.CreateParams) (*booking.Booking, error) {
					return nil, tc.err
				},
			}
			router := newTestRouter(t, svc)

			rec := doRequest(t, router, http.MethodPost, "/bookings", signToken(t, "ADMINISTRATOR"), map[string]any{
				"center_id":    centerID.String(),
				"scheduled_at": time.Now().Add(time.Hour),
			})
			require.Equal(t, tc.code, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Error)
		})
	}
}

func TestStatusUpdateEndpoint(t *testing.T) {
	id := uuid.New()
	started := time.Now().UTC().Truncate(time.Second)

	svc := &stubService{
		transitionFn: func(ctx context.Context, actor access.Actor, bid uuid.UUID, to booking.Status) (*booking.Booking, error) {
			require.Equal(t, id, bid)
			require.Equal(t, booking.StatusInProgress, to)
			return &booking.Booking{
				ID:              bid,
				Status:          booking.StatusInProgress,
				ActualStartTime: &started,
			}, nil
		},
	}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/bookings/"+id.String()+"/status", signToken(t, "DOCTOR"), map[string]string{
		"status": "IN_PROGRESS",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "IN_PROGRESS", resp.Status)
	require.NotNil(t, resp.ActualStartTime)
}

func TestStatusUpdateConflict(t *testing.T) {
	svc := &stubService{
		transitionFn: func(ctx context.Context, actor access.Actor, id uuid.UUID, to booking.Status) (*booking.Booking, error) {
			return nil, booking.ErrInvalidTransition
		},
	}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/bookings/"+uuid.NewString()+"/status", signToken(t, "DOCTOR"), map[string]string{
		"status": "COMPLETED",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteBookingEndpoint(t *testing.T) {
	svc := &stubService{
		deleteFn: func(ctx context.Context, actor access.Actor, id uuid.UUID) error {
			return nil
		},
	}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodDelete, "/bookings/"+uuid.NewString(), signToken(t, "ADMINISTRATOR"), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListSlotsEndpoint(t *testing.T) {
	doctorID := uuid.New()
	centerID := uuid.New()
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	svc := &stubService{
		listSlotsFn: func(ctx context.Context, d, c uuid.UUID, date time.Time) ([]booking.TimeSlot, error) {
			require.Equal(t, doctorID, d)
			require.Equal(t, centerID, c)
			return []booking.TimeSlot{
				{ID: uuid.New(), DoctorID: d, CenterID: c, Date: day, StartTime: day.Add(9 * time.Hour), EndTime: day.Add(10 * time.Hour), IsAvailable: true},
			}, nil
		},
	}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodGet,
		"/doctors/"+doctorID.String()+"/slots?center_id="+centerID.String()+"&date=2026-09-07",
		signToken(t, "PATIENT"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Timeslots []SlotResponse `json:"timeslots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Timeslots, 1)
	require.Equal(t, "2026-09-07", resp.Timeslots[0].Date)
}

func TestListSlotsBadDate(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	rec := doRequest(t, router, http.MethodGet,
		"/doctors/"+uuid.NewString()+"/slots?center_id="+uuid.NewString()+"&date=September-7",
		signToken(t, "PATIENT"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDoctorDatesEndpoint(t *testing.T) {
	doctorID := uuid.New()
	centerID := uuid.New()

	svc := &stubService{
		datesFn: func(ctx context.Context, d, c uuid.UUID) ([]time.Time, error) {
			return []time.Time{
				time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
				time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodGet,
		"/doctors/"+doctorID.String()+"/dates?center_id="+centerID.String(),
		signToken(t, "PATIENT"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AvailableDates []string `json:"available_dates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"2026-09-07", "2026-09-08"}, resp.AvailableDates)
}

func TestPopulateSlotsEndpoint(t *testing.T) {
	doctorID := uuid.New()
	centerID := uuid.New()

	svc := &stubService{
		populateFn: func(ctx context.Context, actor access.Actor, p booking.PopulateParams) (int, error) {
			require.Len(t, p.Assignments, 1)
			require.Equal(t, doctorID, p.Assignments[0].DoctorID)
			require.Equal(t, 10*time.Hour, p.DayStart)
			require.Equal(t, 30*time.Minute, p.SlotDuration)
			return 42, nil
		},
	}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/slots/populate", signToken(t, "ADMINISTRATOR"), map[string]any{
		"assignments": []map[string]string{
			{"doctor_id": doctorID.String(), "center_id": centerID.String()},
		},
		"from":           "2026-09-07",
		"to":             "2026-09-11",
		"day_start_hour": 10,
		"day_end_hour":   16,
		"slot_minutes":   30,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp PopulateSlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 42, resp.Created)
}

func TestRequestIDPropagation(t *testing.T) {
	svc := &stubService{
		getFn: func(ctx context.Context, actor access.Actor, id uuid.UUID) (*booking.Booking, error) {
			return &booking.Booking{ID: id, Status: booking.StatusScheduled}, nil
		},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/bookings/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "PATIENT"))
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
