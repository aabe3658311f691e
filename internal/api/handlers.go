package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vitigo/clinic-scheduler/internal/access"
	"github.com/vitigo/clinic-scheduler/internal/booking"
	redisclient "github.com/vitigo/clinic-scheduler/internal/redis"
)

// BookingService is the slice of the coordinator the HTTP layer needs.
type BookingService interface {
	CreateBooking(ctx context.Context, actor access.Actor, p booking.CreateParams) (*booking.Booking, error)
	EditBooking(ctx context.Context, actor access.Actor, id uuid.UUID, p booking.EditParams) (*booking.Booking, error)
	DeleteBooking(ctx context.Context, actor access.Actor, id uuid.UUID) error
	Transition(ctx context.Context, actor access.Actor, id uuid.UUID, to booking.Status) (*booking.Booking, error)
	GetBooking(ctx context.Context, actor access.Actor, id uuid.UUID) (*booking.Booking, error)
	ListAvailableSlots(ctx context.Context, doctorID, centerID uuid.UUID, date time.Time) ([]booking.TimeSlot, error)
	ListDoctorCenters(ctx context.Context, doctorID uuid.UUID) ([]booking.Center, error)
	ListDoctorAvailableDates(ctx context.Context, doctorID, centerID uuid.UUID) ([]time.Time, error)
	PopulateSlots(ctx context.Context, actor access.Actor, p booking.PopulateParams) (int, error)
}

func createBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params := booking.CreateParams{
			ScheduledAt:    req.ScheduledAt,
			Priority:       booking.Priority(req.Priority),
			Urgent:         req.Urgent,
			ChiefComplaint: req.ChiefComplaint,
		}

		var err error
		if params.CenterID, err = uuid.Parse(req.CenterID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_center_id", "center_id must be a valid UUID")
			return
		}
		if req.PatientID != "" {
			if params.PatientID, err = uuid.Parse(req.PatientID); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
		}
		if req.DoctorID != "" {
			if params.DoctorID, err = uuid.Parse(req.DoctorID); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
		}
		if req.SlotID != "" {
			slotID, err := uuid.Parse(req.SlotID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
				return
			}
			params.SlotID = &slotID
		}

		b, err := svc.CreateBooking(r.Context(), ActorFromContext(r.Context()), params)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func editBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req EditBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var params booking.EditParams
		params.ScheduledAt = req.ScheduledAt
		params.ChiefComplaint = req.ChiefComplaint
		if req.Priority != nil {
			p := booking.Priority(*req.Priority)
			params.Priority = &p
		}
		if req.DoctorID != nil {
			doctorID, err := uuid.Parse(*req.DoctorID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			params.DoctorID = &doctorID
		}
		if req.CenterID != nil {
			centerID, err := uuid.Parse(*req.CenterID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_center_id", "center_id must be a valid UUID")
				return
			}
			params.CenterID = &centerID
		}
		if req.SlotID != nil {
			slotID, err := uuid.Parse(*req.SlotID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
				return
			}
			params.SlotID = &slotID
		}

		b, err := svc.EditBooking(r.Context(), ActorFromContext(r.Context()), id, params)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func deleteBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.DeleteBooking(r.Context(), ActorFromContext(r.Context()), id); err != nil {
			handleBookingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func statusUpdateHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req StatusUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		b, err := svc.Transition(r.Context(), ActorFromContext(r.Context()), id, booking.Status(req.Status))
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func getBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		b, err := svc.GetBooking(r.Context(), ActorFromContext(r.Context()), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func listSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		centerID, err := uuid.Parse(r.URL.Query().Get("center_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_center_id", "center_id must be a valid UUID")
			return
		}
		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.ListAvailableSlots(r.Context(), doctorID, centerID, date)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, map[string]any{"timeslots": resp})
	}
}

func listDoctorCentersHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		centers, err := svc.ListDoctorCenters(r.Context(), doctorID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := make([]CenterResponse, 0, len(centers))
		for _, c := range centers {
			resp = append(resp, CenterResponse{ID: c.ID, Name: c.Name})
		}
		writeJSON(w, http.StatusOK, map[string]any{"centers": resp})
	}
}

func listDoctorDatesHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		centerID, err := uuid.Parse(r.URL.Query().Get("center_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_center_id", "center_id must be a valid UUID")
			return
		}

		dates, err := svc.ListDoctorAvailableDates(r.Context(), doctorID, centerID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := make([]string, 0, len(dates))
		for _, d := range dates {
			resp = append(resp, d.Format("2006-01-02"))
		}
		writeJSON(w, http.StatusOK, map[string]any{"available_dates": resp})
	}
}

func populateSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PopulateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params := booking.PopulateParams{
			DayStart:     time.Duration(req.DayStartHour) * time.Hour,
			DayEnd:       time.Duration(req.DayEndHour) * time.Hour,
			SlotDuration: time.Duration(req.SlotMinutes) * time.Minute,
		}

		var err error
		if params.From, err = time.Parse("2006-01-02", req.From); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD")
			return
		}
		if params.To, err = time.Parse("2006-01-02", req.To); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "to must be YYYY-MM-DD")
			return
		}
		for _, asg := range req.Assignments {
			doctorID, err := uuid.Parse(asg.DoctorID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			centerID, err := uuid.Parse(asg.CenterID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_center_id", "center_id must be a valid UUID")
				return
			}
			params.Assignments = append(params.Assignments, booking.DoctorCenter{DoctorID: doctorID, CenterID: centerID})
		}

		created, err := svc.PopulateSlots(r.Context(), ActorFromContext(r.Context()), params)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, PopulateSlotsResponse{Created: created})
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// handleBookingError maps every distinguishable error kind to its HTTP shape.
// Nothing falls back to a generic failure except genuinely unknown errors.
func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrDenied):
		writeError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrCenterNotFound):
		writeError(w, http.StatusNotFound, "center_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrMissingDoctor),
		errors.Is(err, booking.ErrMissingPatient):
		writeError(w, http.StatusUnprocessableEntity, "missing_reference", err.Error())
	case errors.Is(err, booking.ErrPastScheduling):
		writeError(w, http.StatusUnprocessableEntity, "past_scheduling", err.Error())
	case errors.Is(err, booking.ErrInvalidSlotRange):
		writeError(w, http.StatusUnprocessableEntity, "invalid_slot_range", err.Error())
	case errors.Is(err, booking.ErrDoctorUnavailable):
		writeError(w, http.StatusConflict, "doctor_unavailable", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrSlotAlreadyReserved):
		writeError(w, http.StatusConflict, "slot_already_reserved", err.Error())
	case errors.Is(err, booking.ErrCenterMismatch):
		writeError(w, http.StatusConflict, "center_mismatch", err.Error())
	case errors.Is(err, booking.ErrDoctorMismatch):
		writeError(w, http.StatusConflict, "doctor_mismatch", err.Error())
	case errors.Is(err, booking.ErrDoctorBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "doctor_being_booked", "doctor is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrImmutableBooking):
		writeError(w, http.StatusConflict, "immutable_booking", err.Error())
	case errors.Is(err, booking.ErrPastDeletion):
		writeError(w, http.StatusConflict, "past_deletion", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
