package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/vitigo/clinic-scheduler/internal/booking"
)

type CreateBookingRequest struct {
	PatientID      string    `json:"patient_id,omitempty"`
	DoctorID       string    `json:"doctor_id,omitempty"`
	CenterID       string    `json:"center_id"`
	SlotID         string    `json:"slot_id,omitempty"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Priority       string    `json:"priority,omitempty"`
	Urgent         bool      `json:"urgent,omitempty"`
	ChiefComplaint string    `json:"chief_complaint,omitempty"`
}

type EditBookingRequest struct {
	DoctorID       *string    `json:"doctor_id,omitempty"`
	CenterID       *string    `json:"center_id,omitempty"`
	SlotID         *string    `json:"slot_id,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Priority       *string    `json:"priority,omitempty"`
	ChiefComplaint *string    `json:"chief_complaint,omitempty"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type PopulateSlotsRequest struct {
	Assignments []struct {
		DoctorID string `json:"doctor_id"`
		CenterID string `json:"center_id"`
	} `json:"assignments"`
	From         string `json:"from"` // YYYY-MM-DD
	To           string `json:"to"`   // YYYY-MM-DD
	DayStartHour int    `json:"day_start_hour,omitempty"`
	DayEndHour   int    `json:"day_end_hour,omitempty"`
	SlotMinutes  int    `json:"slot_minutes,omitempty"`
}

type PopulateSlotsResponse struct {
	Created int `json:"created"`
}

type BookingResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	CenterID        uuid.UUID  `json:"center_id"`
	SlotID          *uuid.UUID `json:"slot_id,omitempty"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	ChiefComplaint  string     `json:"chief_complaint,omitempty"`
	ActualStartTime *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time `json:"actual_end_time,omitempty"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		PatientID:       b.PatientID,
		DoctorID:        b.DoctorID,
		CenterID:        b.CenterID,
		SlotID:          b.SlotID,
		ScheduledAt:     b.ScheduledAt,
		Status:          string(b.Status),
		Priority:        string(b.Priority),
		ChiefComplaint:  b.ChiefComplaint,
		ActualStartTime: b.ActualStartTime,
		ActualEndTime:   b.ActualEndTime,
	}
}

type SlotResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	CenterID    uuid.UUID `json:"center_id"`
	Date        string    `json:"date"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
}

func toSlotResponse(s booking.TimeSlot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		DoctorID:    s.DoctorID,
		CenterID:    s.CenterID,
		Date:        s.Date.Format("2006-01-02"),
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		IsAvailable: s.IsAvailable,
	}
}

type CenterResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
