package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Center struct {
	ID        uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeSlot is one bookable window for a doctor at a center. Slots are created
// in bulk by the populator, flipped to unavailable exactly once when consumed
// by a booking, and never deleted once a booking references them.
type TimeSlot struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	CenterID    uuid.UUID
	Date        time.Time // date only, midnight UTC
	StartTime   time.Time
	EndTime     time.Time
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Booking struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	CenterID        uuid.UUID
	SlotID          *uuid.UUID
	ScheduledAt     time.Time
	Status          Status
	Priority        Priority
	ChiefComplaint  string
	ActualStartTime *time.Time
	ActualEndTime   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PrivateNotes is the doctor-only record created 1:1 with a booking.
// Creation is best-effort and never fails the booking itself.
type PrivateNotes struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	Remarks   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeRange is a half-open [Start, End) interval within one day.
type TimeRange struct {
	Start time.Time
	End   time.Time
}
