package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrCenterNotFound  = errors.New("center not found")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrBookingNotFound = errors.New("booking not found")

	// ErrSlotAlreadyReserved means the availability flag was already false
	// when the reservation compare-and-set ran.
	ErrSlotAlreadyReserved = errors.New("slot already reserved")
)

// Repository contains all DB interactions needed by the service. Mutating
// call sequences that must be atomic run inside WithinTx; no domain object
// performs I/O on its own.
type Repository interface {
	// WithinTx runs fn against a repository bound to a single transaction.
	// fn returning an error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error

	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetCenterByID(ctx context.Context, id uuid.UUID) (*Center, error)

	// Slots
	GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	ListAvailableSlots(ctx context.Context, doctorID, centerID uuid.UUID, date time.Time) ([]TimeSlot, error)
	ReserveSlot(ctx context.Context, id uuid.UUID) error
	ReleaseSlot(ctx context.Context, id uuid.UUID) error
	CreateSlot(ctx context.Context, slot *TimeSlot) (*TimeSlot, error)
	SlotExists(ctx context.Context, doctorID, centerID uuid.UUID, date, start time.Time) (bool, error)

	// Bookings
	CreateBooking(ctx context.Context, b *Booking) (*Booking, error)
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateBooking(ctx context.Context, b *Booking) (*Booking, error)
	DeleteBooking(ctx context.Context, id uuid.UUID) error
	// UpdateBookingStatus is a compare-and-set on status so the transition
	// check and the mutation are one atomic operation.
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to Status, startedAt, endedAt *time.Time) (*Booking, error)

	// Conflict checks
	CountActiveBookings(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) (int, error)
	ListActiveBookingsBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Booking, error)

	// Read endpoints
	ListDoctorCenters(ctx context.Context, doctorID uuid.UUID) ([]Center, error)
	ListDoctorAvailableDates(ctx context.Context, doctorID, centerID uuid.UUID, from time.Time) ([]time.Time, error)

	// Side effects
	CreatePrivateNotes(ctx context.Context, bookingID uuid.UUID) error
}
