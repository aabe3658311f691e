package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitigo/clinic-scheduler/internal/access"
	redisclient "github.com/vitigo/clinic-scheduler/internal/redis"
)

var (
	ErrPastScheduling    = errors.New("booking must be scheduled for a future time")
	ErrDoctorUnavailable = errors.New("doctor is not available at the scheduled time")
	ErrSlotUnavailable   = errors.New("slot is not available")
	ErrCenterMismatch    = errors.New("slot does not belong to the booking center")
	ErrDoctorMismatch    = errors.New("slot does not belong to the booking doctor")
	ErrImmutableBooking  = errors.New("booking can no longer be edited")
	ErrPastDeletion      = errors.New("cannot delete a past booking")
	ErrMissingDoctor     = errors.New("a doctor is required")
	ErrMissingPatient    = errors.New("a patient is required")
	ErrDoctorBusy        = errors.New("doctor is currently being booked, please retry")
)

// Service coordinates booking creation, edits, deletion and lifecycle
// transitions. Every mutating operation takes an explicit actor and runs its
// conflict-sensitive section under the doctor lock inside one transaction, so
// a booking row without its slot reservation (or the reverse) is never
// observable.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	buffer time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, buffer time.Duration, log zerolog.Logger) *Service {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Service{
		repo:   repo,
		locker: locker,
		buffer: buffer,
		log:    log,
		now:    time.Now,
	}
}

type CreateParams struct {
	PatientID      uuid.UUID // zero value defaults to the actor when they are a patient
	DoctorID       uuid.UUID // zero value defaults to the actor when they are a doctor
	CenterID       uuid.UUID
	SlotID         *uuid.UUID
	ScheduledAt    time.Time
	Priority       Priority
	Urgent         bool
	ChiefComplaint string
}

// CreateBooking validates and creates a consultation booking in SCHEDULED
// state, reserving the supplied slot in the same transaction. Validations
// fast-fail in order: permissions, references, scheduling time, doctor
// availability, slot state.
func (s *Service) CreateBooking(ctx context.Context, actor access.Actor, p CreateParams) (*Booking, error) {
	if !actor.Perms.CanModify {
		return nil, access.ErrDenied
	}

	if p.DoctorID == uuid.Nil && actor.Role == access.RoleDoctor {
		p.DoctorID = actor.UserID
	}
	if p.PatientID == uuid.Nil && actor.Role == access.RolePatient {
		p.PatientID = actor.UserID
	}
	if p.DoctorID == uuid.Nil {
		return nil, ErrMissingDoctor
	}
	if p.PatientID == uuid.Nil {
		return nil, ErrMissingPatient
	}

	if _, err := s.repo.GetDoctorByID(ctx, p.DoctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.repo.GetPatientByID(ctx, p.PatientID); err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetCenterByID(ctx, p.CenterID); err != nil {
		return nil, fmt.Errorf("load center: %w", err)
	}

	if !p.ScheduledAt.After(s.now()) {
		return nil, ErrPastScheduling
	}

	// Patients never pick their own priority.
	if actor.Role == access.RolePatient {
		if p.Urgent {
			p.Priority = PriorityHigh
		} else {
			p.Priority = PriorityMedium
		}
	}
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}

	var created *Booking

	err := s.locker.WithDoctorLock(ctx, p.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(txCtx context.Context, txRepo Repository) error {
			ok, err := NewChecker(txRepo, s.buffer).IsAvailable(txCtx, p.DoctorID, p.ScheduledAt, nil)
			if err != nil {
				return err
			}
			if !ok {
				return ErrDoctorUnavailable
			}

			if p.SlotID != nil {
				slot, err := txRepo.GetSlotByID(txCtx, *p.SlotID)
				if err != nil {
					return fmt.Errorf("load slot: %w", err)
				}
				if err := validateSlotBinding(slot, p.DoctorID, p.CenterID); err != nil {
					return err
				}
			}

			b := &Booking{
				ID:             uuid.New(),
				PatientID:      p.PatientID,
				DoctorID:       p.DoctorID,
				CenterID:       p.CenterID,
				SlotID:         p.SlotID,
				ScheduledAt:    p.ScheduledAt,
				Status:         StatusScheduled,
				Priority:       p.Priority,
				ChiefComplaint: p.ChiefComplaint,
			}
			created, err = txRepo.CreateBooking(txCtx, b)
			if err != nil {
				return fmt.Errorf("create booking: %w", err)
			}

			if p.SlotID != nil {
				// CAS on the availability flag; a lost race rolls the
				// booking row back with it.
				if err := txRepo.ReserveSlot(txCtx, *p.SlotID); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDoctorBusy
		}
		return nil, err
	}

	// Best effort: failure is logged, never surfaced.
	if err := s.repo.CreatePrivateNotes(ctx, created.ID); err != nil {
		s.log.Warn().Err(err).Stringer("booking_id", created.ID).Msg("create private notes failed")
	}

	return created, nil
}

type EditParams struct {
	DoctorID       *uuid.UUID
	CenterID       *uuid.UUID
	SlotID         *uuid.UUID
	ScheduledAt    *time.Time
	Priority       *Priority
	ChiefComplaint *string
}

// EditBooking re-runs the create validations against the new values, passing
// the booking's own id to the availability check so it does not conflict with
// itself. Completed, cancelled and past bookings are immutable. A slot change
// releases the previously bound slot in the same transaction.
func (s *Service) EditBooking(ctx context.Context, actor access.Actor, id uuid.UUID, p EditParams) (*Booking, error) {
	if !actor.Perms.CanModify {
		return nil, access.ErrDenied
	}

	current, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if current.Status == StatusCompleted || current.Status == StatusCancelled {
		return nil, ErrImmutableBooking
	}
	if !current.ScheduledAt.After(s.now()) {
		return nil, ErrImmutableBooking
	}

	next := *current
	if p.DoctorID != nil {
		next.DoctorID = *p.DoctorID
	}
	if p.CenterID != nil {
		next.CenterID = *p.CenterID
	}
	if p.SlotID != nil {
		slotID := *p.SlotID
		next.SlotID = &slotID
	}
	if p.ScheduledAt != nil {
		next.ScheduledAt = *p.ScheduledAt
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.ChiefComplaint != nil {
		next.ChiefComplaint = *p.ChiefComplaint
	}

	if next.DoctorID == uuid.Nil {
		return nil, ErrMissingDoctor
	}
	if _, err := s.repo.GetDoctorByID(ctx, next.DoctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.repo.GetCenterByID(ctx, next.CenterID); err != nil {
		return nil, fmt.Errorf("load center: %w", err)
	}
	if !next.ScheduledAt.After(s.now()) {
		return nil, ErrPastScheduling
	}

	var updated *Booking

	err = s.locker.WithDoctorLock(ctx, next.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(txCtx context.Context, txRepo Repository) error {
			ok, err := NewChecker(txRepo, s.buffer).IsAvailable(txCtx, next.DoctorID, next.ScheduledAt, &id)
			if err != nil {
				return err
			}
			if !ok {
				return ErrDoctorUnavailable
			}

			slotChanged := p.SlotID != nil && (current.SlotID == nil || *current.SlotID != *p.SlotID)

			if next.SlotID != nil {
				slot, err := txRepo.GetSlotByID(txCtx, *next.SlotID)
				if err != nil {
					return fmt.Errorf("load slot: %w", err)
				}
				// A doctor or center change must not leave a foreign slot bound.
				if slotChanged {
					if err := validateSlotBinding(slot, next.DoctorID, next.CenterID); err != nil {
						return err
					}
				} else if slot.DoctorID != next.DoctorID {
					return ErrDoctorMismatch
				} else if slot.CenterID != next.CenterID {
					return ErrCenterMismatch
				}
			}

			if slotChanged {
				if err := txRepo.ReserveSlot(txCtx, *p.SlotID); err != nil {
					return err
				}
				if current.SlotID != nil {
					if err := txRepo.ReleaseSlot(txCtx, *current.SlotID); err != nil {
						return fmt.Errorf("release previous slot: %w", err)
					}
				}
			}

			updated, err = txRepo.UpdateBooking(txCtx, &next)
			if err != nil {
				return fmt.Errorf("update booking: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDoctorBusy
		}
		return nil, err
	}

	return updated, nil
}

// DeleteBooking removes a future booking and releases any bound slot.
func (s *Service) DeleteBooking(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	if !actor.Perms.CanDelete {
		return access.ErrDenied
	}

	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load booking: %w", err)
	}
	if !b.ScheduledAt.After(s.now()) {
		return ErrPastDeletion
	}

	return s.repo.WithinTx(ctx, func(txCtx context.Context, txRepo Repository) error {
		if err := txRepo.DeleteBooking(txCtx, id); err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		if b.SlotID != nil {
			if err := txRepo.ReleaseSlot(txCtx, *b.SlotID); err != nil {
				return fmt.Errorf("release slot: %w", err)
			}
		}
		return nil
	})
}

// Transition moves a booking through its lifecycle. The status check and the
// mutation are a single compare-and-set so a stale read cannot slip an
// illegal transition through.
func (s *Service) Transition(ctx context.Context, actor access.Actor, id uuid.UUID, to Status) (*Booking, error) {
	if !actor.Perms.CanTransition {
		return nil, access.ErrDenied
	}

	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if err := ValidateTransition(b.Status, to); err != nil {
		return nil, err
	}

	var startedAt, endedAt *time.Time
	switch to {
	case StatusInProgress:
		t := s.now()
		startedAt = &t
	case StatusCompleted:
		t := s.now()
		endedAt = &t
	}

	updated, err := s.repo.UpdateBookingStatus(ctx, id, b.Status, to, startedAt, endedAt)
	if err != nil {
		// The CAS missing means the status moved under us.
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	return updated, nil
}

func (s *Service) GetBooking(ctx context.Context, actor access.Actor, id uuid.UUID) (*Booking, error) {
	if !actor.Perms.CanView {
		return nil, access.ErrDenied
	}
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	return b, nil
}

// ListAvailableSlots returns the still-open slots for a doctor at a center on
// one date, ordered by start time.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID, centerID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.repo.GetCenterByID(ctx, centerID); err != nil {
		return nil, fmt.Errorf("load center: %w", err)
	}
	slots, err := s.repo.ListAvailableSlots(ctx, doctorID, centerID, date)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// ListDoctorCenters returns the active centers a doctor has slots at.
func (s *Service) ListDoctorCenters(ctx context.Context, doctorID uuid.UUID) ([]Center, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	centers, err := s.repo.ListDoctorCenters(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list doctor centers: %w", err)
	}
	return centers, nil
}

// ListDoctorAvailableDates returns the upcoming dates with at least one open
// slot for the doctor at the center.
func (s *Service) ListDoctorAvailableDates(ctx context.Context, doctorID, centerID uuid.UUID) ([]time.Time, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.repo.GetCenterByID(ctx, centerID); err != nil {
		return nil, fmt.Errorf("load center: %w", err)
	}
	today := s.now().Truncate(24 * time.Hour)
	dates, err := s.repo.ListDoctorAvailableDates(ctx, doctorID, centerID, today)
	if err != nil {
		return nil, fmt.Errorf("list available dates: %w", err)
	}
	return dates, nil
}

// DoctorDayWindows computes the doctor's free ranges within one working day.
func (s *Service) DoctorDayWindows(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]TimeRange, error) {
	return NewChecker(s.repo, s.buffer).DayWindows(ctx, doctorID, dayStart, dayEnd)
}

func validateSlotBinding(slot *TimeSlot, doctorID, centerID uuid.UUID) error {
	if !slot.IsAvailable {
		return ErrSlotUnavailable
	}
	if slot.CenterID != centerID {
		return ErrCenterMismatch
	}
	if slot.DoctorID != doctorID {
		return ErrDoctorMismatch
	}
	return nil
}
