package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgDB is the slice of pgxpool.Pool and pgx.Tx the repository needs; it also
// matches pgxmock's pool interface.
type pgDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db pgDB
}

func NewPgRepository(db pgDB) *PgRepository {
	return &PgRepository{db: db}
}

// WithinTx runs fn against a repository bound to one transaction. fn errors
// roll the whole transaction back.
func (r *PgRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &PgRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanCenter(row pgx.Row) (*Center, error) {
	var c Center
	err := row.Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCenterNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.CenterID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.IsAvailable,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.PatientID,
		&b.DoctorID,
		&b.CenterID,
		&b.SlotID,
		&b.ScheduledAt,
		&b.Status,
		&b.Priority,
		&b.ChiefComplaint,
		&b.ActualStartTime,
		&b.ActualEndTime,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

const bookingCols = `id, patient_id, doctor_id, center_id, slot_id, scheduled_at, status, priority,
		       chief_complaint, actual_start_time, actual_end_time, created_at, updated_at`

const slotCols = `id, doctor_id, center_id, date, start_time, end_time, is_available, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetCenterByID(ctx context.Context, id uuid.UUID) (*Center, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, is_active, created_at, updated_at
		FROM centers
		WHERE id = $1 AND is_active
	`, id)
	return scanCenter(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotCols+`
		FROM doctor_time_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, doctorID, centerID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotCols+`
		FROM doctor_time_slots
		WHERE doctor_id = $1 AND center_id = $2 AND date = $3 AND is_available
		ORDER BY start_time
	`, doctorID, centerID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// ReserveSlot flips the availability flag with a compare-and-set so two
// concurrent reservations can never both win. The caller has already loaded
// the slot, so zero rows here means the flag was taken in between.
func (r *PgRepository) ReserveSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE doctor_time_slots
		SET is_available = false,
		    updated_at = now()
		WHERE id = $1
		  AND is_available
	`, id)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotAlreadyReserved
	}
	return nil
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE doctor_time_slots
		SET is_available = true,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) CreateSlot(ctx context.Context, slot *TimeSlot) (*TimeSlot, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO doctor_time_slots (id, doctor_id, center_id, date, start_time, end_time, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+slotCols+`
	`, slot.ID, slot.DoctorID, slot.CenterID, slot.Date, slot.StartTime, slot.EndTime, slot.IsAvailable)
	return scanSlot(row)
}

func (r *PgRepository) SlotExists(ctx context.Context, doctorID, centerID uuid.UUID, date, start time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doctor_time_slots
			WHERE doctor_id = $1 AND center_id = $2 AND date = $3 AND start_time = $4
		)
	`, doctorID, centerID, date, start).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) CreateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO bookings (id, patient_id, doctor_id, center_id, slot_id, scheduled_at, status, priority, chief_complaint, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+bookingCols+`
	`, b.ID, b.PatientID, b.DoctorID, b.CenterID, b.SlotID, b.ScheduledAt, b.Status, b.Priority, b.ChiefComplaint)
	return scanBooking(row)
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) UpdateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET patient_id = $2,
		    doctor_id = $3,
		    center_id = $4,
		    slot_id = $5,
		    scheduled_at = $6,
		    priority = $7,
		    chief_complaint = $8,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+bookingCols+`
	`, b.ID, b.PatientID, b.DoctorID, b.CenterID, b.SlotID, b.ScheduledAt, b.Priority, b.ChiefComplaint)
	return scanBooking(row)
}

func (r *PgRepository) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM bookings
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to Status, startedAt, endedAt *time.Time) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    actual_start_time = COALESCE($4, actual_start_time),
		    actual_end_time = COALESCE($5, actual_end_time),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+bookingCols+`
	`, id, to, from, startedAt, endedAt)
	return scanBooking(row)
}

func (r *PgRepository) CountActiveBookings(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE doctor_id = $1
		  AND scheduled_at BETWEEN $2 AND $3
		  AND status IN ('SCHEDULED', 'IN_PROGRESS')
		  AND ($4::uuid IS NULL OR id <> $4)
	`, doctorID, from, to, exclude).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgRepository) ListActiveBookingsBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE doctor_id = $1
		  AND scheduled_at BETWEEN $2 AND $3
		  AND status IN ('SCHEDULED', 'IN_PROGRESS')
		ORDER BY scheduled_at
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListDoctorCenters(ctx context.Context, doctorID uuid.UUID) ([]Center, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.name, c.is_active, c.created_at, c.updated_at
		FROM centers c
		WHERE c.is_active
		  AND EXISTS (
			SELECT 1 FROM doctor_time_slots s
			WHERE s.center_id = c.id AND s.doctor_id = $1
		  )
		ORDER BY c.name
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Center
	for rows.Next() {
		c, err := scanCenter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListDoctorAvailableDates(ctx context.Context, doctorID, centerID uuid.UUID, from time.Time) ([]time.Time, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT date
		FROM doctor_time_slots
		WHERE doctor_id = $1
		  AND center_id = $2
		  AND is_available
		  AND date >= $3
		ORDER BY date
	`, doctorID, centerID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreatePrivateNotes(ctx context.Context, bookingID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO private_notes (id, booking_id, remarks, created_at, updated_at)
		VALUES ($1, $2, '', now(), now())
		ON CONFLICT (booking_id) DO NOTHING
	`, uuid.New(), bookingID)
	if err != nil {
		return fmt.Errorf("insert private notes: %w", err)
	}
	return nil
}
