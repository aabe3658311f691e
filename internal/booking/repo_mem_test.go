package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository with snapshot transactions: WithinTx
// clones the state, runs fn against the clone, and adopts it only on success.
// The whole transaction holds the repo lock, matching the serialization the
// real database provides under the doctor lock.
type memRepo struct {
	mu       sync.Mutex
	doctors  map[uuid.UUID]Doctor
	patients map[uuid.UUID]Patient
	centers  map[uuid.UUID]Center
	slots    map[uuid.UUID]TimeSlot
	bookings map[uuid.UUID]Booking
	notes    map[uuid.UUID]bool
	notesErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:  make(map[uuid.UUID]Doctor),
		patients: make(map[uuid.UUID]Patient),
		centers:  make(map[uuid.UUID]Center),
		slots:    make(map[uuid.UUID]TimeSlot),
		bookings: make(map[uuid.UUID]Booking),
		notes:    make(map[uuid.UUID]bool),
	}
}

func (m *memRepo) addDoctor() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.doctors[id] = Doctor{ID: id, Name: "Dr. House"}
	return id
}

func (m *memRepo) addPatientWithID(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[id] = Patient{ID: id, Name: "Jane Roe"}
}

func (m *memRepo) addPatient() uuid.UUID {
	id := uuid.New()
	m.addPatientWithID(id)
	return id
}

func (m *memRepo) addCenter() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.centers[id] = Center{ID: id, Name: "Main Clinic", IsActive: true}
	return id
}

func (m *memRepo) addSlot(doctorID, centerID uuid.UUID, start time.Time, available bool) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.slots[id] = TimeSlot{
		ID:          id,
		DoctorID:    doctorID,
		CenterID:    centerID,
		Date:        truncateToDay(start),
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		IsAvailable: available,
	}
	return id
}

func (m *memRepo) addBooking(b Booking) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = StatusScheduled
	}
	m.bookings[b.ID] = b
	return b.ID
}

func (m *memRepo) getSlot(id uuid.UUID) TimeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id]
}

func (m *memRepo) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func (m *memRepo) cloneLocked() *memRepo {
	tx := newMemRepo()
	for k, v := range m.doctors {
		tx.doctors[k] = v
	}
	for k, v := range m.patients {
		tx.patients[k] = v
	}
	for k, v := range m.centers {
		tx.centers[k] = v
	}
	for k, v := range m.slots {
		tx.slots[k] = v
	}
	for k, v := range m.bookings {
		tx.bookings[k] = v
	}
	for k, v := range m.notes {
		tx.notes[k] = v
	}
	tx.notesErr = m.notesErr
	return tx
}

func (m *memRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := m.cloneLocked()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.doctors, m.patients, m.centers = tx.doctors, tx.patients, tx.centers
	m.slots, m.bookings, m.notes = tx.slots, tx.bookings, tx.notes
	return nil
}

func (m *memRepo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *memRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memRepo) GetCenterByID(ctx context.Context, id uuid.UUID) (*Center, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.centers[id]
	if !ok || !c.IsActive {
		return nil, ErrCenterNotFound
	}
	return &c, nil
}

func (m *memRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *memRepo) ListAvailableSlots(ctx context.Context, doctorID, centerID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []TimeSlot
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.CenterID == centerID && s.Date.Equal(truncateToDay(date)) && s.IsAvailable {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *memRepo) ReserveSlot(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || !s.IsAvailable {
		return ErrSlotAlreadyReserved
	}
	s.IsAvailable = false
	m.slots[id] = s
	return nil
}

func (m *memRepo) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	s.IsAvailable = true
	m.slots[id] = s
	return nil
}

func (m *memRepo) CreateSlot(ctx context.Context, slot *TimeSlot) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *slot
	m.slots[s.ID] = s
	return &s, nil
}

func (m *memRepo) SlotExists(ctx context.Context, doctorID, centerID uuid.UUID, date, start time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.CenterID == centerID && s.Date.Equal(date) && s.StartTime.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) CreateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *b
	m.bookings[stored.ID] = stored
	return &stored, nil
}

func (m *memRepo) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (m *memRepo) UpdateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bookings[b.ID]
	if !ok {
		return nil, ErrBookingNotFound
	}
	stored.PatientID = b.PatientID
	stored.DoctorID = b.DoctorID
	stored.CenterID = b.CenterID
	stored.SlotID = b.SlotID
	stored.ScheduledAt = b.ScheduledAt
	stored.Priority = b.Priority
	stored.ChiefComplaint = b.ChiefComplaint
	m.bookings[stored.ID] = stored
	return &stored, nil
}

func (m *memRepo) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return ErrBookingNotFound
	}
	delete(m.bookings, id)
	return nil
}

func (m *memRepo) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to Status, startedAt, endedAt *time.Time) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return nil, ErrBookingNotFound
	}
	b.Status = to
	if startedAt != nil {
		b.ActualStartTime = startedAt
	}
	if endedAt != nil {
		b.ActualEndTime = endedAt
	}
	m.bookings[id] = b
	return &b, nil
}

func (m *memRepo) CountActiveBookings(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		if b.DoctorID != doctorID {
			continue
		}
		if b.Status != StatusScheduled && b.Status != StatusInProgress {
			continue
		}
		if b.ScheduledAt.Before(from) || b.ScheduledAt.After(to) {
			continue
		}
		if exclude != nil && b.ID == *exclude {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memRepo) ListActiveBookingsBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Booking
	for _, b := range m.bookings {
		if b.DoctorID != doctorID {
			continue
		}
		if b.Status != StatusScheduled && b.Status != StatusInProgress {
			continue
		}
		if b.ScheduledAt.Before(from) || b.ScheduledAt.After(to) {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.Before(result[j].ScheduledAt) })
	return result, nil
}

func (m *memRepo) ListDoctorCenters(ctx context.Context, doctorID uuid.UUID) ([]Center, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var result []Center
	for _, s := range m.slots {
		if s.DoctorID != doctorID || seen[s.CenterID] {
			continue
		}
		c, ok := m.centers[s.CenterID]
		if !ok || !c.IsActive {
			continue
		}
		seen[s.CenterID] = true
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *memRepo) ListDoctorAvailableDates(ctx context.Context, doctorID, centerID uuid.UUID, from time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[time.Time]bool)
	var result []time.Time
	for _, s := range m.slots {
		if s.DoctorID != doctorID || s.CenterID != centerID || !s.IsAvailable {
			continue
		}
		if s.Date.Before(from) || seen[s.Date] {
			continue
		}
		seen[s.Date] = true
		result = append(result, s.Date)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Before(result[j]) })
	return result, nil
}

func (m *memRepo) CreatePrivateNotes(ctx context.Context, bookingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notesErr != nil {
		return m.notesErr
	}
	m.notes[bookingID] = true
	return nil
}
