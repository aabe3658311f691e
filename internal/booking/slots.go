package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitigo/clinic-scheduler/internal/access"
)

var ErrInvalidSlotRange = errors.New("invalid slot population range")

// Defaults mirror the clinic's working pattern: 09:00-17:00, hour slots,
// two months ahead.
const (
	DefaultDayStart     = 9 * time.Hour
	DefaultDayEnd       = 17 * time.Hour
	DefaultSlotDuration = time.Hour
	DefaultPopulateDays = 60
)

type DoctorCenter struct {
	DoctorID uuid.UUID
	CenterID uuid.UUID
}

type PopulateParams struct {
	Assignments  []DoctorCenter
	From         time.Time // first date, inclusive
	To           time.Time // last date, inclusive
	DayStart     time.Duration
	DayEnd       time.Duration
	SlotDuration time.Duration
}

func (p *PopulateParams) applyDefaults() {
	if p.DayStart == 0 && p.DayEnd == 0 {
		p.DayStart = DefaultDayStart
		p.DayEnd = DefaultDayEnd
	}
	if p.SlotDuration == 0 {
		p.SlotDuration = DefaultSlotDuration
	}
}

func (p *PopulateParams) validate() error {
	if len(p.Assignments) == 0 {
		return fmt.Errorf("%w: no doctor/center assignments", ErrInvalidSlotRange)
	}
	if p.To.Before(p.From) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidSlotRange)
	}
	if p.SlotDuration <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidSlotRange)
	}
	if p.DayStart < 0 || p.DayEnd > 24*time.Hour || p.DayStart+p.SlotDuration > p.DayEnd {
		return fmt.Errorf("%w: working hours cannot fit a slot", ErrInvalidSlotRange)
	}
	return nil
}

func isWorkingDay(d time.Weekday) bool {
	return d >= time.Monday && d <= time.Friday
}

// PopulateSlots bulk-creates non-overlapping slots for every assignment over
// the date range, Monday to Friday only. A slot whose (doctor, center, date,
// start time) tuple already exists is skipped, so re-runs are harmless.
// Returns the number of slots created.
func (s *Service) PopulateSlots(ctx context.Context, actor access.Actor, p PopulateParams) (int, error) {
	if !actor.Perms.CanManageSlots {
		return 0, access.ErrDenied
	}

	p.applyDefaults()
	if err := p.validate(); err != nil {
		return 0, err
	}

	from := truncateToDay(p.From)
	to := truncateToDay(p.To)

	created := 0
	err := s.repo.WithinTx(ctx, func(txCtx context.Context, txRepo Repository) error {
		for _, asg := range p.Assignments {
			for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
				if !isWorkingDay(day.Weekday()) {
					continue
				}
				for off := p.DayStart; off+p.SlotDuration <= p.DayEnd; off += p.SlotDuration {
					start := day.Add(off)
					exists, err := txRepo.SlotExists(txCtx, asg.DoctorID, asg.CenterID, day, start)
					if err != nil {
						return fmt.Errorf("check slot exists: %w", err)
					}
					if exists {
						continue
					}
					slot := &TimeSlot{
						ID:          uuid.New(),
						DoctorID:    asg.DoctorID,
						CenterID:    asg.CenterID,
						Date:        day,
						StartTime:   start,
						EndTime:     start.Add(p.SlotDuration),
						IsAvailable: true,
					}
					if _, err := txRepo.CreateSlot(txCtx, slot); err != nil {
						return fmt.Errorf("create slot: %w", err)
					}
					created++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
