package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vitigo/clinic-scheduler/internal/access"
	"github.com/vitigo/clinic-scheduler/internal/booking"
	"github.com/vitigo/clinic-scheduler/internal/config"
	"github.com/vitigo/clinic-scheduler/internal/db"
	"github.com/vitigo/clinic-scheduler/internal/logging"
)

// nopLocker satisfies the locker interface for offline tooling; slot
// population runs in one transaction and needs no cross-process lock.
type nopLocker struct{}

func (nopLocker) WithDoctorLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func main() {
	root := &cobra.Command{
		Use:   "slotctl",
		Short: "Operate on doctor time slots",
	}
	root.AddCommand(populateCmd(), listCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newService(ctx context.Context) (*booking.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	repo := booking.NewPgRepository(pool)
	svc := booking.NewService(repo, nopLocker{}, cfg.BookingBuffer, logging.New("slotctl", cfg.Env))
	return svc, pool.Close, nil
}

func populateCmd() *cobra.Command {
	var (
		days        int
		startHour   int
		endHour     int
		slotMinutes int
	)

	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Create weekday time slots for every doctor over the coming days",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			svc, closeFn, err := newService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			assignments, err := assignDoctorsToCenters(ctx)
			if err != nil {
				return err
			}
			if len(assignments) == 0 {
				return fmt.Errorf("no doctors or no active centers found, seed them first")
			}

			today := time.Now()
			admin := access.NewActor(uuid.New(), access.RoleAdministrator)
			created, err := svc.PopulateSlots(ctx, admin, booking.PopulateParams{
				Assignments:  assignments,
				From:         today,
				To:           today.AddDate(0, 0, days),
				DayStart:     time.Duration(startHour) * time.Hour,
				DayEnd:       time.Duration(endHour) * time.Hour,
				SlotDuration: time.Duration(slotMinutes) * time.Minute,
			})
			if err != nil {
				return fmt.Errorf("populate slots: %w", err)
			}

			fmt.Printf("created %d time slots\n", created)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", booking.DefaultPopulateDays, "how many days ahead to populate")
	cmd.Flags().IntVar(&startHour, "start-hour", 9, "first working hour of the day")
	cmd.Flags().IntVar(&endHour, "end-hour", 17, "last working hour of the day")
	cmd.Flags().IntVar(&slotMinutes, "slot-minutes", 60, "slot duration in minutes")
	return cmd
}

// assignDoctorsToCenters pairs every doctor with a random active center, the
// way the clinic's rota has always been generated.
func assignDoctorsToCenters(ctx context.Context) ([]booking.DoctorCenter, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `SELECT id FROM doctors`)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()

	var doctors []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		doctors = append(doctors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := pool.Query(ctx, `SELECT id FROM centers WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("load centers: %w", err)
	}
	defer crows.Close()

	var centers []uuid.UUID
	for crows.Next() {
		var id uuid.UUID
		if err := crows.Scan(&id); err != nil {
			return nil, err
		}
		centers = append(centers, id)
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}

	if len(centers) == 0 {
		return nil, nil
	}

	assignments := make([]booking.DoctorCenter, 0, len(doctors))
	for _, d := range doctors {
		assignments = append(assignments, booking.DoctorCenter{
			DoctorID: d,
			CenterID: centers[gofakeit.Number(0, len(centers)-1)],
		})
	}
	return assignments, nil
}

func listCmd() *cobra.Command {
	var (
		doctorStr string
		centerStr string
		dateStr   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open slots for a doctor at a center on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			doctorID, err := uuid.Parse(doctorStr)
			if err != nil {
				return fmt.Errorf("invalid --doctor: %w", err)
			}
			centerID, err := uuid.Parse(centerStr)
			if err != nil {
				return fmt.Errorf("invalid --center: %w", err)
			}
			date, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}

			svc, closeFn, err := newService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			slots, err := svc.ListAvailableSlots(ctx, doctorID, centerID, date)
			if err != nil {
				return fmt.Errorf("list slots: %w", err)
			}

			for _, s := range slots {
				fmt.Printf("%s  %s - %s  available=%t\n",
					s.ID, s.StartTime.Format("15:04"), s.EndTime.Format("15:04"), s.IsAvailable)
			}
			fmt.Printf("%d slots\n", len(slots))
			return nil
		},
	}

	cmd.Flags().StringVar(&doctorStr, "doctor", "", "doctor UUID")
	cmd.Flags().StringVar(&centerStr, "center", "", "center UUID")
	cmd.Flags().StringVar(&dateStr, "date", "", "date as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("center")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
