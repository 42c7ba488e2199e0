package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
)

// AvailabilityRepository answers questions about a veterinarian's recurring
// weekly schedule and one-off holidays. Soft-deleted rows are never returned.
type AvailabilityRepository interface {
	WeeklyWindows(ctx context.Context, vetID uuid.UUID, day time.Weekday) ([]domain.WeeklyAvailability, error)
	IsOnHoliday(ctx context.Context, vetID uuid.UUID, date calendar.Date) (bool, error)

	ListWeeklyAvailability(ctx context.Context, vetID uuid.UUID) ([]domain.WeeklyAvailability, error)
	CreateWeeklyAvailability(ctx context.Context, row domain.WeeklyAvailability) (domain.WeeklyAvailability, error)
	DeleteWeeklyAvailability(ctx context.Context, vetID, id uuid.UUID) error

	ListHolidays(ctx context.Context, vetID uuid.UUID, from, to calendar.Date) ([]domain.Holiday, error)
	GetHoliday(ctx context.Context, vetID, id uuid.UUID) (domain.Holiday, error)
	CreateHoliday(ctx context.Context, h domain.Holiday) (domain.Holiday, error)
	DeleteHoliday(ctx context.Context, vetID, id uuid.UUID) error
}

// BookingLedger is the read side of the appointment book.
type BookingLedger interface {
	// BookedIntervals returns the intervals held by scheduled or confirmed
	// appointments of vetID on date, ordered by start.
	BookedIntervals(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]calendar.Interval, error)
	// HasConflict reports whether iv overlaps a booked interval. excludeID,
	// when not uuid.Nil, is ignored so an appointment never conflicts with
	// itself while being rescheduled.
	HasConflict(ctx context.Context, vetID uuid.UUID, date calendar.Date, iv calendar.Interval, excludeID uuid.UUID) (bool, error)

	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]domain.Appointment, error)
	// ListScheduledBefore returns scheduled appointments whose date is on or
	// before date, for the no-show sweep.
	ListScheduledBefore(ctx context.Context, date calendar.Date, limit int) ([]domain.Appointment, error)
}

// BookingTx is the view of the appointment book inside one atomic unit.
type BookingTx interface {
	HasConflict(ctx context.Context, vetID uuid.UUID, date calendar.Date, iv calendar.Interval, excludeID uuid.UUID) (bool, error)
	GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}

// BookingStore is the commit path. InVeterinarianTransaction serializes all
// callers for the same veterinarian and runs fn all-or-nothing; it fails fast
// with ErrConflict when the lock cannot be taken in bounded time.
type BookingStore interface {
	BookingLedger

	InVeterinarianTransaction(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context, tx BookingTx) error) error
	// InTransaction runs fn all-or-nothing without the calendar lock. Row
	// locks that cannot be taken in bounded time fail with ErrBusy.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
}
