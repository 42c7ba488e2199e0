package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"vetcare/backend/internal/calendar"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// ActiveStatuses are the statuses whose appointments hold their slot against
// new bookings.
var ActiveStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed}

func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	switch st := AppointmentStatus(s); st {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, true
	}
	return "", false
}

func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s AppointmentStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// OccupiesCalendar reports whether an appointment in this status blocks its
// interval for other bookings. Completed visits are history, not conflicts.
func (s AppointmentStatus) OccupiesCalendar() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

type InvalidTransitionError struct {
	From AppointmentStatus
	To   AppointmentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move appointment from %s to %s", e.From, e.To)
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID                uuid.UUID          `bun:"id,pk,type:uuid"`
	VeterinarianID    uuid.UUID          `bun:"veterinarian_id,notnull,type:uuid"`
	ClientID          uuid.UUID          `bun:"client_id,notnull,type:uuid"`
	PetID             uuid.UUID          `bun:"pet_id,notnull,type:uuid"`
	AppointmentType   string             `bun:"appointment_type,notnull"`
	Date              calendar.Date      `bun:"appointment_date,notnull,type:date"`
	StartTime         calendar.TimeOfDay `bun:"start_minute,notnull"`
	EndTime           calendar.TimeOfDay `bun:"end_minute,notnull"`
	DurationMinutes   int                `bun:"duration_minutes,notnull"`
	Status            AppointmentStatus  `bun:"status,notnull"`
	IsVideoConference bool               `bun:"is_video_conference,notnull"`
	VideoMeta         map[string]string  `bun:"video_meta,type:jsonb"`
	Reason            string             `bun:"reason"`
	Notes             string             `bun:"notes"`
	ConfirmedAt       *time.Time         `bun:"confirmed_at"`
	CancelledAt       *time.Time         `bun:"cancelled_at"`
	CompletedAt       *time.Time         `bun:"completed_at"`
	CreatedAt         time.Time          `bun:"created_at,notnull"`
	UpdatedAt         time.Time          `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) Interval() calendar.Interval {
	return calendar.Interval{Start: a.StartTime, End: a.EndTime}
}

// StartsAt and EndsAt place the appointment on the clinic's clock.
func (a Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Date.At(a.StartTime, loc)
}

func (a Appointment) EndsAt(loc *time.Location) time.Time {
	return a.Date.At(a.EndTime, loc)
}

// Transition moves the appointment to status to, stamping the matching
// timestamp with at. The appointment is left untouched on error.
func (a *Appointment) Transition(to AppointmentStatus, at time.Time) error {
	if !a.Status.CanTransitionTo(to) {
		return &InvalidTransitionError{From: a.Status, To: to}
	}
	at = at.UTC()
	switch to {
	case StatusConfirmed:
		a.ConfirmedAt = &at
	case StatusCancelled:
		a.CancelledAt = &at
	case StatusCompleted:
		a.CompletedAt = &at
	}
	a.Status = to
	return nil
}

// Reschedule moves the appointment to a new date and start while keeping its
// duration.
func (a *Appointment) Reschedule(date calendar.Date, start calendar.TimeOfDay) error {
	if !a.Status.OccupiesCalendar() {
		return &InvalidTransitionError{From: a.Status, To: a.Status}
	}
	a.Date = date
	a.StartTime = start
	a.EndTime = start.Add(a.DurationMinutes)
	return nil
}
