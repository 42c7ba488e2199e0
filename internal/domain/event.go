package domain

import (
	"time"

	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
)

type EventType string

const (
	EventAppointmentCreated     EventType = "appointment.created"
	EventAppointmentConfirmed   EventType = "appointment.confirmed"
	EventAppointmentCancelled   EventType = "appointment.cancelled"
	EventAppointmentRescheduled EventType = "appointment.rescheduled"
	EventAppointmentCompleted   EventType = "appointment.completed"
	EventAppointmentNoShow      EventType = "appointment.no_show"

	// EventConsultationRequested asks the consultation service to open a
	// record for a completed appointment.
	EventConsultationRequested EventType = "consultation.requested"
)

// AppointmentEvent is what leaves the scheduling core after a commit. The
// Previous* fields are only set on reschedules.
type AppointmentEvent struct {
	Type              EventType           `json:"type"`
	AppointmentID     uuid.UUID           `json:"appointment_id"`
	VeterinarianID    uuid.UUID           `json:"veterinarian_id"`
	ClientID          uuid.UUID           `json:"client_id"`
	PetID             uuid.UUID           `json:"pet_id"`
	Status            AppointmentStatus   `json:"status"`
	Date              calendar.Date       `json:"date"`
	StartTime         calendar.TimeOfDay  `json:"start_time"`
	EndTime           calendar.TimeOfDay  `json:"end_time"`
	IsVideoConference bool                `json:"is_video_conference"`
	PreviousDate      *calendar.Date      `json:"previous_date,omitempty"`
	PreviousStartTime *calendar.TimeOfDay `json:"previous_start_time,omitempty"`
	OccurredAt        time.Time           `json:"occurred_at"`
}

func NewAppointmentEvent(t EventType, a Appointment, at time.Time) AppointmentEvent {
	return AppointmentEvent{
		Type:              t,
		AppointmentID:     a.ID,
		VeterinarianID:    a.VeterinarianID,
		ClientID:          a.ClientID,
		PetID:             a.PetID,
		Status:            a.Status,
		Date:              a.Date,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		IsVideoConference: a.IsVideoConference,
		OccurredAt:        at.UTC(),
	}
}
