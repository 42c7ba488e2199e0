package grpc

import (
	"time"

	"vetcare/backend/internal/domain"
)

type SuggestSlotsRequest struct {
	VeterinaryID    string `json:"veterinary_id"`
	Date            string `json:"date"`
	DurationMinutes int32  `json:"duration_minutes"`
}

type SuggestSlotsResponse struct {
	Slots []string `json:"slots"`
}

type BookAppointmentRequest struct {
	VeterinaryID      string            `json:"veterinary_id"`
	ClientID          string            `json:"client_id"`
	PetID             string            `json:"pet_id"`
	AppointmentType   string            `json:"appointment_type"`
	Date              string            `json:"date"`
	StartTime         string            `json:"start_time"`
	DurationMinutes   int32             `json:"duration_minutes"`
	IsVideoConference bool              `json:"is_video_conference"`
	VideoMeta         map[string]string `json:"video_meta,omitempty"`
	Reason            string            `json:"reason,omitempty"`
	Notes             string            `json:"notes,omitempty"`
}

type AppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type RescheduleAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
}

type AppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type Appointment struct {
	ID                string     `json:"id"`
	VeterinaryID      string     `json:"veterinary_id"`
	ClientID          string     `json:"client_id"`
	PetID             string     `json:"pet_id"`
	AppointmentType   string     `json:"appointment_type"`
	Date              string     `json:"date"`
	StartTime         string     `json:"start_time"`
	EndTime           string     `json:"end_time"`
	DurationMinutes   int32      `json:"duration_minutes"`
	Status            string     `json:"status"`
	IsVideoConference bool       `json:"is_video_conference"`
	Reason            string     `json:"reason,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toWireAppointment(a domain.Appointment) *Appointment {
	return &Appointment{
		ID:                a.ID.String(),
		VeterinaryID:      a.VeterinarianID.String(),
		ClientID:          a.ClientID.String(),
		PetID:             a.PetID.String(),
		AppointmentType:   a.AppointmentType,
		Date:              a.Date.String(),
		StartTime:         a.StartTime.String(),
		EndTime:           a.EndTime.String(),
		DurationMinutes:   int32(a.DurationMinutes),
		Status:            string(a.Status),
		IsVideoConference: a.IsVideoConference,
		Reason:            a.Reason,
		Notes:             a.Notes,
		ConfirmedAt:       a.ConfirmedAt,
		CancelledAt:       a.CancelledAt,
		CompletedAt:       a.CompletedAt,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
