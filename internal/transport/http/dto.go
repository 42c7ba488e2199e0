package http

import (
	"time"

	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
)

type availableTimesQuery struct {
	VeterinaryID    string `form:"veterinary_id" binding:"required,uuid"`
	Date            string `form:"date" binding:"required,isodate"`
	DurationMinutes int    `form:"duration_minutes" binding:"required,gt=0,lte=1440"`
}

type listAppointmentsQuery struct {
	VeterinaryID string `form:"veterinary_id" binding:"required,uuid"`
	Date         string `form:"date" binding:"required,isodate"`
}

type bookAppointmentRequest struct {
	VeterinaryID      string            `json:"veterinary_id" binding:"required,uuid"`
	ClientID          string            `json:"client_id" binding:"required,uuid"`
	PetID             string            `json:"pet_id" binding:"required,uuid"`
	AppointmentType   string            `json:"appointment_type" binding:"omitempty,max=64"`
	Date              string            `json:"date" binding:"required,isodate"`
	StartTime         string            `json:"start_time" binding:"required,hhmm"`
	DurationMinutes   int               `json:"duration_minutes" binding:"required,gt=0,lte=1440"`
	IsVideoConference bool              `json:"is_video_conference"`
	VideoMeta         map[string]string `json:"video_meta"`
	Reason            string            `json:"reason" binding:"max=2000"`
	Notes             string            `json:"notes" binding:"max=4000"`
}

type rescheduleRequest struct {
	Date      string `json:"date" binding:"required,isodate"`
	StartTime string `json:"start_time" binding:"required,hhmm"`
}

type availabilityRequest struct {
	DayOfWeek *int   `json:"day_of_week" binding:"required,gte=0,lte=6"`
	StartTime string `json:"start_time" binding:"required,hhmm"`
	EndTime   string `json:"end_time" binding:"required,hhmm"`
	IsBreak   bool   `json:"is_break"`
	Session   string `json:"session" binding:"max=32"`
}

type holidayRequest struct {
	StartDate string `json:"start_date" binding:"required,isodate"`
	EndDate   string `json:"end_date" binding:"required,isodate"`
	Reason    string `json:"reason" binding:"max=500"`
}

type holidaysQuery struct {
	From string `form:"from" binding:"omitempty,isodate"`
	To   string `form:"to" binding:"omitempty,isodate"`
}

type appointmentResponse struct {
	ID                uuid.UUID                `json:"id"`
	VeterinaryID      uuid.UUID                `json:"veterinary_id"`
	ClientID          uuid.UUID                `json:"client_id"`
	PetID             uuid.UUID                `json:"pet_id"`
	AppointmentType   string                   `json:"appointment_type"`
	Date              calendar.Date            `json:"date"`
	StartTime         calendar.TimeOfDay       `json:"start_time"`
	EndTime           calendar.TimeOfDay       `json:"end_time"`
	DurationMinutes   int                      `json:"duration_minutes"`
	Status            domain.AppointmentStatus `json:"status"`
	IsVideoConference bool                     `json:"is_video_conference"`
	VideoMeta         map[string]string        `json:"video_meta,omitempty"`
	Reason            string                   `json:"reason,omitempty"`
	Notes             string                   `json:"notes,omitempty"`
	ConfirmedAt       *time.Time               `json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time               `json:"cancelled_at,omitempty"`
	CompletedAt       *time.Time               `json:"completed_at,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:                a.ID,
		VeterinaryID:      a.VeterinarianID,
		ClientID:          a.ClientID,
		PetID:             a.PetID,
		AppointmentType:   a.AppointmentType,
		Date:              a.Date,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		DurationMinutes:   a.DurationMinutes,
		Status:            a.Status,
		IsVideoConference: a.IsVideoConference,
		VideoMeta:         a.VideoMeta,
		Reason:            a.Reason,
		Notes:             a.Notes,
		ConfirmedAt:       a.ConfirmedAt,
		CancelledAt:       a.CancelledAt,
		CompletedAt:       a.CompletedAt,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

type availabilityResponse struct {
	ID           uuid.UUID          `json:"id"`
	VeterinaryID uuid.UUID          `json:"veterinary_id"`
	DayOfWeek    int                `json:"day_of_week"`
	StartTime    calendar.TimeOfDay `json:"start_time"`
	EndTime      calendar.TimeOfDay `json:"end_time"`
	IsBreak      bool               `json:"is_break"`
	Session      string             `json:"session,omitempty"`
}

func toAvailabilityResponse(w domain.WeeklyAvailability) availabilityResponse {
	return availabilityResponse{
		ID:           w.ID,
		VeterinaryID: w.VeterinarianID,
		DayOfWeek:    int(w.DayOfWeek),
		StartTime:    w.StartTime,
		EndTime:      w.EndTime,
		IsBreak:      w.IsBreak,
		Session:      w.Session,
	}
}

type holidayResponse struct {
	ID           uuid.UUID     `json:"id"`
	VeterinaryID uuid.UUID     `json:"veterinary_id"`
	StartDate    calendar.Date `json:"start_date"`
	EndDate      calendar.Date `json:"end_date"`
	Reason       string        `json:"reason,omitempty"`
}

func toHolidayResponse(h domain.Holiday) holidayResponse {
	return holidayResponse{
		ID:           h.ID,
		VeterinaryID: h.VeterinarianID,
		StartDate:    h.StartDate,
		EndDate:      h.EndDate,
		Reason:       h.Reason,
	}
}
