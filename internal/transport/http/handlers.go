package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/service/scheduling"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Binding has already validated the formats, so the parse helpers below
// only fail on programmer error.

func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

func mustDate(s string) calendar.Date {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustTime(s string) calendar.TimeOfDay {
	t, err := calendar.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		invalidParam(c, name)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) availableTimes(c *gin.Context) {
	var q availableTimesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.bindError(c, err)
		return
	}

	slots, err := h.svc.SuggestSlots(c.Request.Context(), mustUUID(q.VeterinaryID), mustDate(q.Date), q.DurationMinutes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) bookAppointment(c *gin.Context) {
	var req bookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	appt, err := h.svc.BookAppointment(c.Request.Context(), scheduling.BookInput{
		VeterinarianID:    mustUUID(req.VeterinaryID),
		ClientID:          mustUUID(req.ClientID),
		PetID:             mustUUID(req.PetID),
		AppointmentType:   req.AppointmentType,
		Date:              mustDate(req.Date),
		StartTime:         mustTime(req.StartTime),
		DurationMinutes:   req.DurationMinutes,
		IsVideoConference: req.IsVideoConference,
		VideoMeta:         req.VideoMeta,
		Reason:            req.Reason,
		Notes:             req.Notes,
		IdempotencyKey:    c.GetHeader(idempotencyKeyHeader),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handler) getAppointment(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	appt, err := h.svc.GetAppointment(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) listAppointments(c *gin.Context) {
	var q listAppointmentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.bindError(c, err)
		return
	}
	appts, err := h.svc.ListAppointments(c.Request.Context(), mustUUID(q.VeterinaryID), mustDate(q.Date))
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) transition(fn func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}
		appt, err := fn(c.Request.Context(), id)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toAppointmentResponse(appt))
	}
}

func (h *Handler) rescheduleAppointment(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	appt, err := h.svc.RescheduleAppointment(c.Request.Context(), id, mustDate(req.Date), mustTime(req.StartTime))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) listAvailability(c *gin.Context) {
	vetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	rows, err := h.svc.ListWeeklyAvailability(c.Request.Context(), vetID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]availabilityResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAvailabilityResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) addAvailability(c *gin.Context) {
	vetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	row, err := h.svc.AddWeeklyAvailability(c.Request.Context(), scheduling.WeeklyAvailabilityInput{
		VeterinarianID: vetID,
		DayOfWeek:      *req.DayOfWeek,
		StartTime:      mustTime(req.StartTime),
		EndTime:        mustTime(req.EndTime),
		IsBreak:        req.IsBreak,
		Session:        req.Session,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAvailabilityResponse(row))
}

func (h *Handler) removeAvailability(c *gin.Context) {
	vetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	id, ok := pathUUID(c, "availabilityId")
	if !ok {
		return
	}
	if err := h.svc.RemoveWeeklyAvailability(c.Request.Context(), vetID, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listHolidays(c *gin.Context) {
	vetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var q holidaysQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.bindError(c, err)
		return
	}
	var from, to calendar.Date
	if q.From != "" {
		from = mustDate(q.From)
	}
	if q.To != "" {
		to = mustDate(q.To)
	}
	rows, err := h.svc.ListHolidays(c.Request.Context(), vetID, from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]holidayResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, toHolidayResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) addHoliday(c *gin.Context) {
	vetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req holidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	row, err := h.svc.AddHoliday(c.Request.Context(), scheduling.HolidayInput{
		VeterinarianID: vetID,
		StartDate:      mustDate(req.StartDate),
		EndDate:        mustDate(req.EndDate),
		Reason:         req.Reason,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toHolidayResponse(row))
}

func (h *Handler) removeHoliday(c *gin.Context) {
	vetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	id, ok := pathUUID(c, "holidayId")
	if !ok {
		return
	}
	if err := h.svc.RemoveHoliday(c.Request.Context(), vetID, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
