package scheduling

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
)

type WeeklyAvailabilityInput struct {
	VeterinarianID uuid.UUID
	DayOfWeek      int
	StartTime      calendar.TimeOfDay
	EndTime        calendar.TimeOfDay
	IsBreak        bool
	Session        string
}

// AddWeeklyAvailability adds one working or break interval after checking
// that the day's schedule stays consistent with it.
func (s *Service) AddWeeklyAvailability(ctx context.Context, in WeeklyAvailabilityInput) (domain.WeeklyAvailability, error) {
	if in.VeterinarianID == uuid.Nil {
		return domain.WeeklyAvailability{}, invalidInput("veterinarian_id is required")
	}
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return domain.WeeklyAvailability{}, invalidInput("day_of_week must be between 0 (Sunday) and 6 (Saturday)")
	}

	row := domain.WeeklyAvailability{
		VeterinarianID: in.VeterinarianID,
		DayOfWeek:      int16(in.DayOfWeek),
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		IsBreak:        in.IsBreak,
		Session:        strings.TrimSpace(in.Session),
	}

	existing, err := s.availability.WeeklyWindows(ctx, in.VeterinarianID, row.Weekday())
	if err != nil {
		return domain.WeeklyAvailability{}, s.translate(ctx, "weekly_windows", err)
	}
	if err := domain.ValidateWeeklySchedule(append(existing, row)); err != nil {
		return domain.WeeklyAvailability{}, invalidInput(err.Error())
	}

	created, err := s.availability.CreateWeeklyAvailability(ctx, row)
	if err != nil {
		return domain.WeeklyAvailability{}, s.translate(ctx, "create_weekly_availability", err)
	}
	s.invalidateVeterinarian(ctx, in.VeterinarianID)
	s.log.Info("weekly availability added",
		slog.String("veterinarian_id", created.VeterinarianID.String()),
		slog.String("id", created.ID.String()),
		slog.Int("day_of_week", int(created.DayOfWeek)),
		slog.String("interval", created.Interval().String()),
		slog.Bool("is_break", created.IsBreak),
	)
	return created, nil
}

// RemoveWeeklyAvailability soft-deletes a row. Removing a working interval
// that still carries breaks would leave those breaks orphaned, so it is
// refused until the breaks are gone.
func (s *Service) RemoveWeeklyAvailability(ctx context.Context, vetID, id uuid.UUID) error {
	if vetID == uuid.Nil || id == uuid.Nil {
		return invalidInput("veterinarian_id and availability id are required")
	}

	rows, err := s.availability.ListWeeklyAvailability(ctx, vetID)
	if err != nil {
		return s.translate(ctx, "list_weekly_availability", err)
	}
	var (
		target domain.WeeklyAvailability
		found  bool
		rest   []domain.WeeklyAvailability
	)
	for _, r := range rows {
		if r.ID == id {
			target, found = r, true
			continue
		}
		rest = append(rest, r)
	}
	if !found {
		return &Error{Kind: KindNotFound, Msg: "availability not found"}
	}

	var sameDay []domain.WeeklyAvailability
	for _, r := range rest {
		if r.DayOfWeek == target.DayOfWeek {
			sameDay = append(sameDay, r)
		}
	}
	if err := domain.ValidateWeeklySchedule(sameDay); err != nil {
		return invalidInput("remove the breaks inside this interval first")
	}

	if err := s.availability.DeleteWeeklyAvailability(ctx, vetID, id); err != nil {
		return s.translate(ctx, "delete_weekly_availability", err)
	}
	s.invalidateVeterinarian(ctx, vetID)
	return nil
}

func (s *Service) ListWeeklyAvailability(ctx context.Context, vetID uuid.UUID) ([]domain.WeeklyAvailability, error) {
	if vetID == uuid.Nil {
		return nil, invalidInput("veterinarian_id is required")
	}
	rows, err := s.availability.ListWeeklyAvailability(ctx, vetID)
	if err != nil {
		return nil, s.translate(ctx, "list_weekly_availability", err)
	}
	return rows, nil
}

type HolidayInput struct {
	VeterinarianID uuid.UUID
	StartDate      calendar.Date
	EndDate        calendar.Date
	Reason         string
}

// AddHoliday closes the veterinarian's calendar over an inclusive date range.
// Appointments already booked inside it are left alone; they still need to be
// cancelled or rescheduled by the clinic.
func (s *Service) AddHoliday(ctx context.Context, in HolidayInput) (domain.Holiday, error) {
	if in.VeterinarianID == uuid.Nil {
		return domain.Holiday{}, invalidInput("veterinarian_id is required")
	}
	h := domain.Holiday{
		VeterinarianID: in.VeterinarianID,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Reason:         strings.TrimSpace(in.Reason),
	}
	if err := h.Validate(); err != nil {
		return domain.Holiday{}, invalidInput(err.Error())
	}
	if h.IsPast(s.Today()) {
		return domain.Holiday{}, invalidInput("holiday lies entirely in the past")
	}

	created, err := s.availability.CreateHoliday(ctx, h)
	if err != nil {
		return domain.Holiday{}, s.translate(ctx, "create_holiday", err)
	}
	s.invalidateVeterinarian(ctx, in.VeterinarianID)
	s.log.Info("holiday added",
		slog.String("veterinarian_id", created.VeterinarianID.String()),
		slog.String("id", created.ID.String()),
		slog.String("start_date", created.StartDate.String()),
		slog.String("end_date", created.EndDate.String()),
	)
	return created, nil
}

// RemoveHoliday soft-deletes a holiday that has not fully passed.
func (s *Service) RemoveHoliday(ctx context.Context, vetID, id uuid.UUID) error {
	if vetID == uuid.Nil || id == uuid.Nil {
		return invalidInput("veterinarian_id and holiday id are required")
	}
	h, err := s.availability.GetHoliday(ctx, vetID, id)
	if err != nil {
		return s.translate(ctx, "get_holiday", err)
	}
	if h.IsPast(s.Today()) {
		return invalidInput("past holidays cannot be changed")
	}
	if err := s.availability.DeleteHoliday(ctx, vetID, id); err != nil {
		return s.translate(ctx, "delete_holiday", err)
	}
	s.invalidateVeterinarian(ctx, vetID)
	return nil
}

func (s *Service) ListHolidays(ctx context.Context, vetID uuid.UUID, from, to calendar.Date) ([]domain.Holiday, error) {
	if vetID == uuid.Nil {
		return nil, invalidInput("veterinarian_id is required")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, invalidInput("to must not be before from")
	}
	rows, err := s.availability.ListHolidays(ctx, vetID, from, to)
	if err != nil {
		return nil, s.translate(ctx, "list_holidays", err)
	}
	return rows, nil
}
