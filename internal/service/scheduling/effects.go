package scheduling

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
)

// afterCommit runs the side effects of a committed change. None of them can
// fail the request: cache invalidation is synchronous and best effort,
// notification is fire-and-forget on a context detached from the caller.
func (s *Service) afterCommit(t domain.EventType, appt domain.Appointment, previous *domain.Appointment) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	s.invalidate(ctx, appt.VeterinarianID, appt.Date)
	ev := domain.NewAppointmentEvent(t, appt, s.clock.Now())
	if previous != nil {
		if !previous.Date.Equal(appt.Date) {
			s.invalidate(ctx, previous.VeterinarianID, previous.Date)
		}
		prevDate, prevStart := previous.Date, previous.StartTime
		ev.PreviousDate = &prevDate
		ev.PreviousStartTime = &prevStart
	}

	s.notify(ev)
}

func (s *Service) invalidate(ctx context.Context, vetID uuid.UUID, date calendar.Date) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, vetID, date); err != nil {
		s.log.Warn("slot cache invalidation failed",
			slog.Any("err", err),
			slog.String("veterinarian_id", vetID.String()),
			slog.String("date", date.String()),
		)
	}
}

func (s *Service) invalidateVeterinarian(ctx context.Context, vetID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateVeterinarian(ctx, vetID); err != nil {
		s.log.Warn("slot cache invalidation failed", slog.Any("err", err), slog.String("veterinarian_id", vetID.String()))
	}
}

func (s *Service) notify(ev domain.AppointmentEvent) {
	if s.notifier == nil {
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.metrics.Notification("failed")
			s.log.Warn("notification failed",
				slog.Any("err", err),
				slog.String("event", string(ev.Type)),
				slog.String("appointment_id", ev.AppointmentID.String()),
			)
			return
		}
		s.metrics.Notification("sent")
	}()
}

// createConsultation retries with doubling backoff and gives up after the
// configured number of attempts, leaving a log line for operators.
func (s *Service) createConsultation(appt domain.Appointment) {
	if s.consultations == nil {
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		log := s.log.With(slog.String("appointment_id", appt.ID.String()))
		backoff := s.consultationBackoff
		for attempt := 1; ; attempt++ {
			ctx, cancel := context.WithTimeout(s.stopCtx, s.notifyTimeout)
			err := s.consultations.CreateFromAppointment(ctx, appt)
			cancel()
			if err == nil {
				return
			}
			if attempt >= s.consultationAttempts {
				log.Error("consultation creation failed", slog.Any("err", err), slog.Int("attempts", attempt))
				return
			}
			log.Warn("consultation creation failed, retrying", slog.Any("err", err), slog.Int("attempt", attempt), slog.Duration("backoff", backoff))
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-s.stopCtx.Done():
				timer.Stop()
				log.Error("consultation creation abandoned at shutdown", slog.Any("err", err), slog.Int("attempts", attempt))
				return
			}
			backoff *= 2
		}
	}()
}
