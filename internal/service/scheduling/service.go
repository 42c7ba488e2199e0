package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/metrics"
	"vetcare/backend/internal/store"
)

const (
	DefaultAppointmentType = "consultation"

	defaultNotifyTimeout        = 5 * time.Second
	defaultConsultationAttempts = 5
	defaultConsultationBackoff  = time.Second
	maxIdempotencyKeyLength     = 256
)

// Notifier receives appointment events after they are committed. Delivery
// failures are logged and never undo the commit.
type Notifier interface {
	Notify(ctx context.Context, ev domain.AppointmentEvent) error
}

// ConsultationCreator opens the consultation record that follows a
// completed appointment.
type ConsultationCreator interface {
	CreateFromAppointment(ctx context.Context, appt domain.Appointment) error
}

type Options struct {
	Clock    Clock
	Location *time.Location

	SlotStepMinutes int
	SlotCache       SlotCache

	Notifier      Notifier
	NotifyTimeout time.Duration

	Consultations        ConsultationCreator
	ConsultationAttempts int
	ConsultationBackoff  time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Service is the scheduling façade: slot suggestions, the booking commit
// path and the appointment state machine.
type Service struct {
	availability store.AvailabilityRepository
	bookings     store.BookingStore
	resolver     *Resolver

	clock Clock
	loc   *time.Location
	cache SlotCache

	notifier             Notifier
	notifyTimeout        time.Duration
	consultations        ConsultationCreator
	consultationAttempts int
	consultationBackoff  time.Duration

	metrics *metrics.Metrics
	log     *slog.Logger

	background sync.WaitGroup
	stopCtx    context.Context
	stop       context.CancelFunc
}

func NewService(availability store.AvailabilityRepository, bookings store.BookingStore, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		availability:         availability,
		bookings:             bookings,
		clock:                opts.Clock,
		loc:                  opts.Location,
		cache:                opts.SlotCache,
		notifier:             opts.Notifier,
		notifyTimeout:        opts.NotifyTimeout,
		consultations:        opts.Consultations,
		consultationAttempts: opts.ConsultationAttempts,
		consultationBackoff:  opts.ConsultationBackoff,
		metrics:              opts.Metrics,
		log:                  log.With(slog.String("component", "scheduling")),
	}
	s.stopCtx, s.stop = context.WithCancel(context.Background())
	if s.clock == nil {
		s.clock = SystemClock
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = defaultNotifyTimeout
	}
	if s.consultationAttempts <= 0 {
		s.consultationAttempts = defaultConsultationAttempts
	}
	if s.consultationBackoff <= 0 {
		s.consultationBackoff = defaultConsultationBackoff
	}
	s.resolver = NewResolver(availability, bookings, ResolverOptions{
		SlotStepMinutes: opts.SlotStepMinutes,
		Cache:           opts.SlotCache,
		Metrics:         opts.Metrics,
		Logger:          log,
	})
	return s
}

func (s *Service) Location() *time.Location { return s.loc }

// Now is the current instant on the clinic's clock.
func (s *Service) Now() time.Time {
	return s.clock.Now().In(s.loc)
}

// Today is the clinic's current civil date.
func (s *Service) Today() calendar.Date {
	return calendar.DateOf(s.Now())
}

// Wait blocks until background side effects started so far have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// Shutdown waits for background side effects until ctx is done, then
// abandons pending consultation retries and waits for the attempts already
// in flight. Notifications are bounded by the notify timeout either way.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.stop()
		<-done
		return ctx.Err()
	}
}

func (s *Service) SuggestSlots(ctx context.Context, vetID uuid.UUID, date calendar.Date, durationMinutes int) ([]calendar.TimeOfDay, error) {
	if vetID == uuid.Nil {
		return nil, invalidInput("veterinary_id is required")
	}
	if date.IsZero() {
		return nil, invalidInput("date is required")
	}
	slots, err := s.resolver.Resolve(ctx, vetID, date, durationMinutes, s.Now())
	if err != nil {
		return nil, s.translate(ctx, "suggest_slots", err)
	}
	return slots, nil
}

type BookInput struct {
	VeterinarianID    uuid.UUID
	ClientID          uuid.UUID
	PetID             uuid.UUID
	AppointmentType   string
	Date              calendar.Date
	StartTime         calendar.TimeOfDay
	DurationMinutes   int
	IsVideoConference bool
	VideoMeta         map[string]string
	Reason            string
	Notes             string
	IdempotencyKey    string
}

// BookAppointment claims [start, start+duration) for the veterinarian. The
// conflict check and the insert run in one transaction under the
// veterinarian's lock, so of two overlapping concurrent requests exactly one
// wins and the other gets a conflict.
func (s *Service) BookAppointment(ctx context.Context, in BookInput) (domain.Appointment, error) {
	appt, err := s.newAppointment(in)
	if err != nil {
		s.metrics.Booking("rejected")
		return domain.Appointment{}, err
	}

	// A replay returns the original booking even once its start has passed
	// or its slot has closed. The check is repeated under the lock below.
	if appt.ID != uuid.Nil {
		existing, err := s.bookings.GetAppointment(ctx, appt.ID)
		switch {
		case err == nil:
			if !sameBooking(existing, appt) {
				err = s.translate(ctx, "book_appointment_replay", store.ErrIdempotencyConflict)
				s.metrics.Booking(bookingOutcome(err))
				return domain.Appointment{}, err
			}
			s.metrics.Booking("replayed")
			return existing, nil
		case !errors.Is(err, store.ErrNotFound):
			err = s.translate(ctx, "book_appointment_replay", err)
			s.metrics.Booking(bookingOutcome(err))
			return domain.Appointment{}, err
		}
	}

	if err := s.checkBookable(ctx, appt.VeterinarianID, appt.Date, appt.Interval()); err != nil {
		s.metrics.Booking(bookingOutcome(err))
		return domain.Appointment{}, err
	}

	var (
		out      domain.Appointment
		replayed bool
	)
	err = s.bookings.InVeterinarianTransaction(ctx, appt.VeterinarianID, func(ctx context.Context, tx store.BookingTx) error {
		if appt.ID != uuid.Nil {
			existing, err := tx.GetAppointmentForUpdate(ctx, appt.ID)
			switch {
			case err == nil:
				if !sameBooking(existing, appt) {
					return store.ErrIdempotencyConflict
				}
				out, replayed = existing, true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		conflict, err := tx.HasConflict(ctx, appt.VeterinarianID, appt.Date, appt.Interval(), uuid.Nil)
		if err != nil {
			return err
		}
		if conflict {
			return store.ErrConflict
		}

		created, err := tx.InsertAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		err = s.translate(ctx, "book_appointment", err)
		s.metrics.Booking(bookingOutcome(err))
		if KindOf(err) == KindConflict {
			s.log.Info("booking conflict",
				slog.String("veterinarian_id", appt.VeterinarianID.String()),
				slog.String("date", appt.Date.String()),
				slog.String("start_time", appt.StartTime.String()),
				slog.Int("duration_minutes", appt.DurationMinutes),
			)
		}
		return domain.Appointment{}, err
	}

	if replayed {
		s.metrics.Booking("replayed")
		return out, nil
	}

	s.metrics.Booking("created")
	s.log.Info("appointment booked",
		slog.String("appointment_id", out.ID.String()),
		slog.String("veterinarian_id", out.VeterinarianID.String()),
		slog.String("date", out.Date.String()),
		slog.String("start_time", out.StartTime.String()),
		slog.String("end_time", out.EndTime.String()),
	)
	s.afterCommit(domain.EventAppointmentCreated, out, nil)
	return out, nil
}

func (s *Service) newAppointment(in BookInput) (domain.Appointment, error) {
	switch {
	case in.VeterinarianID == uuid.Nil:
		return domain.Appointment{}, invalidInput("veterinarian_id is required")
	case in.ClientID == uuid.Nil:
		return domain.Appointment{}, invalidInput("client_id is required")
	case in.PetID == uuid.Nil:
		return domain.Appointment{}, invalidInput("pet_id is required")
	case in.Date.IsZero():
		return domain.Appointment{}, invalidInput("date is required")
	}
	iv, err := requestedInterval(in.StartTime, in.DurationMinutes)
	if err != nil {
		return domain.Appointment{}, err
	}

	apptType := strings.TrimSpace(in.AppointmentType)
	if apptType == "" {
		apptType = DefaultAppointmentType
	}

	appt := domain.Appointment{
		VeterinarianID:    in.VeterinarianID,
		ClientID:          in.ClientID,
		PetID:             in.PetID,
		AppointmentType:   apptType,
		Date:              in.Date,
		StartTime:         iv.Start,
		EndTime:           iv.End,
		DurationMinutes:   in.DurationMinutes,
		Status:            domain.StatusScheduled,
		IsVideoConference: in.IsVideoConference,
		VideoMeta:         in.VideoMeta,
		Reason:            strings.TrimSpace(in.Reason),
		Notes:             in.Notes,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxIdempotencyKeyLength {
			return domain.Appointment{}, invalidInput("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("vetcare:book_appointment:"+in.ClientID.String()+":"+key))
	}
	return appt, nil
}

func requestedInterval(start calendar.TimeOfDay, durationMinutes int) (calendar.Interval, error) {
	if durationMinutes <= 0 {
		return calendar.Interval{}, invalidInput("duration_minutes must be positive")
	}
	if !start.Valid() || start == calendar.MinutesPerDay {
		return calendar.Interval{}, invalidInput("start_time is invalid")
	}
	iv := calendar.NewInterval(start, durationMinutes)
	if !iv.Valid() {
		return calendar.Interval{}, invalidInput("appointment must end on the day it starts")
	}
	return iv, nil
}

// checkBookable rejects starts in the past and intervals outside the
// veterinarian's opening hours for date.
func (s *Service) checkBookable(ctx context.Context, vetID uuid.UUID, date calendar.Date, iv calendar.Interval) error {
	if date.At(iv.Start, s.loc).Before(s.Now()) {
		return invalidInput("cannot book a time in the past")
	}
	fits, err := s.resolver.Fits(ctx, vetID, date, iv)
	if err != nil {
		return s.translate(ctx, "check_availability", err)
	}
	if !fits {
		return &Error{Kind: KindConflict, Msg: "requested time is outside the veterinarian's availability"}
	}
	return nil
}

func sameBooking(existing, requested domain.Appointment) bool {
	return existing.VeterinarianID == requested.VeterinarianID &&
		existing.ClientID == requested.ClientID &&
		existing.PetID == requested.PetID &&
		existing.AppointmentType == requested.AppointmentType &&
		existing.Date.Equal(requested.Date) &&
		existing.StartTime == requested.StartTime &&
		existing.DurationMinutes == requested.DurationMinutes
}

func bookingOutcome(err error) string {
	switch KindOf(err) {
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "rejected"
	default:
		return "error"
	}
}

func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusConfirmed, nil)
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusCancelled, nil)
}

// CompleteAppointment closes a confirmed visit and asks for its consultation
// record in the background; a failure there leaves the appointment completed.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	appt, err := s.transition(ctx, id, domain.StatusCompleted, nil)
	if err != nil {
		return domain.Appointment{}, err
	}
	s.createConsultation(appt)
	return appt, nil
}

// MarkNoShow is only accepted once the appointment's end has passed.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusNoShow, func(a domain.Appointment, now time.Time) error {
		if now.Before(a.EndsAt(s.loc)) {
			return invalidInput("appointment has not ended yet")
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to domain.AppointmentStatus, guard func(a domain.Appointment, now time.Time) error) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, invalidInput("appointment_id is required")
	}

	now := s.Now()
	var out domain.Appointment
	err := s.bookings.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		a, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := a.Transition(to, now); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(a, now); err != nil {
				return err
			}
		}
		updated, err := tx.UpdateAppointment(ctx, a)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		err = s.translate(ctx, "transition_"+string(to), err)
		if KindOf(err) == KindInvalidTransition {
			s.log.Info("invalid transition", slog.String("appointment_id", id.String()), slog.Any("err", err))
		}
		return domain.Appointment{}, err
	}

	s.metrics.Transition(string(to))
	s.log.Info("appointment transitioned",
		slog.String("appointment_id", out.ID.String()),
		slog.String("status", string(out.Status)),
	)
	s.afterCommit(transitionEvents[to], out, nil)
	return out, nil
}

var transitionEvents = map[domain.AppointmentStatus]domain.EventType{
	domain.StatusConfirmed: domain.EventAppointmentConfirmed,
	domain.StatusCancelled: domain.EventAppointmentCancelled,
	domain.StatusCompleted: domain.EventAppointmentCompleted,
	domain.StatusNoShow:    domain.EventAppointmentNoShow,
}

// RescheduleAppointment moves a scheduled or confirmed appointment to a new
// date and start, keeping its duration and status. The move is checked and
// written under the veterinarian's lock, ignoring the appointment's own
// current interval.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, newDate calendar.Date, newStart calendar.TimeOfDay) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, invalidInput("appointment_id is required")
	}
	if newDate.IsZero() {
		return domain.Appointment{}, invalidInput("date is required")
	}

	current, err := s.bookings.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, s.translate(ctx, "reschedule_lookup", err)
	}
	if !current.Status.OccupiesCalendar() {
		return domain.Appointment{}, s.translate(ctx, "reschedule", &domain.InvalidTransitionError{From: current.Status, To: current.Status})
	}

	iv, err := requestedInterval(newStart, current.DurationMinutes)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := s.checkBookable(ctx, current.VeterinarianID, newDate, iv); err != nil {
		return domain.Appointment{}, err
	}

	var (
		out      domain.Appointment
		previous domain.Appointment
	)
	err = s.bookings.InVeterinarianTransaction(ctx, current.VeterinarianID, func(ctx context.Context, tx store.BookingTx) error {
		a, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		previous = a
		if err := a.Reschedule(newDate, newStart); err != nil {
			return err
		}

		conflict, err := tx.HasConflict(ctx, a.VeterinarianID, a.Date, a.Interval(), a.ID)
		if err != nil {
			return err
		}
		if conflict {
			return store.ErrConflict
		}

		updated, err := tx.UpdateAppointment(ctx, a)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Appointment{}, s.translate(ctx, "reschedule", err)
	}

	s.log.Info("appointment rescheduled",
		slog.String("appointment_id", out.ID.String()),
		slog.String("from", previous.Date.String()+" "+previous.StartTime.String()),
		slog.String("to", out.Date.String()+" "+out.StartTime.String()),
	)
	s.afterCommit(domain.EventAppointmentRescheduled, out, &previous)
	return out, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, invalidInput("appointment_id is required")
	}
	a, err := s.bookings.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, s.translate(ctx, "get_appointment", err)
	}
	return a, nil
}

// ListAppointments returns every appointment of the day, whatever its
// status, ordered by start.
func (s *Service) ListAppointments(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]domain.Appointment, error) {
	if vetID == uuid.Nil {
		return nil, invalidInput("veterinarian_id is required")
	}
	if date.IsZero() {
		return nil, invalidInput("date is required")
	}
	rows, err := s.bookings.ListAppointments(ctx, vetID, date)
	if err != nil {
		return nil, s.translate(ctx, "list_appointments", err)
	}
	return rows, nil
}
