// Package notify delivers committed appointment events to the outside world.
// The scheduling core only sees the Notifier interface; which broker carries
// the events is a deployment choice.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"vetcare/backend/internal/domain"
)

// Publisher is implemented by every notifier in this package.
type Publisher interface {
	Notify(ctx context.Context, ev domain.AppointmentEvent) error
}

// Log writes events to the structured log. It is the default driver and the
// one used in development.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log.With(slog.String("component", "notify"))}
}

func (n *Log) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	attrs := []slog.Attr{
		slog.String("event", string(ev.Type)),
		slog.String("appointment_id", ev.AppointmentID.String()),
		slog.String("veterinarian_id", ev.VeterinarianID.String()),
		slog.String("status", string(ev.Status)),
		slog.String("date", ev.Date.String()),
		slog.String("start_time", ev.StartTime.String()),
	}
	if ev.PreviousDate != nil && ev.PreviousStartTime != nil {
		attrs = append(attrs,
			slog.String("previous_date", ev.PreviousDate.String()),
			slog.String("previous_start_time", ev.PreviousStartTime.String()),
		)
	}
	n.log.LogAttrs(ctx, slog.LevelInfo, "appointment event", attrs...)
	return nil
}

func encode(ev domain.AppointmentEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// ConsultationRequester asks the consultation service to open a record by
// publishing a consultation.requested event for the completed appointment.
type ConsultationRequester struct {
	publisher Publisher
	now       func() time.Time
}

func NewConsultationRequester(p Publisher) *ConsultationRequester {
	return &ConsultationRequester{publisher: p, now: time.Now}
}

func (r *ConsultationRequester) CreateFromAppointment(ctx context.Context, appt domain.Appointment) error {
	ev := domain.NewAppointmentEvent(domain.EventConsultationRequested, appt, r.now())
	return r.publisher.Notify(ctx, ev)
}
