package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/service/scheduling"
	"vetcare/backend/internal/store"
)

type SchedulingServer struct {
	svc schedulingService
	log *slog.Logger
}

type schedulingService interface {
	SuggestSlots(ctx context.Context, vetID uuid.UUID, date calendar.Date, durationMinutes int) ([]calendar.TimeOfDay, error)
	BookAppointment(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	CompleteAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, newDate calendar.Date, newStart calendar.TimeOfDay) (domain.Appointment, error)
}

func NewSchedulingServer(svc schedulingService, log *slog.Logger) *SchedulingServer {
	if log == nil {
		log = slog.Default()
	}
	return &SchedulingServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.scheduling")),
	}
}

func (s *SchedulingServer) SuggestSlots(ctx context.Context, req *SuggestSlotsRequest) (*SuggestSlotsResponse, error) {
	log := s.log.With(slog.String("rpc", "SuggestSlots"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	vetID, err := uuid.Parse(req.VeterinaryID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "veterinary_id must be a UUID")
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_date"), slog.String("date", req.Date))
		return nil, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
	}

	slots, err := s.svc.SuggestSlots(ctx, vetID, date, int(req.DurationMinutes))
	if err != nil {
		return nil, s.toStatus(log, err)
	}

	out := make([]string, 0, len(slots))
	for _, t := range slots {
		out = append(out, t.String())
	}
	log.Debug("slots suggested",
		slog.String("veterinary_id", vetID.String()),
		slog.String("date", date.String()),
		slog.Int("count", len(out)),
	)
	return &SuggestSlotsResponse{Slots: out}, nil
}

func (s *SchedulingServer) BookAppointment(ctx context.Context, req *BookAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "BookAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	ids := make([]uuid.UUID, 3)
	for i, raw := range []struct{ name, value string }{
		{"veterinary_id", req.VeterinaryID},
		{"client_id", req.ClientID},
		{"pet_id", req.PetID},
	} {
		id, err := uuid.Parse(raw.value)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("field", raw.name))
			return nil, status.Error(codes.InvalidArgument, raw.name+" must be a UUID")
		}
		ids[i] = id
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_date"), slog.String("date", req.Date))
		return nil, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
	}
	start, err := calendar.ParseTimeOfDay(req.StartTime)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_start_time"), slog.String("start_time", req.StartTime))
		return nil, status.Error(codes.InvalidArgument, "start_time must be HH:MM")
	}

	appt, err := s.svc.BookAppointment(ctx, scheduling.BookInput{
		VeterinarianID:    ids[0],
		ClientID:          ids[1],
		PetID:             ids[2],
		AppointmentType:   req.AppointmentType,
		Date:              date,
		StartTime:         start,
		DurationMinutes:   int(req.DurationMinutes),
		IsVideoConference: req.IsVideoConference,
		VideoMeta:         req.VideoMeta,
		Reason:            req.Reason,
		Notes:             req.Notes,
		IdempotencyKey:    idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.toStatus(log, err)
	}

	log.Info("appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("veterinary_id", appt.VeterinarianID.String()),
		slog.String("date", appt.Date.String()),
		slog.String("start_time", appt.StartTime.String()),
	)
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func (s *SchedulingServer) GetAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error) {
	return s.byID(ctx, "GetAppointment", req, s.svc.GetAppointment)
}

func (s *SchedulingServer) ConfirmAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error) {
	return s.byID(ctx, "ConfirmAppointment", req, s.svc.ConfirmAppointment)
}

func (s *SchedulingServer) CancelAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error) {
	return s.byID(ctx, "CancelAppointment", req, s.svc.CancelAppointment)
}

func (s *SchedulingServer) CompleteAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error) {
	return s.byID(ctx, "CompleteAppointment", req, s.svc.CompleteAppointment)
}

func (s *SchedulingServer) MarkNoShow(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error) {
	return s.byID(ctx, "MarkNoShow", req, s.svc.MarkNoShow)
}

func (s *SchedulingServer) byID(ctx context.Context, rpc string, req *AppointmentRequest, call func(context.Context, uuid.UUID) (domain.Appointment, error)) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", rpc))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "appointment_id must be a UUID")
	}

	appt, err := call(ctx, id)
	if err != nil {
		return nil, s.toStatus(log.With(slog.String("appointment_id", id.String())), err)
	}
	log.Debug("appointment returned", slog.String("appointment_id", id.String()), slog.String("status", string(appt.Status)))
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *SchedulingServer) RescheduleAppointment(ctx context.Context, req *RescheduleAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "RescheduleAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "appointment_id must be a UUID")
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_date"), slog.String("date", req.Date))
		return nil, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
	}
	start, err := calendar.ParseTimeOfDay(req.StartTime)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_start_time"), slog.String("start_time", req.StartTime))
		return nil, status.Error(codes.InvalidArgument, "start_time must be HH:MM")
	}

	appt, err := s.svc.RescheduleAppointment(ctx, id, date, start)
	if err != nil {
		return nil, s.toStatus(log.With(slog.String("appointment_id", id.String())), err)
	}
	log.Info("appointment rescheduled",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("date", appt.Date.String()),
		slog.String("start_time", appt.StartTime.String()),
	)
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

// toStatus maps the scheduling error kinds onto gRPC codes. Storage details
// stay in the log; callers get a generic retry message.
func (s *SchedulingServer) toStatus(log *slog.Logger, err error) error {
	switch scheduling.KindOf(err) {
	case scheduling.KindInvalidInput:
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, err.Error())
	case scheduling.KindNotFound:
		log.Info("not found", slog.Any("err", err))
		return status.Error(codes.NotFound, err.Error())
	case scheduling.KindConflict:
		log.Info("conflict", slog.Any("err", err))
		switch {
		case errors.Is(err, store.ErrConflict):
			return status.Error(codes.FailedPrecondition, "This time was just taken, please choose another.")
		case errors.Is(err, store.ErrIdempotencyConflict):
			return status.Error(codes.FailedPrecondition, "This request key was already used for a different appointment. Try again.")
		}
		return status.Error(codes.FailedPrecondition, err.Error())
	case scheduling.KindInvalidTransition:
		log.Info("invalid transition", slog.Any("err", err))
		return status.Error(codes.FailedPrecondition, err.Error())
	case scheduling.KindStorageUnavailable:
		log.Error("storage unavailable", slog.Any("err", err))
		return status.Error(codes.Unavailable, "Please try again shortly.")
	}
	log.Error("request failed", slog.Any("err", err))
	return status.Error(codes.Internal, "internal error")
}
