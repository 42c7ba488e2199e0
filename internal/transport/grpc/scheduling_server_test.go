package grpc

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/service/scheduling"
	"vetcare/backend/internal/store"
)

type fakeSchedulingService struct {
	suggestFn    func(ctx context.Context, vetID uuid.UUID, date calendar.Date, durationMinutes int) ([]calendar.TimeOfDay, error)
	bookFn       func(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error)
	transitionFn func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	rescheduleFn func(ctx context.Context, id uuid.UUID, newDate calendar.Date, newStart calendar.TimeOfDay) (domain.Appointment, error)
}

func (f *fakeSchedulingService) SuggestSlots(ctx context.Context, vetID uuid.UUID, date calendar.Date, durationMinutes int) ([]calendar.TimeOfDay, error) {
	if f.suggestFn == nil {
		panic("SuggestSlots not configured")
	}
	return f.suggestFn(ctx, vetID, date, durationMinutes)
}

func (f *fakeSchedulingService) BookAppointment(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error) {
	if f.bookFn == nil {
		panic("BookAppointment not configured")
	}
	return f.bookFn(ctx, in)
}

func (f *fakeSchedulingService) transition(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.transitionFn == nil {
		panic("transition not configured")
	}
	return f.transitionFn(ctx, id)
}

func (f *fakeSchedulingService) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return f.transition(ctx, id)
}

func (f *fakeSchedulingService) ConfirmAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return f.transition(ctx, id)
}

func (f *fakeSchedulingService) CancelAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return f.transition(ctx, id)
}

func (f *fakeSchedulingService) CompleteAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return f.transition(ctx, id)
}

func (f *fakeSchedulingService) MarkNoShow(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return f.transition(ctx, id)
}

func (f *fakeSchedulingService) RescheduleAppointment(ctx context.Context, id uuid.UUID, newDate calendar.Date, newStart calendar.TimeOfDay) (domain.Appointment, error) {
	if f.rescheduleFn == nil {
		panic("RescheduleAppointment not configured")
	}
	return f.rescheduleFn(ctx, id, newDate, newStart)
}

func validBookRequest() *BookAppointmentRequest {
	return &BookAppointmentRequest{
		VeterinaryID:    "00000000-0000-0000-0000-0000000000a1",
		ClientID:        "00000000-0000-0000-0000-00000000c001",
		PetID:           "00000000-0000-0000-0000-00000000e001",
		Date:            "2026-01-05",
		StartTime:       "09:00",
		DurationMinutes: 30,
	}
}

func TestIdempotencyKey_ReadsHeadersAndTrims(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "  abc  "))
	if got := idempotencyKey(ctx); got != "abc" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "abc")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-idempotency-key", "xyz"))
	if got := idempotencyKey(ctx); got != "xyz" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "xyz")
	}

	if got := idempotencyKey(context.Background()); got != "" {
		t.Fatalf("idempotencyKey without metadata = %q", got)
	}
}

func TestSuggestSlots_FormatsTimes(t *testing.T) {
	var gotDuration int
	srv := NewSchedulingServer(&fakeSchedulingService{
		suggestFn: func(ctx context.Context, vetID uuid.UUID, date calendar.Date, durationMinutes int) ([]calendar.TimeOfDay, error) {
			gotDuration = durationMinutes
			return []calendar.TimeOfDay{calendar.NewTimeOfDay(8, 0), calendar.NewTimeOfDay(13, 30)}, nil
		},
	}, slog.Default())

	resp, err := srv.SuggestSlots(context.Background(), &SuggestSlotsRequest{
		VeterinaryID:    "00000000-0000-0000-0000-0000000000a1",
		Date:            "2026-01-05",
		DurationMinutes: 45,
	})
	if err != nil {
		t.Fatalf("SuggestSlots error: %v", err)
	}
	if gotDuration != 45 {
		t.Fatalf("duration = %d, want 45", gotDuration)
	}
	if len(resp.Slots) != 2 || resp.Slots[0] != "08:00" || resp.Slots[1] != "13:30" {
		t.Fatalf("slots = %v", resp.Slots)
	}
}

func TestSuggestSlots_RejectsBadInput(t *testing.T) {
	srv := NewSchedulingServer(&fakeSchedulingService{}, slog.Default())

	for _, req := range []*SuggestSlotsRequest{
		nil,
		{VeterinaryID: "nope", Date: "2026-01-05", DurationMinutes: 30},
		{VeterinaryID: "00000000-0000-0000-0000-0000000000a1", Date: "05/01/2026", DurationMinutes: 30},
	} {
		_, err := srv.SuggestSlots(context.Background(), req)
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
		}
	}
}

func TestBookAppointment_PassesIdempotencyKeyToService(t *testing.T) {
	var got scheduling.BookInput

	srv := NewSchedulingServer(&fakeSchedulingService{
		bookFn: func(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error) {
			got = in
			return domain.Appointment{ID: uuid.MustParse("00000000-0000-0000-0000-000000000010")}, nil
		},
	}, slog.Default())

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "k1"))
	resp, err := srv.BookAppointment(ctx, validBookRequest())
	if err != nil {
		t.Fatalf("BookAppointment error: %v", err)
	}
	if got.IdempotencyKey != "k1" {
		t.Fatalf("idempotency_key = %q, want %q", got.IdempotencyKey, "k1")
	}
	if got.StartTime != calendar.NewTimeOfDay(9, 0) || got.DurationMinutes != 30 {
		t.Fatalf("unexpected input: %+v", got)
	}
	if resp.Appointment.ID != "00000000-0000-0000-0000-000000000010" {
		t.Fatalf("appointment id = %q", resp.Appointment.ID)
	}
}

func TestBookAppointment_RejectsBadFields(t *testing.T) {
	srv := NewSchedulingServer(&fakeSchedulingService{}, slog.Default())

	cases := map[string]func(r *BookAppointmentRequest){
		"pet":   func(r *BookAppointmentRequest) { r.PetID = "x" },
		"date":  func(r *BookAppointmentRequest) { r.Date = "" },
		"start": func(r *BookAppointmentRequest) { r.StartTime = "9" },
	}
	for name, mutate := range cases {
		req := validBookRequest()
		mutate(req)
		_, err := srv.BookAppointment(context.Background(), req)
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("%s: code = %s, want %s", name, status.Code(err), codes.InvalidArgument)
		}
	}
}

func TestBookAppointment_MapsErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"conflict", &scheduling.Error{Kind: scheduling.KindConflict, Err: store.ErrConflict}, codes.FailedPrecondition},
		{"idempotency", &scheduling.Error{Kind: scheduling.KindConflict, Err: store.ErrIdempotencyConflict}, codes.FailedPrecondition},
		{"outside availability", &scheduling.Error{Kind: scheduling.KindConflict, Msg: "outside"}, codes.FailedPrecondition},
		{"invalid input", &scheduling.Error{Kind: scheduling.KindInvalidInput, Msg: "duration_minutes must be positive"}, codes.InvalidArgument},
		{"storage", &scheduling.Error{Kind: scheduling.KindStorageUnavailable, Err: errors.New("dial tcp")}, codes.Unavailable},
		{"unknown", errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		srv := NewSchedulingServer(&fakeSchedulingService{
			bookFn: func(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error) {
				return domain.Appointment{}, tc.err
			},
		}, slog.Default())

		_, err := srv.BookAppointment(context.Background(), validBookRequest())
		if status.Code(err) != tc.want {
			t.Fatalf("%s: code = %s, want %s", tc.name, status.Code(err), tc.want)
		}
	}
}

func TestConfirmAppointment_RejectsInvalidUUID(t *testing.T) {
	srv := NewSchedulingServer(&fakeSchedulingService{}, slog.Default())

	_, err := srv.ConfirmAppointment(context.Background(), &AppointmentRequest{AppointmentID: "not-a-uuid"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestCancelAppointment_MapsNotFound(t *testing.T) {
	srv := NewSchedulingServer(&fakeSchedulingService{
		transitionFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
			return domain.Appointment{}, &scheduling.Error{Kind: scheduling.KindNotFound, Msg: "not found", Err: store.ErrNotFound}
		},
	}, slog.Default())

	_, err := srv.CancelAppointment(context.Background(), &AppointmentRequest{AppointmentID: "00000000-0000-0000-0000-000000000020"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.NotFound)
	}
}

func TestCompleteAppointment_MapsInvalidTransition(t *testing.T) {
	srv := NewSchedulingServer(&fakeSchedulingService{
		transitionFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
			tErr := &domain.InvalidTransitionError{From: domain.StatusScheduled, To: domain.StatusCompleted}
			return domain.Appointment{}, &scheduling.Error{Kind: scheduling.KindInvalidTransition, Msg: tErr.Error(), Err: tErr}
		},
	}, slog.Default())

	_, err := srv.CompleteAppointment(context.Background(), &AppointmentRequest{AppointmentID: "00000000-0000-0000-0000-000000000020"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.FailedPrecondition)
	}
}

func TestRescheduleAppointment_ParsesTarget(t *testing.T) {
	var (
		gotDate  calendar.Date
		gotStart calendar.TimeOfDay
	)
	srv := NewSchedulingServer(&fakeSchedulingService{
		rescheduleFn: func(ctx context.Context, id uuid.UUID, newDate calendar.Date, newStart calendar.TimeOfDay) (domain.Appointment, error) {
			gotDate, gotStart = newDate, newStart
			return domain.Appointment{ID: id, Date: newDate, StartTime: newStart}, nil
		},
	}, slog.Default())

	resp, err := srv.RescheduleAppointment(context.Background(), &RescheduleAppointmentRequest{
		AppointmentID: "00000000-0000-0000-0000-000000000020",
		Date:          "2026-01-06",
		StartTime:     "14:30",
	})
	if err != nil {
		t.Fatalf("RescheduleAppointment error: %v", err)
	}
	if !gotDate.Equal(calendar.NewDate(2026, 1, 6)) || gotStart != calendar.NewTimeOfDay(14, 30) {
		t.Fatalf("got %s %s", gotDate, gotStart)
	}
	if resp.Appointment.StartTime != "14:30" {
		t.Fatalf("start_time = %q", resp.Appointment.StartTime)
	}
}
