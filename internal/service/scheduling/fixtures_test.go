package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/store"
	"vetcare/backend/internal/store/memory"
)

var (
	vetID    = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	clientID = uuid.MustParse("00000000-0000-0000-0000-00000000c001")
	petID    = uuid.MustParse("00000000-0000-0000-0000-00000000e001")

	// 2026-01-05 is a Monday.
	monday = calendar.NewDate(2026, 1, 5)
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.AppointmentEvent
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) Types() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.EventType, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	clock    *testClock
	notifier *recordingNotifier
}

// newFixture starts the clock on Sunday 2026-01-04 12:00 UTC, the day before
// the Monday most tests book on.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	st := memory.New(time.Second)
	clock := &testClock{now: time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}

	if opts.Clock == nil {
		opts.Clock = clock
	}
	if opts.Notifier == nil {
		opts.Notifier = notifier
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	svc := NewService(st, st, opts)
	t.Cleanup(svc.Wait)
	return &fixture{svc: svc, store: st, clock: clock, notifier: notifier}
}

func tod(t *testing.T, s string) calendar.TimeOfDay {
	t.Helper()
	v, err := calendar.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return v
}

func (f *fixture) addWindow(t *testing.T, day time.Weekday, start, end string, isBreak bool) {
	t.Helper()
	_, err := f.store.CreateWeeklyAvailability(context.Background(), domain.WeeklyAvailability{
		VeterinarianID: vetID,
		DayOfWeek:      int16(day),
		StartTime:      tod(t, start),
		EndTime:        tod(t, end),
		IsBreak:        isBreak,
	})
	if err != nil {
		t.Fatalf("CreateWeeklyAvailability error: %v", err)
	}
}

func (f *fixture) book(t *testing.T, date calendar.Date, start string, minutes int) domain.Appointment {
	t.Helper()
	a, err := f.svc.BookAppointment(context.Background(), bookInput(t, date, start, minutes))
	if err != nil {
		t.Fatalf("BookAppointment(%s %s) error: %v", date, start, err)
	}
	return a
}

func bookInput(t *testing.T, date calendar.Date, start string, minutes int) BookInput {
	return BookInput{
		VeterinarianID:  vetID,
		ClientID:        clientID,
		PetID:           petID,
		AppointmentType: "checkup",
		Date:            date,
		StartTime:       tod(t, start),
		DurationMinutes: minutes,
	}
}

func formatSlots(slots []calendar.TimeOfDay) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("kind = %q (%v), want %q", got, err, kind)
	}
}

// failingAvailability fails every read, standing in for an unreachable
// database.
type failingAvailability struct {
	store.AvailabilityRepository
	err error
}

func (f failingAvailability) IsOnHoliday(ctx context.Context, vetID uuid.UUID, date calendar.Date) (bool, error) {
	return false, f.err
}

func (f failingAvailability) WeeklyWindows(ctx context.Context, vetID uuid.UUID, day time.Weekday) ([]domain.WeeklyAvailability, error) {
	return nil, f.err
}

var errDatabaseDown = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
