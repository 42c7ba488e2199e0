// Package memory is an in-process implementation of the availability
// repository and the booking store. It backs tests and the development
// server; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/store"
)

const DefaultLockWait = 2 * time.Second

type Store struct {
	mu       sync.RWMutex
	weekly   map[uuid.UUID]domain.WeeklyAvailability
	holidays map[uuid.UUID]domain.Holiday
	appts    map[uuid.UUID]domain.Appointment

	locksMu  sync.Mutex
	vetLocks map[uuid.UUID]chan struct{}
	lockWait time.Duration
}

var (
	_ store.AvailabilityRepository = (*Store)(nil)
	_ store.BookingStore           = (*Store)(nil)
)

// New returns an empty store. lockWait bounds how long a commit waits for a
// veterinarian's lock before giving up with store.ErrConflict.
func New(lockWait time.Duration) *Store {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &Store{
		weekly:   make(map[uuid.UUID]domain.WeeklyAvailability),
		holidays: make(map[uuid.UUID]domain.Holiday),
		appts:    make(map[uuid.UUID]domain.Appointment),
		vetLocks: make(map[uuid.UUID]chan struct{}),
		lockWait: lockWait,
	}
}

func newID() (uuid.UUID, error) {
	return uuid.NewV7()
}

func (s *Store) WeeklyWindows(ctx context.Context, vetID uuid.UUID, day time.Weekday) ([]domain.WeeklyAvailability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.WeeklyAvailability
	for _, w := range s.weekly {
		if w.VeterinarianID == vetID && w.Weekday() == day && w.DeletedAt.IsZero() {
			out = append(out, w)
		}
	}
	sortWeekly(out)
	return out, nil
}

func (s *Store) IsOnHoliday(ctx context.Context, vetID uuid.UUID, date calendar.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.holidays {
		if h.VeterinarianID == vetID && h.DeletedAt.IsZero() && h.Covers(date) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListWeeklyAvailability(ctx context.Context, vetID uuid.UUID) ([]domain.WeeklyAvailability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.WeeklyAvailability
	for _, w := range s.weekly {
		if w.VeterinarianID == vetID && w.DeletedAt.IsZero() {
			out = append(out, w)
		}
	}
	sortWeekly(out)
	return out, nil
}

func (s *Store) CreateWeeklyAvailability(ctx context.Context, row domain.WeeklyAvailability) (domain.WeeklyAvailability, error) {
	if row.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return domain.WeeklyAvailability{}, err
		}
		row.ID = id
	}
	now := time.Now().UTC()
	row.CreatedAt, row.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.weekly[row.ID]; exists {
		return domain.WeeklyAvailability{}, store.ErrIdempotencyConflict
	}
	s.weekly[row.ID] = row
	return row, nil
}

func (s *Store) DeleteWeeklyAvailability(ctx context.Context, vetID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.weekly[id]
	if !ok || w.VeterinarianID != vetID || !w.DeletedAt.IsZero() {
		return store.ErrNotFound
	}
	w.DeletedAt = time.Now().UTC()
	s.weekly[id] = w
	return nil
}

func (s *Store) ListHolidays(ctx context.Context, vetID uuid.UUID, from, to calendar.Date) ([]domain.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Holiday
	for _, h := range s.holidays {
		if h.VeterinarianID != vetID || !h.DeletedAt.IsZero() {
			continue
		}
		if !from.IsZero() && h.EndDate.Before(from) {
			continue
		}
		if !to.IsZero() && h.StartDate.After(to) {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *Store) GetHoliday(ctx context.Context, vetID, id uuid.UUID) (domain.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holidays[id]
	if !ok || h.VeterinarianID != vetID || !h.DeletedAt.IsZero() {
		return domain.Holiday{}, store.ErrNotFound
	}
	return h, nil
}

func (s *Store) CreateHoliday(ctx context.Context, h domain.Holiday) (domain.Holiday, error) {
	if h.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return domain.Holiday{}, err
		}
		h.ID = id
	}
	now := time.Now().UTC()
	h.CreatedAt, h.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.holidays[h.ID]; exists {
		return domain.Holiday{}, store.ErrIdempotencyConflict
	}
	s.holidays[h.ID] = h
	return h, nil
}

func (s *Store) DeleteHoliday(ctx context.Context, vetID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holidays[id]
	if !ok || h.VeterinarianID != vetID || !h.DeletedAt.IsZero() {
		return store.ErrNotFound
	}
	h.DeletedAt = time.Now().UTC()
	s.holidays[id] = h
	return nil
}

func sortWeekly(rows []domain.WeeklyAvailability) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return !a.IsBreak && b.IsBreak
	})
}
