package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/store"
)

func (s *Store) BookedIntervals(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]calendar.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []calendar.Interval
	for _, a := range s.appts {
		if occupies(a, vetID, date) {
			out = append(out, a.Interval())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (s *Store) HasConflict(ctx context.Context, vetID uuid.UUID, date calendar.Date, iv calendar.Interval, excludeID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return conflictIn(s.appts, nil, vetID, date, iv, excludeID), nil
}

func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appts[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return cloneAppointment(a), nil
}

func (s *Store) ListAppointments(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Appointment
	for _, a := range s.appts {
		if a.VeterinarianID == vetID && a.Date.Equal(date) {
			out = append(out, cloneAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ListScheduledBefore(ctx context.Context, date calendar.Date, limit int) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Appointment
	for _, a := range s.appts {
		if a.Status == domain.StatusScheduled && !a.Date.After(date) {
			out = append(out, cloneAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].StartTime < out[j].StartTime
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InVeterinarianTransaction(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context, tx store.BookingTx) error) error {
	tx := s.begin(store.ErrConflict)
	defer tx.release()

	if err := tx.lock(ctx, vetID); err != nil {
		return err
	}
	return tx.run(ctx, fn)
}

func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	tx := s.begin(store.ErrBusy)
	defer tx.release()

	return tx.run(ctx, fn)
}

// memTx buffers writes and applies them on commit. Row locks are emulated by
// taking the owning veterinarian's lock the first time a row is read for
// update.
type memTx struct {
	s       *Store
	staged  map[uuid.UUID]domain.Appointment
	held    map[uuid.UUID]chan struct{}
	// lockErr is returned when a lock wait runs out.
	lockErr error
}

func (s *Store) begin(lockErr error) *memTx {
	return &memTx{
		s:       s,
		staged:  make(map[uuid.UUID]domain.Appointment),
		held:    make(map[uuid.UUID]chan struct{}),
		lockErr: lockErr,
	}
}

func (s *Store) vetLock(vetID uuid.UUID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	ch, ok := s.vetLocks[vetID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.vetLocks[vetID] = ch
	}
	return ch
}

func (t *memTx) lock(ctx context.Context, vetID uuid.UUID) error {
	if _, ok := t.held[vetID]; ok {
		return nil
	}
	ch := t.s.vetLock(vetID)

	timer := time.NewTimer(t.s.lockWait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		t.held[vetID] = ch
		return nil
	case <-timer.C:
		return t.lockErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *memTx) release() {
	for id, ch := range t.held {
		<-ch
		delete(t.held, id)
	}
}

func (t *memTx) run(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, a := range t.staged {
		t.s.appts[id] = a
	}
	return nil
}

func (t *memTx) HasConflict(ctx context.Context, vetID uuid.UUID, date calendar.Date, iv calendar.Interval, excludeID uuid.UUID) (bool, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	return conflictIn(t.s.appts, t.staged, vetID, date, iv, excludeID), nil
}

func (t *memTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if a, ok := t.staged[id]; ok {
		return cloneAppointment(a), nil
	}

	t.s.mu.RLock()
	a, ok := t.s.appts[id]
	t.s.mu.RUnlock()
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}

	if err := t.lock(ctx, a.VeterinarianID); err != nil {
		return domain.Appointment{}, err
	}

	// Re-read under the lock; another commit may have landed meanwhile.
	t.s.mu.RLock()
	a = t.s.appts[id]
	t.s.mu.RUnlock()
	return cloneAppointment(a), nil
}

func (t *memTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	if _, exists := t.s.appts[appt.ID]; exists {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	if _, exists := t.staged[appt.ID]; exists {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	if appt.Status.OccupiesCalendar() && conflictIn(t.s.appts, t.staged, appt.VeterinarianID, appt.Date, appt.Interval(), appt.ID) {
		return domain.Appointment{}, store.ErrConflict
	}

	t.staged[appt.ID] = cloneAppointment(appt)
	return cloneAppointment(appt), nil
}

func (t *memTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	existing, ok := t.staged[appt.ID]
	if !ok {
		existing, ok = t.s.appts[appt.ID]
	}
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	if appt.Status.OccupiesCalendar() && conflictIn(t.s.appts, t.staged, appt.VeterinarianID, appt.Date, appt.Interval(), appt.ID) {
		return domain.Appointment{}, store.ErrConflict
	}

	appt.CreatedAt = existing.CreatedAt
	appt.UpdatedAt = time.Now().UTC()
	t.staged[appt.ID] = cloneAppointment(appt)
	return cloneAppointment(appt), nil
}

func occupies(a domain.Appointment, vetID uuid.UUID, date calendar.Date) bool {
	return a.VeterinarianID == vetID && a.Date.Equal(date) && a.Status.OccupiesCalendar()
}

// conflictIn checks committed rows overlaid with staged ones.
func conflictIn(committed, staged map[uuid.UUID]domain.Appointment, vetID uuid.UUID, date calendar.Date, iv calendar.Interval, excludeID uuid.UUID) bool {
	check := func(a domain.Appointment) bool {
		return a.ID != excludeID && occupies(a, vetID, date) && calendar.Overlaps(a.Interval(), iv)
	}
	for id, a := range committed {
		if _, shadowed := staged[id]; shadowed {
			continue
		}
		if check(a) {
			return true
		}
	}
	for _, a := range staged {
		if check(a) {
			return true
		}
	}
	return false
}

func cloneAppointment(a domain.Appointment) domain.Appointment {
	if a.VideoMeta != nil {
		meta := make(map[string]string, len(a.VideoMeta))
		for k, v := range a.VideoMeta {
			meta[k] = v
		}
		a.VideoMeta = meta
	}
	a.ConfirmedAt = cloneTime(a.ConfirmedAt)
	a.CancelledAt = cloneTime(a.CancelledAt)
	a.CompletedAt = cloneTime(a.CompletedAt)
	return a
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
