package scheduling

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/metrics"
	"vetcare/backend/internal/store"
)

const DefaultSlotStepMinutes = 30

// resolveTimeout bounds one shared free-interval computation.
const resolveTimeout = 10 * time.Second

// SlotCache holds the free sub-intervals of a veterinarian's day. Entries may
// be stale; the commit path never reads them.
type SlotCache interface {
	Get(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]calendar.Interval, bool, error)
	Set(ctx context.Context, vetID uuid.UUID, date calendar.Date, free []calendar.Interval) error
	Invalidate(ctx context.Context, vetID uuid.UUID, date calendar.Date) error
	InvalidateVeterinarian(ctx context.Context, vetID uuid.UUID) error
}

// Resolver computes open start times from weekly windows, holidays and the
// booking ledger. It takes no locks.
type Resolver struct {
	availability store.AvailabilityRepository
	ledger       store.BookingLedger
	step         int
	cache        SlotCache
	group        singleflight.Group
	metrics      *metrics.Metrics
	log          *slog.Logger
}

type ResolverOptions struct {
	SlotStepMinutes int
	Cache           SlotCache
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
}

func NewResolver(availability store.AvailabilityRepository, ledger store.BookingLedger, opts ResolverOptions) *Resolver {
	step := opts.SlotStepMinutes
	if step <= 0 {
		step = DefaultSlotStepMinutes
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		availability: availability,
		ledger:       ledger,
		step:         step,
		cache:        opts.Cache,
		metrics:      opts.Metrics,
		log:          log.With(slog.String("component", "scheduling.resolver")),
	}
}

func (r *Resolver) Step() int { return r.step }

// Resolve returns the ascending start times on date at which an appointment
// of the given duration fits. now must already be on the clinic's clock;
// when date is today, starts before now rounded up to the next step boundary
// are dropped, and past dates yield nothing.
func (r *Resolver) Resolve(ctx context.Context, vetID uuid.UUID, date calendar.Date, durationMinutes int, now time.Time) ([]calendar.TimeOfDay, error) {
	if durationMinutes <= 0 {
		return nil, invalidInput("duration_minutes must be positive")
	}
	if durationMinutes > calendar.MinutesPerDay {
		return nil, invalidInput("duration_minutes must fit in one day")
	}

	today := calendar.DateOf(now)
	if date.Before(today) {
		return []calendar.TimeOfDay{}, nil
	}

	free, err := r.FreeIntervals(ctx, vetID, date)
	if err != nil {
		return nil, err
	}

	notBefore := calendar.TimeOfDay(0)
	if date.Equal(today) {
		notBefore = cutoff(now, r.step)
	}
	return Candidates(free, durationMinutes, r.step, notBefore), nil
}

// FreeIntervals runs steps one to five of the resolution: the day's working
// windows minus breaks minus booked appointments. A holiday or an empty
// weekly schedule gives an empty result, never an error.
func (r *Resolver) FreeIntervals(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]calendar.Interval, error) {
	if r.cache != nil {
		free, ok, err := r.cache.Get(ctx, vetID, date)
		switch {
		case err != nil:
			r.metrics.CacheLookup("error")
			r.log.Warn("slot cache get failed", slog.Any("err", err), slog.String("veterinarian_id", vetID.String()))
		case ok:
			r.metrics.CacheLookup("hit")
			return free, nil
		default:
			r.metrics.CacheLookup("miss")
		}
	}

	// The shared computation runs detached from the caller that started it,
	// so one cancelled request cannot fail the others waiting on the key.
	key := vetID.String() + "|" + date.String()
	ch := r.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		started := time.Now()
		free, err := r.computeFree(ctx, vetID, date)
		r.metrics.ObserveResolve(time.Since(started))
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			if err := r.cache.Set(ctx, vetID, date, free); err != nil {
				r.log.Warn("slot cache set failed", slog.Any("err", err), slog.String("veterinarian_id", vetID.String()))
			}
		}
		return free, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]calendar.Interval), nil
	}
}

func (r *Resolver) computeFree(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]calendar.Interval, error) {
	working, breaks, err := r.openWindows(ctx, vetID, date)
	if err != nil || len(working) == 0 {
		return []calendar.Interval{}, err
	}

	var available []calendar.Interval
	for _, w := range working {
		available = append(available, calendar.Subtract(w, breaks)...)
	}

	booked, err := r.ledger.BookedIntervals(ctx, vetID, date)
	if err != nil {
		return nil, err
	}

	free := calendar.SubtractAll(available, booked)
	if free == nil {
		free = []calendar.Interval{}
	}
	return free, nil
}

// openWindows returns the working and break intervals of date, or nothing
// when the veterinarian is on holiday.
func (r *Resolver) openWindows(ctx context.Context, vetID uuid.UUID, date calendar.Date) (working, breaks []calendar.Interval, err error) {
	onHoliday, err := r.availability.IsOnHoliday(ctx, vetID, date)
	if err != nil || onHoliday {
		return nil, nil, err
	}

	rows, err := r.availability.WeeklyWindows(ctx, vetID, date.Weekday())
	if err != nil {
		return nil, nil, err
	}
	for _, row := range rows {
		if row.IsBreak {
			breaks = append(breaks, row.Interval())
		} else {
			working = append(working, row.Interval())
		}
	}
	return working, breaks, nil
}

// Fits reports whether iv lies inside one working window of date without
// touching a break, and date is not a holiday. Bookings are not consulted;
// the commit path checks those under the veterinarian's lock.
func (r *Resolver) Fits(ctx context.Context, vetID uuid.UUID, date calendar.Date, iv calendar.Interval) (bool, error) {
	working, breaks, err := r.openWindows(ctx, vetID, date)
	if err != nil {
		return false, err
	}
	for _, w := range working {
		if w.Contains(iv) && !calendar.OverlapsAny(iv, breaks) {
			return true, nil
		}
	}
	return false, nil
}

// Candidates lays out start times every step minutes from the start of each
// free interval, keeping those that end inside the interval and are not
// before notBefore.
func Candidates(free []calendar.Interval, durationMinutes, step int, notBefore calendar.TimeOfDay) []calendar.TimeOfDay {
	seen := make(map[calendar.TimeOfDay]struct{})
	out := []calendar.TimeOfDay{}
	for _, iv := range free {
		for start := iv.Start; start.Add(durationMinutes) <= iv.End; start = start.Add(step) {
			if start < notBefore {
				continue
			}
			if _, dup := seen[start]; dup {
				continue
			}
			seen[start] = struct{}{}
			out = append(out, start)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// cutoff is now rounded up to the next step boundary counted from midnight.
// A partial minute counts as a full one so no start before now survives.
func cutoff(now time.Time, step int) calendar.TimeOfDay {
	tod := calendar.TimeOfDayOf(now)
	if now.Second() > 0 || now.Nanosecond() > 0 {
		tod = tod.Add(1)
	}
	return tod.CeilTo(step)
}
