package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"vetcare/backend/internal/calendar"
)

// WeeklyAvailability is one recurring working or break interval of a
// veterinarian. DayOfWeek uses 0 = Sunday ... 6 = Saturday.
type WeeklyAvailability struct {
	bun.BaseModel `bun:"table:weekly_availabilities"`

	ID             uuid.UUID          `bun:"id,pk,type:uuid"`
	VeterinarianID uuid.UUID          `bun:"veterinarian_id,notnull,type:uuid"`
	DayOfWeek      int16              `bun:"day_of_week,notnull"`
	StartTime      calendar.TimeOfDay `bun:"start_minute,notnull"`
	EndTime        calendar.TimeOfDay `bun:"end_minute,notnull"`
	IsBreak        bool               `bun:"is_break,notnull"`
	Session        string             `bun:"session"`
	CreatedAt      time.Time          `bun:"created_at,notnull"`
	UpdatedAt      time.Time          `bun:"updated_at,notnull"`
	DeletedAt      time.Time          `bun:"deleted_at,soft_delete,nullzero"`
}

func (w *WeeklyAvailability) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if w.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			w.ID = id
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		if w.UpdatedAt.IsZero() {
			w.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		w.UpdatedAt = now
	}
	return nil
}

func (w WeeklyAvailability) Interval() calendar.Interval {
	return calendar.Interval{Start: w.StartTime, End: w.EndTime}
}

func (w WeeklyAvailability) Weekday() time.Weekday {
	return time.Weekday(w.DayOfWeek)
}

// Holiday closes a veterinarian's calendar for every date in
// [StartDate, EndDate], both ends inclusive.
type Holiday struct {
	bun.BaseModel `bun:"table:holidays"`

	ID             uuid.UUID     `bun:"id,pk,type:uuid"`
	VeterinarianID uuid.UUID     `bun:"veterinarian_id,notnull,type:uuid"`
	StartDate      calendar.Date `bun:"start_date,notnull,type:date"`
	EndDate        calendar.Date `bun:"end_date,notnull,type:date"`
	Reason         string        `bun:"reason"`
	CreatedAt      time.Time     `bun:"created_at,notnull"`
	UpdatedAt      time.Time     `bun:"updated_at,notnull"`
	DeletedAt      time.Time     `bun:"deleted_at,soft_delete,nullzero"`
}

func (h *Holiday) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if h.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			h.ID = id
		}
		if h.CreatedAt.IsZero() {
			h.CreatedAt = now
		}
		if h.UpdatedAt.IsZero() {
			h.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		h.UpdatedAt = now
	}
	return nil
}

func (h Holiday) Covers(d calendar.Date) bool {
	return !d.Before(h.StartDate) && !d.After(h.EndDate)
}

// IsPast reports whether the whole range lies before today.
func (h Holiday) IsPast(today calendar.Date) bool {
	return h.EndDate.Before(today)
}

func (h Holiday) Validate() error {
	if h.StartDate.IsZero() || h.EndDate.IsZero() {
		return errors.New("start_date and end_date are required")
	}
	if h.EndDate.Before(h.StartDate) {
		return errors.New("end_date must not be before start_date")
	}
	return nil
}

// ValidateWeeklySchedule checks the rows of a single veterinarian and day:
// every interval is well formed, working intervals never overlap each other,
// breaks never overlap each other, and every break sits fully inside one
// working interval.
func ValidateWeeklySchedule(rows []WeeklyAvailability) error {
	var working, breaks []calendar.Interval
	for _, r := range rows {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return fmt.Errorf("invalid day_of_week %d", r.DayOfWeek)
		}
		if !r.Interval().Valid() {
			return fmt.Errorf("invalid interval %s: start must be before end within the day", r.Interval())
		}
		if r.IsBreak {
			breaks = append(breaks, r.Interval())
		} else {
			working = append(working, r.Interval())
		}
	}

	if err := ensureDisjoint(working); err != nil {
		return fmt.Errorf("working intervals overlap: %w", err)
	}
	if err := ensureDisjoint(breaks); err != nil {
		return fmt.Errorf("break intervals overlap: %w", err)
	}

	for _, b := range breaks {
		nested := false
		for _, w := range working {
			if w.Contains(b) {
				nested = true
				break
			}
		}
		if !nested {
			return fmt.Errorf("break %s is not inside a working interval", b)
		}
	}
	return nil
}

func ensureDisjoint(intervals []calendar.Interval) error {
	sorted := append([]calendar.Interval(nil), intervals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if calendar.Overlaps(sorted[i-1], sorted[i]) {
			return fmt.Errorf("%s and %s", sorted[i-1], sorted[i])
		}
	}
	return nil
}
