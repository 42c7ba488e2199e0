package calendar

import (
	"fmt"
	"sort"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func NewInterval(start TimeOfDay, minutes int) Interval {
	return Interval{Start: start, End: start.Add(minutes)}
}

func (i Interval) Minutes() int {
	return int(i.End - i.Start)
}

func (i Interval) Empty() bool {
	return i.End <= i.Start
}

func (i Interval) Valid() bool {
	return i.Start.Valid() && i.End.Valid() && i.Start < i.End
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s,%s)", i.Start, i.End)
}

// Overlaps reports whether two half-open intervals share at least one minute.
// Touching intervals ([09:00,10:00) and [10:00,11:00)) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// OverlapsAny reports whether iv overlaps any interval in set.
func OverlapsAny(iv Interval, set []Interval) bool {
	for _, s := range set {
		if Overlaps(iv, s) {
			return true
		}
	}
	return false
}

// Merge sorts intervals by start and coalesces overlapping or adjacent ones.
// Empty intervals are dropped. The input slice is not modified.
func Merge(intervals []Interval) []Interval {
	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	out := make([]Interval, 0, len(sorted))
	cur := sorted[0]
	for _, iv := range sorted[1:] {
		if iv.Start <= cur.End {
			if iv.End > cur.End {
				cur.End = iv.End
			}
			continue
		}
		out = append(out, cur)
		cur = iv
	}
	return append(out, cur)
}

// Subtract returns the parts of base not covered by any blocker, ascending and
// without zero-length remainders.
func Subtract(base Interval, blockers []Interval) []Interval {
	if base.Empty() {
		return nil
	}

	out := make([]Interval, 0, 2)
	cursor := base.Start
	for _, b := range Merge(blockers) {
		if b.End <= cursor {
			continue
		}
		if b.Start >= base.End {
			break
		}
		if b.Start > cursor {
			out = append(out, Interval{Start: cursor, End: b.Start})
		}
		cursor = b.End
		if cursor >= base.End {
			break
		}
	}
	if cursor < base.End {
		out = append(out, Interval{Start: cursor, End: base.End})
	}
	return out
}

// SubtractAll applies Subtract to every base interval and concatenates the
// results in order.
func SubtractAll(bases []Interval, blockers []Interval) []Interval {
	var out []Interval
	for _, b := range bases {
		out = append(out, Subtract(b, blockers)...)
	}
	return out
}
