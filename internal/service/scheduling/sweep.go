package scheduling

import (
	"context"
	"log/slog"
	"time"
)

const sweepBatchSize = 500

// SweepNoShows marks as no_show every scheduled appointment whose end is more
// than grace in the past. Appointments that change state concurrently are
// skipped. It returns how many were marked.
func (s *Service) SweepNoShows(ctx context.Context, grace time.Duration) (int, error) {
	if grace < 0 {
		return 0, invalidInputf("grace must not be negative, got %s", grace)
	}

	now := s.Now()
	rows, err := s.bookings.ListScheduledBefore(ctx, s.Today(), sweepBatchSize)
	if err != nil {
		return 0, s.translate(ctx, "list_scheduled_before", err)
	}

	marked := 0
	for _, a := range rows {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		if now.Before(a.EndsAt(s.loc).Add(grace)) {
			continue
		}
		if _, err := s.MarkNoShow(ctx, a.ID); err != nil {
			switch KindOf(err) {
			case KindInvalidTransition, KindNotFound:
				continue
			}
			return marked, err
		}
		marked++
	}

	if marked > 0 {
		s.log.Info("no-show sweep", slog.Int("marked", marked), slog.Int("examined", len(rows)))
	}
	return marked, nil
}
