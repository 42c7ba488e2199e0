package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/store"
)

// AvailabilityRepo reads and writes weekly_availabilities and holidays. Both
// models carry a soft_delete column, so bun filters deleted rows out of every
// select and turns deletes into updates of deleted_at.
type AvailabilityRepo struct {
	db *bun.DB
}

var _ store.AvailabilityRepository = (*AvailabilityRepo)(nil)

func NewAvailabilityRepo(db *bun.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

func (r *AvailabilityRepo) WeeklyWindows(ctx context.Context, vetID uuid.UUID, day time.Weekday) ([]domain.WeeklyAvailability, error) {
	var rows []domain.WeeklyAvailability
	err := r.db.NewSelect().
		Model(&rows).
		Where("veterinarian_id = ?", vetID).
		Where("day_of_week = ?", int16(day)).
		OrderExpr("start_minute ASC, is_break ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AvailabilityRepo) IsOnHoliday(ctx context.Context, vetID uuid.UUID, date calendar.Date) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Holiday)(nil)).
		Where("veterinarian_id = ?", vetID).
		Where("start_date <= ?", date).
		Where("end_date >= ?", date).
		Exists(ctx)
}

func (r *AvailabilityRepo) ListWeeklyAvailability(ctx context.Context, vetID uuid.UUID) ([]domain.WeeklyAvailability, error) {
	var rows []domain.WeeklyAvailability
	err := r.db.NewSelect().
		Model(&rows).
		Where("veterinarian_id = ?", vetID).
		OrderExpr("day_of_week ASC, start_minute ASC, is_break ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AvailabilityRepo) CreateWeeklyAvailability(ctx context.Context, row domain.WeeklyAvailability) (domain.WeeklyAvailability, error) {
	m := row
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.WeeklyAvailability{}, err
	}
	return m, nil
}

func (r *AvailabilityRepo) DeleteWeeklyAvailability(ctx context.Context, vetID, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.WeeklyAvailability)(nil)).
		Where("veterinarian_id = ?", vetID).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *AvailabilityRepo) ListHolidays(ctx context.Context, vetID uuid.UUID, from, to calendar.Date) ([]domain.Holiday, error) {
	var rows []domain.Holiday
	q := r.db.NewSelect().
		Model(&rows).
		Where("veterinarian_id = ?", vetID)
	if !from.IsZero() {
		q = q.Where("end_date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("start_date <= ?", to)
	}
	if err := q.OrderExpr("start_date ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AvailabilityRepo) GetHoliday(ctx context.Context, vetID, id uuid.UUID) (domain.Holiday, error) {
	var h domain.Holiday
	err := r.db.NewSelect().
		Model(&h).
		Where("veterinarian_id = ?", vetID).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Holiday{}, store.ErrNotFound
		}
		return domain.Holiday{}, err
	}
	return h, nil
}

func (r *AvailabilityRepo) CreateHoliday(ctx context.Context, h domain.Holiday) (domain.Holiday, error) {
	m := h
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Holiday{}, err
	}
	return m, nil
}

func (r *AvailabilityRepo) DeleteHoliday(ctx context.Context, vetID, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Holiday)(nil)).
		Where("veterinarian_id = ?", vetID).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
