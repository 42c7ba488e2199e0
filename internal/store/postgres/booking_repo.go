package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/store"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
	pgLockNotAvailable   = "55P03"

	noOverlapConstraint = "appointments_no_overlap"
)

// BookingRepo is the Postgres appointment book. Commits for one veterinarian
// are serialized by a transaction-scoped advisory lock; the exclusion
// constraint on appointments is the last line against overlapping rows.
type BookingRepo struct {
	db          *bun.DB
	lockTimeout time.Duration
}

var _ store.BookingStore = (*BookingRepo)(nil)

// NewBookingRepo returns a repo whose commit path waits at most lockTimeout
// for the per-veterinarian lock. Zero disables the bound.
func NewBookingRepo(db *bun.DB, lockTimeout time.Duration) *BookingRepo {
	return &BookingRepo{db: db, lockTimeout: lockTimeout}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *BookingRepo) BookedIntervals(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]calendar.Interval, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Column("start_minute", "end_minute").
		Where("veterinarian_id = ?", vetID).
		Where("appointment_date = ?", date).
		Where("status IN (?)", bun.In(domain.ActiveStatuses)).
		OrderExpr("start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]calendar.Interval, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.Interval())
	}
	return out, nil
}

func (r *BookingRepo) HasConflict(ctx context.Context, vetID uuid.UUID, date calendar.Date, iv calendar.Interval, excludeID uuid.UUID) (bool, error) {
	return hasConflict(ctx, r.db, vetID, date, iv, excludeID)
}

func (r *BookingRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.db.NewSelect(), id)
}

func (r *BookingRepo) ListAppointments(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("veterinarian_id = ?", vetID).
		Where("appointment_date = ?", date).
		OrderExpr("start_minute ASC, created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BookingRepo) ListScheduledBefore(ctx context.Context, date calendar.Date, limit int) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().
		Model(&rows).
		Where("status = ?", domain.StatusScheduled).
		Where("appointment_date <= ?", date).
		OrderExpr("appointment_date ASC, start_minute ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BookingRepo) InVeterinarianTransaction(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context, tx store.BookingTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.lockVeterinarianCalendar(ctx, tx, vetID); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
	return translateError(err)
}

func (r *BookingRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.setLockTimeout(ctx, tx); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
	return translateTransitionError(err)
}

func (r *BookingRepo) setLockTimeout(ctx context.Context, tx bun.Tx) error {
	if r.lockTimeout <= 0 {
		return nil
	}
	_, err := tx.NewRaw("SELECT set_config('lock_timeout', ?, true)", fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())).Exec(ctx)
	return err
}

// translateTransitionError is translateError for state changes, where a lock
// timeout means the appointment row is busy rather than the slot taken.
func translateTransitionError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return store.ErrBusy
	}
	return translateError(err)
}

func (r *BookingRepo) lockVeterinarianCalendar(ctx context.Context, tx bun.Tx, vetID uuid.UUID) error {
	if err := r.setLockTimeout(ctx, tx); err != nil {
		return err
	}
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", vetID.String()).Exec(ctx)
	return err
}

func (r bookingTx) HasConflict(ctx context.Context, vetID uuid.UUID, date calendar.Date, iv calendar.Interval, excludeID uuid.UUID) (bool, error) {
	return hasConflict(ctx, r.tx, vetID, date, iv, excludeID)
}

func (r bookingTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.tx.NewSelect().For("UPDATE"), id)
}

func (r bookingTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, translateError(err)
	}
	return m, nil
}

func (r bookingTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := r.tx.NewUpdate().
		Model(&m).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, translateError(err)
	}
	if err := expectAffected(res); err != nil {
		return domain.Appointment{}, err
	}
	return m, nil
}

func hasConflict(ctx context.Context, db bun.IDB, vetID uuid.UUID, date calendar.Date, iv calendar.Interval, excludeID uuid.UUID) (bool, error) {
	q := db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where("veterinarian_id = ?", vetID).
		Where("appointment_date = ?", date).
		Where("status IN (?)", bun.In(domain.ActiveStatuses)).
		Where("start_minute < ?", iv.End).
		Where("end_minute > ?", iv.Start)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	return q.Exists(ctx)
}

func getAppointment(ctx context.Context, q *bun.SelectQuery, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := q.Model(&a).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

// translateError maps the Postgres failures the commit path expects onto
// store sentinels. Anything else is returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == noOverlapConstraint:
		return store.ErrConflict
	case pgErr.Code == pgLockNotAvailable:
		return store.ErrConflict
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "appointments_pkey":
		return store.ErrIdempotencyConflict
	}
	return err
}
