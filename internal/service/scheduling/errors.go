package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/store"
)

// Kind is the stable error taxonomy callers switch on, independent of the
// backing store.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindInvalidTransition  Kind = "invalid_transition"
	KindStorageUnavailable Kind = "storage_unavailable"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func invalidInput(msg string) error {
	return &Error{Kind: KindInvalidInput, Msg: msg}
}

func invalidInputf(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

// translate maps store and domain failures onto the taxonomy. Errors that are
// already classified pass through untouched; anything unexpected is logged
// and reported as storage_unavailable.
func (s *Service) translate(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return err
	}

	var tErr *domain.InvalidTransitionError
	switch {
	case errors.As(err, &tErr):
		return &Error{Kind: KindInvalidTransition, Msg: tErr.Error(), Err: err}
	case errors.Is(err, store.ErrConflict):
		return &Error{Kind: KindConflict, Msg: "requested time is no longer free", Err: err}
	case errors.Is(err, store.ErrIdempotencyConflict):
		return &Error{Kind: KindConflict, Msg: "idempotency key was already used for a different request", Err: err}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Msg: "not found", Err: err}
	case errors.Is(err, store.ErrBusy):
		s.log.Warn("appointment busy", slog.String("op", op))
		return &Error{Kind: KindStorageUnavailable, Msg: "appointment is being changed by another request", Err: err}
	}

	level := slog.LevelError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		level = slog.LevelWarn
	}
	s.log.Log(ctx, level, "storage failure", slog.String("op", op), slog.Any("err", err))
	return &Error{Kind: KindStorageUnavailable, Msg: "storage unavailable", Err: err}
}
