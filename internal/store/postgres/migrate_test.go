package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"vetcare/backend/internal/store"
)

func TestMigrations_EmbeddedUpSectionsOnly(t *testing.T) {
	migs, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations error: %v", err)
	}
	if len(migs) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	if migs[0].Version != "0001_scheduling" {
		t.Fatalf("first version = %q, want 0001_scheduling", migs[0].Version)
	}
	for _, m := range migs {
		if strings.Contains(m.UpSQL, "DROP TABLE") {
			t.Fatalf("%s: up section leaks the down section", m.Version)
		}
	}
	if !strings.Contains(migs[0].UpSQL, "appointments_no_overlap") {
		t.Fatalf("exclusion constraint missing from first migration")
	}
}

func TestExtractGooseUp_MissingMarker(t *testing.T) {
	if _, err := extractGooseUp("CREATE TABLE x (id int);"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSplitSQLStatements(t *testing.T) {
	got := splitSQLStatements(`
-- schema
CREATE TABLE a (id int);

CREATE INDEX a_idx ON a (id);
;`)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id int)" {
		t.Fatalf("first = %q", got[0])
	}
}

func TestNormalizeExtensionStatement(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "CREATE EXTENSION IF NOT EXISTS btree_gist", want: "CREATE EXTENSION IF NOT EXISTS btree_gist SCHEMA public", wantOK: true},
		{in: "CREATE EXTENSION IF NOT EXISTS btree_gist SCHEMA ext", wantOK: false},
		{in: "CREATE EXTENSION IF NOT EXISTS pgcrypto", wantOK: false},
		{in: "CREATE TABLE btree_gist_notes (id int)", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := normalizeExtensionStatement(tt.in)
		if ok != tt.wantOK {
			t.Fatalf("normalizeExtensionStatement(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
		}
		if ok && got != tt.want {
			t.Fatalf("normalizeExtensionStatement(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "exclusion", err: &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}, want: store.ErrConflict},
		{name: "lock timeout", err: fmt.Errorf("lock: %w", &pgconn.PgError{Code: "55P03"}), want: store.ErrConflict},
		{name: "duplicate id", err: &pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"}, want: store.ErrIdempotencyConflict},
		{name: "sentinel passes through", err: store.ErrNotFound, want: store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translateError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("translateError = %v, want %v", got, tt.want)
			}
		})
	}

	lockTimeout := fmt.Errorf("lock: %w", &pgconn.PgError{Code: "55P03"})
	if got := translateTransitionError(lockTimeout); !errors.Is(got, store.ErrBusy) {
		t.Fatalf("translateTransitionError(lock timeout) = %v, want %v", got, store.ErrBusy)
	}
	exclusion := &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}
	if got := translateTransitionError(exclusion); !errors.Is(got, store.ErrConflict) {
		t.Fatalf("translateTransitionError(exclusion) = %v, want %v", got, store.ErrConflict)
	}
	if translateTransitionError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}

	other := &pgconn.PgError{Code: "23502"}
	if got := translateError(other); got != other {
		t.Fatalf("unexpected mapping of %v to %v", other, got)
	}
	if translateError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
