package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpWalksJoinedErrorsAndFindsPostgres(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_applications_active_user_program", TableName: "applications"}
	joined := errors.Join(errors.New("audit write failed"), fmt.Errorf("insert: %w", pgErr))
	err := Wrap(CodeConflict, joined, "already applied").WithReason("DuplicateApplication")

	d := Dump(err)
	if d.Code != CodeConflict || d.Reason != "DuplicateApplication" {
		t.Fatalf("unexpected code/reason %s %s", d.Code, d.Reason)
	}
	if d.PG == nil || d.PG.Code != "23505" || d.PG.Constraint != "uq_applications_active_user_program" {
		t.Fatalf("expected postgres detail, got %+v", d.PG)
	}
	// typed error, join, both branches, and the pg error behind the second
	if len(d.Chain) != 5 {
		t.Fatalf("expected 5 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.PG != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
