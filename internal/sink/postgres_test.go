package sink

import (
	"testing"
	"time"

	"github.com/rpattn/labetl/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestTypeFor(t *testing.T) {
	cases := []struct {
		columnType domain.ColumnType
		want       string
	}{
		{domain.TypeInteger, "INTEGER"},
		{domain.TypeFloat, "NUMERIC"},
		{domain.TypeBoolean, "BOOLEAN"},
		{domain.TypeTimestamp, "TIMESTAMP"},
		{domain.TypeString, "TEXT"},
		{domain.ColumnType("geometry"), "TEXT"}, // unknown types fall back to TEXT
	}
	for _, tc := range cases {
		if got := typeFor(tc.columnType); got != tc.want {
			t.Fatalf("typeFor(%s): expected %s, got %s", tc.columnType, tc.want, got)
		}
	}
}

func TestCreateTableStatement(t *testing.T) {
	columns := []domain.Column{
		{Name: "user_id", Type: domain.TypeInteger},
		{Name: "avg_experiment_run_time", Type: domain.TypeFloat},
		{Name: "signup_date", Type: domain.TypeTimestamp},
		{Name: "compound_name", Type: domain.TypeString},
	}

	got := createTableStatement("sandbox", "features", columns)
	want := `CREATE TABLE IF NOT EXISTS "sandbox"."features" ` +
		`("user_id" INTEGER, "avg_experiment_run_time" NUMERIC, "signup_date" TIMESTAMP, "compound_name" TEXT)`
	if got != want {
		t.Fatalf("unexpected statement:\n got: %s\nwant: %s", got, want)
	}
}

func TestInsertStatement(t *testing.T) {
	columns := []domain.Column{
		{Name: "user_id", Type: domain.TypeInteger},
		{Name: "compound_id", Type: domain.TypeInteger},
	}

	got := insertStatement("sandbox", "features", columns)
	want := `INSERT INTO "sandbox"."features" ("user_id", "compound_id") VALUES ($1, $2)`
	if got != want {
		t.Fatalf("unexpected statement:\n got: %s\nwant: %s", got, want)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`with"quote`); got != `"with""quote"` {
		t.Fatalf("unexpected quoting: %s", got)
	}
}

func TestColumnTypeForOID(t *testing.T) {
	cases := []struct {
		oid  uint32
		want domain.ColumnType
	}{
		{pgtype.Int4OID, domain.TypeInteger},
		{pgtype.Int8OID, domain.TypeInteger},
		{pgtype.NumericOID, domain.TypeFloat},
		{pgtype.Float8OID, domain.TypeFloat},
		{pgtype.BoolOID, domain.TypeBoolean},
		{pgtype.TimestampOID, domain.TypeTimestamp},
		{pgtype.TextOID, domain.TypeString},
	}
	for _, tc := range cases {
		if got := columnTypeForOID(tc.oid); got != tc.want {
			t.Fatalf("oid %d: expected %s, got %s", tc.oid, tc.want, got)
		}
	}
}

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{int16(3), int64(3)},
		{int32(3), int64(3)},
		{int64(3), int64(3)},
		{float32(1.5), float64(1.5)},
		{2.5, 2.5},
		{true, true},
		{"text", "text"},
		{[]byte("bytes"), "bytes"},
		{ts, ts},
	}
	for _, tc := range cases {
		if got := normalizeValue(tc.in); got != tc.want {
			t.Fatalf("normalizeValue(%v): expected %v (%T), got %v (%T)", tc.in, tc.want, tc.want, got, got)
		}
	}
}

func TestNormalizeValueNumeric(t *testing.T) {
	var numeric pgtype.Numeric
	if err := numeric.Scan("15"); err != nil {
		t.Fatalf("failed to scan numeric: %v", err)
	}
	got := normalizeValue(numeric)
	if got != 15.0 {
		t.Fatalf("expected 15.0, got %v (%T)", got, got)
	}
}
