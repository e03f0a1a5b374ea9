package domain

import (
	"testing"
	"time"
)

func featureColumns() []Column {
	return []Column{
		{Name: "user_id", Type: TypeInteger},
		{Name: "avg_experiment_run_time", Type: TypeFloat},
		{Name: "signup_date", Type: TypeTimestamp},
	}
}

func TestTableEqual(t *testing.T) {
	signup := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	base := NewTable(featureColumns()).
		AppendRow([]any{int64(1), 15.0, signup}).
		AppendRow([]any{int64(2), nil, nil})

	same := NewTable(featureColumns()).
		AppendRow([]any{int64(1), 15.0, signup}).
		AppendRow([]any{int64(2), nil, nil})

	if !base.Equal(same) {
		t.Fatal("expected identical tables to be equal")
	}

	differentCell := NewTable(featureColumns()).
		AppendRow([]any{int64(1), 16.0, signup}).
		AppendRow([]any{int64(2), nil, nil})
	if base.Equal(differentCell) {
		t.Fatal("expected cell difference to be detected")
	}

	fewerRows := NewTable(featureColumns()).
		AppendRow([]any{int64(1), 15.0, signup})
	if base.Equal(fewerRows) {
		t.Fatal("expected row count difference to be detected")
	}

	renamed := featureColumns()
	renamed[0].Name = "id"
	differentColumns := NewTable(renamed).
		AppendRow([]any{int64(1), 15.0, signup}).
		AppendRow([]any{int64(2), nil, nil})
	if base.Equal(differentColumns) {
		t.Fatal("expected column difference to be detected")
	}
}

func TestTableEqualComparesTimestampsByInstant(t *testing.T) {
	utc := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	shifted := utc.In(time.FixedZone("plus2", 2*60*60))

	a := NewTable(featureColumns()).AppendRow([]any{int64(1), 15.0, utc})
	b := NewTable(featureColumns()).AppendRow([]any{int64(1), 15.0, shifted})

	if !a.Equal(b) {
		t.Fatal("expected same instant in different zones to compare equal")
	}
}

func TestAppendRowPadsToColumnCount(t *testing.T) {
	table := NewTable(featureColumns()).AppendRow([]any{int64(1)})
	if len(table.Rows[0]) != 3 {
		t.Fatalf("expected padded row, got %d cells", len(table.Rows[0]))
	}
	if table.Rows[0][1] != nil || table.Rows[0][2] != nil {
		t.Fatal("expected missing cells to be null")
	}
}

func TestRowMaps(t *testing.T) {
	table := NewTable(featureColumns()).AppendRow([]any{int64(1), 15.0, nil})

	maps := table.RowMaps()
	if len(maps) != 1 {
		t.Fatalf("expected 1 row map, got %d", len(maps))
	}
	if maps[0]["user_id"] != int64(1) {
		t.Fatalf("unexpected user_id: %v", maps[0]["user_id"])
	}
	if value, ok := maps[0]["signup_date"]; !ok || value != nil {
		t.Fatalf("expected explicit null signup_date, got %v (present=%v)", value, ok)
	}
}

func TestColumnIndex(t *testing.T) {
	table := NewTable(featureColumns())
	if got := table.ColumnIndex("signup_date"); got != 2 {
		t.Fatalf("expected index 2, got %d", got)
	}
	if got := table.ColumnIndex("missing"); got != -1 {
		t.Fatalf("expected -1 for missing column, got %d", got)
	}
}
