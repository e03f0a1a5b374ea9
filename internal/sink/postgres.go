package sink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rpattn/labetl/internal/db"
	"github.com/rpattn/labetl/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrTableMissing is returned by Read when the feature table has not been
// created yet.
var ErrTableMissing = errors.New("feature table does not exist")

// WriteStatus tags the outcome of a Write call.
type WriteStatus string

const (
	// WriteReplaced means the persisted table was replaced wholesale.
	WriteReplaced WriteStatus = "replaced"
	// WriteUnchanged means the persisted content already matched cell for
	// cell, so nothing was written.
	WriteUnchanged WriteStatus = "unchanged"
)

// WriteResult reports what a Write call did.
type WriteResult struct {
	Status WriteStatus
	Rows   int
}

// PostgresSink persists the feature table into one namespace ("sandbox")
// and one table ("features") using a replace-on-change policy.
type PostgresSink struct {
	conn   *db.Connection
	schema string
	table  string
}

// NewPostgresSink wires a sink backed by the shared connection pool.
func NewPostgresSink(conn *db.Connection) *PostgresSink {
	return &PostgresSink{
		conn:   conn,
		schema: "sandbox",
		table:  "features",
	}
}

// Ping verifies the storage connection. Callers must not proceed to the
// schema/table/write steps when it fails.
func (s *PostgresSink) Ping(ctx context.Context) error {
	if s.conn == nil || s.conn.Pool == nil {
		return &domain.ConnectionError{Err: errors.New("sink not initialized")}
	}
	if err := s.conn.Pool.Ping(ctx); err != nil {
		return &domain.ConnectionError{Err: err}
	}
	return nil
}

// EnsureSchema idempotently creates the sandbox namespace. A failure is
// reported but tolerated when the namespace already exists.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.conn.Pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdent(s.schema)))
	if err == nil {
		return nil
	}
	if exists, checkErr := s.schemaExists(ctx); checkErr == nil && exists {
		log.Printf("[sink] create schema failed but %s already exists: %v", s.schema, err)
		return nil
	}
	return &domain.SchemaError{Statement: "create schema", Err: err}
}

// EnsureTable idempotently creates the destination table with one column per
// feature column, using the storage type mapping. Existing column types are
// never altered.
func (s *PostgresSink) EnsureTable(ctx context.Context, table domain.Table) error {
	if _, err := s.conn.Pool.Exec(ctx, createTableStatement(s.schema, s.table, table.Columns)); err != nil {
		return &domain.SchemaError{Statement: "create table", Err: err}
	}
	return nil
}

// Write persists the feature table. Existing content is read back first; a
// cell-for-cell identical table is left untouched. Otherwise the table is
// replaced wholesale (drop and recreate) inside a single transaction, so a
// failed write never corrupts the previously persisted table.
func (s *PostgresSink) Write(ctx context.Context, table domain.Table) (WriteResult, error) {
	existing, err := s.Read(ctx)
	if err != nil && !errors.Is(err, ErrTableMissing) {
		return WriteResult{}, err
	}
	if err == nil && existing.Equal(table) {
		log.Printf("[sink] data is already up to date, no changes made")
		return WriteResult{Status: WriteUnchanged, Rows: table.NumRows()}, nil
	}

	qualified := s.qualifiedTable()
	err = s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", qualified)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, createTableStatement(s.schema, s.table, table.Columns)); err != nil {
			return err
		}
		insert := insertStatement(s.schema, s.table, table.Columns)
		for _, row := range table.Rows {
			if _, err := tx.Exec(ctx, insert, row...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return WriteResult{}, &domain.WriteError{Err: err}
	}

	log.Printf("[sink] replaced %s with %d rows", qualified, table.NumRows())
	return WriteResult{Status: WriteReplaced, Rows: table.NumRows()}, nil
}

// Read returns the persisted feature table in declared column order and
// storage row order.
func (s *PostgresSink) Read(ctx context.Context) (domain.Table, error) {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return domain.Table{}, &domain.ConnectionError{Err: err}
	}
	if !exists {
		return domain.Table{}, ErrTableMissing
	}

	rows, err := s.conn.Pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s", s.qualifiedTable()))
	if err != nil {
		return domain.Table{}, &domain.WriteError{Err: fmt.Errorf("read features: %w", err)}
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	columns := make([]domain.Column, len(descriptions))
	for i, desc := range descriptions {
		columns[i] = domain.Column{
			Name: string(desc.Name),
			Type: columnTypeForOID(desc.DataTypeOID),
		}
	}

	table := domain.NewTable(columns)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return domain.Table{}, &domain.WriteError{Err: fmt.Errorf("scan features row: %w", err)}
		}
		cells := make([]any, len(values))
		for i, value := range values {
			cells[i] = normalizeValue(value)
		}
		table = table.AppendRow(cells)
	}
	if err := rows.Err(); err != nil {
		return domain.Table{}, &domain.WriteError{Err: fmt.Errorf("iterate features rows: %w", err)}
	}
	return table, nil
}

func (s *PostgresSink) schemaExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.conn.Pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		s.schema,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresSink) tableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.conn.Pool.QueryRow(
		ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`,
		s.schema,
		s.table,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresSink) qualifiedTable() string {
	return fmt.Sprintf("%s.%s", quoteIdent(s.schema), quoteIdent(s.table))
}

// typeFor maps a column's semantic type to a storage column type. Anything
// unrecognized falls back to TEXT, never a type error.
func typeFor(columnType domain.ColumnType) string {
	switch columnType {
	case domain.TypeInteger:
		return "INTEGER"
	case domain.TypeFloat:
		return "NUMERIC"
	case domain.TypeBoolean:
		return "BOOLEAN"
	case domain.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func createTableStatement(schema, table string, columns []domain.Column) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s %s", quoteIdent(col.Name), typeFor(col.Type))
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s.%s (%s)",
		quoteIdent(schema), quoteIdent(table), strings.Join(parts, ", "),
	)
}

func insertStatement(schema, table string, columns []domain.Column) string {
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		names[i] = quoteIdent(col.Name)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s.%s (%s) VALUES (%s)",
		quoteIdent(schema), quoteIdent(table),
		strings.Join(names, ", "), strings.Join(placeholders, ", "),
	)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnTypeForOID(oid uint32) domain.ColumnType {
	switch oid {
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID:
		return domain.TypeInteger
	case pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		return domain.TypeFloat
	case pgtype.BoolOID:
		return domain.TypeBoolean
	case pgtype.DateOID, pgtype.TimestampOID, pgtype.TimestamptzOID:
		return domain.TypeTimestamp
	default:
		return domain.TypeString
	}
}

// normalizeValue folds driver-level values back into domain cell values so
// a written table compares equal to its read-back (the basis of the
// replace-on-change check).
func normalizeValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float32:
		return float64(v)
	case float64:
		return v
	case bool:
		return v
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return fmt.Sprintf("%v", v)
	}
}
