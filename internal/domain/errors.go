package domain

import "fmt"

// Error taxonomy for the ETL chain. Each stage wraps its cause in the typed
// error for that stage so the facade can tag results without string matching.

// IngestError indicates a source file was missing, unreadable, or not
// parseable as delimited text.
type IngestError struct {
	Source string
	Err    error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Source, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// DerivationError indicates a required column was missing or a value could
// not be coerced to its declared type. It aborts the whole run; no partial
// feature table is ever persisted.
type DerivationError struct {
	Detail string
	Err    error
}

func (e *DerivationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("derive features: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("derive features: %s", e.Detail)
}

func (e *DerivationError) Unwrap() error { return e.Err }

// ConnectionError indicates the storage connection could not be established
// or was lost. All dependent schema/table/write steps must be skipped.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("storage connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SchemaError indicates DDL failed at the store.
type SchemaError struct {
	Statement string
	Err       error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %v", e.Statement, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// WriteError indicates a write statement failed at the store. The previously
// persisted table is left untouched; the replace happens in one transaction.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write features: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
