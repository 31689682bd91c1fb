package vcsv

import (
	"errors"
	"fmt"
)

var (
	// ErrParse matches every *ParseError.
	ErrParse = errors.New("vcsv: parse error")

	// ErrSchemaMismatch is returned when the numeric block does not carry
	// exactly one time/value column pair per metadata record.
	ErrSchemaMismatch = errors.New("vcsv: schema mismatch")

	// ErrInvalidLayout is returned by Load for a layout that cannot address
	// a metadata line.
	ErrInvalidLayout = errors.New("vcsv: invalid layout")
)

// ParseError describes a metadata entry or data cell that could not be read.
// Position is the index of the offending entry among the non-empty header
// entries; for data cells it is the 1-based source line.
type ParseError struct {
	Entry    string
	Position int
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("vcsv: entry %d %q: %s", e.Position, e.Entry, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// SchemaError reports the first data row whose width disagrees with the
// record count.
type SchemaError struct {
	Row     int
	Columns int
	Records int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("vcsv: schema mismatch: row %d has %d columns, want %d for %d records",
		e.Row, e.Columns, 2*e.Records, e.Records)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchemaMismatch }
