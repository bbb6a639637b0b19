// Package spatialerr defines the error taxonomy shared by every component
// (§7): a small set of named kinds, each carrying its own recovery rule
// (fatal-at-entry, skip-the-row, skip-the-dataset, skip-the-partition).
package spatialerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the named error categories from §7.
type Kind string

const (
	// HeaderMismatch is fatal at batch entry: the task CSV's header row
	// does not match the expected column set.
	HeaderMismatch Kind = "HeaderMismatch"
	// MissingFile covers a dataset, summary, or master-table file absent
	// from disk; the offending row is skipped.
	MissingFile Kind = "MissingFile"
	// UnsupportedFormat is raised when a dataset file's column count is
	// neither 2 nor 4 and its extension isn't .wkt; the dataset is
	// skipped.
	UnsupportedFormat Kind = "UnsupportedFormat"
	// InvalidPartitionParam covers N<=0 or an unknown sizing mode; the
	// dataset is skipped.
	InvalidPartitionParam Kind = "InvalidPartitionParam"
	// MasterSchemaError covers a master table missing a required column;
	// the query batch for that dataset is skipped.
	MasterSchemaError Kind = "MasterSchemaError"
	// PartitionLoadError covers a candidate partition that fails to load
	// during a query; the partition is excluded, the query proceeds.
	PartitionLoadError Kind = "PartitionLoadError"
	// IOWriteError covers a failure while flushing buffered output; fatal
	// for the current dataset's batch.
	IOWriteError Kind = "IOWriteError"
)

// Error wraps an underlying cause with its taxonomy Kind and the unit
// (dataset name, partition filename, row number, ...) it applies to.
type Error struct {
	Kind Kind
	Unit string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Unit)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Unit, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a tagged Error.
func New(kind Kind, unit string, cause error) *Error {
	return &Error{Kind: kind, Unit: unit, Err: cause}
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
