package store

import (
	"errors"
	"fmt"

	"github.com/partnerled/gdapctl/internal/gdap"
)

// Sentinel errors for store operations
var (
	// ErrNotFound is returned when the staging file does not exist.
	// Creating the input directory is the caller's responsibility.
	ErrNotFound = errors.New("staging file not found")

	// ErrUnknownFormat is returned for a format outside the supported set.
	ErrUnknownFormat = errors.New("unknown record format")
)

// Format selects the on-disk serialization for work item records.
type Format string

const (
	// FormatCSV is the delimited-text format. Role sets are joined with
	// ';' inside a single column.
	FormatCSV Format = "csv"
	// FormatJSONL is the structured-record format: one checksummed JSON
	// envelope per line, appendable without re-reading the file.
	FormatJSONL Format = "jsonl"
)

// ParseFormat maps operator input to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSONL:
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatError describes one malformed row. Malformed rows are skipped
// and reported at the end of the run; they never abort a load.
type FormatError struct {
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// LoadReport summarizes a staging file load.
type LoadReport struct {
	// Total counts every row seen, valid or not.
	Total int
	// Skipped counts malformed rows that were dropped.
	Skipped int
	// Errors holds one entry per skipped row.
	Errors []*FormatError
	// Fingerprint is a digest of the raw file, recorded in run summaries.
	Fingerprint string
}

// RecordStore reads and writes ordered sequences of work items. Load
// returns items in file order; Append is safe to call repeatedly across
// a long batch, each call leaving a durable record on disk.
type RecordStore interface {
	Load(path string) ([]gdap.WorkItem, *LoadReport, error)
	Append(path string, items []gdap.WorkItem) error
}

// New returns the store implementation for the given format.
func New(format Format) (RecordStore, error) {
	switch format {
	case FormatCSV:
		return &csvStore{}, nil
	case FormatJSONL:
		return &jsonlStore{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Ext returns the file extension for a format, dot included.
func (f Format) Ext() string {
	return "." + string(f)
}
