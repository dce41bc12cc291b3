package codec

import (
	"errors"

	"github.com/cqkv/cqwal/model"
)

var (
	ErrInvalidParameter = errors.New("cqwal codec err: invalid parameter")
	ErrUnknownEntryType = errors.New("cqwal codec err: unknown entry type")
	ErrCorruptedEntry   = errors.New("cqwal codec err: entry is corrupted")
	ErrNoRecord         = errors.New("cqwal codec err: no record at position")
	ErrCorruptedRecord  = errors.New("cqwal codec err: record is corrupted")
)

// Codec marshals log entries and page records. Implementations are pure:
// no I/O, no allocation beyond the returned buffers.
type Codec interface {
	// MarshalEntry returns header || payload || pad || trailing length word.
	// For OVERWRITE entries the payload must hold 2*DataSize bytes (the old
	// image followed by the new image); for every other type exactly
	// DataSize bytes.
	MarshalEntry(*model.Entry, []byte) ([]byte, error)

	// UnmarshalEntry decodes the entry starting at pos and returns a view
	// over its payload and the position past the trailing length word.
	UnmarshalEntry([]byte, int64, *model.Entry) ([]byte, int64, error)

	// UnmarshalEntryReverse decodes the entry whose trailing length word
	// ends at end and returns the record start as the previous end.
	UnmarshalEntryReverse([]byte, int64, *model.Entry) ([]byte, int64, error)

	// MarshalRecord returns record data and the data size
	MarshalRecord(*model.Record) ([]byte, int64, error)

	// UnmarshalRecord decodes a record at the start of data and returns
	// the consumed byte count
	UnmarshalRecord([]byte, *model.Record) (int64, error)
}
