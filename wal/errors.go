package wal

import (
	"fmt"

	"github.com/cqkv/cqwal/codec"
)

var (
	ErrIO                = addPrefix("io error")
	ErrFileNotFound      = addPrefix("log file not found")
	ErrInvalidFileHeader = addPrefix("invalid log file header")
	ErrNeedsRecovery     = addPrefix("log is not empty, recovery is needed")

	// ErrInvalidParameter is shared with the codec so callers can match
	// malformed-append failures with a single sentinel
	ErrInvalidParameter = codec.ErrInvalidParameter
)

func addPrefix(errStr string) error {
	return fmt.Errorf("cqwal log err: %s", errStr)
}
