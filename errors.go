package cqwal

import (
	"fmt"
)

var (
	ErrEmptyKey    = addPrefix("the key is empty")
	ErrBigValue    = addPrefix("value is too big")
	ErrKeyNotFound = addPrefix("key not found")

	ErrDirIsUsing        = addPrefix("direction is using")
	ErrDatabaseClosed    = addPrefix("database is closed")
	ErrDataFileCorrupted = addPrefix("data file may be corrupted")

	ErrTxnFinished = addPrefix("transaction already finished")
)

func addPrefix(errStr string) error {
	return fmt.Errorf("cqwal err: %s", errStr)
}
